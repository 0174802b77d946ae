package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

// IconPNG returns the tray icon: a rounded badge with a white dot, drawn once
// and encoded as PNG (accepted by both the fyne and systray trays).
func IconPNG() []byte {
	iconOnce.Do(func() {
		iconData = renderIcon()
	})
	return iconData
}

func renderIcon() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	badge := color.NRGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF}
	dot := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	c := float64(iconSize-1) / 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			d2 := dx*dx + dy*dy
			switch {
			case d2 <= 4*4:
				img.SetNRGBA(x, y, dot)
			case d2 <= c*c:
				img.SetNRGBA(x, y, badge)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
