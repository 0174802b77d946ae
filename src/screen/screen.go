// Package screen reports the pointer position and keeps the popup inside the
// visible desktop.
package screen

import (
	"image"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"

	"a9i/src/messages"
)

// CursorPosition returns the pointer location in virtual-screen pixels.
func CursorPosition() messages.Point {
	x, y := robotgo.Location()
	return messages.Point{X: x, Y: y}
}

// Displays returns the bounds of every active display.
func Displays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	out := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, screenshot.GetDisplayBounds(i))
	}
	return out
}

// Placer clamps a popup of the given size to the display under its anchor.
// The result is a request: the fyne renderer can only apply it on X11 and
// Windows, and Wayland or macOS window managers choose the position
// themselves.
type Placer struct {
	Width, Height int
	// Displays defaults to the live display list.
	Displays func() []image.Rectangle
}

// Place returns p moved so the popup rectangle stays on one display.
func (pl Placer) Place(p messages.Point) messages.Point {
	displays := pl.Displays
	if displays == nil {
		displays = Displays
	}
	return Clamp(p, pl.Width, pl.Height, displays())
}

// Clamp keeps a w×h rectangle anchored at p inside the display containing p,
// or the nearest display when p is off-screen. With no displays p is returned
// unchanged.
func Clamp(p messages.Point, w, h int, displays []image.Rectangle) messages.Point {
	if len(displays) == 0 {
		return p
	}
	d := nearest(image.Pt(p.X, p.Y), displays)

	if p.X+w > d.Max.X {
		p.X = d.Max.X - w
	}
	if p.Y+h > d.Max.Y {
		p.Y = d.Max.Y - h
	}
	if p.X < d.Min.X {
		p.X = d.Min.X
	}
	if p.Y < d.Min.Y {
		p.Y = d.Min.Y
	}
	return p
}

func nearest(pt image.Point, displays []image.Rectangle) image.Rectangle {
	best := displays[0]
	bestDist := -1
	for _, d := range displays {
		if pt.In(d) {
			return d
		}
		dist := distSq(pt, d)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best
}

func distSq(pt image.Point, r image.Rectangle) int {
	dx := 0
	switch {
	case pt.X < r.Min.X:
		dx = r.Min.X - pt.X
	case pt.X >= r.Max.X:
		dx = pt.X - r.Max.X + 1
	}
	dy := 0
	switch {
	case pt.Y < r.Min.Y:
		dy = r.Min.Y - pt.Y
	case pt.Y >= r.Max.Y:
		dy = pt.Y - r.Max.Y + 1
	}
	return dx*dx + dy*dy
}
