package gui

import (
	"errors"

	"fyne.io/fyne/v2/driver"
)

var (
	errNoNativeMove   = errors.New("native window positioning not supported")
	errNoWindowHandle = errors.New("window has no native handle yet")
)

// placeWindow moves the popup to the last recorded position through the
// driver's native handle. Must run on the fyne goroutine.
func (a *App) placeWindow() {
	nw, ok := a.win.(driver.NativeWindow)
	if !ok {
		return
	}
	a.mu.Lock()
	p := a.pos
	a.mu.Unlock()
	nw.RunNative(func(ctx any) {
		if err := moveNative(ctx, p); err != nil {
			a.log.Debug("popup position not applied", "x", p.X, "y", p.Y, "err", err)
		}
	})
}
