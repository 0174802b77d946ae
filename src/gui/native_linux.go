//go:build linux

package gui

import (
	"sync"

	"fyne.io/fyne/v2/driver"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"a9i/src/messages"
)

var x11 struct {
	once sync.Once
	conn *xgb.Conn
	err  error
}

// moveNative configures the X11 window origin. Wayland surfaces cannot be
// positioned by clients.
func moveNative(ctx any, p messages.Point) error {
	var handle uintptr
	switch wc := ctx.(type) {
	case driver.X11WindowContext:
		handle = wc.WindowHandle
	case *driver.X11WindowContext:
		handle = wc.WindowHandle
	default:
		return errNoNativeMove
	}
	if handle == 0 {
		return errNoWindowHandle
	}

	x11.once.Do(func() { x11.conn, x11.err = xgb.NewConn() })
	if x11.err != nil {
		return x11.err
	}
	return xproto.ConfigureWindowChecked(x11.conn, xproto.Window(handle),
		xproto.ConfigWindowX|xproto.ConfigWindowY,
		[]uint32{uint32(int32(p.X)), uint32(int32(p.Y))}).Check()
}
