//go:build windows

package gui

import (
	"fyne.io/fyne/v2/driver"
	"golang.org/x/sys/windows"

	"a9i/src/messages"
)

const (
	swpNoSize     = 0x0001
	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010
)

var procSetWindowPos = windows.NewLazySystemDLL("user32.dll").NewProc("SetWindowPos")

// moveNative moves the HWND without resizing, reordering or activating it.
func moveNative(ctx any, p messages.Point) error {
	var hwnd uintptr
	switch wc := ctx.(type) {
	case driver.WindowsWindowContext:
		hwnd = wc.HWND
	case *driver.WindowsWindowContext:
		hwnd = wc.HWND
	default:
		return errNoNativeMove
	}
	if hwnd == 0 {
		return errNoWindowHandle
	}
	if ret, _, err := procSetWindowPos.Call(hwnd, 0, uintptr(p.X), uintptr(p.Y), 0, 0,
		swpNoSize|swpNoZOrder|swpNoActivate); ret == 0 {
		return err
	}
	return nil
}
