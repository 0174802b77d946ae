package gui

import (
	"errors"
	"testing"

	"fyne.io/fyne/v2/driver"

	"a9i/src/messages"
)

func TestMoveNativeX11(t *testing.T) {
	tests := []struct {
		name string
		ctx  any
		want error
	}{
		{"zero handle", driver.X11WindowContext{}, errNoWindowHandle},
		{"zero handle pointer", &driver.X11WindowContext{}, errNoWindowHandle},
		{"foreign context", driver.WindowsWindowContext{HWND: 1}, errNoNativeMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := moveNative(tt.ctx, messages.Point{X: -5, Y: 40}); !errors.Is(err, tt.want) {
				t.Fatalf("moveNative() = %v, want %v", err, tt.want)
			}
		})
	}
}
