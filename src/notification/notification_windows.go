//go:build windows

package notification

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

func showBlockingError(title, message string) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		slog.Error(title, "message", message)
		return
	}
	m, err := windows.UTF16PtrFromString(message)
	if err != nil {
		slog.Error(title, "message", message)
		return
	}
	if _, err := windows.MessageBox(0, m, t, windows.MB_OK|windows.MB_ICONERROR|windows.MB_SETFOREGROUND); err != nil {
		slog.Error(title, "message", message, "dialog_err", err)
	}
}
