//go:build !windows

package notification

import "log/slog"

func showBlockingError(title, message string) {
	slog.Error(title, "message", message)
}
