// Package notification reports fatal startup errors to a user who may have
// launched a9i without a terminal.
package notification

import "strings"

const maxMessageLen = 600

// StartupFailure shows title and message in a blocking dialog where the
// platform has one, and logs them otherwise.
func StartupFailure(title string, err error) {
	showBlockingError(title, formatMessage(err))
}

func formatMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if r := []rune(msg); len(r) > maxMessageLen {
		msg = string(r[:maxMessageLen]) + "..."
	}
	return msg + "\n\nCheck the configuration file and that the backend is reachable."
}
