//go:build !windows

package runtimeinit

import (
	"log/slog"

	"a9i/src/screen"
)

func enableDPIAwareness(*slog.Logger) {}

func logMonitorConfiguration(log *slog.Logger) {
	for i, d := range screen.Displays() {
		log.Debug("display", "index", i, "bounds", d.String())
	}
}
