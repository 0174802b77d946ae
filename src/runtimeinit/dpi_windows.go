//go:build windows

package runtimeinit

import (
	"log/slog"

	"golang.org/x/sys/windows"
)

const processPerMonitorDPIAware = 2

// enableDPIAwareness opts into per-monitor DPI so cursor coordinates and
// display bounds share one pixel space.
func enableDPIAwareness(log *slog.Logger) {
	setAwareness := windows.NewLazySystemDLL("Shcore.dll").NewProc("SetProcessDpiAwareness")
	if err := setAwareness.Find(); err == nil {
		ret, _, _ := setAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			log.Debug("per-monitor DPI awareness enabled")
		} else {
			log.Warn("SetProcessDpiAwareness failed", "code", ret)
		}
		return
	}

	setAware := windows.NewLazySystemDLL("user32.dll").NewProc("SetProcessDPIAware")
	if err := setAware.Find(); err != nil {
		log.Warn("no DPI awareness API available")
		return
	}
	if ret, _, _ := setAware.Call(); ret == 0 {
		log.Warn("SetProcessDPIAware failed")
		return
	}
	log.Debug("system DPI awareness enabled (fallback)")
}

const (
	smCXScreen        = 0
	smCYScreen        = 1
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	smCMonitors       = 80
)

func logMonitorConfiguration(log *slog.Logger) {
	metrics := windows.NewLazySystemDLL("user32.dll").NewProc("GetSystemMetrics")
	if err := metrics.Find(); err != nil {
		return
	}
	get := func(index int) int {
		ret, _, _ := metrics.Call(uintptr(index))
		return int(int32(ret))
	}
	log.Debug("monitors",
		"count", get(smCMonitors),
		"virtual", []int{get(smXVirtualScreen), get(smYVirtualScreen), get(smCXVirtualScreen), get(smCYVirtualScreen)},
		"primary", []int{get(smCXScreen), get(smCYScreen)},
	)
}
