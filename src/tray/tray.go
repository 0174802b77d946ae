// Package tray shows the a9i system tray icon for the console UI, where fyne
// is not running, using getlantern/systray.
package tray

import (
	"fmt"

	"github.com/getlantern/systray"
)

const defaultTooltip = "A9I quick lookup"

// Options configures the tray icon.
type Options struct {
	// Bindings are shown as disabled menu entries, e.g. "ctrl+alt+t: translate".
	Bindings []string
	// OnQuit runs when Quit is chosen.
	OnQuit func()
	// Extra is shown under the bindings (e.g. the resident port).
	Extra string
}

// Icon drives the systray menu. Run must be called from the main goroutine.
type Icon struct {
	opts   Options
	status *systray.MenuItem
	ready  chan struct{}
}

func New(opts Options) *Icon {
	return &Icon{opts: opts, ready: make(chan struct{})}
}

// Run blocks until Quit.
func (i *Icon) Run() {
	systray.Run(i.onReady, func() {})
}

// Quit stops the systray loop. Calls before Run has set up the tray take
// effect once it is ready.
func (i *Icon) Quit() {
	go func() {
		<-i.ready
		systray.Quit()
	}()
}

func (i *Icon) onReady() {
	if icon := IconPNG(); icon != nil {
		systray.SetIcon(icon)
	}
	systray.SetTitle("A9I")
	systray.SetTooltip(defaultTooltip)

	i.status = systray.AddMenuItem("Idle", "Lookup status")
	i.status.Disable()
	systray.AddSeparator()
	for _, b := range i.opts.Bindings {
		systray.AddMenuItem(b, "Hotkey").Disable()
	}
	if i.opts.Extra != "" {
		systray.AddMenuItem(i.opts.Extra, "").Disable()
	}
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit a9i")
	close(i.ready)

	go func() {
		<-mQuit.ClickedCh
		if i.opts.OnQuit != nil {
			i.opts.OnQuit()
		}
		systray.Quit()
	}()
}

// SetBusy updates the tooltip and status entry. Calls before the tray is
// ready are dropped.
func (i *Icon) SetBusy(busy bool) {
	select {
	case <-i.ready:
	default:
		return
	}
	if busy {
		systray.SetTooltip(fmt.Sprintf("%s: working...", defaultTooltip))
		i.status.SetTitle("Working...")
		return
	}
	systray.SetTooltip(defaultTooltip)
	i.status.SetTitle("Idle")
}
