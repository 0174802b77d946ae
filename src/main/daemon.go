package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"a9i/src/capture"
	"a9i/src/config"
	"a9i/src/eventloop"
	"a9i/src/gui"
	"a9i/src/hotkey"
	"a9i/src/messages"
	"a9i/src/popup"
	"a9i/src/resident"
	"a9i/src/runtimeinit"
	"a9i/src/screen"
	"a9i/src/session"
	"a9i/src/tray"
)

// mainThreadUI is whichever toolkit owns the main goroutine.
type mainThreadUI interface {
	Run()
	Quit()
}

// runResident wires the daemon together and blocks until ctx is cancelled,
// Quit is chosen from the tray, or a component fails.
func runResident(ctx context.Context, rt *runtimeinit.Runtime) error {
	cfg, log := rt.Config, rt.Logger
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		machine  *popup.Machine
		renderer popup.Renderer
		ui       mainThreadUI
		setBusy  func(bool)
	)
	switch cfg.UI.Kind {
	case config.UIFyne:
		app := gui.New(gui.Options{
			Icon:      tray.IconPNG(),
			OnDismiss: func() { machine.Dismiss() },
			OnQuit:    cancel,
			Tray:      cfg.UI.Tray,
			Logger:    log,
		})
		renderer, ui, setBusy = app, app, app.SetBusy
	default:
		renderer = gui.NewConsole(os.Stdout)
		if cfg.UI.Tray {
			icon := tray.New(tray.Options{
				Bindings: bindingLabels(cfg),
				OnQuit:   cancel,
				Extra:    residentLabel(cfg),
			})
			ui, setBusy = icon, icon.SetBusy
		}
	}

	machine = popup.New(popup.Options{
		Renderer: renderer,
		Timings:  popupTimings(cfg),
		Place:    screen.Placer{Width: gui.PopupWidth, Height: gui.PopupHeight}.Place,
		OnStateChange: func(s popup.State) {
			log.Debug("popup state", "state", s)
		},
		Logger: log,
	})

	orch, err := session.New(session.Options{
		Capturer: &capture.Protocol{
			Clipboard:    rt.Clipboard,
			Copier:       rt.Copier,
			SettleDelay:  cfg.Capture.SettleDelay,
			PollAttempts: cfg.Capture.PollAttempts,
			PollInterval: cfg.Capture.PollInterval,
		},
		Clipboard:      rt.Clipboard,
		Backend:        rt.Backend,
		Sink:           machine,
		Cursor:         screen.CursorPosition,
		Models:         cfg.Models(),
		DefaultModel:   cfg.Backend.DefaultModel,
		RequestTimeout: cfg.Backend.Timeout,
		Logger:         log,
		OnBusy:         setBusy,
	})
	if err != nil {
		return err
	}

	var srv resident.Server
	if cfg.Resident.Enabled {
		srv = resident.NewServer(residentPorts(cfg))
	}
	loop := eventloop.New(eventloop.Options{
		Dispatcher: orch,
		UI:         machine,
		Server:     srv,
		Logger:     log,
	})
	listener, err := hotkey.New(hotkeyBindings(cfg), loop.OnHotkey, hotkey.WithLogger(log))
	if err != nil {
		return err
	}
	loop.SetHotkeys(listener)

	loopErr := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		if ui != nil {
			ui.Quit()
		}
		loopErr <- err
	}()

	log.Info("a9i ready")
	if ui != nil {
		ui.Run()
		cancel()
	}
	if err := <-loopErr; err != nil {
		log.Error("daemon stopped", "err", err)
		return err
	}
	log.Info("a9i stopped")
	return nil
}

func hotkeyBindings(cfg *config.Config) []hotkey.Binding {
	out := make([]hotkey.Binding, 0, len(cfg.Bindings))
	for _, b := range cfg.Bindings {
		mode, err := messages.ParseMode(b.Mode)
		if err != nil {
			slog.Warn("skipping binding", "combo", b.Combo, "err", err)
			continue
		}
		out = append(out, hotkey.Binding{Combo: b.Combo, Mode: mode})
	}
	return out
}

func bindingLabels(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Bindings))
	for _, b := range hotkeyBindings(cfg) {
		out = append(out, fmt.Sprintf("%s: %s", config.NormalizeCombo(b.Combo), b.Mode))
	}
	return out
}

func residentLabel(cfg *config.Config) string {
	if !cfg.Resident.Enabled {
		return ""
	}
	return fmt.Sprintf("a9i trigger: ports %d-%d", cfg.Resident.PortStart, cfg.Resident.PortEnd)
}

func popupTimings(cfg *config.Config) popup.Timings {
	return popup.Timings{
		Offset:           messages.Point{X: cfg.Popup.OffsetX, Y: cfg.Popup.OffsetY},
		EllipsisInterval: cfg.Popup.EllipsisInterval,
		AutoHide:         cfg.Popup.AutoHide,
		FadeDuration:     cfg.Popup.FadeDuration,
		FrameInterval:    cfg.Popup.FrameInterval,
	}
}
