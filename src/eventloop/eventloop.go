// Package eventloop is the single-goroutine coordinator that feeds hotkey and
// resident triggers into the session orchestrator.
package eventloop

import (
	"context"
	"errors"
	"log/slog"

	"a9i/src/messages"
	"a9i/src/resident"
)

// Dispatcher starts a session unless one is already in flight.
type Dispatcher interface {
	Dispatch(ctx context.Context, mode messages.Mode) bool
	Wait()
}

// HotkeySource runs until ctx is cancelled, reporting triggers via the
// callback passed to its constructor.
type HotkeySource interface {
	Run(ctx context.Context) error
}

// UI runs the popup state machine.
type UI interface {
	Run(ctx context.Context) error
}

// Loop owns trigger intake. Everything that decides whether a trigger starts
// a session happens on the Run goroutine.
type Loop struct {
	dispatcher Dispatcher
	ui         UI
	hotkeys    HotkeySource
	srv        resident.Server
	hotkeyCh   chan messages.Mode
	log        *slog.Logger
}

type Options struct {
	Dispatcher Dispatcher
	UI         UI
	// Server is optional; nil disables trigger delegation.
	Server resident.Server
	Logger *slog.Logger
}

func New(opts Options) *Loop {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		dispatcher: opts.Dispatcher,
		ui:         opts.UI,
		srv:        opts.Server,
		hotkeyCh:   make(chan messages.Mode, 4),
		log:        log.With("component", "eventloop"),
	}
}

// OnHotkey is the hotkey callback. It never blocks; presses arriving while
// the loop is backed up are dropped, as a busy guard would drop them anyway.
func (l *Loop) OnHotkey(mode messages.Mode) {
	select {
	case l.hotkeyCh <- mode:
	default:
		l.log.Debug("hotkey dropped", "mode", mode)
	}
}

// SetHotkeys attaches the listener whose callback is OnHotkey.
func (l *Loop) SetHotkeys(h HotkeySource) { l.hotkeys = h }

// Run blocks until ctx is cancelled or a component fails, then waits for the
// in-flight session to finish its cleanup.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer l.dispatcher.Wait()

	errCh := make(chan error, 3)
	if l.ui != nil {
		go func() { errCh <- named("popup", l.ui.Run(ctx)) }()
	}
	if l.hotkeys != nil {
		go func() { errCh <- named("hotkey", l.hotkeys.Run(ctx)) }()
	}

	var reqCh chan resident.Conn
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return err
		}
		defer l.srv.Close()
		reqCh = make(chan resident.Conn, 4)
		go func() {
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					return
				}
				select {
				case reqCh <- conn:
				case <-ctx.Done():
					_ = conn.Close()
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return err
			}
			l.log.Debug("component stopped")
		case mode := <-l.hotkeyCh:
			l.handleHotkey(ctx, mode)
		case conn := <-reqCh:
			l.handleConn(ctx, conn)
		}
	}
}

func (l *Loop) handleHotkey(ctx context.Context, mode messages.Mode) {
	if !l.dispatcher.Dispatch(ctx, mode) {
		l.log.Debug("busy, hotkey ignored", "mode", mode)
	}
}

func (l *Loop) handleConn(ctx context.Context, conn resident.Conn) {
	defer conn.Close()
	var err error
	if l.dispatcher.Dispatch(ctx, conn.Mode()) {
		err = conn.RespondAccepted()
	} else {
		err = conn.RespondBusy()
	}
	if err != nil {
		l.log.Warn("resident reply failed", "err", err)
	}
}

// named treats context cancellation as a clean stop.
func named(component string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return &ComponentError{Component: component, Err: err}
}

type ComponentError struct {
	Component string
	Err       error
}

func (e *ComponentError) Error() string { return e.Component + ": " + e.Err.Error() }
func (e *ComponentError) Unwrap() error { return e.Err }
