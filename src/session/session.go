// Package session runs one capture → generate → display cycle per accepted
// trigger. A shared guard keeps at most one session in flight; overlapping
// triggers are dropped, never queued.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"a9i/src/backend"
	"a9i/src/capture"
	"a9i/src/guard"
	"a9i/src/logutil"
	"a9i/src/messages"
)

// ErrGuardBusy is returned by Run when another session is in flight.
var ErrGuardBusy = errors.New("session already in flight")

// Capturer extracts the current selection, leaving clipboard restoration to the caller.
type Capturer interface {
	Capture(ctx context.Context) (capture.Result, error)
}

// ClipboardWriter restores the saved clipboard content.
type ClipboardWriter interface {
	Write(text string) error
}

// Sink receives lifecycle events. Post must not block on UI work.
type Sink interface {
	Post(ctx context.Context, msg messages.Message)
}

// CursorFunc reports the pointer position at trigger time.
type CursorFunc func() messages.Point

type Options struct {
	Guard          *guard.Guard
	Capturer       Capturer
	Clipboard      ClipboardWriter
	Backend        backend.Generator
	Sink           Sink
	Cursor         CursorFunc
	Models         map[messages.Mode]string
	DefaultModel   string
	RequestTimeout time.Duration
	Logger         *slog.Logger
	// OnBusy observes guard acquisition (true) and release (false).
	OnBusy func(busy bool)
}

// Orchestrator owns the guard and spawns one worker goroutine per accepted trigger.
type Orchestrator struct {
	opts Options
	log  *slog.Logger
	wg   sync.WaitGroup
}

// New validates opts and returns an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Capturer == nil:
		return nil, errors.New("Capturer is required")
	case opts.Clipboard == nil:
		return nil, errors.New("Clipboard is required")
	case opts.Backend == nil:
		return nil, errors.New("Backend is required")
	case opts.Sink == nil:
		return nil, errors.New("Sink is required")
	}
	if opts.Guard == nil {
		opts.Guard = &guard.Guard{}
	}
	if opts.Cursor == nil {
		opts.Cursor = func() messages.Point { return messages.Point{} }
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = backend.DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{opts: opts, log: log.With("component", "session")}, nil
}

// Busy reports whether a session is in flight.
func (o *Orchestrator) Busy() bool { return o.opts.Guard.Busy() }

// Dispatch starts a session for mode on a new goroutine. It returns false,
// with no side effects, when another session is in flight.
func (o *Orchestrator) Dispatch(ctx context.Context, mode messages.Mode) bool {
	if !o.enter() {
		return false
	}
	// Read before the capture delays: the pointer may move during them.
	pos := o.opts.Cursor()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_ = o.run(ctx, mode, pos)
	}()
	return true
}

// Run executes a session synchronously on the calling goroutine.
func (o *Orchestrator) Run(ctx context.Context, mode messages.Mode) error {
	if !o.enter() {
		return ErrGuardBusy
	}
	return o.run(ctx, mode, o.opts.Cursor())
}

// Wait blocks until every session started by Dispatch has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) enter() bool {
	if !o.opts.Guard.TryEnter() {
		return false
	}
	if o.opts.OnBusy != nil {
		o.opts.OnBusy(true)
	}
	return true
}

// exit reports idle while the guard is still held, so a session entered right
// after release always reports busy last.
func (o *Orchestrator) exit() {
	if o.opts.OnBusy != nil {
		o.opts.OnBusy(false)
	}
	o.opts.Guard.Exit()
}

// run is the session body. The guard is held on entry and released on every
// path; the clipboard is restored before release whenever it was snapshotted.
func (o *Orchestrator) run(ctx context.Context, mode messages.Mode, pos messages.Point) (err error) {
	defer o.exit()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("session panic", "mode", mode, "panic", r)
			o.opts.Sink.Post(ctx, messages.Dismissed{Reason: messages.ReasonPanic})
			err = fmt.Errorf("session panic: %v", r)
		}
	}()

	log := o.log.With("mode", mode)
	o.opts.Sink.Post(ctx, messages.LoadingStarted{Mode: mode, Pos: pos})

	sel, err := o.opts.Capturer.Capture(ctx)
	if sel.Saved {
		defer o.restore(log, sel.Prior)
	}
	if err != nil {
		reason := messages.ReasonCaptureError
		if errors.Is(err, capture.ErrEmptyCapture) {
			reason = messages.ReasonEmptyCapture
			log.Debug("no selection captured")
		} else {
			log.Warn("capture failed", "err", err)
		}
		o.opts.Sink.Post(ctx, messages.Dismissed{Reason: reason})
		return err
	}
	log.Debug("selection captured", "chars", len(sel.Text), "text", logutil.SanitizeForLog(sel.Text))

	model := o.modelFor(mode)
	reqCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	start := time.Now()
	out, err := o.opts.Backend.Generate(reqCtx, model, sel.Text)
	cancel()
	if err == nil {
		out = strings.TrimSpace(out)
		if out == "" {
			err = &backend.BackendError{Provider: "backend", Model: model, Message: "empty response"}
		}
	}
	if err != nil {
		if !backend.IsBackendError(err) {
			err = &backend.BackendError{Provider: "backend", Model: model, Message: "generation failed", Err: err}
		}
		log.Warn("generation failed", "model", model, "err", err, "elapsed", time.Since(start))
		o.opts.Sink.Post(ctx, messages.Dismissed{Reason: messages.ReasonBackendError})
		return err
	}

	log.Info("result ready", "model", model, "chars", len(out), "elapsed", time.Since(start))
	o.opts.Sink.Post(ctx, messages.ResultReady{Text: out, Pos: pos})
	return nil
}

func (o *Orchestrator) modelFor(mode messages.Mode) string {
	if m, ok := o.opts.Models[mode]; ok && m != "" {
		return m
	}
	return o.opts.DefaultModel
}

func (o *Orchestrator) restore(log *slog.Logger, prior string) {
	if err := o.opts.Clipboard.Write(prior); err != nil {
		log.Error("clipboard restore failed", "err", err)
	}
}
