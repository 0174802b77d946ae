// Package capture extracts the user's current text selection through the
// system clipboard: save, clear, settle, send the copy chord, then poll.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyCapture means no selection appeared within the polling budget.
var ErrEmptyCapture = errors.New("no selection captured")

const (
	DefaultSettleDelay  = 300 * time.Millisecond
	DefaultPollAttempts = 7
	DefaultPollInterval = 100 * time.Millisecond
)

// Clipboard is the text clipboard the protocol reads and mutates.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Copier simulates the OS "copy selection" key chord.
type Copier interface {
	SendCopyShortcut() error
}

// Result is the outcome of one capture.
type Result struct {
	Text  string // trimmed selection, "" when nothing was captured
	Prior string // clipboard content before the capture started
	Saved bool   // Prior holds a real snapshot and must be restored by the caller
}

// Protocol runs the capture sequence. Zero timing fields take the defaults.
type Protocol struct {
	Clipboard    Clipboard
	Copier       Copier
	SettleDelay  time.Duration
	PollAttempts int
	PollInterval time.Duration
}

// Capture returns the current selection. It never restores the clipboard:
// once Result.Saved is true the caller owns restoring Result.Prior, even when
// an error is returned.
func (p *Protocol) Capture(ctx context.Context) (Result, error) {
	var res Result

	prior, err := p.Clipboard.Read()
	if err != nil {
		return res, fmt.Errorf("read clipboard: %w", err)
	}
	res.Prior = prior
	res.Saved = true

	if err := p.Clipboard.Write(""); err != nil {
		return res, fmt.Errorf("clear clipboard: %w", err)
	}

	// Let the physical hotkey modifiers come up before the synthetic chord.
	if err := sleep(ctx, p.settleDelay()); err != nil {
		return res, err
	}

	if err := p.Copier.SendCopyShortcut(); err != nil {
		return res, err
	}

	for i := 0; i < p.pollAttempts(); i++ {
		if err := sleep(ctx, p.pollInterval()); err != nil {
			return res, err
		}
		text, err := p.Clipboard.Read()
		if err != nil {
			return res, fmt.Errorf("poll clipboard: %w", err)
		}
		if text = strings.TrimSpace(text); text != "" {
			res.Text = text
			return res, nil
		}
	}
	return res, ErrEmptyCapture
}

func (p *Protocol) settleDelay() time.Duration {
	if p.SettleDelay <= 0 {
		return DefaultSettleDelay
	}
	return p.SettleDelay
}

func (p *Protocol) pollAttempts() int {
	if p.PollAttempts <= 0 {
		return DefaultPollAttempts
	}
	return p.PollAttempts
}

func (p *Protocol) pollInterval() time.Duration {
	if p.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return p.PollInterval
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
