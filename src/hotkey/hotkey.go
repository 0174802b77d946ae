// Package hotkey watches global key events through gohook and reports which
// configured combination was pressed.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	gohook "github.com/robotn/gohook"

	"a9i/src/messages"
)

// Binding ties a combo string such as "ctrl+alt+t" to a mode.
type Binding struct {
	Combo string
	Mode  messages.Mode
}

// Source starts delivering raw key events; Stop ends delivery and closes the channel.
type Source interface {
	Start() chan gohook.Event
	Stop()
}

type gohookSource struct{}

func (gohookSource) Start() chan gohook.Event { return gohook.Start() }
func (gohookSource) Stop()                    { gohook.End() }

type keyState struct {
	name    string
	codes   []uint16
	pressed bool
}

type combo struct {
	binding Binding
	keys    []keyState
}

// Listener tracks every binding against one shared event stream. The callback
// runs on the listener goroutine and must not block.
type Listener struct {
	combos      []*combo
	onTrigger   func(messages.Mode)
	source      Source
	useRawcodes bool
	log         *slog.Logger
}

type Option func(*Listener)

// WithSource replaces the gohook event source.
func WithSource(s Source) Option { return func(l *Listener) { l.source = s } }

// WithRawcodes forces Windows VK rawcode matching on or off.
func WithRawcodes(on bool) Option { return func(l *Listener) { l.useRawcodes = on } }

func WithLogger(log *slog.Logger) Option { return func(l *Listener) { l.log = log } }

// New validates the bindings and returns a Listener that calls onTrigger with
// the bound mode when a combo completes.
func New(bindings []Binding, onTrigger func(messages.Mode), opts ...Option) (*Listener, error) {
	if len(bindings) == 0 {
		return nil, errors.New("no hotkey bindings")
	}
	l := &Listener{
		onTrigger:   onTrigger,
		source:      gohookSource{},
		useRawcodes: runtime.GOOS == "windows",
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.log = l.log.With("component", "hotkey")

	for _, b := range bindings {
		c, err := l.compile(b)
		if err != nil {
			return nil, err
		}
		l.combos = append(l.combos, c)
	}
	return l, nil
}

func (l *Listener) compile(b Binding) (*combo, error) {
	names := parseHotkey(b.Combo)
	if len(names) == 0 {
		return nil, fmt.Errorf("hotkey %q: no keys", b.Combo)
	}
	c := &combo{binding: b}
	for _, name := range names {
		codes := l.codesFor(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("hotkey %q: cannot map key %q", b.Combo, name)
		}
		c.keys = append(c.keys, keyState{name: name, codes: codes})
	}
	return c, nil
}

func (l *Listener) codesFor(name string) []uint16 {
	if l.useRawcodes {
		return keyNameToRawcodes(name)
	}
	return keyNameToKeycodes(name)
}

// Run consumes key events until ctx is cancelled or the source closes.
func (l *Listener) Run(ctx context.Context) error {
	evChan := l.source.Start()
	if evChan == nil {
		return errors.New("hotkey: event source returned nil channel")
	}
	for _, c := range l.combos {
		l.log.Info("hotkey registered", "combo", c.binding.Combo, "mode", c.binding.Mode)
	}

	for {
		select {
		case <-ctx.Done():
			l.source.Stop()
			return ctx.Err()
		case ev, ok := <-evChan:
			if !ok {
				l.log.Debug("event channel closed")
				return ctx.Err()
			}
			l.handle(ev)
		}
	}
}

func (l *Listener) handle(ev gohook.Event) {
	code := ev.Keycode
	if l.useRawcodes {
		code = ev.Rawcode
	}
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		for _, c := range l.combos {
			if c.press(code) {
				l.log.Debug("hotkey combination detected", "combo", c.binding.Combo)
				if l.onTrigger != nil {
					l.onTrigger(c.binding.Mode)
				}
			}
		}
	case gohook.KeyUp:
		for _, c := range l.combos {
			c.release(code)
		}
	}
}

// press marks code as held and reports whether the combo just completed.
// Completion resets the combo so key auto-repeat does not fire it again.
func (c *combo) press(code uint16) bool {
	matched := false
	for i := range c.keys {
		if contains(c.keys[i].codes, code) {
			c.keys[i].pressed = true
			matched = true
		}
	}
	if !matched {
		return false
	}
	for i := range c.keys {
		if !c.keys[i].pressed {
			return false
		}
	}
	for i := range c.keys {
		c.keys[i].pressed = false
	}
	return true
}

func (c *combo) release(code uint16) {
	for i := range c.keys {
		if contains(c.keys[i].codes, code) {
			c.keys[i].pressed = false
		}
	}
}

func contains(codes []uint16, code uint16) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to canonical key names.
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, canonicalKey(part))
		}
	}
	return keys
}

func canonicalKey(name string) string {
	switch name {
	case "control":
		return "ctrl"
	case "option":
		return "alt"
	case "win", "super", "meta", "command":
		return "cmd"
	case "return":
		return "enter"
	case "escape":
		return "esc"
	case "del":
		return "delete"
	case "ins":
		return "insert"
	case "pgup":
		return "pageup"
	case "pgdn":
		return "pagedown"
	}
	return name
}

// keyNameToKeycodes resolves a key through gohook's cross-platform keycode
// table. Modifiers include their right-hand variant ("rctrl").
func keyNameToKeycodes(name string) []uint16 {
	var codes []uint16
	if code, ok := gohook.Keycode[name]; ok {
		codes = append(codes, code)
	}
	switch name {
	case "ctrl", "alt", "shift", "cmd":
		if code, ok := gohook.Keycode["r"+name]; ok {
			codes = append(codes, code)
		}
	}
	return codes
}
