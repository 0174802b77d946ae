package hotkey

import (
	"context"
	"errors"
	"testing"
	"time"

	gohook "github.com/robotn/gohook"

	"a9i/src/messages"
)

func TestKeyNameToRawcodes(t *testing.T) {
	tests := []struct {
		keyName  string
		expected []uint16
	}{
		// Modifier keys
		{"ctrl", []uint16{162, 163}},
		{"alt", []uint16{164, 165}},
		{"shift", []uint16{160, 161}},
		{"win", []uint16{91, 92}},
		{"cmd", []uint16{91, 92}},
		{"super", []uint16{91, 92}},

		// Letter keys
		{"q", []uint16{81}},
		{"e", []uint16{69}},
		{"t", []uint16{84}},
		{"D", []uint16{68}},

		// Number keys
		{"0", []uint16{48}},
		{"9", []uint16{57}},

		// Function keys
		{"f1", []uint16{112}},
		{"f12", []uint16{123}},
		{"f24", []uint16{135}},
		{"f25", nil},

		// Special keys
		{"space", []uint16{32}},
		{"return", []uint16{13}},
		{"escape", []uint16{27}},

		{"unknown", nil},
	}

	for _, tt := range tests {
		t.Run(tt.keyName, func(t *testing.T) {
			result := keyNameToRawcodes(tt.keyName)
			if len(result) != len(tt.expected) {
				t.Fatalf("keyNameToRawcodes(%q) returned %d rawcodes, expected %d",
					tt.keyName, len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("keyNameToRawcodes(%q)[%d] = %d, expected %d",
						tt.keyName, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"Ctrl+Alt+T", []string{"ctrl", "alt", "t"}},
		{"ctrl + alt + d", []string{"ctrl", "alt", "d"}},
		{"Alt+F4", []string{"alt", "f4"}},
		{"Ctrl+Win+E", []string{"ctrl", "cmd", "e"}},
		{"Super+Alt+T", []string{"cmd", "alt", "t"}},
		{"Control+Option+Escape", []string{"ctrl", "alt", "esc"}},
		{"+", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseHotkey(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseHotkey(%q) returned %v, expected %v", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("parseHotkey(%q)[%d] = %q, expected %q",
						tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

type fakeSource struct {
	ch      chan gohook.Event
	stopped chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan gohook.Event, 32), stopped: make(chan struct{})}
}

func (f *fakeSource) Start() chan gohook.Event { return f.ch }
func (f *fakeSource) Stop()                    { close(f.stopped) }

func press(code uint16) gohook.Event   { return gohook.Event{Kind: gohook.KeyHold, Keycode: code, Rawcode: code} }
func release(code uint16) gohook.Event { return gohook.Event{Kind: gohook.KeyUp, Keycode: code, Rawcode: code} }

// runListener feeds events through a rawcode-matching listener and returns
// the modes it triggered.
func runListener(t *testing.T, bindings []Binding, events []gohook.Event) []messages.Mode {
	t.Helper()
	var got []messages.Mode
	src := newFakeSource()
	l, err := New(bindings, func(m messages.Mode) { got = append(got, m) },
		WithSource(src), WithRawcodes(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, ev := range events {
		src.ch <- ev
	}
	close(src.ch)
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return got
}

var defaultBindings = []Binding{
	{Combo: "ctrl+alt+t", Mode: messages.ModeTranslate},
	{Combo: "ctrl+alt+d", Mode: messages.ModeDefine},
}

const (
	vkCtrl  = 162
	vkRCtrl = 163
	vkAlt   = 164
	vkT     = 84
	vkD     = 68
)

func TestListenerDispatchesBoundMode(t *testing.T) {
	got := runListener(t, defaultBindings, []gohook.Event{
		press(vkCtrl), press(vkAlt), press(vkT),
		release(vkT), release(vkAlt), release(vkCtrl),
		press(vkRCtrl), press(vkAlt), press(vkD),
	})
	want := []messages.Mode{messages.ModeTranslate, messages.ModeDefine}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestListenerIgnoresAutoRepeat(t *testing.T) {
	got := runListener(t, defaultBindings, []gohook.Event{
		press(vkCtrl), press(vkAlt), press(vkT), press(vkT), press(vkT),
	})
	if len(got) != 1 {
		t.Fatalf("expected a single trigger while keys are held, got %v", got)
	}
}

func TestListenerReleaseBreaksCombo(t *testing.T) {
	got := runListener(t, defaultBindings, []gohook.Event{
		press(vkCtrl), release(vkCtrl), press(vkAlt), press(vkT),
	})
	if len(got) != 0 {
		t.Fatalf("expected no trigger after ctrl was released, got %v", got)
	}
}

func TestListenerKeycodeMatching(t *testing.T) {
	var got []messages.Mode
	src := newFakeSource()
	l, err := New(defaultBindings[:1], func(m messages.Mode) { got = append(got, m) },
		WithSource(src), WithRawcodes(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"ctrl", "alt", "t"} {
		src.ch <- gohook.Event{Kind: gohook.KeyHold, Keycode: gohook.Keycode[name]}
	}
	close(src.ch)
	_ = l.Run(context.Background())
	if len(got) != 1 || got[0] != messages.ModeTranslate {
		t.Fatalf("expected translate via gohook keycodes, got %v", got)
	}
}

func TestListenerStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	l, err := New(defaultBindings, nil, WithSource(src), WithRawcodes(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("event source was not stopped")
	}
}

func TestNewRejectsBadBindings(t *testing.T) {
	tests := []struct {
		name     string
		bindings []Binding
	}{
		{"none", nil},
		{"empty combo", []Binding{{Combo: "", Mode: messages.ModeDefault}}},
		{"unknown key", []Binding{{Combo: "ctrl+hyper", Mode: messages.ModeDefault}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.bindings, nil, WithRawcodes(true)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
