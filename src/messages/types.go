package messages

import (
	"fmt"
	"strings"
)

// Message is the base interface for all lifecycle events posted to the popup.
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypeLoadingStarted = "LoadingStarted"
	TypeResultReady    = "ResultReady"
	TypeDismissed      = "Dismissed"
)

// Mode selects which model a hotkey dispatches to.
type Mode string

const (
	ModeTranslate Mode = "translate"
	ModeDefine    Mode = "define"
	ModeDefault   Mode = "default"
)

// ParseMode converts a config or CLI string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTranslate:
		return ModeTranslate, nil
	case ModeDefine:
		return ModeDefine, nil
	case ModeDefault, "":
		return ModeDefault, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want translate, define or default)", s)
	}
}

// Label is the verb shown while a session of this mode is loading.
func (m Mode) Label() string {
	switch m {
	case ModeTranslate:
		return "Translating"
	case ModeDefine:
		return "Defining"
	default:
		return "Thinking"
	}
}

// Point is a screen coordinate in pixels.
type Point struct {
	X int
	Y int
}

// Add returns p shifted by o.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// LoadingStarted - posted as soon as a trigger is accepted, before capture begins
type LoadingStarted struct {
	Mode Mode
	Pos  Point // cursor position at trigger time
}

func (m LoadingStarted) Type() string { return TypeLoadingStarted }

// ResultReady - posted when the backend returned usable text
type ResultReady struct {
	Text string
	Pos  Point
}

func (m ResultReady) Type() string { return TypeResultReady }

// DismissReason records why a session ended without a result.
type DismissReason string

const (
	ReasonEmptyCapture DismissReason = "empty_capture"
	ReasonBackendError DismissReason = "backend_error"
	ReasonCaptureError DismissReason = "capture_error"
	ReasonPanic        DismissReason = "panic"
)

// Dismissed - posted when a session ends without a result
type Dismissed struct {
	Reason DismissReason
}

func (m Dismissed) Type() string { return TypeDismissed }
