// Package popup drives the overlay through Idle → Loading → Showing →
// FadingOut → Idle. All state, timers and renderer calls belong to the
// goroutine running Machine.Run; other goroutines only Post events or Dismiss.
package popup

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"a9i/src/messages"
)

// State is the popup lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateShowing
	StateFadingOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateShowing:
		return "showing"
	case StateFadingOut:
		return "fading_out"
	default:
		return "unknown"
	}
}

// Style tells the renderer which look to apply to the text.
type Style int

const (
	StyleLoading Style = iota
	StyleResult
)

// Renderer is the display surface. Calls arrive from the Run goroutine only.
type Renderer interface {
	SetText(text string, style Style)
	Move(p messages.Point)
	SetOpacity(opacity float64)
	Show()
	Hide()
}

const (
	DefaultEllipsisInterval = 400 * time.Millisecond
	DefaultAutoHide         = 7 * time.Second
	DefaultFadeDuration     = 250 * time.Millisecond
	DefaultFrameInterval    = 16 * time.Millisecond
	eventBuffer             = 16
)

// DefaultOffset places the popup below and to the right of the pointer.
var DefaultOffset = messages.Point{X: 25, Y: 25}

type Timings struct {
	Offset           messages.Point
	EllipsisInterval time.Duration
	AutoHide         time.Duration
	FadeDuration     time.Duration
	FrameInterval    time.Duration
}

func (t Timings) withDefaults() Timings {
	if t.EllipsisInterval <= 0 {
		t.EllipsisInterval = DefaultEllipsisInterval
	}
	if t.AutoHide <= 0 {
		t.AutoHide = DefaultAutoHide
	}
	if t.FadeDuration < 0 {
		t.FadeDuration = 0
	}
	if t.FrameInterval <= 0 {
		t.FrameInterval = DefaultFrameInterval
	}
	return t
}

type Options struct {
	Renderer Renderer
	Timings  Timings
	// Place maps the desired top-left corner to an on-screen one.
	Place func(messages.Point) messages.Point
	// OnStateChange is called from the Run goroutine after every transition.
	OnStateChange func(State)
	Logger        *slog.Logger
}

// Machine is the popup state machine.
type Machine struct {
	r       Renderer
	t       Timings
	place   func(messages.Point) messages.Point
	onState func(State)
	log     *slog.Logger

	events  chan messages.Message
	dismiss chan struct{}
	current atomic.Int32

	// Owned by Run.
	state    State
	mode     messages.Mode
	dots     int
	visible  bool
	opacity  float64
	ellipsis *time.Ticker
	autoHide *time.Timer
	fade     *fade
}

type fade struct {
	from, to float64
	start    time.Time
	dur      time.Duration
	frames   *time.Ticker
}

// New creates a Machine; call Run to start processing.
func New(opts Options) *Machine {
	place := opts.Place
	if place == nil {
		place = func(p messages.Point) messages.Point { return p }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		r:       opts.Renderer,
		t:       opts.Timings.withDefaults(),
		place:   place,
		onState: opts.OnStateChange,
		log:     log.With("component", "popup"),
		events:  make(chan messages.Message, eventBuffer),
		dismiss: make(chan struct{}, 1),
	}
}

// Post delivers a lifecycle event. It only waits when the buffer is full,
// and gives up when ctx is done.
func (m *Machine) Post(ctx context.Context, msg messages.Message) {
	select {
	case m.events <- msg:
	case <-ctx.Done():
	}
}

// Dismiss reports an explicit user dismissal (pointer press on the popup).
func (m *Machine) Dismiss() {
	select {
	case m.dismiss <- struct{}{}:
	default:
	}
}

// State returns the most recent state published by Run.
func (m *Machine) State() State { return State(m.current.Load()) }

// Run processes events and timers until ctx is cancelled.
func (m *Machine) Run(ctx context.Context) error {
	defer m.stopTimers()
	for {
		var tickC, hideC, frameC <-chan time.Time
		if m.ellipsis != nil {
			tickC = m.ellipsis.C
		}
		if m.autoHide != nil {
			hideC = m.autoHide.C
		}
		if m.fade != nil {
			frameC = m.fade.frames.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.events:
			m.handle(msg)
		case <-m.dismiss:
			m.userDismiss()
		case <-tickC:
			m.dots = m.dots%maxDots + 1
			m.r.SetText(loadingLabel(m.mode, m.dots), StyleLoading)
		case <-hideC:
			m.autoHide = nil
			if m.state == StateShowing {
				m.startFadeOut()
			}
		case now := <-frameC:
			m.stepFade(now)
		}
	}
}

func (m *Machine) handle(msg messages.Message) {
	switch ev := msg.(type) {
	case messages.LoadingStarted:
		m.showLoading(ev)
	case messages.ResultReady:
		if m.state != StateLoading {
			m.log.Debug("dropping stale result", "state", m.state)
			return
		}
		m.showResult(ev)
	case messages.Dismissed:
		switch m.state {
		case StateLoading, StateShowing:
			m.startFadeOut()
		}
	default:
		m.log.Warn("unknown popup event", "type", msg.Type())
	}
}

// showLoading is valid from every state; a running fade-out is abandoned.
func (m *Machine) showLoading(ev messages.LoadingStarted) {
	m.stopFade()
	m.stopAutoHide()
	m.stopEllipsis()

	m.mode = ev.Mode
	m.dots = maxDots
	m.r.SetText(loadingLabel(ev.Mode, m.dots), StyleLoading)
	m.r.Move(m.place(ev.Pos.Add(m.t.Offset)))
	if !m.visible {
		m.r.Show()
		m.visible = true
	}
	m.setState(StateLoading)
	m.startFade(1)
	m.ellipsis = time.NewTicker(m.t.EllipsisInterval)
}

func (m *Machine) showResult(ev messages.ResultReady) {
	m.stopEllipsis()
	m.stopFade()
	m.stopAutoHide()

	m.r.SetText(ev.Text, StyleResult)
	if !m.visible {
		m.r.Move(m.place(ev.Pos.Add(m.t.Offset)))
		m.r.Show()
		m.visible = true
	}
	m.setState(StateShowing)
	m.startFade(1)
	m.autoHide = time.NewTimer(m.t.AutoHide)
}

func (m *Machine) userDismiss() {
	switch m.state {
	case StateLoading, StateShowing:
		m.startFadeOut()
	}
}

func (m *Machine) startFadeOut() {
	m.stopEllipsis()
	m.stopAutoHide()
	m.stopFade()
	m.setState(StateFadingOut)
	m.startFade(0)
}

func (m *Machine) startFade(to float64) {
	if m.t.FadeDuration == 0 {
		m.fade = &fade{from: m.opacity, to: to}
		m.finishFade()
		return
	}
	m.fade = &fade{
		from:   m.opacity,
		to:     to,
		start:  time.Now(),
		dur:    m.t.FadeDuration,
		frames: time.NewTicker(m.t.FrameInterval),
	}
}

func (m *Machine) stepFade(now time.Time) {
	f := m.fade
	p := float64(now.Sub(f.start)) / float64(f.dur)
	if p >= 1 {
		m.finishFade()
		return
	}
	m.opacity = f.from + (f.to-f.from)*easeOutCubic(p)
	m.r.SetOpacity(m.opacity)
}

func (m *Machine) finishFade() {
	to := m.fade.to
	m.stopFade()
	m.opacity = to
	m.r.SetOpacity(to)
	if m.state == StateFadingOut {
		m.r.Hide()
		m.visible = false
		m.opacity = 0
		m.setState(StateIdle)
	}
}

func (m *Machine) setState(s State) {
	if m.state == s {
		return
	}
	m.log.Debug("popup transition", "from", m.state, "to", s)
	m.state = s
	m.current.Store(int32(s))
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Machine) stopEllipsis() {
	if m.ellipsis != nil {
		m.ellipsis.Stop()
		m.ellipsis = nil
	}
}

func (m *Machine) stopAutoHide() {
	if m.autoHide != nil {
		m.autoHide.Stop()
		m.autoHide = nil
	}
}

func (m *Machine) stopFade() {
	if m.fade != nil {
		if m.fade.frames != nil {
			m.fade.frames.Stop()
		}
		m.fade = nil
	}
}

func (m *Machine) stopTimers() {
	m.stopEllipsis()
	m.stopAutoHide()
	m.stopFade()
}

// maxDots is the full ellipsis shown on the first loading frame; later ticks
// cycle 1..maxDots.
const maxDots = 3

func loadingLabel(mode messages.Mode, dots int) string {
	return "A9I " + mode.Label() + strings.Repeat(".", dots)
}

func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}
