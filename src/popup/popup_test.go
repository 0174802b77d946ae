package popup

import (
	"context"
	"sync"
	"testing"
	"time"

	"a9i/src/messages"
)

type fakeRenderer struct {
	mu      sync.Mutex
	texts   []string
	styles  []Style
	moves   []messages.Point
	opacity float64
	shows   int
	hides   int
}

func (f *fakeRenderer) SetText(text string, style Style) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.styles = append(f.styles, style)
}

func (f *fakeRenderer) Move(p messages.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, p)
}

func (f *fakeRenderer) SetOpacity(o float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opacity = o
}

func (f *fakeRenderer) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shows++
}

func (f *fakeRenderer) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
}

func (f *fakeRenderer) snapshot() fakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeRenderer{
		texts:   append([]string(nil), f.texts...),
		styles:  append([]Style(nil), f.styles...),
		moves:   append([]messages.Point(nil), f.moves...),
		opacity: f.opacity,
		shows:   f.shows,
		hides:   f.hides,
	}
}

type harness struct {
	m      *Machine
	r      *fakeRenderer
	states chan State
	ctx    context.Context
}

func start(t *testing.T, timings Timings, place func(messages.Point) messages.Point) *harness {
	t.Helper()
	r := &fakeRenderer{}
	states := make(chan State, 64)
	m := New(Options{
		Renderer:      r,
		Timings:       timings,
		Place:         place,
		OnStateChange: func(s State) { states <- s },
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{m: m, r: r, states: states, ctx: ctx}
}

func (h *harness) expect(t *testing.T, want State) {
	t.Helper()
	select {
	case got := <-h.states:
		if got != want {
			t.Fatalf("expected transition to %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func (h *harness) expectNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case got := <-h.states:
		t.Fatalf("unexpected transition to %s", got)
	case <-time.After(within):
	}
}

func fastTimings() Timings {
	return Timings{
		Offset:           DefaultOffset,
		EllipsisInterval: 10 * time.Millisecond,
		AutoHide:         80 * time.Millisecond,
		FadeDuration:     20 * time.Millisecond,
		FrameInterval:    2 * time.Millisecond,
	}
}

func TestLoadingThenResultThenAutoHide(t *testing.T) {
	h := start(t, fastTimings(), nil)
	pos := messages.Point{X: 100, Y: 200}

	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeTranslate, Pos: pos})
	h.expect(t, StateLoading)

	h.m.Post(h.ctx, messages.ResultReady{Text: "hello", Pos: pos})
	h.expect(t, StateShowing)
	shownAt := time.Now()

	h.expect(t, StateFadingOut)
	if elapsed := time.Since(shownAt); elapsed < 80*time.Millisecond {
		t.Errorf("auto-hide fired after %v, expected at least 80ms", elapsed)
	}
	h.expect(t, StateIdle)

	snap := h.r.snapshot()
	if snap.texts[0] != "A9I Translating..." {
		t.Errorf("unexpected loading label %q", snap.texts[0])
	}
	if last := snap.texts[len(snap.texts)-1]; last != "hello" {
		t.Errorf("expected result text to be rendered, got %q", last)
	}
	if snap.styles[len(snap.styles)-1] != StyleResult {
		t.Error("expected result style for the final text")
	}
	if snap.shows != 1 || snap.hides != 1 {
		t.Errorf("expected one show and one hide, got %d/%d", snap.shows, snap.hides)
	}
	if len(snap.moves) != 1 || snap.moves[0] != (messages.Point{X: 125, Y: 225}) {
		t.Errorf("expected a single move to pos+offset, got %v", snap.moves)
	}
	if snap.opacity != 1 && snap.opacity != 0 {
		t.Errorf("expected opacity to settle, got %v", snap.opacity)
	}
	if h.m.State() != StateIdle {
		t.Errorf("State() = %s, want idle", h.m.State())
	}
}

func TestEllipsisCyclesDots(t *testing.T) {
	h := start(t, fastTimings(), nil)
	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeDefine})
	h.expect(t, StateLoading)
	time.Sleep(80 * time.Millisecond)

	texts := h.r.snapshot().texts
	if len(texts) == 0 || texts[0] != "A9I Defining..." {
		t.Fatalf("expected the first frame to carry a full ellipsis, got %v", texts)
	}
	seen := map[string]bool{}
	for _, s := range texts {
		seen[s] = true
	}
	if seen["A9I Defining"] {
		t.Error("loading label should never drop to zero dots")
	}
	for _, want := range []string{"A9I Defining.", "A9I Defining..", "A9I Defining..."} {
		if !seen[want] {
			t.Errorf("expected label %q among %v", want, seen)
		}
	}
	for s := range seen {
		if len(s) > len("A9I Defining...") {
			t.Errorf("dots exceeded three: %q", s)
		}
	}
}

func TestDismissedDuringLoading(t *testing.T) {
	h := start(t, fastTimings(), nil)
	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeDefault})
	h.expect(t, StateLoading)
	h.m.Post(h.ctx, messages.Dismissed{Reason: messages.ReasonEmptyCapture})
	h.expect(t, StateFadingOut)
	h.expect(t, StateIdle)

	n := len(h.r.snapshot().texts)
	time.Sleep(40 * time.Millisecond)
	if len(h.r.snapshot().texts) != n {
		t.Error("ellipsis kept ticking after dismissal")
	}
}

func TestLoadingInterruptsFadeOut(t *testing.T) {
	timings := fastTimings()
	timings.FadeDuration = time.Second
	h := start(t, timings, nil)

	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeTranslate})
	h.expect(t, StateLoading)
	h.m.Post(h.ctx, messages.Dismissed{Reason: messages.ReasonBackendError})
	h.expect(t, StateFadingOut)

	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeDefine})
	h.expect(t, StateLoading)
	h.expectNone(t, 50*time.Millisecond)

	snap := h.r.snapshot()
	if snap.hides != 0 {
		t.Error("popup must not hide when a new session interrupts the fade")
	}
	if snap.shows != 1 {
		t.Errorf("expected popup to stay shown, got %d shows", snap.shows)
	}
}

func TestStaleResultIgnoredWhenIdle(t *testing.T) {
	h := start(t, fastTimings(), nil)
	h.m.Post(h.ctx, messages.ResultReady{Text: "late"})
	h.expectNone(t, 30*time.Millisecond)
	if snap := h.r.snapshot(); len(snap.texts) != 0 || snap.shows != 0 {
		t.Error("stale result must not render anything")
	}
}

func TestDismissedWhenIdleIsNoop(t *testing.T) {
	h := start(t, fastTimings(), nil)
	h.m.Post(h.ctx, messages.Dismissed{Reason: messages.ReasonPanic})
	h.m.Dismiss()
	h.expectNone(t, 30*time.Millisecond)
	if h.r.snapshot().hides != 0 {
		t.Error("hidden popup must not be hidden again")
	}
}

func TestUserDismissCancelsAutoHide(t *testing.T) {
	timings := fastTimings()
	timings.AutoHide = time.Hour
	h := start(t, timings, nil)

	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeTranslate})
	h.expect(t, StateLoading)
	h.m.Post(h.ctx, messages.ResultReady{Text: "hello"})
	h.expect(t, StateShowing)

	h.m.Dismiss()
	h.expect(t, StateFadingOut)
	h.expect(t, StateIdle)
}

func TestStaleAutoHideDoesNotFireAfterNewLoading(t *testing.T) {
	timings := fastTimings()
	timings.AutoHide = 60 * time.Millisecond
	h := start(t, timings, nil)

	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeTranslate})
	h.expect(t, StateLoading)
	h.m.Post(h.ctx, messages.ResultReady{Text: "first"})
	h.expect(t, StateShowing)

	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeDefine})
	h.expect(t, StateLoading)
	h.expectNone(t, 150*time.Millisecond)
	if h.m.State() != StateLoading {
		t.Errorf("expected to remain loading, got %s", h.m.State())
	}
}

func TestPlacementIsApplied(t *testing.T) {
	clampTo := messages.Point{X: 10, Y: 10}
	var got messages.Point
	place := func(p messages.Point) messages.Point {
		got = p
		return clampTo
	}
	h := start(t, fastTimings(), place)
	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeTranslate, Pos: messages.Point{X: 5000, Y: 5000}})
	h.expect(t, StateLoading)

	snap := h.r.snapshot()
	if got != (messages.Point{X: 5025, Y: 5025}) {
		t.Errorf("placement received %v", got)
	}
	if len(snap.moves) != 1 || snap.moves[0] != clampTo {
		t.Errorf("expected renderer to receive placed point, got %v", snap.moves)
	}
}

func TestZeroFadeCompletesImmediately(t *testing.T) {
	timings := fastTimings()
	timings.FadeDuration = 0
	h := start(t, timings, nil)
	h.m.Post(h.ctx, messages.LoadingStarted{Mode: messages.ModeTranslate})
	h.expect(t, StateLoading)
	if o := h.r.snapshot().opacity; o != 1 {
		t.Errorf("expected opacity 1 immediately, got %v", o)
	}
	h.m.Dismiss()
	h.expect(t, StateFadingOut)
	h.expect(t, StateIdle)
}

func TestEaseOutCubic(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1, 1},
		{0.5, 0.875},
	}
	for _, tt := range tests {
		if got := easeOutCubic(tt.in); got != tt.want {
			t.Errorf("easeOutCubic(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateFadingOut.String() != "fading_out" || State(42).String() != "unknown" {
		t.Error("unexpected state names")
	}
}
