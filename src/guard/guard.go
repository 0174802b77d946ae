package guard

import "sync/atomic"

// Guard is an exclusive token: at most one holder between TryEnter and Exit.
type Guard struct {
	busy atomic.Bool
}

// TryEnter marks the guard busy and returns true iff it was free.
func (g *Guard) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Exit releases the guard. Releasing a free guard panics: every successful
// TryEnter must be paired with exactly one Exit.
func (g *Guard) Exit() {
	if !g.busy.CompareAndSwap(true, false) {
		panic("guard: Exit called on a free guard")
	}
}

// Busy reports whether a holder is currently inside the guard.
func (g *Guard) Busy() bool { return g.busy.Load() }
