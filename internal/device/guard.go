package device

import "sync/atomic"

// Guard makes a listener's start idempotent. The first caller of Begin wins;
// the flag is never cleared, so a failed installation cannot be retried in
// the same process.
type Guard struct {
	listening atomic.Bool
}

// Begin atomically flips the guard from idle to listening and reports
// whether this caller did the flip.
func (g *Guard) Begin() bool {
	return g.listening.CompareAndSwap(false, true)
}

// Listening reports whether a start has been attempted
func (g *Guard) Listening() bool {
	return g.listening.Load()
}
