package device

import "sync"

// Bounds of the accumulated cursor position
const (
	MaxX = 3000
	MaxY = 1500
)

// Accumulator turns relative mouse deltas into a bounded absolute position
type Accumulator struct {
	mu  sync.Mutex
	pos Point
}

// NewAccumulator returns an accumulator at (0, 0)
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add applies a delta, clamps both axes and returns the stored position.
// It runs on the window's message-pump thread, so it must not block.
func (a *Accumulator) Add(dx, dy int) Point {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pos.X = clamp(a.pos.X+dx, 0, MaxX)
	a.pos.Y = clamp(a.pos.Y+dy, 0, MaxY)
	return a.pos
}

// Position returns the current stored position
func (a *Accumulator) Position() Point {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
