// Package clock provides an injectable wall clock so time-dependent
// behavior (slot generation, missed-dose sweeps, status timestamps)
// can be tested deterministically.
package clock

import "time"

// Clock returns the current time. Production code uses System; tests
// use a Fixed clock pinned to a known instant.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant until advanced.
type Fixed struct {
	T time.Time
}

// NewFixed creates a Fixed clock pinned to t.
func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
