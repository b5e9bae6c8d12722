// Package clock abstracts block time so ledger operations are deterministic in tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current block time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock, truncated to whole seconds.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Manual is a settable clock.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual starts a manual clock at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
