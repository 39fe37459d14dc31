package tach

import (
	"sync/atomic"
	"time"
)

const (
	// Debounce is the shortest accepted interval between two edges,
	// anything closer is contact bounce or noise.
	Debounce = 10 * time.Millisecond

	// StaleAfter is how long without edges before the fan counts as stopped.
	StaleAfter = time.Second

	// PulsesPerRevolution of a standard PC fan tachometer.
	PulsesPerRevolution = 2
)

// EdgeHandler receives tachometer edges. Timestamps are monotonic,
// measured from an arbitrary origin (boot time on a microcontroller).
type EdgeHandler interface {
	OnEdge(ts time.Duration)
}

// Sample is a consistent read of the capture state.
type Sample struct {
	LastEdge time.Duration
	RPM      float64
}

// Capture converts filtered pulse widths to RPM.
// OnEdge is safe to call from an interrupt-like context: it never blocks
// and publishes edge time and speed together as one immutable Sample.
type Capture struct {
	current atomic.Pointer[Sample]
}

// New returns an idle Capture, reporting 0 RPM.
func New() *Capture {
	c := &Capture{}
	c.current.Store(&Sample{})
	return c
}

// OnEdge implements EdgeHandler.
func (c *Capture) OnEdge(ts time.Duration) {
	pulseWidth := ts - c.current.Load().LastEdge
	if pulseWidth <= Debounce {
		return
	}

	freq := 1 / pulseWidth.Seconds()
	rpm := freq / PulsesPerRevolution * 60

	c.current.Store(&Sample{LastEdge: ts, RPM: rpm})
}

// Expire zeroes the stored RPM when no edge arrived within StaleAfter.
// It returns true when the value was reset.
func (c *Capture) Expire(now time.Duration) bool {
	old := c.current.Load()
	if now-old.LastEdge <= StaleAfter || old.RPM == 0 {
		return false
	}
	// fails if an edge was published after the Load
	return c.current.CompareAndSwap(old, &Sample{LastEdge: old.LastEdge})
}

// RPM returns the current speed, 0 if the last edge is older than StaleAfter.
func (c *Capture) RPM(now time.Duration) float64 {
	return c.Sample(now).RPM
}

// Sample returns the capture state as seen at now.
func (c *Capture) Sample(now time.Duration) Sample {
	s := *c.current.Load()
	if now-s.LastEdge > StaleAfter {
		s.RPM = 0
	}
	return s
}

// Clock is a monotonic time source matching the edge timestamps.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock measures time since its creation.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (m *MonotonicClock) Now() time.Duration {
	return time.Since(m.start)
}
