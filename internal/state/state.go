// Package state holds the record shared between the control loop and the
// command server.
package state

import "sync/atomic"

// Snapshot is the most recent accepted reading plus the latest fan speed.
type Snapshot struct {
	Temperature float64
	Humidity    float64
	RPM         float64
}

// Store publishes whole snapshots, readers never see a half-written record.
type Store struct {
	current atomic.Pointer[Snapshot]
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{})
	return s
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Publish replaces the current record.
func (s *Store) Publish(snap Snapshot) {
	s.current.Store(&snap)
}

// Update applies fn to a copy of the current record and publishes the result.
// Concurrent updates are retried until one wins.
func (s *Store) Update(fn func(*Snapshot)) Snapshot {
	for {
		old := s.current.Load()
		next := *old
		fn(&next)
		if s.current.CompareAndSwap(old, &next) {
			return next
		}
	}
}
