package sim

import "sync"

// Slice is an in-memory PWM slice: it keeps the last values written to
// its registers.
type Slice struct {
	mutex sync.Mutex

	divInt  uint8
	divFrac uint8
	wrap    uint16
	level   uint16
	enabled bool
}

func (s *Slice) SetClockDivider(integer, fraction uint8) {
	s.mutex.Lock()
	s.divInt, s.divFrac = integer, fraction
	s.mutex.Unlock()
}

func (s *Slice) SetWrap(wrap uint16) {
	s.mutex.Lock()
	s.wrap = wrap
	s.mutex.Unlock()
}

func (s *Slice) SetLevel(level uint16) {
	s.mutex.Lock()
	s.level = level
	s.mutex.Unlock()
}

func (s *Slice) SetEnabled(enabled bool) {
	s.mutex.Lock()
	s.enabled = enabled
	s.mutex.Unlock()
}

// Duty returns the output high fraction in [0, 1], 0 while disabled.
func (s *Slice) Duty() float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.enabled || s.wrap == 0 {
		return 0
	}
	d := float64(s.level) / float64(s.wrap)
	if d > 1 {
		d = 1
	}
	return d
}
