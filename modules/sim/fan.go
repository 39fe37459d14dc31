package sim

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/oblq/fanctl/modules/tach"
)

const (
	// DefaultMaxRPM keeps the edge interval above the tach debounce
	// (2400 RPM is 80 edges/s, one every 12.5ms).
	DefaultMaxRPM = 2400

	// DefaultSpinUp is the time constant of the rotor speed.
	DefaultSpinUp = 500 * time.Millisecond

	// stallRPM is the speed under which the rotor counts as stopped.
	stallRPM = 60

	idleTick = 20 * time.Millisecond
)

// Fan is a rotor following the PWM duty of a Slice. While running it emits
// tachometer edges from its own goroutine, the way a GPIO interrupt would.
type Fan struct {
	slice  *Slice
	edges  tach.EdgeHandler
	clock  tach.Clock
	maxRPM float64
	spinUp time.Duration

	rpm atomic.Uint64 // float64 bits
}

func NewFan(slice *Slice, edges tach.EdgeHandler, clock tach.Clock, maxRPM float64, spinUp time.Duration) *Fan {
	if maxRPM <= 0 {
		maxRPM = DefaultMaxRPM
	}
	if spinUp <= 0 {
		spinUp = DefaultSpinUp
	}
	return &Fan{slice: slice, edges: edges, clock: clock, maxRPM: maxRPM, spinUp: spinUp}
}

// RPM is the true rotor speed.
func (f *Fan) RPM() float64 {
	return math.Float64frombits(f.rpm.Load())
}

// Fraction is the rotor speed relative to its maximum.
func (f *Fan) Fraction() float64 {
	return f.RPM() / f.maxRPM
}

// Run spins the rotor until ctx is done.
func (f *Fan) Run(ctx context.Context) error {
	timer := time.NewTimer(idleTick)
	defer timer.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-timer.C:
			timer.Reset(f.tick(now.Sub(last)))
			last = now
		}
	}
}

// tick advances the rotor by dt, emits one edge if it is spinning and
// returns the delay until the next tick.
func (f *Fan) tick(dt time.Duration) time.Duration {
	rpm := f.step(dt)
	if rpm < stallRPM {
		return idleTick
	}

	f.edges.OnEdge(f.clock.Now())
	return edgeInterval(rpm)
}

// step moves the rotor speed toward the PWM target over dt.
func (f *Fan) step(dt time.Duration) float64 {
	target := f.slice.Duty() * f.maxRPM
	current := f.RPM()

	k := 1 - math.Exp(-dt.Seconds()/f.spinUp.Seconds())
	next := current + (target-current)*k
	if next < 1 {
		next = 0
	}

	f.rpm.Store(math.Float64bits(next))
	return next
}

func edgeInterval(rpm float64) time.Duration {
	return time.Duration(float64(time.Minute) / (rpm * tach.PulsesPerRevolution))
}
