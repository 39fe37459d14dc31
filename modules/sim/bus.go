package sim

import (
	"context"
	"sync"
	"time"

	"github.com/oblq/fanctl/modules/dht"
)

// Fault is a transaction failure to inject on the next Request.
type Fault uint8

const (
	NoFault Fault = iota
	FaultNoResponse
	FaultCorrupt
)

// transaction is how long the sensor takes to clock out a frame.
const transaction = 4 * time.Millisecond

// Bus emulates a DHT sensor wired to the single-wire data line: it encodes
// the Environment into a real frame and answers with its pulse widths.
type Bus struct {
	mutex  sync.Mutex
	env    *Environment
	model  dht.Model
	faults []Fault
}

func NewBus(env *Environment, model dht.Model) *Bus {
	return &Bus{env: env, model: model}
}

// Inject queues faults, consumed one per Request.
func (b *Bus) Inject(faults ...Fault) {
	b.mutex.Lock()
	b.faults = append(b.faults, faults...)
	b.mutex.Unlock()
}

func (b *Bus) nextFault() Fault {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.faults) == 0 {
		return NoFault
	}
	f := b.faults[0]
	b.faults = b.faults[1:]
	return f
}

// Request implements dht.Bus.
func (b *Bus) Request(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error) {
	fault := b.nextFault()

	wait := transaction
	if fault == FaultNoResponse {
		wait = timeout
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	if fault == FaultNoResponse {
		return nil, dht.ErrTimeout
	}

	temperature, humidity := b.env.Read()
	frame := b.model.Encode(humidity, temperature)
	if fault == FaultCorrupt {
		frame[4]++
	}

	pulses := dht.Pulses(frame)
	if n < len(pulses) {
		pulses = pulses[:n]
	}
	return pulses, nil
}
