package main

import (
	"context"
	"time"

	"github.com/oblq/fanctl/modules/dht"
	"github.com/oblq/fanctl/modules/tach"
)

// Sensor is a temperature/humidity source. Measure blocks for one
// transaction; failures are reported in the Reading status.
type Sensor interface {
	Name() string
	Measure(ctx context.Context) dht.Reading
}

// FanOutput applies a duty cycle, in percent, to the fan.
type FanOutput interface {
	Name() string
	SetDutyCycle(dutyCycle uint8) error
}

// Tachometer reports the fan speed as seen at now.
type Tachometer interface {
	ReadRPM(ctx context.Context, now time.Duration) (float64, error)
}

// captureTachometer reads a tach.Capture fed by an edge context,
// expiring the stored speed when edges stop.
type captureTachometer struct {
	capture *tach.Capture
}

func (t captureTachometer) ReadRPM(_ context.Context, now time.Duration) (float64, error) {
	t.capture.Expire(now)
	return t.capture.RPM(now), nil
}
