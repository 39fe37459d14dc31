// Package sim is a simulated fan controller board: a PWM slice, a fan with
// a tachometer output and a DHT sensor in a ventilated enclosure.
package sim

import (
	"context"

	"github.com/oblq/fanctl/modules/dht"
	"github.com/oblq/fanctl/modules/tach"
)

type Config struct {
	Ambient  float64
	Humidity float64
	HeatLoad float64
	MaxRPM   float64
	Model    dht.Model
}

// Board wires the simulated parts together. The PWM driver programs Slice,
// the fan reports edges to the given handler, the sensor is read through Bus.
type Board struct {
	Slice *Slice
	Fan   *Fan
	Env   *Environment
	Bus   *Bus
}

func NewBoard(cfg Config, edges tach.EdgeHandler, clock tach.Clock) *Board {
	b := &Board{Slice: &Slice{}}
	b.Fan = NewFan(b.Slice, edges, clock, cfg.MaxRPM, DefaultSpinUp)
	b.Env = NewEnvironment(cfg.Ambient, cfg.Humidity, cfg.HeatLoad, b.Fan.Fraction)
	b.Bus = NewBus(b.Env, cfg.Model)
	return b
}

// Run spins the fan until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	return b.Fan.Run(ctx)
}

func (b *Board) Name() string {
	return "sim"
}
