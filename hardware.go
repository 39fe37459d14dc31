package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/oblq/fanctl/internal/config"
	"github.com/oblq/fanctl/modules/cli"
	"github.com/oblq/fanctl/modules/commanderpro"
	"github.com/oblq/fanctl/modules/dht"
	"github.com/oblq/fanctl/modules/ipmi"
	"github.com/oblq/fanctl/modules/pwm"
	"github.com/oblq/fanctl/modules/sim"
	"github.com/oblq/fanctl/modules/tach"
)

// hardware is the set of devices a backend provides.
type hardware struct {
	sensor     Sensor
	output     FanOutput
	tachometer Tachometer

	// board is set for the simulated backends.
	board *sim.Board

	// run, if set, drives the device (the simulated fan rotor).
	run   func(ctx context.Context) error
	close func()
}

func (hw *hardware) Close() {
	if hw.close != nil {
		hw.close()
	}
}

// openHardware opens the configured backend.
func openHardware(ctx context.Context, cfg *config.Config, clock tach.Clock, logger *zap.Logger) (*hardware, error) {
	switch cfg.Hardware.Backend {
	case config.BackendSim:
		return openSim(cfg, clock)

	case config.BackendCLI:
		hw, err := openSim(cfg, clock)
		if err != nil {
			return nil, err
		}
		hw.sensor = cli.New(cfg.Hardware.CLI.SensorCMD)
		return hw, nil

	case config.BackendCommanderPro:
		cp, err := commanderpro.Open(
			commanderpro.FanCh(cfg.Hardware.CommanderPro.FanChannel),
			commanderpro.TempSensor(cfg.Hardware.CommanderPro.TempSensor))
		if err != nil {
			return nil, fmt.Errorf("opening commanderpro: %w", err)
		}
		return &hardware{sensor: cp, output: cp, tachometer: cp, close: cp.Close}, nil

	case config.BackendIPMI:
		c := cfg.Hardware.IPMI
		i := ipmi.New(c.CMD, c.Zone, c.TempEntity, c.FanSensor, logger)
		if err := i.Open(ctx); err != nil {
			return nil, fmt.Errorf("opening ipmi: %w", err)
		}
		return &hardware{sensor: i, output: i, tachometer: i}, nil
	}

	return nil, fmt.Errorf("unknown hardware backend '%s'", cfg.Hardware.Backend)
}

// openSim builds the simulated board: the PWM driver programs its slice,
// the rotor feeds a tach.Capture and the DHT reader decodes its bus.
func openSim(cfg *config.Config, clock tach.Clock) (*hardware, error) {
	model, err := dht.ParseModel(cfg.Hardware.SensorModel)
	if err != nil {
		return nil, err
	}

	capture := tach.New()
	board := sim.NewBoard(sim.Config{
		Ambient:  cfg.Hardware.Sim.Ambient,
		Humidity: cfg.Hardware.Sim.Humidity,
		HeatLoad: cfg.Hardware.Sim.HeatLoad,
		MaxRPM:   cfg.Hardware.Sim.MaxRPM,
		Model:    model,
	}, capture, clock)

	return &hardware{
		sensor:     dht.NewReader(board.Bus, model),
		output:     pwm.New(board.Slice, cfg.Fan.PWMClock, cfg.Fan.PWMFrequency),
		tachometer: captureTachometer{capture: capture},
		board:      board,
		run:        board.Run,
	}, nil
}
