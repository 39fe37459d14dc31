package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oblq/fanctl/internal/config"
	"github.com/oblq/fanctl/internal/server"
	"github.com/oblq/fanctl/internal/state"
	"github.com/oblq/fanctl/modules/tach"
)

// daemon runs the control loop: sensor, fan controller, shared state, sleep.
type daemon struct {
	configPath string
	configStat os.FileInfo
	config     *config.Config

	log   *zap.Logger
	clock tach.Clock

	hw         *hardware
	controller *fanController
	state      *state.Store
	server     *server.Server
}

func newDaemon(cfg *config.Config, configPath string, hw *hardware, clock tach.Clock, logger *zap.Logger) *daemon {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &daemon{
		configPath: configPath,
		config:     cfg,
		log:        logger.Named("daemon"),
		clock:      clock,
		hw:         hw,
		controller: newFanController(hw.output, cfg.Fan.Threshold, cfg.Fan.MaxSpeed, logger),
		state:      state.NewStore(),
	}

	d.server = server.New(server.Config{
		Addr:         cfg.Server.Listen,
		FrameSize:    cfg.Server.FrameSize,
		IdleTimeout:  cfg.Server.IdleTimeout,
		PollInterval: cfg.Server.PollInterval,
	}, d.controller, d.state, logger)

	if configPath != "" {
		d.configStat, _ = os.Stat(configPath)
	}

	return d
}

func (d *daemon) polling() bool {
	return d.config.Loop.NetworkMode == config.NetworkModePoll
}

// Run blocks until ctx is done or a task fails.
func (d *daemon) Run(ctx context.Context) error {
	if err := d.server.Listen(); err != nil {
		return err
	}

	if err := d.controller.start(); err != nil {
		d.log.Warn("unable to initialize fan output", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)

	if d.hw.run != nil {
		g.Go(func() error {
			return d.hw.run(ctx)
		})
	}

	if d.polling() {
		d.log.Info("network serviced from the control loop")
	} else {
		g.Go(func() error {
			return d.server.Serve(ctx)
		})
	}

	g.Go(func() error {
		return d.loop(ctx)
	})

	return g.Wait()
}

func (d *daemon) loop(ctx context.Context) error {
	if d.polling() {
		defer d.server.Close()
	}

	ticker := time.NewTicker(d.config.Loop.Interval)
	defer ticker.Stop()

	for {
		d.checkTemperature(ctx)
		d.checkConfig()

		if err := d.wait(ctx, ticker.C); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// wait blocks until the next tick, servicing the server meanwhile in poll mode.
func (d *daemon) wait(ctx context.Context, tick <-chan time.Time) error {
	if !d.polling() {
		select {
		case <-ctx.Done():
		case <-tick:
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			return nil
		default:
		}

		if err := d.server.Poll(ctx, d.config.Server.PollInterval); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("polling server: %w", err)
		}
	}
}

// checkTemperature runs one measurement cycle and publishes its outcome.
func (d *daemon) checkTemperature(ctx context.Context) {
	rpm, tachErr := d.hw.tachometer.ReadRPM(ctx, d.clock.Now())
	if tachErr != nil {
		d.log.Warn("unable to read fan speed", zap.Error(tachErr))
	}

	reading := d.hw.sensor.Measure(ctx)
	if !reading.OK() && ctx.Err() == nil {
		d.log.Warn("sensor reading failed",
			zap.String("sensor", d.hw.sensor.Name()),
			zap.Stringer("status", reading.Status),
			zap.Error(reading.Err()))
	}

	d.controller.update(reading)

	snap := d.state.Update(func(s *state.Snapshot) {
		if reading.OK() {
			s.Temperature = reading.Temperature
			s.Humidity = reading.Humidity
		}
		if tachErr == nil {
			s.RPM = rpm
		}
	})

	mode, duty := d.controller.status()
	d.log.Debug("cycle",
		zap.Float64("temperature", snap.Temperature),
		zap.Float64("humidity", snap.Humidity),
		zap.Float64("rpm", snap.RPM),
		zap.Stringer("mode", mode),
		zap.Uint8("duty", duty))
}

// checkConfig hot-reloads the fan limits when the config file changes.
func (d *daemon) checkConfig() {
	if d.configPath == "" {
		return
	}

	configStat, err := os.Stat(d.configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || d.configStat != nil {
			d.log.Warn("unable to stat config file", zap.Error(err))
		}
		return
	}

	if d.configStat != nil &&
		configStat.Size() == d.configStat.Size() && configStat.ModTime().Equal(d.configStat.ModTime()) {
		return
	}
	d.configStat = configStat

	cfg, err := config.Load(d.configPath)
	if err != nil {
		d.log.Warn("config not reloaded", zap.Error(err))
		return
	}

	d.controller.setLimits(cfg.Fan.Threshold, cfg.Fan.MaxSpeed)
	d.config.Fan.Threshold = cfg.Fan.Threshold
	d.config.Fan.MaxSpeed = cfg.Fan.MaxSpeed
	d.log.Info("config updated", zap.String("path", d.configPath))
}
