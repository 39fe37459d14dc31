package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/oblq/fanctl/internal/config"
	"github.com/oblq/fanctl/modules/tach"
)

type options struct {
	Config      string `short:"c" long:"config" description:"path to the yaml configuration" default:"fanctl.yaml"`
	Backend     string `long:"backend" description:"hardware backend" choice:"sim" choice:"commanderpro" choice:"ipmi" choice:"cli"`
	Listen      string `long:"listen" description:"command server address, eg.: :4242"`
	NetworkMode string `long:"network-mode" description:"run the server in its own goroutine or from the control loop" choice:"async" choice:"poll"`
	LogLevel    string `long:"log-level" description:"log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	LogFormat   string `long:"log-format" description:"log format" choice:"console" choice:"json" choice:"logfmt"`
}

// apply overrides cfg with the flags set on the command line.
func (o *options) apply(cfg *config.Config) {
	if o.Backend != "" {
		cfg.Hardware.Backend = o.Backend
	}
	if o.Listen != "" {
		cfg.Server.Listen = o.Listen
	}
	if o.NetworkMode != "" {
		cfg.Loop.NetworkMode = o.NetworkMode
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := config.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg.PrintConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := tach.NewMonotonicClock()

	hw, err := openHardware(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer hw.Close()

	logger.Info("starting",
		zap.String("sensor", hw.sensor.Name()),
		zap.String("output", hw.output.Name()))

	if err := newDaemon(cfg, opts.Config, hw, clock, logger).Run(ctx); err != nil {
		return err
	}

	logger.Info("exiting")
	return nil
}
