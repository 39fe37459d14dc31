package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	NetworkModeAsync = "async"
	NetworkModePoll  = "poll"

	BackendSim          = "sim"
	BackendCommanderPro = "commanderpro"
	BackendIPMI         = "ipmi"
	BackendCLI          = "cli"
)

// Config is the daemon configuration. Every field has a compiled-in
// default, the yaml file and FANCTL_* variables only override them.
type Config struct {
	Loop     LoopConfig     `yaml:"loop"`
	Fan      FanConfig      `yaml:"fan"`
	Server   ServerConfig   `yaml:"server"`
	Hardware HardwareConfig `yaml:"hardware"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoopConfig struct {
	// Interval is the sleep between two measurement cycles.
	// DHT22 sensors need at least 2s between reads.
	Interval time.Duration `yaml:"interval" env:"FANCTL_LOOP_INTERVAL" env-default:"2s"`

	// NetworkMode is async (server in its own goroutine) or poll
	// (the control loop services the server between cycles).
	NetworkMode string `yaml:"network_mode" env:"FANCTL_NETWORK_MODE" env-default:"async"`
}

type FanConfig struct {
	// Threshold in °C, above it the fan runs at MaxSpeed in auto mode.
	Threshold float64 `yaml:"threshold" env:"FANCTL_THRESHOLD" env-default:"25"`

	// MaxSpeed is the duty cycle, in percent, used above Threshold.
	MaxSpeed uint8 `yaml:"max_speed" env:"FANCTL_MAX_SPEED" env-default:"100"`

	PWMFrequency uint32 `yaml:"pwm_frequency" env:"FANCTL_PWM_FREQUENCY" env-default:"25000"`
	PWMClock     uint32 `yaml:"pwm_clock" env:"FANCTL_PWM_CLOCK" env-default:"125000000"`
}

type ServerConfig struct {
	Listen       string        `yaml:"listen" env:"FANCTL_LISTEN" env-default:":4242"`
	FrameSize    int           `yaml:"frame_size" env:"FANCTL_FRAME_SIZE" env-default:"1460"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"FANCTL_IDLE_TIMEOUT" env-default:"60s"`
	PollInterval time.Duration `yaml:"poll_interval" env:"FANCTL_POLL_INTERVAL" env-default:"50ms"`
}

type HardwareConfig struct {
	// Backend is one of sim, commanderpro, ipmi, cli.
	Backend string `yaml:"backend" env:"FANCTL_BACKEND" env-default:"sim"`

	// SensorModel is dht11 or dht22, used by the sim backend sensor bus.
	SensorModel string `yaml:"sensor_model" env:"FANCTL_SENSOR_MODEL" env-default:"dht22"`

	Sim          SimConfig          `yaml:"sim"`
	CommanderPro CommanderProConfig `yaml:"commanderpro"`
	IPMI         IPMIConfig         `yaml:"ipmi"`
	CLI          CLIConfig          `yaml:"cli"`
}

type SimConfig struct {
	Ambient  float64 `yaml:"ambient" env:"FANCTL_SIM_AMBIENT" env-default:"24"`
	Humidity float64 `yaml:"humidity" env:"FANCTL_SIM_HUMIDITY" env-default:"45"`
	HeatLoad float64 `yaml:"heat_load" env:"FANCTL_SIM_HEAT_LOAD" env-default:"4"`
	MaxRPM   float64 `yaml:"max_rpm" env:"FANCTL_SIM_MAX_RPM" env-default:"2400"`
}

type CommanderProConfig struct {
	FanChannel uint8 `yaml:"fan_channel" env:"FANCTL_CP_FAN_CHANNEL"`
	TempSensor uint8 `yaml:"temp_sensor" env:"FANCTL_CP_TEMP_SENSOR"`
}

type IPMIConfig struct {
	// CMD is the ipmitool preamble, it may point to a remote BMC,
	// eg.: `ipmitool -I lanplus -H 10.0.0.2 -U admin -P secret`.
	CMD        string `yaml:"cmd" env:"FANCTL_IPMI_CMD" env-default:"ipmitool"`
	Zone       uint8  `yaml:"zone" env:"FANCTL_IPMI_ZONE"`
	TempEntity string `yaml:"temp_entity" env:"FANCTL_IPMI_TEMP_ENTITY" env-default:"3.1"`
	FanSensor  string `yaml:"fan_sensor" env:"FANCTL_IPMI_FAN_SENSOR"`
}

type CLIConfig struct {
	// SensorCMD must print `<temperature> [humidity]`.
	SensorCMD string `yaml:"sensor_cmd" env:"FANCTL_CLI_SENSOR_CMD"`
}

// Load builds the configuration in three layers: compiled-in defaults,
// the yaml file at path (if it exists), then FANCTL_* variables.
// An empty path means defaults and environment only.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	env := cfg

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
			overrideFromEnv(reflect.ValueOf(&cfg).Elem(), reflect.ValueOf(env))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideFromEnv copies from src into dst every field whose env
// variable is set, so the environment wins over the file while a zero
// written in the file survives.
func overrideFromEnv(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		field := dst.Type().Field(i)
		if field.Type.Kind() == reflect.Struct {
			overrideFromEnv(dst.Field(i), src.Field(i))
			continue
		}
		name, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Loop.Interval < 100*time.Millisecond {
		return fmt.Errorf("loop interval must be at least 100ms, got %s", c.Loop.Interval)
	}

	switch c.Loop.NetworkMode {
	case NetworkModeAsync, NetworkModePoll:
	default:
		return fmt.Errorf("network_mode must be 'async' or 'poll', got '%s'", c.Loop.NetworkMode)
	}

	if c.Fan.MaxSpeed > 100 {
		return fmt.Errorf("max_speed must be between 0 and 100, got %d", c.Fan.MaxSpeed)
	}

	if c.Fan.PWMFrequency == 0 || c.Fan.PWMClock == 0 {
		return fmt.Errorf("pwm_frequency and pwm_clock must be positive")
	}

	if c.Server.FrameSize < 16 || c.Server.FrameSize > 65535 {
		return fmt.Errorf("frame_size must be between 16 and 65535, got %d", c.Server.FrameSize)
	}

	if c.Server.IdleTimeout <= 0 || c.Server.PollInterval <= 0 {
		return fmt.Errorf("idle_timeout and poll_interval must be positive")
	}

	switch c.Hardware.Backend {
	case BackendSim, BackendCommanderPro, BackendIPMI:
	case BackendCLI:
		if c.Hardware.CLI.SensorCMD == "" {
			return fmt.Errorf("cli backend requires hardware.cli.sensor_cmd")
		}
	default:
		return fmt.Errorf("unknown hardware backend '%s'", c.Hardware.Backend)
	}

	switch c.Hardware.SensorModel {
	case "dht11", "dht22":
	default:
		return fmt.Errorf("sensor_model must be 'dht11' or 'dht22', got '%s'", c.Hardware.SensorModel)
	}

	return ValidateLogging(&c.Logging)
}

// PrintConfig logs the effective configuration.
func (c *Config) PrintConfig(logger *zap.Logger) {
	logger.Info("configuration loaded",
		zap.Duration("loop_interval", c.Loop.Interval),
		zap.String("network_mode", c.Loop.NetworkMode),
		zap.Float64("threshold", c.Fan.Threshold),
		zap.Uint8("max_speed", c.Fan.MaxSpeed),
		zap.Uint32("pwm_frequency", c.Fan.PWMFrequency),
		zap.String("listen", c.Server.Listen),
		zap.Int("frame_size", c.Server.FrameSize),
		zap.Duration("idle_timeout", c.Server.IdleTimeout),
		zap.String("backend", c.Hardware.Backend),
		zap.String("sensor_model", c.Hardware.SensorModel),
		zap.String("log_format", c.Logging.Format),
		zap.String("log_level", c.Logging.Level),
	)
}
