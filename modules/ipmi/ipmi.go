package ipmi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oblq/fanctl/internal/exec"
	"github.com/oblq/fanctl/modules/dht"
)

// fanMode is the ipmi fan mode.
type fanMode string

const (
	FanModeStandard fanMode = "00"
	FanModeFull     fanMode = "01"
	FanModeOptimal  fanMode = "02"
	FanModeHeavyIO  fanMode = "04"
)

// IPMI is an ipmitool interface to handle a fan zone duty-cycle.
type IPMI struct {
	// CMD is the ipmitool preamble command,
	// could be act locally or on remote machines,
	// depending on the parameters.
	CMD string

	// Zone is the fan zone, cpu_zone: 0x00, io_zone: 0x01.
	Zone uint8

	// TempEntity is the entityID to look for in `ipmitool sdr entity`.
	TempEntity string

	// FanSensor is the sensor name used for the speed, eg.: FAN1.
	// Empty means no tachometer.
	FanSensor string

	log *zap.Logger

	command     func(ctx context.Context, cmd string) (string, error)
	commandPipe func(ctx context.Context, cmd string) (string, error)
}

// New return a new IPMI instance.
func New(cmd string, zone uint8, tempEntity, fanSensor string, logger *zap.Logger) *IPMI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IPMI{
		CMD:         cmd,
		Zone:        zone,
		TempEntity:  tempEntity,
		FanSensor:   fanSensor,
		log:         logger.Named("ipmi"),
		command:     exec.Command,
		commandPipe: exec.CommandPipe,
	}
}

// Open switches the BMC to full mode, the only mode honoring raw zone
// duty-cycles.
func (ipmi *IPMI) Open(ctx context.Context) error {
	currMode, err := ipmi.GetFanMode(ctx)
	if err != nil {
		return err
	}
	if currMode != string(FanModeFull) {
		return ipmi.SetFanMode(ctx, FanModeFull)
	}
	return nil
}

// GetFanMode return the fan mode currently used by ipmi.
func (ipmi *IPMI) GetFanMode(ctx context.Context) (string, error) {
	out, err := ipmi.command(ctx, fmt.Sprintf("%s raw 0x30 0x45 0x00", ipmi.CMD))
	if err != nil {
		return "", fmt.Errorf("error getting fan mode: %w", err)
	}
	return strings.Trim(out, " "), nil
}

// SetFanMode set ipmi fan mode.
func (ipmi *IPMI) SetFanMode(ctx context.Context, mode fanMode) error {
	if _, err := ipmi.command(ctx, fmt.Sprintf("%s raw 0x30 0x45 0x01 %s", ipmi.CMD, mode)); err != nil {
		return fmt.Errorf("error setting fan mode to %s: %w", mode, err)
	}
	ipmi.log.Info("fan mode set", zap.String("mode", string(mode)))
	return nil
}

// GetDutyCycle return the zone duty-cycle.
func (ipmi *IPMI) GetDutyCycle(ctx context.Context) (uint8, error) {
	out, err := ipmi.command(ctx, fmt.Sprintf("%s raw 0x30 0x70 0x66 0x00 %#02x", ipmi.CMD, ipmi.Zone))
	if err != nil {
		return 0, fmt.Errorf("error getting duty cycle for zone '%v': %w", ipmi.Zone, err)
	}

	out = strings.Trim(out, " ")
	dc, err := strconv.ParseUint(out, 16, 8)
	return uint8(dc), err
}

// ---------------------------------------------------------------------------------------------------------------------

// module interface implementation
func (ipmi *IPMI) Name() string {
	return "ipmi"
}

// fan output interface implementation.
func (ipmi *IPMI) SetDutyCycle(dc uint8) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmdString := fmt.Sprintf("%s raw 0x30 0x70 0x66 0x01 %#02x %#02x", ipmi.CMD, ipmi.Zone, dc)
	if _, err := ipmi.command(ctx, cmdString); err != nil {
		return fmt.Errorf("error setting duty cycle for zone '%v' to %d%%: %w", ipmi.Zone, dc, err)
	}
	return nil
}

// sensor interface implementation, the BMC has no humidity sensor.
func (ipmi *IPMI) Measure(ctx context.Context) dht.Reading {
	temp, err := ipmi.GetTemp(ctx, ipmi.TempEntity)
	if err != nil {
		ipmi.log.Debug("temperature not available", zap.Error(err))
		return dht.Reading{Status: dht.StatusTimeout}
	}
	return dht.Reading{Temperature: temp, Status: dht.StatusOK}
}

func (ipmi *IPMI) GetTemp(ctx context.Context, entityID string) (temp float64, err error) {
	var tString string
	cmdString := fmt.Sprintf("%s sdr entity %s | cut -d '|' -f 5 | cut -d ' ' -f2", ipmi.CMD, entityID)
	tString, err = ipmi.commandPipe(ctx, cmdString)
	if err != nil {
		return
	}
	if tString == "" {
		err = fmt.Errorf("entityID not found: %s", entityID)
		return
	}

	tString = strings.Trim(tString, " .")
	return strconv.ParseFloat(tString, 64)
}

// tachometer interface implementation, reads `ipmitool sensor reading`.
func (ipmi *IPMI) ReadRPM(ctx context.Context, _ time.Duration) (float64, error) {
	if ipmi.FanSensor == "" {
		return 0, nil
	}

	out, err := ipmi.command(ctx, fmt.Sprintf("%s sensor reading %s", ipmi.CMD, ipmi.FanSensor))
	if err != nil {
		return 0, fmt.Errorf("error reading fan sensor %s: %w", ipmi.FanSensor, err)
	}

	// FAN1             | 1500
	fields := strings.Split(out, "|")
	if len(fields) != 2 {
		return 0, fmt.Errorf("unexpected sensor reading: `%s`", out)
	}
	return strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
}
