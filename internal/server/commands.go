package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oblq/fanctl/internal/state"
)

var (
	ErrInvalidValue   = errors.New("invalid pwm value")
	ErrUnknownCommand = errors.New("unknown command")
)

const (
	statusFormat = "\n\nCurrent system status:\nTemperature: %.1f C\nHumidity: %.1f %%\nFan Speed: %.1f RPM\n\n"

	respAuto           = "Fan control set to automatic mode\n\n"
	respManualFormat   = "PWM set to %d%%\n\n"
	respInvalidValue   = "Error: Invalid PWM value. Use 0-100 or -1 for automatic control\n\n"
	respUnknownCommand = "Error: Unknown command\n\n"
)

// AutoValue is the setpwm argument that gives control back to the thermostat.
const AutoValue = -1

type verb uint8

const (
	verbStatus verb = iota + 1
	verbSetPWM
)

type command struct {
	verb  verb
	value int
}

// parseCommand matches verbs by prefix, case-sensitive.
func parseCommand(line string) (command, error) {
	switch {
	case strings.HasPrefix(line, "status"):
		return command{verb: verbStatus}, nil

	case strings.HasPrefix(line, "setpwm"):
		arg := strings.TrimPrefix(line, "setpwm")
		if !strings.HasPrefix(arg, " ") {
			return command{verb: verbSetPWM}, ErrInvalidValue
		}
		// the value starts right after the single space: digits or "-1"
		fields := strings.Fields(arg[1:])
		if len(fields) == 0 || arg[1] == ' ' || arg[1] == '\t' || arg[1] == '+' {
			return command{verb: verbSetPWM}, ErrInvalidValue
		}
		v, err := strconv.Atoi(fields[0])
		if err != nil || (v != AutoValue && (v < 0 || v > 100)) {
			return command{verb: verbSetPWM}, ErrInvalidValue
		}
		return command{verb: verbSetPWM, value: v}, nil
	}

	return command{}, ErrUnknownCommand
}

func statusResponse(snap state.Snapshot) string {
	return fmt.Sprintf(statusFormat, snap.Temperature, snap.Humidity, snap.RPM)
}

// execute runs a parsed command and returns the response text.
func (s *Server) execute(cmd command, err error) string {
	switch {
	case errors.Is(err, ErrInvalidValue):
		return respInvalidValue
	case err != nil:
		return respUnknownCommand
	}

	switch cmd.verb {
	case verbStatus:
		return statusResponse(s.state.Snapshot())
	case verbSetPWM:
		if cmd.value == AutoValue {
			s.fan.SetAuto()
			return respAuto
		}
		s.fan.SetManual(uint8(cmd.value))
		return fmt.Sprintf(respManualFormat, cmd.value)
	}
	return respUnknownCommand
}
