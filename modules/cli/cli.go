package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/oblq/fanctl/internal/exec"
	"github.com/oblq/fanctl/modules/dht"
)

// Cli reads temperature and humidity from an arbitrary shell command.
// The command must print `<temperature> [humidity]`.
type Cli struct {
	cmd string
	run func(ctx context.Context, cmd string) (string, error)
}

func New(cmd string) *Cli {
	return &Cli{cmd: cmd, run: exec.CommandPipe}
}

// module interface implementation
func (cli *Cli) Name() string {
	return "cli"
}

// Measure runs the command once. A failing command counts as a sensor
// timeout, output that does not parse as a bad checksum.
func (cli *Cli) Measure(ctx context.Context) dht.Reading {
	out, err := cli.run(ctx, cli.cmd)
	if err != nil || strings.TrimSpace(out) == "" {
		return dht.Reading{Status: dht.StatusTimeout}
	}

	temp, humidity, err := parse(out)
	if err != nil {
		return dht.Reading{Status: dht.StatusBadChecksum}
	}
	return dht.Reading{Temperature: temp, Humidity: humidity, Status: dht.StatusOK}
}

func parse(out string) (temp, humidity float64, err error) {
	fields := strings.Fields(out)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, 0, fmt.Errorf("unexpected sensor output: `%s`", out)
	}

	if temp, err = strconv.ParseFloat(strings.Trim(fields[0], " ."), 64); err != nil {
		return 0, 0, err
	}
	if len(fields) == 2 {
		if humidity, err = strconv.ParseFloat(strings.Trim(fields[1], " .%"), 64); err != nil {
			return 0, 0, err
		}
	}
	return temp, humidity, nil
}
