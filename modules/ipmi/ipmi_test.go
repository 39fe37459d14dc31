package ipmi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblq/fanctl/modules/dht"
)

type recorder struct {
	cmds    []string
	replies map[string]string
	err     error
}

func (r *recorder) run(_ context.Context, cmd string) (string, error) {
	r.cmds = append(r.cmds, cmd)
	if r.err != nil {
		return "", r.err
	}
	return r.replies[cmd], nil
}

func newTestIPMI(rec *recorder) *IPMI {
	i := New("ipmitool", 1, "3.1", "FAN1", nil)
	i.command = rec.run
	i.commandPipe = rec.run
	return i
}

func TestSetDutyCycle(t *testing.T) {
	rec := &recorder{}
	i := newTestIPMI(rec)

	require.NoError(t, i.SetDutyCycle(64))
	assert.Equal(t, []string{"ipmitool raw 0x30 0x70 0x66 0x01 0x01 0x40"}, rec.cmds)

	rec.err = errors.New("exit status 1")
	err := i.SetDutyCycle(10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone '1'")
}

func TestGetDutyCycle(t *testing.T) {
	rec := &recorder{replies: map[string]string{"ipmitool raw 0x30 0x70 0x66 0x00 0x01": " 64"}}
	dc, err := newTestIPMI(rec).GetDutyCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(100), dc)
}

func TestOpenSwitchesToFullMode(t *testing.T) {
	rec := &recorder{replies: map[string]string{"ipmitool raw 0x30 0x45 0x00": " 02"}}
	require.NoError(t, newTestIPMI(rec).Open(context.Background()))
	assert.Equal(t, []string{
		"ipmitool raw 0x30 0x45 0x00",
		"ipmitool raw 0x30 0x45 0x01 01",
	}, rec.cmds)

	rec = &recorder{replies: map[string]string{"ipmitool raw 0x30 0x45 0x00": "01"}}
	require.NoError(t, newTestIPMI(rec).Open(context.Background()))
	assert.Len(t, rec.cmds, 1)
}

func TestMeasure(t *testing.T) {
	const cmd = "ipmitool sdr entity 3.1 | cut -d '|' -f 5 | cut -d ' ' -f2"

	tests := []struct {
		name  string
		reply string
		err   error
		want  dht.Reading
	}{
		{"ok", "42.", nil, dht.Reading{Temperature: 42, Status: dht.StatusOK}},
		{"entity not found", "", nil, dht.Reading{Status: dht.StatusTimeout}},
		{"command error", "", errors.New("exit status 1"), dht.Reading{Status: dht.StatusTimeout}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{replies: map[string]string{cmd: tt.reply}, err: tt.err}
			assert.Equal(t, tt.want, newTestIPMI(rec).Measure(context.Background()))
		})
	}
}

func TestReadRPM(t *testing.T) {
	rec := &recorder{replies: map[string]string{"ipmitool sensor reading FAN1": "FAN1             | 1500"}}
	rpm, err := newTestIPMI(rec).ReadRPM(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, rpm)

	rec.replies["ipmitool sensor reading FAN1"] = "na"
	_, err = newTestIPMI(rec).ReadRPM(context.Background(), 0)
	require.Error(t, err)

	i := newTestIPMI(&recorder{})
	i.FanSensor = ""
	rpm, err = i.ReadRPM(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, rpm)
}
