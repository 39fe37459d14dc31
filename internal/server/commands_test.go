package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oblq/fanctl/internal/state"
)

func Test_parseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr error
	}{
		{line: "status", want: command{verb: verbStatus}},
		{line: "statusXYZ", want: command{verb: verbStatus}},
		{line: "setpwm 40", want: command{verb: verbSetPWM, value: 40}},
		{line: "setpwm 0", want: command{verb: verbSetPWM, value: 0}},
		{line: "setpwm 100", want: command{verb: verbSetPWM, value: 100}},
		{line: "setpwm -1", want: command{verb: verbSetPWM, value: -1}},
		{line: "setpwm 55 trailing", want: command{verb: verbSetPWM, value: 55}},
		{line: "setpwm 101", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm -2", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm abc", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm50", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm  40", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm \t40", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm +40", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm +1", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "setpwm ", want: command{verb: verbSetPWM}, wantErr: ErrInvalidValue},
		{line: "Status", wantErr: ErrUnknownCommand},
		{line: "help", wantErr: ErrUnknownCommand},
		{line: "", wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func Test_statusResponse(t *testing.T) {
	got := statusResponse(state.Snapshot{Temperature: 26.04, Humidity: 41.24, RPM: 1499.96})
	require.Equal(t, "\n\nCurrent system status:\nTemperature: 26.0 C\nHumidity: 41.2 %\nFan Speed: 1500.0 RPM\n\n", got)
}

func Test_frameLine(t *testing.T) {
	f := newFrame(16)
	n := copy(f.free(), "status\n\x00garbage")
	f.advance(n)
	require.Equal(t, "status", f.line())

	f.resetRecv()
	require.Equal(t, 0, f.recvLen)
	require.Equal(t, make([]byte, 16), f.recv)
}

func Test_frameBounds(t *testing.T) {
	f := newFrame(8)
	f.advance(5)
	require.Len(t, f.free(), 3)
	f.advance(10)
	require.True(t, f.complete())
	require.Len(t, f.free(), 0)

	f.load("0123456789")
	require.Equal(t, []byte("01234567"), f.send)
	f.load("ab")
	require.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0}, f.pending())
}
