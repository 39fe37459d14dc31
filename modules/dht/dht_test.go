package dht

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	pulses []time.Duration
	err    error
	calls  int
}

func (b *fakeBus) Request(_ context.Context, n int, timeout time.Duration) ([]time.Duration, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if len(b.pulses) > n {
		return b.pulses[:n], nil
	}
	return b.pulses, nil
}

func TestReader_Measure(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		frame [5]byte
		want  Reading
	}{
		{
			name:  "dht22",
			model: DHT22,
			frame: [5]byte{0x02, 0x8c, 0x01, 0x5f, 0xee},
			want:  Reading{Humidity: 65.2, Temperature: 35.1, Status: StatusOK},
		},
		{
			name:  "dht22 negative",
			model: DHT22,
			frame: [5]byte{0x02, 0x8c, 0x80, 0x65, 0x73},
			want:  Reading{Humidity: 65.2, Temperature: -10.1, Status: StatusOK},
		},
		{
			name:  "dht11",
			model: DHT11,
			frame: [5]byte{45, 0, 23, 4, 72},
			want:  Reading{Humidity: 45, Temperature: 23.4, Status: StatusOK},
		},
		{
			name:  "bad checksum",
			model: DHT22,
			frame: [5]byte{0x02, 0x8c, 0x01, 0x5f, 0xef},
			want:  Reading{Status: StatusBadChecksum},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(&fakeBus{pulses: Pulses(tt.frame)}, tt.model)
			got := r.Measure(context.Background())

			require.Equal(t, tt.want.Status, got.Status)
			require.InDelta(t, tt.want.Humidity, got.Humidity, 0.001)
			require.InDelta(t, tt.want.Temperature, got.Temperature, 0.001)
		})
	}
}

func TestReader_MeasureTimeout(t *testing.T) {
	r := NewReader(&fakeBus{err: ErrTimeout}, DHT22)
	got := r.Measure(context.Background())
	require.Equal(t, StatusTimeout, got.Status)
	require.ErrorIs(t, got.Err(), ErrTimeout)
	require.False(t, got.OK())

	short := NewReader(&fakeBus{pulses: make([]time.Duration, 12)}, DHT22)
	require.Equal(t, StatusTimeout, short.Measure(context.Background()).Status)
}

func TestReading_Err(t *testing.T) {
	require.NoError(t, Reading{Status: StatusOK}.Err())
	require.ErrorIs(t, Reading{Status: StatusBadChecksum}.Err(), ErrBadChecksum)
}

func TestModel_EncodeRoundTrip(t *testing.T) {
	for _, m := range []Model{DHT11, DHT22} {
		for _, tc := range [][2]float64{{40.0, 21.5}, {55.3, 26.0}, {10.0, -3.2}} {
			frame := m.Encode(tc[0], tc[1])
			got := NewReader(&fakeBus{pulses: Pulses(frame)}, m).Measure(context.Background())

			require.True(t, got.OK(), "%s %v", m, tc)
			require.InDelta(t, tc[0], got.Humidity, 0.05)
			require.InDelta(t, tc[1], got.Temperature, 0.05)
		}
	}
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("dht11")
	require.NoError(t, err)
	require.Equal(t, DHT11, m)

	m, err = ParseModel("")
	require.NoError(t, err)
	require.Equal(t, DHT22, m)

	_, err = ParseModel("bme280")
	require.Error(t, err)
}
