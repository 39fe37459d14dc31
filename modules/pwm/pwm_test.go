package pwm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSlice struct {
	divInt, divFrac uint8
	wrap, level     uint16
	enabled         bool
	writes          int
}

func (r *recordingSlice) SetClockDivider(integer, fraction uint8) {
	r.divInt, r.divFrac = integer, fraction
	r.writes++
}
func (r *recordingSlice) SetWrap(wrap uint16)     { r.wrap = wrap; r.writes++ }
func (r *recordingSlice) SetLevel(level uint16)   { r.level = level; r.writes++ }
func (r *recordingSlice) SetEnabled(enabled bool) { r.enabled = enabled }

func TestCompute_fanFrequency(t *testing.T) {
	s := Compute(ClockHz, FanFrequencyHz, 40)

	require.Equal(t, uint8(1), s.DivInt)
	require.Equal(t, uint8(0), s.DivFrac)
	require.Equal(t, uint16(4999), s.Wrap)
	require.Equal(t, uint16(1999), s.Level)
	require.InDelta(t, float64(FanFrequencyHz), s.Frequency(ClockHz), 0.001)
}

func TestCompute_levelWithinWrapAndFrequencyTolerance(t *testing.T) {
	freqs := []uint32{MinFrequencyHz, 25, 100, 1000, 20000, FanFrequencyHz, 31250, 100000, 250000}

	for _, f := range freqs {
		for duty := 0; duty <= 100; duty++ {
			s := Compute(ClockHz, f, uint8(duty))

			require.LessOrEqual(t, s.Level, s.Wrap, "f=%d duty=%d", f, duty)
			require.GreaterOrEqual(t, s.Divider16(), uint32(16), "f=%d", f)

			rel := math.Abs(s.Frequency(ClockHz)-float64(f)) / float64(f)
			require.Less(t, rel, 0.01, "f=%d implied=%f", f, s.Frequency(ClockHz))
		}
	}
}

func TestCompute_dutyExtremes(t *testing.T) {
	off := Compute(ClockHz, FanFrequencyHz, 0)
	require.Equal(t, uint16(0), off.Level)

	full := Compute(ClockHz, FanFrequencyHz, 100)
	require.Equal(t, full.Wrap, full.Level)

	clamped := Compute(ClockHz, FanFrequencyHz, 250)
	require.Equal(t, full, clamped)
}

func TestCompute_frequencyClamp(t *testing.T) {
	require.Equal(t, Compute(ClockHz, MinFrequencyHz, 50), Compute(ClockHz, 1, 50))
	require.Equal(t, Compute(ClockHz, MaxFrequencyHz, 50), Compute(ClockHz, 50000000, 50))
}

func TestCompute_sameDividerForAnyDuty(t *testing.T) {
	ref := Compute(ClockHz, FanFrequencyHz, 0)
	for duty := uint8(1); duty <= 100; duty++ {
		s := Compute(ClockHz, FanFrequencyHz, duty)
		require.Equal(t, ref.Divider16(), s.Divider16())
		require.Equal(t, ref.Wrap, s.Wrap)
	}
}

func TestDriver_Configure(t *testing.T) {
	slice := &recordingSlice{}
	d := New(slice, ClockHz, FanFrequencyHz)

	wrap := d.Configure(FanFrequencyHz, 100)
	require.Equal(t, uint32(4999), wrap)
	require.True(t, slice.enabled)
	require.Equal(t, uint16(4999), slice.wrap)
	require.Equal(t, uint16(4999), slice.level)

	require.NoError(t, d.SetDutyCycle(0))
	require.Equal(t, uint16(0), slice.level)
	require.Equal(t, uint16(0), d.Settings().Level)
}
