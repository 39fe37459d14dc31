package tach

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCapture_debounceBoundary(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		wantRPM  float64
		updated  bool
	}{
		{name: "exactly 10ms is noise", interval: 10 * time.Millisecond, updated: false},
		{name: "below debounce", interval: 3 * time.Millisecond, updated: false},
		{name: "just above debounce", interval: 10*time.Millisecond + time.Microsecond, wantRPM: 30 / 0.010001, updated: true},
		{name: "20ms", interval: 20 * time.Millisecond, wantRPM: 1500, updated: true},
		{name: "30ms", interval: 30 * time.Millisecond, wantRPM: 1000, updated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			first := 500 * time.Millisecond
			c.OnEdge(first)
			before := c.Sample(first)

			c.OnEdge(first + tt.interval)
			got := c.Sample(first + tt.interval)

			if !tt.updated {
				require.Equal(t, before, got)
				return
			}
			require.Equal(t, first+tt.interval, got.LastEdge)
			require.InDelta(t, tt.wantRPM, got.RPM, 0.01)
		})
	}
}

func TestCapture_ignoredEdgeDoesNotMoveLastEdge(t *testing.T) {
	c := New()
	c.OnEdge(100 * time.Millisecond)
	c.OnEdge(105 * time.Millisecond) // bounce
	c.OnEdge(120 * time.Millisecond)

	s := c.Sample(120 * time.Millisecond)
	require.Equal(t, 120*time.Millisecond, s.LastEdge)
	require.InDelta(t, 1500, s.RPM, 0.01)
}

func TestCapture_staleness(t *testing.T) {
	c := New()
	c.OnEdge(1 * time.Second)
	c.OnEdge(1*time.Second + 20*time.Millisecond)
	last := 1*time.Second + 20*time.Millisecond

	require.InDelta(t, 1500, c.RPM(last+StaleAfter), 0.01)
	require.Equal(t, 0.0, c.RPM(last+StaleAfter+time.Millisecond))

	require.False(t, c.Expire(last+StaleAfter))
	require.True(t, c.Expire(last+2*time.Second))
	require.False(t, c.Expire(last+3*time.Second))

	c.OnEdge(last + 3*time.Second)
	require.Greater(t, c.RPM(last+3*time.Second), 0.0)
}

func TestCapture_initialState(t *testing.T) {
	c := New()
	require.Equal(t, 0.0, c.RPM(0))
	require.Equal(t, 0.0, c.RPM(5*time.Second))
}

func TestCapture_samplePairsEdgeWithItsSpeed(t *testing.T) {
	const edges = 2000

	// every interval is distinct, so a sample's edge time identifies
	// the speed it must carry
	want := make(map[time.Duration]float64, edges)
	timestamps := make([]time.Duration, edges)
	ts := time.Second
	for i := range timestamps {
		interval := 11*time.Millisecond + time.Duration(i)*time.Microsecond
		ts += interval
		timestamps[i] = ts
		want[ts] = 30 / interval.Seconds()
	}

	c := New()
	c.OnEdge(time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ts := range timestamps {
			c.OnEdge(ts)
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}

		s := c.Sample(c.current.Load().LastEdge)
		if s.LastEdge == time.Second {
			continue
		}
		rpm, ok := want[s.LastEdge]
		require.True(t, ok)
		require.InDelta(t, rpm, s.RPM, 1e-9)
	}
}

func TestCapture_expireKeepsEdgeTime(t *testing.T) {
	c := New()
	c.OnEdge(time.Second)
	c.OnEdge(time.Second + 20*time.Millisecond)

	require.True(t, c.Expire(5*time.Second))
	s := *c.current.Load()
	require.Equal(t, time.Second+20*time.Millisecond, s.LastEdge)
	require.Zero(t, s.RPM)

	// the next edge measures from the last real edge, not from zero
	c.OnEdge(5 * time.Second)
	require.InDelta(t, 30/(5*time.Second-time.Second-20*time.Millisecond).Seconds(), c.RPM(5*time.Second), 1e-9)
}
