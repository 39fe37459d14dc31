package dht

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout     = errors.New("dht: sensor not responding")
	ErrBadChecksum = errors.New("dht: bad checksum")
)

// Model is the sensor family, which decides how the payload is decoded.
type Model uint8

const (
	DHT11 Model = iota
	DHT22
)

func (m Model) String() string {
	switch m {
	case DHT11:
		return "dht11"
	case DHT22:
		return "dht22"
	}
	return fmt.Sprintf("dht(%d)", uint8(m))
}

// ParseModel returns the Model for "dht11" or "dht22".
func ParseModel(s string) (Model, error) {
	switch s {
	case "dht11":
		return DHT11, nil
	case "dht22", "":
		return DHT22, nil
	}
	return 0, fmt.Errorf("unknown sensor model %q", s)
}

const (
	// FrameBits is the number of data pulses in a transaction.
	FrameBits = 40

	// BitThreshold separates a 0 (26-28µs high) from a 1 (70µs high).
	BitThreshold = 50 * time.Microsecond

	// DefaultTimeout bounds a full transaction, start pulse included.
	DefaultTimeout = 20 * time.Millisecond
)

// Status classifies a measurement.
type Status uint8

const (
	StatusOK Status = iota
	StatusTimeout
	StatusBadChecksum
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusBadChecksum:
		return "bad checksum"
	}
	return "unknown"
}

// Reading is the outcome of one measurement cycle.
type Reading struct {
	Temperature float64
	Humidity    float64
	Status      Status
}

// OK reports whether temperature and humidity are valid.
func (r Reading) OK() bool {
	return r.Status == StatusOK
}

// Err maps the status to ErrTimeout, ErrBadChecksum or nil.
func (r Reading) Err() error {
	switch r.Status {
	case StatusTimeout:
		return ErrTimeout
	case StatusBadChecksum:
		return ErrBadChecksum
	}
	return nil
}

// Bus is the single-wire data line. Request drives the start pulse, then
// returns the high time of each of the n data pulses sent back by the
// sensor. It must give up with ErrTimeout once timeout has elapsed.
type Bus interface {
	Request(ctx context.Context, n int, timeout time.Duration) ([]time.Duration, error)
}

// Reader performs measurement transactions on a Bus.
type Reader struct {
	bus     Bus
	model   Model
	timeout time.Duration
}

func NewReader(bus Bus, model Model) *Reader {
	return &Reader{bus: bus, model: model, timeout: DefaultTimeout}
}

// Measure blocks for the duration of the bus transaction.
func (r *Reader) Measure(ctx context.Context) Reading {
	pulses, err := r.bus.Request(ctx, FrameBits, r.timeout)
	if err != nil || len(pulses) < FrameBits {
		return Reading{Status: StatusTimeout}
	}

	frame := decodeBits(pulses)
	if !validChecksum(frame) {
		return Reading{Status: StatusBadChecksum}
	}

	h, t := r.model.decode(frame)
	return Reading{Temperature: t, Humidity: h, Status: StatusOK}
}

func (r *Reader) Name() string {
	return r.model.String()
}

func decodeBits(pulses []time.Duration) (frame [5]byte) {
	for i := 0; i < FrameBits; i++ {
		frame[i/8] <<= 1
		if pulses[i] > BitThreshold {
			frame[i/8] |= 1
		}
	}
	return
}

func validChecksum(frame [5]byte) bool {
	return frame[0]+frame[1]+frame[2]+frame[3] == frame[4]
}

func (m Model) decode(frame [5]byte) (humidity, temperature float64) {
	if m == DHT11 {
		humidity = float64(frame[0]) + float64(frame[1])*0.1
		temperature = float64(frame[2]&0x7f) + float64(frame[3])*0.1
		if frame[2]&0x80 != 0 {
			temperature = -temperature
		}
		return
	}

	humidity = float64(uint16(frame[0])<<8|uint16(frame[1])) / 10
	temperature = float64(uint16(frame[2]&0x7f)<<8|uint16(frame[3])) / 10
	if frame[2]&0x80 != 0 {
		temperature = -temperature
	}
	return
}

// Encode builds the 5-byte frame a sensor of model m sends for the given
// values, checksum included. Sensor emulators use it.
func (m Model) Encode(humidity, temperature float64) (frame [5]byte) {
	neg := temperature < 0
	if neg {
		temperature = -temperature
	}

	if m == DHT11 {
		hi := int(humidity*10 + 0.5)
		ti := int(temperature*10 + 0.5)
		frame[0], frame[1] = byte(hi/10), byte(hi%10)
		frame[2], frame[3] = byte(ti/10)&0x7f, byte(ti%10)
	} else {
		h := uint16(humidity*10 + 0.5)
		tt := uint16(temperature*10+0.5) & 0x7fff
		frame[0], frame[1] = byte(h>>8), byte(h)
		frame[2], frame[3] = byte(tt>>8), byte(tt)
	}
	if neg {
		frame[2] |= 0x80
	}
	frame[4] = frame[0] + frame[1] + frame[2] + frame[3]
	return
}

// Pulses expands a frame into the high times of its 40 data bits.
func Pulses(frame [5]byte) []time.Duration {
	pulses := make([]time.Duration, 0, FrameBits)
	for _, b := range frame {
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				pulses = append(pulses, 70*time.Microsecond)
			} else {
				pulses = append(pulses, 27*time.Microsecond)
			}
		}
	}
	return pulses
}
