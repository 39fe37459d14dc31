package pwm

import "sync"

const (
	// ClockHz is the system clock feeding the PWM slices.
	ClockHz = 125000000

	// FanFrequencyHz is the standard 4-pin fan PWM frequency.
	FanFrequencyHz = 25000

	// MinFrequencyHz and MaxFrequencyHz bound the frequencies Compute accepts,
	// anything outside is clamped.
	MinFrequencyHz = 8
	MaxFrequencyHz = 1000000

	// the divider is an 8.4 fixed point value, 16 sub-steps per unit.
	minDivider16 = 1 << 4
	maxDivider16 = 255<<4 | 0xF

	maxWrap = 0xFFFF
)

// Slice is a hardware PWM slice seen from the register side.
type Slice interface {
	SetClockDivider(integer, fraction uint8)
	SetWrap(wrap uint16)
	SetLevel(level uint16)
	SetEnabled(enabled bool)
}

// Settings are the register values for a frequency/duty couple.
type Settings struct {
	DivInt  uint8
	DivFrac uint8
	Wrap    uint16
	Level   uint16
}

// Divider16 returns the clock divider in sixteenths.
func (s Settings) Divider16() uint32 {
	return uint32(s.DivInt)<<4 | uint32(s.DivFrac)
}

// Frequency returns the output frequency the settings produce with clockHz.
func (s Settings) Frequency(clockHz uint32) float64 {
	return float64(clockHz) * 16 / float64(s.Divider16()) / float64(uint32(s.Wrap)+1)
}

// Compute picks the smallest divider (never below 1.0) that lets the
// wrap count fit the 16-bit counter, then derives wrap and compare level.
// The result depends on duty only through Level: divider and wrap are a
// function of clockHz and freqHz alone.
func Compute(clockHz, freqHz uint32, duty uint8) Settings {
	if freqHz < MinFrequencyHz {
		freqHz = MinFrequencyHz
	} else if freqHz > MaxFrequencyHz {
		freqHz = MaxFrequencyHz
	}
	if duty > 100 {
		duty = 100
	}

	clock, f := uint64(clockHz), uint64(freqHz)

	div16 := clock / f / 4096
	if clock%(f*4096) != 0 {
		div16++
	}
	if div16 < minDivider16 {
		div16 = minDivider16
	} else if div16 > maxDivider16 {
		div16 = maxDivider16
	}

	wrap := clock*16/div16/f - 1
	if wrap > maxWrap {
		wrap = maxWrap
	}

	return Settings{
		DivInt:  uint8(div16 >> 4),
		DivFrac: uint8(div16 & 0xF),
		Wrap:    uint16(wrap),
		Level:   uint16(wrap * uint64(duty) / 100),
	}
}

// Driver programs a Slice for a fan output.
type Driver struct {
	mutex sync.Mutex

	slice       Slice
	clockHz     uint32
	frequencyHz uint32

	current Settings
	enabled bool
}

// New returns a Driver bound to slice, using frequencyHz for SetDutyCycle.
func New(slice Slice, clockHz, frequencyHz uint32) *Driver {
	if clockHz == 0 {
		clockHz = ClockHz
	}
	if frequencyHz == 0 {
		frequencyHz = FanFrequencyHz
	}
	return &Driver{slice: slice, clockHz: clockHz, frequencyHz: frequencyHz}
}

// Configure writes divider, wrap and level for the requested frequency and
// duty, enables the slice and returns the applied wrap count.
func (d *Driver) Configure(freqHz uint32, duty uint8) uint32 {
	s := Compute(d.clockHz, freqHz, duty)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.slice.SetClockDivider(s.DivInt, s.DivFrac)
	d.slice.SetWrap(s.Wrap)
	d.slice.SetLevel(s.Level)
	if !d.enabled {
		d.slice.SetEnabled(true)
		d.enabled = true
	}
	d.current = s

	return uint32(s.Wrap)
}

// SetDutyCycle implements the fan output interface at the driver frequency.
func (d *Driver) SetDutyCycle(duty uint8) error {
	d.Configure(d.frequencyHz, duty)
	return nil
}

// Settings returns the last applied register values.
func (d *Driver) Settings() Settings {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.current
}

func (d *Driver) Name() string {
	return "pwm"
}
