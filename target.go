package main

// Mode selects who decides the fan duty cycle.
type Mode uint8

const (
	// ModeAuto follows the temperature threshold.
	ModeAuto Mode = iota
	// ModeManual holds the last setpwm value.
	ModeManual
)

func (m Mode) String() string {
	if m == ModeManual {
		return "manual"
	}
	return "auto"
}

type fanState struct {
	mode Mode

	// dutyCycle is the wanted duty, in percent.
	dutyCycle uint8

	// applied is the duty the output was last programmed with.
	applied uint8
}

// pending reports whether the output lags behind the wanted duty.
func (s fanState) pending() bool {
	return s.dutyCycle != s.applied
}
