package sim

import (
	"math"
	"sync"
	"time"
)

// DefaultThermalLag is the time constant of the enclosure temperature.
const DefaultThermalLag = 30 * time.Second

// Environment is a first order thermal model of a ventilated enclosure.
// With the fan stopped the temperature settles at ambient+heatLoad, at
// full speed it settles back at ambient.
type Environment struct {
	mutex sync.Mutex

	ambient  float64
	heatLoad float64
	humidity float64
	lag      time.Duration

	temperature float64
	updated     time.Time
	pinned      bool

	cooling func() float64
	now     func() time.Time
}

// NewEnvironment starts at ambient. cooling returns the fan speed fraction
// in [0, 1], nil means no fan.
func NewEnvironment(ambient, humidity, heatLoad float64, cooling func() float64) *Environment {
	if cooling == nil {
		cooling = func() float64 { return 0 }
	}
	return &Environment{
		ambient:     ambient,
		heatLoad:    heatLoad,
		humidity:    humidity,
		lag:         DefaultThermalLag,
		temperature: ambient,
		updated:     time.Now(),
		cooling:     cooling,
		now:         time.Now,
	}
}

// Pin fixes temperature and humidity until Release.
func (e *Environment) Pin(temperature, humidity float64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.temperature, e.humidity = temperature, humidity
	e.pinned = true
}

// Release resumes the model from the pinned values.
func (e *Environment) Release() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.pinned = false
	e.updated = e.now()
}

// Read advances the model to now and returns its state.
func (e *Environment) Read() (temperature, humidity float64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := e.now()
	dt := now.Sub(e.updated)
	e.updated = now

	if !e.pinned && dt > 0 {
		cooling := math.Max(0, math.Min(1, e.cooling()))
		equilibrium := e.ambient + e.heatLoad*(1-cooling)
		k := 1 - math.Exp(-dt.Seconds()/e.lag.Seconds())
		e.temperature += (equilibrium - e.temperature) * k
	}

	return e.temperature, e.humidity
}
