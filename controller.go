package main

import (
	"sync"

	"go.uber.org/zap"

	"github.com/oblq/fanctl/modules/dht"
)

const (
	defaultThreshold = 25.0 // °C
	defaultMaxSpeed  = 100  // %
)

// fanController is the auto/manual state machine in front of a FanOutput.
//
// In auto mode every valid reading decides the duty: maxSpeed strictly
// above threshold, 0 otherwise. In manual mode readings are ignored.
// The output is written only when the wanted duty differs from the applied
// one; a failed write keeps the old applied value so the next call retries.
type fanController struct {
	mutex sync.Mutex

	output FanOutput
	log    *zap.Logger

	threshold float64
	maxSpeed  uint8

	state fanState
}

func newFanController(output FanOutput, threshold float64, maxSpeed uint8, logger *zap.Logger) *fanController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSpeed > 100 {
		maxSpeed = 100
	}
	return &fanController{
		output:    output,
		log:       logger.Named("controller"),
		threshold: threshold,
		maxSpeed:  maxSpeed,
	}
}

// start programs the output with the initial duty (auto, 0%).
func (fc *fanController) start() error {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if err := fc.output.SetDutyCycle(fc.state.dutyCycle); err != nil {
		// force a retry on the next update
		fc.state.applied = fc.state.dutyCycle + 1
		return err
	}
	fc.state.applied = fc.state.dutyCycle
	return nil
}

// update feeds one measurement cycle. Failed readings keep the current
// duty but still retry a pending write.
func (fc *fanController) update(reading dht.Reading) {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if fc.state.mode == ModeAuto && reading.OK() {
		if reading.Temperature > fc.threshold {
			fc.state.dutyCycle = fc.maxSpeed
		} else {
			fc.state.dutyCycle = 0
		}
	}

	fc.apply()
}

// SetManual switches to manual mode and applies duty immediately.
func (fc *fanController) SetManual(duty uint8) {
	if duty > 100 {
		duty = 100
	}

	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if fc.state.mode != ModeManual {
		fc.log.Info("manual control", zap.Uint8("duty", duty))
	}
	fc.state.mode = ModeManual
	fc.state.dutyCycle = duty
	fc.apply()
}

// SetAuto returns control to the threshold, the next reading decides the duty.
func (fc *fanController) SetAuto() {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if fc.state.mode != ModeAuto {
		fc.log.Info("automatic control")
	}
	fc.state.mode = ModeAuto
}

// setLimits swaps threshold and max speed, used by the config hot-reload.
func (fc *fanController) setLimits(threshold float64, maxSpeed uint8) {
	if maxSpeed > 100 {
		maxSpeed = 100
	}

	fc.mutex.Lock()
	defer fc.mutex.Unlock()

	if fc.threshold == threshold && fc.maxSpeed == maxSpeed {
		return
	}
	fc.log.Info("limits updated",
		zap.Float64("threshold", threshold),
		zap.Uint8("max_speed", maxSpeed))
	fc.threshold = threshold
	fc.maxSpeed = maxSpeed
}

// status returns mode and applied duty.
func (fc *fanController) status() (Mode, uint8) {
	fc.mutex.Lock()
	defer fc.mutex.Unlock()
	return fc.state.mode, fc.state.applied
}

// apply must be called with the mutex held.
func (fc *fanController) apply() {
	if !fc.state.pending() {
		return
	}

	dc := fc.state.dutyCycle
	if err := fc.output.SetDutyCycle(dc); err != nil {
		fc.log.Warn("unable to set duty cycle",
			zap.String("output", fc.output.Name()),
			zap.Uint8("duty", dc),
			zap.Error(err))
		return
	}

	fc.log.Info("duty cycle updated",
		zap.String("mode", fc.state.mode.String()),
		zap.Uint8("from", fc.state.applied),
		zap.Uint8("to", dc))
	fc.state.applied = dc
}
