package commanderpro

import (
	"context"
	"encoding/binary"
	"time"
)

type FanCh byte
type FanMode byte

const (
	CMDGetFanMask           cmd = 0x20
	CMDGetFanRPM            cmd = 0x21 // CMDReadFanSpeed
	CMDGetFanFixedDutyCycle cmd = 0x22 // CMDReadFanPower pwm
	CMDSetFanFixedDutyCycle cmd = 0x23 // CMDWriteFanPower pwm
	CMDSetFanMode           cmd = 0x28 // CMDWriteFanDetectionType
	CMDGetFanMode           cmd = 0x29 // CMDReadFanDetectionType

	FanCh1 FanCh = 0x00
	FanCh2 FanCh = 0x01
	FanCh3 FanCh = 0x02
	FanCh4 FanCh = 0x03
	FanCh5 FanCh = 0x04
	FanCh6 FanCh = 0x05

	FanModeAutoDisconnected FanMode = 0x00
	FanMode3Pin             FanMode = 0x01
	FanMode4Pin             FanMode = 0x02
	FanModeUnknown          FanMode = 0x03
)

func (cp *CommanderPro) GetFanMask() (modes [6]FanMode, err error) {
	resp, err := cp.cmd(cp.packet(CMDGetFanMask))
	if err != nil {
		return modes, err
	}
	for i := range modes {
		modes[i] = FanMode(resp[1+i])
	}
	return modes, nil
}

func (cp *CommanderPro) GetChannelDutyCycle(fan FanCh) (dutyCycle uint8, err error) {
	cmd := cp.packet(CMDGetFanFixedDutyCycle)
	cmd[1] = byte(fan)

	resp, err := cp.cmd(cmd)
	if err != nil {
		return 0, err
	}
	return resp[1], nil
}

// SetChannelDutyCycle uses the "Fixed %" request (0x23).
// A zero duty clears the channel settings, which turns the fan off.
func (cp *CommanderPro) SetChannelDutyCycle(fan FanCh, dutyCycle uint8) error {
	if dutyCycle == 0 {
		return cp.SetFanMode(fan, FanModeUnknown)
	}

	fanMode, err := cp.GetFanMode(fan)
	if err != nil {
		return err
	}
	if fanMode == FanModeUnknown {
		if err := cp.SetFanMode(fan, FanModeAutoDisconnected); err != nil {
			return err
		}
	}

	cmd := cp.packet(CMDSetFanFixedDutyCycle)
	cmd[1] = byte(fan)
	cmd[2] = dutyCycle

	_, err = cp.cmd(cmd)
	return err
}

func (cp *CommanderPro) GetChannelRPM(fan FanCh) (rpm uint16, err error) {
	cmd := cp.packet(CMDGetFanRPM)
	cmd[1] = byte(fan)

	resp, err := cp.cmd(cmd)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(resp[1:3]), nil
}

func (cp *CommanderPro) SetFanMode(fan FanCh, fanMode FanMode) error {
	cmd := cp.packet(CMDSetFanMode)
	cmd[1] = 0x02
	cmd[2] = byte(fan)
	cmd[3] = byte(fanMode)

	_, err := cp.cmd(cmd)
	return err
}

func (cp *CommanderPro) GetFanMode(fan FanCh) (fanMode FanMode, err error) {
	cmd := cp.packet(CMDGetFanMode)
	cmd[1] = 0x01
	cmd[2] = byte(fan)

	resp, err := cp.cmd(cmd)
	if err != nil {
		return FanModeUnknown, err
	}
	if resp[2] == byte(fan) {
		return FanMode(resp[3]), nil
	}
	return FanModeUnknown, nil
}

// fan output interface implementation
func (cp *CommanderPro) SetDutyCycle(dutyCycle uint8) error {
	return cp.SetChannelDutyCycle(cp.FanChannel, dutyCycle)
}

// tachometer interface implementation, the hub measures the speed itself.
func (cp *CommanderPro) ReadRPM(_ context.Context, _ time.Duration) (float64, error) {
	rpm, err := cp.GetChannelRPM(cp.FanChannel)
	return float64(rpm), err
}
