package commanderpro

import (
	"context"
	"encoding/binary"

	"github.com/oblq/fanctl/modules/dht"
)

type TempSensor byte

const (
	CMDConnectedSensors cmd = 0x10 // CMDReadTemperatureMask
	CMDGetTemp          cmd = 0x11 // CMDReadTemperatureValue

	TempSensor1 TempSensor = 0x00
	TempSensor2 TempSensor = 0x01
	TempSensor3 TempSensor = 0x02
	TempSensor4 TempSensor = 0x03
)

// GetConnectedSensors reports which of the four probes are plugged in.
func (cp *CommanderPro) GetConnectedSensors() (connected [4]bool, err error) {
	resp, err := cp.cmd(cp.packet(CMDConnectedSensors))
	if err != nil {
		return connected, err
	}
	for i := range connected {
		connected[i] = resp[1+i] == 0x01
	}
	return connected, nil
}

func (cp *CommanderPro) GetTempForSensor(sensor TempSensor) (temp float64, err error) {
	cmd := cp.packet(CMDGetTemp)
	cmd[1] = byte(sensor)

	resp, err := cp.cmd(cmd)
	if err != nil {
		return 0, err
	}
	return float64(binary.BigEndian.Uint16(resp[1:3])) / 100, nil
}

// sensor interface implementation, the probes have no humidity.
func (cp *CommanderPro) Measure(_ context.Context) dht.Reading {
	temp, err := cp.GetTempForSensor(cp.TempSensor)
	if err != nil {
		return dht.Reading{Status: dht.StatusTimeout}
	}
	return dht.Reading{Temperature: temp, Status: dht.StatusOK}
}
