package commanderpro

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/gousb"
)

// list all devices:
//  go get -v github.com/google/gousb/lsusb
// lsusb
// Bus 001 Device 003: ID 1b1c:0c10 Corsair Commander PRO

const (
	// Commander Pro vendor ID
	vid = gousb.ID(0x1b1c)

	// Commander Pro product ID
	pid = gousb.ID(0x0c10)

	// packetSize is used when the endpoint descriptor is not available.
	packetSize = 64
)

type cmd byte

// CommanderPro drives one fan channel and reads one temperature probe.
type CommanderPro struct {
	ctx      *gousb.Context
	dev      *gousb.Device
	intfDone func()

	mutex sync.Mutex

	in         io.Reader
	out        io.Writer
	packetSize int

	// FanChannel is the fan header driven by SetDutyCycle and read by ReadRPM.
	FanChannel FanCh

	// TempSensor is the probe read by Measure.
	TempSensor TempSensor
}

// Open claims the first Commander Pro on the bus.
func Open(fan FanCh, sensor TempSensor) (cp *CommanderPro, err error) {
	cp = &CommanderPro{FanChannel: fan, TempSensor: sensor}
	err = cp.Open()
	return
}

func (cp *CommanderPro) Open() (err error) {
	// Initialize a new Context.
	cp.ctx = gousb.NewContext()

	// Open any device with a given VID/PID using a convenience function.
	cp.dev, err = cp.ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil || cp.dev == nil {
		cp.Close()
		return fmt.Errorf("could not open a device: %v", err)
	}

	if err = cp.dev.SetAutoDetach(true); err != nil {
		cp.Close()
		return fmt.Errorf("unable to set autodetach on device: %w", err)
	}

	// Claim the default interface using a convenience function.
	// The default interface is always #0 alt #0 in the currently active
	// config.
	intf, done, err := cp.dev.DefaultInterface()
	if err != nil {
		cp.Close()
		return fmt.Errorf("%s.DefaultInterface(): %w", cp.dev, err)
	}
	cp.intfDone = done

	// Open an IN endpoint.
	inEndpoint, err := intf.InEndpoint(1)
	if err != nil {
		cp.Close()
		return fmt.Errorf("%s.InEndpoint(1): %w", intf, err)
	}

	// And in the same interface open endpoint #2 for writing.
	outEndpoint, err := intf.OutEndpoint(2)
	if err != nil {
		cp.Close()
		return fmt.Errorf("%s.OutEndpoint(2): %w", intf, err)
	}

	cp.in = inEndpoint
	cp.out = outEndpoint
	cp.packetSize = outEndpoint.Desc.MaxPacketSize
	if cp.packetSize == 0 {
		cp.packetSize = packetSize
	}

	return nil
}

func (cp *CommanderPro) Close() {
	if cp.intfDone != nil {
		cp.intfDone()
		cp.intfDone = nil
	}
	if cp.dev != nil {
		_ = cp.dev.Close()
		cp.dev = nil
	}
	if cp.ctx != nil {
		_ = cp.ctx.Close()
		cp.ctx = nil
	}
}

// packet returns an empty command packet.
func (cp *CommanderPro) packet(c cmd) []byte {
	buf := make([]byte, cp.packetSize)
	buf[0] = byte(c)
	return buf
}

// cmd writes a command packet and returns the response packet.
// The first response byte is the device status.
func (cp *CommanderPro) cmd(cmd []byte) (response []byte, err error) {
	cp.mutex.Lock()
	defer cp.mutex.Unlock()

	if cp.out == nil {
		return nil, fmt.Errorf("commanderpro: device not open")
	}

	// Write data to the USB device.
	numBytes, err := cp.out.Write(cmd)
	if numBytes != len(cmd) {
		return nil, fmt.Errorf("write: only %d bytes written, returned error is %v", numBytes, err)
	}

	// readBytes might be smaller than the buffer size. readBytes might be greater than zero even if err is not nil.
	buf := make([]byte, cp.packetSize)
	readBytes, err := cp.in.Read(buf)
	if err != nil {
		return buf, fmt.Errorf("read error: %w", err)
	}
	if readBytes == 0 {
		return buf, fmt.Errorf("endpoint returned 0 bytes of data")
	}

	return buf, nil
}

// ---------------------------------------------------------------------------------------------------------------------

// module interface implementation
func (cp *CommanderPro) Name() string {
	return "commanderpro"
}
