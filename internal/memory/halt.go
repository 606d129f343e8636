package memory

import "github.com/golang/glog"

// HaltBase is the physical address where the halt device is mapped.
const HaltBase uint32 = 0x01010024

// HaltDevice stops the machine: any write containing a non-zero byte makes
// the device return ErrHalt, which the emulator surfaces as a halted run.
// Reads return zero.
type HaltDevice struct{}

func (HaltDevice) DebugLabel() string {
	return "halt-device"
}

func (HaltDevice) Read(offset uint32, data []byte) error {
	glog.V(3).Infof("read from halt device @ 0x%08x", offset)

	for i := range data {
		data[i] = 0
	}
	return nil
}

func (HaltDevice) Write(offset uint32, data []byte) error {
	glog.V(3).Infof("write to halt device @ 0x%08x", offset)

	for _, v := range data {
		if v != 0 {
			return ErrHalt
		}
	}
	return nil
}
