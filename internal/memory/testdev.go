package memory

import "github.com/golang/glog"

// TestDeviceBase is the physical address where the test device is mapped.
const TestDeviceBase uint32 = 0x02010000

// TestDeviceLen is the size of the test device's scratch buffer.
const TestDeviceLen uint32 = 0x100

// TestDevice is a scratch buffer used by diagnostic ROMs to check that
// device routing works at all. Byte 0 is the register of interest.
type TestDevice struct {
	data [TestDeviceLen]byte
}

func NewTestDevice() *TestDevice {
	return &TestDevice{}
}

func (t *TestDevice) DebugLabel() string {
	return "test-device"
}

func (t *TestDevice) Read(offset uint32, data []byte) error {
	glog.V(3).Infof("read from test device @ 0x%08x", offset)

	for i := range data {
		pos := int(offset) + i
		if pos >= len(t.data) {
			return &ReadError{Address: offset + uint32(i)}
		}
		data[i] = t.data[pos]
	}
	return nil
}

func (t *TestDevice) Write(offset uint32, data []byte) error {
	glog.V(3).Infof("write to test device @ 0x%08x", offset)

	for i, v := range data {
		pos := int(offset) + i
		if pos >= len(t.data) {
			return &WriteError{Address: offset + uint32(i)}
		}
		t.data[pos] = v
	}
	return nil
}
