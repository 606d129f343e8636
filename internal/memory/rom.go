package memory

import (
	"os"

	"github.com/golang/glog"
)

// ROM backs a byte buffer loaded from a host file. Guest writes are accepted
// and stored: boot code on this machine patches its own image in place.
type ROM struct {
	path string
	data []byte
}

// NewROM loads the image at path. When bigendian is set each aligned 32-bit
// word of the image is byte-swapped so that a big-endian build lays out in
// the bus's little-endian byte order.
func NewROM(path string, bigendian bool) (*ROM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &RomLoadingError{Path: path, Err: err}
	}

	if bigendian {
		for i := 0; i+4 <= len(data); i += 4 {
			data[i], data[i+1], data[i+2], data[i+3] = data[i+3], data[i+2], data[i+1], data[i]
		}
	}

	glog.V(2).Infof("loaded ROM image %s (%d bytes)", path, len(data))
	return &ROM{path: path, data: data}, nil
}

func (r *ROM) Size() uint32 {
	return uint32(len(r.data))
}

func (r *ROM) DebugLabel() string {
	return r.path
}

func (r *ROM) Read(offset uint32, data []byte) error {
	for i := range data {
		pos := int(offset) + i
		if pos >= len(r.data) {
			return &ReadError{Address: offset + uint32(i)}
		}
		data[i] = r.data[pos]
	}
	return nil
}

func (r *ROM) Write(offset uint32, data []byte) error {
	for i, v := range data {
		pos := int(offset) + i
		if pos >= len(r.data) {
			return &WriteError{Address: offset + uint32(i)}
		}
		r.data[pos] = v
	}
	return nil
}
