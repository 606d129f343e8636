// Package memory provides the physical memory bus of the emulated machine
// and the devices that live on it.
package memory

// Device is a component mapped into a range of the physical address space.
// Offsets are local to the device: the bus subtracts the range base before
// dispatching.
type Device interface {
	// DebugLabel returns a device name for memory-map listings.
	DebugLabel() string
	// Read fills data with len(data) bytes starting at offset.
	Read(offset uint32, data []byte) error
	// Write stores len(data) bytes starting at offset.
	Write(offset uint32, data []byte) error
}

// Memory is the byte-addressed access surface the CPU executes against.
// Multi-byte values are assembled in little-endian order regardless of the
// byte order of the guest program.
type Memory interface {
	FetchWord(address uint32) (uint32, error)
	FetchHalfword(address uint32) (uint16, error)
	FetchByte(address uint32) (uint8, error)
	StoreWord(address uint32, data uint32) error
	StoreHalfword(address uint32, data uint16) error
	StoreByte(address uint32, data uint8) error
}
