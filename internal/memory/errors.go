package memory

import (
	"errors"
	"fmt"
)

// ErrHalt is returned by the halt device write path to signal a clean
// end-of-run. It is an event, not a failure: callers map it to a halted
// emulation state instead of surfacing it as an error.
var ErrHalt = errors.New("machine halted")

// UnmappedAddressError reports an access to an address no device claims.
type UnmappedAddressError struct {
	Address uint32
}

func (e *UnmappedAddressError) Error() string {
	return fmt.Sprintf("attempted to access an unmapped range of memory: 0x%08x", e.Address)
}

// ReadError reports a read past the end of a device's backing buffer.
type ReadError struct {
	Address uint32
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("attempted to read an invalid memory address: 0x%08x", e.Address)
}

// WriteError reports a write past the end of a device's backing buffer.
type WriteError struct {
	Address uint32
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("attempted to write an invalid memory address: 0x%08x", e.Address)
}

// RangeOverlapError reports a device registration that collides with an
// already-mapped range, or an empty range.
type RangeOverlapError struct {
	Base uint32
	Size uint32
}

func (e *RangeOverlapError) Error() string {
	return fmt.Sprintf("unable to map memory range: base 0x%08x size 0x%x", e.Base, e.Size)
}

// RomLoadingError reports a failure to read a ROM image from the host.
type RomLoadingError struct {
	Path string
	Err  error
}

func (e *RomLoadingError) Error() string {
	return fmt.Sprintf("failed to load ROM image %q: %v", e.Path, e.Err)
}

func (e *RomLoadingError) Unwrap() error {
	return e.Err
}
