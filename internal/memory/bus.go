package memory

import (
	"fmt"
	"sort"
	"strings"
)

// mapping binds a half-open address range [base, base+size) to a device.
type mapping struct {
	base   uint32
	size   uint32
	device Device
}

// last returns the highest address that is part of the range.
func (m *mapping) last() uint32 {
	return m.base + m.size - 1
}

func (m *mapping) contains(address uint32) bool {
	return m.base <= address && address <= m.last()
}

func (m *mapping) overlaps(base, size uint32) bool {
	return m.base < base+size && base < m.base+m.size
}

// Bus routes reads and writes to the device owning the target address.
// Mappings are kept sorted by base address so lookup is a binary search for
// the greatest base not above the queried address.
type Bus struct {
	mappings []mapping
}

func NewBus() *Bus {
	return &Bus{}
}

// Register maps device at [base, base+size). Registration fails if the size
// is zero or the range intersects an existing mapping.
func (b *Bus) Register(device Device, base, size uint32) error {
	if size == 0 {
		return &RangeOverlapError{Base: base, Size: size}
	}

	for i := range b.mappings {
		if b.mappings[i].overlaps(base, size) {
			return &RangeOverlapError{Base: base, Size: size}
		}
	}

	b.mappings = append(b.mappings, mapping{base: base, size: size, device: device})
	sort.Slice(b.mappings, func(i, j int) bool {
		return b.mappings[i].base < b.mappings[j].base
	})
	return nil
}

// lookup finds the mapping containing address: the greatest base <= address
// whose range still covers it.
func (b *Bus) lookup(address uint32) *mapping {
	i := sort.Search(len(b.mappings), func(i int) bool {
		return b.mappings[i].base > address
	})
	if i == 0 {
		return nil
	}
	m := &b.mappings[i-1]
	if !m.contains(address) {
		return nil
	}
	return m
}

func (b *Bus) read(address uint32, data []byte) error {
	m := b.lookup(address)
	if m == nil {
		return &UnmappedAddressError{Address: address}
	}
	return m.device.Read(address-m.base, data)
}

func (b *Bus) write(address uint32, data []byte) error {
	m := b.lookup(address)
	if m == nil {
		return &UnmappedAddressError{Address: address}
	}
	return m.device.Write(address-m.base, data)
}

func (b *Bus) FetchWord(address uint32) (uint32, error) {
	var data [4]byte
	if err := b.read(address, data[:]); err != nil {
		return 0, err
	}
	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24, nil
}

func (b *Bus) FetchHalfword(address uint32) (uint16, error) {
	var data [2]byte
	if err := b.read(address, data[:]); err != nil {
		return 0, err
	}
	return uint16(data[0]) | uint16(data[1])<<8, nil
}

func (b *Bus) FetchByte(address uint32) (uint8, error) {
	var data [1]byte
	if err := b.read(address, data[:]); err != nil {
		return 0, err
	}
	return data[0], nil
}

func (b *Bus) StoreWord(address uint32, data uint32) error {
	return b.write(address, []byte{
		byte(data),
		byte(data >> 8),
		byte(data >> 16),
		byte(data >> 24),
	})
}

func (b *Bus) StoreHalfword(address uint32, data uint16) error {
	return b.write(address, []byte{byte(data), byte(data >> 8)})
}

func (b *Bus) StoreByte(address uint32, data uint8) error {
	return b.write(address, []byte{data})
}

// String renders the memory map, one mapping per line.
func (b *Bus) String() string {
	var sb strings.Builder
	for i := range b.mappings {
		m := &b.mappings[i]
		fmt.Fprintf(&sb, "  [0x%08x - 0x%08x]  %s\n", m.base, m.last(), m.device.DebugLabel())
	}
	return sb.String()
}
