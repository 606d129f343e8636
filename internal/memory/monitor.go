package memory

// AccessKind distinguishes monitored reads from writes.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// Access describes one monitored bus transaction.
type Access struct {
	Kind    AccessKind
	Address uint32
	Data    uint32
	Len     int
}

// Monitor is a transparent decorator over a Memory that reports accesses to
// watched base addresses through a callback. It never alters the transaction
// itself; the callback fires after the underlying access succeeds and before
// control returns to the CPU.
type Monitor struct {
	memory    Memory
	addresses []uint32
	onAccess  func(Access)
}

func NewMonitor(memory Memory, addresses []uint32, onAccess func(Access)) *Monitor {
	return &Monitor{
		memory:    memory,
		addresses: addresses,
		onAccess:  onAccess,
	}
}

func (m *Monitor) watched(address uint32) bool {
	for _, a := range m.addresses {
		if a == address {
			return true
		}
	}
	return false
}

func (m *Monitor) FetchWord(address uint32) (uint32, error) {
	data, err := m.memory.FetchWord(address)
	if err != nil {
		return 0, err
	}
	if m.watched(address) {
		m.onAccess(Access{Kind: AccessRead, Address: address, Data: data, Len: 4})
	}
	return data, nil
}

func (m *Monitor) FetchHalfword(address uint32) (uint16, error) {
	data, err := m.memory.FetchHalfword(address)
	if err != nil {
		return 0, err
	}
	if m.watched(address) {
		m.onAccess(Access{Kind: AccessRead, Address: address, Data: uint32(data), Len: 2})
	}
	return data, nil
}

func (m *Monitor) FetchByte(address uint32) (uint8, error) {
	data, err := m.memory.FetchByte(address)
	if err != nil {
		return 0, err
	}
	if m.watched(address) {
		m.onAccess(Access{Kind: AccessRead, Address: address, Data: uint32(data), Len: 1})
	}
	return data, nil
}

func (m *Monitor) StoreWord(address uint32, data uint32) error {
	if err := m.memory.StoreWord(address, data); err != nil {
		return err
	}
	if m.watched(address) {
		m.onAccess(Access{Kind: AccessWrite, Address: address, Data: data, Len: 4})
	}
	return nil
}

func (m *Monitor) StoreHalfword(address uint32, data uint16) error {
	if err := m.memory.StoreHalfword(address, data); err != nil {
		return err
	}
	if m.watched(address) {
		m.onAccess(Access{Kind: AccessWrite, Address: address, Data: uint32(data), Len: 2})
	}
	return nil
}

func (m *Monitor) StoreByte(address uint32, data uint8) error {
	if err := m.memory.StoreByte(address, data); err != nil {
		return err
	}
	if m.watched(address) {
		m.onAccess(Access{Kind: AccessWrite, Address: address, Data: uint32(data), Len: 1})
	}
	return nil
}
