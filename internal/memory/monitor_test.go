package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMonitoredRAM(t *testing.T, watched []uint32) (*Monitor, *[]Access) {
	t.Helper()

	bus := NewBus()
	require.NoError(t, bus.Register(NewRAM(0x1000), 0, 0x1000))

	var seen []Access
	monitor := NewMonitor(bus, watched, func(access Access) {
		seen = append(seen, access)
	})
	return monitor, &seen
}

func TestMonitorReportsWatchedWrite(t *testing.T) {
	monitor, seen := newMonitoredRAM(t, []uint32{0x100})

	require.NoError(t, monitor.StoreWord(0x100, 0xDEADBEEF))

	require.Len(t, *seen, 1)
	access := (*seen)[0]
	assert.Equal(t, AccessWrite, access.Kind)
	assert.Equal(t, uint32(0x100), access.Address)
	assert.Equal(t, uint32(0xDEADBEEF), access.Data)
	assert.Equal(t, 4, access.Len)
}

func TestMonitorReportsWatchedRead(t *testing.T) {
	monitor, seen := newMonitoredRAM(t, []uint32{0x40})

	require.NoError(t, monitor.StoreByte(0x40, 0x7F))
	_, err := monitor.FetchByte(0x40)
	require.NoError(t, err)

	require.Len(t, *seen, 2)
	assert.Equal(t, AccessWrite, (*seen)[0].Kind)
	assert.Equal(t, AccessRead, (*seen)[1].Kind)
	assert.Equal(t, uint32(0x7F), (*seen)[1].Data)
	assert.Equal(t, 1, (*seen)[1].Len)
}

func TestMonitorIgnoresUnwatchedAddresses(t *testing.T) {
	monitor, seen := newMonitoredRAM(t, []uint32{0x100})

	require.NoError(t, monitor.StoreWord(0x200, 1))
	_, err := monitor.FetchWord(0x200)
	require.NoError(t, err)

	assert.Empty(t, *seen)
}

func TestMonitorIsTransparent(t *testing.T) {
	monitor, _ := newMonitoredRAM(t, []uint32{0x100})

	require.NoError(t, monitor.StoreWord(0x100, 0x11223344))
	word, err := monitor.FetchWord(0x100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11223344), word)
}
