package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAMRoundTrip(t *testing.T) {
	ram := NewRAM(0x100)

	require.NoError(t, ram.Write(0x10, []byte{0xDE, 0xAD}))
	data := make([]byte, 2)
	require.NoError(t, ram.Read(0x10, data))
	assert.Equal(t, []byte{0xDE, 0xAD}, data)
}

func TestRAMZeroInitialised(t *testing.T) {
	ram := NewRAM(0x10)
	data := make([]byte, 0x10)
	require.NoError(t, ram.Read(0, data))
	assert.Equal(t, make([]byte, 0x10), data)
}

func TestRAMOutOfBounds(t *testing.T) {
	ram := NewRAM(0x10)

	var readErr *ReadError
	assert.ErrorAs(t, ram.Read(0x10, make([]byte, 1)), &readErr)

	var writeErr *WriteError
	assert.ErrorAs(t, ram.Write(0x0E, []byte{1, 2, 3}), &writeErr)
}

func TestHaltDeviceNonZeroWriteHalts(t *testing.T) {
	var halt HaltDevice

	assert.ErrorIs(t, halt.Write(0, []byte{1}), ErrHalt)
	assert.ErrorIs(t, halt.Write(0, []byte{0, 0, 0, 0x80}), ErrHalt)
	assert.NoError(t, halt.Write(0, []byte{0, 0, 0, 0}))
}

func TestHaltDeviceReadsZero(t *testing.T) {
	var halt HaltDevice

	data := []byte{0xFF, 0xFF}
	require.NoError(t, halt.Read(0, data))
	assert.Equal(t, []byte{0, 0}, data)
}

func TestTestDeviceScratch(t *testing.T) {
	dev := NewTestDevice()

	require.NoError(t, dev.Write(0, []byte{0x42}))
	data := make([]byte, 1)
	require.NoError(t, dev.Read(0, data))
	assert.Equal(t, byte(0x42), data[0])

	assert.Error(t, dev.Write(TestDeviceLen, []byte{1}))
}

func TestROMLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.rom")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03, 0x04}, 0o644))

	rom, err := NewROM(path, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), rom.Size())

	data := make([]byte, 4)
	require.NoError(t, rom.Read(0, data))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, data)
}

func TestROMBigEndianSwapsWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.rom")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03, 0x04, 0xAA}, 0o644))

	rom, err := NewROM(path, true)
	require.NoError(t, err)

	data := make([]byte, 5)
	require.NoError(t, rom.Read(0, data))
	// Aligned words are byte-swapped; the trailing partial word stays as-is
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0xAA}, data)
}

func TestROMMissingFile(t *testing.T) {
	_, err := NewROM(filepath.Join(t.TempDir(), "nope.rom"), false)

	var romErr *RomLoadingError
	require.ErrorAs(t, err, &romErr)
}

func TestROMWritesAreStored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.rom")
	require.NoError(t, os.WriteFile(path, make([]byte, 8), 0o644))

	rom, err := NewROM(path, false)
	require.NoError(t, err)

	require.NoError(t, rom.Write(4, []byte{0x55}))
	data := make([]byte, 1)
	require.NoError(t, rom.Read(4, data))
	assert.Equal(t, byte(0x55), data[0])
}
