package gdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mipsvm/internal/emulator"
)

func newTestServer(t *testing.T, words ...uint32) *Server {
	t.Helper()

	data := make([]byte, 0, len(words)*4)
	for _, w := range words {
		data = append(data, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	path := filepath.Join(t.TempDir(), "test.rom")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	opts := emulator.DefaultOptions()
	opts.RomFile = path
	emu, err := emulator.New(opts)
	require.NoError(t, err)

	return &Server{target: target{emu: emu}}
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint8(0), checksum(""))
	// "OK" = 0x4F + 0x4B
	assert.Equal(t, uint8(0x9A), checksum("OK"))
}

func TestHexWordIsLittleEndian(t *testing.T) {
	assert.Equal(t, "78563412", hexWord(0x12345678))

	val, ok := parseHexWord("78563412")
	require.True(t, ok)
	assert.Equal(t, uint32(0x12345678), val)
}

func TestHandleHaltReason(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	reply, done := s.handle("?")
	assert.Equal(t, "S05", reply)
	assert.False(t, done)
}

func TestHandleReadRegisters(t *testing.T) {
	s := newTestServer(t, 0x00000000)
	s.target.emu.CPU.Reg[2] = 0xCAFEBABE

	reply, _ := s.handle("g")
	require.Len(t, reply, numRegs*8)
	assert.Equal(t, hexWord(0xCAFEBABE), reply[2*8:3*8])
	assert.Equal(t, hexWord(0xBFC00000), reply[regPC*8:(regPC+1)*8], "pc slot")
}

func TestHandleSingleRegister(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	// p 0x25 is the program counter
	reply, _ := s.handle("p25")
	assert.Equal(t, hexWord(0xBFC00000), reply)

	reply, _ = s.handle("P25=" + hexWord(0xBFC00100))
	assert.Equal(t, "OK", reply)
	assert.Equal(t, uint32(0xBFC00100), s.target.emu.CPU.PC)
}

func TestHandleMemoryReadWrite(t *testing.T) {
	s := newTestServer(t, 0x3C040064) // lui $4, 0x64

	// The ROM word through its kseg1 virtual address, little-endian bytes
	reply, _ := s.handle("mbfc00000,4")
	assert.Equal(t, "6400043c", reply)

	// Write into RAM through kseg0 and read it back
	reply, _ = s.handle("M80000100,4:efbeadde")
	assert.Equal(t, "OK", reply)
	reply, _ = s.handle("m80000100,4")
	assert.Equal(t, "efbeadde", reply)

	word, err := s.target.emu.Bus.FetchWord(0x100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), word)
}

func TestHandleMemoryReadUnmappedIsNonFatal(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	reply, _ := s.handle("ma7000000,4")
	assert.Equal(t, "E14", reply)
}

func TestHandleBreakpoints(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	reply, _ := s.handle("Z0,bfc00004,4")
	assert.Equal(t, "OK", reply)
	assert.Equal(t, []uint32{0xBFC00004}, s.target.emu.Breakpoints)

	// Duplicates are allowed on add
	reply, _ = s.handle("Z0,bfc00004,4")
	assert.Equal(t, "OK", reply)
	assert.Len(t, s.target.emu.Breakpoints, 2)

	reply, _ = s.handle("z0,bfc00004,4")
	assert.Equal(t, "OK", reply)
	assert.Len(t, s.target.emu.Breakpoints, 1)

	// Removing an address that is not set fails
	reply, _ = s.handle("z0,bfc00008,4")
	assert.Equal(t, "E01", reply)
}

func TestHandleWatchpoints(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	reply, _ := s.handle("Z2,100,4")
	assert.Equal(t, "OK", reply)
	assert.Equal(t, []uint32{0x100}, s.target.emu.Watchpoints)

	reply, _ = s.handle("z2,100,4")
	assert.Equal(t, "OK", reply)
	assert.Empty(t, s.target.emu.Watchpoints)

	reply, _ = s.handle("z3,100,4")
	assert.Equal(t, "E01", reply)
}

func TestHandleStep(t *testing.T) {
	s := newTestServer(t, 0x00000000, 0x00000000)

	reply, _ := s.handle("s")
	assert.Equal(t, "S05", reply)
	assert.Equal(t, uint32(0xBFC00004), s.target.emu.CPU.PC)
}

func TestHandleContinueToBreakpoint(t *testing.T) {
	s := newTestServer(t, 0x00000000, 0x00000000, 0x00000000)
	s.handle("Z0,bfc00008,4")

	reply, _ := s.handle("c")
	assert.Equal(t, "S05", reply)
	assert.Equal(t, uint32(0xBFC00008), s.target.emu.CPU.PC)
}

func TestHandleContinueToHalt(t *testing.T) {
	s := newTestServer(t,
		0x3C01A101, // lui $1, 0xa101
		0x34210024, // ori $1, $1, 0x0024
		0x24020001, // addiu $2, $0, 1
		0xA0220000, // sb $2, 0($1)
	)

	reply, _ := s.handle("c")
	assert.Equal(t, "W00", reply)
}

func TestHandleContinueToWatchpoint(t *testing.T) {
	s := newTestServer(t,
		0x3C01A000, // lui $1, 0xa000
		0x34210100, // ori $1, $1, 0x0100
		0xAC220000, // sw $2, 0($1)
	)
	s.handle("Z2,100,4")

	reply, _ := s.handle("c")
	assert.Equal(t, "T05watch:100;", reply)
}

func TestHandleQSupported(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	reply, _ := s.handle("qSupported:multiprocess+;swbreak+")
	assert.Contains(t, reply, "PacketSize=")
}

func TestHandleKillEndsSession(t *testing.T) {
	s := newTestServer(t, 0x00000000)

	_, done := s.handle("k")
	assert.True(t, done)

	reply, done := s.handle("D")
	assert.Equal(t, "OK", reply)
	assert.True(t, done)
}

func TestRegisterFileMapping(t *testing.T) {
	s := newTestServer(t, 0x00000000)
	cpu := s.target.emu.CPU
	cpu.Lo = 1
	cpu.Hi = 2
	cpu.CP0.SetStatus(0x12345678)

	val, ok := s.target.readRegister(regLo)
	require.True(t, ok)
	assert.Equal(t, uint32(1), val)

	val, _ = s.target.readRegister(regHi)
	assert.Equal(t, uint32(2), val)

	val, _ = s.target.readRegister(regStatus)
	assert.Equal(t, uint32(0x12345678), val)

	// FPU block reads as zero
	val, ok = s.target.readRegister(40)
	require.True(t, ok)
	assert.Zero(t, val)

	_, ok = s.target.readRegister(numRegs)
	assert.False(t, ok)
}
