package emulator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mipsvm/internal/mips32"
)

// writeROM assembles a little-endian ROM image from instruction words.
func writeROM(t *testing.T, words ...uint32) string {
	t.Helper()

	data := make([]byte, 0, len(words)*4)
	for _, w := range words {
		data = append(data, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}

	path := filepath.Join(t.TempDir(), "test.rom")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestEmulator(t *testing.T, opts Options, words ...uint32) *Emulator {
	t.Helper()

	opts.RomFile = writeROM(t, words...)
	emu, err := New(opts)
	require.NoError(t, err)
	return emu
}

func TestNewRejectsLowLoadAddress(t *testing.T) {
	opts := DefaultOptions()
	opts.LoadAddress = 0x80000000
	opts.RomFile = writeROM(t, 0x00000000)

	_, err := New(opts)
	assert.Error(t, err)
}

func TestStepReturnsStepEvent(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(), 0x00000000) // nop

	event, err := emu.Step()
	require.NoError(t, err)
	assert.Equal(t, EventStep, event.Kind)
	assert.Equal(t, uint64(1), emu.InstructionCount())
}

func TestHaltDeviceStopsTheMachine(t *testing.T) {
	// Store a non-zero byte at the halt device through its kseg1 window
	emu := newTestEmulator(t, DefaultOptions(),
		0x3C01A101, // lui $1, 0xa101
		0x34210024, // ori $1, $1, 0x0024
		0x24020001, // addiu $2, $0, 1
		0xA0220000, // sb $2, 0($1)
	)

	for i := 0; i < 3; i++ {
		event, err := emu.Step()
		require.NoError(t, err)
		require.Equal(t, EventStep, event.Kind)
	}

	event, err := emu.Step()
	require.NoError(t, err)
	assert.Equal(t, EventHalted, event.Kind)
}

func TestRunTerminatesOnHalt(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(),
		0x3C01A101, // lui $1, 0xa101
		0x34210024, // ori $1, $1, 0x0024
		0x24020001, // addiu $2, $0, 1
		0xA0220000, // sb $2, 0($1)
	)

	assert.NoError(t, emu.Run())
}

func TestNoHaltDeviceLeavesRangeUnmapped(t *testing.T) {
	opts := DefaultOptions()
	opts.NoHaltDevice = true
	emu := newTestEmulator(t, opts,
		0x3C01A101, // lui $1, 0xa101
		0x34210024, // ori $1, $1, 0x0024
		0x24020001, // addiu $2, $0, 1
		0xA0220000, // sb $2, 0($1): store to unmapped memory
	)

	for i := 0; i < 3; i++ {
		_, err := emu.Step()
		require.NoError(t, err)
	}

	_, err := emu.Step()
	assert.Error(t, err, "store to the unmapped halt range is a bus error")
}

func TestWatchpointReportsWrite(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(),
		0x3C01A000, // lui $1, 0xa000
		0x34210100, // ori $1, $1, 0x0100
		0xAC220000, // sw $2, 0($1)
	)
	emu.Watchpoints = []uint32{0x100}

	for i := 0; i < 2; i++ {
		event, err := emu.Step()
		require.NoError(t, err)
		require.Equal(t, EventStep, event.Kind)
	}

	event, err := emu.Step()
	require.NoError(t, err)
	assert.Equal(t, EventWatchWrite, event.Kind)
	assert.Equal(t, uint32(0x100), event.Address)
}

func TestWatchpointReportsRead(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(),
		0x3C01A000, // lui $1, 0xa000
		0x34210100, // ori $1, $1, 0x0100
		0x8C220000, // lw $2, 0($1)
	)
	emu.Watchpoints = []uint32{0x100}

	for i := 0; i < 2; i++ {
		_, err := emu.Step()
		require.NoError(t, err)
	}

	event, err := emu.Step()
	require.NoError(t, err)
	assert.Equal(t, EventWatchRead, event.Kind)
	assert.Equal(t, uint32(0x100), event.Address)
}

func TestBreakpointStopsStep(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(), 0x00000000, 0x00000000)
	emu.Breakpoints = []uint32{0xBFC00004}

	event, err := emu.Step()
	require.NoError(t, err)
	assert.Equal(t, EventBreakpoint, event.Kind)
}

func TestInstructionBudgetHalts(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxInstrs = 5
	emu := newTestEmulator(t, opts,
		0x1000FFFF, // beq $0, $0, -1: loop forever
		0x00000000, // nop
	)

	assert.NoError(t, emu.Run())
	assert.Equal(t, uint64(5), emu.InstructionCount())
}

func TestResumeStepsOnce(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(), 0x00000000, 0x00000000)

	event, err := emu.Resume(true, nil)
	require.NoError(t, err)
	assert.Equal(t, EventStep, event.Kind)
	assert.Equal(t, uint64(1), emu.InstructionCount())
}

func TestResumeHonoursInterrupt(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(),
		0x1000FFFF, // beq $0, $0, -1
		0x00000000, // nop
	)

	event, err := emu.Resume(false, func() bool { return true })
	require.NoError(t, err)
	assert.Equal(t, EventInterrupted, event.Kind)
	// The poll fires every 1024 instructions
	assert.Equal(t, uint64(1024), emu.InstructionCount())
}

func TestResumeRunsToBreakpoint(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(), 0x00000000, 0x00000000, 0x00000000)
	emu.Breakpoints = []uint32{0xBFC00008}

	event, err := emu.Resume(false, nil)
	require.NoError(t, err)
	assert.Equal(t, EventBreakpoint, event.Kind)
	assert.Equal(t, uint32(0xBFC00008), emu.CPU.PC)
}

func TestCrashdumpContainsState(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(), 0x00000000)

	dump := emu.Crashdump()
	assert.Contains(t, dump, "Physical memory map")
	assert.Contains(t, dump, "ram")
}

func TestRomMappedAtLoadAddress(t *testing.T) {
	emu := newTestEmulator(t, DefaultOptions(), 0x3C040064) // lui $4, 0x64

	word, err := emu.Bus.FetchWord(0x1FC00000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3C040064), word)

	// And the CPU fetches it through kseg1 translation
	require.NoError(t, emu.CPU.Step(emu.Bus))
	assert.Equal(t, uint32(0x00640000), emu.CPU.Reg[4])
}

func TestOptionsFileMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"memsize = 2097152\nmaxinstrs = 1000\nconsole = false\n",
	), 0o644))

	file, err := LoadFileOptions(path)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.MemSize = 4096 // pretend --memsize was given on the command line
	file.Apply(&opts, func(name string) bool { return name == "memsize" })

	assert.Equal(t, uint32(4096), opts.MemSize, "explicit flag wins")
	assert.Equal(t, uint64(1000), opts.MaxInstrs)
}

func TestDefaultLoadAddressIsResetVector(t *testing.T) {
	assert.Equal(t, mips32.ResetVector, DefaultOptions().LoadAddress)
}
