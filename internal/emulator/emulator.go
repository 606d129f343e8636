// Package emulator assembles the machine: the CPU, the bus and its devices,
// and the stepping loop that drives them.
package emulator

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"

	"mipsvm/internal/memory"
	"mipsvm/internal/mips32"
)

// EventKind classifies the outcome of one emulation step.
type EventKind int

const (
	// EventStep: the instruction completed without anything to report.
	EventStep EventKind = iota
	// EventHalted: the machine requested a halt.
	EventHalted
	// EventBreakpoint: the PC landed on a breakpoint.
	EventBreakpoint
	// EventWatchRead: a watched address was read.
	EventWatchRead
	// EventWatchWrite: a watched address was written.
	EventWatchWrite
	// EventInterrupted: a debugger interrupt stopped a free run.
	EventInterrupted
)

// Event is the result of one step. Address is set for watchpoint events.
type Event struct {
	Kind    EventKind
	Address uint32
}

// Emulator owns the processor state, the bus, and the breakpoint and
// watchpoint sets that the debug adapter mutates between steps.
type Emulator struct {
	CPU *mips32.CPU
	Bus *memory.Bus

	Breakpoints []uint32
	Watchpoints []uint32

	instructionCount uint64
	opts             Options
}

// New builds the machine described by opts: ROM mapped below kseg1, RAM at
// physical zero, and the halt/test/console devices at their fixed addresses.
func New(opts Options) (*Emulator, error) {
	if opts.BigEndian {
		fmt.Println("Interpreting ROM file as Big-Endian")
	} else {
		fmt.Println("Interpreting ROM file as Little-Endian")
	}

	bus := memory.NewBus()

	if err := setupROM(&opts, bus); err != nil {
		return nil, err
	}
	if err := setupRAM(&opts, bus); err != nil {
		return nil, err
	}
	if err := setupHaltDevice(&opts, bus); err != nil {
		return nil, err
	}
	if err := setupTestDevice(bus); err != nil {
		return nil, err
	}
	if err := setupConsole(&opts, bus); err != nil {
		return nil, err
	}

	if opts.MemMap {
		fmt.Println("Physical memory map:")
		fmt.Print(bus.String())
	}

	cpu := mips32.NewCPU(opts.InstrDump)

	return &Emulator{
		CPU:  cpu,
		Bus:  bus,
		opts: opts,
	}, nil
}

func setupROM(opts *Options, bus *memory.Bus) error {
	// Boot code must live in kseg1: the uncached segment is the only one
	// the processor can run before the caches are configured.
	if opts.LoadAddress < mips32.KSEG1 {
		return fmt.Errorf("load address 0x%08x must be at least 0x%08x (kseg1)",
			opts.LoadAddress, mips32.KSEG1)
	}
	paddress := opts.LoadAddress - mips32.KSEG1

	rom, err := memory.NewROM(opts.RomFile, opts.BigEndian)
	if err != nil {
		return err
	}

	fmt.Printf("Mapping ROM image (%s, %d words) to physical address 0x%08x\n",
		opts.RomFile, rom.Size()/4, paddress)
	return bus.Register(rom, paddress, rom.Size())
}

func setupRAM(opts *Options, bus *memory.Bus) error {
	ram := memory.NewRAM(opts.MemSize)

	fmt.Printf("Mapping RAM module (%dKB) to physical address 0x%08x\n",
		opts.MemSize/1024, 0)
	return bus.Register(ram, 0, ram.Size())
}

func setupHaltDevice(opts *Options, bus *memory.Bus) error {
	if opts.NoHaltDevice {
		return nil
	}

	fmt.Printf("Mapping Halt Device to physical address 0x%08x\n", memory.HaltBase)
	return bus.Register(memory.HaltDevice{}, memory.HaltBase, 4)
}

func setupTestDevice(bus *memory.Bus) error {
	fmt.Printf("Mapping Test Device to physical address 0x%08x\n", memory.TestDeviceBase)
	return bus.Register(memory.NewTestDevice(), memory.TestDeviceBase, memory.TestDeviceLen)
}

func setupConsole(opts *Options, bus *memory.Bus) error {
	if !opts.Console {
		return nil
	}

	fmt.Printf("Mapping Console to physical address 0x%08x\n", memory.ConsoleBase)
	return bus.Register(memory.NewConsole(), memory.ConsoleBase, memory.ConsoleLen)
}

// InstructionCount returns the number of instructions executed so far.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Step executes one guest instruction and reports what happened.
//
// The bus is wrapped in a fresh watchpoint monitor each step so that
// watchpoint-set mutations made by the debug adapter between steps take
// effect immediately.
func (e *Emulator) Step() (Event, error) {
	var hit *memory.Access

	monitor := memory.NewMonitor(e.Bus, e.Watchpoints, func(access memory.Access) {
		hit = &access
	})

	if err := e.CPU.Step(monitor); err != nil {
		if errors.Is(err, memory.ErrHalt) {
			return Event{Kind: EventHalted}, nil
		}
		return Event{}, err
	}

	e.instructionCount++

	if e.opts.DumpCPU {
		fmt.Println(e.CPU)
	}

	if e.opts.MaxInstrs > 0 && e.instructionCount >= e.opts.MaxInstrs {
		glog.Warningf("instruction budget of %d exhausted", e.opts.MaxInstrs)
		return Event{Kind: EventHalted}, nil
	}

	if hit != nil {
		kind := EventWatchRead
		if hit.Kind == memory.AccessWrite {
			kind = EventWatchWrite
		}
		return Event{Kind: kind, Address: hit.Address}, nil
	}

	for _, bp := range e.Breakpoints {
		if bp == e.CPU.PC {
			return Event{Kind: EventBreakpoint}, nil
		}
	}

	return Event{Kind: EventStep}, nil
}

// Resume drives stepping for the debug adapter. With step set it executes a
// single instruction. Otherwise it free-runs until an event stops it,
// checking interruptPending every 1024 instructions so a debugger's
// interrupt request is honoured with bounded latency.
func (e *Emulator) Resume(step bool, interruptPending func() bool) (Event, error) {
	if step {
		return e.Step()
	}

	cycles := 0
	for {
		event, err := e.Step()
		if err != nil {
			return event, err
		}
		if event.Kind != EventStep {
			return event, nil
		}

		cycles++
		if cycles%1024 == 0 && interruptPending != nil && interruptPending() {
			return Event{Kind: EventInterrupted}, nil
		}
	}
}

// Run steps the machine until it halts. Breakpoint and watchpoint events are
// inert while no debugger is attached.
func (e *Emulator) Run() error {
	fmt.Println("\n*************[ RESET ]*************")
	fmt.Println()

	for {
		event, err := e.Step()
		if err != nil {
			return err
		}
		if event.Kind != EventHalted {
			continue
		}

		fmt.Printf("Executed %d instructions\n", e.instructionCount)
		fmt.Println("\n*************[ HALT ]*************")
		fmt.Println()

		if e.opts.HaltDumpCPU {
			fmt.Println(e.CPU)
		}
		if e.opts.HaltDumpCP0 {
			e.DumpCP0()
		}
		return nil
	}
}

// DumpCP0 prints the control coprocessor state, TLB included.
func (e *Emulator) DumpCP0() {
	regs := e.CPU.CP0.Registers()
	fmt.Printf("CP0 registers:\n%s", spew.Sdump(regs))

	fmt.Println("TLB entries (non-zero):")
	for i := 0; i < mips32.TLBEntries; i++ {
		entry := e.CPU.CP0.TLB(i)
		if entry.EntryHi == 0 && entry.EntryLo == 0 {
			continue
		}
		fmt.Printf("  %2d: %s", i, spew.Sdump(entry))
	}
}

// Crashdump renders the processor and memory map state for a fatal error.
func (e *Emulator) Crashdump() string {
	return fmt.Sprintf("%s\n\nPhysical memory map:\n%s", e.CPU, e.Bus)
}
