// Package gdb exposes the emulator to a host debugger over the GDB Remote
// Serial Protocol.
package gdb

import (
	"github.com/golang/glog"

	"mipsvm/internal/emulator"
	"mipsvm/internal/mips32"
)

// numRegs is the size of the GDB MIPS register file: 32 GPRs, the six
// special registers, and the (unimplemented) FPU block.
//
// Layout: r0-r31, sr, lo, hi, badvaddr, cause, pc, f0-f31, fcsr, fir.
const numRegs = 72

const (
	regStatus   = 32
	regLo       = 33
	regHi       = 34
	regBadVaddr = 35
	regCause    = 36
	regPC       = 37
)

// target maps debugger requests onto emulator primitives. Host-level bus
// errors surface as non-fatal target errors so the debugging session
// survives bad addresses.
type target struct {
	emu *emulator.Emulator
}

func (t *target) readRegister(n int) (uint32, bool) {
	cpu := t.emu.CPU
	switch {
	case n < mips32.NumGPR:
		return cpu.Reg[n], true
	case n == regStatus:
		return cpu.CP0.Status(), true
	case n == regLo:
		return cpu.Lo, true
	case n == regHi:
		return cpu.Hi, true
	case n == regBadVaddr:
		return cpu.CP0.BadVaddr(), true
	case n == regCause:
		return cpu.CP0.Cause(), true
	case n == regPC:
		return cpu.PC, true
	case n < numRegs:
		// FPU registers read as zero; there is no CP1
		return 0, true
	}
	return 0, false
}

func (t *target) writeRegister(n int, val uint32) bool {
	cpu := t.emu.CPU
	switch {
	case n < mips32.NumGPR:
		cpu.Reg[n] = val
	case n == regStatus:
		cpu.CP0.SetStatus(val)
	case n == regLo:
		cpu.Lo = val
	case n == regHi:
		cpu.Hi = val
	case n == regBadVaddr:
		cpu.CP0.SetBadVaddr(val)
	case n == regCause:
		cpu.CP0.SetCause(val)
	case n == regPC:
		cpu.PC = val
	case n < numRegs:
		// FPU register writes are discarded
	default:
		return false
	}
	return true
}

// readAddrs fills data with guest memory starting at the virtual address
// start. Addresses go through CP0 translation, then byte-level bus routing.
func (t *target) readAddrs(start uint32, data []byte) bool {
	for i := range data {
		address := t.emu.CPU.CP0.Translate(start + uint32(i))
		value, err := t.emu.Bus.FetchByte(address)
		if err != nil {
			glog.Errorf("GDB failed to access memory: %v", err)
			return false
		}
		data[i] = value
	}
	return true
}

// writeAddrs stores data into guest memory starting at the virtual address
// start.
func (t *target) writeAddrs(start uint32, data []byte) bool {
	for i, value := range data {
		address := t.emu.CPU.CP0.Translate(start + uint32(i))
		if err := t.emu.Bus.StoreByte(address, value); err != nil {
			glog.Errorf("GDB failed to access memory: %v", err)
			return false
		}
	}
	return true
}

// addBreakpoint registers a software breakpoint; duplicates are allowed.
func (t *target) addBreakpoint(address uint32) {
	t.emu.Breakpoints = append(t.emu.Breakpoints, address)
}

// removeBreakpoint drops one occurrence of address. It reports false when
// the address was not set.
func (t *target) removeBreakpoint(address uint32) bool {
	for i, bp := range t.emu.Breakpoints {
		if bp == address {
			t.emu.Breakpoints = append(t.emu.Breakpoints[:i], t.emu.Breakpoints[i+1:]...)
			return true
		}
	}
	return false
}

// addWatchpoint registers a hardware watchpoint; duplicates are allowed.
func (t *target) addWatchpoint(address uint32) {
	t.emu.Watchpoints = append(t.emu.Watchpoints, address)
}

// removeWatchpoint drops one occurrence of address. It reports false when
// the address was not set.
func (t *target) removeWatchpoint(address uint32) bool {
	for i, wp := range t.emu.Watchpoints {
		if wp == address {
			t.emu.Watchpoints = append(t.emu.Watchpoints[:i], t.emu.Watchpoints[i+1:]...)
			return true
		}
	}
	return false
}
