package mips32

import (
	"fmt"
	"strings"

	"github.com/golang/glog"

	"mipsvm/internal/memory"
)

// GPR indices with architectural roles.
const (
	RegZero = 0
	RegRA   = 31
)

// NumGPR is the number of general-purpose registers in the processor.
const NumGPR = 32

// DelayState tracks the two-stage branch delay-slot transition.
type DelayState int

const (
	// DelayNormal: no delay slot handling needs to occur.
	DelayNormal DelayState = iota
	// DelayDelaying: the instruction just executed scheduled a branch; the
	// PC update of the same step moves on to the delay slot.
	DelayDelaying
	// DelaySlot: the instruction at PC executes in a branch delay slot; the
	// step that runs it jumps to DelayPC.
	DelaySlot
)

// CPU is the MIPS R3000A integer core: the 32 GPRs, hi/lo, the program
// counter, the delay-slot state machine, and the system control coprocessor.
type CPU struct {
	// PC is the program counter.
	PC uint32
	// Reg are the general-purpose registers. Reg[0] is hardwired to zero.
	Reg [NumGPR]uint32
	// Instruction is the word currently being executed, kept for diagnostics.
	Instruction Instruction
	// Hi and Lo hold multiply/divide results.
	Hi uint32
	Lo uint32
	// DelayState and DelayPC drive the branch delay-slot discipline.
	DelayState DelayState
	DelayPC    uint32
	// CP0 is the system control coprocessor.
	CP0 COP0

	// exceptionPending suppresses the normal PC update for the step in
	// which an exception vectored the PC.
	exceptionPending bool

	// instrdump enables per-instruction disassembly on stdout.
	instrdump bool
}

// NewCPU returns a CPU in the reset state. When instrdump is set every
// executed instruction is disassembled to stdout.
func NewCPU(instrdump bool) *CPU {
	c := &CPU{instrdump: instrdump}
	c.Reset()
	return c
}

// Reset restores the processor to its startup state: execution resumes at
// the boot ROM entry in kseg1 with CP0 in its reset configuration.
func (c *CPU) Reset() {
	c.Reg[RegZero] = 0
	c.PC = ResetVector
	c.DelayState = DelayNormal
	c.DelayPC = 0
	c.CP0.Reset()
}

// Step fetches, decodes and executes one instruction against mem.
//
// Guest-visible exceptions are handled inside the step by vectoring the PC;
// the step still returns nil. Host-level failures (unmapped bus ranges,
// device faults) are returned as errors. memory.ErrHalt reports a clean halt
// request from the guest.
func (c *CPU) Step(mem memory.Memory) error {
	c.exceptionPending = false

	phys := c.CP0.Translate(c.PC)
	if phys == AddressErrorSentinel {
		c.CP0.SetBadVaddr(c.PC)
		if err := c.exception(ExcLoadAddressError); err != nil {
			return err
		}
	} else {
		word, err := mem.FetchWord(phys)
		if err != nil {
			glog.Warningf("instruction fetch failed at PC=0x%08x: %v", c.PC, err)
			return c.exception(ExcInstructionBusError)
		}
		c.Instruction = Instruction(word)

		if c.instrdump {
			fmt.Printf("PC=0x%08x [%08x]\t%08x  %s\n", c.PC, phys, word, Disassemble(word, c.PC))
		}

		if err := c.execute(mem, c.Instruction); err != nil {
			return err
		}
	}

	// Register $zero is hardwired: instructions may write it, but the
	// result is discarded at the end of every step.
	c.Reg[RegZero] = 0

	c.CP0.Step()

	// Update the program counter. An exception has already placed the
	// vector address in PC; otherwise DelayState decides whether this step
	// completes a pending branch.
	switch {
	case c.exceptionPending:
		c.DelayState = DelayNormal
	case c.DelayState == DelayNormal:
		c.PC += 4
	case c.DelayState == DelayDelaying:
		c.PC += 4
		c.DelayState = DelaySlot
	case c.DelayState == DelaySlot:
		c.PC = c.DelayPC
		c.DelayState = DelayNormal
	}

	return nil
}

// execute dispatches on the primary opcode, then on funct for R-type
// instructions and on rt for the REGIMM branch group. Unrecognised entries
// route uniformly to the reserved-instruction handler.
func (c *CPU) execute(mem memory.Memory, instr Instruction) error {
	switch instr.Opcode() {
	case 0x00:
		switch instr.Funct() {
		case 0x00:
			c.sll(instr)
		case 0x02:
			c.srl(instr)
		case 0x03:
			c.sra(instr)
		case 0x04:
			c.sllv(instr)
		case 0x06:
			c.srlv(instr)
		case 0x07:
			c.srav(instr)
		case 0x08:
			c.jr(instr)
		case 0x09:
			c.jalr(instr)
		case 0x0C:
			return c.syscall()
		case 0x0D:
			return c.breakInstr()
		case 0x10:
			c.mfhi(instr)
		case 0x11:
			c.mthi(instr)
		case 0x12:
			c.mflo(instr)
		case 0x13:
			c.mtlo(instr)
		case 0x18:
			c.mult(instr)
		case 0x19:
			c.multu(instr)
		case 0x1A:
			c.div(instr)
		case 0x1B:
			c.divu(instr)
		case 0x20:
			return c.add(instr)
		case 0x21:
			c.addu(instr)
		case 0x22:
			return c.sub(instr)
		case 0x23:
			c.subu(instr)
		case 0x24:
			c.and(instr)
		case 0x25:
			c.or(instr)
		case 0x26:
			c.xor(instr)
		case 0x27:
			c.nor(instr)
		case 0x2A:
			c.slt(instr)
		case 0x2B:
			c.sltu(instr)
		default:
			return c.reservedInstruction()
		}
	case 0x01:
		switch instr.Rt() {
		case 0x00:
			c.bltz(instr)
		case 0x01:
			c.bgez(instr)
		case 0x10:
			c.bltzal(instr)
		case 0x11:
			c.bgezal(instr)
		default:
			return c.reservedInstruction()
		}
	case 0x02:
		c.j(instr)
	case 0x03:
		c.jal(instr)
	case 0x04:
		c.beq(instr)
	case 0x05:
		c.bne(instr)
	case 0x06:
		c.blez(instr)
	case 0x07:
		c.bgtz(instr)
	case 0x08:
		return c.addi(instr)
	case 0x09:
		c.addiu(instr)
	case 0x0A:
		c.slti(instr)
	case 0x0B:
		c.sltiu(instr)
	case 0x0C:
		c.andi(instr)
	case 0x0D:
		c.ori(instr)
	case 0x0E:
		c.xori(instr)
	case 0x0F:
		c.lui(instr)
	case 0x10:
		return c.cop0(instr)
	case 0x11:
		return c.coprocessorUnimpl(1, instr)
	case 0x12:
		return c.coprocessorUnimpl(2, instr)
	case 0x13:
		return c.coprocessorUnimpl(3, instr)
	case 0x20:
		return c.lb(mem, instr)
	case 0x21:
		return c.lh(mem, instr)
	case 0x22:
		return c.lwl(mem, instr)
	case 0x23:
		return c.lw(mem, instr)
	case 0x24:
		return c.lbu(mem, instr)
	case 0x25:
		return c.lhu(mem, instr)
	case 0x26:
		return c.lwr(mem, instr)
	case 0x28:
		return c.sb(mem, instr)
	case 0x29:
		return c.sh(mem, instr)
	case 0x2A:
		return c.swl(mem, instr)
	case 0x2B:
		return c.sw(mem, instr)
	case 0x2E:
		return c.swr(mem, instr)
	case 0x31:
		return c.coprocessorUnimpl(1, instr)
	case 0x32:
		return c.coprocessorUnimpl(2, instr)
	case 0x33:
		return c.coprocessorUnimpl(3, instr)
	case 0x38:
		return c.coprocessorUnimpl(1, instr)
	case 0x39:
		return c.coprocessorUnimpl(2, instr)
	case 0x3A:
		return c.coprocessorUnimpl(3, instr)
	default:
		return c.reservedInstruction()
	}
	return nil
}

// cop0 handles system control coprocessor instructions. For rs >= 16 the
// funct field selects the TLB operations and rfe; below that rs selects
// register moves and the bc0x branch group.
func (c *CPU) cop0(instr Instruction) error {
	if instr.Rs() >= 16 {
		switch instr.Funct() {
		case 0x01:
			c.CP0.Tlbr()
		case 0x02:
			c.CP0.Tlbwi()
		case 0x06:
			c.CP0.Tlbwr()
		case 0x08:
			c.CP0.Tlbp()
		case 0x10:
			c.CP0.Rfe()
		default:
			return c.reservedInstruction()
		}
		return nil
	}

	switch instr.Rs() {
	case 0x00:
		c.mfc0(instr)
	case 0x04:
		c.mtc0(instr)
	case 0x08:
		c.bc0x(instr)
	default:
		return c.reservedInstruction()
	}
	return nil
}

// exception routes a guest exception. Break and instruction bus errors are
// fatal to the run and halt the machine; everything else transfers control
// to the exception vector and lets the guest continue.
func (c *CPU) exception(code ExceptionCode) error {
	switch code {
	case ExcInstructionBusError:
		glog.Warning("instruction bus error occurred")
		return memory.ErrHalt
	case ExcBreak:
		glog.Warning("BREAK instruction reached")
		return memory.ErrHalt
	case ExcReservedInstruction:
		glog.Warningf("encountered a reserved instruction: %v", c.Instruction)
	case ExcOverflow:
		glog.Warning("arithmetic overflow occurred")
	}

	c.enterException(code, 0)
	return nil
}

// enterException performs exception entry through CP0 and vectors the PC.
// An instruction faulting in a delay slot reports the preceding branch as
// its restart point.
func (c *CPU) enterException(code ExceptionCode, copro uint32) {
	inDelaySlot := c.DelayState == DelaySlot
	c.PC = c.CP0.Exception(c.PC, code, inDelaySlot, copro)
	c.exceptionPending = true
}

func (c *CPU) reservedInstruction() error {
	return c.exception(ExcReservedInstruction)
}

// coprocessorUnimpl raises CoprocessorUnusable for operations addressed at
// the unimplemented coprocessors 1-3. The warning only fires when the guest
// had actually enabled the coprocessor in Status.
func (c *CPU) coprocessorUnimpl(copro uint32, instr Instruction) error {
	if c.CP0.CoprocessorUsable(copro) {
		glog.Errorf("CP%d instruction 0x%08x is not implemented at PC=0x%08x",
			copro, uint32(instr), c.PC)
	}
	c.enterException(ExcCoprocessorUnusable, copro)
	return nil
}

// String renders the register file in the layout of the crash dump.
func (c *CPU) String() string {
	rows := []struct {
		header string
		first  int
	}{
		{"           zero       at       v0       v1       a0       a1       a2       a3", 0},
		{"             t0       t1       t2       t3       t4       t5       t6       t7", 8},
		{"             s0       s1       s2       s3       s4       s5       s6       s7", 16},
		{"             t8       t9       k0       k1       gp       sp       s8       ra", 24},
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(row.header)
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, "  R%-3d", row.first)
		for i := row.first; i < row.first+8; i++ {
			fmt.Fprintf(&sb, " %08x", c.Reg[i])
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("             sr       lo       hi      bad    cause       pc\n")
	fmt.Fprintf(&sb, "       %08x %08x %08x %08x %08x %08x",
		c.CP0.Status(), c.Lo, c.Hi, c.CP0.BadVaddr(), c.CP0.Cause(), c.PC)
	return sb.String()
}
