package mips32

import (
	"math"

	"mipsvm/internal/memory"
	"mipsvm/internal/utils"
)

// Execute routines for the MIPS I integer instruction set. Each routine
// matches one table entry in CPU.execute. Operation descriptions follow the
// instruction set chapter of the IDT R30xx Manual.

// controlTransfer schedules a delayed branch: the instruction at PC+4 still
// executes before the PC moves to dest.
func (c *CPU) controlTransfer(dest uint32) {
	c.DelayState = DelayDelaying
	c.DelayPC = dest
}

// branch computes the PC-relative target of a conditional branch.
// target <- (PC + 4) + (sign_extend(offset) << 2)
func (c *CPU) branch(instr Instruction) {
	offset := instr.Simmed() << 2
	c.controlTransfer(c.PC + 4 + offset)
}

// jump computes the target of a J-format instruction.
// target <- (PC + 4)[31..28] || jumptarget || 00
func (c *CPU) jump(instr Instruction) {
	c.controlTransfer(((c.PC + 4) & 0xF0000000) | (instr.Jumptarget() << 2))
}

// SLL rd, rt, sa
// GPR[rd] <- GPR[rt] << sa
// "sll r0, r0, 0" is the canonical NOP encoding.
func (c *CPU) sll(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rt()] << instr.Shamt()
}

// SRL rd, rt, sa
// GPR[rd] <- 0(sa) || GPR[rt][31..sa]
func (c *CPU) srl(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rt()] >> instr.Shamt()
}

// SRA rd, rt, sa
// GPR[rd] <- GPR[rt][31](sa) || GPR[rt][31..sa]
func (c *CPU) sra(instr Instruction) {
	c.Reg[instr.Rd()] = uint32(int32(c.Reg[instr.Rt()]) >> instr.Shamt())
}

// SLLV rd, rt, rs
// GPR[rd] <- GPR[rt] << GPR[rs][4..0]
func (c *CPU) sllv(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rt()] << (c.Reg[instr.Rs()] & 0x1F)
}

// SRLV rd, rt, rs
// GPR[rd] <- 0(s) || GPR[rt][31..s], s = GPR[rs][4..0]
func (c *CPU) srlv(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rt()] >> (c.Reg[instr.Rs()] & 0x1F)
}

// SRAV rd, rt, rs
// GPR[rd] <- GPR[rt][31](s) || GPR[rt][31..s], s = GPR[rs][4..0]
func (c *CPU) srav(instr Instruction) {
	c.Reg[instr.Rd()] = uint32(int32(c.Reg[instr.Rt()]) >> (c.Reg[instr.Rs()] & 0x1F))
}

// JR rs
// PC <- GPR[rs], after the delay slot
func (c *CPU) jr(instr Instruction) {
	c.controlTransfer(c.Reg[instr.Rs()])
}

// JALR rd, rs
// GPR[rd] <- PC + 8; PC <- GPR[rs], after the delay slot
func (c *CPU) jalr(instr Instruction) {
	target := c.Reg[instr.Rs()]
	c.controlTransfer(target)
	c.Reg[instr.Rd()] = c.PC + 8
}

// SYSCALL
func (c *CPU) syscall() error {
	return c.exception(ExcSyscall)
}

// BREAK
func (c *CPU) breakInstr() error {
	return c.exception(ExcBreak)
}

// MFHI rd
// GPR[rd] <- HI
func (c *CPU) mfhi(instr Instruction) {
	c.Reg[instr.Rd()] = c.Hi
}

// MTHI rs
// HI <- GPR[rs]
func (c *CPU) mthi(instr Instruction) {
	c.Hi = c.Reg[instr.Rs()]
}

// MFLO rd
// GPR[rd] <- LO
func (c *CPU) mflo(instr Instruction) {
	c.Reg[instr.Rd()] = c.Lo
}

// MTLO rs
// LO <- GPR[rs]
func (c *CPU) mtlo(instr Instruction) {
	c.Lo = c.Reg[instr.Rs()]
}

// MULT rs, rt
// prod <- GPR[rs] * GPR[rt] as signed 64-bit
// LO <- prod[31..0]; HI <- prod[63..32]
func (c *CPU) mult(instr Instruction) {
	prod := int64(int32(c.Reg[instr.Rs()])) * int64(int32(c.Reg[instr.Rt()]))
	c.Lo = uint32(prod)
	c.Hi = uint32(prod >> 32)
}

// MULTU rs, rt
// prod <- GPR[rs] * GPR[rt] as unsigned 64-bit
// LO <- prod[31..0]; HI <- prod[63..32]
func (c *CPU) multu(instr Instruction) {
	prod := uint64(c.Reg[instr.Rs()]) * uint64(c.Reg[instr.Rt()])
	c.Lo = uint32(prod)
	c.Hi = uint32(prod >> 32)
}

// DIV rs, rt
// LO <- GPR[rs] div GPR[rt]; HI <- GPR[rs] mod GPR[rt], signed.
// A zero divisor leaves zero in both result registers and never traps.
func (c *CPU) div(instr Instruction) {
	rs := int32(c.Reg[instr.Rs()])
	rt := int32(c.Reg[instr.Rt()])

	if rt == 0 {
		c.Lo = 0
		c.Hi = 0
		return
	}
	if rs == math.MinInt32 && rt == -1 {
		// The one quotient that does not fit in 32 bits
		c.Lo = uint32(rs)
		c.Hi = 0
		return
	}

	c.Lo = uint32(rs / rt)
	c.Hi = uint32(rs % rt)
}

// DIVU rs, rt
// LO <- GPR[rs] div GPR[rt]; HI <- GPR[rs] mod GPR[rt], unsigned.
func (c *CPU) divu(instr Instruction) {
	rs := c.Reg[instr.Rs()]
	rt := c.Reg[instr.Rt()]

	if rt == 0 {
		c.Lo = 0
		c.Hi = 0
		return
	}

	c.Lo = rs / rt
	c.Hi = rs % rt
}

// ADD rd, rs, rt
// temp <- GPR[rs] + GPR[rt]
// Traps on two's-complement overflow without modifying rd.
func (c *CPU) add(instr Instruction) error {
	rs := int32(c.Reg[instr.Rs()])
	rt := int32(c.Reg[instr.Rt()])
	temp := rs + rt

	if utils.CheckAdditionOverflow(rs, rt, temp) {
		return c.exception(ExcOverflow)
	}

	c.Reg[instr.Rd()] = uint32(temp)
	return nil
}

// ADDU rd, rs, rt
// GPR[rd] <- GPR[rs] + GPR[rt], wrapping
func (c *CPU) addu(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rs()] + c.Reg[instr.Rt()]
}

// SUB rd, rs, rt
// temp <- GPR[rs] - GPR[rt]
// Traps on two's-complement overflow without modifying rd.
func (c *CPU) sub(instr Instruction) error {
	rs := int32(c.Reg[instr.Rs()])
	rt := int32(c.Reg[instr.Rt()])
	temp := rs - rt

	if utils.CheckSubtractionOverflow(rs, rt, temp) {
		return c.exception(ExcOverflow)
	}

	c.Reg[instr.Rd()] = uint32(temp)
	return nil
}

// SUBU rd, rs, rt
// GPR[rd] <- GPR[rs] - GPR[rt], wrapping
func (c *CPU) subu(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rs()] - c.Reg[instr.Rt()]
}

// AND rd, rs, rt
func (c *CPU) and(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rs()] & c.Reg[instr.Rt()]
}

// OR rd, rs, rt
func (c *CPU) or(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rs()] | c.Reg[instr.Rt()]
}

// XOR rd, rs, rt
func (c *CPU) xor(instr Instruction) {
	c.Reg[instr.Rd()] = c.Reg[instr.Rs()] ^ c.Reg[instr.Rt()]
}

// NOR rd, rs, rt
func (c *CPU) nor(instr Instruction) {
	c.Reg[instr.Rd()] = ^(c.Reg[instr.Rs()] | c.Reg[instr.Rt()])
}

// SLT rd, rs, rt
// GPR[rd] <- 1 if GPR[rs] < GPR[rt] (signed), else 0
func (c *CPU) slt(instr Instruction) {
	if int32(c.Reg[instr.Rs()]) < int32(c.Reg[instr.Rt()]) {
		c.Reg[instr.Rd()] = 1
	} else {
		c.Reg[instr.Rd()] = 0
	}
}

// SLTU rd, rs, rt
// GPR[rd] <- 1 if GPR[rs] < GPR[rt] (unsigned), else 0
func (c *CPU) sltu(instr Instruction) {
	if c.Reg[instr.Rs()] < c.Reg[instr.Rt()] {
		c.Reg[instr.Rd()] = 1
	} else {
		c.Reg[instr.Rd()] = 0
	}
}

// BLTZ rs, offset
// Branch if GPR[rs] < 0
func (c *CPU) bltz(instr Instruction) {
	if int32(c.Reg[instr.Rs()]) < 0 {
		c.branch(instr)
	}
}

// BGEZ rs, offset
// Branch if GPR[rs] >= 0
func (c *CPU) bgez(instr Instruction) {
	if int32(c.Reg[instr.Rs()]) >= 0 {
		c.branch(instr)
	}
}

// BLTZAL rs, offset
// GPR[31] <- PC + 8, unconditionally; branch if GPR[rs] < 0
func (c *CPU) bltzal(instr Instruction) {
	cond := int32(c.Reg[instr.Rs()]) < 0
	c.Reg[RegRA] = c.PC + 8
	if cond {
		c.branch(instr)
	}
}

// BGEZAL rs, offset
// GPR[31] <- PC + 8, unconditionally; branch if GPR[rs] >= 0
func (c *CPU) bgezal(instr Instruction) {
	cond := int32(c.Reg[instr.Rs()]) >= 0
	c.Reg[RegRA] = c.PC + 8
	if cond {
		c.branch(instr)
	}
}

// BEQ rs, rt, offset
func (c *CPU) beq(instr Instruction) {
	if c.Reg[instr.Rs()] == c.Reg[instr.Rt()] {
		c.branch(instr)
	}
}

// BNE rs, rt, offset
func (c *CPU) bne(instr Instruction) {
	if c.Reg[instr.Rs()] != c.Reg[instr.Rt()] {
		c.branch(instr)
	}
}

// BLEZ rs, offset
// Branch if GPR[rs] <= 0
func (c *CPU) blez(instr Instruction) {
	if int32(c.Reg[instr.Rs()]) <= 0 {
		c.branch(instr)
	}
}

// BGTZ rs, offset
// Branch if GPR[rs] > 0
func (c *CPU) bgtz(instr Instruction) {
	if int32(c.Reg[instr.Rs()]) > 0 {
		c.branch(instr)
	}
}

// ADDI rt, rs, immediate
// temp <- GPR[rs] + sign_extend(immediate)
// Traps on two's-complement overflow without modifying rt.
func (c *CPU) addi(instr Instruction) error {
	rs := int32(c.Reg[instr.Rs()])
	imm := int32(instr.Simmed())
	temp := rs + imm

	if utils.CheckAdditionOverflow(rs, imm, temp) {
		return c.exception(ExcOverflow)
	}

	c.Reg[instr.Rt()] = uint32(temp)
	return nil
}

// ADDIU rt, rs, immediate
// GPR[rt] <- GPR[rs] + sign_extend(immediate), wrapping
func (c *CPU) addiu(instr Instruction) {
	c.Reg[instr.Rt()] = c.Reg[instr.Rs()] + instr.Simmed()
}

// SLTI rt, rs, immediate
// GPR[rt] <- 1 if GPR[rs] < sign_extend(immediate) (signed), else 0
func (c *CPU) slti(instr Instruction) {
	if int32(c.Reg[instr.Rs()]) < int32(instr.Simmed()) {
		c.Reg[instr.Rt()] = 1
	} else {
		c.Reg[instr.Rt()] = 0
	}
}

// SLTIU rt, rs, immediate
// GPR[rt] <- 1 if GPR[rs] < sign_extend(immediate) (unsigned compare), else 0
func (c *CPU) sltiu(instr Instruction) {
	if c.Reg[instr.Rs()] < instr.Simmed() {
		c.Reg[instr.Rt()] = 1
	} else {
		c.Reg[instr.Rt()] = 0
	}
}

// ANDI rt, rs, immediate
// GPR[rt] <- GPR[rs] and zero_extend(immediate)
func (c *CPU) andi(instr Instruction) {
	c.Reg[instr.Rt()] = c.Reg[instr.Rs()] & instr.Immed()
}

// ORI rt, rs, immediate
// GPR[rt] <- GPR[rs] or zero_extend(immediate)
func (c *CPU) ori(instr Instruction) {
	c.Reg[instr.Rt()] = c.Reg[instr.Rs()] | instr.Immed()
}

// XORI rt, rs, immediate
// GPR[rt] <- GPR[rs] xor zero_extend(immediate)
func (c *CPU) xori(instr Instruction) {
	c.Reg[instr.Rt()] = c.Reg[instr.Rs()] ^ instr.Immed()
}

// LUI rt, immediate
// GPR[rt] <- immediate || 0(16)
func (c *CPU) lui(instr Instruction) {
	c.Reg[instr.Rt()] = instr.Immed() << 16
}

// dataAddress computes the virtual and physical addresses of a load/store
// and reports whether translation succeeded. On a privilege violation the
// exception named by code has already been raised when ok is false.
func (c *CPU) dataAddress(instr Instruction, code ExceptionCode) (vaddr, paddr uint32, ok bool, err error) {
	vaddr = c.Reg[instr.Rs()] + instr.Simmed()
	paddr = c.CP0.Translate(vaddr)
	if paddr == AddressErrorSentinel {
		c.CP0.SetBadVaddr(vaddr)
		return vaddr, 0, false, c.exception(code)
	}
	return vaddr, paddr, true, nil
}

// addressError raises a load or store address error for vaddr.
func (c *CPU) addressError(vaddr uint32, code ExceptionCode) error {
	c.CP0.SetBadVaddr(vaddr)
	return c.exception(code)
}

// LB rt, offset(base)
// GPR[rt] <- sign_extend(mem_byte[base + offset])
func (c *CPU) lb(mem memory.Memory, instr Instruction) error {
	_, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	data, err := mem.FetchByte(paddr)
	if err != nil {
		return err
	}
	c.Reg[instr.Rt()] = uint32(int32(int8(data)))
	return nil
}

// LBU rt, offset(base)
// GPR[rt] <- zero_extend(mem_byte[base + offset])
func (c *CPU) lbu(mem memory.Memory, instr Instruction) error {
	_, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	data, err := mem.FetchByte(paddr)
	if err != nil {
		return err
	}
	c.Reg[instr.Rt()] = uint32(data)
	return nil
}

// LH rt, offset(base)
// GPR[rt] <- sign_extend(mem_halfword[base + offset])
// An address error occurs if the address is not 2-byte aligned.
func (c *CPU) lh(mem memory.Memory, instr Instruction) error {
	vaddr := c.Reg[instr.Rs()] + instr.Simmed()
	if vaddr%2 != 0 {
		return c.addressError(vaddr, ExcLoadAddressError)
	}
	_, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	data, err := mem.FetchHalfword(paddr)
	if err != nil {
		return err
	}
	c.Reg[instr.Rt()] = uint32(int32(int16(data)))
	return nil
}

// LHU rt, offset(base)
// GPR[rt] <- zero_extend(mem_halfword[base + offset])
func (c *CPU) lhu(mem memory.Memory, instr Instruction) error {
	vaddr := c.Reg[instr.Rs()] + instr.Simmed()
	if vaddr%2 != 0 {
		return c.addressError(vaddr, ExcLoadAddressError)
	}
	_, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	data, err := mem.FetchHalfword(paddr)
	if err != nil {
		return err
	}
	c.Reg[instr.Rt()] = uint32(data)
	return nil
}

// LW rt, offset(base)
// GPR[rt] <- mem_word[base + offset]
// An address error occurs if the address is not 4-byte aligned.
func (c *CPU) lw(mem memory.Memory, instr Instruction) error {
	vaddr := c.Reg[instr.Rs()] + instr.Simmed()
	if vaddr%4 != 0 {
		return c.addressError(vaddr, ExcLoadAddressError)
	}
	_, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	data, err := mem.FetchWord(paddr)
	if err != nil {
		return err
	}
	c.Reg[instr.Rt()] = data
	return nil
}

// LWL rt, offset(base)
// Merges the bytes from the enclosing word at and below the target address
// into the high end of rt. Little-endian merge per the R30xx unaligned
// access sequences; no alignment restriction.
func (c *CPU) lwl(mem memory.Memory, instr Instruction) error {
	vaddr, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	word, err := mem.FetchWord(paddr &^ 3)
	if err != nil {
		return err
	}
	shift := 8 * (3 - (vaddr & 3))
	mask := uint32(0xFFFFFFFF) << shift
	c.Reg[instr.Rt()] = (c.Reg[instr.Rt()] &^ mask) | (word << shift)
	return nil
}

// LWR rt, offset(base)
// Merges the bytes from the enclosing word at and above the target address
// into the low end of rt.
func (c *CPU) lwr(mem memory.Memory, instr Instruction) error {
	vaddr, paddr, ok, err := c.dataAddress(instr, ExcLoadAddressError)
	if !ok {
		return err
	}
	word, err := mem.FetchWord(paddr &^ 3)
	if err != nil {
		return err
	}
	shift := 8 * (vaddr & 3)
	mask := uint32(0xFFFFFFFF) >> shift
	c.Reg[instr.Rt()] = (c.Reg[instr.Rt()] &^ mask) | (word >> shift)
	return nil
}

// SB rt, offset(base)
// mem_byte[base + offset] <- GPR[rt][7..0]
func (c *CPU) sb(mem memory.Memory, instr Instruction) error {
	_, paddr, ok, err := c.dataAddress(instr, ExcStoreAddressError)
	if !ok {
		return err
	}
	return mem.StoreByte(paddr, uint8(c.Reg[instr.Rt()]))
}

// SH rt, offset(base)
// mem_halfword[base + offset] <- GPR[rt][15..0]
// An address error occurs if the address is not 2-byte aligned.
func (c *CPU) sh(mem memory.Memory, instr Instruction) error {
	vaddr := c.Reg[instr.Rs()] + instr.Simmed()
	if vaddr%2 != 0 {
		return c.addressError(vaddr, ExcStoreAddressError)
	}
	_, paddr, ok, err := c.dataAddress(instr, ExcStoreAddressError)
	if !ok {
		return err
	}
	return mem.StoreHalfword(paddr, uint16(c.Reg[instr.Rt()]))
}

// SW rt, offset(base)
// mem_word[base + offset] <- GPR[rt]
// An address error occurs if the address is not 4-byte aligned.
func (c *CPU) sw(mem memory.Memory, instr Instruction) error {
	vaddr := c.Reg[instr.Rs()] + instr.Simmed()
	if vaddr%4 != 0 {
		return c.addressError(vaddr, ExcStoreAddressError)
	}
	_, paddr, ok, err := c.dataAddress(instr, ExcStoreAddressError)
	if !ok {
		return err
	}
	return mem.StoreWord(paddr, c.Reg[instr.Rt()])
}

// SWL rt, offset(base)
// Stores the high bytes of rt into the enclosing word at and below the
// target address. Read-modify-write on the aligned word.
func (c *CPU) swl(mem memory.Memory, instr Instruction) error {
	vaddr, paddr, ok, err := c.dataAddress(instr, ExcStoreAddressError)
	if !ok {
		return err
	}
	aligned := paddr &^ 3
	word, err := mem.FetchWord(aligned)
	if err != nil {
		return err
	}
	shift := 8 * (3 - (vaddr & 3))
	mask := uint32(0xFFFFFFFF) >> shift
	word = (word &^ mask) | ((c.Reg[instr.Rt()] >> shift) & mask)
	return mem.StoreWord(aligned, word)
}

// SWR rt, offset(base)
// Stores the low bytes of rt into the enclosing word at and above the
// target address.
func (c *CPU) swr(mem memory.Memory, instr Instruction) error {
	vaddr, paddr, ok, err := c.dataAddress(instr, ExcStoreAddressError)
	if !ok {
		return err
	}
	aligned := paddr &^ 3
	word, err := mem.FetchWord(aligned)
	if err != nil {
		return err
	}
	shift := 8 * (vaddr & 3)
	mask := uint32(0xFFFFFFFF) << shift
	word = (word &^ mask) | (c.Reg[instr.Rt()] << shift)
	return mem.StoreWord(aligned, word)
}

// J target
func (c *CPU) j(instr Instruction) {
	c.jump(instr)
}

// JAL target
// GPR[31] <- PC + 8
func (c *CPU) jal(instr Instruction) {
	c.jump(instr)
	c.Reg[RegRA] = c.PC + 8
}

// MFC0 rt, rd
// GPR[rt] <- CP0[rd]
func (c *CPU) mfc0(instr Instruction) {
	c.Reg[instr.Rt()] = c.CP0.Read(instr.Rd())
}

// MTC0 rt, rd
// CP0[rd] <- GPR[rt]
func (c *CPU) mtc0(instr Instruction) {
	c.CP0.Write(instr.Rd(), c.Reg[instr.Rt()])
}

// BC0F / BC0T offset
// Branches on the CP0 condition line, which is not wired on this machine
// and therefore always reads false.
func (c *CPU) bc0x(instr Instruction) {
	const cpCond = false
	switch instr.Rt() {
	case 0x00: // bc0f
		if !cpCond {
			c.branch(instr)
		}
	case 0x01: // bc0t
		if cpCond {
			c.branch(instr)
		}
	}
}
