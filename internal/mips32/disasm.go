package mips32

import "fmt"

// Disassemble renders a single MIPS32 instruction word located at pc.
// Branch and jump operands are resolved to absolute addresses.
func Disassemble(inst uint32, pc uint32) string {
	op := inst >> 26

	switch op {
	case 0x0: // R-type
		return disassembleR(inst)
	case 0x1: // REGIMM
		return disassembleRegimm(inst, pc)
	case 0x2:
		addr := inst & 0x3FFFFFF
		target := ((pc + 4) & 0xF0000000) | (addr << 2)
		return fmt.Sprintf("j 0x%08X", target)
	case 0x3:
		addr := inst & 0x3FFFFFF
		target := ((pc + 4) & 0xF0000000) | (addr << 2)
		return fmt.Sprintf("jal 0x%08X", target)
	default: // I-type
		return disassembleI(op, inst, pc)
	}
}

func disassembleR(inst uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	rd := (inst >> 11) & 0x1F
	shamt := (inst >> 6) & 0x1F
	funct := inst & 0x3F

	switch funct {
	case 0x00:
		if inst == 0 {
			return "nop"
		}
		return fmt.Sprintf("sll $%d, $%d, %d", rd, rt, shamt)
	case 0x02:
		return fmt.Sprintf("srl $%d, $%d, %d", rd, rt, shamt)
	case 0x03:
		return fmt.Sprintf("sra $%d, $%d, %d", rd, rt, shamt)
	case 0x04:
		return fmt.Sprintf("sllv $%d, $%d, $%d", rd, rt, rs)
	case 0x06:
		return fmt.Sprintf("srlv $%d, $%d, $%d", rd, rt, rs)
	case 0x07:
		return fmt.Sprintf("srav $%d, $%d, $%d", rd, rt, rs)
	case 0x08:
		return fmt.Sprintf("jr $%d", rs)
	case 0x09:
		return fmt.Sprintf("jalr $%d, $%d", rd, rs)
	case 0x0C:
		return "syscall"
	case 0x0D:
		return "break"
	case 0x10:
		return fmt.Sprintf("mfhi $%d", rd)
	case 0x11:
		return fmt.Sprintf("mthi $%d", rs)
	case 0x12:
		return fmt.Sprintf("mflo $%d", rd)
	case 0x13:
		return fmt.Sprintf("mtlo $%d", rs)
	case 0x18:
		return fmt.Sprintf("mult $%d, $%d", rs, rt)
	case 0x19:
		return fmt.Sprintf("multu $%d, $%d", rs, rt)
	case 0x1A:
		return fmt.Sprintf("div $%d, $%d", rs, rt)
	case 0x1B:
		return fmt.Sprintf("divu $%d, $%d", rs, rt)
	case 0x20:
		return fmt.Sprintf("add $%d, $%d, $%d", rd, rs, rt)
	case 0x21:
		return fmt.Sprintf("addu $%d, $%d, $%d", rd, rs, rt)
	case 0x22:
		return fmt.Sprintf("sub $%d, $%d, $%d", rd, rs, rt)
	case 0x23:
		return fmt.Sprintf("subu $%d, $%d, $%d", rd, rs, rt)
	case 0x24:
		return fmt.Sprintf("and $%d, $%d, $%d", rd, rs, rt)
	case 0x25:
		return fmt.Sprintf("or $%d, $%d, $%d", rd, rs, rt)
	case 0x26:
		return fmt.Sprintf("xor $%d, $%d, $%d", rd, rs, rt)
	case 0x27:
		return fmt.Sprintf("nor $%d, $%d, $%d", rd, rs, rt)
	case 0x2A:
		return fmt.Sprintf("slt $%d, $%d, $%d", rd, rs, rt)
	case 0x2B:
		return fmt.Sprintf("sltu $%d, $%d, $%d", rd, rs, rt)
	default:
		return fmt.Sprintf("unknown R-funct 0x%02X", funct)
	}
}

func disassembleI(op, inst uint32, pc uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	imm := inst & 0xFFFF

	branchTarget := func() uint32 {
		offset := int32(int16(imm)) << 2
		return pc + 4 + uint32(offset)
	}

	switch op {
	case 0x04:
		return fmt.Sprintf("beq $%d, $%d, 0x%08X", rs, rt, branchTarget())
	case 0x05:
		return fmt.Sprintf("bne $%d, $%d, 0x%08X", rs, rt, branchTarget())
	case 0x06:
		return fmt.Sprintf("blez $%d, 0x%08X", rs, branchTarget())
	case 0x07:
		return fmt.Sprintf("bgtz $%d, 0x%08X", rs, branchTarget())
	case 0x08:
		return fmt.Sprintf("addi $%d, $%d, %d", rt, rs, int16(imm))
	case 0x09:
		return fmt.Sprintf("addiu $%d, $%d, %d", rt, rs, int16(imm))
	case 0x0A:
		return fmt.Sprintf("slti $%d, $%d, %d", rt, rs, int16(imm))
	case 0x0B:
		return fmt.Sprintf("sltiu $%d, $%d, %d", rt, rs, int16(imm))
	case 0x0C:
		return fmt.Sprintf("andi $%d, $%d, %d", rt, rs, imm)
	case 0x0D:
		return fmt.Sprintf("ori $%d, $%d, %d", rt, rs, imm)
	case 0x0E:
		return fmt.Sprintf("xori $%d, $%d, %d", rt, rs, imm)
	case 0x0F:
		return fmt.Sprintf("lui $%d, 0x%04X", rt, imm)
	case 0x10:
		return disassembleCop0(inst)
	case 0x11, 0x12, 0x13:
		return fmt.Sprintf("cop%d 0x%07X", op-0x10, inst&0x1FFFFFF)
	case 0x20:
		return fmt.Sprintf("lb $%d, %d($%d)", rt, int16(imm), rs)
	case 0x21:
		return fmt.Sprintf("lh $%d, %d($%d)", rt, int16(imm), rs)
	case 0x22:
		return fmt.Sprintf("lwl $%d, %d($%d)", rt, int16(imm), rs)
	case 0x23:
		return fmt.Sprintf("lw $%d, %d($%d)", rt, int16(imm), rs)
	case 0x24:
		return fmt.Sprintf("lbu $%d, %d($%d)", rt, int16(imm), rs)
	case 0x25:
		return fmt.Sprintf("lhu $%d, %d($%d)", rt, int16(imm), rs)
	case 0x26:
		return fmt.Sprintf("lwr $%d, %d($%d)", rt, int16(imm), rs)
	case 0x28:
		return fmt.Sprintf("sb $%d, %d($%d)", rt, int16(imm), rs)
	case 0x29:
		return fmt.Sprintf("sh $%d, %d($%d)", rt, int16(imm), rs)
	case 0x2A:
		return fmt.Sprintf("swl $%d, %d($%d)", rt, int16(imm), rs)
	case 0x2B:
		return fmt.Sprintf("sw $%d, %d($%d)", rt, int16(imm), rs)
	case 0x2E:
		return fmt.Sprintf("swr $%d, %d($%d)", rt, int16(imm), rs)
	case 0x31:
		return fmt.Sprintf("lwc1 $f%d, %d($%d)", rt, int16(imm), rs)
	case 0x32:
		return fmt.Sprintf("lwc2 %d, %d($%d)", rt, int16(imm), rs)
	case 0x33:
		return fmt.Sprintf("lwc3 %d, %d($%d)", rt, int16(imm), rs)
	case 0x38:
		return fmt.Sprintf("swc1 $f%d, %d($%d)", rt, int16(imm), rs)
	case 0x39:
		return fmt.Sprintf("swc2 %d, %d($%d)", rt, int16(imm), rs)
	case 0x3A:
		return fmt.Sprintf("swc3 %d, %d($%d)", rt, int16(imm), rs)
	default:
		return fmt.Sprintf("unknown I-op 0x%02X", op)
	}
}

func disassembleRegimm(inst uint32, pc uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	imm := inst & 0xFFFF

	offset := int32(int16(imm)) << 2
	target := pc + 4 + uint32(offset)

	switch rt {
	case 0x00:
		return fmt.Sprintf("bltz $%d, 0x%08X", rs, target)
	case 0x01:
		return fmt.Sprintf("bgez $%d, 0x%08X", rs, target)
	case 0x10:
		return fmt.Sprintf("bltzal $%d, 0x%08X", rs, target)
	case 0x11:
		return fmt.Sprintf("bgezal $%d, 0x%08X", rs, target)
	default:
		return fmt.Sprintf("unknown regimm rt=0x%02X", rt)
	}
}

func disassembleCop0(inst uint32) string {
	rs := (inst >> 21) & 0x1F
	rt := (inst >> 16) & 0x1F
	rd := (inst >> 11) & 0x1F

	switch rs {
	case 0x00:
		return fmt.Sprintf("mfc0 $%d, $%d", rt, rd)
	case 0x04:
		return fmt.Sprintf("mtc0 $%d, $%d", rt, rd)
	case 0x08:
		if rt == 0 {
			return "bc0f"
		}
		return "bc0t"
	default:
		funct := inst & 0x3F
		switch funct {
		case 0x01:
			return "tlbr"
		case 0x02:
			return "tlbwi"
		case 0x06:
			return "tlbwr"
		case 0x08:
			return "tlbp"
		case 0x10:
			return "rfe"
		default:
			return fmt.Sprintf("cop0-co funct=0x%02X", funct)
		}
	}
}
