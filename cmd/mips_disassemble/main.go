package main

import (
	"debug/elf"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"mipsvm/internal/mips32"
)

var endianFlag = flag.String("endian", "auto", "byte order for raw binaries: auto|big|little")

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: mips_disassemble [-endian=auto|big|little] <mips32_binary_file>")
		return
	}

	fileName := flag.Arg(0)
	file, err := os.Open(fileName)
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close file: %v", err)
		}
	}()

	// Try to parse as ELF file
	elfFile, err := elf.Open(fileName)
	if err == nil {
		defer func() {
			if err := elfFile.Close(); err != nil {
				log.Printf("Failed to close ELF file: %v", err)
			}
		}()
		disassembleELF(elfFile)
		return
	}

	// If not ELF, treat as raw binary
	fmt.Println("Not an ELF file, treating as raw binary")
	disassembleRaw(file)
}

func disassembleELF(elfFile *elf.File) {
	fmt.Printf("ELF File: %s\n", elfFile.Machine)
	fmt.Printf("Entry point: 0x%08X\n", elfFile.Entry)
	fmt.Println()

	// Decide byte order based on ELF endianness
	var order binary.ByteOrder
	if elfFile.ByteOrder == binary.LittleEndian {
		order = binary.LittleEndian
		fmt.Println("Using byte order: little-endian (from ELF header)")
	} else {
		order = binary.BigEndian
		fmt.Println("Using byte order: big-endian (from ELF header)")
	}
	fmt.Println()

	// Print all sections for information
	fmt.Println("ELF Sections:")
	fmt.Println("-------------")
	for _, section := range elfFile.Sections {
		fmt.Printf("  %-20s Type: %-15s Addr: 0x%08X Size: %-8d Flags: %s\n",
			section.Name,
			section.Type.String(),
			section.Addr,
			section.Size,
			sectionFlagsString(section.Flags))
	}
	fmt.Println()

	// Find and disassemble .text section
	textSection := elfFile.Section(".text")
	if textSection == nil {
		fmt.Println("Warning: No .text section found")

		// Try to find any executable section
		for _, section := range elfFile.Sections {
			if section.Flags&elf.SHF_EXECINSTR != 0 {
				fmt.Printf("Found executable section: %s\n", section.Name)
				disassembleSection(section, order)
			}
		}
		return
	}

	fmt.Printf("Disassembling .text section (0x%08X - 0x%08X):\n", textSection.Addr, textSection.Addr+textSection.Size)
	fmt.Println("=======================================================================")
	disassembleSection(textSection, order)
}

func disassembleSection(section *elf.Section, order binary.ByteOrder) {
	data, err := section.Data()
	if err != nil {
		log.Printf("Failed to read section %s: %v", section.Name, err)
		return
	}

	addr := section.Addr
	for i := 0; i+4 <= len(data); i += 4 {
		inst := order.Uint32(data[i : i+4])
		pc := uint32(addr + uint64(i))
		fmt.Printf("0x%08X: 0x%08X\t%s\n", pc, inst, mips32.Disassemble(inst, pc))
	}
}

func disassembleRaw(file *os.File) {
	var order binary.ByteOrder
	switch *endianFlag {
	case "big":
		order = binary.BigEndian
	default:
		order = binary.LittleEndian
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	var offset uint32
	for i := 0; i+4 <= len(data); i += 4 {
		inst := order.Uint32(data[i : i+4])
		fmt.Printf("0x%08X: 0x%08X\t%s\n", offset, inst, mips32.Disassemble(inst, offset))
		offset += 4
	}
}

func sectionFlagsString(flags elf.SectionFlag) string {
	var result string
	if flags&elf.SHF_WRITE != 0 {
		result += "W"
	}
	if flags&elf.SHF_ALLOC != 0 {
		result += "A"
	}
	if flags&elf.SHF_EXECINSTR != 0 {
		result += "X"
	}
	if result == "" {
		result = "-"
	}
	return result
}
