// Package disasm turns SM83 opcodes back into mnemonics for the debugger
// and trace output.
package disasm

import (
	"fmt"
	"strings"

	"github.com/gobemu/gobemula/gobemula/bit"
	"github.com/gobemu/gobemula/gobemula/memory"
)

// Line is a single disassembled instruction.
type Line struct {
	Address     uint16
	Instruction string
	Length      int
}

func (l Line) String() string {
	return fmt.Sprintf("0x%04X: %s", l.Address, l.Instruction)
}

// templates holds one mnemonic per base opcode; %02X marks an immediate
// byte, %04X an immediate word. Instruction length derives from the marker.
var templates [256]string

// lengths holds the byte length of each base opcode.
var lengths [256]int

var cbTargetNames = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
var cbShiftNames = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}

// CBMnemonic names a CB-prefixed opcode; the prefixed map is regular
// enough to compute instead of tabulate.
func CBMnemonic(op uint8) string {
	target := cbTargetNames[op&0x07]
	index := (op >> 3) & 0x07
	switch op >> 6 {
	case 0:
		return fmt.Sprintf("%s %s", cbShiftNames[index], target)
	case 1:
		return fmt.Sprintf("BIT %d,%s", index, target)
	case 2:
		return fmt.Sprintf("RES %d,%s", index, target)
	}
	return fmt.Sprintf("SET %d,%s", index, target)
}

func init() {
	for i := range templates {
		templates[i] = "??"
	}

	// the irregular rows
	irregular := map[uint8]string{
		0x00: "NOP", 0x01: "LD BC,0x%04X", 0x02: "LD (BC),A", 0x03: "INC BC",
		0x07: "RLCA", 0x08: "LD (0x%04X),SP", 0x09: "ADD HL,BC", 0x0A: "LD A,(BC)",
		0x0B: "DEC BC", 0x0F: "RRCA",
		0x10: "STOP", 0x11: "LD DE,0x%04X", 0x12: "LD (DE),A", 0x13: "INC DE",
		0x17: "RLA", 0x18: "JR 0x%02X", 0x19: "ADD HL,DE", 0x1A: "LD A,(DE)",
		0x1B: "DEC DE", 0x1F: "RRA",
		0x20: "JR NZ,0x%02X", 0x21: "LD HL,0x%04X", 0x22: "LDI (HL),A", 0x23: "INC HL",
		0x27: "DAA", 0x28: "JR Z,0x%02X", 0x29: "ADD HL,HL", 0x2A: "LDI A,(HL)",
		0x2B: "DEC HL", 0x2F: "CPL",
		0x30: "JR NC,0x%02X", 0x31: "LD SP,0x%04X", 0x32: "LDD (HL),A", 0x33: "INC SP",
		0x34: "INC (HL)", 0x35: "DEC (HL)", 0x36: "LD (HL),0x%02X", 0x37: "SCF",
		0x38: "JR C,0x%02X", 0x39: "ADD HL,SP", 0x3A: "LDD A,(HL)", 0x3B: "DEC SP",
		0x3F: "CCF",
		0x76: "HALT",
		0xC0: "RET NZ", 0xC1: "POP BC", 0xC2: "JP NZ,0x%04X", 0xC3: "JP 0x%04X",
		0xC4: "CALL NZ,0x%04X", 0xC5: "PUSH BC", 0xC6: "ADD A,0x%02X", 0xC7: "RST 00",
		0xC8: "RET Z", 0xC9: "RET", 0xCA: "JP Z,0x%04X", 0xCC: "CALL Z,0x%04X",
		0xCD: "CALL 0x%04X", 0xCE: "ADC A,0x%02X", 0xCF: "RST 08",
		0xD0: "RET NC", 0xD1: "POP DE", 0xD2: "JP NC,0x%04X", 0xD4: "CALL NC,0x%04X",
		0xD5: "PUSH DE", 0xD6: "SUB 0x%02X", 0xD7: "RST 10", 0xD8: "RET C",
		0xD9: "RETI", 0xDA: "JP C,0x%04X", 0xDC: "CALL C,0x%04X", 0xDE: "SBC A,0x%02X",
		0xDF: "RST 18",
		0xE0: "LDH (0x%02X),A", 0xE1: "POP HL", 0xE2: "LD (C),A", 0xE5: "PUSH HL",
		0xE6: "AND 0x%02X", 0xE7: "RST 20", 0xE8: "ADD SP,0x%02X", 0xE9: "JP (HL)",
		0xEA: "LD (0x%04X),A", 0xEE: "XOR 0x%02X", 0xEF: "RST 28",
		0xF0: "LDH A,(0x%02X)", 0xF1: "POP AF", 0xF2: "LD A,(C)", 0xF3: "DI",
		0xF5: "PUSH AF", 0xF6: "OR 0x%02X", 0xF7: "RST 30", 0xF8: "LD HL,SP+0x%02X",
		0xF9: "LD SP,HL", 0xFA: "LD A,(0x%04X)", 0xFB: "EI", 0xFE: "CP 0x%02X",
		0xFF: "RST 38",
	}
	for op, s := range irregular {
		templates[op] = s
	}

	// INC r / DEC r / LD r,n columns of the 0x00-0x3F rows
	for i, name := range cbTargetNames {
		row := uint8(i) << 3
		if name != "(HL)" { // the (HL) forms are in the irregular map
			templates[0x04+row] = "INC " + name
			templates[0x05+row] = "DEC " + name
			templates[0x06+row] = "LD " + name + ",0x%02X"
		}
	}

	// LD r,r' block
	for dst := 0; dst < 8; dst++ {
		for src := 0; src < 8; src++ {
			op := 0x40 + dst*8 + src
			if op == 0x76 { // HALT hole
				continue
			}
			templates[op] = fmt.Sprintf("LD %s,%s", cbTargetNames[dst], cbTargetNames[src])
		}
	}

	// ALU block
	aluNames := [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
	for group := 0; group < 8; group++ {
		for src := 0; src < 8; src++ {
			templates[0x80+group*8+src] = aluNames[group] + cbTargetNames[src]
		}
	}

	for op, s := range templates {
		switch {
		case strings.Contains(s, "%04X"):
			lengths[op] = 3
		case strings.Contains(s, "%02X"):
			lengths[op] = 2
		default:
			lengths[op] = 1
		}
	}
	lengths[0x10] = 2 // STOP consumes a padding byte
}

// DisassembleAt decodes the instruction at the given address.
func DisassembleAt(pc uint16, mem *memory.MMU) Line {
	opcode := mem.Read(pc)

	if opcode == 0xCB {
		return Line{
			Address:     pc,
			Instruction: CBMnemonic(mem.Read(pc + 1)),
			Length:      2,
		}
	}

	template := templates[opcode]
	length := lengths[opcode]

	var instruction string
	switch length {
	case 2:
		if strings.Contains(template, "%02X") {
			instruction = fmt.Sprintf(template, mem.Read(pc+1))
		} else {
			instruction = template
		}
	case 3:
		word := bit.Combine(mem.Read(pc+2), mem.Read(pc+1))
		instruction = fmt.Sprintf(template, word)
	default:
		instruction = template
	}

	return Line{Address: pc, Instruction: instruction, Length: length}
}

// DisassembleRange decodes count instructions starting at pc.
func DisassembleRange(pc uint16, count int, mem *memory.MMU) []Line {
	lines := make([]Line, 0, count)
	for i := 0; i < count; i++ {
		line := DisassembleAt(pc, mem)
		lines = append(lines, line)
		pc += uint16(line.Length)
	}
	return lines
}
