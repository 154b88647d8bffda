package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gobemu/gobemula/gobemula/memory"
)

func memWith(code ...uint8) *memory.MMU {
	mem := memory.New()
	for i, b := range code {
		mem.Write(0xC000+uint16(i), b)
	}
	return mem
}

func TestDisassembleAt(t *testing.T) {
	tests := []struct {
		code   []uint8
		want   string
		length int
	}{
		{[]uint8{0x00}, "NOP", 1},
		{[]uint8{0x3E, 0x42}, "LD A,0x42", 2},
		{[]uint8{0x01, 0x34, 0x12}, "LD BC,0x1234", 3},
		{[]uint8{0xC3, 0x00, 0x01}, "JP 0x0100", 3},
		{[]uint8{0x78}, "LD A,B", 1},
		{[]uint8{0x86}, "ADD A,(HL)", 1},
		{[]uint8{0xAF}, "XOR A", 1},
		{[]uint8{0x76}, "HALT", 1},
		{[]uint8{0xE0, 0x50}, "LDH (0x50),A", 2},
		{[]uint8{0x10, 0x00}, "STOP", 2},
		{[]uint8{0xCB, 0x37}, "SWAP A", 2},
		{[]uint8{0xCB, 0x7E}, "BIT 7,(HL)", 2},
		{[]uint8{0xCB, 0xC1}, "SET 0,C", 2},
		{[]uint8{0xD3}, "??", 1},
	}

	for _, tt := range tests {
		mem := memWith(tt.code...)
		line := DisassembleAt(0xC000, mem)
		assert.Equal(t, tt.want, line.Instruction)
		assert.Equal(t, tt.length, line.Length)
	}
}

func TestDisassembleRangeAdvancesByLength(t *testing.T) {
	mem := memWith(0x3E, 0x01, 0x00, 0xC3, 0x00, 0x01)
	lines := DisassembleRange(0xC000, 3, mem)

	assert.Len(t, lines, 3)
	assert.Equal(t, "LD A,0x01", lines[0].Instruction)
	assert.Equal(t, "NOP", lines[1].Instruction)
	assert.Equal(t, "JP 0x0100", lines[2].Instruction)
	assert.Equal(t, uint16(0xC003), lines[2].Address)
}

func TestLineString(t *testing.T) {
	line := Line{Address: 0x0100, Instruction: "NOP", Length: 1}
	assert.Equal(t, "0x0100: NOP", line.String())
}
