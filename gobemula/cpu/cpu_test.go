package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/memory"
)

const codeBase = 0xC000

// newTestCPU loads the given code into WRAM and points PC at it.
func newTestCPU(code ...uint8) *CPU {
	mem := memory.New()
	for i, b := range code {
		mem.Write(codeBase+uint16(i), b)
	}
	c := New(mem)
	c.pc = codeBase
	return c
}

func (c *CPU) mustStep(t *testing.T) int {
	t.Helper()
	cycles, _ := c.Step()
	return cycles
}

func TestPostBootstrapRegisters(t *testing.T) {
	c := newTestCPU()
	c.InitPostBootstrap()

	assert.Equal(t, uint16(0x01B0), c.GetAF())
	assert.Equal(t, uint16(0x0013), c.GetBC())
	assert.Equal(t, uint16(0x00D8), c.GetDE())
	assert.Equal(t, uint16(0x014D), c.GetHL())
	assert.Equal(t, uint16(0xFFFE), c.GetSP())
	assert.Equal(t, uint16(0x0100), c.GetPC())
}

func TestDAAAfterAddition(t *testing.T) {
	// 0x45 + 0x38 = 0x7D, then DAA adjusts to the BCD sum 0x83
	c := newTestCPU(0xC6, 0x38, 0x27) // ADD A,0x38; DAA
	c.a = 0x45

	c.mustStep(t)
	assert.Equal(t, uint8(0x7D), c.a)

	c.mustStep(t)
	assert.Equal(t, uint8(0x83), c.a)
	assert.False(t, c.isSetFlag(zeroFlag))
	assert.False(t, c.isSetFlag(subFlag))
	assert.False(t, c.isSetFlag(halfCarryFlag))
	assert.False(t, c.isSetFlag(carryFlag))
}

func TestINCHalfCarry(t *testing.T) {
	c := newTestCPU(0x3C) // INC A
	c.a = 0x0F
	c.setFlag(carryFlag)

	c.mustStep(t)
	assert.Equal(t, uint8(0x10), c.a)
	assert.False(t, c.isSetFlag(zeroFlag))
	assert.True(t, c.isSetFlag(halfCarryFlag))
	assert.False(t, c.isSetFlag(subFlag))
	assert.True(t, c.isSetFlag(carryFlag), "INC preserves carry")
}

func TestDECHalfCarry(t *testing.T) {
	c := newTestCPU(0x3D) // DEC A
	c.a = 0x10

	c.mustStep(t)
	assert.Equal(t, uint8(0x0F), c.a)
	assert.True(t, c.isSetFlag(halfCarryFlag))
	assert.True(t, c.isSetFlag(subFlag))
}

func TestInterruptDispatch(t *testing.T) {
	c := newTestCPU()
	c.ime = true
	c.sp = 0xDFFE
	c.pc = 0x1234
	c.memory.Write(addr.IE, 0x01)
	c.memory.Write(addr.IF, 0x01)

	cycles := c.HandleInterrupts()

	assert.Equal(t, interruptServiceCycles, cycles)
	assert.Equal(t, uint16(0x0040), c.pc)
	assert.Equal(t, uint16(0xDFFC), c.sp, "SP decreased by 2")
	assert.Equal(t, uint8(0x34), c.memory.Read(0xDFFC))
	assert.Equal(t, uint8(0x12), c.memory.Read(0xDFFD))
	assert.Equal(t, uint8(0x00), c.memory.Read(addr.IF)&0x1F, "serviced IF bit cleared")
	assert.False(t, c.ime)
}

func TestInterruptPriority(t *testing.T) {
	vectors := []struct {
		flag   uint8
		vector uint16
	}{
		{0x01, 0x0040}, // VBlank
		{0x02, 0x0048}, // LCDSTAT
		{0x04, 0x0050}, // Timer
		{0x08, 0x0058}, // Serial
		{0x10, 0x0060}, // Joypad
	}

	for _, tt := range vectors {
		c := newTestCPU()
		c.ime = true
		c.sp = 0xDFFE
		c.memory.Write(addr.IE, 0xFF)
		c.memory.Write(addr.IF, tt.flag)

		c.HandleInterrupts()
		assert.Equal(t, tt.vector, c.pc, "flag 0x%02X", tt.flag)
	}

	// with everything pending, VBlank wins
	c := newTestCPU()
	c.ime = true
	c.sp = 0xDFFE
	c.memory.Write(addr.IE, 0x1F)
	c.memory.Write(addr.IF, 0x1F)
	c.HandleInterrupts()
	assert.Equal(t, uint16(0x0040), c.pc)
	assert.Equal(t, uint8(0x1E), c.memory.Read(addr.IF)&0x1F, "only the serviced bit clears")
}

func TestInterruptNotServicedWithoutIME(t *testing.T) {
	c := newTestCPU()
	c.ime = false
	c.memory.Write(addr.IE, 0x01)
	c.memory.Write(addr.IF, 0x01)

	assert.Zero(t, c.HandleInterrupts())
	assert.Equal(t, uint8(0x01), c.memory.Read(addr.IF)&0x1F)
}

func TestEIDelaysOneInstruction(t *testing.T) {
	c := newTestCPU(0xFB, 0x00, 0x00) // EI; NOP; NOP

	c.mustStep(t) // EI
	assert.False(t, c.ime, "IME not yet set after EI")

	c.mustStep(t) // NOP completes, IME turns on
	assert.True(t, c.ime)
}

func TestDIImmediate(t *testing.T) {
	c := newTestCPU(0xF3)
	c.ime = true
	c.mustStep(t)
	assert.False(t, c.ime)
}

func TestHALTWakesOnPendingInterrupt(t *testing.T) {
	c := newTestCPU(0x76, 0x00) // HALT; NOP
	c.ime = true

	c.mustStep(t)
	assert.True(t, c.halted)

	// nothing pending: the CPU burns idle cycles in place
	cycles := c.mustStep(t)
	assert.Equal(t, 4, cycles)
	assert.True(t, c.halted)
	assert.Equal(t, codeBase+1, c.pc)

	c.memory.Write(addr.IE, 0x04)
	c.memory.Write(addr.IF, 0x04)
	c.mustStep(t)
	assert.False(t, c.halted)
}

func TestHALTBug(t *testing.T) {
	// IME off with an interrupt already pending: HALT is skipped and the
	// following byte is fetched twice.
	c := newTestCPU(0x76, 0x3C) // HALT; INC A
	c.ime = false
	c.memory.Write(addr.IE, 0x01)
	c.memory.Write(addr.IF, 0x01)

	c.mustStep(t) // HALT does not halt
	require.False(t, c.halted)
	require.True(t, c.haltBug)

	c.mustStep(t) // INC A, PC not advanced
	assert.Equal(t, uint8(1), c.a)
	assert.Equal(t, codeBase+1, c.pc, "halt bug repeats the fetch")

	c.mustStep(t) // INC A again
	assert.Equal(t, uint8(2), c.a)
	assert.Equal(t, codeBase+2, c.pc)
}

func TestIllegalOpcodeLocksCPU(t *testing.T) {
	for _, op := range []uint8{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD} {
		c := newTestCPU(op, 0x3C)
		c.mustStep(t)
		assert.True(t, c.Locked(), "opcode 0x%02X", op)

		pc := c.pc
		cycles := c.mustStep(t)
		assert.Equal(t, 4, cycles)
		assert.Equal(t, pc, c.pc, "locked CPU never advances")
		assert.Equal(t, uint8(0), c.a)
	}
}

func TestStackPushPop(t *testing.T) {
	c := newTestCPU(0xC5, 0xD1) // PUSH BC; POP DE
	c.sp = 0xDFFE
	c.setBC(0xBEEF)

	assert.Equal(t, 16, c.mustStep(t))
	assert.Equal(t, 12, c.mustStep(t))
	assert.Equal(t, uint16(0xBEEF), c.GetDE())
	assert.Equal(t, uint16(0xDFFE), c.sp)
}

func TestPopAFMasksLowBits(t *testing.T) {
	c := newTestCPU(0xF1) // POP AF
	c.sp = 0xDFF0
	c.memory.Write(0xDFF0, 0xFF)
	c.memory.Write(0xDFF1, 0x12)

	c.mustStep(t)
	assert.Equal(t, uint16(0x12F0), c.GetAF(), "F bits 3-0 always read zero")
}

func TestConditionalBranchCycles(t *testing.T) {
	t.Run("JR NZ taken", func(t *testing.T) {
		c := newTestCPU(0x20, 0x02) // JR NZ,+2
		assert.Equal(t, 12, c.mustStep(t))
		assert.Equal(t, codeBase+4, c.pc)
	})

	t.Run("JR NZ not taken", func(t *testing.T) {
		c := newTestCPU(0x20, 0x02)
		c.setFlag(zeroFlag)
		assert.Equal(t, 8, c.mustStep(t))
		assert.Equal(t, codeBase+2, c.pc)
	})

	t.Run("JR negative offset", func(t *testing.T) {
		c := newTestCPU(0x18, 0xFE) // JR -2: loops to itself
		assert.Equal(t, 12, c.mustStep(t))
		assert.Equal(t, uint16(codeBase), c.pc)
	})

	t.Run("CALL and RET", func(t *testing.T) {
		c := newTestCPU(0xCD, 0x10, 0xC0) // CALL 0xC010
		c.sp = 0xDFFE
		c.memory.Write(0xC010, 0xC9) // RET

		assert.Equal(t, 24, c.mustStep(t))
		assert.Equal(t, uint16(0xC010), c.pc)
		assert.Equal(t, 16, c.mustStep(t))
		assert.Equal(t, codeBase+3, c.pc)
	})

	t.Run("RET NZ not taken", func(t *testing.T) {
		c := newTestCPU(0xC0)
		c.setFlag(zeroFlag)
		assert.Equal(t, 8, c.mustStep(t))
	})

	t.Run("RET NZ taken", func(t *testing.T) {
		c := newTestCPU(0xC0)
		c.sp = 0xDFF0
		c.memory.Write(0xDFF0, 0x34)
		c.memory.Write(0xDFF1, 0x12)
		assert.Equal(t, 20, c.mustStep(t))
		assert.Equal(t, uint16(0x1234), c.pc)
	})
}

func TestCycleCountsAreDocumentedValues(t *testing.T) {
	valid := map[int]bool{4: true, 8: true, 12: true, 16: true, 20: true, 24: true}

	samples := []struct {
		code   []uint8
		cycles int
	}{
		{[]uint8{0x00}, 4},              // NOP
		{[]uint8{0x06, 0x42}, 8},        // LD B,n
		{[]uint8{0x01, 0x00, 0x00}, 12}, // LD BC,nn
		{[]uint8{0xC3, 0x00, 0xC0}, 16}, // JP nn
		{[]uint8{0x08, 0x00, 0xC1}, 20}, // LD (nn),SP
		{[]uint8{0xCD, 0x00, 0xC1}, 24}, // CALL nn
		{[]uint8{0xCB, 0x11}, 8},        // RL C
		{[]uint8{0xCB, 0x46}, 12},       // BIT 0,(HL)
		{[]uint8{0xCB, 0x16}, 16},       // RL (HL)
	}

	for _, tt := range samples {
		c := newTestCPU(tt.code...)
		c.sp = 0xDFFE
		c.setHL(0xC800)
		got := c.mustStep(t)
		assert.Equal(t, tt.cycles, got, "opcode % X", tt.code)
		assert.True(t, valid[got])
	}
}

func TestADCAndSBCUseCarry(t *testing.T) {
	c := newTestCPU(0xCE, 0x00) // ADC A,0x00
	c.a = 0xFF
	c.setFlag(carryFlag)
	c.mustStep(t)
	assert.Equal(t, uint8(0x00), c.a)
	assert.True(t, c.isSetFlag(zeroFlag))
	assert.True(t, c.isSetFlag(carryFlag))
	assert.True(t, c.isSetFlag(halfCarryFlag))

	c = newTestCPU(0xDE, 0x00) // SBC A,0x00
	c.a = 0x00
	c.setFlag(carryFlag)
	c.mustStep(t)
	assert.Equal(t, uint8(0xFF), c.a)
	assert.True(t, c.isSetFlag(carryFlag))
	assert.True(t, c.isSetFlag(halfCarryFlag))
	assert.True(t, c.isSetFlag(subFlag))
}

func TestADDSPOffset(t *testing.T) {
	c := newTestCPU(0xE8, 0xFE) // ADD SP,-2
	c.sp = 0xDF02
	assert.Equal(t, 16, c.mustStep(t))
	assert.Equal(t, uint16(0xDF00), c.sp)
	assert.False(t, c.isSetFlag(zeroFlag))
	assert.False(t, c.isSetFlag(subFlag))
}

func TestDAASubtraction(t *testing.T) {
	// 42 - 09 = 33 in BCD
	c := newTestCPU(0xD6, 0x09, 0x27) // SUB 0x09; DAA
	c.a = 0x42
	c.mustStep(t)
	c.mustStep(t)
	assert.Equal(t, uint8(0x33), c.a)
}
