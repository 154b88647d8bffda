package cpu

import (
	"fmt"

	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/bit"
	"github.com/gobemu/gobemula/gobemula/memory"
)

// Flag is one of the four flags in the F register. Bits 3-0 of F are
// always zero.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// interruptServiceCycles is the cost of dispatching an interrupt: two
// machine cycles to push PC plus the jump to the vector.
const interruptServiceCycles = 20

// CPU interprets the SM83 instruction set. One Step executes a single
// instruction and reports its cycle cost; interrupts are dispatched at
// instruction boundaries via HandleInterrupts.
type CPU struct {
	memory *memory.MMU

	a, f uint8
	b, c uint8
	d, e uint8
	h, l uint8
	sp   uint16
	pc   uint16

	ime bool

	halted  bool
	stopped bool
	// locked is set by the illegal opcodes; the CPU then never executes
	// again, as on hardware.
	locked bool

	// haltBug makes the next fetch skip the PC increment, so the byte
	// after HALT is read twice.
	haltBug bool

	// eiPending delays the effect of EI until the following instruction
	// has completed.
	eiPending bool

	currentOpcode uint16
	opcodeAddress uint16
}

// New creates a CPU attached to the given bus.
func New(mem *memory.MMU) *CPU {
	return &CPU{memory: mem}
}

// InitPostBootstrap loads the documented register state left behind by the
// boot ROM, used when no bootstrap image is provided. On CGB the boot ROM
// leaves A=0x11, which is how games detect the hardware.
func (c *CPU) InitPostBootstrap() {
	c.a, c.f = 0x01, 0xB0
	if c.memory.CGB() {
		c.a = 0x11
	}
	c.b, c.c = 0x00, 0x13
	c.d, c.e = 0x00, 0xD8
	c.h, c.l = 0x01, 0x4D
	c.sp = 0xFFFE
	c.pc = 0x0100
}

// Step executes one instruction and returns its cycle cost together with
// any event synthesized by the instruction's memory writes (DMA start,
// bootstrap disable). A halted or locked CPU burns idle cycles instead.
func (c *CPU) Step() (int, *memory.Event) {
	if c.locked {
		return 4, nil
	}

	if c.halted || c.stopped {
		// HALT wakes as soon as an interrupt is pending, even with
		// IME cleared.
		if c.pendingInterrupts() != 0 {
			c.halted = false
			c.stopped = false
		} else {
			return 4, nil
		}
	}

	enableIME := c.eiPending

	c.opcodeAddress = c.pc
	opcode := c.fetchOpcode()

	var cycles int
	if opcode&0xFF00 == 0xCB00 {
		cycles = opcodeCBTable[uint8(opcode)](c)
	} else {
		cycles = opcodeTable[uint8(opcode)](c)
	}

	if enableIME && c.eiPending {
		c.ime = true
		c.eiPending = false
	}

	return cycles, c.memory.TakeEvent()
}

func (c *CPU) fetchOpcode() uint16 {
	op := c.memory.Read(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}

	full := uint16(op)
	if op == 0xCB {
		full = 0xCB00 | uint16(c.memory.Read(c.pc))
		c.pc++
	}
	c.currentOpcode = full
	return full
}

func (c *CPU) pendingInterrupts() uint8 {
	return c.memory.Read(addr.IF) & c.memory.Read(addr.IE) & 0x1F
}

// HandleInterrupts services the highest priority pending interrupt if IME
// is set, returning the cycles charged (0 when nothing was dispatched).
// Priority is bit index ascending: VBlank, LCDSTAT, Timer, Serial, Joypad.
func (c *CPU) HandleInterrupts() int {
	pending := c.pendingInterrupts()
	if pending == 0 {
		return 0
	}

	// a pending interrupt always releases HALT, even when it cannot be
	// serviced
	c.halted = false
	c.stopped = false

	if !c.ime {
		return 0
	}

	for priority := uint8(0); priority < 5; priority++ {
		if !bit.IsSet(priority, pending) {
			continue
		}
		c.ime = false
		c.memory.Write(addr.IF, bit.Reset(priority, c.memory.Read(addr.IF)))
		c.pushStack(c.pc)
		c.pc = 0x0040 + uint16(priority)*8
		return interruptServiceCycles
	}
	return 0
}

// Halted reports whether the CPU is in the HALT low power state.
func (c *CPU) Halted() bool {
	return c.halted
}

// Locked reports whether an illegal opcode froze the CPU.
func (c *CPU) Locked() bool {
	return c.locked
}

// IME reports the interrupt master enable.
func (c *CPU) IME() bool {
	return c.ime
}

// GetPC returns the program counter.
func (c *CPU) GetPC() uint16 {
	return c.pc
}

// SetPC moves the program counter, used by tests and the debugger.
func (c *CPU) SetPC(pc uint16) {
	c.pc = pc
}

// GetSP returns the stack pointer.
func (c *CPU) GetSP() uint16 {
	return c.sp
}

// CurrentOpcode returns the opcode of the instruction being executed
// (0xCBxx for prefixed ones).
func (c *CPU) CurrentOpcode() uint16 {
	return c.currentOpcode
}

// OpcodeAddress returns the address the current instruction was fetched
// from.
func (c *CPU) OpcodeAddress() uint16 {
	return c.opcodeAddress
}

// GetAF returns the combined AF register pair.
func (c *CPU) GetAF() uint16 { return bit.Combine(c.a, c.f) }

// GetBC returns the combined BC register pair.
func (c *CPU) GetBC() uint16 { return bit.Combine(c.b, c.c) }

// GetDE returns the combined DE register pair.
func (c *CPU) GetDE() uint16 { return bit.Combine(c.d, c.e) }

// GetHL returns the combined HL register pair.
func (c *CPU) GetHL() uint16 { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(v uint16) {
	c.a = bit.High(v)
	c.f = bit.Low(v) & 0xF0
}

func (c *CPU) setBC(v uint16) {
	c.b = bit.High(v)
	c.c = bit.Low(v)
}

func (c *CPU) setDE(v uint16) {
	c.d = bit.High(v)
	c.e = bit.Low(v)
}

func (c *CPU) setHL(v uint16) {
	c.h = bit.High(v)
	c.l = bit.Low(v)
}

// String formats the CPU state for the debugger's `show cpu` command.
func (c *CPU) String() string {
	return fmt.Sprintf(
		"AF:%04X BC:%04X DE:%04X HL:%04X SP:%04X PC:%04X [Z:%d N:%d H:%d C:%d IME:%t]",
		c.GetAF(), c.GetBC(), c.GetDE(), c.GetHL(), c.sp, c.pc,
		c.flagToBit(zeroFlag), c.flagToBit(subFlag),
		c.flagToBit(halfCarryFlag), c.flagToBit(carryFlag), c.ime)
}

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

// readImmediate fetches the byte after the opcode and advances PC.
func (c *CPU) readImmediate() uint8 {
	v := c.memory.Read(c.pc)
	c.pc++
	return v
}

// readImmediateWord fetches the little-endian word after the opcode.
func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) pushStack(v uint16) {
	c.sp--
	c.memory.Write(c.sp, bit.High(v))
	c.sp--
	c.memory.Write(c.sp, bit.Low(v))
}

func (c *CPU) popStack() uint16 {
	low := c.memory.Read(c.sp)
	c.sp++
	high := c.memory.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}
