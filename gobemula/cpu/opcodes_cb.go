package cpu

// opcodeCBTable is the dense dispatch table for the CB-prefixed bit
// manipulation instructions. The prefixed map is perfectly regular, so the
// table is assembled from the eight operand targets: bits 2-0 select the
// target, bits 5-3 the operation (or the bit index for BIT/RES/SET), bits
// 7-6 the group.
var opcodeCBTable [256]Opcode

// cbTarget describes one of the eight operand columns: B, C, D, E, H, L,
// (HL), A. The (HL) column costs extra cycles for the memory round trip.
type cbTarget struct {
	get func(*CPU) uint8
	set func(*CPU, uint8)
	// read-modify-write cost: 8 for registers, 16 for (HL)
	cycles int
	// BIT only reads, so (HL) costs 12 there
	bitCycles int
}

var cbTargets = [8]cbTarget{
	{func(c *CPU) uint8 { return c.b }, func(c *CPU, v uint8) { c.b = v }, 8, 8},
	{func(c *CPU) uint8 { return c.c }, func(c *CPU, v uint8) { c.c = v }, 8, 8},
	{func(c *CPU) uint8 { return c.d }, func(c *CPU, v uint8) { c.d = v }, 8, 8},
	{func(c *CPU) uint8 { return c.e }, func(c *CPU, v uint8) { c.e = v }, 8, 8},
	{func(c *CPU) uint8 { return c.h }, func(c *CPU, v uint8) { c.h = v }, 8, 8},
	{func(c *CPU) uint8 { return c.l }, func(c *CPU, v uint8) { c.l = v }, 8, 8},
	{(*CPU).readHL, (*CPU).writeHL, 16, 12},
	{func(c *CPU) uint8 { return c.a }, func(c *CPU, v uint8) { c.a = v }, 8, 8},
}

// the eight rotate/shift operations of the 0x00-0x3F block, in opcode
// order: RLC, RRC, RL, RR, SLA, SRA, SWAP, SRL.
var cbShiftOps = [8]func(*CPU, *uint8){
	func(c *CPU, r *uint8) { c.rlc(r, true) },
	func(c *CPU, r *uint8) { c.rrc(r, true) },
	func(c *CPU, r *uint8) { c.rl(r, true) },
	func(c *CPU, r *uint8) { c.rr(r, true) },
	(*CPU).sla,
	(*CPU).sra,
	(*CPU).swap,
	(*CPU).srl,
}

func init() {
	for op := 0; op < 256; op++ {
		target := cbTargets[op&0x07]
		index := uint8(op>>3) & 0x07

		switch op >> 6 {
		case 0: // rotates and shifts
			shift := cbShiftOps[index]
			opcodeCBTable[op] = func(cpu *CPU) int {
				value := target.get(cpu)
				shift(cpu, &value)
				target.set(cpu, value)
				return target.cycles
			}
		case 1: // BIT n,r
			opcodeCBTable[op] = func(cpu *CPU) int {
				cpu.bitTest(index, target.get(cpu))
				return target.bitCycles
			}
		case 2: // RES n,r
			opcodeCBTable[op] = func(cpu *CPU) int {
				target.set(cpu, target.get(cpu)&^(1<<index))
				return target.cycles
			}
		case 3: // SET n,r
			opcodeCBTable[op] = func(cpu *CPU) int {
				target.set(cpu, target.get(cpu)|1<<index)
				return target.cycles
			}
		}
	}
}
