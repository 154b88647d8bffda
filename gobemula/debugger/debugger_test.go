package debugger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobemu/gobemula/gobemula/cpu"
	"github.com/gobemu/gobemula/gobemula/disasm"
	"github.com/gobemu/gobemula/gobemula/memory"
)

func run(t *testing.T, input string) (string, *Debugger) {
	t.Helper()
	mem := memory.New()
	c := cpu.New(mem)

	var out bytes.Buffer
	d := NewWithIO(strings.NewReader(input), &out)
	// the ROM region of an empty bus reads 0xFF, which decodes to RST 38
	last := disasm.DisassembleAt(0x0000, mem)
	d.Run(last, c, mem)
	return out.String(), d
}

func TestStepCommand(t *testing.T) {
	out, d := run(t, "step\n")
	assert.Contains(t, out, "gbm> ")
	assert.True(t, d.isStep)
	assert.True(t, d.shouldRunCPU)
}

func TestLastCommand(t *testing.T) {
	// an empty bus reads 0xFF everywhere, which disassembles to RST 38
	out, _ := run(t, "last\nstep\n")
	assert.Contains(t, out, "RST 38")
}

func TestShowCPU(t *testing.T) {
	out, _ := run(t, "show cpu\nstep\n")
	assert.Contains(t, out, "AF:")
	assert.Contains(t, out, "IME:")
}

func TestShowIORegs(t *testing.T) {
	out, _ := run(t, "show ioregs\nstep\n")
	assert.Contains(t, out, "TIMA:")
	assert.Contains(t, out, "DIV:")
	assert.Contains(t, out, "IE:")
}

func TestBreakCommand(t *testing.T) {
	_, d := run(t, "break 0x1234\n")
	require.NotNil(t, d.breakAddr)
	assert.Equal(t, uint16(0x1234), *d.breakAddr)
	assert.True(t, d.shouldRunCPU)
}

func TestBreakInvalidAddressIsSoft(t *testing.T) {
	out, d := run(t, "break 0xZZZZ\nstep\n")
	assert.Contains(t, out, "not a valid hex number")
	assert.Nil(t, d.breakAddr)
}

func TestBreakTriggersAtOrPastAddress(t *testing.T) {
	mem := memory.New()
	c := cpu.New(mem)
	var out bytes.Buffer
	d := NewWithIO(strings.NewReader("break 0xC000\nstep\n"), &out)

	// arm the breakpoint
	d.Run(disasm.DisassembleAt(0xBFFF, mem), c, mem)
	require.NotNil(t, d.breakAddr)

	// an instruction at a later address trips it and prompts again
	d.Run(disasm.Line{Address: 0xC004, Instruction: "NOP", Length: 1}, c, mem)
	assert.Nil(t, d.breakAddr)
	assert.Contains(t, out.String(), "NOP")
}

func TestRunDebugStreamsTrace(t *testing.T) {
	mem := memory.New()
	c := cpu.New(mem)
	var out bytes.Buffer
	d := NewWithIO(strings.NewReader("run debug human\n"), &out)

	d.Run(disasm.Line{Address: 0x0100, Instruction: "NOP", Length: 1}, c, mem)
	require.Equal(t, uint8(traceHuman), d.runDebug)

	out.Reset()
	d.Run(disasm.Line{Address: 0x0101, Instruction: "INC A", Length: 1}, c, mem)
	assert.Contains(t, out.String(), "INC A")
	assert.NotContains(t, out.String(), "gbm>", "no prompt while tracing")
}

func TestInvalidCommandIsSoft(t *testing.T) {
	out, _ := run(t, "bogus\nstep\n")
	assert.Contains(t, out, "Invalid command: bogus")
	assert.Contains(t, out, "- help")
}

func TestHelp(t *testing.T) {
	out, _ := run(t, "help\nstep\n")
	assert.Contains(t, out, "break <address in hex>")
}
