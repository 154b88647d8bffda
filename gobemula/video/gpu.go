package video

import (
	"fmt"

	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/bit"
	"github.com/gobemu/gobemula/gobemula/memory"
)

// GpuMode is the PPU rendering stage, matching STAT bits 1-0.
type GpuMode int

const (
	// HBlankMode (0): horizontal retrace, CPU can access VRAM/OAM.
	HBlankMode GpuMode = 0
	// VBlankMode (1): vertical retrace, lines 144-153.
	VBlankMode GpuMode = 1
	// OAMScanMode (2): sprite search, OAM blocked.
	OAMScanMode GpuMode = 2
	// DrawMode (3): pixel transfer, VRAM and OAM blocked.
	DrawMode GpuMode = 3
)

const (
	oamScanCycles = 80
	drawCycles    = 172
	hblankCycles  = 204
	lineCycles    = oamScanCycles + drawCycles + hblankCycles

	// CyclesPerFrame is 154 scanlines of 456 dots.
	CyclesPerFrame = lineCycles * 154
)

// STAT register bit indices.
const (
	statLycIrq       = 6
	statOamIrq       = 5
	statVblankIrq    = 4
	statHblankIrq    = 3
	statLycCondition = 2
)

// LCDC register bit indices.
const (
	lcdDisplayEnable       = 7
	windowTileMapSelect    = 6
	windowDisplayEnable    = 5
	bgWindowTileDataSelect = 4
	bgTileMapSelect        = 3
	spriteSize             = 2
	spriteDisplayEnable    = 1
	bgDisplay              = 0
)

// GPU drives the scanline state machine and renders into the framebuffer.
// The scheduler runs the CPU for the duration of the current STAT mode,
// then calls AdvanceMode for the transition.
type GPU struct {
	memory      *memory.MMU
	framebuffer *FrameBuffer

	mode       GpuMode
	line       int // LY, 0-153
	vblankLine int // which of the 10 VBlank lines we are on
	windowLine int // internal window line counter

	// per-scanline state used for sprite priority: the color index of
	// the background/window pixel and, on CGB, its tile's priority bit
	bgLineIndex    [FramebufferWidth]uint8
	bgLinePriority [FramebufferWidth]bool

	// statLine is the OR of the enabled STAT sources; the LCDSTAT
	// interrupt fires only on its rising edge
	statLine bool

	enteredVBlank bool
}

// NewGPU creates a PPU attached to the bus, starting at the top of the
// visible frame.
func NewGPU(mem *memory.MMU) *GPU {
	g := &GPU{
		memory:      mem,
		framebuffer: NewFrameBuffer(),
		mode:        OAMScanMode,
	}
	g.framebuffer.Clear()
	g.applyMode(OAMScanMode)
	return g
}

func (g *GPU) GetFrameBuffer() *FrameBuffer {
	return g.framebuffer
}

// Mode returns the current STAT mode.
func (g *GPU) Mode() GpuMode {
	return g.mode
}

// Line returns the current scanline.
func (g *GPU) Line() int {
	return g.line
}

// ModeDuration returns the cycle budget of the current mode: how long the
// CPU runs before the next AdvanceMode call.
func (g *GPU) ModeDuration() int {
	switch g.mode {
	case OAMScanMode:
		return oamScanCycles
	case DrawMode:
		return drawCycles
	case HBlankMode:
		return hblankCycles
	case VBlankMode:
		return lineCycles
	}
	panic(fmt.Sprintf("invalid STAT mode %d", g.mode))
}

// EnteredVBlank reports whether the previous AdvanceMode crossed into
// VBlank, meaning a complete frame is in the buffer.
func (g *GPU) EnteredVBlank() bool {
	return g.enteredVBlank
}

// AdvanceMode performs one mode transition of the scanline state machine.
func (g *GPU) AdvanceMode() {
	g.enteredVBlank = false

	switch g.mode {
	case OAMScanMode:
		g.applyMode(DrawMode)
		if g.memory.ReadBit(lcdDisplayEnable, addr.LCDC) {
			g.drawScanline()
		}
	case DrawMode:
		g.applyMode(HBlankMode)
	case HBlankMode:
		g.setLY(g.line + 1)
		if g.line == FramebufferHeight {
			g.applyMode(VBlankMode)
			g.vblankLine = 0
			g.windowLine = 0
			g.enteredVBlank = true
			g.memory.RequestInterrupt(addr.VBlankInterrupt)
		} else {
			g.applyMode(OAMScanMode)
		}
	case VBlankMode:
		g.vblankLine++
		if g.vblankLine < 10 {
			g.setLY(g.line + 1)
		} else {
			// end of line 153: LY wraps and the next frame starts
			g.setLY(0)
			g.applyMode(OAMScanMode)
		}
	}
}

// applyMode updates the mode bits in STAT, adjusts the bus access gates
// and re-evaluates the STAT interrupt line.
func (g *GPU) applyMode(mode GpuMode) {
	g.mode = mode

	stat := g.memory.Read(addr.STAT)
	g.memory.Write(addr.STAT, stat&0xFC|uint8(mode))

	switch mode {
	case OAMScanMode:
		g.memory.SetVRAMAccess(true)
		g.memory.SetOAMAccess(false)
	case DrawMode:
		g.memory.SetVRAMAccess(false)
		g.memory.SetOAMAccess(false)
	default:
		g.memory.SetVRAMAccess(true)
		g.memory.SetOAMAccess(true)
	}

	g.updateStatInterrupt()
}

// setLY writes the scanline register and refreshes the LYC comparison.
func (g *GPU) setLY(line int) {
	g.line = line
	g.memory.Write(addr.LY, uint8(line))

	stat := g.memory.Read(addr.STAT)
	if uint8(line) == g.memory.Read(addr.LYC) {
		stat = bit.Set(statLycCondition, stat)
	} else {
		stat = bit.Reset(statLycCondition, stat)
	}
	g.memory.Write(addr.STAT, stat)

	g.updateStatInterrupt()
}

// updateStatInterrupt recomputes the OR of the enabled STAT sources and
// requests LCDSTAT on a false-to-true transition.
func (g *GPU) updateStatInterrupt() {
	stat := g.memory.Read(addr.STAT)

	line := false
	switch g.mode {
	case HBlankMode:
		line = bit.IsSet(statHblankIrq, stat)
	case VBlankMode:
		line = bit.IsSet(statVblankIrq, stat)
	case OAMScanMode:
		line = bit.IsSet(statOamIrq, stat)
	}
	if bit.IsSet(statLycIrq, stat) && bit.IsSet(statLycCondition, stat) {
		line = true
	}

	if line && !g.statLine {
		g.memory.RequestInterrupt(addr.LCDSTATInterrupt)
	}
	g.statLine = line
}
