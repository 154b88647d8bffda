// Package gobemula implements a Game Boy / Game Boy Color emulator core:
// an SM83 interpreter, memory bus with cartridge bank controllers, timer,
// pixel PPU, joypad and APU, driven by a cycle-budgeted scheduler.
package gobemula

import (
	"log/slog"
	"os"
	"time"

	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/cpu"
	"github.com/gobemu/gobemula/gobemula/debugger"
	"github.com/gobemu/gobemula/gobemula/disasm"
	"github.com/gobemu/gobemula/gobemula/memory"
	"github.com/gobemu/gobemula/gobemula/video"
)

// batterySaveInterval is how often the battery callback fires while
// running; it also fires once at shutdown.
const batterySaveInterval = time.Second

// Emulator owns every component and drives the event timeline: the CPU
// runs inside the current PPU mode's cycle budget, memory writes synthesize
// events that are serviced here, and the PPU advances at mode boundaries.
type Emulator struct {
	cpu *cpu.CPU
	gpu *video.GPU
	mem *memory.MMU

	debugger *debugger.Debugger

	batterySave     func([]byte)
	lastBatterySave time.Time

	instructionCount uint64
	frameCount       uint64
}

// New creates an emulator with the given cartridge mounted and registers
// initialized to the documented post-boot state.
func New(cart *memory.Cartridge) *Emulator {
	e := &Emulator{}
	e.mem = memory.NewWithCartridge(cart)
	e.cpu = cpu.New(e.mem)
	e.gpu = video.NewGPU(e.mem)
	e.initPostBootstrap()
	return e
}

// NewWithFile loads a ROM image from disk. Returns the cartridge loader's
// error for bad images (unsupported controller, invalid size).
func NewWithFile(path string) (*Emulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cart, err := memory.NewCartridge(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded ROM", "path", path, "size", len(data))
	return New(cart), nil
}

// initPostBootstrap applies the register and I/O state the boot ROM leaves
// behind, used when no bootstrap image is installed.
func (e *Emulator) initPostBootstrap() {
	e.cpu.InitPostBootstrap()
	e.mem.SetTimerSeed(0xABCC)
	e.mem.Write(addr.LCDC, 0x91)
	e.mem.Write(addr.BGP, 0xFC)
	e.mem.Write(addr.OBP0, 0xFF)
	e.mem.Write(addr.OBP1, 0xFF)
	e.mem.Write(addr.IF, 0xE1)
}

// LoadBootstrap installs a bootstrap ROM and restarts execution from
// address 0, as on power-up.
func (e *Emulator) LoadBootstrap(data []byte) {
	e.mem.LoadBootstrap(data)
	e.cpu.SetPC(0x0000)
	slog.Debug("Bootstrap ROM installed", "size", len(data))
}

// LoadBattery restores a previous battery save into external RAM.
func (e *Emulator) LoadBattery(data []byte) {
	e.mem.LoadBatteryRAM(data)
}

// SetBatterySaveCallback registers the host callback that persists the
// external RAM bytes. It is invoked about once per second and at Shutdown.
func (e *Emulator) SetBatterySaveCallback(save func([]byte)) {
	e.batterySave = save
	e.lastBatterySave = time.Now()
}

// AttachDebugger hooks the interactive shell in; it gains control after
// every instruction.
func (e *Emulator) AttachDebugger(d *debugger.Debugger) {
	e.debugger = d
}

// runEvent services an event synthesized by an instruction.
func (e *Emulator) runEvent(event *memory.Event) {
	switch event.Type {
	case memory.BootstrapFinished:
		e.mem.DisableBootstrap()
		slog.Debug("Bootstrap finished", "pc", e.cpu.GetPC())
	case memory.DMATransfer:
		e.mem.RunDMA(event.Extra)
	default:
		// PPU mode events never travel this path
	}
}

// Step runs the CPU until the current PPU mode's cycle budget is spent,
// then advances the PPU one mode transition. Returns the cycles consumed.
// Event and interrupt-dispatch cycles charge the timer as well.
func (e *Emulator) Step() int {
	budget := e.gpu.ModeDuration()
	total := 0

	for total < budget {
		cycles, event := e.cpu.Step()
		e.mem.Tick(cycles)
		total += cycles

		if event != nil {
			e.runEvent(event)
			e.mem.Tick(event.Duration)
			total += event.Duration
		}

		// the timer is charged before dispatch so a TIMA overflow is
		// seen at this boundary
		if serviced := e.cpu.HandleInterrupts(); serviced > 0 {
			e.mem.Tick(serviced)
			total += serviced
		}

		e.instructionCount++

		if e.debugger != nil {
			last := disasm.DisassembleAt(e.cpu.OpcodeAddress(), e.mem)
			e.debugger.Run(last, e.cpu, e.mem)
		}
	}

	e.gpu.AdvanceMode()
	return total
}

// RunUntilFrame executes until the PPU enters VBlank, leaving a complete
// frame in the buffer.
func (e *Emulator) RunUntilFrame() {
	for {
		e.Step()
		if e.gpu.EnteredVBlank() {
			break
		}
	}
	e.frameCount++
	e.maybeSaveBattery()
}

func (e *Emulator) maybeSaveBattery() {
	if e.batterySave == nil {
		return
	}
	if time.Since(e.lastBatterySave) < batterySaveInterval {
		return
	}
	e.saveBattery()
}

func (e *Emulator) saveBattery() {
	if e.batterySave == nil {
		return
	}
	if data := e.mem.BatteryRAM(); len(data) > 0 {
		e.batterySave(data)
		e.lastBatterySave = time.Now()
	}
}

// Shutdown flushes the battery save. Call once when the host quits.
func (e *Emulator) Shutdown() {
	e.saveBattery()
}

// GetCurrentFrame returns the PPU's output buffer.
func (e *Emulator) GetCurrentFrame() *video.FrameBuffer {
	return e.gpu.GetFrameBuffer()
}

// HandleKeyPress feeds a button press into the joypad matrix.
func (e *Emulator) HandleKeyPress(key memory.JoypadKey) {
	e.mem.HandleKeyPress(key)
}

// HandleKeyRelease feeds a button release into the joypad matrix.
func (e *Emulator) HandleKeyRelease(key memory.JoypadKey) {
	e.mem.HandleKeyRelease(key)
}

// GetCPU exposes the CPU for the debugger and tests.
func (e *Emulator) GetCPU() *cpu.CPU {
	return e.cpu
}

// GetMMU exposes the bus for the debugger and tests.
func (e *Emulator) GetMMU() *memory.MMU {
	return e.mem
}

// GetInstructionCount returns the executed instruction count.
func (e *Emulator) GetInstructionCount() uint64 {
	return e.instructionCount
}

// GetFrameCount returns the completed frame count.
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}
