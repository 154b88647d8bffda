package memory

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/audio"
	"github.com/gobemu/gobemula/gobemula/bit"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// MMU is the shared memory bus: it decodes the 16-bit address space and
// routes accesses to the cartridge controller, video memory, work RAM and
// the memory mapped peripheral registers. Reads never fail; unmapped
// addresses return 0xFF.
type MMU struct {
	cart *Cartridge
	mbc  MBC

	vram     [2][0x2000]uint8
	vramBank uint8
	wram     [8][0x1000]uint8
	wramBank uint8
	oam      [0xA0]uint8
	io       [0x80]uint8
	hram     [0x7F]uint8
	ie       uint8

	// CGB palette RAM, 64 bytes each for background and objects,
	// accessed through the BCPS/BCPD and OCPS/OCPD index registers.
	bgPalette  [64]uint8
	objPalette [64]uint8

	cgb         bool
	doubleSpeed bool

	bootstrap        []uint8
	bootstrapEnabled bool

	// Access gating driven by the PPU at mode boundaries. While blocked,
	// CPU reads observe 0xFF and writes are dropped.
	accessVRAM bool
	accessOAM  bool

	// Button matrix shadows, low nibble each, 0 = pressed.
	joypadButtons uint8
	joypadDpad    uint8

	timer Timer
	APU   *audio.APU

	regionMap [256]memRegion

	// Event synthesized by the last I/O write, drained by the CPU step.
	pending *Event
}

// New creates a memory unit with no cartridge loaded, equivalent to
// powering on a Game Boy with an empty slot.
func New() *MMU {
	m := &MMU{
		APU:           audio.New(),
		joypadButtons: 0x0F,
		joypadDpad:    0x0F,
		wramBank:      1,
		accessVRAM:    true,
		accessOAM:     true,
	}
	m.timer.InterruptHandler = func() { m.RequestInterrupt(addr.TimerInterrupt) }
	m.initRegionMap()
	return m
}

// NewWithCartridge creates a memory unit with the given cartridge mounted.
func NewWithCartridge(cart *Cartridge) *MMU {
	m := New()
	m.cart = cart
	m.mbc = NewMBC(cart, time.Now)
	m.cgb = cart.Header.CGB
	slog.Debug("Cartridge mounted",
		"title", cart.Header.Title,
		"type", cart.Header.Type.String(),
		"romBanks", cart.Header.ROMBanks,
		"ramBanks", cart.Header.RAMBanks,
		"cgb", cart.Header.CGB)
	return m
}

func (m *MMU) initRegionMap() {
	for i := 0x00; i <= 0x7F; i++ {
		m.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		m.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		m.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		m.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		m.regionMap[i] = regionEcho
	}
	m.regionMap[0xFE] = regionOAM
	m.regionMap[0xFF] = regionIO
}

// CGB reports whether the mounted cartridge runs in Game Boy Color mode.
func (m *MMU) CGB() bool {
	return m.cgb
}

// DoubleSpeed reports whether the CGB double speed mode is active.
func (m *MMU) DoubleSpeed() bool {
	return m.doubleSpeed
}

// SwitchSpeed performs the KEY1 speed switch if it is armed. Called by the
// CPU when executing STOP in CGB mode.
func (m *MMU) SwitchSpeed() {
	if !m.cgb || m.io[addr.KEY1-0xFF00]&0x01 == 0 {
		return
	}
	m.doubleSpeed = !m.doubleSpeed
	m.io[addr.KEY1-0xFF00] = 0
	if m.doubleSpeed {
		m.io[addr.KEY1-0xFF00] = 0x80
	}
}

// LoadBootstrap installs a bootstrap ROM overlay: 256 bytes on DMG, 2048 on
// CGB (mapped at 0x0000-0x00FF and 0x0200-0x08FF around the header).
func (m *MMU) LoadBootstrap(data []uint8) {
	m.bootstrap = data
	m.bootstrapEnabled = len(data) > 0
}

// BootstrapEnabled reports whether the bootstrap overlay is still mapped.
func (m *MMU) BootstrapEnabled() bool {
	return m.bootstrapEnabled
}

// DisableBootstrap unmaps the bootstrap overlay. Invoked when the
// BootstrapFinished event is serviced.
func (m *MMU) DisableBootstrap() {
	m.bootstrapEnabled = false
}

func (m *MMU) bootstrapRead(address uint16) (uint8, bool) {
	if !m.bootstrapEnabled {
		return 0, false
	}
	if address < 0x100 && int(address) < len(m.bootstrap) {
		return m.bootstrap[address], true
	}
	// the CGB bootstrap skips the cartridge header window: image bytes
	// 0x100 onward appear from 0x200
	if len(m.bootstrap) > 0x100 && address >= 0x200 && int(address)-0x100 < len(m.bootstrap) {
		return m.bootstrap[address-0x100], true
	}
	return 0, false
}

// SetVRAMAccess gates CPU access to 0x8000-0x9FFF. The PPU blocks it
// during mode 3.
func (m *MMU) SetVRAMAccess(allowed bool) {
	m.accessVRAM = allowed
}

// SetOAMAccess gates CPU access to 0xFE00-0xFE9F. The PPU blocks it during
// modes 2 and 3.
func (m *MMU) SetOAMAccess(allowed bool) {
	m.accessOAM = allowed
}

// VRAM reads video memory directly from the chosen bank, bypassing the
// CPU-side access gating. Used by the PPU while rendering.
func (m *MMU) VRAM(bank uint8, address uint16) uint8 {
	return m.vram[bank&1][address-0x8000]
}

// OAM reads sprite attribute memory directly, bypassing gating.
func (m *MMU) OAM(offset uint16) uint8 {
	return m.oam[offset]
}

// BGPaletteByte reads CGB background palette RAM.
func (m *MMU) BGPaletteByte(index uint8) uint8 {
	return m.bgPalette[index&0x3F]
}

// OBJPaletteByte reads CGB object palette RAM.
func (m *MMU) OBJPaletteByte(index uint8) uint8 {
	return m.objPalette[index&0x3F]
}

// RequestInterrupt sets the IF bit of the chosen interrupt.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.io[addr.IF-0xFF00] |= uint8(interrupt)
}

// ReadBit reads a single bit of a memory mapped register.
func (m *MMU) ReadBit(index uint8, address uint16) bool {
	return bit.IsSet(index, m.Read(address))
}

// TakeEvent returns the event synthesized by the most recent write, if
// any, and clears it. The CPU drains this after every instruction.
func (m *MMU) TakeEvent() *Event {
	e := m.pending
	m.pending = nil
	return e
}

// Tick advances the peripherals that follow the CPU clock.
func (m *MMU) Tick(cycles int) {
	m.timer.Tick(cycles)
	if m.APU != nil {
		m.APU.Tick(cycles)
	}
}

// SetTimerSeed initializes the timer's internal counter (post-boot state).
func (m *MMU) SetTimerSeed(seed uint16) {
	m.timer.SetSeed(seed)
}

// TimerCounter exposes the internal timer counter for inspection.
func (m *MMU) TimerCounter() uint16 {
	return m.timer.Counter()
}

// BatteryRAM returns the external RAM bytes in address order, or nil when
// the cartridge has no battery-backed RAM.
func (m *MMU) BatteryRAM() []uint8 {
	if m.mbc == nil || m.cart == nil || !m.cart.Header.HasBattery {
		return nil
	}
	return m.mbc.RAM()
}

// LoadBatteryRAM restores a battery save into external RAM.
func (m *MMU) LoadBatteryRAM(data []uint8) {
	if m.mbc == nil || len(data) == 0 {
		return
	}
	m.mbc.LoadRAM(data)
}

// RunDMA services a DMATransfer event: copies 160 bytes from page<<8 into
// OAM, atomically with respect to the CPU and regardless of gating.
func (m *MMU) RunDMA(page uint8) {
	source := uint16(page) << 8
	for i := uint16(0); i < 0xA0; i++ {
		m.oam[i] = m.Read(source + i)
	}
}

func (m *MMU) Read(address uint16) uint8 {
	switch m.regionMap[address>>8] {
	case regionROM:
		if v, ok := m.bootstrapRead(address); ok {
			return v
		}
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionVRAM:
		if !m.accessVRAM {
			return 0xFF
		}
		return m.vram[m.vramBank][address-0x8000]
	case regionExtRAM:
		if m.mbc == nil {
			return 0xFF
		}
		return m.mbc.Read(address)
	case regionWRAM:
		return m.wramRead(address)
	case regionEcho:
		return m.wramRead(address - 0x2000)
	case regionOAM:
		if address > addr.OAMEnd {
			// unusable region reads as 0xFF on hardware
			return 0xFF
		}
		if !m.accessOAM {
			return 0xFF
		}
		return m.oam[address-addr.OAMStart]
	case regionIO:
		return m.readIO(address)
	}
	panic(fmt.Sprintf("unmapped read at 0x%04X", address))
}

func (m *MMU) wramRead(address uint16) uint8 {
	if address < 0xD000 {
		return m.wram[0][address-0xC000]
	}
	return m.wram[m.wramBank][address-0xD000]
}

func (m *MMU) wramWrite(address uint16, value uint8) {
	if address < 0xD000 {
		m.wram[0][address-0xC000] = value
		return
	}
	m.wram[m.wramBank][address-0xD000] = value
}

func (m *MMU) readIO(address uint16) uint8 {
	switch {
	case address == addr.P1:
		return m.joypadRead()
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	case address >= addr.NR10 && address <= addr.WaveRAMEnd:
		return m.APU.ReadRegister(address)
	case address == addr.IF:
		// the upper 3 bits are wired high
		return m.io[address-0xFF00] | 0xE0
	case address == addr.VBK:
		if !m.cgb {
			return 0xFF
		}
		return 0xFE | m.vramBank
	case address == addr.SVBK:
		if !m.cgb {
			return 0xFF
		}
		return m.wramBank
	case address == addr.BCPD:
		return m.bgPalette[m.io[addr.BCPS-0xFF00]&0x3F]
	case address == addr.OCPD:
		return m.objPalette[m.io[addr.OCPS-0xFF00]&0x3F]
	case address >= 0xFF80 && address <= 0xFFFE:
		return m.hram[address-0xFF80]
	case address == addr.IE:
		return m.ie
	}
	return m.io[address-0xFF00]
}

func (m *MMU) Write(address uint16, value uint8) {
	switch m.regionMap[address>>8] {
	case regionROM:
		if m.mbc == nil {
			return
		}
		m.mbc.Write(address, value)
	case regionVRAM:
		if !m.accessVRAM {
			return
		}
		m.vram[m.vramBank][address-0x8000] = value
	case regionExtRAM:
		if m.mbc == nil {
			return
		}
		m.mbc.Write(address, value)
	case regionWRAM:
		m.wramWrite(address, value)
	case regionEcho:
		m.wramWrite(address-0x2000, value)
	case regionOAM:
		if address > addr.OAMEnd {
			return
		}
		if !m.accessOAM {
			return
		}
		m.oam[address-addr.OAMStart] = value
	case regionIO:
		m.writeIO(address, value)
	default:
		panic(fmt.Sprintf("unmapped write at 0x%04X", address))
	}
}

func (m *MMU) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.P1:
		// only the selection bits are writable
		m.io[addr.P1-0xFF00] = value & 0x30
	case address == addr.SC:
		m.io[addr.SC-0xFF00] = value & 0x81
		if value&0x81 == 0x81 {
			// no link peer: the transfer completes immediately and
			// shifts in all ones
			m.io[addr.SB-0xFF00] = 0xFF
			m.io[addr.SC-0xFF00] &^= 0x80
			m.RequestInterrupt(addr.SerialInterrupt)
		}
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
	case address >= addr.NR10 && address <= addr.WaveRAMEnd:
		m.APU.WriteRegister(address, value)
	case address == addr.IF:
		m.io[addr.IF-0xFF00] = value | 0xE0
	case address == addr.DMA:
		m.io[addr.DMA-0xFF00] = value
		m.pending = &Event{Type: DMATransfer, Duration: dmaDuration, Extra: value}
	case address == addr.BOOT:
		if value != 0 && m.bootstrapEnabled {
			m.pending = &Event{Type: BootstrapFinished}
		}
	case address == addr.KEY1:
		if m.cgb {
			cur := m.io[addr.KEY1-0xFF00] & 0x80
			m.io[addr.KEY1-0xFF00] = cur | (value & 0x01)
		}
	case address == addr.VBK:
		if m.cgb {
			m.vramBank = value & 0x01
		}
	case address == addr.SVBK:
		if m.cgb {
			m.wramBank = value & 0x07
			if m.wramBank == 0 {
				m.wramBank = 1
			}
		}
	case address == addr.BCPS:
		m.io[addr.BCPS-0xFF00] = value & 0xBF
	case address == addr.BCPD:
		idx := m.io[addr.BCPS-0xFF00]
		m.bgPalette[idx&0x3F] = value
		if idx&0x80 != 0 {
			m.io[addr.BCPS-0xFF00] = 0x80 | ((idx + 1) & 0x3F)
		}
	case address == addr.OCPS:
		m.io[addr.OCPS-0xFF00] = value & 0xBF
	case address == addr.OCPD:
		idx := m.io[addr.OCPS-0xFF00]
		m.objPalette[idx&0x3F] = value
		if idx&0x80 != 0 {
			m.io[addr.OCPS-0xFF00] = 0x80 | ((idx + 1) & 0x3F)
		}
	case address >= 0xFF80 && address <= 0xFFFE:
		m.hram[address-0xFF80] = value
	case address == addr.IE:
		m.ie = value
	default:
		m.io[address-0xFF00] = value
	}
}
