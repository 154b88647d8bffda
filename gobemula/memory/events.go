package memory

// EventType tags an event on the emulator timeline.
type EventType int

const (
	// OAMScan is PPU mode 2 (80 dots).
	OAMScan EventType = iota
	// Draw is PPU mode 3 (172 dots).
	Draw
	// HBlank is PPU mode 0 (204 dots).
	HBlank
	// VBlank is PPU mode 1 (456 dots per line, 10 lines).
	VBlank
	// BootstrapFinished fires when the game writes to the BOOT register.
	BootstrapFinished
	// DMATransfer fires when the game writes the DMA register; Extra
	// holds the written source page.
	DMATransfer
	// JoypadPressed names host button input; the bus never synthesizes
	// it, as HandleKeyPress requests the Joypad interrupt directly.
	JoypadPressed
)

// Event is a plain record returned upward to the emulator loop; components
// never hold callbacks into each other.
type Event struct {
	Type     EventType
	Duration int // cycles charged when the event is serviced
	Extra    uint8
}

// dmaDuration is the cost of the OAM DMA copy: 160 bytes, 4 cycles each.
const dmaDuration = 640
