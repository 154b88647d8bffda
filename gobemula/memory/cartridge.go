package memory

import (
	"errors"
	"fmt"
	"strings"
)

// Cartridge load errors. Internal invariant violations panic instead; these
// are the only user-visible failure modes of loading a ROM.
var (
	// ErrUnsupportedCartridge means the header names a bank controller
	// this emulator does not implement.
	ErrUnsupportedCartridge = errors.New("unsupported cartridge type")
	// ErrInvalidROMSize means the ROM length is not a multiple of 16 KiB
	// or exceeds what the bank controller can address.
	ErrInvalidROMSize = errors.New("invalid ROM size")
)

// MBCType identifies the cartridge bank controller family. The set is
// closed; bus writes dispatch on it directly.
type MBCType uint8

const (
	ROMOnlyType MBCType = iota
	MBC1Type
	MBC2Type
	MBC3Type
	MBC5Type
)

func (t MBCType) String() string {
	switch t {
	case ROMOnlyType:
		return "ROM only"
	case MBC1Type:
		return "MBC1"
	case MBC2Type:
		return "MBC2"
	case MBC3Type:
		return "MBC3"
	case MBC5Type:
		return "MBC5"
	}
	return fmt.Sprintf("MBCType(%d)", uint8(t))
}

const (
	titleAddress          = 0x134
	titleLength           = 11
	cgbFlagAddress        = 0x143
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D

	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// Header is the parsed cartridge header at ROM 0x100-0x14F.
type Header struct {
	Title          string
	Type           MBCType
	CGB            bool // CGB flag at 0x143 (0x80 or 0xC0)
	CGBOnly        bool // 0xC0: the game refuses to run on DMG
	HasRAM         bool
	HasBattery     bool
	HasRTC         bool
	ROMBanks       int
	RAMBanks       int
	Version        uint8
	HeaderChecksum uint8
}

// Cartridge is a loaded ROM plus its parsed header.
type Cartridge struct {
	Header Header
	data   []byte
}

// maximum ROM each controller can address, in 16 KiB banks.
func maxROMBanks(t MBCType) int {
	switch t {
	case ROMOnlyType:
		return 2
	case MBC1Type:
		return 128 // 2 MiB
	case MBC2Type:
		return 16 // 256 KiB
	case MBC3Type:
		return 128 // 2 MiB
	case MBC5Type:
		return 512 // 8 MiB
	}
	return 0
}

// NewCartridge parses the header and validates the ROM image.
func NewCartridge(data []byte) (*Cartridge, error) {
	if len(data) < 0x150 || len(data)%romBankSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidROMSize, len(data))
	}

	h := Header{
		Title:          strings.TrimRight(string(data[titleAddress:titleAddress+titleLength]), "\x00"),
		Version:        data[versionNumberAddress],
		HeaderChecksum: data[headerChecksumAddress],
	}

	cgb := data[cgbFlagAddress]
	h.CGB = cgb == 0x80 || cgb == 0xC0
	h.CGBOnly = cgb == 0xC0

	switch data[cartridgeTypeAddress] {
	case 0x00:
		h.Type = ROMOnlyType
	case 0x01:
		h.Type = MBC1Type
	case 0x02:
		h.Type = MBC1Type
		h.HasRAM = true
	case 0x03:
		h.Type = MBC1Type
		h.HasRAM = true
		h.HasBattery = true
	case 0x05:
		h.Type = MBC2Type
	case 0x06:
		h.Type = MBC2Type
		h.HasBattery = true
	case 0x08:
		h.Type = ROMOnlyType
		h.HasRAM = true
	case 0x09:
		h.Type = ROMOnlyType
		h.HasRAM = true
		h.HasBattery = true
	case 0x0F:
		h.Type = MBC3Type
		h.HasRTC = true
		h.HasBattery = true
	case 0x10:
		h.Type = MBC3Type
		h.HasRTC = true
		h.HasRAM = true
		h.HasBattery = true
	case 0x11:
		h.Type = MBC3Type
	case 0x12:
		h.Type = MBC3Type
		h.HasRAM = true
	case 0x13:
		h.Type = MBC3Type
		h.HasRAM = true
		h.HasBattery = true
	case 0x19:
		h.Type = MBC5Type
	case 0x1A:
		h.Type = MBC5Type
		h.HasRAM = true
	case 0x1B:
		h.Type = MBC5Type
		h.HasRAM = true
		h.HasBattery = true
	case 0x1C, 0x1D, 0x1E:
		// rumble variants; the motor itself is not emulated
		h.Type = MBC5Type
		h.HasRAM = data[cartridgeTypeAddress] != 0x1C
		h.HasBattery = data[cartridgeTypeAddress] == 0x1E
	default:
		return nil, fmt.Errorf("%w: header byte 0x%02X", ErrUnsupportedCartridge, data[cartridgeTypeAddress])
	}

	h.ROMBanks = len(data) / romBankSize
	if h.ROMBanks > maxROMBanks(h.Type) {
		return nil, fmt.Errorf("%w: %d banks exceed %s limit", ErrInvalidROMSize, h.ROMBanks, h.Type)
	}

	switch data[ramSizeAddress] {
	case 0x00:
		h.RAMBanks = 0
	case 0x02:
		h.RAMBanks = 1
	case 0x03:
		h.RAMBanks = 4
	case 0x04:
		h.RAMBanks = 16
	case 0x05:
		h.RAMBanks = 8
	}
	if h.Type == MBC2Type {
		// MBC2 carries its own 512x4 bit RAM regardless of the header.
		h.RAMBanks = 0
	}

	return &Cartridge{Header: h, data: data}, nil
}

// Data returns the raw ROM bytes.
func (c *Cartridge) Data() []byte {
	return c.data
}
