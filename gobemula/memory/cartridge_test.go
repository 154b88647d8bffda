package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCartridgeParsesHeader(t *testing.T) {
	rom := testROM(4, 0x13, 0x03) // MBC3+RAM+battery
	copy(rom[titleAddress:], "TESTTITLE")
	rom[cgbFlagAddress] = 0x80

	cart, err := NewCartridge(rom)
	require.NoError(t, err)

	h := cart.Header
	assert.Equal(t, "TESTTITLE", h.Title[:9])
	assert.Equal(t, MBC3Type, h.Type)
	assert.True(t, h.HasRAM)
	assert.True(t, h.HasBattery)
	assert.True(t, h.CGB)
	assert.False(t, h.CGBOnly)
	assert.Equal(t, 4, h.ROMBanks)
	assert.Equal(t, 4, h.RAMBanks)
}

func TestNewCartridgeUnsupportedType(t *testing.T) {
	rom := testROM(2, 0xFC, 0x00) // pocket camera
	_, err := NewCartridge(rom)
	assert.ErrorIs(t, err, ErrUnsupportedCartridge)
}

func TestNewCartridgeInvalidSize(t *testing.T) {
	t.Run("not a bank multiple", func(t *testing.T) {
		_, err := NewCartridge(make([]uint8, 0x4000+1))
		assert.ErrorIs(t, err, ErrInvalidROMSize)
	})

	t.Run("too small for a header", func(t *testing.T) {
		_, err := NewCartridge(make([]uint8, 0x100))
		assert.ErrorIs(t, err, ErrInvalidROMSize)
	})

	t.Run("exceeds controller limit", func(t *testing.T) {
		rom := testROM(32, 0x05, 0x00) // MBC2 tops out at 16 banks
		_, err := NewCartridge(rom)
		assert.ErrorIs(t, err, ErrInvalidROMSize)
	})
}

func TestMBCTypeString(t *testing.T) {
	assert.Equal(t, "MBC1", MBC1Type.String())
	assert.Equal(t, "ROM only", ROMOnlyType.String())
}
