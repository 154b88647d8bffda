package memory

import (
	"testing"
	"time"
)

// testROM builds a ROM image where every byte holds its bank number.
func testROM(banks int, cartType, ramCode uint8) []uint8 {
	rom := make([]uint8, banks*romBankSize)
	for i := range rom {
		rom[i] = uint8(i / romBankSize)
	}
	rom[cartridgeTypeAddress] = cartType
	rom[ramSizeAddress] = ramCode
	return rom
}

func TestMBC1(t *testing.T) {
	t.Run("bank 0 is fixed", func(t *testing.T) {
		mbc := newMBC1(testROM(4, 0x01, 0x00), 0)
		for _, a := range []uint16{0x0000, 0x2000, 0x3FFF} {
			if got := mbc.Read(a); got != 0 {
				t.Errorf("Read(0x%04X) = %d; want 0", a, got)
			}
		}
	})

	t.Run("bank switching", func(t *testing.T) {
		// 512 KiB cartridge, as in the documented scenario: writing
		// 0x03 maps ROM offset 0x0C000 at 0x4000.
		mbc := newMBC1(testROM(32, 0x01, 0x00), 0)
		mbc.Write(0x2000, 0x03)
		if got := mbc.Read(0x4000); got != 3 {
			t.Errorf("bank 3: Read(0x4000) = %d; want 3", got)
		}
		if mbc.romBank != 3 {
			t.Errorf("romBank = %d; want 3", mbc.romBank)
		}
	})

	t.Run("bank 0 aliases remap one up", func(t *testing.T) {
		mbc := newMBC1(testROM(128, 0x01, 0x00), 0)
		for _, tt := range []struct {
			low, high uint8
			want      uint16
		}{
			{0x00, 0, 0x01},
			{0x00, 1, 0x21},
			{0x00, 2, 0x41},
			{0x00, 3, 0x61},
			{0x01, 0, 0x01},
		} {
			mbc.Write(0x6000, 0)
			mbc.Write(0x2000, tt.low)
			mbc.Write(0x4000, tt.high)
			if mbc.romBank != tt.want {
				t.Errorf("low=0x%02X high=%d: romBank = 0x%02X; want 0x%02X",
					tt.low, tt.high, mbc.romBank, tt.want)
			}
		}
	})

	t.Run("upper bits use a two bit mask", func(t *testing.T) {
		mbc := newMBC1(testROM(128, 0x01, 0x00), 0)
		mbc.Write(0x2000, 0x01)
		mbc.Write(0x4000, 0x07) // only the low 2 bits count
		if mbc.romBank != (0x03<<5)|0x01 {
			t.Errorf("romBank = 0x%02X; want 0x%02X", mbc.romBank, (0x03<<5)|0x01)
		}
	})

	t.Run("ram enable and banking", func(t *testing.T) {
		mbc := newMBC1(testROM(4, 0x03, 0x03), 4)

		if got := mbc.Read(0xA000); got != 0xFF {
			t.Errorf("disabled RAM read = 0x%02X; want 0xFF", got)
		}

		mbc.Write(0x0000, 0x0A)
		mbc.Write(0x6000, 0x01) // RAM banking mode
		for bank := uint8(0); bank < 4; bank++ {
			mbc.Write(0x4000, bank)
			mbc.Write(0xA000, 0x40+bank)
		}
		for bank := uint8(0); bank < 4; bank++ {
			mbc.Write(0x4000, bank)
			if got := mbc.Read(0xA000); got != 0x40+bank {
				t.Errorf("bank %d: got 0x%02X; want 0x%02X", bank, got, 0x40+bank)
			}
		}

		mbc.Write(0x0000, 0x00)
		if got := mbc.Read(0xA000); got != 0xFF {
			t.Errorf("re-disabled RAM read = 0x%02X; want 0xFF", got)
		}
	})
}

func TestMBC2(t *testing.T) {
	mbc := newMBC2(testROM(16, 0x06, 0x00))

	t.Run("address bit 8 discriminates control writes", func(t *testing.T) {
		// bit 8 set: ROM bank select, RAM enable unchanged
		mbc.Write(0x0100, 0x05)
		if mbc.romBank != 5 {
			t.Errorf("romBank = %d; want 5", mbc.romBank)
		}
		if mbc.ramEnabled {
			t.Error("RAM should still be disabled")
		}

		// bit 8 clear: RAM enable, bank unchanged
		mbc.Write(0x0000, 0x0A)
		if !mbc.ramEnabled {
			t.Error("RAM should be enabled")
		}
		if mbc.romBank != 5 {
			t.Errorf("romBank = %d; want 5", mbc.romBank)
		}
	})

	t.Run("bank 0 remaps to 1", func(t *testing.T) {
		mbc.Write(0x0100, 0x00)
		if mbc.romBank != 1 {
			t.Errorf("romBank = %d; want 1", mbc.romBank)
		}
	})

	t.Run("ram stores nibbles", func(t *testing.T) {
		mbc.Write(0x0000, 0x0A)
		mbc.Write(0xA000, 0xF7)
		if got := mbc.Read(0xA000); got != 0xF7 {
			t.Errorf("Read = 0x%02X; want 0xF7 (low nibble kept, high wired)", got)
		}
		// the 512 nibbles echo through the region
		if got := mbc.Read(0xA200); got != 0xF7 {
			t.Errorf("echoed Read = 0x%02X; want 0xF7", got)
		}
	})
}

func TestMBC3(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mbc := newMBC3(testROM(64, 0x10, 0x03), 4, true, clock)

	t.Run("seven bit rom bank", func(t *testing.T) {
		mbc.Write(0x2000, 0x3F)
		if got := mbc.Read(0x4000); got != 0x3F {
			t.Errorf("Read(0x4000) = 0x%02X; want 0x3F", got)
		}
		mbc.Write(0x2000, 0x00)
		if mbc.romBank != 1 {
			t.Errorf("romBank = %d; want 1", mbc.romBank)
		}
	})

	t.Run("rtc registers at selector 0x08-0x0C", func(t *testing.T) {
		mbc.Write(0x0000, 0x0A)

		now = now.Add(1*time.Hour + 2*time.Minute + 3*time.Second)
		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01) // latch

		mbc.Write(0x4000, 0x08)
		if got := mbc.Read(0xA000); got != 3 {
			t.Errorf("seconds = %d; want 3", got)
		}
		mbc.Write(0x4000, 0x09)
		if got := mbc.Read(0xA000); got != 2 {
			t.Errorf("minutes = %d; want 2", got)
		}
		mbc.Write(0x4000, 0x0A)
		if got := mbc.Read(0xA000); got != 1 {
			t.Errorf("hours = %d; want 1", got)
		}
	})

	t.Run("ram banks still reachable", func(t *testing.T) {
		mbc.Write(0x4000, 0x02)
		mbc.Write(0xA123, 0x99)
		if got := mbc.Read(0xA123); got != 0x99 {
			t.Errorf("Read = 0x%02X; want 0x99", got)
		}
	})
}

func TestMBC5(t *testing.T) {
	mbc := newMBC5(testROM(512, 0x19, 0x00), 0)

	t.Run("nine bit rom bank", func(t *testing.T) {
		mbc.Write(0x2000, 0x34)
		mbc.Write(0x3000, 0x01)
		if mbc.romBank != 0x134 {
			t.Errorf("romBank = 0x%03X; want 0x134", mbc.romBank)
		}
		if got := mbc.Read(0x4000); got != uint8(0x134&0xFF) {
			t.Errorf("Read(0x4000) = 0x%02X; want 0x%02X", got, 0x134&0xFF)
		}
	})

	t.Run("bank 0 is selectable", func(t *testing.T) {
		mbc.Write(0x2000, 0x00)
		mbc.Write(0x3000, 0x00)
		if mbc.romBank != 0 {
			t.Errorf("romBank = %d; want 0", mbc.romBank)
		}
		if got := mbc.Read(0x4000); got != 0 {
			t.Errorf("Read(0x4000) = %d; want 0 (bank 0 contents)", got)
		}
	})
}

func TestBatteryRoundTrip(t *testing.T) {
	mbc := newMBC1(testROM(4, 0x03, 0x03), 4)
	mbc.Write(0x0000, 0x0A)
	mbc.Write(0xA000, 0x12)
	mbc.Write(0xA001, 0x34)

	saved := make([]uint8, len(mbc.RAM()))
	copy(saved, mbc.RAM())

	restored := newMBC1(testROM(4, 0x03, 0x03), 4)
	restored.LoadRAM(saved)
	restored.Write(0x0000, 0x0A)
	if restored.Read(0xA000) != 0x12 || restored.Read(0xA001) != 0x34 {
		t.Error("battery restore did not preserve external RAM")
	}
}
