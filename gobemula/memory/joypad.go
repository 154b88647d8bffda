package memory

import (
	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/bit"
)

// JoypadKey is one of the eight buttons of the Game Boy.
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// joypadRead builds the P1 view: bits 6-7 are wired high, bits 4-5 are the
// selection written by the game, and the low nibble is the selected button
// group (0 = pressed).
//
// If bit 4 is low the d-pad is selected, if bit 5 is low the buttons are;
// with both low hardware ANDs the groups, with neither the low nibble
// floats high.
func (m *MMU) joypadRead() uint8 {
	p1 := m.io[addr.P1-0xFF00]
	result := uint8(0xC0) | (p1 & 0x30)

	selectDpad := !bit.IsSet(4, p1)
	selectButtons := !bit.IsSet(5, p1)

	switch {
	case selectButtons && !selectDpad:
		result |= m.joypadButtons & 0x0F
	case selectDpad && !selectButtons:
		result |= m.joypadDpad & 0x0F
	case selectButtons && selectDpad:
		result |= m.joypadButtons & m.joypadDpad & 0x0F
	default:
		result |= 0x0F
	}

	return result
}

// selectedNibble is the low nibble the game currently observes through P1.
func (m *MMU) selectedNibble() uint8 {
	return m.joypadRead() & 0x0F
}

// HandleKeyPress marks a button as held. The Joypad interrupt is requested
// only when a bit of the selected nibble falls from 1 to 0.
func (m *MMU) HandleKeyPress(key JoypadKey) {
	before := m.selectedNibble()

	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Reset(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Reset(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Reset(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Reset(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Reset(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Reset(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Reset(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Reset(3, m.joypadButtons)
	}

	after := m.selectedNibble()
	if before&^after != 0 {
		m.RequestInterrupt(addr.JoypadInterrupt)
	}
}

// HandleKeyRelease marks a button as released. Releases never interrupt.
func (m *MMU) HandleKeyRelease(key JoypadKey) {
	switch key {
	case JoypadRight:
		m.joypadDpad = bit.Set(0, m.joypadDpad)
	case JoypadLeft:
		m.joypadDpad = bit.Set(1, m.joypadDpad)
	case JoypadUp:
		m.joypadDpad = bit.Set(2, m.joypadDpad)
	case JoypadDown:
		m.joypadDpad = bit.Set(3, m.joypadDpad)
	case JoypadA:
		m.joypadButtons = bit.Set(0, m.joypadButtons)
	case JoypadB:
		m.joypadButtons = bit.Set(1, m.joypadButtons)
	case JoypadSelect:
		m.joypadButtons = bit.Set(2, m.joypadButtons)
	case JoypadStart:
		m.joypadButtons = bit.Set(3, m.joypadButtons)
	}
}
