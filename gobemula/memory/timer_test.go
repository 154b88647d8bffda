package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gobemu/gobemula/gobemula/addr"
)

func TestDIVIncrementsEvery256Cycles(t *testing.T) {
	var timer Timer

	timer.Tick(255)
	assert.Equal(t, uint8(0), timer.Read(addr.DIV))
	timer.Tick(1)
	assert.Equal(t, uint8(1), timer.Read(addr.DIV))
	timer.Tick(256)
	assert.Equal(t, uint8(2), timer.Read(addr.DIV))
}

func TestDIVWriteResetsCounter(t *testing.T) {
	var timer Timer

	timer.Tick(0x1234)
	assert.NotZero(t, timer.Read(addr.DIV))
	timer.Write(addr.DIV, 0xAB) // value is irrelevant
	assert.Equal(t, uint8(0), timer.Read(addr.DIV))
	assert.Equal(t, uint16(0), timer.Counter())
}

func TestTIMAFrequencies(t *testing.T) {
	// TAC low bits select a counter tap; TIMA increments each time the
	// tap falls, i.e. once per 2^(tap+1) cycles.
	tests := []struct {
		tac    uint8
		period int
	}{
		{0x04, 1024}, // 4096 Hz
		{0x05, 16},   // 262144 Hz
		{0x06, 64},   // 65536 Hz
		{0x07, 256},  // 16384 Hz
	}

	for _, tt := range tests {
		var timer Timer
		timer.Write(addr.TAC, tt.tac)

		timer.Tick(tt.period * 10)
		assert.Equal(t, uint8(10), timer.Read(addr.TIMA), "TAC=0x%02X", tt.tac)
	}
}

func TestTIMADisabled(t *testing.T) {
	var timer Timer
	timer.Write(addr.TAC, 0x00)
	timer.Tick(10000)
	assert.Equal(t, uint8(0), timer.Read(addr.TIMA))
}

func TestTIMAOverflowReloadsAfterFourCycles(t *testing.T) {
	var timer Timer
	fired := 0
	timer.InterruptHandler = func() { fired++ }

	timer.Write(addr.TMA, 0x42)
	timer.Write(addr.TAC, 0x05) // fastest: every 16 cycles
	timer.Write(addr.TIMA, 0xFF)

	// run until the overflow happens
	for timer.Read(addr.TIMA) != 0 {
		timer.Tick(1)
	}
	assert.Zero(t, fired, "interrupt must wait for the reload delay")

	timer.Tick(3)
	assert.Equal(t, uint8(0), timer.Read(addr.TIMA))
	assert.Zero(t, fired)

	timer.Tick(1)
	assert.Equal(t, uint8(0x42), timer.Read(addr.TIMA), "TMA reloaded")
	assert.Equal(t, 1, fired, "interrupt after exactly 4 cycles")
}

func TestTIMAWriteDuringOverflowCancelsReload(t *testing.T) {
	var timer Timer
	fired := 0
	timer.InterruptHandler = func() { fired++ }

	timer.Write(addr.TMA, 0x42)
	timer.Write(addr.TAC, 0x05)
	timer.Write(addr.TIMA, 0xFF)
	for timer.Read(addr.TIMA) != 0 {
		timer.Tick(1)
	}

	timer.Write(addr.TIMA, 0x77)
	timer.Tick(8)
	assert.Equal(t, uint8(0x77), timer.Read(addr.TIMA))
	assert.Zero(t, fired)
}

func TestDIVWriteCanClockTIMA(t *testing.T) {
	var timer Timer
	timer.Write(addr.TAC, 0x05) // tap bit 3

	// bring the counter to a state where the tap bit is high
	timer.Tick(8)
	assert.True(t, timer.Counter()&(1<<3) != 0)

	before := timer.Read(addr.TIMA)
	timer.Write(addr.DIV, 0x00)
	assert.Equal(t, before+1, timer.Read(addr.TIMA), "reset with tap high spuriously clocks TIMA")
}

func TestTACReadsUpperBitsHigh(t *testing.T) {
	var timer Timer
	timer.Write(addr.TAC, 0x05)
	assert.Equal(t, uint8(0xF8|0x05), timer.Read(addr.TAC))
}
