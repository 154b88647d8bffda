package audio

import (
	"sync"

	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/bit"
)

// APU generates the four Game Boy voices: pulse A (with frequency sweep),
// pulse B, the programmable wave channel and the LFSR noise channel. It is
// a bundle of counters stepped by CPU cycles; the frame sequencer derives
// the 256 Hz length, 64 Hz envelope and 128 Hz sweep clocks from them.
//
// Samples are mixed into an interleaved stereo float32 buffer at the host
// rate. The buffer is guarded by a mutex because the host audio callback
// drains it from its own thread.
type APU struct {
	enabled bool

	ch      [4]voice
	waveRAM [waveRAMSize]uint8

	// raw register bytes, indexed by address - NR10
	regs [0x30]uint8

	// frame sequencer
	step   int
	cycles int

	// sample synthesis
	sampleRate      int
	cyclesPerSample float64
	sampleAcc       float64

	mu      sync.Mutex
	samples []float32
}

// voice holds the state shared by the four channel types; fields apply
// depending on the channel.
type voice struct {
	enabled    bool
	dacEnabled bool
	left       bool
	right      bool

	length       int
	lengthEnable bool

	volume       uint8
	envelopePace uint8
	envelopeUp   bool
	envelopeTick uint8

	frequency uint16 // 11 bits for tone/wave
	freqTimer int
	dutyStep  uint8
	duty      uint8

	// pulse A sweep
	sweepPeriod uint8
	sweepDown   bool
	sweepShift  uint8
	sweepTimer  uint8
	shadowFreq  uint16
	sweepOn     bool

	// wave
	waveIndex uint8
	waveLevel uint8

	// noise
	lfsr       uint16
	lfsrWidth7 bool
	clockShift uint8
	divisor    uint8
}

// New creates an APU producing samples at the default host rate.
func New() *APU {
	a := &APU{sampleRate: DefaultSampleRate}
	a.cyclesPerSample = float64(CPUFrequency) / float64(a.sampleRate)
	for i := range a.ch {
		a.ch[i].lfsr = 0x7FFF
	}
	return a
}

// Samples drains the pending interleaved stereo samples. Called from the
// host audio thread.
func (a *APU) Samples() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.samples
	a.samples = nil
	return out
}

// Tick advances the APU by CPU cycles.
func (a *APU) Tick(cycles int) {
	if !a.enabled {
		return
	}

	for i := 0; i < cycles; i++ {
		a.stepGenerators()

		a.cycles++
		if a.cycles >= cyclesPerStep {
			a.cycles -= cyclesPerStep
			a.stepSequencer()
		}

		a.sampleAcc++
		if a.sampleAcc >= a.cyclesPerSample {
			a.sampleAcc -= a.cyclesPerSample
			a.emitSample()
		}
	}
}

// stepGenerators advances each channel's oscillator by one cycle.
func (a *APU) stepGenerators() {
	for i := 0; i < 2; i++ {
		ch := &a.ch[i]
		if !ch.enabled {
			continue
		}
		ch.freqTimer--
		if ch.freqTimer <= 0 {
			// tone channels produce 131072/(2048-f) Hz waves; the
			// duty unit steps 8 times per wave period
			ch.freqTimer = int(2048-ch.frequency) * 4
			ch.dutyStep = (ch.dutyStep + 1) & 7
		}
	}

	wave := &a.ch[2]
	if wave.enabled {
		wave.freqTimer--
		if wave.freqTimer <= 0 {
			wave.freqTimer = int(2048-wave.frequency) * 2
			wave.waveIndex = (wave.waveIndex + 1) & 31
		}
	}

	noise := &a.ch[3]
	if noise.enabled {
		noise.freqTimer--
		if noise.freqTimer <= 0 {
			noise.freqTimer = noisePeriod(noise.divisor, noise.clockShift)
			noise.stepLFSR()
		}
	}
}

func noisePeriod(divisor, shift uint8) int {
	d := int(divisor) * 16
	if d == 0 {
		d = 8
	}
	return d << shift
}

func (v *voice) stepLFSR() {
	xor := (v.lfsr ^ (v.lfsr >> 1)) & 1
	v.lfsr = (v.lfsr >> 1) | (xor << 14)
	if v.lfsrWidth7 {
		v.lfsr = (v.lfsr &^ (1 << 6)) | (xor << 6)
	}
}

// stepSequencer advances the 512 Hz frame sequencer: steps 0,2,4,6 clock
// length, 2 and 6 clock sweep, 7 clocks envelopes.
func (a *APU) stepSequencer() {
	if a.step%2 == 0 {
		a.clockLength()
	}
	if a.step == 2 || a.step == 6 {
		a.clockSweep()
	}
	if a.step == 7 {
		a.clockEnvelopes()
	}
	a.step = (a.step + 1) & 7
}

func (a *APU) clockLength() {
	for i := range a.ch {
		ch := &a.ch[i]
		if !ch.lengthEnable || ch.length == 0 {
			continue
		}
		ch.length--
		if ch.length == 0 {
			ch.enabled = false
		}
	}
}

func (a *APU) clockEnvelopes() {
	for _, i := range [...]int{0, 1, 3} {
		ch := &a.ch[i]
		if ch.envelopePace == 0 {
			continue
		}
		ch.envelopeTick++
		if ch.envelopeTick < ch.envelopePace {
			continue
		}
		ch.envelopeTick = 0
		if ch.envelopeUp && ch.volume < 0x0F {
			ch.volume++
		} else if !ch.envelopeUp && ch.volume > 0 {
			ch.volume--
		}
	}
}

func (a *APU) clockSweep() {
	ch := &a.ch[0]
	if !ch.sweepOn {
		return
	}
	if ch.sweepTimer > 0 {
		ch.sweepTimer--
	}
	if ch.sweepTimer != 0 {
		return
	}
	ch.sweepTimer = ch.sweepPeriod
	if ch.sweepTimer == 0 {
		ch.sweepTimer = 8
	}
	if ch.sweepPeriod == 0 {
		return
	}

	next, overflow := ch.sweepTarget()
	if overflow {
		ch.enabled = false
		return
	}
	if ch.sweepShift > 0 {
		ch.shadowFreq = next
		ch.frequency = next
		// a second overflow check runs on the new value
		if _, over := ch.sweepTarget(); over {
			ch.enabled = false
		}
	}
}

func (v *voice) sweepTarget() (uint16, bool) {
	delta := v.shadowFreq >> v.sweepShift
	var next uint16
	if v.sweepDown {
		next = v.shadowFreq - delta
	} else {
		next = v.shadowFreq + delta
	}
	return next, next > 2047
}

// amplitude returns the current raw output of a channel, 0-15.
func (a *APU) amplitude(i int) uint8 {
	ch := &a.ch[i]
	if !ch.enabled || !ch.dacEnabled {
		return 0
	}
	switch i {
	case 0, 1:
		return dutyTable[ch.duty][ch.dutyStep] * ch.volume
	case 2:
		b := a.waveRAM[ch.waveIndex/2]
		sample := b >> 4
		if ch.waveIndex%2 == 1 {
			sample = b & 0x0F
		}
		if ch.waveLevel == 0 {
			return 0
		}
		return sample >> (ch.waveLevel - 1)
	case 3:
		if ch.lfsr&1 == 0 {
			return ch.volume
		}
		return 0
	}
	return 0
}

func (a *APU) emitSample() {
	nr50 := a.regs[addr.NR50-addr.NR10]
	volLeft := float32((nr50>>4)&0x07+1) / 8
	volRight := float32(nr50&0x07+1) / 8

	var left, right float32
	for i := range a.ch {
		amp := float32(a.amplitude(i)) / 15
		if a.ch[i].left {
			left += amp
		}
		if a.ch[i].right {
			right += amp
		}
	}
	left = left / 4 * volLeft
	right = right / 4 * volRight

	a.mu.Lock()
	a.samples = append(a.samples, left, right)
	// keep at most one second buffered if no consumer is attached
	if len(a.samples) > a.sampleRate*2 {
		a.samples = a.samples[len(a.samples)-a.sampleRate*2:]
	}
	a.mu.Unlock()
}

// ReadRegister reads an APU register or wave RAM byte.
func (a *APU) ReadRegister(address uint16) uint8 {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.waveRAM[address-addr.WaveRAMStart]
	}
	if address == addr.NR52 {
		v := uint8(0x70)
		if a.enabled {
			v |= 0x80
		}
		for i := range a.ch {
			if a.ch[i].enabled {
				v |= 1 << i
			}
		}
		return v
	}
	if address < addr.NR10 || address > addr.NR52 {
		return 0xFF
	}
	return a.regs[address-addr.NR10]
}

// WriteRegister writes an APU register or wave RAM byte, updating the
// derived channel state.
func (a *APU) WriteRegister(address uint16, value uint8) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.waveRAM[address-addr.WaveRAMStart] = value
		return
	}
	if address == addr.NR52 {
		wasEnabled := a.enabled
		a.enabled = bit.IsSet(7, value)
		if wasEnabled && !a.enabled {
			// powering off clears every register and voice
			a.regs = [0x30]uint8{}
			for i := range a.ch {
				a.ch[i] = voice{lfsr: 0x7FFF}
			}
		}
		return
	}
	if !a.enabled || address < addr.NR10 || address > addr.NR51 {
		return
	}

	a.regs[address-addr.NR10] = value

	switch address {
	case addr.NR10:
		ch := &a.ch[0]
		ch.sweepPeriod = (value >> 4) & 0x07
		ch.sweepDown = bit.IsSet(3, value)
		ch.sweepShift = value & 0x07
	case addr.NR11, addr.NR21:
		ch := a.toneVoice(address)
		ch.duty = value >> 6
		ch.length = 64 - int(value&0x3F)
	case addr.NR12, addr.NR22, addr.NR42:
		ch := a.envelopeVoice(address)
		ch.dacEnabled = value&0xF8 != 0
		if !ch.dacEnabled {
			ch.enabled = false
		}
	case addr.NR13, addr.NR23, addr.NR33:
		ch := a.freqVoice(address)
		ch.frequency = (ch.frequency & 0x0700) | uint16(value)
	case addr.NR14, addr.NR24, addr.NR34:
		ch := a.freqVoice(address)
		ch.frequency = (ch.frequency & 0x00FF) | (uint16(value&0x07) << 8)
		ch.lengthEnable = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.trigger(a.voiceIndex(address))
		}
	case addr.NR30:
		ch := &a.ch[2]
		ch.dacEnabled = bit.IsSet(7, value)
		if !ch.dacEnabled {
			ch.enabled = false
		}
	case addr.NR31:
		a.ch[2].length = 256 - int(value)
	case addr.NR32:
		a.ch[2].waveLevel = (value >> 5) & 0x03
	case addr.NR41:
		a.ch[3].length = 64 - int(value&0x3F)
	case addr.NR43:
		ch := &a.ch[3]
		ch.clockShift = value >> 4
		ch.lfsrWidth7 = bit.IsSet(3, value)
		ch.divisor = value & 0x07
	case addr.NR44:
		ch := &a.ch[3]
		ch.lengthEnable = bit.IsSet(6, value)
		if bit.IsSet(7, value) {
			a.trigger(3)
		}
	case addr.NR51:
		for i := range a.ch {
			a.ch[i].right = bit.IsSet(uint8(i), value)
			a.ch[i].left = bit.IsSet(uint8(i+4), value)
		}
	}
}

func (a *APU) voiceIndex(address uint16) int {
	switch address {
	case addr.NR14:
		return 0
	case addr.NR24:
		return 1
	case addr.NR34:
		return 2
	}
	return 3
}

func (a *APU) toneVoice(address uint16) *voice {
	if address == addr.NR11 {
		return &a.ch[0]
	}
	return &a.ch[1]
}

func (a *APU) envelopeVoice(address uint16) *voice {
	switch address {
	case addr.NR12:
		return &a.ch[0]
	case addr.NR22:
		return &a.ch[1]
	}
	return &a.ch[3]
}

func (a *APU) freqVoice(address uint16) *voice {
	switch address {
	case addr.NR13, addr.NR14:
		return &a.ch[0]
	case addr.NR23, addr.NR24:
		return &a.ch[1]
	}
	return &a.ch[2]
}

// trigger restarts a voice: NRx4 bit 7. The voice turns on (if its DAC
// allows), reloads length if expired, reloads the envelope and, for pulse
// A, primes the sweep unit.
func (a *APU) trigger(i int) {
	ch := &a.ch[i]
	ch.enabled = ch.dacEnabled

	if ch.length == 0 {
		if i == 2 {
			ch.length = 256
		} else {
			ch.length = 64
		}
	}

	switch i {
	case 0, 1:
		nrx2 := a.regs[addr.NR12-addr.NR10]
		if i == 1 {
			nrx2 = a.regs[addr.NR22-addr.NR10]
		}
		ch.volume = nrx2 >> 4
		ch.envelopeUp = bit.IsSet(3, nrx2)
		ch.envelopePace = nrx2 & 0x07
		ch.envelopeTick = 0
		ch.freqTimer = int(2048-ch.frequency) * 4
		if i == 0 {
			ch.shadowFreq = ch.frequency
			ch.sweepTimer = ch.sweepPeriod
			if ch.sweepTimer == 0 {
				ch.sweepTimer = 8
			}
			ch.sweepOn = ch.sweepPeriod != 0 || ch.sweepShift != 0
			if ch.sweepShift != 0 {
				if _, over := ch.sweepTarget(); over {
					ch.enabled = false
				}
			}
		}
	case 2:
		ch.waveIndex = 0
		ch.freqTimer = int(2048-ch.frequency) * 2
	case 3:
		nr42 := a.regs[addr.NR42-addr.NR10]
		ch.volume = nr42 >> 4
		ch.envelopeUp = bit.IsSet(3, nr42)
		ch.envelopePace = nr42 & 0x07
		ch.envelopeTick = 0
		ch.lfsr = 0x7FFF
		ch.freqTimer = noisePeriod(ch.divisor, ch.clockShift)
	}
}

// Enabled reports the NR52 master enable.
func (a *APU) Enabled() bool {
	return a.enabled
}

// VoiceActive reports whether a voice's NR52 status flag is set.
func (a *APU) VoiceActive(i int) bool {
	return a.ch[i].enabled
}
