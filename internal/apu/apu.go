// Package apu implements the Console's four-channel audio unit: two
// pulse channels (the first with frequency sweep), one wave-table
// channel, and one LFSR noise channel, mixed to a stereo 44.1 kHz
// sample stream.
//
// Each channel is its own struct; register access is split into
// CPURead/CPUWrite keyed on address. The frame sequencer ("APU-DIV"
// here) is clocked from falling edges of bit 4 of the Timer's DIV
// register rather than a free cycle-counted approximation, so it
// stays phase-locked to divider writes.
package apu

import "github.com/tmby-console/core/internal/regs"

const cpuHz = 4194304

var dutyTable = [4]byte{0b0000_0001, 0b0000_0011, 0b0000_1111, 0b1111_1100}

var noiseDivisorTable = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// APU is the four-channel audio unit.
type APU struct {
	enabled bool

	nr50 byte // FF24 master volume + VIN pan
	nr51 byte // FF25 panning

	apuDivCounter byte // 3-bit APU-DIV, advanced on Timer bit-4 falling edges
	doubleSpeed   bool

	ch1 pulseChannel // has frequency sweep
	ch2 pulseChannel
	ch3 waveChannel
	ch4 noiseChannel

	sampleRate      int
	cyclesPerSample float64
	cycleAccum      float64
	onSample        func(left, right float32)
}

// New constructs an APU emitting samples at sampleRate Hz via onSample.
func New(sampleRate int, onSample func(left, right float32)) *APU {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	a := &APU{
		enabled:         true,
		nr50:            0x77,
		nr51:            0xF3,
		ch1:             pulseChannel{hasSweep: true},
		sampleRate:      sampleRate,
		cyclesPerSample: float64(cpuHz) / float64(sampleRate),
		onSample:        onSample,
	}
	return a
}

// SetDoubleSpeed selects whether APU-DIV counts bit 4 or bit 5 falling
// edges of the divider.
func (a *APU) SetDoubleSpeed(on bool) { a.doubleSpeed = on }

// SetSampleCallback replaces the stereo sample sink.
func (a *APU) SetSampleCallback(fn func(left, right float32)) { a.onSample = fn }

type pulseChannel struct {
	enabled    bool
	dacEnabled bool

	duty      byte
	dutyIndex byte

	lengthTimer   int
	lengthEnabled bool

	initialVolume byte
	envelopeUp    bool
	envelopePeriod byte
	currentVolume  byte
	envelopeTimer  byte

	period        uint16
	periodDivider int

	hasSweep      bool
	sweepPeriod   byte
	sweepNegate   bool
	sweepShift    byte
	sweepTimer    byte
	sweepEnabled  bool
	shadowPeriod  uint16
}

func (c *pulseChannel) dacLevel() byte {
	if !c.enabled || !c.dacEnabled {
		return 0
	}
	bit := (dutyTable[c.duty] >> (7 - c.dutyIndex)) & 1
	if bit == 1 {
		return c.currentVolume
	}
	return 0
}

func (c *pulseChannel) tickPeriod() {
	c.periodDivider--
	if c.periodDivider <= 0 {
		c.periodDivider = int(2048-c.period) * 4
		c.dutyIndex = (c.dutyIndex + 1) & 7
	}
}

func (c *pulseChannel) tickLength() {
	if !c.lengthEnabled || c.lengthTimer <= 0 {
		return
	}
	c.lengthTimer--
	if c.lengthTimer == 0 {
		c.enabled = false
	}
}

func (c *pulseChannel) tickEnvelope() {
	if c.envelopePeriod == 0 {
		return
	}
	if c.envelopeTimer > 0 {
		c.envelopeTimer--
	}
	if c.envelopeTimer == 0 {
		c.envelopeTimer = c.envelopePeriod
		if c.envelopeUp && c.currentVolume < 15 {
			c.currentVolume++
		} else if !c.envelopeUp && c.currentVolume > 0 {
			c.currentVolume--
		}
	}
}

func (c *pulseChannel) trigger() {
	if !c.dacEnabled {
		return
	}
	c.enabled = true
	if c.lengthTimer == 0 {
		c.lengthTimer = 64
	}
	c.periodDivider = int(2048-c.period) * 4
	c.currentVolume = c.initialVolume
	c.envelopeTimer = c.envelopePeriod
	if c.hasSweep {
		c.shadowPeriod = c.period
		per := c.sweepPeriod
		c.sweepTimer = per
		c.sweepEnabled = c.sweepPeriod != 0 || c.sweepShift != 0
		if c.sweepShift != 0 {
			if _, overflow := c.computeSweep(); overflow {
				c.enabled = false
			}
		}
	}
}

// computeSweep derives the next period from the shadow period, one
// add-or-subtract-and-shift step.
func (c *pulseChannel) computeSweep() (newPeriod uint16, overflow bool) {
	delta := c.shadowPeriod >> c.sweepShift
	var next int
	if c.sweepNegate {
		next = int(c.shadowPeriod) - int(delta)
	} else {
		next = int(c.shadowPeriod) + int(delta)
	}
	if next > 2047 || next < 0 {
		return 0, true
	}
	return uint16(next), false
}

func (c *pulseChannel) tickSweep() {
	if !c.hasSweep || !c.sweepEnabled {
		return
	}
	if c.sweepTimer > 0 {
		c.sweepTimer--
	}
	if c.sweepTimer != 0 {
		return
	}
	per := c.sweepPeriod
	if per == 0 {
		per = 8
	}
	c.sweepTimer = per
	if c.sweepPeriod == 0 {
		return
	}
	next, overflow := c.computeSweep()
	if overflow {
		c.enabled = false
		return
	}
	if c.sweepShift != 0 {
		c.shadowPeriod = next
		c.period = next
		if _, overflow := c.computeSweep(); overflow {
			c.enabled = false
		}
	}
}

type waveChannel struct {
	enabled       bool
	dacEnabled    bool
	lengthTimer   int
	lengthEnabled bool
	outputLevel   byte // 0=mute,1=100%,2=50%,3=25%
	period        uint16
	periodDivider int
	sampleIndex   byte
	ram           [16]byte
}

var waveShiftTable = [4]byte{4, 0, 1, 2}

func (c *waveChannel) currentSample() byte {
	b := c.ram[c.sampleIndex/2]
	if c.sampleIndex%2 == 0 {
		return b >> 4
	}
	return b & 0x0F
}

func (c *waveChannel) dacLevel() byte {
	if !c.enabled || !c.dacEnabled {
		return 0
	}
	return c.currentSample() >> waveShiftTable[c.outputLevel&3]
}

// tickPeriod advances the wave divider one master cycle; the divider
// ticks every 2 cycles, so the reload is twice the period remainder.
func (c *waveChannel) tickPeriod() {
	c.periodDivider--
	if c.periodDivider <= 0 {
		c.periodDivider = int(2048-c.period) * 2
		c.sampleIndex = (c.sampleIndex + 1) & 31
	}
}

func (c *waveChannel) tickLength() {
	if !c.lengthEnabled || c.lengthTimer <= 0 {
		return
	}
	c.lengthTimer--
	if c.lengthTimer == 0 {
		c.enabled = false
	}
}

func (c *waveChannel) trigger() {
	if !c.dacEnabled {
		return
	}
	c.enabled = true
	if c.lengthTimer == 0 {
		c.lengthTimer = 256
	}
	c.periodDivider = int(2048-c.period) * 2
	c.sampleIndex = 0
}

type noiseChannel struct {
	enabled    bool
	dacEnabled bool

	lengthTimer   int
	lengthEnabled bool

	initialVolume  byte
	envelopeUp     bool
	envelopePeriod byte
	currentVolume  byte
	envelopeTimer  byte

	shift       byte
	width7      bool
	divisorCode byte

	periodDivider int
	lfsr          uint16
}

func (c *noiseChannel) dacLevel() byte {
	if !c.enabled || !c.dacEnabled {
		return 0
	}
	if c.lfsr&1 == 0 {
		return c.currentVolume
	}
	return 0
}

func (c *noiseChannel) period() int {
	return noiseDivisorTable[c.divisorCode&7] << c.shift
}

func (c *noiseChannel) tick() {
	c.periodDivider--
	if c.periodDivider > 0 {
		return
	}
	c.periodDivider = c.period()
	x := (c.lfsr & 1) ^ ((c.lfsr >> 1) & 1)
	c.lfsr >>= 1
	c.lfsr |= x << 14
	if c.width7 {
		c.lfsr = (c.lfsr &^ (1 << 6)) | (x << 6)
	}
}

func (c *noiseChannel) tickLength() {
	if !c.lengthEnabled || c.lengthTimer <= 0 {
		return
	}
	c.lengthTimer--
	if c.lengthTimer == 0 {
		c.enabled = false
	}
}

func (c *noiseChannel) tickEnvelope() {
	if c.envelopePeriod == 0 {
		return
	}
	if c.envelopeTimer > 0 {
		c.envelopeTimer--
	}
	if c.envelopeTimer == 0 {
		c.envelopeTimer = c.envelopePeriod
		if c.envelopeUp && c.currentVolume < 15 {
			c.currentVolume++
		} else if !c.envelopeUp && c.currentVolume > 0 {
			c.currentVolume--
		}
	}
}

func (c *noiseChannel) trigger() {
	if !c.dacEnabled {
		return
	}
	c.enabled = true
	if c.lengthTimer == 0 {
		c.lengthTimer = 64
	}
	c.currentVolume = c.initialVolume
	c.envelopeTimer = c.envelopePeriod
	c.lfsr = 0x7FFF
	c.periodDivider = c.period()
}

// Tick advances the APU by one bus cycle, which spans four master
// cycles; the channel period dividers count master cycles.
// divFallingEdge is the Timer's DivBit4FallingEdge result for this
// same bus cycle, which clocks APU-DIV.
func (a *APU) Tick(divFallingEdge bool) {
	if !a.enabled {
		return
	}

	for i := 0; i < 4; i++ {
		if a.ch1.enabled {
			a.ch1.tickPeriod()
		}
		if a.ch2.enabled {
			a.ch2.tickPeriod()
		}
		if a.ch3.enabled {
			a.ch3.tickPeriod()
		}
		if a.ch4.enabled {
			a.ch4.tick()
		}
	}

	if divFallingEdge {
		a.apuDivCounter = (a.apuDivCounter + 1) & 7
		step := a.apuDivCounter
		if step%2 == 0 { // 256 Hz: length counters
			a.ch1.tickLength()
			a.ch2.tickLength()
			a.ch3.tickLength()
			a.ch4.tickLength()
		}
		if step == 7 { // 64 Hz: envelope sweep
			a.ch1.tickEnvelope()
			a.ch2.tickEnvelope()
			a.ch4.tickEnvelope()
		}
		if step == 2 || step == 6 { // 128 Hz: frequency sweep (pulse 1 only)
			a.ch1.tickSweep()
		}
	}

	a.cycleAccum += 4
	if a.cycleAccum >= a.cyclesPerSample {
		a.cycleAccum -= a.cyclesPerSample
		a.emitSample()
	}
}

func dacToAnalog(level byte) float32 {
	return (float32(level) / 7.5) - 1.0
}

func (a *APU) emitSample() {
	if a.onSample == nil {
		return
	}
	c1 := dacToAnalog(a.ch1.dacLevel())
	c2 := dacToAnalog(a.ch2.dacLevel())
	c3 := dacToAnalog(a.ch3.dacLevel())
	c4 := dacToAnalog(a.ch4.dacLevel())

	var left, right float32
	if a.nr51&0x10 != 0 {
		left += c1
	}
	if a.nr51&0x20 != 0 {
		left += c2
	}
	if a.nr51&0x40 != 0 {
		left += c3
	}
	if a.nr51&0x80 != 0 {
		left += c4
	}
	if a.nr51&0x01 != 0 {
		right += c1
	}
	if a.nr51&0x02 != 0 {
		right += c2
	}
	if a.nr51&0x04 != 0 {
		right += c3
	}
	if a.nr51&0x08 != 0 {
		right += c4
	}

	leftVol := float32((a.nr50>>4)&7+1) / 8
	rightVol := float32((a.nr50&7)+1) / 8
	a.onSample(left*leftVol/4, right*rightVol/4)
}

// PCM12 exposes the live 4-bit DAC outputs of channels 1 (low nibble)
// and 2 (high nibble).
func (a *APU) PCM12() byte {
	return (a.ch2.dacLevel() << 4) | a.ch1.dacLevel()
}

// PCM34 is PCM12's counterpart for channels 3/4.
func (a *APU) PCM34() byte {
	return (a.ch4.dacLevel() << 4) | a.ch3.dacLevel()
}

func boolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// channelEnableFlags builds the low 4 bits of NR52 on read.
func (a *APU) channelEnableFlags() byte {
	var v byte
	if a.ch1.enabled {
		v |= 1 << 0
	}
	if a.ch2.enabled {
		v |= 1 << 1
	}
	if a.ch3.enabled {
		v |= 1 << 2
	}
	if a.ch4.enabled {
		v |= 1 << 3
	}
	return v
}

// CPURead reads an APU hardware-port register or Wave RAM byte.
func (a *APU) CPURead(addr uint32) byte {
	if !a.enabled && addr != regNR52 && !isWaveRAM(addr) {
		return 0x00
	}
	switch addr {
	case regNR10:
		n := (a.ch1.sweepPeriod & 7) << 4
		if a.ch1.sweepNegate {
			n |= 1 << 3
		}
		return 0x80 | n | (a.ch1.sweepShift & 7)
	case regNR11:
		return (a.ch1.duty << 6) | 0x3F
	case regNR12:
		return a.envReadback(a.ch1.initialVolume, a.ch1.envelopeUp, a.ch1.envelopePeriod)
	case regNR13:
		return 0xFF
	case regNR14:
		return 0xBF | (boolToByte(a.ch1.lengthEnabled) << 6)
	case regNR21:
		return (a.ch2.duty << 6) | 0x3F
	case regNR22:
		return a.envReadback(a.ch2.initialVolume, a.ch2.envelopeUp, a.ch2.envelopePeriod)
	case regNR23:
		return 0xFF
	case regNR24:
		return 0xBF | (boolToByte(a.ch2.lengthEnabled) << 6)
	case regNR30:
		return 0x7F | (boolToByte(a.ch3.dacEnabled) << 7)
	case regNR31:
		return 0xFF
	case regNR32:
		return 0x9F | (a.ch3.outputLevel << 5)
	case regNR33:
		return 0xFF
	case regNR34:
		return 0xBF | (boolToByte(a.ch3.lengthEnabled) << 6)
	case regNR41:
		return 0xFF
	case regNR42:
		return a.envReadback(a.ch4.initialVolume, a.ch4.envelopeUp, a.ch4.envelopePeriod)
	case regNR43:
		return (a.ch4.shift << 4) | (boolToByte(a.ch4.width7) << 3) | (a.ch4.divisorCode & 7)
	case regNR44:
		return 0xBF | (boolToByte(a.ch4.lengthEnabled) << 6)
	case regNR50:
		return a.nr50
	case regNR51:
		return a.nr51
	case regNR52:
		return 0x70 | (boolToByte(a.enabled) << 7) | a.channelEnableFlags()
	case regPCM12:
		return a.PCM12()
	case regPCM34:
		return a.PCM34()
	default:
		if isWaveRAM(addr) {
			if a.ch3.enabled {
				return a.ch3.ram[a.ch3.sampleIndex/2]
			}
			return a.ch3.ram[addr-waveRAMBase]
		}
		return 0xFF
	}
}

func (a *APU) envReadback(initial byte, up bool, period byte) byte {
	return (initial << 4) | (boolToByte(up) << 3) | (period & 7)
}

// CPUWrite writes an APU hardware-port register or Wave RAM byte.
func (a *APU) CPUWrite(addr uint32, v byte) {
	if !a.enabled && addr != regNR52 && !isWaveRAM(addr) {
		return
	}
	switch addr {
	case regNR10:
		a.ch1.sweepPeriod = (v >> 4) & 7
		a.ch1.sweepNegate = v&(1<<3) != 0
		a.ch1.sweepShift = v & 7
	case regNR11:
		a.ch1.duty = (v >> 6) & 3
		a.ch1.lengthTimer = 64 - int(v&0x3F)
	case regNR12:
		a.writeEnvelope(&a.ch1.initialVolume, &a.ch1.envelopeUp, &a.ch1.envelopePeriod, v)
		a.ch1.dacEnabled = v&0xF8 != 0
		if !a.ch1.dacEnabled {
			a.ch1.enabled = false
		}
	case regNR13:
		a.ch1.period = (a.ch1.period & 0x0700) | uint16(v)
	case regNR14:
		a.ch1.lengthEnabled = v&(1<<6) != 0
		a.ch1.period = (a.ch1.period & 0x00FF) | (uint16(v&7) << 8)
		if v&0x80 != 0 {
			a.ch1.trigger()
		}
	case regNR21:
		a.ch2.duty = (v >> 6) & 3
		a.ch2.lengthTimer = 64 - int(v&0x3F)
	case regNR22:
		a.writeEnvelope(&a.ch2.initialVolume, &a.ch2.envelopeUp, &a.ch2.envelopePeriod, v)
		a.ch2.dacEnabled = v&0xF8 != 0
		if !a.ch2.dacEnabled {
			a.ch2.enabled = false
		}
	case regNR23:
		a.ch2.period = (a.ch2.period & 0x0700) | uint16(v)
	case regNR24:
		a.ch2.lengthEnabled = v&(1<<6) != 0
		a.ch2.period = (a.ch2.period & 0x00FF) | (uint16(v&7) << 8)
		if v&0x80 != 0 {
			a.ch2.trigger()
		}
	case regNR30:
		a.ch3.dacEnabled = v&0x80 != 0
		if !a.ch3.dacEnabled {
			a.ch3.enabled = false
		}
	case regNR31:
		a.ch3.lengthTimer = 256 - int(v)
	case regNR32:
		a.ch3.outputLevel = (v >> 5) & 3
	case regNR33:
		a.ch3.period = (a.ch3.period & 0x0700) | uint16(v)
	case regNR34:
		a.ch3.lengthEnabled = v&(1<<6) != 0
		a.ch3.period = (a.ch3.period & 0x00FF) | (uint16(v&7) << 8)
		if v&0x80 != 0 {
			a.ch3.trigger()
		}
	case regNR41:
		a.ch4.lengthTimer = 64 - int(v&0x3F)
	case regNR42:
		a.writeEnvelope(&a.ch4.initialVolume, &a.ch4.envelopeUp, &a.ch4.envelopePeriod, v)
		a.ch4.dacEnabled = v&0xF8 != 0
		if !a.ch4.dacEnabled {
			a.ch4.enabled = false
		}
	case regNR43:
		a.ch4.shift = (v >> 4) & 0x0F
		a.ch4.width7 = v&(1<<3) != 0
		a.ch4.divisorCode = v & 7
	case regNR44:
		a.ch4.lengthEnabled = v&(1<<6) != 0
		if v&0x80 != 0 {
			a.ch4.trigger()
		}
	case regNR50:
		a.nr50 = v
	case regNR51:
		a.nr51 = v
	case regNR52:
		on := v&0x80 != 0
		if on && !a.enabled {
			a.enabled = true
		} else if !on && a.enabled {
			a.powerOff()
		}
	default:
		if isWaveRAM(addr) {
			if a.ch3.enabled {
				a.ch3.ram[a.ch3.sampleIndex/2] = v
			} else {
				a.ch3.ram[addr-waveRAMBase] = v
			}
		}
	}
}

func (a *APU) writeEnvelope(initial *byte, up *bool, period *byte, v byte) {
	*initial = (v >> 4) & 0x0F
	*up = v&(1<<3) != 0
	*period = v & 7
}

// powerOff implements NR52.bit7 clear: every other register resets to
// zero and becomes read-only until power is restored. Wave RAM
// contents survive the power cycle.
func (a *APU) powerOff() {
	savedRAM := a.ch3.ram
	savedRate := a.sampleRate
	savedCycles := a.cyclesPerSample
	savedCallback := a.onSample
	savedSpeed := a.doubleSpeed
	*a = APU{
		enabled:         false,
		ch1:             pulseChannel{hasSweep: true},
		sampleRate:      savedRate,
		cyclesPerSample: savedCycles,
		onSample:        savedCallback,
		doubleSpeed:     savedSpeed,
	}
	a.ch3.ram = savedRAM
}

// Enabled reports whether NR52's power bit is set.
func (a *APU) Enabled() bool { return a.enabled }

// Reset restores power-on defaults, clearing all channel state
// including Wave RAM.
func (a *APU) Reset() {
	a.powerOff()
	a.enabled = true
	a.nr50 = 0x77
	a.nr51 = 0xF3
	a.ch3.ram = [16]byte{}
}

// The APU raises no CPU interrupts of its own.
var _ regs.Sink = regs.SinkFunc(nil)
