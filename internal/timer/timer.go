// Package timer implements the Console's free-running divider and
// interval counter: a 16-bit divider whose high byte is exposed on the
// bus as DIV, and a configurable 8-bit counter (TIMA) that raises the
// TIMER interrupt on overflow.
package timer

import "github.com/tmby-console/core/internal/regs"

// clockSelectBit maps TAC's 2-bit clock-select field to the divider
// bit whose falling edge advances TIMA: 4096, 262144, 65536, and
// 16384 Hz in field order.
var clockSelectBit = [4]uint{9, 3, 5, 7}

// Timer is the 16-bit divider plus TIMA/TMA/TAC.
type Timer struct {
	D    uint16
	TIMA byte
	TMA  byte
	TAC  byte

	irq regs.Sink
}

// New constructs a Timer that raises IRQTimer through sink.
func New(sink regs.Sink) *Timer {
	return &Timer{irq: sink}
}

// Tick advances the divider by one step and applies the falling-edge
// TIMA clocking behind it.
func (t *Timer) Tick() {
	oldD := t.D
	t.D++

	if t.TAC&0x04 == 0 { // enable bit clear
		return
	}

	bit := clockSelectBit[t.TAC&0x03]
	oldBit := (oldD >> bit) & 1
	newBit := (t.D >> bit) & 1
	if oldBit == 1 && newBit == 0 {
		t.incrementTIMA()
	}
}

// DivBit4FallingEdge reports whether the just-applied Tick produced a
// falling edge on bit 4 of the DIV register (bit 5 in double-speed
// mode), the signal the APU's frame sequencer counts. DIV is the high
// byte of D, so these are bits 12 and 13 of the divider. Callers must
// read this immediately after Tick.
func (t *Timer) DivBit4FallingEdge(doubleSpeed bool) bool {
	bit := uint(12)
	if doubleSpeed {
		bit = 13
	}
	prevD := t.D - 1
	oldBit := (prevD >> bit) & 1
	newBit := (t.D >> bit) & 1
	return oldBit == 1 && newBit == 0
}

func (t *Timer) incrementTIMA() {
	if t.TIMA == 0xFF {
		t.TIMA = t.TMA
		if t.irq != nil {
			t.irq.Request(regs.IRQTimer)
		}
		return
	}
	t.TIMA++
}

// Reset returns the timer to power-on state.
func (t *Timer) Reset() { t.D, t.TIMA, t.TMA, t.TAC = 0, 0, 0, 0 }

// DIV returns the bus-visible DIV register: the high byte of D.
func (t *Timer) DIV() byte { return byte(t.D >> 8) }

// WriteDIV implements the "any write to DIV clears D to zero" rule.
func (t *Timer) WriteDIV() { t.D = 0 }

// ReadTAC returns TAC with its reserved upper bits read as 1.
func (t *Timer) ReadTAC() byte { return 0xF8 | (t.TAC & 0x07) }

// WriteTAC replaces the full control byte (clock-select + enable bits).
func (t *Timer) WriteTAC(v byte) { t.TAC = v & 0x07 }
