// Package engine owns the whole core: it constructs the bus and its
// subsystems from a validated program image, drives the per-step tick
// loop, and surfaces the frame and audio callbacks to the host shell.
package engine

import (
	"errors"
	"log"

	"github.com/tmby-console/core/internal/bus"
	"github.com/tmby-console/core/internal/cpu"
	"github.com/tmby-console/core/internal/hostio"
	"github.com/tmby-console/core/internal/rom"
)

// Config carries construction options. Zero values select the
// defaults: 44.1 kHz audio, no network link, the system clock.
type Config struct {
	SampleRate int
	Net        hostio.NetLink
	Clock      hostio.Clock
}

// ErrNoStepper is returned when the engine is constructed without a
// CPU collaborator.
var ErrNoStepper = errors.New("engine: nil CPU stepper")

// Engine is the tick driver tying the CPU step loop to the cycle
// advancement of Timer, APU, PPU, and DMA.
type Engine struct {
	bus     *bus.Bus
	stepper cpu.Stepper

	header *rom.Header
	image  []byte

	onFrame func(fb []byte)
}

// New builds an engine for a validated program image. The header must
// come from rom.Load; an engine is never constructed around an invalid
// image.
func New(header *rom.Header, image []byte, stepper cpu.Stepper, cfg Config) (*Engine, error) {
	if stepper == nil {
		return nil, ErrNoStepper
	}
	b := bus.New(bus.Config{
		Header:     header,
		Net:        cfg.Net,
		Clock:      cfg.Clock,
		SampleRate: cfg.SampleRate,
	})
	return &Engine{
		bus:     b,
		stepper: stepper,
		header:  header,
		image:   image,
	}, nil
}

// Bus exposes the memory system, primarily for the CPU collaborator
// and tests.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Reset returns every subsystem to power-on state without
// reallocating.
func (e *Engine) Reset() { e.bus.Reset() }

// Header returns the program header the engine was built from.
func (e *Engine) Header() *rom.Header { return e.header }

// SetCallbacks registers the host sinks: onFrame fires from inside the
// PPU tick on V-blank entry, onSample from inside the APU tick at the
// output sample rate.
func (e *Engine) SetCallbacks(onFrame func(fb []byte), onSample func(left, right float32)) {
	e.onFrame = onFrame
	e.bus.PPU.SetFrameCallback(onFrame)
	e.bus.APU.SetSampleCallback(onSample)
}

// Framebuffer exposes the 160x144 RGBA output.
func (e *Engine) Framebuffer() []byte { return e.bus.PPU.Framebuffer() }

// Press forwards a joypad press.
func (e *Engine) Press(btn bus.Button) { e.bus.Press(btn) }

// Release forwards a joypad release.
func (e *Engine) Release(btn bus.Button) { e.bus.Release(btn) }

// Tick advances by one CPU machine step: the step consumes N bus
// cycles, and each bus cycle advances Timer, APU, PPU (4 dots), and
// one pending OAM-DMA byte, in that order. Pending interrupts are
// offered to the CPU after the step. Tick reports false to request
// shutdown: on the canonical stop condition (CPU halted with IE=0 and
// IF=0), on a stepper error, or when an internal invariant violation
// aborts the tick.
func (e *Engine) Tick() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: tick aborted: %v", r)
			ok = false
		}
	}()

	cycles, halted, err := e.stepper.Step(e.bus)
	if err != nil {
		return false
	}
	if cycles < 1 {
		cycles = 1
	}
	for i := 0; i < cycles; i++ {
		e.bus.TickCycle()
	}

	if bit, pending := e.bus.PendingInterrupt(); pending {
		if svc, can := e.stepper.(cpu.InterruptServicer); can {
			extra, taken := svc.ServiceInterrupt(e.bus, bit)
			if taken {
				e.bus.AcknowledgeInterrupt(bit)
				for i := 0; i < extra; i++ {
					e.bus.TickCycle()
				}
			}
		}
	}

	if halted && e.bus.IE() == 0 && e.bus.IF() == 0 {
		return false
	}
	return true
}

// RunFrames ticks until the PPU has delivered n frames or the engine
// requests shutdown, whichever comes first. Convenience for headless
// runs and tests.
func (e *Engine) RunFrames(n int) {
	frames := 0
	e.bus.PPU.SetFrameCallback(func(fb []byte) {
		frames++
		if e.onFrame != nil {
			e.onFrame(fb)
		}
	})
	defer e.bus.PPU.SetFrameCallback(e.onFrame)
	for frames < n {
		if !e.Tick() {
			return
		}
	}
}
