// Package cpu defines the boundary to the external CPU collaborator.
// Opcode decoding lives outside the core; the engine only needs a
// stepper it can drive one machine step at a time over the bus.
package cpu

// Bus is the CPU's view of the memory system.
type Bus interface {
	Read(addr uint32) byte
	Write(addr uint32, v byte)
}

// Stepper executes one CPU machine step, returning the number of bus
// cycles it consumed. halted reports that the CPU is waiting for an
// interrupt.
type Stepper interface {
	Step(bus Bus) (cycles int, halted bool, err error)
}

// InterruptServicer is implemented by steppers that model the
// master-interrupt-enable and vectoring. After each step the engine
// offers the lowest pending enabled interrupt; taken reports whether
// the CPU dispatched to the handler (the engine then clears the flag
// bit), and cycles is the dispatch cost.
type InterruptServicer interface {
	ServiceInterrupt(bus Bus, bit int) (cycles int, taken bool)
}

// Stub is a stepper that halts on entry and never wakes. Engine tests
// use it to drive the tick loop deterministically without a real
// decoder plugged in.
type Stub struct{}

// Step implements Stepper, consuming one cycle in the halted state.
func (Stub) Step(Bus) (int, bool, error) { return 1, true, nil }

// FreeRunner is a stepper that spins forever, consuming one cycle per
// step without executing anything. It lets the host shell drive the
// video and audio pipeline from reset state when no real decoder is
// plugged in.
type FreeRunner struct{}

// Step implements Stepper.
func (FreeRunner) Step(Bus) (int, bool, error) { return 1, false, nil }
