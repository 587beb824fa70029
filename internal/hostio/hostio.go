// Package hostio supplies the external-glue interfaces the core
// depends on but does not own: network RAM, the real-time clock, and
// SRAM file persistence. The bus only needs *some* implementation of
// these; inert defaults keep an engine usable headless with no host
// attached.
package hostio

import (
	"os"
	"time"
)

// NetLink models the external network-RAM transport behind the Net
// send/recv bus windows. A real implementation would bridge to another
// console instance; only the no-op ships here.
type NetLink interface {
	// Send offers a byte to the link. ok is false if nothing is
	// connected and the byte was discarded.
	Send(b byte) (ok bool)
	// Recv returns the next byte from the link, if any.
	Recv() (b byte, ok bool)
}

// NoNet is a NetLink that is never connected.
type NoNet struct{}

// Send implements NetLink.
func (NoNet) Send(byte) bool { return false }

// Recv implements NetLink.
func (NoNet) Recv() (byte, bool) { return 0, false }

// Clock models the system clock the RTC registers (RTCS/RTCM/RTCH/
// RTCDH/RTCDL/RTCL/RTCR) latch against. Injected rather than calling
// time.Now directly so the bus stays deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// LoadSRAM reads a battery-backed SRAM file. A missing file is not an
// error: it reports ok=false with a nil error so callers can fall back
// to zeroed SRAM on first run.
func LoadSRAM(path string) (data []byte, ok bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// SaveSRAM writes a battery-backed SRAM file. Host I/O errors are
// reported to the caller as a boolean with a diagnostic, never fatal
// to the engine.
func SaveSRAM(path string, data []byte) (ok bool, err error) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
