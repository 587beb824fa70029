package ppu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmby-console/core/internal/regs"
)

type fakeSink struct{ fired []int }

func (s *fakeSink) Request(bit int) { s.fired = append(s.fired, bit) }

func (s *fakeSink) count(bit int) int {
	n := 0
	for _, b := range s.fired {
		if b == bit {
			n++
		}
	}
	return n
}

// TestVBlankTiming: from reset, line 143 completes after exactly
// 144*456 dots, entering V-blank with LY=144, the VBLANK flag raised,
// and the frame callback invoked exactly once.
func TestVBlankTiming(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink)
	p.WritePort(regLYC, 144)

	frames := 0
	p.SetFrameCallback(func(fb []byte) {
		frames++
		require.Len(t, fb, ScreenWidth*ScreenHeight*4)
	})

	p.Tick(144 * dotsPerLine)

	require.Equal(t, byte(144), p.LY())
	require.Equal(t, byte(ModeVBlank), p.Mode())
	require.Equal(t, 1, sink.count(regs.IRQVBlank))
	require.Equal(t, 1, frames)

	// A full frame later the callback has fired exactly once more.
	p.Tick(linesPerFrame * dotsPerLine)
	require.Equal(t, 2, frames)
}

// TestSTATCoincidenceEdge: with LYC=40 and both the coincidence and
// H-blank sources enabled, moving from LY=39 H-blank into LY=40
// H-blank raises LCDSTAT exactly once. The interrupt line is an edge,
// not a level: the already-high line at the second qualifying event
// must not fire again.
func TestSTATCoincidenceEdge(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink)
	p.WritePort(regLYC, 40)
	p.WritePort(regSTAT, statIntLYC|statIntHBlank)

	for !(p.LY() == 39 && p.Mode() == ModeHBlank) {
		p.Tick(1)
	}
	sink.fired = nil

	for !(p.LY() == 40 && p.Mode() == ModeHBlank) {
		p.Tick(1)
	}
	require.Equal(t, 1, sink.count(regs.IRQLCDStat))
}

// TestModeDotMonotonic: within a frame, (LY, dot) advances
// monotonically and resets at V-blank exit.
func TestModeDotMonotonic(t *testing.T) {
	p := New(nil)
	prevLY, prevDot := int(p.LY()), p.Dot()
	for i := 0; i < linesPerFrame*dotsPerLine; i++ {
		p.Tick(1)
		ly, dot := int(p.LY()), p.Dot()
		if ly == 0 && prevLY == linesPerFrame-1 {
			// frame wrap
		} else {
			require.GreaterOrEqual(t, ly, prevLY)
			if ly == prevLY {
				require.Greater(t, dot, prevDot-1)
			}
		}
		prevLY, prevDot = ly, dot
	}
	require.Equal(t, byte(0), p.LY())
}

func TestVRAMBlockedDuringPixelTransfer(t *testing.T) {
	p := New(nil)
	for p.Mode() != ModePixelTransfer {
		p.Tick(1)
	}
	p.WriteVRAM(0x0010, 0x5A)
	require.Equal(t, byte(0xFF), p.ReadVRAM(0x0010))

	for p.Mode() != ModeHBlank {
		p.Tick(1)
	}
	p.WriteVRAM(0x0010, 0x5A)
	require.Equal(t, byte(0x5A), p.ReadVRAM(0x0010))

	// Still there on the next H-blank.
	for p.Mode() != ModePixelTransfer {
		p.Tick(1)
	}
	for p.Mode() != ModeHBlank {
		p.Tick(1)
	}
	require.Equal(t, byte(0x5A), p.ReadVRAM(0x0010))
}

func TestOAMBlockedDuringScanAndTransfer(t *testing.T) {
	p := New(nil)
	require.Equal(t, byte(ModeOAMScan), p.Mode())
	p.WriteOAM(4, 0x12)
	require.Equal(t, byte(0xFF), p.ReadOAM(4))

	for p.Mode() != ModeHBlank {
		p.Tick(1)
	}
	p.WriteOAM(4, 0x12)
	require.Equal(t, byte(0x12), p.ReadOAM(4))
}

func TestDisableOnlyLegalInVBlank(t *testing.T) {
	p := New(nil)
	require.Equal(t, byte(ModeOAMScan), p.Mode())

	p.WritePort(regLCDC, 0x11) // disable attempt outside V-blank
	require.True(t, p.enabled())

	for p.Mode() != ModeVBlank {
		p.Tick(1)
	}
	p.WritePort(regLCDC, 0x11)
	require.False(t, p.enabled())
	require.Equal(t, byte(0), p.LY())

	// Framebuffer blanked to white.
	fb := p.Framebuffer()
	for i := 0; i < 16; i++ {
		require.Equal(t, byte(0xFF), fb[i])
	}

	// While disabled, VRAM and OAM are unrestricted and LY holds.
	p.WriteVRAM(0, 0xAB)
	require.Equal(t, byte(0xAB), p.ReadVRAM(0))
	p.Tick(1000)
	require.Equal(t, byte(0), p.LY())

	// Re-enable restarts OAM scan at LY=0.
	p.WritePort(regLCDC, 0x91)
	require.Equal(t, byte(ModeOAMScan), p.Mode())
	require.Equal(t, byte(0), p.LY())
}

func TestCRAMAutoIncrementFiresWhileBlocked(t *testing.T) {
	p := New(nil)
	p.WritePort(regBGPI, 0x80) // auto-increment, index 0

	for p.Mode() != ModePixelTransfer {
		p.Tick(1)
	}
	p.WritePort(regBGPD, 0x1F) // blocked, but the index still advances
	require.Equal(t, byte(0x81), p.ReadPort(regBGPI))

	for p.Mode() != ModeHBlank {
		p.Tick(1)
	}
	require.Equal(t, byte(0x00), p.cramBG[1])
	p.WritePort(regBGPD, 0x7C)
	require.Equal(t, byte(0x7C), p.cramBG[1])
	require.Equal(t, byte(0x82), p.ReadPort(regBGPI))
}

func TestSTATReadConstantHighBit(t *testing.T) {
	p := New(nil)
	require.Equal(t, byte(0x80), p.ReadPort(regSTAT)&0x80)
	// Mode and coincidence bits are read-only through the port.
	p.WritePort(regSTAT, 0xFF)
	require.Equal(t, byte(ModeOAMScan), p.Mode())
}
