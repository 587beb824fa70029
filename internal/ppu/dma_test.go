package ppu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeMemory backs the DMA bus-read path with a flat pattern.
func fakeMemory(p *PPU) []byte {
	mem := make([]byte, 0x10000)
	for i := range mem {
		mem[i] = byte(i * 7)
	}
	p.SetBusReader(func(addr uint32) byte {
		if int(addr) < len(mem) {
			return mem[addr]
		}
		return 0xFF
	})
	return mem
}

func TestOAMDMACopiesOneBytePerCycle(t *testing.T) {
	p := New(nil)
	mem := fakeMemory(p)

	p.WritePort(regDMA2, 0x01) // source page 0x00000100
	p.WritePort(regDMA, 0x00)
	require.True(t, p.OAMDMAActive())

	// Mid-transfer, OAM is unreachable from the CPU.
	require.Equal(t, byte(0xFF), p.ReadOAM(0))

	for i := 0; i < 160; i++ {
		p.StepOAMDMAByte()
	}
	require.False(t, p.OAMDMAActive())

	for i := 0; i < 160; i++ {
		require.Equal(t, mem[0x100+i], p.oam[i], "oam[%d]", i)
	}
}

func TestGDMACopiesAtomically(t *testing.T) {
	p := New(nil)
	mem := fakeMemory(p)

	p.WritePort(regHDMA3, 0x02) // source 0x00000200
	p.WritePort(regHDMA5, 0x00)
	p.WritePort(regHDMA6, 0x40) // destination 0x0040
	p.WritePort(regHDMA7, 0x01) // bit7 clear: general DMA, 2 blocks

	for i := 0; i < 32; i++ {
		require.Equal(t, mem[0x200+i], p.vram[0][0x40+i], "vram[%d]", i)
	}
	// Registers remain incremented by the copy.
	require.Equal(t, byte(0x20), p.ReadPort(regHDMA4))
	require.Equal(t, byte(0x60), p.ReadPort(regHDMA6))
	// No transfer pending afterwards.
	require.Equal(t, byte(0xFF), p.ReadPort(regHDMA7))
}

// TestHBlankDMA: an armed transfer of length 1 moves 32 bytes, 16 per
// H-blank entry, then reads back as complete.
func TestHBlankDMA(t *testing.T) {
	p := New(nil)
	mem := fakeMemory(p)

	p.WritePort(regHDMA3, 0x02) // source 0x00000200
	p.WritePort(regHDMA7, 0x81) // bit7 set: 2 blocks over 2 H-blanks
	require.Equal(t, byte(0x01), p.ReadPort(regHDMA7))

	advanceToHBlank := func() {
		for p.Mode() == ModeHBlank {
			p.Tick(1)
		}
		for p.Mode() != ModeHBlank {
			p.Tick(1)
		}
	}

	advanceToHBlank()
	require.Equal(t, byte(0x00), p.ReadPort(regHDMA7))
	for i := 0; i < 16; i++ {
		require.Equal(t, mem[0x200+i], p.vram[0][i])
	}
	// Second half not copied yet.
	require.NotEqual(t, mem[0x210], p.vram[0][16])

	advanceToHBlank()
	for i := 0; i < 32; i++ {
		require.Equal(t, mem[0x200+i], p.vram[0][i])
	}
	require.Equal(t, byte(0xFF), p.ReadPort(regHDMA7))
}

func TestHBlankDMACancellation(t *testing.T) {
	p := New(nil)
	fakeMemory(p)

	p.WritePort(regHDMA7, 0x85) // 6 blocks armed
	p.WritePort(regHDMA7, 0x00) // cancel
	// Cancellation latches bit 7 high with the remaining length.
	require.Equal(t, byte(0x85), p.ReadPort(regHDMA7))

	// Cancelled transfers no longer copy on H-blank.
	for p.Mode() != ModeHBlank {
		p.Tick(1)
	}
	require.Equal(t, byte(0x85), p.ReadPort(regHDMA7))
}
