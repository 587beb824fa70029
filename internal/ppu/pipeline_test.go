package ppu

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// solidTile fills tile index n in the given bank with the given 2-bit
// color on every row.
func solidTile(p *PPU, bank int, n byte, color byte) {
	var low, high byte
	if color&1 != 0 {
		low = 0xFF
	}
	if color&2 != 0 {
		high = 0xFF
	}
	for row := 0; row < 8; row++ {
		p.vram[bank][int(n)*16+row*2] = low
		p.vram[bank][int(n)*16+row*2+1] = high
	}
}

func fbPixel(p *PPU, x, y int) [4]byte {
	off := (y*ScreenWidth + x) * 4
	fb := p.Framebuffer()
	return [4]byte{fb[off], fb[off+1], fb[off+2], fb[off+3]}
}

var (
	white = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}
	black = [4]byte{0x00, 0x00, 0x00, 0xFF}
)

// TestBackgroundScanline: a tilemap of solid color-3 tiles renders a
// full black scanline under the identity palette.
func TestBackgroundScanline(t *testing.T) {
	p := New(nil)
	solidTile(p, 0, 1, 3)
	for i := tilemap0Base; i < tilemap0Base+32; i++ {
		p.vram[0][i] = 1
	}
	p.WritePort(regBGP, 0xE4)

	p.Tick(dotsPerLine)
	require.Equal(t, byte(1), p.LY())
	for x := 0; x < ScreenWidth; x++ {
		require.Equal(t, black, fbPixel(p, x, 0), "x=%d", x)
	}
}

// TestSCXDiscardsFractionalTile: with SCX=4 the first 4 pixels of the
// fetched tile row are discarded, shifting the visible pattern left.
func TestSCXDiscardsFractionalTile(t *testing.T) {
	p := New(nil)
	// Tile 1: left half color 3, right half color 0, on every row.
	for row := 0; row < 8; row++ {
		p.vram[0][16+row*2] = 0xF0
		p.vram[0][16+row*2+1] = 0xF0
	}
	for i := tilemap0Base; i < tilemap0Base+32; i++ {
		p.vram[0][i] = 1
	}
	p.WritePort(regBGP, 0xE4)
	p.WritePort(regSCX, 4)

	p.Tick(dotsPerLine)
	// Pixel 0 now shows the 5th pixel of the tile row: color 0.
	require.Equal(t, white, fbPixel(p, 0, 0))
	// Pixel 4 starts the next tile: color 3.
	require.Equal(t, black, fbPixel(p, 4, 0))
}

// TestWindowOverridesBackground: the window starts at WX-7 and fetches
// from its own tilemap.
func TestWindowOverridesBackground(t *testing.T) {
	p := New(nil)
	solidTile(p, 0, 1, 3)
	// Background map: all blank (tile 0). Window map: all tile 1.
	for i := tilemap1Base; i < tilemap1Base+32; i++ {
		p.vram[0][i] = 1
	}
	p.WritePort(regBGP, 0xE4)
	p.WritePort(regWY, 0)
	p.WritePort(regWX, 87) // window from x=80
	p.WritePort(regLCDC, 0x91|lcdcWinEnable|lcdcWinMap)

	p.Tick(dotsPerLine)
	require.Equal(t, white, fbPixel(p, 40, 0))
	require.Equal(t, black, fbPixel(p, 100, 0))
	require.Equal(t, black, fbPixel(p, 159, 0))
}

// TestObjectComposition: an object at the screen origin wins over
// background color 0.
func TestObjectComposition(t *testing.T) {
	p := New(nil)
	solidTile(p, 0, 2, 3)
	p.oam[0] = 16 // Y: screen row 0
	p.oam[1] = 8  // X: screen column 0
	p.oam[2] = 2  // tile
	p.oam[3] = 0  // attributes
	p.WritePort(regBGP, 0xE4)
	p.WritePort(regOBP0, 0xE4)
	p.WritePort(regLCDC, 0x91|lcdcOBJEnable)

	p.Tick(dotsPerLine)
	for x := 0; x < 8; x++ {
		require.Equal(t, black, fbPixel(p, x, 0), "x=%d", x)
	}
	require.Equal(t, white, fbPixel(p, 8, 0))
}

// TestObjectBehindOpaqueBackground: the background priority attribute
// keeps non-zero background colors in front of the object.
func TestObjectBehindOpaqueBackground(t *testing.T) {
	p := New(nil)
	solidTile(p, 0, 1, 1)
	solidTile(p, 0, 2, 3)
	for i := tilemap0Base; i < tilemap0Base+32; i++ {
		p.vram[0][i] = 1
	}
	p.oam[0] = 16
	p.oam[1] = 8
	p.oam[2] = 2
	p.oam[3] = attrPriority
	p.WritePort(regBGP, 0xE4)
	p.WritePort(regOBP0, 0xE4)
	p.WritePort(regLCDC, 0x91|lcdcOBJEnable)

	p.Tick(dotsPerLine)
	// BG color 1 renders at shade 1 everywhere; the object loses.
	shade1 := [4]byte{0xAA, 0xAA, 0xAA, 0xFF}
	require.Equal(t, shade1, fbPixel(p, 0, 0))
	require.Equal(t, shade1, fbPixel(p, 4, 0))
}

// TestObjectLimitPerScanline: only the first 10 intersecting objects
// are collected during OAM scan.
func TestObjectLimitPerScanline(t *testing.T) {
	p := New(nil)
	for i := 0; i < 12; i++ {
		p.oam[i*4] = 16
		p.oam[i*4+1] = byte(8 + i*8)
		p.oam[i*4+2] = 2
	}
	p.Tick(oamScanDots)
	require.Len(t, p.lineObjs, maxLineObjects)
}

// TestCGBPaletteLookup: in the advanced graphics mode, background
// color 0 resolves through CRAM palette 0.
func TestCGBPaletteLookup(t *testing.T) {
	p := New(nil)
	p.WritePort(regGRPM, 1)
	// Palette 0, color 0: pure red in little-endian RGB555.
	p.cramBG[0] = 0x1F
	p.cramBG[1] = 0x00

	p.Tick(dotsPerLine)
	require.Equal(t, [4]byte{0xFF, 0x00, 0x00, 0xFF}, fbPixel(p, 0, 0))
}

// TestPixelTransferCompletesWithinScanline: the pipeline always emits
// 160 pixels with dots to spare before the line ends.
func TestPixelTransferCompletesWithinScanline(t *testing.T) {
	p := New(nil)
	for i := 0; i < oamScanDots; i++ {
		p.Tick(1)
	}
	require.Equal(t, byte(ModePixelTransfer), p.Mode())
	dots := 0
	for p.Mode() == ModePixelTransfer {
		p.Tick(1)
		dots++
		require.Less(t, dots, dotsPerLine-oamScanDots)
	}
	require.Equal(t, byte(ModeHBlank), p.Mode())
}

func TestFIFOOverflowPanics(t *testing.T) {
	var q pixelFIFO
	for i := 0; i < fifoCap; i++ {
		q.Push(pixel{})
	}
	require.Panics(t, func() { q.Push(pixel{}) })
}
