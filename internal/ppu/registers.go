package ppu

// Hardware-port addresses on the 0xFFFFFF00 register page. Video
// registers keep the low-byte offsets of the console's real-hardware
// inspiration where one exists (LCDC at ...40, STAT at ...41, palettes
// and window following), with the OAM-DMA page registers DMA1..DMA3
// and the initiate register DMA grouped directly after LYC.
const (
	regLCDC = 0xFFFFFF40
	regSTAT = 0xFFFFFF41
	regSCY  = 0xFFFFFF42
	regSCX  = 0xFFFFFF43
	regLY   = 0xFFFFFF44
	regLYC  = 0xFFFFFF45

	regDMA1 = 0xFFFFFF46
	regDMA2 = 0xFFFFFF47
	regDMA3 = 0xFFFFFF48
	regDMA  = 0xFFFFFF49

	regBGP  = 0xFFFFFF4A
	regOBP0 = 0xFFFFFF4B
	regOBP1 = 0xFFFFFF4C
	regWY   = 0xFFFFFF4D
	regWX   = 0xFFFFFF4E

	regVBK = 0xFFFFFF4F

	regHDMA1 = 0xFFFFFF51
	regHDMA2 = 0xFFFFFF52
	regHDMA3 = 0xFFFFFF53
	regHDMA4 = 0xFFFFFF54
	regHDMA5 = 0xFFFFFF55
	regHDMA6 = 0xFFFFFF56
	regHDMA7 = 0xFFFFFF57

	regBGPI = 0xFFFFFF68
	regBGPD = 0xFFFFFF69
	regOBPI = 0xFFFFFF6A
	regOBPD = 0xFFFFFF6B
	regOPRI = 0xFFFFFF6C
	regGRPM = 0xFFFFFF6D

	regVBP = 0xFFFFFF7B
)

// LCDC bit assignments.
const (
	lcdcBGEnable   = 1 << 0 // DMG: BG/window display; CGB: master BG priority
	lcdcOBJEnable  = 1 << 1
	lcdcOBJSize    = 1 << 2 // 0: 8x8, 1: 8x16
	lcdcBGMap      = 1 << 3 // 0: map at 0x1800, 1: map at 0x1C00
	lcdcTileData   = 1 << 4 // 0: signed 0x1000 base, 1: unsigned 0x0000 base
	lcdcWinEnable  = 1 << 5
	lcdcWinMap     = 1 << 6
	lcdcDisplayOn  = 1 << 7
)

// STAT bit assignments: mode in bits 0-1, coincidence flag bit 2,
// interrupt source enables in bits 3-6.
const (
	statModeMask    = 0x03
	statCoincidence = 1 << 2
	statIntHBlank   = 1 << 3
	statIntVBlank   = 1 << 4
	statIntOAMScan  = 1 << 5
	statIntLYC      = 1 << 6
)

// Display modes as exposed in STAT bits 0-1.
const (
	ModeHBlank        = 0
	ModeVBlank        = 1
	ModeOAMScan       = 2
	ModePixelTransfer = 3
)

// Tilemap base offsets within a VRAM bank. Bank 0 holds tile indices at
// these offsets; bank 1 holds the per-tile attribute bytes at the same
// offsets.
const (
	tilemap0Base = 0x1800
	tilemap1Base = 0x1C00
)

// Tile-attribute bits (VRAM bank 1 map entries, and OAM attribute
// bytes share the same layout for palette/bank/flip/priority).
const (
	attrPaletteMask = 0x07
	attrBank        = 1 << 3
	attrDMGPalette  = 1 << 4 // OAM only: OBP0/OBP1 select
	attrHFlip       = 1 << 5
	attrVFlip       = 1 << 6
	attrPriority    = 1 << 7
)

// Screen geometry.
const (
	ScreenWidth  = 160
	ScreenHeight = 144

	dotsPerLine   = 456
	linesPerFrame = 154
	oamScanDots   = 80

	maxLineObjects = 10
)
