// Package ppu implements the Console's dot-clocked scanline renderer:
// mode scheduling across OAM scan, pixel transfer, H-blank and V-blank,
// a five-state tile fetcher feeding two pixel FIFOs, object composition
// with priority resolution, the indexed color RAM of the advanced
// graphics mode, and the three DMA engines that feed OAM and VRAM.
package ppu

import "github.com/tmby-console/core/internal/regs"

// BusReader lets the DMA engines read their source bytes through the
// memory bus without the PPU holding a reference to it.
type BusReader func(addr uint32) byte

// object is one entry of the per-scanline object list collected during
// OAM scan.
type object struct {
	y, x     byte
	tile     byte
	attr     byte
	oamIndex byte
	fetched  bool
}

// PPU owns VRAM, OAM, CRAM, the framebuffer, and all video registers.
type PPU struct {
	vram [2][0x2000]byte
	vbk  byte
	oam  [0xA0]byte

	cramBG  [64]byte
	cramOBJ [64]byte
	bgpi    byte
	obpi    byte

	fb [ScreenWidth * ScreenHeight * 4]byte

	lcdc byte
	stat byte
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte
	opri byte
	grpm byte
	vbp  byte

	dot int

	statLine    bool
	suppressLYC bool

	// scanline pipeline state
	fetch      fetcher
	bgFIFO     pixelFIFO
	objFIFO    pixelFIFO
	lx         int
	discard    int
	objStall   int
	pendingObj []object
	lineObjs   []object
	winLatched bool
	winActive  bool
	winLine    int

	// OAM DMA
	dma1, dma2, dma3 byte
	dmaReg           byte
	dmaActive        bool
	dmaSrc           uint32
	dmaIndex         int

	// GDMA / HDMA
	hdmaSrc       uint32
	hdmaDst       uint16
	hdmaRemain    int
	hdmaActive    bool
	hdmaCancelled bool

	irq     regs.Sink
	busRead BusReader
	onFrame func(fb []byte)
}

// New constructs a PPU that raises interrupts through sink.
func New(sink regs.Sink) *PPU {
	p := &PPU{irq: sink}
	p.Reset()
	return p
}

// Reset restores documented power-on defaults.
func (p *PPU) Reset() {
	p.lcdc = 0x91
	p.stat = ModeOAMScan
	p.scy, p.scx, p.ly, p.lyc = 0, 0, 0, 0
	p.bgp = 0xFC
	p.obp0, p.obp1 = 0xFF, 0xFF
	p.wy, p.wx = 0, 0
	p.vbk, p.bgpi, p.obpi = 0, 0, 0
	p.opri, p.grpm, p.vbp = 0, 0, 0
	p.dot = 0
	p.statLine = false
	p.suppressLYC = false
	p.resetPipeline()
	p.winLine = 0
	p.winLatched = false
	p.dmaActive = false
	p.hdmaActive = false
	p.hdmaCancelled = false
	p.hdmaRemain = 0
	p.fillWhite()
}

// SetBusReader wires the bus read path the DMA engines copy through.
func (p *PPU) SetBusReader(r BusReader) { p.busRead = r }

// SetFrameCallback registers the host callback fired on V-blank entry.
func (p *PPU) SetFrameCallback(fn func(fb []byte)) { p.onFrame = fn }

// Framebuffer exposes the 160x144 RGBA8888 output, row-major.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// LY returns the current scanline.
func (p *PPU) LY() byte { return p.ly }

// Mode returns the current display mode (STAT bits 0-1).
func (p *PPU) Mode() byte { return p.stat & statModeMask }

// Dot returns the dot counter within the current scanline.
func (p *PPU) Dot() int { return p.dot }

func (p *PPU) enabled() bool { return p.lcdc&lcdcDisplayOn != 0 }

func (p *PPU) cgbMode() bool { return p.grpm&1 != 0 }

// Tick advances the PPU by the given number of dots.
func (p *PPU) Tick(dots int) {
	for i := 0; i < dots; i++ {
		p.tickDot()
	}
}

func (p *PPU) tickDot() {
	if !p.enabled() {
		return
	}

	switch p.Mode() {
	case ModeOAMScan:
		if p.dot%2 == 1 {
			p.scanObject(p.dot / 2)
		}
		p.dot++
		if p.dot == oamScanDots {
			p.enterPixelTransfer()
		}
	case ModePixelTransfer:
		p.dot++
		p.pipelineDot()
		if p.lx == ScreenWidth {
			p.setMode(ModeHBlank)
			p.stepHDMA()
		}
	default: // HBLANK, VBLANK
		p.dot++
		if p.dot == dotsPerLine {
			p.advanceLine()
		}
	}
}

// scanObject examines one OAM slot during mode 2 (2 dots per object),
// collecting up to 10 objects whose Y-range intersects LY.
func (p *PPU) scanObject(i int) {
	if len(p.lineObjs) >= maxLineObjects {
		return
	}
	base := i * 4
	y := p.oam[base]
	height := 8
	if p.lcdc&lcdcOBJSize != 0 {
		height = 16
	}
	top := int(p.ly) + 16
	if top < int(y) || top >= int(y)+height {
		return
	}
	p.lineObjs = append(p.lineObjs, object{
		y:        y,
		x:        p.oam[base+1],
		tile:     p.oam[base+2],
		attr:     p.oam[base+3],
		oamIndex: byte(i),
	})
}

func (p *PPU) enterPixelTransfer() {
	p.setMode(ModePixelTransfer)
	p.lx = 0
	p.discard = int(p.scx & 7)
	p.bgFIFO.Clear()
	p.objFIFO.Clear()
	p.fetch.reset(false)
	p.objStall = 0
	p.pendingObj = p.pendingObj[:0]
	p.winActive = false
	if p.ly == p.wy {
		p.winLatched = true
	}
	if p.opri&1 != 0 {
		p.sortLineObjsByX()
	}
}

// sortLineObjsByX applies coordinate-based object priority: leftmost
// object wins, ties broken by OAM index. Insertion sort keeps the tie
// order stable over the at-most-10-element list.
func (p *PPU) sortLineObjsByX() {
	for i := 1; i < len(p.lineObjs); i++ {
		for j := i; j > 0 && p.lineObjs[j].x < p.lineObjs[j-1].x; j-- {
			p.lineObjs[j], p.lineObjs[j-1] = p.lineObjs[j-1], p.lineObjs[j]
		}
	}
}

func (p *PPU) pipelineDot() {
	if p.objStall > 0 {
		p.objStall--
		if p.objStall == 0 {
			for _, o := range p.pendingObj {
				p.mergeObject(o)
			}
			p.pendingObj = p.pendingObj[:0]
		}
		return
	}

	// Window entry: flush the BG FIFO and restart the fetcher in
	// window mode once WY has latched and x reaches WX-7.
	if !p.winActive && p.windowReached() {
		p.winActive = true
		p.bgFIFO.Clear()
		p.fetch.reset(true)
	}

	// Object fetch pauses the BG fetcher for 6 dots minimum.
	if p.lcdc&lcdcOBJEnable != 0 && p.collectObjectsAtX() {
		return
	}

	p.stepFetcher()

	if p.bgFIFO.Len() == 0 {
		return
	}
	bg, _ := p.bgFIFO.Pop()
	if p.discard > 0 {
		p.discard--
		return
	}
	obj, hasObj := p.objFIFO.Pop()
	r, g, b, a := p.compose(bg, obj, hasObj)
	off := (int(p.ly)*ScreenWidth + p.lx) * 4
	p.fb[off], p.fb[off+1], p.fb[off+2], p.fb[off+3] = r, g, b, a
	p.lx++
}

func (p *PPU) windowReached() bool {
	return p.lcdc&lcdcWinEnable != 0 && p.winLatched && p.lx >= int(p.wx)-7
}

// collectObjectsAtX gathers every unfetched object whose X-position
// matches the current pixel and starts the fetch stall. The cost is 6
// dots plus, when the object lands at the start of a BG tile, the
// pixels still queued from that tile beyond the first two.
func (p *PPU) collectObjectsAtX() bool {
	found := false
	for i := range p.lineObjs {
		o := &p.lineObjs[i]
		screenX := int(o.x) - 8
		if screenX < 0 {
			screenX = 0
		}
		if screenX != p.lx || o.fetched {
			continue
		}
		o.fetched = true
		p.pendingObj = append(p.pendingObj, *o)
		found = true
	}
	if !found {
		return false
	}
	cost := 6
	if (p.lx+int(p.scx))%8 == 0 {
		if rem := p.bgFIFO.Len() % 8; rem > 2 {
			cost += rem - 2
		}
	}
	p.objStall = cost
	return true
}

// mergeObject fetches the object's tile row and overlays it onto the
// object FIFO; earlier merges keep their non-transparent pixels.
func (p *PPU) mergeObject(o object) {
	if o.x == 0 || o.x >= 168 {
		// Fully off-screen: costs fetch time but contributes nothing.
		return
	}
	height := 8
	if p.lcdc&lcdcOBJSize != 0 {
		height = 16
	}
	line := int(p.ly) + 16 - int(o.y)
	if o.attr&attrVFlip != 0 {
		line = height - 1 - line
	}
	tile := o.tile
	if height == 16 {
		tile &= 0xFE
	}
	tile += byte(line >> 3)
	line &= 7

	bank := 0
	if p.cgbMode() && o.attr&attrBank != 0 {
		bank = 1
	}
	addr := uint16(tile)*16 + uint16(line)*2
	low := p.vram[bank][addr]
	high := p.vram[bank][addr+1]

	var row [8]pixel
	for i := 0; i < 8; i++ {
		bit := uint(7 - i)
		if o.attr&attrHFlip != 0 {
			bit = uint(i)
		}
		ci := ((high>>bit)&1)<<1 | ((low >> bit) & 1)
		pal := byte(0)
		if p.cgbMode() {
			pal = o.attr & attrPaletteMask
		} else if o.attr&attrDMGPalette != 0 {
			pal = 1
		}
		row[i] = pixel{
			color:    ci,
			palette:  pal,
			priority: o.attr&attrPriority != 0,
			objIndex: o.oamIndex,
		}
	}

	// Clip the left-hand part of an object that starts off-screen.
	if clip := 8 - int(o.x); clip > 0 && clip < 8 {
		var shifted [8]pixel
		copy(shifted[:], row[clip:])
		row = shifted
	}
	p.objFIFO.merge(row)
}

func (p *PPU) compose(bg pixel, obj pixel, hasObj bool) (r, g, b, a byte) {
	bgColor := bg.color
	if !p.cgbMode() && p.lcdc&lcdcBGEnable == 0 {
		bgColor = 0
	}

	objVisible := hasObj && obj.color != 0 && p.lcdc&lcdcOBJEnable != 0
	if objVisible {
		objWins := true
		if p.cgbMode() && p.lcdc&lcdcBGEnable == 0 {
			// Master priority clear: objects always in front.
		} else if (obj.priority || bg.priority) && bgColor != 0 {
			objWins = false
		}
		if objWins {
			if p.cgbMode() {
				return p.cramColor(p.cramOBJ[:], obj.palette, obj.color)
			}
			pal := p.obp0
			if obj.palette == 1 {
				pal = p.obp1
			}
			return dmgShade(pal, obj.color)
		}
	}

	if p.cgbMode() {
		return p.cramColor(p.cramBG[:], bg.palette, bgColor)
	}
	return dmgShade(p.bgp, bgColor)
}

var dmgShades = [4][4]byte{
	{0xFF, 0xFF, 0xFF, 0xFF},
	{0xAA, 0xAA, 0xAA, 0xFF},
	{0x55, 0x55, 0x55, 0xFF},
	{0x00, 0x00, 0x00, 0xFF},
}

func dmgShade(pal byte, color byte) (r, g, b, a byte) {
	s := dmgShades[(pal>>(2*color))&3]
	return s[0], s[1], s[2], s[3]
}

// cramColor decodes a little-endian RGB555 palette entry to RGBA8888.
func (p *PPU) cramColor(cram []byte, palette, color byte) (r, g, b, a byte) {
	off := int(palette)*8 + int(color)*2
	v := uint16(cram[off]) | uint16(cram[off+1])<<8
	r5 := byte(v & 0x1F)
	g5 := byte((v >> 5) & 0x1F)
	b5 := byte((v >> 10) & 0x1F)
	return r5<<3 | r5>>2, g5<<3 | g5>>2, b5<<3 | b5>>2, 0xFF
}

func (p *PPU) advanceLine() {
	p.dot = 0
	if p.winActive {
		p.winLine++
		p.winActive = false
	}
	p.ly++
	p.suppressLYC = false

	switch {
	case p.ly == ScreenHeight:
		p.setMode(ModeVBlank)
		if p.irq != nil {
			p.irq.Request(regs.IRQVBlank)
		}
		if p.onFrame != nil {
			p.onFrame(p.fb[:])
		}
	case p.ly == linesPerFrame:
		p.ly = 0
		p.winLine = 0
		p.winLatched = false
		p.startScanline()
	case p.ly < ScreenHeight:
		p.startScanline()
	}
	p.updateCoincidence()
	p.evalSTATLine()
}

func (p *PPU) startScanline() {
	p.setMode(ModeOAMScan)
	p.lineObjs = p.lineObjs[:0]
}

func (p *PPU) resetPipeline() {
	p.bgFIFO.Clear()
	p.objFIFO.Clear()
	p.fetch.reset(false)
	p.lx = 0
	p.discard = 0
	p.objStall = 0
	p.pendingObj = p.pendingObj[:0]
	p.lineObjs = p.lineObjs[:0]
	p.winActive = false
}

func (p *PPU) fillWhite() {
	for i := 0; i < len(p.fb); i += 4 {
		p.fb[i], p.fb[i+1], p.fb[i+2], p.fb[i+3] = 0xFF, 0xFF, 0xFF, 0xFF
	}
}

func (p *PPU) setMode(m byte) {
	p.stat = (p.stat &^ statModeMask) | (m & statModeMask)
	p.evalSTATLine()
}

func (p *PPU) updateCoincidence() {
	if p.suppressLYC {
		p.stat &^= statCoincidence
		return
	}
	if p.ly == p.lyc {
		p.stat |= statCoincidence
	} else {
		p.stat &^= statCoincidence
	}
}

// evalSTATLine recomputes the OR of the enabled STAT sources and
// raises the LCDSTAT interrupt on its rising edge only.
func (p *PPU) evalSTATLine() {
	line := false
	switch p.Mode() {
	case ModeHBlank:
		line = p.stat&statIntHBlank != 0
	case ModeVBlank:
		line = p.stat&statIntVBlank != 0
	case ModeOAMScan:
		line = p.stat&statIntOAMScan != 0
	}
	if p.stat&statIntLYC != 0 && p.stat&statCoincidence != 0 {
		line = true
	}
	if line && !p.statLine && p.irq != nil {
		p.irq.Request(regs.IRQLCDStat)
	}
	p.statLine = line
}
