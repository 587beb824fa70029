package ppu

// fetchState enumerates the pixel fetcher's sub-states. Each state
// takes 2 dots; PushPixels retries every dot until the BG FIFO has
// room for another tile row.
type fetchState int

const (
	fetchTileNumber fetchState = iota
	fetchTileLow
	fetchTileHigh
	fetchPush
	fetchSleep
)

// fetcher is the background/window tile fetcher feeding the BG FIFO.
type fetcher struct {
	state   fetchState
	dotAcc  int // dots spent in the current state
	tileX   byte
	window  bool

	tileIndex byte
	attr      byte
	low       byte
	high      byte
}

func (f *fetcher) reset(window bool) {
	f.state = fetchTileNumber
	f.dotAcc = 0
	f.tileX = 0
	f.window = window
	f.attr = 0
}

// stepFetcher advances the fetcher by one dot.
func (p *PPU) stepFetcher() {
	f := &p.fetch
	f.dotAcc++

	switch f.state {
	case fetchTileNumber:
		if f.dotAcc < 2 {
			return
		}
		f.dotAcc = 0
		p.fetchTileNumber()
		f.state = fetchTileLow
	case fetchTileLow:
		if f.dotAcc < 2 {
			return
		}
		f.dotAcc = 0
		f.low = p.readTilePlane(0)
		f.state = fetchTileHigh
	case fetchTileHigh:
		if f.dotAcc < 2 {
			return
		}
		f.dotAcc = 0
		f.high = p.readTilePlane(1)
		f.state = fetchPush
	case fetchPush:
		// Retries every dot until the FIFO can take a full row.
		if p.bgFIFO.Len() > 8 {
			return
		}
		f.dotAcc = 0
		p.pushTileRow()
		f.tileX = (f.tileX + 1) & 31
		f.state = fetchSleep
	case fetchSleep:
		if f.dotAcc < 2 {
			return
		}
		f.dotAcc = 0
		f.state = fetchTileNumber
	}
}

// fetchTileNumber reads the tile index from the selected tilemap in
// bank 0, and the matching attribute byte from bank 1 when the
// advanced graphics mode is active.
func (p *PPU) fetchTileNumber() {
	f := &p.fetch

	var mapBase uint16
	var row, col byte
	if f.window {
		mapBase = tilemap0Base
		if p.lcdc&lcdcWinMap != 0 {
			mapBase = tilemap1Base
		}
		row = byte(p.winLine) >> 3
		col = f.tileX
	} else {
		mapBase = tilemap0Base
		if p.lcdc&lcdcBGMap != 0 {
			mapBase = tilemap1Base
		}
		row = ((p.ly + p.scy) & 0xFF) >> 3
		col = (f.tileX + p.scx>>3) & 31
	}

	idx := mapBase + uint16(row)*32 + uint16(col)
	f.tileIndex = p.vram[0][idx]
	if p.cgbMode() {
		f.attr = p.vram[1][idx]
	} else {
		f.attr = 0
	}
}

// tileRowAddr resolves the VRAM offset of the current tile's row,
// honoring the addressing mode and the attribute V-flip bit.
func (p *PPU) tileRowAddr() uint16 {
	f := &p.fetch

	var fineY byte
	if f.window {
		fineY = byte(p.winLine) & 7
	} else {
		fineY = (p.ly + p.scy) & 7
	}
	if f.attr&attrVFlip != 0 {
		fineY = 7 - fineY
	}

	if p.lcdc&lcdcTileData != 0 {
		return uint16(f.tileIndex)*16 + uint16(fineY)*2
	}
	return uint16(0x1000+int(int8(f.tileIndex))*16) + uint16(fineY)*2
}

// readTilePlane reads the low (0) or high (1) bit-plane byte of the
// current tile row from the attribute-selected bank.
func (p *PPU) readTilePlane(plane uint16) byte {
	bank := 0
	if p.fetch.attr&attrBank != 0 {
		bank = 1
	}
	return p.vram[bank][p.tileRowAddr()+plane]
}

// pushTileRow combines the two fetched planes into 8 indexed pixels
// and pushes them onto the BG FIFO, left pixel first.
func (p *PPU) pushTileRow() {
	f := &p.fetch
	for i := 0; i < 8; i++ {
		bit := uint(7 - i)
		if f.attr&attrHFlip != 0 {
			bit = uint(i)
		}
		ci := ((f.high>>bit)&1)<<1 | ((f.low >> bit) & 1)
		p.bgFIFO.Push(pixel{
			color:    ci,
			palette:  f.attr & attrPaletteMask,
			priority: f.attr&attrPriority != 0,
		})
	}
}
