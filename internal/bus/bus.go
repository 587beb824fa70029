// Package bus decodes the Console's 32-bit address space and routes
// byte reads and writes to working RAM, the PPU, the APU, the Timer,
// and the memory-mapped hardware ports. The bus consumes no cycles
// itself; the CPU accounts them, and the engine drives the per-cycle
// subsystem advancement through TickCycle.
package bus

import (
	"github.com/tmby-console/core/internal/apu"
	"github.com/tmby-console/core/internal/hostio"
	"github.com/tmby-console/core/internal/ppu"
	"github.com/tmby-console/core/internal/regs"
	"github.com/tmby-console/core/internal/rom"
	"github.com/tmby-console/core/internal/timer"
)

// Button identifies one joypad input.
type Button byte

// Joypad buttons. The low nibble group is the directional pad, the
// high nibble group the action buttons, matching the two JOYP select
// lines.
const (
	BtnRight  Button = 1 << 0
	BtnLeft   Button = 1 << 1
	BtnUp     Button = 1 << 2
	BtnDown   Button = 1 << 3
	BtnA      Button = 1 << 4
	BtnB      Button = 1 << 5
	BtnSelect Button = 1 << 6
	BtnStart  Button = 1 << 7
)

// Config carries the collaborators and sizes a Bus is built with.
type Config struct {
	Header     *rom.Header
	Net        hostio.NetLink
	Clock      hostio.Clock
	SampleRate int
}

// Bus is the address decoder plus the glue registers that belong to no
// other subsystem: interrupt flag/enable, joypad, network control,
// RTC, and the speed switch.
type Bus struct {
	wram []byte
	sram []byte
	xram []byte

	Timer *timer.Timer
	APU   *apu.APU
	PPU   *ppu.PPU

	ifReg regs.IF
	ie    regs.IE

	net     hostio.NetLink
	clock   hostio.Clock
	netData byte

	joypSelect byte
	joypad     byte
	joypLower4 byte

	rtcSec, rtcMin, rtcHour byte
	rtcDayLow, rtcDayHigh   byte
	rtcCtl                  byte

	doubleSpeed bool
}

// New wires a Bus and its owned subsystems from the parsed program
// header. RAM regions are sized to the header's requests; the header
// is validated before the engine is constructed, so no size checks
// recur here.
func New(cfg Config) *Bus {
	b := &Bus{
		net:   cfg.Net,
		clock: cfg.Clock,
	}
	if b.net == nil {
		b.net = hostio.NoNet{}
	}
	if b.clock == nil {
		b.clock = hostio.SystemClock{}
	}
	if cfg.Header != nil {
		b.wram = make([]byte, cfg.Header.WRAMSize)
		b.sram = make([]byte, cfg.Header.SRAMSize)
		b.xram = make([]byte, cfg.Header.XRAMSize)
	}

	sink := regs.SinkFunc(func(bit int) { b.ifReg.Set(bit) })
	b.Timer = timer.New(sink)
	b.APU = apu.New(cfg.SampleRate, nil)
	b.PPU = ppu.New(sink)
	b.PPU.SetBusReader(b.Read)
	b.joypLower4 = 0x0F
	return b
}

// Read decodes addr and returns the byte there, or 0xFF for unmapped
// or mode-blocked locations.
func (b *Bus) Read(addr uint32) byte {
	switch {
	case addr >= PortPageBase:
		return b.readPort(addr)
	case inWindow(addr, WRAMBase, WRAMWindow):
		return ramRead(b.wram, addr-WRAMBase)
	case inWindow(addr, SRAMBase, SRAMWindow):
		return ramRead(b.sram, addr-SRAMBase)
	case inWindow(addr, XRAMBase, XRAMWindow):
		return ramRead(b.xram, addr-XRAMBase)
	case inWindow(addr, ScreenBase, ScreenSize):
		return b.PPU.Framebuffer()[addr-ScreenBase]
	case inWindow(addr, NetRecvBase, NetWindow):
		if v, ok := b.net.Recv(); ok {
			return v
		}
		return 0xFF
	case inWindow(addr, VRAMBase, VRAMWindow):
		return b.PPU.ReadVRAM(uint16(addr - VRAMBase))
	case inWindow(addr, CRAMBase, CRAMWindow):
		return b.PPU.ReadCRAM(byte(addr - CRAMBase))
	case inWindow(addr, OAMBase, OAMWindow):
		return b.PPU.ReadOAM(byte(addr - OAMBase))
	case inWindow(addr, WaveRAMBase, WaveRAMWindow):
		return b.APU.CPURead(apuWaveRAMPort + (addr - WaveRAMBase))
	default:
		return 0xFF
	}
}

// Write decodes addr and stores v there; unmapped and blocked writes
// are discarded.
func (b *Bus) Write(addr uint32, v byte) {
	switch {
	case addr >= PortPageBase:
		b.writePort(addr, v)
	case inWindow(addr, WRAMBase, WRAMWindow):
		ramWrite(b.wram, addr-WRAMBase, v)
	case inWindow(addr, SRAMBase, SRAMWindow):
		ramWrite(b.sram, addr-SRAMBase, v)
	case inWindow(addr, XRAMBase, XRAMWindow):
		ramWrite(b.xram, addr-XRAMBase, v)
	case inWindow(addr, ScreenBase, ScreenSize):
		// read-only framebuffer shadow
	case inWindow(addr, NetSendBase, NetWindow):
		b.net.Send(v)
	case inWindow(addr, VRAMBase, VRAMWindow):
		b.PPU.WriteVRAM(uint16(addr-VRAMBase), v)
	case inWindow(addr, CRAMBase, CRAMWindow):
		b.PPU.WriteCRAM(byte(addr-CRAMBase), v)
	case inWindow(addr, OAMBase, OAMWindow):
		b.PPU.WriteOAM(byte(addr-OAMBase), v)
	case inWindow(addr, WaveRAMBase, WaveRAMWindow):
		b.APU.CPUWrite(apuWaveRAMPort+(addr-WaveRAMBase), v)
	}
}

func inWindow(addr, base, size uint32) bool {
	return addr >= base && addr < base+size
}

func ramRead(ram []byte, off uint32) byte {
	if int(off) >= len(ram) {
		return 0xFF
	}
	return ram[off]
}

func ramWrite(ram []byte, off uint32, v byte) {
	if int(off) < len(ram) {
		ram[off] = v
	}
}

func (b *Bus) readPort(addr uint32) byte {
	off := byte(addr)
	switch {
	case isAPUPort(off):
		return b.APU.CPURead(addr)
	case isPPUPort(off):
		return b.PPU.ReadPort(addr)
	}

	switch addr {
	case portJOYP:
		return b.readJOYP()
	case portNETD:
		return b.netData
	case portNETC:
		return 0x7E
	case portDIV:
		return b.Timer.DIV()
	case portTIMA:
		return b.Timer.TIMA
	case portTMA:
		return b.Timer.TMA
	case portTAC:
		return b.Timer.ReadTAC()
	case portRTCS:
		return b.rtcSec
	case portRTCM:
		return b.rtcMin
	case portRTCH:
		return b.rtcHour
	case portRTCDH:
		return b.rtcDayHigh
	case portRTCDL:
		return b.rtcDayLow
	case portRTCL:
		return 0xFF
	case portRTCR:
		return b.rtcCtl
	case portIF:
		return 0xC0 | b.ifReg.Byte()
	case portKEY1:
		v := byte(0x7E)
		if b.doubleSpeed {
			v |= 0x80
		}
		return v
	case portIE:
		return b.ie.Byte()
	default:
		return 0xFF
	}
}

func (b *Bus) writePort(addr uint32, v byte) {
	off := byte(addr)
	switch {
	case isAPUPort(off):
		b.APU.CPUWrite(addr, v)
		return
	case isPPUPort(off):
		b.PPU.WritePort(addr, v)
		return
	}

	switch addr {
	case portJOYP:
		b.joypSelect = v & 0x30
		b.updateJoypadIRQ()
	case portNETD:
		b.netData = v
	case portNETC:
		// Starting a transfer pushes the data byte onto the link and
		// completes immediately, raising the NET interrupt.
		if v&0x80 != 0 {
			b.net.Send(b.netData)
			if r, ok := b.net.Recv(); ok {
				b.netData = r
			}
			b.ifReg.Set(regs.IRQNet)
		}
	case portDIV:
		b.Timer.WriteDIV()
	case portTIMA:
		b.Timer.TIMA = v
	case portTMA:
		b.Timer.TMA = v
	case portTAC:
		b.Timer.WriteTAC(v)
	case portRTCL:
		b.latchRTC()
	case portRTCR:
		b.rtcCtl = v
	case portIF:
		b.ifReg = regs.IF(v & 0x3F)
	case portKEY1:
		if v&1 != 0 {
			b.doubleSpeed = !b.doubleSpeed
			b.APU.SetDoubleSpeed(b.doubleSpeed)
		}
	case portIE:
		b.ie = regs.IE(v)
	}
}

// latchRTC snapshots the injected clock into the RTC registers. The
// day counter is the day of the year, split across DL/DH.
func (b *Bus) latchRTC() {
	now := b.clock.Now()
	b.rtcSec = byte(now.Second())
	b.rtcMin = byte(now.Minute())
	b.rtcHour = byte(now.Hour())
	day := now.YearDay()
	b.rtcDayLow = byte(day)
	b.rtcDayHigh = byte(day >> 8)
}

// TickCycle advances every subsystem by one bus cycle in the normative
// order: Timer, then APU (clocked by DIV's bit-4 falling edge), then
// PPU by 4 dots, then one pending OAM-DMA byte. A bus cycle spans four
// master cycles, so the timer divider steps four times.
func (b *Bus) TickCycle() {
	edge := false
	for i := 0; i < 4; i++ {
		b.Timer.Tick()
		if b.Timer.DivBit4FallingEdge(b.doubleSpeed) {
			edge = true
		}
	}
	b.APU.Tick(edge)
	b.PPU.Tick(4)
	b.PPU.StepOAMDMAByte()
}

// Reset restores power-on state across the owned subsystems and the
// glue registers. RAM contents persist, matching a warm reset.
func (b *Bus) Reset() {
	b.Timer.Reset()
	b.APU.Reset()
	b.PPU.Reset()
	b.ifReg, b.ie = 0, 0
	b.joypSelect, b.joypad, b.joypLower4 = 0, 0, 0x0F
	b.doubleSpeed = false
	b.APU.SetDoubleSpeed(false)
}

// Press marks a joypad button held, raising the JOYPAD interrupt on a
// high-to-low line transition under the active select group.
func (b *Bus) Press(btn Button) {
	b.joypad |= byte(btn)
	b.updateJoypadIRQ()
}

// Release marks a joypad button released.
func (b *Bus) Release(btn Button) {
	b.joypad &^= byte(btn)
	b.updateJoypadIRQ()
}

func (b *Bus) readJOYP() byte {
	return 0xC0 | (b.joypSelect & 0x30) | b.lowerJOYP()
}

// lowerJOYP computes the active-low button lines for the selected
// group(s).
func (b *Bus) lowerJOYP() byte {
	res := byte(0x0F)
	if b.joypSelect&0x10 == 0 { // directional pad selected
		res &^= b.joypad & 0x0F
	}
	if b.joypSelect&0x20 == 0 { // action buttons selected
		res &^= b.joypad >> 4
	}
	return res
}

func (b *Bus) updateJoypadIRQ() {
	newLower := b.lowerJOYP()
	if b.joypLower4&^newLower != 0 {
		b.ifReg.Set(regs.IRQJoypad)
	}
	b.joypLower4 = newLower
}

// RequestInterrupt raises an interrupt flag bit; subsystems normally
// go through their construction-time sink, but external collaborators
// (the CPU, host glue) use this.
func (b *Bus) RequestInterrupt(bit int) { b.ifReg.Set(bit) }

// PendingInterrupt returns the lowest enabled pending interrupt.
func (b *Bus) PendingInterrupt() (bit int, ok bool) {
	return regs.Pending(b.ifReg, b.ie)
}

// AcknowledgeInterrupt clears one interrupt flag bit, the atomic
// clear performed when the CPU vectors to a handler.
func (b *Bus) AcknowledgeInterrupt(bit int) { b.ifReg.Clear(bit) }

// IF returns the raw interrupt-flag byte.
func (b *Bus) IF() byte { return b.ifReg.Byte() }

// IE returns the raw interrupt-enable byte.
func (b *Bus) IE() byte { return b.ie.Byte() }

// DoubleSpeed reports the current speed-switch state.
func (b *Bus) DoubleSpeed() bool { return b.doubleSpeed }

// SRAM exposes the battery-backed region for host persistence.
func (b *Bus) SRAM() []byte { return b.sram }

// LoadSRAM copies previously saved SRAM contents in, truncating to the
// program-requested size.
func (b *Bus) LoadSRAM(data []byte) { copy(b.sram, data) }
