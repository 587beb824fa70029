package bus

// Address map. Each core region sits in its own 32-bit window; the
// window is the decode range, while the populated size inside it comes
// from the program header. Reads outside any window, or past a
// region's populated size, return 0xFF; writes there are discarded.
const (
	WRAMBase   = 0x00000000
	WRAMWindow = 0x00020000

	SRAMBase   = 0x01000000
	SRAMWindow = 0x00020000

	XRAMBase   = 0x02000000
	XRAMWindow = 0x00010000

	ScreenBase = 0x03000000
	ScreenSize = 160 * 144 * 4

	NetSendBase = 0x04000000
	NetRecvBase = 0x04001000
	NetWindow   = 0x00001000

	VRAMBase   = 0x05000000
	VRAMWindow = 0x00002000

	CRAMBase   = 0x05010000
	CRAMWindow = 0x00000080

	OAMBase   = 0x05020000
	OAMWindow = 0x000000A0

	WaveRAMBase   = 0x06000000
	WaveRAMWindow = 0x00000010

	// Hardware-port page.
	PortPageBase = 0xFFFFFF00
)

// Bus-owned hardware ports. Timer, APU, and PPU ports on the same page
// are decoded by their owning subsystems.
const (
	portJOYP = 0xFFFFFF00
	portNETD = 0xFFFFFF01
	portNETC = 0xFFFFFF02

	portDIV  = 0xFFFFFF04
	portTIMA = 0xFFFFFF05
	portTMA  = 0xFFFFFF06
	portTAC  = 0xFFFFFF07

	portRTCS  = 0xFFFFFF08
	portRTCM  = 0xFFFFFF09
	portRTCH  = 0xFFFFFF0A
	portRTCDH = 0xFFFFFF0B
	portRTCDL = 0xFFFFFF0C
	portRTCL  = 0xFFFFFF0D
	portRTCR  = 0xFFFFFF0E

	portIF = 0xFFFFFF0F

	portKEY1 = 0xFFFFFF50

	portIE = 0xFFFFFFFF
)

// apuWaveRAMPort is where the APU decodes its wave buffer on the port
// page; the flat Wave RAM window forwards there.
const apuWaveRAMPort = 0xFFFFFF30

// Port-page sub-ranges owned by the APU and PPU (low-byte offsets).
func isAPUPort(off byte) bool {
	return (off >= 0x10 && off <= 0x26) || (off >= 0x30 && off <= 0x3F) ||
		off == 0x76 || off == 0x77
}

func isPPUPort(off byte) bool {
	return (off >= 0x40 && off <= 0x4F) || (off >= 0x51 && off <= 0x57) ||
		(off >= 0x68 && off <= 0x6D) || off == 0x7B
}
