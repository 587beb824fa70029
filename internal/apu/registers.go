package apu

// Register addresses on the hardware-port page 0xFFFFFF00-0xFFFFFFFF,
// with each register at the same low-byte offset the console's
// real-hardware inspiration uses (NR10 at ...10, Wave RAM at
// ...30-...3F, and so on).
const (
	regNR10 = 0xFFFFFF10
	regNR11 = 0xFFFFFF11
	regNR12 = 0xFFFFFF12
	regNR13 = 0xFFFFFF13
	regNR14 = 0xFFFFFF14

	regNR21 = 0xFFFFFF16
	regNR22 = 0xFFFFFF17
	regNR23 = 0xFFFFFF18
	regNR24 = 0xFFFFFF19

	regNR30 = 0xFFFFFF1A
	regNR31 = 0xFFFFFF1B
	regNR32 = 0xFFFFFF1C
	regNR33 = 0xFFFFFF1D
	regNR34 = 0xFFFFFF1E

	regNR41 = 0xFFFFFF20
	regNR42 = 0xFFFFFF21
	regNR43 = 0xFFFFFF22
	regNR44 = 0xFFFFFF23

	regNR50 = 0xFFFFFF24
	regNR51 = 0xFFFFFF25
	regNR52 = 0xFFFFFF26

	waveRAMBase = 0xFFFFFF30
	waveRAMEnd  = 0xFFFFFF3F

	regPCM12 = 0xFFFFFF76
	regPCM34 = 0xFFFFFF77
)

func isWaveRAM(addr uint32) bool {
	return addr >= waveRAMBase && addr <= waveRAMEnd
}
