package regs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIFSetClearPending(t *testing.T) {
	var f IF
	require.False(t, f.Pending(IRQVBlank))
	f.Set(IRQVBlank)
	require.True(t, f.Pending(IRQVBlank))
	require.Equal(t, byte(0x01), f.Byte())
	f.Clear(IRQVBlank)
	require.False(t, f.Pending(IRQVBlank))
}

func TestPendingPicksLowestEnabledBit(t *testing.T) {
	var f IF
	f.Set(IRQTimer)
	f.Set(IRQVBlank)
	e := IE(1<<IRQTimer | 1<<IRQVBlank)

	bit, ok := Pending(f, e)
	require.True(t, ok)
	require.Equal(t, IRQVBlank, bit)
}

func TestPendingRequiresEnable(t *testing.T) {
	var f IF
	f.Set(IRQJoypad)
	_, ok := Pending(f, IE(0))
	require.False(t, ok)
}

func TestWithBit(t *testing.T) {
	require.Equal(t, byte(0b0000_0100), WithBit(0, 2, true))
	require.Equal(t, byte(0), WithBit(0b0000_0100, 2, false))
	require.True(t, IsSet(0b1000, 3))
}
