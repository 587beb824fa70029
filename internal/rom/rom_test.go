package rom

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildImage(name, author, desc string, wram, sram, xram uint32) []byte {
	img := make([]byte, MinImageSize)
	copy(img[offMagic:], magic[:])
	binary.LittleEndian.PutUint32(img[offVersion:], 0x01_02_0003)
	binary.LittleEndian.PutUint32(img[offWRAMSize:], wram)
	binary.LittleEndian.PutUint32(img[offSRAMSize:], sram)
	binary.LittleEndian.PutUint32(img[offXRAMSize:], xram)
	copy(img[offName:], name)
	copy(img[offAuthor:], author)
	copy(img[offDescription:], desc)
	return img
}

func TestLoadValid(t *testing.T) {
	img := buildImage("Test Game", "Jane Dev", "a description", 8192, 2048, 0)
	h, err := Load(img)
	require.NoError(t, err)
	require.Equal(t, "Test Game", h.Name)
	require.Equal(t, "Jane Dev", h.Author)
	require.Equal(t, "a description", h.Description)
	require.EqualValues(t, 8192, h.WRAMSize)
	require.Equal(t, Version{Major: 1, Minor: 2, Patch: 3}, h.Version)
}

func TestLoadBadMagic(t *testing.T) {
	img := buildImage("X", "Y", "Z", 0, 0, 0)
	img[0] = 'X'
	_, err := Load(img)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestLoadShortImage(t *testing.T) {
	_, err := Load(make([]byte, 100))
	require.ErrorIs(t, err, ErrShortImage)
}

func TestLoadOversizeWRAM(t *testing.T) {
	img := buildImage("X", "Y", "Z", MaxWRAMSize+1, 0, 0)
	_, err := Load(img)
	require.ErrorIs(t, err, ErrWRAMOversize)
}

func TestLoadUnterminatedString(t *testing.T) {
	img := buildImage("X", "Y", "Z", 0, 0, 0)
	for i := offName; i < offName+nameLen; i++ {
		img[i] = 'A'
	}
	_, err := Load(img)
	require.ErrorIs(t, err, ErrUnterminatedString)
}
