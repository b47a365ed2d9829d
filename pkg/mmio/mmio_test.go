package mmio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMem(t *testing.T) {
	m := NewMem()

	require.Zero(t, m.Read32(0x10))

	m.Write32(0x10, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), m.Read32(0x10))
	require.Zero(t, m.Read32(0x14))
}

func TestMemWriteHook(t *testing.T) {
	m := NewMem()

	// write-one-to-clear, the way hardware status registers behave
	m.WriteHook = func(offset, old, value uint32) uint32 {
		if offset == 0x04 {
			return old &^ value
		}
		return value
	}

	m.Set(0x04, 0b1110)
	m.Write32(0x04, 0b0110)
	require.Equal(t, uint32(0b1000), m.Read32(0x04))

	// other offsets are plain storage
	m.Write32(0x08, 7)
	require.Equal(t, uint32(7), m.Read32(0x08))
}

func TestMemHardwareSide(t *testing.T) {
	m := NewMem()

	m.Poke(0, 0xf0)
	m.Set(0, 0x0f)
	require.Equal(t, uint32(0xff), m.Read32(0))

	m.Clear(0, 0xf0)
	require.Equal(t, uint32(0x0f), m.Read32(0))
}
