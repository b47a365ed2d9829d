package dma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAlloc(t *testing.T) {
	p := NewPool(0x1000_0000, 64<<10)

	r, err := p.Alloc(100)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1000_0000), r.Bus)
	// allocations are whole pages
	require.Len(t, r.CPU, 4096)

	r2, err := p.Alloc(4096)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1000_1000), r2.Bus)

	_, err = p.Alloc(0)
	require.Error(t, err)
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(0, 8<<10)

	r1, err := p.Alloc(4096)
	require.NoError(t, err)
	_, err = p.Alloc(4096)
	require.NoError(t, err)

	_, err = p.Alloc(1)
	require.ErrorIs(t, err, ErrNoMemory)

	p.Free(r1)
	r3, err := p.Alloc(4096)
	require.NoError(t, err)
	require.Equal(t, r1.Bus, r3.Bus)
}

func TestPoolFreeMerges(t *testing.T) {
	p := NewPool(0, 16<<10)

	r1, _ := p.Alloc(4096)
	r2, _ := p.Alloc(4096)
	r3, _ := p.Alloc(4096)
	r4, _ := p.Alloc(4096)

	// free out of order, then ask for everything at once
	p.Free(r3)
	p.Free(r1)
	p.Free(r4)
	p.Free(r2)

	r, err := p.Alloc(16 << 10)
	require.NoError(t, err)
	require.Equal(t, uint32(0), r.Bus)
}

func TestPoolSlice(t *testing.T) {
	p := NewPool(0x2000, 8<<10)

	r, err := p.Alloc(4096)
	require.NoError(t, err)
	r.CPU[0] = 0xab
	r.CPU[4095] = 0xcd

	// the bus master view aliases the same memory
	s, err := p.Slice(r.Bus, 4096)
	require.NoError(t, err)
	require.Equal(t, byte(0xab), s[0])
	require.Equal(t, byte(0xcd), s[4095])

	_, err = p.Slice(0x1000, 16)
	require.Error(t, err)
	_, err = p.Slice(0x2000, 1<<20)
	require.Error(t, err)
}
