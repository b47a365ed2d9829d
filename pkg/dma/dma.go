// Package dma provides coherent DMA memory regions: blocks visible both to
// the CPU (as a byte slice) and to a bus master peripheral (as a bus
// address). The Pool implementation carves page-aligned regions out of one
// contiguous arena, the way a platform consistent-memory allocator does.
package dma

import (
	"errors"
	"sort"
	"sync"
)

var ErrNoMemory = errors.New("dma: out of memory")

const pageSize = 4096

// Region - a single coherent allocation.
type Region struct {
	CPU []byte // CPU view, len == allocated size
	Bus uint32 // device view
}

type Allocator interface {
	Alloc(size uint32) (*Region, error)
	Free(r *Region)
}

type span struct {
	off, size uint32
}

// Pool allocates from a contiguous arena with a first-fit free list.
type Pool struct {
	mu    sync.Mutex
	arena []byte
	base  uint32
	free  []span
}

// NewPool creates an arena of size bytes appearing at bus address base.
// Size is rounded up to a whole number of pages.
func NewPool(base, size uint32) *Pool {
	size = alignPage(size)
	return &Pool{
		arena: make([]byte, size),
		base:  base,
		free:  []span{{0, size}},
	}
}

func (p *Pool) Alloc(size uint32) (*Region, error) {
	if size == 0 {
		return nil, errors.New("dma: zero size")
	}
	size = alignPage(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.free {
		if s.size < size {
			continue
		}
		if s.size == size {
			p.free = append(p.free[:i], p.free[i+1:]...)
		} else {
			p.free[i] = span{s.off + size, s.size - size}
		}
		return &Region{
			CPU: p.arena[s.off : s.off+size : s.off+size],
			Bus: p.base + s.off,
		}, nil
	}

	return nil, ErrNoMemory
}

func (p *Pool) Free(r *Region) {
	if r == nil {
		return
	}

	off := r.Bus - p.base
	size := uint32(len(r.CPU))

	p.mu.Lock()
	p.free = append(p.free, span{off, size})
	sort.Slice(p.free, func(i, j int) bool { return p.free[i].off < p.free[j].off })

	// merge neighbours
	for i := 0; i < len(p.free)-1; {
		if p.free[i].off+p.free[i].size == p.free[i+1].off {
			p.free[i].size += p.free[i+1].size
			p.free = append(p.free[:i+1], p.free[i+2:]...)
		} else {
			i++
		}
	}
	p.mu.Unlock()
}

// Slice returns the CPU view of an arbitrary bus address range inside the
// arena. Used by hardware simulation to play the bus master.
func (p *Pool) Slice(bus, size uint32) ([]byte, error) {
	if bus < p.base || bus+size > p.base+uint32(len(p.arena)) {
		return nil, errors.New("dma: address outside arena")
	}
	off := bus - p.base
	return p.arena[off : off+size : off+size], nil
}

func alignPage(v uint32) uint32 {
	return (v + pageSize - 1) &^ (pageSize - 1)
}
