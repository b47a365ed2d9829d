// Package mmio provides 32-bit register access to memory mapped peripherals.
package mmio

import "sync"

// Port - read/write access to a block of 32-bit registers by byte offset.
// Implementations must tolerate concurrent callers.
type Port interface {
	Read32(offset uint32) uint32
	Write32(offset, value uint32)
}

// Mem is a Port backed by ordinary memory. Used in tests and in simulation
// mode instead of a real peripheral mapping.
//
// WriteHook, when set, decides the stored value. Hardware quirks like
// write-one-to-clear status registers live in the hook, not here.
type Mem struct {
	mu   sync.Mutex
	regs map[uint32]uint32

	WriteHook func(offset, old, value uint32) uint32
}

func NewMem() *Mem {
	return &Mem{regs: map[uint32]uint32{}}
}

func (m *Mem) Read32(offset uint32) uint32 {
	m.mu.Lock()
	v := m.regs[offset]
	m.mu.Unlock()
	return v
}

func (m *Mem) Write32(offset, value uint32) {
	m.mu.Lock()
	if m.WriteHook != nil {
		value = m.WriteHook(offset, m.regs[offset], value)
	}
	m.regs[offset] = value
	m.mu.Unlock()
}

// Set - set bits in a register without going through WriteHook.
// This is the "hardware side" of a Mem port.
func (m *Mem) Set(offset, bits uint32) {
	m.mu.Lock()
	m.regs[offset] |= bits
	m.mu.Unlock()
}

func (m *Mem) Clear(offset, bits uint32) {
	m.mu.Lock()
	m.regs[offset] &^= bits
	m.mu.Unlock()
}

func (m *Mem) Poke(offset, value uint32) {
	m.mu.Lock()
	m.regs[offset] = value
	m.mu.Unlock()
}
