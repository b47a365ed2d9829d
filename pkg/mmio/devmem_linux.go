//go:build linux

package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Dev is a Port over a physical register block mapped via /dev/mem.
type Dev struct {
	mem  []byte
	base unsafe.Pointer
}

// OpenDev maps size bytes of physical address space starting at phys.
// phys doesn't have to be page aligned.
func OpenDev(phys uint64, size uint32) (*Dev, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open /dev/mem: %w", err)
	}
	defer unix.Close(fd)

	pageSize := uint64(unix.Getpagesize())
	page := phys &^ (pageSize - 1)
	skip := phys - page

	length := (uint64(size) + skip + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(fd, int64(page), int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap %08x: %w", phys, err)
	}

	return &Dev{mem: mem, base: unsafe.Add(unsafe.Pointer(&mem[0]), int(skip))}, nil
}

func (d *Dev) Read32(offset uint32) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Add(d.base, int(offset))))
}

func (d *Dev) Write32(offset, value uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Add(d.base, int(offset))), value)
}

func (d *Dev) Close() error {
	return unix.Munmap(d.mem)
}
