//go:build linux

package irq

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// UIO is a Line backed by a userspace-io device. A blocking read of 4
// bytes returns the interrupt count; writing 1 re-enables the line for
// drivers that mask it on delivery.
type UIO struct {
	fd int
}

func OpenUIO(path string) (*UIO, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("irq: open %s: %w", path, err)
	}
	return &UIO{fd: fd}, nil
}

func (u *UIO) Wait() (uint32, error) {
	var buf [4]byte

	// unmask
	binary.LittleEndian.PutUint32(buf[:], 1)
	if _, err := unix.Write(u.fd, buf[:]); err != nil {
		return 0, fmt.Errorf("irq: unmask: %w", err)
	}

	n, err := unix.Read(u.fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("irq: wait: %w", err)
	}
	if n != 4 {
		return 0, ErrClosed
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (u *UIO) Close() error {
	return unix.Close(u.fd)
}
