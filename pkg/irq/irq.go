// Package irq delivers peripheral interrupts to a handler function. The
// handler contract mirrors a hardware service routine: it runs on the
// delivery goroutine and must not block.
package irq

import (
	"errors"
	"sync"
)

// Line - one interrupt line. Wait blocks until the next interrupt fires
// and returns the number of interrupts seen so far.
type Line interface {
	Wait() (uint32, error)
	Close() error
}

var ErrClosed = errors.New("irq: line closed")

// Soft is an in-process Line for tests and simulation.
type Soft struct {
	mu     sync.Mutex
	count  uint32
	fired  chan struct{}
	closed bool
}

func NewSoft() *Soft {
	return &Soft{fired: make(chan struct{}, 1)}
}

// Fire raises the line. Coalesces like a level interrupt: multiple fires
// before a Wait deliver once. Firing a closed line is a no-op, so
// producers may race a shutdown.
func (s *Soft) Fire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.count++

	select {
	case s.fired <- struct{}{}:
	default:
	}
}

func (s *Soft) Wait() (uint32, error) {
	if _, ok := <-s.fired; !ok {
		return 0, ErrClosed
	}
	s.mu.Lock()
	n := s.count
	s.mu.Unlock()
	return n, nil
}

func (s *Soft) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.fired)
	}
	return nil
}

// Serve runs handler for every interrupt until the line closes.
func Serve(l Line, handler func()) error {
	for {
		if _, err := l.Wait(); err != nil {
			return err
		}
		handler()
	}
}
