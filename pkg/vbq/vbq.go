// Package vbq is the minimal host side of a video buffer queue: it owns
// buffer allocation from a coherent DMA pool, tracks which buffers the
// driver currently holds, and delivers completions to the application.
package vbq

import (
	"errors"
	"sync"

	"github.com/embedcam/csirx/pkg/csirx"
	"github.com/embedcam/csirx/pkg/dma"
)

var (
	ErrBusy     = errors.New("vbq: buffers in flight")
	ErrNoSetup  = errors.New("vbq: queue not set up")
	ErrBadIndex = errors.New("vbq: bad buffer index")
)

// Completion - a buffer handed back by the driver.
type Completion struct {
	Buf   *csirx.Buffer
	State csirx.BufState
}

// Queue owns the frame buffers of one capture device.
type Queue struct {
	dev   *csirx.Device
	alloc dma.Allocator

	mu    sync.Mutex
	size  uint32
	bufs  []*csirx.Buffer
	owned map[*csirx.Buffer]bool

	completions chan Completion
	drops       int
}

func New(dev *csirx.Device, alloc dma.Allocator) *Queue {
	q := &Queue{
		dev:         dev,
		alloc:       alloc,
		owned:       map[*csirx.Buffer]bool{},
		completions: make(chan Completion, 32),
	}
	dev.Done = q.done
	return q
}

// Setup negotiates the buffer count with the driver and allocates the
// regions. The driver may raise the count to keep its pipeline fed.
func (q *Queue) Setup(requested int) (int, error) {
	count, size, err := q.dev.QueueSetup(requested)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.owned) > 0 {
		return 0, ErrBusy
	}

	q.freeLocked()

	for i := 0; i < count; i++ {
		r, err := q.alloc.Alloc(size)
		if err != nil {
			q.freeLocked()
			return 0, err
		}
		q.bufs = append(q.bufs, &csirx.Buffer{Region: r})
	}

	q.size = size
	return count, nil
}

// Enqueue prepares buffer i and hands it to the driver.
func (q *Queue) Enqueue(i int) error {
	q.mu.Lock()
	if q.bufs == nil {
		q.mu.Unlock()
		return ErrNoSetup
	}
	if i < 0 || i >= len(q.bufs) {
		q.mu.Unlock()
		return ErrBadIndex
	}
	b := q.bufs[i]
	q.mu.Unlock()

	return q.Requeue(b)
}

// Requeue hands a completed buffer straight back to the driver.
//
// Prepare runs before the ownership bookkeeping on purpose: it takes the
// driver's session lock, which the driver may hold while handing buffers
// back to us.
func (q *Queue) Requeue(b *csirx.Buffer) error {
	if err := q.dev.Prepare(b); err != nil {
		return err
	}

	q.mu.Lock()
	if q.owned[b] {
		q.mu.Unlock()
		return errors.New("vbq: buffer already queued")
	}
	q.owned[b] = true
	q.mu.Unlock()

	q.dev.Enqueue(b)
	return nil
}

func (q *Queue) StreamOn() error {
	return q.dev.StartStreaming()
}

func (q *Queue) StreamOff() {
	q.dev.StopStreaming()
}

// Completions delivers buffers as the driver finishes with them.
func (q *Queue) Completions() <-chan Completion {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completions
}

// IsBusy reports whether the driver holds any buffer.
func (q *Queue) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.owned) > 0
}

// Drops counts completions lost because the application did not drain the
// channel in time.
func (q *Queue) Drops() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}

// Close releases all regions. The queue must be idle.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.owned) > 0 {
		return ErrBusy
	}
	q.freeLocked()
	return nil
}

func (q *Queue) freeLocked() {
	for _, b := range q.bufs {
		q.alloc.Free(b.Region)
	}
	q.bufs = nil
	q.size = 0
}

// done runs in interrupt context: no blocking, no calls back into the
// driver.
func (q *Queue) done(b *csirx.Buffer, state csirx.BufState) {
	q.mu.Lock()
	delete(q.owned, b)
	ch := q.completions
	q.mu.Unlock()

	select {
	case ch <- Completion{Buf: b, State: state}:
	default:
		q.mu.Lock()
		q.drops++
		q.mu.Unlock()
	}
}
