// Package csirx implements a driver for a CSI-2 camera receiver peripheral:
// format negotiation against an attached sensor, register level bring-up of
// the receive pipeline, and the interrupt driven double-buffered DMA
// hand-off of captured frames.
package csirx

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/embedcam/csirx/pkg/dma"
	"github.com/embedcam/csirx/pkg/mmio"
	"github.com/embedcam/csirx/pkg/sensor"
)

var (
	ErrBusy      = errors.New("csirx: busy")
	ErrNoBuffers = errors.New("csirx: no buffers queued")
	ErrNoFormat  = errors.New("csirx: format not set")
	ErrBadFormat = errors.New("csirx: unsupported format")
	ErrLanes     = errors.New("csirx: sensor wants more data lanes than wired")
)

// Bus - receive mode of the peripheral.
type Bus byte

const (
	BusCSI2 Bus = iota // CSI-2 D-PHY
	BusCCP2            // legacy compact camera port
)

// BufState is the state a buffer is handed back in.
type BufState byte

const (
	BufDone    BufState = iota // frame captured
	BufError                   // flushed without completing
	BufRequeue                 // never reached hardware, queue it again
)

func (s BufState) String() string {
	switch s {
	case BufDone:
		return "done"
	case BufError:
		return "error"
	case BufRequeue:
		return "requeue"
	}
	return "unknown"
}

// Buffer - one DMA frame buffer owned by the pipeline from Enqueue until it
// comes back through the Done callback.
type Buffer struct {
	Region *dma.Region

	// Filled in by the interrupt handler.
	Sequence  uint32
	Timestamp time.Time
}

// Clock - the peripheral's functional clock source.
type Clock interface {
	SetRate(hz int64) error
	Enable() error
	Disable()
}

// Power - runtime power domain of the peripheral.
type Power interface {
	Get() error
	Put()
}

type nopClock struct{}

func (nopClock) SetRate(int64) error { return nil }
func (nopClock) Enable() error       { return nil }
func (nopClock) Disable()            {}

type nopPower struct{}

func (nopPower) Get() error { return nil }
func (nopPower) Put()       {}

// Config - static per-peripheral description, known at attach time and
// immutable thereafter.
type Config struct {
	Reg     mmio.Port // main peripheral block
	ClkGate mmio.Port // lane clock gate block

	Sensor sensor.Subdev
	Clock  Clock // optional
	Power  Power // optional

	Bus             Bus
	ContinuousClock bool   // CSI-2 continuous clock lane
	StrobeMode      uint32 // CCP2 data/clock mode
	VirtualChannel  uint8
	MaxDataLanes    int

	Log zerolog.Logger
}

// Device - one physical receiver peripheral. Created at attach, destroyed
// at detach. All synchronous operations (format set, start, stop, open,
// release) serialize on an internal session lock; Enqueue and ISR touch
// only the queue lock and never block.
type Device struct {
	log zerolog.Logger

	reg     mmio.Port
	clkGate mmio.Port
	snsr    sensor.Subdev
	clock   Clock
	power   Power

	bus             Bus
	continuousClock bool
	strobeMode      uint32
	virtualChannel  uint8
	maxDataLanes    int

	// Done receives every buffer leaving the pipeline. Must be set before
	// the first Enqueue. Called from interrupt context: must not block and
	// must not call back into the Device.
	Done func(*Buffer, BufState)

	mu      sync.Mutex // session lock, never taken from interrupt context
	openers int

	fmt         *Format
	pix         PixFormat
	wire        sensor.Format
	activeLanes int

	streaming int32 // atomic, read from interrupt context

	// Queue lock. Protects queue, cur, next and sequence from both
	// concurrency domains. No blocking work while held.
	qmu   sync.Mutex
	queue []*Buffer
	cur   *Buffer
	next  *Buffer

	sequence uint32
}

func New(cfg Config) (*Device, error) {
	if cfg.Reg == nil || cfg.ClkGate == nil {
		return nil, errors.New("csirx: register ports not set")
	}
	if cfg.Sensor == nil {
		return nil, errors.New("csirx: sensor not set")
	}
	if cfg.MaxDataLanes < 1 || cfg.MaxDataLanes > 4 {
		return nil, errors.New("csirx: data lanes must be 1..4")
	}

	d := &Device{
		log:             cfg.Log,
		reg:             cfg.Reg,
		clkGate:         cfg.ClkGate,
		snsr:            cfg.Sensor,
		clock:           cfg.Clock,
		power:           cfg.Power,
		bus:             cfg.Bus,
		continuousClock: cfg.ContinuousClock,
		strobeMode:      cfg.StrobeMode,
		virtualChannel:  cfg.VirtualChannel,
		maxDataLanes:    cfg.MaxDataLanes,
		Done:            func(*Buffer, BufState) {},
	}
	if d.clock == nil {
		d.clock = nopClock{}
	}
	if d.power == nil {
		d.power = nopPower{}
	}

	// Adopt the sensor's current format so the device is usable before the
	// first SetFormat.
	if err := d.initFormat(); err != nil {
		return nil, err
	}

	return d, nil
}

// initFormat mirrors what SetFormat ends with: pick a catalog entry for
// whatever the sensor is currently producing, falling back to the first
// mutually supported code.
func (d *Device) initFormat() error {
	wire, err := d.snsr.GetFormat()
	if err != nil {
		return err
	}

	f := FormatByCode(wire.Code)
	if f == nil {
		if f = firstSupportedFormat(d.snsr); f == nil {
			return ErrBadFormat
		}
		wire.Code = f.Code
		if wire, err = d.snsr.SetFormat(wire, false); err != nil {
			return err
		}
	}
	if wire.Interlaced {
		wire.Interlaced = false
		if wire, err = d.snsr.SetFormat(wire, false); err != nil {
			return err
		}
	}

	d.fmt = f
	d.pix = PixFormat{Width: wire.Width, Height: wire.Height, PixFmt: f.deliveredPixFmt()}
	calcFormatSize(f, &d.pix)
	d.wire = wire
	return nil
}

func (f *Format) deliveredPixFmt() uint32 {
	if f.PixFmt != 0 {
		return f.PixFmt
	}
	return f.RepackedPixFmt
}

// Open powers the sensor up on the zero-to-one transition.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openers == 0 {
		if err := d.snsr.SetPower(true); err != nil && !errors.Is(err, sensor.ErrNotSupported) {
			return err
		}
	}
	d.openers++
	return nil
}

// Release powers the sensor down on the one-to-zero transition.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openers == 0 {
		return
	}
	if d.openers--; d.openers == 0 {
		if err := d.snsr.SetPower(false); err != nil && !errors.Is(err, sensor.ErrNotSupported) {
			d.log.Warn().Err(err).Msg("[csirx] sensor power off")
		}
	}
}

// Format returns the current negotiated geometry.
func (d *Device) Format() PixFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pix
}

// QueueSetup tells the host how many buffers of what size to allocate.
// Fewer than three buffers can't keep the double-buffered pipeline fed.
func (d *Device) QueueSetup(requested int) (count int, size uint32, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fmt == nil || d.pix.SizeImage == 0 {
		return 0, 0, ErrNoFormat
	}
	if requested < 3 {
		requested = 3
	}
	return requested, d.pix.SizeImage, nil
}

// Prepare validates a buffer before it may be queued.
func (d *Device) Prepare(b *Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fmt == nil {
		return ErrNoFormat
	}
	if uint32(len(b.Region.CPU)) < d.pix.SizeImage {
		return errors.New("csirx: buffer smaller than image")
	}
	return nil
}

// Enqueue hands a buffer to the pipeline. Safe to call while streaming,
// including concurrently with the interrupt handler.
func (d *Device) Enqueue(b *Buffer) {
	d.qmu.Lock()
	d.queue = append(d.queue, b)
	d.qmu.Unlock()
}

// pipelineIdle reports whether hardware currently owns any buffer.
// Callers hold d.mu.
func (d *Device) pipelineIdle() bool {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	return !d.isStreaming() && d.cur == nil && d.next == nil && len(d.queue) == 0
}

func (d *Device) isStreaming() bool {
	return atomic.LoadInt32(&d.streaming) != 0
}

// StartStreaming brings the pipeline up. At least one buffer must be
// queued. On any failure the bring-up unwinds in strict reverse order and
// every buffer still held comes back through Done as BufRequeue.
func (d *Device) StartStreaming() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.qmu.Lock()
	if len(d.queue) == 0 {
		d.qmu.Unlock()
		return ErrNoBuffers
	}
	buf := d.queue[0]
	d.queue = d.queue[1:]
	d.cur = buf
	d.next = buf
	d.qmu.Unlock()

	d.sequence = 0

	err := d.power.Get()
	if err != nil {
		d.log.Debug().Err(err).Msg("[csirx] power get")
		d.requeueAll()
		return err
	}

	if err = d.resolveLanes(); err == nil {
		if err = d.clock.SetRate(100 * 1000 * 1000); err != nil {
			d.log.Error().Err(err).Msg("[csirx] set clock rate")
		} else if err = d.clock.Enable(); err != nil {
			d.log.Error().Err(err).Msg("[csirx] enable clock")
		}
	}
	if err != nil {
		d.power.Put()
		d.requeueAll()
		return err
	}

	atomic.StoreInt32(&d.streaming, 1)

	d.startRX(buf.Region.Bus)

	if err = d.snsr.SetStream(true); err != nil {
		d.log.Error().Err(err).Msg("[csirx] stream on failed in sensor")
		atomic.StoreInt32(&d.streaming, 0)
		d.disableRX()
		d.clock.Disable()
		d.power.Put()
		d.requeueAll()
		return err
	}

	d.log.Debug().
		Int("lanes", d.activeLanes).
		Uint32("seq", d.sequence).
		Msg("[csirx] streaming started")

	return nil
}

// StopStreaming quiesces the hardware and flushes every held buffer as
// BufError. Sensor stream-off failure is logged, never fatal: the
// peripheral teardown proceeds regardless. Safe to call after a failed
// StartStreaming.
func (d *Device) StopStreaming() {
	d.mu.Lock()
	defer d.mu.Unlock()

	atomic.StoreInt32(&d.streaming, 0)

	if err := d.snsr.SetStream(false); err != nil {
		d.log.Error().Err(err).Msg("[csirx] stream off failed in sensor")
	}

	d.disableRX()

	d.flushAll(BufError)

	d.clock.Disable()
	d.power.Put()
}

// resolveLanes picks the active lane count from the sensor's bus config
// hint, clamped to what is physically wired. Callers hold d.mu.
func (d *Device) resolveLanes() error {
	d.activeLanes = d.maxDataLanes

	if d.bus != BusCSI2 {
		return nil
	}

	bc, err := d.snsr.BusConfig()
	if err != nil {
		if errors.Is(err, sensor.ErrNotSupported) {
			return nil
		}
		return err
	}
	if bc.DataLanes > 0 {
		d.activeLanes = bc.DataLanes
	}
	if d.activeLanes > d.maxDataLanes {
		d.log.Error().
			Int("requested", d.activeLanes).
			Int("wired", d.maxDataLanes).
			Msg("[csirx] lane count")
		return ErrLanes
	}
	return nil
}

// requeueAll returns every held buffer to the caller as BufRequeue after a
// failed start. No buffer may be silently dropped here.
func (d *Device) requeueAll() {
	d.flushAll(BufRequeue)
}

func (d *Device) flushAll(state BufState) {
	d.qmu.Lock()
	bufs := d.queue
	d.queue = nil
	cur, next := d.cur, d.next
	d.cur, d.next = nil, nil
	d.qmu.Unlock()

	for _, b := range bufs {
		d.Done(b, state)
	}
	if cur != nil {
		d.Done(cur, state)
	}
	if next != nil && next != cur {
		d.Done(next, state)
	}
}
