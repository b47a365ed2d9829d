package csirx

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/embedcam/csirx/pkg/dma"
	"github.com/embedcam/csirx/pkg/hwsim"
	"github.com/embedcam/csirx/pkg/sensor"
)

// rig wires a Device to a simulated peripheral and sensor and records every
// buffer leaving the pipeline.
type rig struct {
	p    *hwsim.Peripheral
	sim  *sensor.Sim
	dev  *Device
	pool *dma.Pool

	mu   sync.Mutex
	done map[BufState][]*Buffer
}

func newRig(t *testing.T, cfg func(*Config)) *rig {
	r := &rig{
		pool: dma.NewPool(0x1000_0000, 16<<20),
		done: map[BufState][]*Buffer{},
	}
	r.p = hwsim.New(r.pool)
	r.sim = sensor.NewSim(
		[]uint16{sensor.CodeYUYV8_2X8, sensor.CodeUYVY8_2X8, sensor.CodeSBGGR10_1X10},
		sensor.Format{Width: 640, Height: 480, Code: sensor.CodeYUYV8_2X8},
		sensor.BusConfig{DataLanes: 2, ContinuousClock: true},
	)

	c := Config{
		Reg:             r.p.Reg,
		ClkGate:         r.p.Clk,
		Sensor:          r.sim,
		Bus:             BusCSI2,
		ContinuousClock: true,
		MaxDataLanes:    2,
		Log:             zerolog.Nop(),
	}
	if cfg != nil {
		cfg(&c)
	}

	dev, err := New(c)
	require.NoError(t, err)
	r.dev = dev

	dev.Done = func(b *Buffer, s BufState) {
		r.mu.Lock()
		r.done[s] = append(r.done[s], b)
		r.mu.Unlock()
	}
	return r
}

// enqueue allocates and queues n image buffers.
func (r *rig) enqueue(t *testing.T, n int) []*Buffer {
	size := r.dev.Format().SizeImage
	require.NotZero(t, size)

	bufs := make([]*Buffer, n)
	for i := range bufs {
		region, err := r.pool.Alloc(size)
		require.NoError(t, err)
		bufs[i] = &Buffer{Region: region}
		require.NoError(t, r.dev.Prepare(bufs[i]))
		r.dev.Enqueue(bufs[i])
	}
	return bufs
}

func (r *rig) completed(s BufState) []*Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Buffer(nil), r.done[s]...)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Reg: hwsim.New(dma.NewPool(0, 1<<20)).Reg})
	require.Error(t, err)
}

func TestNewAdoptsSensorFormat(t *testing.T) {
	r := newRig(t, nil)

	pix := r.dev.Format()
	require.Equal(t, uint32(640), pix.Width)
	require.Equal(t, uint32(480), pix.Height)
	require.Equal(t, PixFmtYUYV, pix.PixFmt)
	require.Equal(t, uint32(1280), pix.BytesPerLine)
	require.Equal(t, uint32(1280*480), pix.SizeImage)
}

func TestOpenReleasePower(t *testing.T) {
	r := newRig(t, nil)

	require.NoError(t, r.dev.Open())
	require.Equal(t, 1, r.sim.PowerCount)

	// second opener doesn't touch the sensor
	require.NoError(t, r.dev.Open())
	require.Equal(t, 1, r.sim.PowerCount)

	r.dev.Release()
	require.Equal(t, 1, r.sim.PowerCount)
	r.dev.Release()
	require.Equal(t, 0, r.sim.PowerCount)

	// over-release is ignored
	r.dev.Release()
	require.Equal(t, 0, r.sim.PowerCount)
}

func TestQueueSetupMinimum(t *testing.T) {
	r := newRig(t, nil)

	count, size, err := r.dev.QueueSetup(1)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, r.dev.Format().SizeImage, size)

	count, _, err = r.dev.QueueSetup(8)
	require.NoError(t, err)
	require.Equal(t, 8, count)
}

func TestPrepareRejectsSmallBuffer(t *testing.T) {
	r := newRig(t, nil)

	region, err := r.pool.Alloc(16)
	require.NoError(t, err)

	err = r.dev.Prepare(&Buffer{Region: region})
	require.Error(t, err)
}

func TestStartNoBuffers(t *testing.T) {
	r := newRig(t, nil)
	require.ErrorIs(t, r.dev.StartStreaming(), ErrNoBuffers)
}

func TestStartSensorFailureUnwinds(t *testing.T) {
	r := newRig(t, nil)
	r.sim.StreamErr = errors.New("sensor is sulking")

	bufs := r.enqueue(t, 3)
	require.Error(t, r.dev.StartStreaming())

	// every buffer comes back exactly once, as requeue
	requeued := r.completed(BufRequeue)
	require.ElementsMatch(t, bufs, requeued)
	require.Empty(t, r.completed(BufError))
	require.Empty(t, r.completed(BufDone))

	require.False(t, r.dev.isStreaming())
	require.False(t, r.sim.Streaming)

	// lane clocks gated off again, tag intact
	require.Equal(t, uint32(0x5a000000), r.p.Clk.Read32(0))
}

func TestStartLaneMismatch(t *testing.T) {
	r := newRig(t, func(c *Config) { c.MaxDataLanes = 1 })
	bufs := r.enqueue(t, 3)

	// sensor wants 2 lanes, only 1 is wired
	require.ErrorIs(t, r.dev.StartStreaming(), ErrLanes)
	require.ElementsMatch(t, bufs, r.completed(BufRequeue))
	require.False(t, r.dev.isStreaming())
}

func TestStopFlushesAsError(t *testing.T) {
	r := newRig(t, nil)

	bufs := r.enqueue(t, 3)
	require.NoError(t, r.dev.StartStreaming())
	require.True(t, r.dev.isStreaming())
	require.True(t, r.sim.Streaming)

	r.dev.StopStreaming()

	require.False(t, r.dev.isStreaming())
	require.False(t, r.sim.Streaming)
	require.ElementsMatch(t, bufs, r.completed(BufError))
	require.Empty(t, r.completed(BufDone))
}

func TestLaneClockEnable(t *testing.T) {
	r := newRig(t, nil)

	r.enqueue(t, 3)
	require.NoError(t, r.dev.StartStreaming())

	// clock lane plus one enable pair per data lane, password tagged
	require.Equal(t, uint32(0x5a000015), r.p.Clk.Read32(0))
}

func TestStatusSnapshot(t *testing.T) {
	r := newRig(t, nil)

	r.enqueue(t, 3)
	require.NoError(t, r.dev.StartStreaming())

	st := r.dev.Status()
	require.True(t, st.Streaming)
	require.Equal(t, uint32(640), st.Width)
	require.Equal(t, uint32(480), st.Height)
	require.Equal(t, "YUYV", st.PixFmt)
	require.Equal(t, sensor.CodeYUYV8_2X8, st.WireCode)
	require.Equal(t, 2, st.Lanes)
	require.Equal(t, uint32(1280), st.Stride)
}

func TestBufStateString(t *testing.T) {
	require.Equal(t, "done", BufDone.String())
	require.Equal(t, "error", BufError.String())
	require.Equal(t, "requeue", BufRequeue.String())
	require.Equal(t, "unknown", BufState(42).String())
}
