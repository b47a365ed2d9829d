package vbq

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/embedcam/csirx/pkg/csirx"
	"github.com/embedcam/csirx/pkg/dma"
	"github.com/embedcam/csirx/pkg/hwsim"
	"github.com/embedcam/csirx/pkg/sensor"
)

func newTestQueue(t *testing.T) (*Queue, *hwsim.Peripheral) {
	pool := dma.NewPool(0x1000_0000, 16<<20)
	p := hwsim.New(pool)

	sim := sensor.NewSim(
		[]uint16{sensor.CodeYUYV8_2X8},
		sensor.Format{Width: 640, Height: 480, Code: sensor.CodeYUYV8_2X8},
		sensor.BusConfig{DataLanes: 2},
	)

	dev, err := csirx.New(csirx.Config{
		Reg:             p.Reg,
		ClkGate:         p.Clk,
		Sensor:          sim,
		Bus:             csirx.BusCSI2,
		ContinuousClock: true,
		MaxDataLanes:    2,
		Log:             zerolog.Nop(),
	})
	require.NoError(t, err)

	return New(dev, pool), p
}

func TestQueueSetup(t *testing.T) {
	q, _ := newTestQueue(t)

	// driver raises the count to its minimum
	count, err := q.Setup(1)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	require.NoError(t, q.Close())
}

func TestQueueEnqueueValidation(t *testing.T) {
	q, _ := newTestQueue(t)

	require.ErrorIs(t, q.Enqueue(0), ErrNoSetup)

	count, err := q.Setup(3)
	require.NoError(t, err)

	require.ErrorIs(t, q.Enqueue(count), ErrBadIndex)
	require.ErrorIs(t, q.Enqueue(-1), ErrBadIndex)

	require.NoError(t, q.Enqueue(0))
	require.True(t, q.IsBusy())

	// double queue of the same buffer is refused
	require.Error(t, q.Enqueue(0))
}

func TestQueueCompletionFlow(t *testing.T) {
	q, p := newTestQueue(t)

	count, err := q.Setup(3)
	require.NoError(t, err)
	for i := 0; i < count; i++ {
		require.NoError(t, q.Enqueue(i))
	}

	require.NoError(t, q.StreamOn())

	// two simulated frames, serviced synchronously
	for i := 0; i < 2; i++ {
		p.FrameStart()
		q.dev.ISR()
		p.FrameEnd()
		q.dev.ISR()
	}

	for want := uint32(0); want < 2; want++ {
		select {
		case c := <-q.Completions():
			require.Equal(t, csirx.BufDone, c.State)
			require.Equal(t, want, c.Buf.Sequence)
			require.NoError(t, q.Requeue(c.Buf))
		case <-time.After(time.Second):
			t.Fatal("no completion")
		}
	}

	q.StreamOff()

	// stop flushes the rest as errors
	flushed := 0
	for {
		select {
		case c := <-q.Completions():
			require.Equal(t, csirx.BufError, c.State)
			flushed++
			continue
		default:
		}
		break
	}
	require.Equal(t, 3, flushed)
	require.False(t, q.IsBusy())
	require.Zero(t, q.Drops())

	require.NoError(t, q.Close())
}

func TestQueueSetupWhileBusy(t *testing.T) {
	q, _ := newTestQueue(t)

	_, err := q.Setup(3)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(0))

	_, err = q.Setup(3)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, q.Close(), ErrBusy)
}
