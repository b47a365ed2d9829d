package hwsim

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/embedcam/csirx/pkg/csirx"
	"github.com/embedcam/csirx/pkg/csirx/regs"
	"github.com/embedcam/csirx/pkg/dma"
	"github.com/embedcam/csirx/pkg/irq"
	"github.com/embedcam/csirx/pkg/sensor"
	"github.com/embedcam/csirx/pkg/vbq"
)

func TestWriteOneToClear(t *testing.T) {
	p := New(dma.NewPool(0, 1<<20))

	p.Reg.Set(regs.Sta, regs.StaIS|regs.StaPI0)
	p.Reg.Write32(regs.Sta, regs.StaIS)
	require.Equal(t, uint32(regs.StaPI0), p.Reg.Read32(regs.Sta))

	p.Reg.Set(regs.Ista, regs.IstaFSI|regs.IstaFEI)
	p.Reg.Write32(regs.Ista, regs.IstaFSI|regs.IstaFEI)
	require.Zero(t, p.Reg.Read32(regs.Ista))
}

func TestDisabledPeripheralIsQuiet(t *testing.T) {
	p := New(dma.NewPool(0, 1<<20))

	p.Frame()
	require.Zero(t, p.Reg.Read32(regs.Sta))
	require.Zero(t, p.Frames())
}

// TestCaptureEndToEnd streams frames through the whole stack: simulated
// peripheral, interrupt line, driver and buffer queue.
func TestCaptureEndToEnd(t *testing.T) {
	pool := dma.NewPool(0x1000_0000, 32<<20)
	p := New(pool)

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

	q := vbq.New(dev, pool)

	served := make(chan error, 1)
	go func() {
		served <- irq.Serve(p.Line, dev.ISR)
	}()

	require.NoError(t, dev.Open())

	count, err := q.Setup(4)
	require.NoError(t, err)
	for i := 0; i < count; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	require.NoError(t, q.StreamOn())

	const frames = 8
	go func() {
		for i := 0; i < frames; i++ {
			p.Frame()
			time.Sleep(time.Millisecond)
		}
	}()

	// every frame after the first completes one buffer; sequences are
	// strictly increasing and frames keep flowing because each completion
	// is requeued
	var last int64 = -1
	for got := 0; got < frames-1; got++ {
		select {
		case c := <-q.Completions():
			require.Equal(t, csirx.BufDone, c.State)
			require.Greater(t, int64(c.Buf.Sequence), last)
			last = int64(c.Buf.Sequence)
			require.NoError(t, q.Requeue(c.Buf))
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d frames", got)
		}
	}

	q.StreamOff()
	dev.Release()

	require.False(t, q.IsBusy())
	require.NoError(t, p.Line.Close())
	require.ErrorIs(t, <-served, irq.ErrClosed)
}
