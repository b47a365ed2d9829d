// Package hwsim simulates the camera receiver peripheral well enough to
// stream frames without hardware: it plays the bus master writing pixel
// data into DMA regions, raises the frame and line interrupt status bits,
// and honours the write-one-to-clear semantics of the status registers.
package hwsim

import (
	"sync"
	"time"

	"github.com/embedcam/csirx/pkg/csirx/regs"
	"github.com/embedcam/csirx/pkg/dma"
	"github.com/embedcam/csirx/pkg/irq"
	"github.com/embedcam/csirx/pkg/mmio"
)

// Peripheral - a simulated receiver behind a pair of Mem register ports.
type Peripheral struct {
	Reg  *mmio.Mem
	Clk  *mmio.Mem
	Line *irq.Soft

	mu    sync.Mutex
	pool  *dma.Pool
	frame uint32
}

// New wires the simulated peripheral to a DMA pool it will write frames
// into. The returned register ports behave like the real block: status
// registers clear on write-back, everything else is plain storage.
func New(pool *dma.Pool) *Peripheral {
	p := &Peripheral{
		Reg:  mmio.NewMem(),
		Clk:  mmio.NewMem(),
		Line: irq.NewSoft(),
		pool: pool,
	}

	p.Reg.WriteHook = func(offset, old, value uint32) uint32 {
		switch offset {
		case regs.Sta, regs.Ista:
			// write-one-to-clear
			return old &^ value
		}
		return value
	}

	return p
}

func (p *Peripheral) enabled() bool {
	return p.Reg.Read32(regs.Ctrl)&regs.CtrlCPE != 0
}

// FrameStart raises the frame-start interrupt.
func (p *Peripheral) FrameStart() {
	if !p.enabled() {
		return
	}
	p.Reg.Set(regs.Sta, regs.StaIS)
	p.Reg.Set(regs.Ista, regs.IstaFSI)
	p.Line.Fire()
}

// LineTick raises the line-count interrupt, the cadence at which the
// driver must schedule a next buffer.
func (p *Peripheral) LineTick() {
	if !p.enabled() {
		return
	}
	p.Reg.Set(regs.Sta, regs.StaIS)
	p.Reg.Set(regs.Ista, regs.IstaLCI)
	p.Line.Fire()
}

// FrameEnd finishes the DMA of the current frame: fills the programmed
// buffer with a recognizable pattern, advances the write pointer and
// raises the frame-end interrupt.
func (p *Peripheral) FrameEnd() {
	if !p.enabled() {
		return
	}

	p.mu.Lock()
	start := p.Reg.Read32(regs.Ibsa0)
	end := p.Reg.Read32(regs.Ibea0)
	if end > start {
		if buf, err := p.pool.Slice(start, end-start); err == nil {
			fill := byte(p.frame)
			for i := range buf {
				buf[i] = fill
			}
		}
	}
	p.frame++
	p.Reg.Poke(regs.Ibwp, end)
	p.mu.Unlock()

	p.Reg.Set(regs.Sta, regs.StaIS)
	p.Reg.Set(regs.Ista, regs.IstaFEI)
	p.Line.Fire()
}

// Frame runs one full frame: FS, a line tick mid-frame, FE.
func (p *Peripheral) Frame() {
	p.FrameStart()
	p.LineTick()
	p.FrameEnd()
}

// Frames returns how many frames the peripheral has written.
func (p *Peripheral) Frames() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Run generates frames at roughly 30fps until stop closes. Frames only
// flow while the receiver has the peripheral enabled.
func (p *Peripheral) Run(stop chan struct{}) {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if p.enabled() {
				p.Frame()
			}
		}
	}
}
