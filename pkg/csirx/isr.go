package csirx

import (
	"time"

	"github.com/embedcam/csirx/pkg/csirx/regs"
)

// ISR services one interrupt from the peripheral. Invoked by the interrupt
// delivery mechanism with no mutual exclusion against Enqueue; it takes
// only the queue lock and never blocks.
//
// The frame that finishes DMA during this interrupt was started one frame
// ago, so frame start is the authoritative capture timestamp of the buffer
// that is completing, not the one starting.
func (d *Device) ISR() {
	// Spurious or late interrupt racing a stop: do nothing.
	if !d.isStreaming() {
		return
	}

	// Read and write back both status registers before interpreting any
	// bit. A stale bit retriggers the interrupt line.
	sta := d.reg.Read32(regs.Sta)
	d.reg.Write32(regs.Sta, sta)

	ista := d.reg.Read32(regs.Ista)
	d.reg.Write32(regs.Ista, ista)

	if sta == 0 {
		return
	}

	var done *Buffer

	d.qmu.Lock()

	if ista&regs.IstaFSI != 0 && d.cur != nil {
		d.cur.Timestamp = time.Now()
	}

	if ista&regs.IstaFEI != 0 || sta&regs.StaPI0 != 0 {
		// Complete only if the hardware has already moved on to a
		// distinct buffer. The peripheral can't be stopped mid-frame:
		// with nowhere new to go the captured frame is overwritten by
		// the next capture into the same buffer. Frame drop under
		// buffer starvation is expected, not an error.
		if d.cur != nil && d.cur != d.next {
			done = d.completeCurrentLocked()
		}
	}

	if ista&(regs.IstaFSI|regs.IstaLCI) != 0 {
		if len(d.queue) > 0 && d.cur == d.next {
			d.scheduleNextLocked()
		}
	}

	d.qmu.Unlock()

	if done != nil {
		d.Done(done, BufDone)
	}

	if d.reg.Read32(regs.Ictl)&regs.IctlFCM != 0 {
		// One-time transition out of triggered capture into free-running
		regs.SetField(d.reg, regs.Ictl, 0, regs.IctlTFC)
		regs.SetField(d.reg, regs.Ictl, 0, regs.IctlFCM)
	}
}
