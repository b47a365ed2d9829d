package csirx

// Pipeline helpers. All callers hold d.qmu.

// scheduleNextLocked pops the queue head, makes it the next buffer and
// programs its DMA address. The only place a queued buffer is handed to
// hardware. Must happen within the line interrupt cadence or the hardware
// wraps and overwrites.
func (d *Device) scheduleNextLocked() {
	buf := d.queue[0]
	d.queue = d.queue[1:]
	d.next = buf

	d.writeDMAAddr(buf.Region.Bus)
}

// completeCurrentLocked rotates the finished buffer out and promotes next.
// Returns the finished buffer so the caller can deliver it outside the
// queue lock.
func (d *Device) completeCurrentLocked() *Buffer {
	buf := d.cur
	buf.Sequence = d.sequence
	d.sequence++

	d.cur = d.next
	return buf
}
