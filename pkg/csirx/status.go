package csirx

import "github.com/embedcam/csirx/pkg/csirx/regs"

// Status - receiver state snapshot, including live values read back from
// the hardware registers.
type Status struct {
	Streaming bool   `json:"streaming"`
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	PixFmt    string `json:"pixfmt"`
	WireCode  uint16 `json:"wire_code"`
	Lanes     int    `json:"lanes"`
	Sequence  uint32 `json:"sequence"`

	Unpack uint32 `json:"unpack"`
	Pack   uint32 `json:"pack"`

	// Live data
	Stride         uint32 `json:"stride"`
	DetectedWidth  uint32 `json:"detected_width"`
	DetectedHeight uint32 `json:"detected_height"`
	WritePointer   uint32 `json:"write_pointer"`
}

// Status reads a snapshot of the receiver.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	ipipe := d.reg.Read32(regs.Ipipe)

	d.qmu.Lock()
	seq := d.sequence
	d.qmu.Unlock()

	return Status{
		Streaming: d.isStreaming(),
		Width:     d.pix.Width,
		Height:    d.pix.Height,
		PixFmt:    FourCCString(d.pix.PixFmt),
		WireCode:  d.fmt.Code,
		Lanes:     d.activeLanes,
		Sequence:  seq,

		Unpack: regs.Get(ipipe, regs.IpipePUMMask),
		Pack:   regs.Get(ipipe, regs.IpipePPMMask),

		Stride:         d.reg.Read32(regs.Ibls),
		DetectedWidth:  d.reg.Read32(regs.Ihsta),
		DetectedHeight: d.reg.Read32(regs.Ivsta),
		WritePointer:   d.reg.Read32(regs.Ibwp),
	}
}
