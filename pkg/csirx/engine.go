package csirx

import (
	"time"

	"github.com/embedcam/csirx/pkg/csirx/regs"
)

// Hardware settle intervals. The analogue block needs time in reset, and
// the peripheral reset pulse must be visibly wide.
const (
	analogueSettle  = time.Millisecond
	periphResetHold = 50 * time.Microsecond
)

// clkWrite writes the lane clock gate block. Every write carries the
// password tag in the upper byte or the gate ignores it.
func (d *Device) clkWrite(val uint32) {
	d.clkGate.Write32(0, val|regs.ClkGatePassword)
}

// writeDMAAddr programs the start/end addresses of the buffer the hardware
// writes into next.
func (d *Device) writeDMAAddr(addr uint32) {
	d.log.Trace().
		Uint32("start", addr).
		Uint32("end", addr+d.pix.SizeImage).
		Msg("[csirx] dma addr")
	d.reg.Write32(regs.Ibsa0, addr)
	d.reg.Write32(regs.Ibea0, addr+d.pix.SizeImage)
}

// setPackingConfig programs the unpack/repack pipeline. When the delivered
// pixel format is the wire format nothing is touched; otherwise the source
// depth is unpacked and repacked into the fixed 16bpp container.
func (d *Device) setPackingConfig() {
	unpack := uint32(regs.PUMNone)
	pack := uint32(regs.PPMNone)

	if d.pix.PixFmt != d.fmt.PixFmt {
		switch d.fmt.Depth {
		case 8:
			unpack = regs.PUMUnpack8
		case 10:
			unpack = regs.PUMUnpack10
		case 12:
			unpack = regs.PUMUnpack12
		case 14:
			unpack = regs.PUMUnpack14
		case 16:
			unpack = regs.PUMUnpack16
		}
		pack = regs.PPMPack16
	}

	var val uint32
	regs.Set(&val, 2, regs.IpipeDEBLMask)
	regs.Set(&val, unpack, regs.IpipePUMMask)
	regs.Set(&val, pack, regs.IpipePPMMask)
	d.reg.Write32(regs.Ipipe, val)
}

// setImageID programs the per-lane image identifier: virtual channel plus
// data type tag in CSI-2 mode, a fixed tag in CCP2 mode.
func (d *Device) setImageID() {
	if d.bus == BusCSI2 {
		d.reg.Write32(regs.Idi0, uint32(d.virtualChannel)<<6|uint32(d.fmt.DataType))
	} else {
		d.reg.Write32(regs.Idi0, 0x80|uint32(d.fmt.DataType))
	}
}

// startRX runs the ordered bring-up sequence and leaves the peripheral
// enabled in triggered frame capture mode, synchronized to the sensor's
// own frame start. The interrupt handler drops the trigger after the
// first service.
func (d *Device) startRX(addr uint32) {
	lineIntFreq := d.pix.Height >> 2
	if lineIntFreq < 128 {
		lineIntFreq = 128
	}

	// Enable lane clocks: one enable bit pair per active lane plus the
	// clock lane.
	val := uint32(1)
	for i := 0; i < d.activeLanes; i++ {
		val = val<<2 | 1
	}
	d.clkWrite(val)

	// Basic init
	d.reg.Write32(regs.Ctrl, regs.CtrlMEM)

	// Enable analogue control and leave in reset
	val = regs.AnaAR
	regs.Set(&val, 7, regs.AnaCTATADJMask)
	regs.Set(&val, 7, regs.AnaPTATADJMask)
	d.reg.Write32(regs.Ana, val)
	time.Sleep(analogueSettle)

	// Come out of reset
	regs.SetField(d.reg, regs.Ana, 0, regs.AnaAR)

	// Peripheral reset
	regs.SetField(d.reg, regs.Ctrl, 1, regs.CtrlCPR)
	regs.SetField(d.reg, regs.Ctrl, 0, regs.CtrlCPR)

	regs.SetField(d.reg, regs.Ctrl, 0, regs.CtrlCPE)

	// Receive mode and timing
	val = d.reg.Read32(regs.Ctrl)
	if d.bus == BusCSI2 {
		regs.Set(&val, regs.CPMCSI2, regs.CtrlCPMMask)
		regs.Set(&val, regs.DCMStrobe, regs.CtrlDCMMask)
	} else {
		regs.Set(&val, regs.CPMCCP2, regs.CtrlCPMMask)
		regs.Set(&val, d.strobeMode, regs.CtrlDCMMask)
	}
	// Packet framer timeout
	regs.Set(&val, 0xf, regs.CtrlPFTMask)
	regs.Set(&val, 128, regs.CtrlOETMask)
	d.reg.Write32(regs.Ctrl, val)

	d.reg.Write32(regs.Ihwin, 0)
	d.reg.Write32(regs.Ivwin, 0)

	// Bus access QoS
	val = d.reg.Read32(regs.Pri)
	regs.Set(&val, 0, regs.PriBLMask)
	regs.Set(&val, 0, regs.PriBSMask)
	regs.Set(&val, 0xe, regs.PriPPMask)
	regs.Set(&val, 8, regs.PriNPMask)
	regs.Set(&val, 2, regs.PriPTMask)
	regs.Set(&val, 1, regs.PriPE)
	d.reg.Write32(regs.Pri, val)

	regs.SetField(d.reg, regs.Ana, 0, regs.AnaDDL)

	// Always start in triggered frame capture mode
	val = regs.IctlFSIE | regs.IctlFEIE | regs.IctlFCM
	regs.Set(&val, lineIntFreq, regs.IctlLCIEMask)
	d.reg.Write32(regs.Ictl, val)
	d.reg.Write32(regs.Sta, regs.StaMaskAll)
	d.reg.Write32(regs.Ista, regs.IstaMaskAll)

	// Clock lane termination and settle timing
	regs.SetField(d.reg, regs.Clt, 2, regs.LT1Mask)
	regs.SetField(d.reg, regs.Clt, 6, regs.LT2Mask)
	// Data lane termination, settle and rx enable
	regs.SetField(d.reg, regs.Dlt, 2, regs.LT1Mask)
	regs.SetField(d.reg, regs.Dlt, 6, regs.LT2Mask)
	regs.SetField(d.reg, regs.Dlt, 0, regs.LT3Mask)

	regs.SetField(d.reg, regs.Ctrl, 0, regs.CtrlSOE)

	// Packet compare setup - required to avoid missing frame ends
	val = 0
	regs.Set(&val, 1, regs.CmpPCE)
	regs.Set(&val, 1, regs.CmpGI)
	regs.Set(&val, 1, regs.CmpCPH)
	regs.Set(&val, 0, regs.CmpPCVCMask)
	regs.Set(&val, 1, regs.CmpPCDTMask)
	d.reg.Write32(regs.Cmp0, val)

	// Clock lane receiver
	val = 0
	regs.Set(&val, 1, regs.LaneLE)
	if d.bus == BusCSI2 {
		regs.Set(&val, 1, regs.LaneLLPE)
		if d.continuousClock {
			regs.Set(&val, 1, regs.LaneLTRE)
			regs.Set(&val, 1, regs.LaneLHSE)
		}
	} else {
		regs.Set(&val, 1, regs.LaneLHSE)
		regs.Set(&val, 1, regs.LaneLTRE)
	}
	d.reg.Write32(regs.Clk, val)

	// Data lane receivers. Active lanes get the same value, inactive
	// lanes get zero.
	val = 0
	regs.Set(&val, 1, regs.LaneLE)
	if d.bus == BusCSI2 {
		regs.Set(&val, 1, regs.LaneLLPE)
		if d.continuousClock {
			regs.Set(&val, 1, regs.LaneLTRE)
			regs.Set(&val, 1, regs.LaneLHSE)
		}
	} else {
		regs.Set(&val, 1, regs.LaneLHSE)
		regs.Set(&val, 1, regs.LaneLTRE)
	}
	d.reg.Write32(regs.Dat0, val)

	if d.activeLanes == 1 {
		val = 0
	}
	d.reg.Write32(regs.Dat1, val)

	if d.maxDataLanes > 2 {
		// Dat2/Dat3 only exist on instances wired for more than 2 lanes
		if d.activeLanes == 2 {
			val = 0
		}
		d.reg.Write32(regs.Dat2, val)

		if d.activeLanes == 3 {
			val = 0
		}
		d.reg.Write32(regs.Dat3, val)
	}

	d.reg.Write32(regs.Ibls, d.pix.BytesPerLine)
	d.writeDMAAddr(addr)
	d.setPackingConfig()
	d.setImageID()

	// Embedded data disabled
	val = 0
	regs.Set(&val, 0, regs.DcsEDLMask)
	d.reg.Write32(regs.Dcs, val)

	val = d.reg.Read32(regs.Misc)
	regs.Set(&val, 1, regs.MiscFL0)
	regs.Set(&val, 1, regs.MiscFL1)
	d.reg.Write32(regs.Misc, val)

	// Enable peripheral
	regs.SetField(d.reg, regs.Ctrl, 1, regs.CtrlCPE)

	// Load image pointers
	regs.SetField(d.reg, regs.Ictl, 1, regs.IctlLIPMask)

	// Trigger only the first frame, to sync to the sensor's frame start
	regs.SetField(d.reg, regs.Ictl, 1, regs.IctlTFC)
}

// disableRX is the strict mirror of startRX. Must run before the lane
// clocks go away, since the register writes depend on them.
func (d *Device) disableRX() {
	// Analogue lane control disable
	regs.SetField(d.reg, regs.Ana, 1, regs.AnaDDL)

	// Stop the output engine
	regs.SetField(d.reg, regs.Ctrl, 1, regs.CtrlSOE)

	// Disable the data lanes
	d.reg.Write32(regs.Dat0, 0)
	d.reg.Write32(regs.Dat1, 0)
	if d.maxDataLanes > 2 {
		d.reg.Write32(regs.Dat2, 0)
		d.reg.Write32(regs.Dat3, 0)
	}

	// Peripheral reset
	regs.SetField(d.reg, regs.Ctrl, 1, regs.CtrlCPR)
	time.Sleep(periphResetHold)
	regs.SetField(d.reg, regs.Ctrl, 0, regs.CtrlCPR)

	// Disable peripheral
	regs.SetField(d.reg, regs.Ctrl, 0, regs.CtrlCPE)

	// Disable all lane clocks
	d.clkWrite(0)
}
