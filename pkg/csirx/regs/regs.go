// Package regs describes the register layout of the CSI-2 camera receiver
// peripheral: byte offsets of the 32-bit control/status registers, bit
// fields, and helpers for packed field access.
package regs

import (
	"math/bits"

	"github.com/embedcam/csirx/pkg/mmio"
)

// Register offsets from the peripheral base address.
const (
	Ctrl  = 0x000 // control
	Sta   = 0x004 // status (write-one-to-clear)
	Ana   = 0x008 // analogue control
	Pri   = 0x00c // bus priority / QoS
	Clk   = 0x010 // clock lane control
	Clt   = 0x014 // clock lane timing
	Dat0  = 0x018 // data lane 0 control
	Dlt   = 0x01c // data lane timing
	Dat1  = 0x020
	Dat2  = 0x024 // only on >2 lane instances
	Dat3  = 0x028
	Dcs   = 0x030 // data control / embedded data
	Ictl  = 0x100 // image interrupt control
	Ista  = 0x104 // image interrupt status (write-one-to-clear)
	Idi0  = 0x108 // image identifier (virtual channel + data type)
	Ipipe = 0x10c // pack/unpack pipeline
	Ibsa0 = 0x110 // image buffer 0 start address
	Ibea0 = 0x114 // image buffer 0 end address
	Ibls  = 0x118 // image buffer line stride
	Ibwp  = 0x11c // image buffer write pointer
	Ihwin = 0x120 // horizontal window
	Ihsta = 0x124 // detected horizontal resolution
	Ivwin = 0x128 // vertical window
	Ivsta = 0x12c // detected vertical resolution
	Cmp0  = 0x300 // packet compare 0
	Misc  = 0x400 // miscellaneous / FIFO latency
)

// Ctrl fields.
const (
	CtrlCPE     = 1 << 0 // peripheral enable
	CtrlMEM     = 1 << 1 // output to memory
	CtrlCPR     = 1 << 2 // peripheral reset
	CtrlCPMMask = 0x3 << 3
	CtrlSOE     = 1 << 5 // standby output engine (1 = stopped)
	CtrlDCMMask = 0x3 << 6
	CtrlPFTMask = 0xf << 8  // packet framer timeout
	CtrlOETMask = 0xff << 12 // output engine timeout

	CPMCSI2 = 0 // CtrlCPMMask values
	CPMCCP2 = 1

	DCMStrobe = 0 // CtrlDCMMask values for CCP2 clocking
	DCMClock  = 1
)

// Sta fields. Writing a bit back clears it.
const (
	StaSYN  = 1 << 0  // in sync
	StaCS   = 1 << 1  // clock lane in stop state
	StaSBE  = 1 << 2  // single bit error
	StaPBE  = 1 << 3  // packet bit error
	StaHOE  = 1 << 4  // header recovery error
	StaPLE  = 1 << 5  // payload error
	StaSSC  = 1 << 6  // sync short code
	StaCRCE = 1 << 7  // CRC error
	StaOES  = 1 << 8  // output FIFO empty
	StaIFO  = 1 << 9  // input FIFO overflow
	StaOFO  = 1 << 10 // output FIFO overflow
	StaBFO  = 1 << 11 // buffer FIFO overflow
	StaDL   = 1 << 12 // data lane in stop state
	StaPS   = 1 << 13 // packet stream
	StaIS   = 1 << 14 // interrupt summary
	StaPI0  = 1 << 15 // packet compare 0 match
	StaPI1  = 1 << 16 // packet compare 1 match

	StaMaskAll = StaSBE | StaPBE | StaHOE | StaPLE | StaSSC | StaCRCE |
		StaIFO | StaOFO | StaBFO | StaIS | StaPI0 | StaPI1
)

// Ana fields.
const (
	AnaAR          = 1 << 0 // analogue reset
	AnaDDL         = 1 << 1 // disable data lanes
	AnaCTATADJMask = 0xf << 4
	AnaPTATADJMask = 0xf << 8
)

// Pri fields.
const (
	PriBLMask = 0x3 << 0
	PriBSMask = 0x3 << 2
	PriPPMask = 0xf << 4
	PriNPMask = 0xf << 8
	PriPTMask = 0x3 << 12
	PriPE     = 1 << 15
)

// Clock/data lane control fields (Clk, Dat0..Dat3).
const (
	LaneLE   = 1 << 0 // lane enable
	LaneLLPE = 1 << 1 // low power enable
	LaneLTRE = 1 << 2 // termination resistor enable
	LaneLHSE = 1 << 3 // high speed enable
)

// Lane timing fields (Clt, Dlt).
const (
	LT1Mask = 0xff << 0
	LT2Mask = 0xff << 8
	LT3Mask = 0xff << 16
)

// Ictl fields.
const (
	IctlFSIE     = 1 << 0 // frame start interrupt enable
	IctlFEIE     = 1 << 1 // frame end interrupt enable
	IctlFCM      = 1 << 2 // frame capture mode (triggered)
	IctlTFC      = 1 << 3 // trigger frame capture
	IctlLIPMask  = 0x3 << 4 // load image pointers
	IctlLCIEMask = 0x3fff << 16 // line count interrupt frequency
)

// Ista fields. Writing a bit back clears it.
const (
	IstaFSI = 1 << 0 // frame start
	IstaFEI = 1 << 1 // frame end
	IstaLCI = 1 << 2 // line count

	IstaMaskAll = IstaFSI | IstaFEI | IstaLCI
)

// Ipipe fields.
const (
	IpipeDEBLMask = 0x7 << 0 // data endianness / byte lane
	IpipePUMMask  = 0x7 << 3 // pipeline unpack mode
	IpipePPMMask  = 0x7 << 6 // pipeline pack mode

	PUMNone     = 0
	PUMUnpack8  = 1
	PUMUnpack10 = 2
	PUMUnpack12 = 3
	PUMUnpack14 = 4
	PUMUnpack16 = 5

	PPMNone   = 0
	PPMPack8  = 1
	PPMPack16 = 2
)

// Cmp0 fields.
const (
	CmpPCE      = 1 << 0 // packet compare enable
	CmpGI       = 1 << 1 // generate interrupt
	CmpCPH      = 1 << 2 // compare packet header
	CmpPCVCMask = 0x3 << 3
	CmpPCDTMask = 0x3f << 5
)

// Dcs fields.
const (
	DcsEDLMask = 0xff << 8 // embedded data lines
)

// Misc fields.
const (
	MiscFL0 = 1 << 6 // FIFO latency 0
	MiscFL1 = 1 << 9 // FIFO latency 1
)

// ClkGatePassword must be present in the upper byte of every write to the
// lane clock gate block or the write is ignored.
const ClkGatePassword = 0x5a000000

// Get extracts a field from a register value.
func Get(value, mask uint32) uint32 {
	return (value & mask) >> uint(bits.TrailingZeros32(mask))
}

// Set replaces a field in a register value.
func Set(value *uint32, field, mask uint32) {
	v := *value
	v &= ^mask
	v |= (field << uint(bits.TrailingZeros32(mask))) & mask
	*value = v
}

// GetField reads a register and extracts a field.
func GetField(p mmio.Port, offset, mask uint32) uint32 {
	return Get(p.Read32(offset), mask)
}

// SetField does a read-modify-write of one field.
func SetField(p mmio.Port, offset, field, mask uint32) {
	v := p.Read32(offset)
	Set(&v, field, mask)
	p.Write32(offset, v)
}
