// Package sensor defines the capability interface of a remote image sensor
// (subdevice) attached to the receiver's serial link, and a scriptable
// in-memory implementation for tests and simulation.
package sensor

import "errors"

// ErrNoMoreCodes ends wire code enumeration.
var ErrNoMoreCodes = errors.New("sensor: no more codes")

// ErrNotSupported - operation not implemented by this sensor. Callers treat
// it as "use defaults", never as fatal.
var ErrNotSupported = errors.New("sensor: not supported")

// Wire format codes as advertised on the serial bus.
const (
	CodeY8_1X8    uint16 = 0x2001
	CodeUYVY8_2X8 uint16 = 0x2006
	CodeVYUY8_2X8 uint16 = 0x2007
	CodeYUYV8_2X8 uint16 = 0x2008
	CodeYVYU8_2X8 uint16 = 0x2009
	CodeY10_1X10  uint16 = 0x200a

	CodeUYVY8_1X16 uint16 = 0x200f
	CodeVYUY8_1X16 uint16 = 0x2010
	CodeYUYV8_1X16 uint16 = 0x2011
	CodeYVYU8_1X16 uint16 = 0x2012
	CodeY12_1X12   uint16 = 0x2013

	CodeRGB555_2X8PadHiBE uint16 = 0x1003
	CodeRGB555_2X8PadHiLE uint16 = 0x1004
	CodeRGB565_2X8BE      uint16 = 0x1007
	CodeRGB565_2X8LE      uint16 = 0x1008
	CodeRGB888_1X24       uint16 = 0x100a
	CodeARGB8888_1X32     uint16 = 0x100d
	CodeBGR888_1X24       uint16 = 0x1013

	CodeSBGGR8_1X8   uint16 = 0x3001
	CodeSGRBG8_1X8   uint16 = 0x3002
	CodeSBGGR10_1X10 uint16 = 0x3007
	CodeSBGGR12_1X12 uint16 = 0x3008
	CodeSGBRG10_1X10 uint16 = 0x300e
	CodeSRGGB10_1X10 uint16 = 0x300f
	CodeSGRBG10_1X10 uint16 = 0x300a
	CodeSGBRG12_1X12 uint16 = 0x3010
	CodeSGRBG12_1X12 uint16 = 0x3011
	CodeSRGGB12_1X12 uint16 = 0x3012
	CodeSGBRG8_1X8   uint16 = 0x3013
	CodeSRGGB8_1X8   uint16 = 0x3014
	CodeSBGGR14_1X14 uint16 = 0x3019
	CodeSGBRG14_1X14 uint16 = 0x301a
	CodeSGRBG14_1X14 uint16 = 0x301b
	CodeSRGGB14_1X14 uint16 = 0x301c
)

// Format - frame format on the wire.
type Format struct {
	Width      uint32
	Height     uint32
	Code       uint16
	Interlaced bool
}

// BusConfig - serial bus parameters reported by the sensor.
type BusConfig struct {
	DataLanes       int // 0 = no preference
	ContinuousClock bool
}

// Subdev is the control interface of an attached sensor.
//
// EnumWireCode enumerates supported wire codes by index and returns
// ErrNoMoreCodes when exhausted. SetFormat negotiates: the sensor may return
// a different format than requested, and the returned value is
// authoritative. try=true must not change the sensor state.
type Subdev interface {
	EnumWireCode(index int) (uint16, error)
	GetFormat() (Format, error)
	SetFormat(f Format, try bool) (Format, error)
	SetStream(on bool) error
	SetPower(on bool) error
	BusConfig() (BusConfig, error)
}
