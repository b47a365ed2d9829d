package csirx

import "github.com/embedcam/csirx/pkg/sensor"

// FourCC builds a pixel format identifier from its four character code.
// Shorter strings are space padded, so "Y10" means "Y10 ".
func FourCC(s string) uint32 {
	for len(s) < 4 {
		s += " "
	}
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

// FourCCString is the inverse of FourCC, for logs and the API.
func FourCCString(f uint32) string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

// Pixel format identifiers. Same four character codes the rest of the world
// uses, so buffers can be handed straight to common image tooling.
var (
	PixFmtYUYV = FourCC("YUYV")
	PixFmtUYVY = FourCC("UYVY")
	PixFmtYVYU = FourCC("YVYU")
	PixFmtVYUY = FourCC("VYUY")

	PixFmtRGB565  = FourCC("RGBP")
	PixFmtRGB565X = FourCC("RGBR")
	PixFmtRGB555  = FourCC("RGBO")
	PixFmtRGB555X = FourCC("RGBQ")
	PixFmtRGB24   = FourCC("RGB3")
	PixFmtBGR24   = FourCC("BGR3")
	PixFmtRGB32   = FourCC("RGB4")

	PixFmtSBGGR8   = FourCC("BA81")
	PixFmtSGBRG8   = FourCC("GBRG")
	PixFmtSGRBG8   = FourCC("GRBG")
	PixFmtSRGGB8   = FourCC("RGGB")
	PixFmtSBGGR10P = FourCC("pBAA")
	PixFmtSBGGR10  = FourCC("BG10")
	PixFmtSGBRG10P = FourCC("pGAA")
	PixFmtSGBRG10  = FourCC("GB10")
	PixFmtSGRBG10P = FourCC("pgAA")
	PixFmtSGRBG10  = FourCC("BA10")
	PixFmtSRGGB10P = FourCC("pRAA")
	PixFmtSRGGB10  = FourCC("RG10")
	PixFmtSBGGR12P = FourCC("pBCC")
	PixFmtSBGGR12  = FourCC("BG12")
	PixFmtSGBRG12P = FourCC("pGCC")
	PixFmtSGBRG12  = FourCC("GB12")
	PixFmtSGRBG12P = FourCC("pgCC")
	PixFmtSGRBG12  = FourCC("BA12")
	PixFmtSRGGB12P = FourCC("pRCC")
	PixFmtSRGGB12  = FourCC("RG12")
	PixFmtSBGGR14P = FourCC("pBEE")
	PixFmtSGBRG14P = FourCC("pGEE")
	PixFmtSGRBG14P = FourCC("pgEE")
	PixFmtSRGGB14P = FourCC("pREE")

	PixFmtGrey = FourCC("GREY")
	PixFmtY10P = FourCC("Y10P")
	PixFmtY10  = FourCC("Y10 ")
	PixFmtY12  = FourCC("Y12 ")
)

// Format - receiver format information for one wire code.
//
// PixFmt is the pixel format delivered with packing left untouched, 0 if
// there is none. RepackedPixFmt is the format delivered when the receiver
// widens the data out to a 16bpp container, 0 if repacking doesn't apply.
// CheckVariants flags entries whose PixFmt also appears later in the table
// under a different wire code, so selection by pixel format must consult
// the sensor's advertised codes.
type Format struct {
	PixFmt         uint32
	RepackedPixFmt uint32
	Code           uint16
	Depth          uint8
	DataType       uint8
	CheckVariants  bool
}

var formats = []Format{
	// YUV formats
	{PixFmt: PixFmtYUYV, Code: sensor.CodeYUYV8_2X8, Depth: 16, DataType: 0x1e, CheckVariants: true},
	{PixFmt: PixFmtUYVY, Code: sensor.CodeUYVY8_2X8, Depth: 16, DataType: 0x1e, CheckVariants: true},
	{PixFmt: PixFmtYVYU, Code: sensor.CodeYVYU8_2X8, Depth: 16, DataType: 0x1e, CheckVariants: true},
	{PixFmt: PixFmtVYUY, Code: sensor.CodeVYUY8_2X8, Depth: 16, DataType: 0x1e, CheckVariants: true},
	{PixFmt: PixFmtYUYV, Code: sensor.CodeYUYV8_1X16, Depth: 16, DataType: 0x1e},
	{PixFmt: PixFmtUYVY, Code: sensor.CodeUYVY8_1X16, Depth: 16, DataType: 0x1e},
	{PixFmt: PixFmtYVYU, Code: sensor.CodeYVYU8_1X16, Depth: 16, DataType: 0x1e},
	{PixFmt: PixFmtVYUY, Code: sensor.CodeVYUY8_1X16, Depth: 16, DataType: 0x1e},
	// RGB formats
	{PixFmt: PixFmtRGB565, Code: sensor.CodeRGB565_2X8LE, Depth: 16, DataType: 0x22},
	{PixFmt: PixFmtRGB565X, Code: sensor.CodeRGB565_2X8BE, Depth: 16, DataType: 0x22},
	{PixFmt: PixFmtRGB555, Code: sensor.CodeRGB555_2X8PadHiLE, Depth: 16, DataType: 0x21},
	{PixFmt: PixFmtRGB555X, Code: sensor.CodeRGB555_2X8PadHiBE, Depth: 16, DataType: 0x21},
	{PixFmt: PixFmtRGB24, Code: sensor.CodeRGB888_1X24, Depth: 24, DataType: 0x24},
	{PixFmt: PixFmtBGR24, Code: sensor.CodeBGR888_1X24, Depth: 24, DataType: 0x24},
	{PixFmt: PixFmtRGB32, Code: sensor.CodeARGB8888_1X32, Depth: 32, DataType: 0x0},
	// Bayer formats
	{PixFmt: PixFmtSBGGR8, Code: sensor.CodeSBGGR8_1X8, Depth: 8, DataType: 0x2a},
	{PixFmt: PixFmtSGBRG8, Code: sensor.CodeSGBRG8_1X8, Depth: 8, DataType: 0x2a},
	{PixFmt: PixFmtSGRBG8, Code: sensor.CodeSGRBG8_1X8, Depth: 8, DataType: 0x2a},
	{PixFmt: PixFmtSRGGB8, Code: sensor.CodeSRGGB8_1X8, Depth: 8, DataType: 0x2a},
	{PixFmt: PixFmtSBGGR10P, RepackedPixFmt: PixFmtSBGGR10, Code: sensor.CodeSBGGR10_1X10, Depth: 10, DataType: 0x2b},
	{PixFmt: PixFmtSGBRG10P, RepackedPixFmt: PixFmtSGBRG10, Code: sensor.CodeSGBRG10_1X10, Depth: 10, DataType: 0x2b},
	{PixFmt: PixFmtSGRBG10P, RepackedPixFmt: PixFmtSGRBG10, Code: sensor.CodeSGRBG10_1X10, Depth: 10, DataType: 0x2b},
	{PixFmt: PixFmtSRGGB10P, RepackedPixFmt: PixFmtSRGGB10, Code: sensor.CodeSRGGB10_1X10, Depth: 10, DataType: 0x2b},
	{PixFmt: PixFmtSBGGR12P, RepackedPixFmt: PixFmtSBGGR12, Code: sensor.CodeSBGGR12_1X12, Depth: 12, DataType: 0x2c},
	{PixFmt: PixFmtSGBRG12P, RepackedPixFmt: PixFmtSGBRG12, Code: sensor.CodeSGBRG12_1X12, Depth: 12, DataType: 0x2c},
	{PixFmt: PixFmtSGRBG12P, RepackedPixFmt: PixFmtSGRBG12, Code: sensor.CodeSGRBG12_1X12, Depth: 12, DataType: 0x2c},
	{PixFmt: PixFmtSRGGB12P, RepackedPixFmt: PixFmtSRGGB12, Code: sensor.CodeSRGGB12_1X12, Depth: 12, DataType: 0x2c},
	{PixFmt: PixFmtSBGGR14P, Code: sensor.CodeSBGGR14_1X14, Depth: 14, DataType: 0x2d},
	{PixFmt: PixFmtSGBRG14P, Code: sensor.CodeSGBRG14_1X14, Depth: 14, DataType: 0x2d},
	{PixFmt: PixFmtSGRBG14P, Code: sensor.CodeSGRBG14_1X14, Depth: 14, DataType: 0x2d},
	{PixFmt: PixFmtSRGGB14P, Code: sensor.CodeSRGGB14_1X14, Depth: 14, DataType: 0x2d},
	// No 16 bit Bayer: the bus defines no data type for raw 16.
	// Greyscale formats
	{PixFmt: PixFmtGrey, Code: sensor.CodeY8_1X8, Depth: 8, DataType: 0x2a},
	{PixFmt: PixFmtY10P, RepackedPixFmt: PixFmtY10, Code: sensor.CodeY10_1X10, Depth: 10, DataType: 0x2b},
	// No packed fourcc exists for 12 bit grey.
	{RepackedPixFmt: PixFmtY12, Code: sensor.CodeY12_1X12, Depth: 12, DataType: 0x2c},
}

// Stride is a 16 bit register and also has to be a multiple of 16.
const (
	strideAlign  = 16
	maxStride    = (1 << 16) - strideAlign
	heightAlign  = 16
	MinWidth     = 16
	MinHeight    = 16
	// Max width follows from the max stride at a worst case 4 bytes per
	// pixel. No inherent height limit, adopt a square image.
	MaxWidth  = maxStride / 4
	MaxHeight = MaxWidth
)

// FormatByCode returns the catalog entry for a wire code, nil if unknown.
func FormatByCode(code uint16) *Format {
	for i := range formats {
		if formats[i].Code == code {
			return &formats[i]
		}
	}
	return nil
}

// FormatByFourCC returns the first catalog entry delivering a pixel
// format, ignoring what any sensor advertises. Nil if unknown.
func FormatByFourCC(pixfmt uint32) *Format {
	if pixfmt == 0 {
		// unrepacked entries carry a zero RepackedPixFmt
		return nil
	}
	for i := range formats {
		if formats[i].PixFmt == pixfmt || formats[i].RepackedPixFmt == pixfmt {
			return &formats[i]
		}
	}
	return nil
}

// Protects against a sensor that never ends its code enumeration.
const maxEnumCodes = 128

// sensorHasCode reports whether the sensor advertises a wire code.
func sensorHasCode(sd sensor.Subdev, code uint16) bool {
	for i := 0; i < maxEnumCodes; i++ {
		c, err := sd.EnumWireCode(i)
		if err != nil {
			return false
		}
		if c == code {
			return true
		}
	}
	return false
}

// formatByPixFmt finds the catalog entry delivering a pixel format, either
// directly or repacked. Entries flagged CheckVariants share their pixel
// format with other wire codes, so the sensor's advertised codes decide
// which entry wins. Table order, first match.
func formatByPixFmt(sd sensor.Subdev, pixfmt uint32) *Format {
	if pixfmt == 0 {
		return nil
	}
	for i := range formats {
		f := &formats[i]
		if f.PixFmt != pixfmt && f.RepackedPixFmt != pixfmt {
			continue
		}
		if f.CheckVariants && !sensorHasCode(sd, f.Code) {
			continue
		}
		return f
	}
	return nil
}

// firstSupportedFormat walks the sensor's advertised codes and returns the
// first one the catalog also knows. Nil when there is no overlap.
func firstSupportedFormat(sd sensor.Subdev) *Format {
	for i := 0; i < maxEnumCodes; i++ {
		code, err := sd.EnumWireCode(i)
		if err != nil {
			return nil
		}
		if f := FormatByCode(code); f != nil {
			return f
		}
	}
	return nil
}

// PixFormat - negotiated image geometry in memory.
type PixFormat struct {
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
	PixFmt       uint32 `json:"-"`
	BytesPerLine uint32 `json:"stride"`
	SizeImage    uint32 `json:"size_image"`
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// bytesPerLine computes the stride for a width. Repacking always goes out
// to a 16bpp container regardless of the source depth.
func bytesPerLine(width uint32, f *Format, pixfmt uint32) uint32 {
	if pixfmt == f.RepackedPixFmt && f.RepackedPixFmt != 0 {
		return alignUp(width<<1, strideAlign)
	}
	return alignUp(width*uint32(f.Depth)>>3, strideAlign)
}

// calcFormatSize clamps the geometry to hardware limits and fills in the
// stride and image size. A caller-supplied larger stride is kept (aligned)
// as long as it stays representable.
func calcFormatSize(f *Format, pix *PixFormat) {
	pix.Width = clamp(pix.Width, MinWidth, MaxWidth) &^ 1
	pix.Height = clamp(pix.Height, MinHeight, MaxHeight)

	min := bytesPerLine(pix.Width, f, pix.PixFmt)
	if pix.BytesPerLine > min && pix.BytesPerLine <= maxStride {
		pix.BytesPerLine = alignUp(pix.BytesPerLine, strideAlign)
	} else {
		pix.BytesPerLine = min
	}

	// Height aligned up for compatibility with downstream hardware blocks.
	pix.SizeImage = alignUp(pix.Height, heightAlign) * pix.BytesPerLine
}
