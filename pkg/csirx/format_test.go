package csirx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedcam/csirx/pkg/sensor"
)

func TestFourCC(t *testing.T) {
	require.Equal(t, uint32(0x56595559), PixFmtYUYV)
	require.Equal(t, "YUYV", FourCCString(PixFmtYUYV))
	require.Equal(t, PixFmtSBGGR10, FourCC(FourCCString(PixFmtSBGGR10)))
}

func TestFormatLookup(t *testing.T) {
	f := FormatByCode(sensor.CodeYUYV8_2X8)
	require.NotNil(t, f)
	require.Equal(t, PixFmtYUYV, f.PixFmt)
	require.Equal(t, uint8(16), f.Depth)

	require.Nil(t, FormatByCode(0xffff))

	f = FormatByFourCC(PixFmtSBGGR10)
	require.NotNil(t, f)
	require.Equal(t, sensor.CodeSBGGR10_1X10, f.Code)

	require.Nil(t, FormatByFourCC(FourCC("ZZZZ")))

	// a zero pixel format must not match entries with no repacked variant
	require.Nil(t, FormatByFourCC(0))
	require.Nil(t, formatByPixFmt(sensor.NewSim(nil, sensor.Format{}, sensor.BusConfig{}), 0))
}

func TestCalcFormatSizeStride(t *testing.T) {
	f := FormatByCode(sensor.CodeYUYV8_2X8)

	pix := PixFormat{Width: 638, Height: 480, PixFmt: PixFmtYUYV}
	calcFormatSize(f, &pix)

	// 638*2 = 1276 rounds up to the next multiple of 16
	require.Equal(t, uint32(1280), pix.BytesPerLine)
	require.Equal(t, uint32(1280*480), pix.SizeImage)
}

func TestCalcFormatSizeRepacked(t *testing.T) {
	f := FormatByCode(sensor.CodeSBGGR10_1X10)

	// packed delivery: 10 bits per pixel on the wire
	pix := PixFormat{Width: 640, Height: 480, PixFmt: PixFmtSBGGR10P}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(800), pix.BytesPerLine)

	// repacked delivery always goes out at 16bpp
	pix = PixFormat{Width: 640, Height: 480, PixFmt: PixFmtSBGGR10}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(1280), pix.BytesPerLine)
}

func TestCalcFormatSizeCallerStride(t *testing.T) {
	f := FormatByCode(sensor.CodeYUYV8_2X8)

	// a larger caller stride survives, aligned
	pix := PixFormat{Width: 640, Height: 480, PixFmt: PixFmtYUYV, BytesPerLine: 2000}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(2000), pix.BytesPerLine)

	pix = PixFormat{Width: 640, Height: 480, PixFmt: PixFmtYUYV, BytesPerLine: 2001}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(2016), pix.BytesPerLine)

	// an unrepresentable stride falls back to the minimum
	pix = PixFormat{Width: 640, Height: 480, PixFmt: PixFmtYUYV, BytesPerLine: 1 << 17}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(1280), pix.BytesPerLine)
}

func TestCalcFormatSizeClamp(t *testing.T) {
	f := FormatByCode(sensor.CodeYUYV8_2X8)

	pix := PixFormat{Width: 2, Height: 4, PixFmt: PixFmtYUYV}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(MinWidth), pix.Width)
	require.Equal(t, uint32(MinHeight), pix.Height)

	pix = PixFormat{Width: 1 << 20, Height: 1 << 20, PixFmt: PixFmtYUYV}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(MaxWidth), pix.Width)
	require.Equal(t, uint32(MaxHeight), pix.Height)

	// odd widths round down
	pix = PixFormat{Width: 641, Height: 480, PixFmt: PixFmtYUYV}
	calcFormatSize(f, &pix)
	require.Equal(t, uint32(640), pix.Width)
}

func TestCalcFormatSizeHeightAlign(t *testing.T) {
	f := FormatByCode(sensor.CodeYUYV8_2X8)

	pix := PixFormat{Width: 640, Height: 479, PixFmt: PixFmtYUYV}
	calcFormatSize(f, &pix)

	// image size reserves whole 16-line blocks
	require.Equal(t, uint32(479), pix.Height)
	require.Equal(t, uint32(1280*480), pix.SizeImage)
}
