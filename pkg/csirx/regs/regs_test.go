package regs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embedcam/csirx/pkg/mmio"
)

func TestGetSet(t *testing.T) {
	var v uint32

	Set(&v, 0xe, PriPPMask)
	Set(&v, 8, PriNPMask)
	require.Equal(t, uint32(0xe), Get(v, PriPPMask))
	require.Equal(t, uint32(8), Get(v, PriNPMask))

	// overwrite leaves neighbours alone
	Set(&v, 3, PriPPMask)
	require.Equal(t, uint32(3), Get(v, PriPPMask))
	require.Equal(t, uint32(8), Get(v, PriNPMask))

	// oversized values are truncated to the field
	Set(&v, 0x1ff, CtrlPFTMask)
	require.Equal(t, uint32(0xf), Get(v, CtrlPFTMask))
}

func TestSetField(t *testing.T) {
	p := mmio.NewMem()

	p.Write32(Ictl, IctlFSIE|IctlFEIE)
	SetField(p, Ictl, 300, IctlLCIEMask)

	require.Equal(t, uint32(300), GetField(p, Ictl, IctlLCIEMask))
	require.NotZero(t, p.Read32(Ictl)&IctlFSIE)
	require.NotZero(t, p.Read32(Ictl)&IctlFEIE)

	SetField(p, Ictl, 0, IctlLCIEMask)
	require.Zero(t, GetField(p, Ictl, IctlLCIEMask))
}

func TestSingleBitFields(t *testing.T) {
	var v uint32

	Set(&v, 1, CtrlCPE)
	require.Equal(t, uint32(CtrlCPE), v)
	Set(&v, 0, CtrlCPE)
	require.Zero(t, v)
}
