package capture

import (
	"github.com/embedcam/csirx/pkg/csirx"
	"github.com/embedcam/csirx/pkg/irq"
	"github.com/embedcam/csirx/pkg/mmio"
	"github.com/embedcam/csirx/pkg/sensor"
)

// openHardware maps the receiver register block and interrupt line. The
// sensor itself is assumed to be configured out of band, so the driver
// sees it as a static description of the wire format it emits.
func openHardware(cfg config, dc *csirx.Config, c *capture) error {
	reg, err := mmio.OpenDev(cfg.Mod.RegBase, 0x1000)
	if err != nil {
		return err
	}
	dc.Reg = reg

	clk, err := mmio.OpenDev(cfg.Mod.ClkGateBase, 0x1000)
	if err != nil {
		return err
	}
	dc.ClkGate = clk

	if c.line, err = irq.OpenUIO(cfg.Mod.UIO); err != nil {
		return err
	}

	code := sensor.CodeYUYV8_2X8
	if f := csirx.FormatByFourCC(csirx.FourCC(cfg.Mod.Format)); f != nil {
		code = f.Code
	}

	dc.Sensor = sensor.NewSim(
		[]uint16{code},
		sensor.Format{Width: cfg.Mod.Width, Height: cfg.Mod.Height, Code: code},
		sensor.BusConfig{
			DataLanes:       cfg.Mod.DataLanes,
			ContinuousClock: cfg.Mod.ContinuousClock,
		},
	)

	return nil
}
