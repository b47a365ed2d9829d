//go:build !linux

package capture

import (
	"errors"

	"github.com/embedcam/csirx/pkg/csirx"
)

func openHardware(cfg config, dc *csirx.Config, c *capture) error {
	return errors.New("capture: hardware access requires linux, use sim mode")
}
