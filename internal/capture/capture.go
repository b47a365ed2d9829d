// Package capture wires the receiver driver to its collaborators: register
// ports, DMA pool, sensor, interrupt line and the buffer queue. It owns the
// interrupt dispatch and buffer recycling loops and exposes the driver over
// the HTTP API.
package capture

import (
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/embedcam/csirx/internal/api"
	"github.com/embedcam/csirx/internal/app"
	"github.com/embedcam/csirx/pkg/csirx"
	"github.com/embedcam/csirx/pkg/dma"
	"github.com/embedcam/csirx/pkg/hwsim"
	"github.com/embedcam/csirx/pkg/irq"
	"github.com/embedcam/csirx/pkg/sensor"
	"github.com/embedcam/csirx/pkg/vbq"
)

type config struct {
	Mod struct {
		Sim bool `yaml:"sim"`

		RegBase     uint64 `yaml:"reg_base"`
		ClkGateBase uint64 `yaml:"clk_gate_base"`
		UIO         string `yaml:"uio"`

		DMABase uint32 `yaml:"dma_base"`
		DMASize uint32 `yaml:"dma_size"`

		Bus             string `yaml:"bus"` // csi2 (default), ccp2
		DataLanes       int    `yaml:"data_lanes"`
		VirtualChannel  uint8  `yaml:"virtual_channel"`
		ContinuousClock bool   `yaml:"continuous_clock"`

		Width   uint32 `yaml:"width"`
		Height  uint32 `yaml:"height"`
		Format  string `yaml:"format"` // fourcc, e.g. YUYV
		Buffers int    `yaml:"buffers"`
	} `yaml:"capture"`
}

var log zerolog.Logger

func Init() {
	var cfg config

	// defaults
	cfg.Mod.Sim = true
	cfg.Mod.DMABase = 0x1000_0000
	cfg.Mod.DMASize = 64 << 20
	cfg.Mod.DataLanes = 2
	cfg.Mod.Buffers = 4
	cfg.Mod.Width = 640
	cfg.Mod.Height = 480
	cfg.Mod.Format = "YUYV"

	app.LoadConfig(&cfg)

	log = app.GetLogger("capture")

	c, err := newCapture(cfg)
	if err != nil {
		log.Error().Err(err).Msg("[capture] init")
		return
	}

	api.HandleFunc("api/status", c.statusHandler)
	api.HandleFunc("api/formats", c.formatsHandler)
	api.HandleFunc("api/stream", c.streamHandler)
	api.HandleFunc("api/frame", c.frameHandler)
	api.HandleFunc("metrics", metricsHandler())

	go c.serveIRQ()
	go c.recycle()
}

type capture struct {
	dev   *csirx.Device
	queue *vbq.Queue
	line  irq.Line
	sim   *hwsim.Peripheral

	buffers int

	mu        sync.Mutex
	streaming bool
	lastSeq   uint32
	lastFrame []byte
	stopSim   chan struct{}
}

func newCapture(cfg config) (*capture, error) {
	pool := dma.NewPool(cfg.Mod.DMABase, cfg.Mod.DMASize)

	var (
		c   = &capture{buffers: cfg.Mod.Buffers}
		dc  csirx.Config
		err error
	)

	dc.Bus = csirx.BusCSI2
	if cfg.Mod.Bus == "ccp2" {
		dc.Bus = csirx.BusCCP2
	}
	dc.ContinuousClock = cfg.Mod.ContinuousClock
	dc.VirtualChannel = cfg.Mod.VirtualChannel
	dc.MaxDataLanes = cfg.Mod.DataLanes
	dc.Log = app.GetLogger("csirx")

	if cfg.Mod.Sim {
		c.sim = hwsim.New(pool)
		dc.Reg = c.sim.Reg
		dc.ClkGate = c.sim.Clk
		c.line = c.sim.Line
		dc.Sensor = sensor.NewSim(
			[]uint16{sensor.CodeYUYV8_2X8, sensor.CodeSBGGR10_1X10},
			sensor.Format{Width: cfg.Mod.Width, Height: cfg.Mod.Height, Code: sensor.CodeYUYV8_2X8},
			sensor.BusConfig{DataLanes: cfg.Mod.DataLanes, ContinuousClock: true},
		)
	} else {
		if err = openHardware(cfg, &dc, c); err != nil {
			return nil, err
		}
	}

	if c.dev, err = csirx.New(dc); err != nil {
		return nil, err
	}

	c.queue = vbq.New(c.dev, pool)

	if err = c.dev.Open(); err != nil {
		return nil, err
	}

	pix := csirx.PixFormat{
		Width:  cfg.Mod.Width,
		Height: cfg.Mod.Height,
		PixFmt: csirx.FourCC(cfg.Mod.Format),
	}
	if err = c.dev.SetFormat(&pix); err != nil {
		return nil, err
	}

	log.Info().
		Uint32("width", pix.Width).
		Uint32("height", pix.Height).
		Uint32("stride", pix.BytesPerLine).
		Msg("[capture] ready")

	return c, nil
}

// serveIRQ dispatches peripheral interrupts into the driver's service
// routine. This goroutine is the interrupt execution context.
func (c *capture) serveIRQ() {
	err := irq.Serve(c.line, func() {
		metrics.Interrupts.Add(1)
		c.dev.ISR()
	})
	if err != nil && !errors.Is(err, irq.ErrClosed) {
		log.Error().Err(err).Msg("[capture] irq")
	}
}

// recycle drains completions: keeps the latest frame for the API, counts
// sequence gaps as drops, and hands buffers straight back to the driver
// while streaming.
func (c *capture) recycle() {
	for done := range c.queue.Completions() {
		switch done.State {
		case csirx.BufDone:
			metrics.Frames.Add(1)

			c.mu.Lock()
			if done.Buf.Sequence > c.lastSeq+1 {
				metrics.Drops.Add(uint64(done.Buf.Sequence - c.lastSeq - 1))
			}
			c.lastSeq = done.Buf.Sequence
			c.lastFrame = append(c.lastFrame[:0], done.Buf.Region.CPU...)
			streaming := c.streaming
			c.mu.Unlock()

			if streaming {
				if err := c.queue.Requeue(done.Buf); err != nil {
					log.Warn().Err(err).Msg("[capture] requeue")
				}
			}

		case csirx.BufError, csirx.BufRequeue:
			// flushed on stop or failed start, keep for the next run
		}
	}
}

func (c *capture) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming {
		return errors.New("capture: already streaming")
	}

	count, err := c.queue.Setup(c.buffers)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err = c.queue.Enqueue(i); err != nil {
			return err
		}
	}

	if err = c.queue.StreamOn(); err != nil {
		return err
	}

	c.streaming = true
	c.lastSeq = 0
	metrics.Streaming.Store(1)

	if c.sim != nil {
		c.stopSim = make(chan struct{})
		go c.sim.Run(c.stopSim)
	}

	return nil
}

func (c *capture) stop() {
	c.mu.Lock()
	if !c.streaming {
		c.mu.Unlock()
		return
	}
	c.streaming = false
	if c.stopSim != nil {
		close(c.stopSim)
		c.stopSim = nil
	}
	c.mu.Unlock()

	c.queue.StreamOff()
	metrics.Streaming.Store(0)
}

func (c *capture) statusHandler(w http.ResponseWriter, r *http.Request) {
	api.ResponseJSON(w, c.dev.Status())
}

func (c *capture) formatsHandler(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, f := range c.dev.Formats() {
		names = append(names, csirx.FourCCString(f))
	}
	api.ResponseJSON(w, names)
}

func (c *capture) streamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	switch r.URL.Query().Get("state") {
	case "on":
		if err := c.start(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	case "off":
		c.stop()
	default:
		http.Error(w, "state must be on or off", http.StatusBadRequest)
		return
	}

	api.ResponseJSON(w, c.dev.Status())
}

func (c *capture) frameHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	frame := append([]byte(nil), c.lastFrame...)
	c.mu.Unlock()

	if frame == nil {
		http.Error(w, "no frame captured", http.StatusNotFound)
		return
	}

	api.Response(w, frame, "application/octet-stream")
}
