package capture

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metrics struct {
	Frames     atomic.Uint64
	Drops      atomic.Uint64
	Interrupts atomic.Uint64
	Streaming  atomic.Uint64
}

func metricsHandler() http.HandlerFunc {
	registry := prometheus.NewRegistry()

	gauge := func(name, help string, value func() float64) {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help}, value,
		))
	}

	gauge("csirx_frames_total", "Frames delivered by the receiver",
		func() float64 { return float64(metrics.Frames.Load()) })
	gauge("csirx_drops_total", "Frames lost to sequence gaps",
		func() float64 { return float64(metrics.Drops.Load()) })
	gauge("csirx_interrupts_total", "Interrupts serviced",
		func() float64 { return float64(metrics.Interrupts.Load()) })
	gauge("csirx_streaming", "1 while the capture pipeline is running",
		func() float64 { return float64(metrics.Streaming.Load()) })

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler.ServeHTTP
}
