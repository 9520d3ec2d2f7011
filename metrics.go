package tcam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tcam",
		Subsystem: "register",
		Name:      "errors_total",
		Help:      "Failed two-wire register transactions",
	}, []string{"op"})

	bringupAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tcam",
		Subsystem: "bringup",
		Name:      "poll_attempts_total",
		Help:      "Register poll attempts made while waiting for the sensor to become ready",
	})

	bringupResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tcam",
		Subsystem: "bringup",
		Name:      "results_total",
		Help:      "Outcome of sensor bring-up runs",
	}, []string{"result"})

	devicePowerCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tcam",
		Subsystem: "device",
		Name:      "power_count",
		Help:      "Power reference count per device",
	}, []string{"device", "instance"})

	deviceStreaming = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tcam",
		Subsystem: "device",
		Name:      "streaming",
		Help:      "1 while the device is streaming",
	}, []string{"device", "instance"})

	devicePixelRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tcam",
		Subsystem: "device",
		Name:      "pixel_rate",
		Help:      "Pixel rate of the negotiated mode in pixels per second",
	}, []string{"device", "instance"})
)

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
