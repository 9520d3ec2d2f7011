package tcam

import (
	"log/slog"
	"sync"
	"time"
)

// RetryPolicy bounds the bring-up poll loop. Zero or negative fields take the
// DefaultRetryPolicy values, so a zero RetryPolicy polls with the default timing.
type RetryPolicy struct {
	// SettleDelay is waited once before the first poll.
	SettleDelay time.Duration
	MaxAttempts int
	// Interval is waited between two failed attempts.
	Interval time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		SettleDelay: 500 * time.Millisecond,
		MaxAttempts: 300,
		Interval:    5 * time.Millisecond,
		Sleep:       time.Sleep,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = def.SettleDelay
	}
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.Sleep == nil {
		p.Sleep = def.Sleep
	}
	return p
}

type DetectResult int

const (
	// DetectedSensor means the sensor reported a resolution found in the mode table.
	DetectedSensor DetectResult = iota
	// DetectedTimeout means the sensor never answered the resolution registers.
	DetectedTimeout
	// DetectedMismatch means the sensor reported a resolution outside the mode table.
	DetectedMismatch
)

func (r DetectResult) String() string {
	switch r {
	case DetectedSensor:
		return "detected"
	case DetectedTimeout:
		return "timeout"
	case DetectedMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Detection is the outcome of sensor bring-up. Mode is always a mode table entry.
type Detection struct {
	Mode   Mode
	Result DetectResult
	// ReportedWidth and ReportedHeight hold what the sensor answered, zero on timeout.
	ReportedWidth  uint16
	ReportedHeight uint16
	Attempts       int
}

// Fallback reports whether bring-up resolved to the built-in default mode.
func (d Detection) Fallback() bool {
	return d.Result != DetectedSensor
}

// Detector runs bring-up once and hands the cached result to every later attach.
type Detector struct {
	mu   sync.Mutex
	done bool
	det  Detection
}

// DefaultDetector is shared by all devices attached without their own Detector.
var DefaultDetector = &Detector{}

// Detect runs bring-up over t on the first call. Concurrent callers block until
// the first run finishes and then receive its result.
func (d *Detector) Detect(t Transport, policy RetryPolicy, logger *slog.Logger) Detection {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done {
		return d.det
	}

	d.det = bringUp(t, policy.withDefaults(), logger)
	d.done = true
	bringupResults.WithLabelValues(d.det.Result.String()).Inc()

	return d.det
}

// Result returns the cached detection, if bring-up has run.
func (d *Detector) Result() (Detection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.det, d.done
}

// Reset forgets the cached detection so the next attach probes the sensor again.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.done = false
	d.det = Detection{}
}

func bringUp(t Transport, policy RetryPolicy, logger *slog.Logger) Detection {
	policy.Sleep(policy.SettleDelay)

	attempts := 0
	ready := false
	for attempts < policy.MaxAttempts {
		attempts++
		bringupAttempts.Inc()

		_, errW := readReg(t, RES_WIDTH.Address)
		_, errH := readReg(t, RES_HEIGHT.Address)
		if errW == nil && errH == nil {
			ready = true
			break
		}
		logger.Debug("Sensor not ready", "attempt", attempts, "width_error", errW, "height_error", errH)

		if attempts < policy.MaxAttempts {
			policy.Sleep(policy.Interval)
		}
	}

	if !ready {
		logger.Error("Sensor did not report ready, using default mode", "attempts", attempts, "mode", ModeQVGA)
		return Detection{Mode: ModeQVGA, Result: DetectedTimeout, Attempts: attempts}
	}

	det := Detection{Mode: ModeQVGA, Result: DetectedMismatch, Attempts: attempts}

	w, err := readReg(t, RES_WIDTH.Address)
	if err != nil {
		logger.Error("Failed to read sensor width", "error", err)
		return det
	}
	h, err := readReg(t, RES_HEIGHT.Address)
	if err != nil {
		logger.Error("Failed to read sensor height", "error", err)
		return det
	}
	det.ReportedWidth, det.ReportedHeight = w, h

	if m, ok := FindMode(Rate30FPS, uint32(w), uint32(h)); ok {
		det.Mode = m
		det.Result = DetectedSensor
		logger.Info("Sensor detected", "width", w, "height", h, "attempts", attempts)
		return det
	}

	logger.Error("Sensor reported unsupported resolution, using default mode", "width", w, "height", h, "mode", ModeQVGA)
	return det
}
