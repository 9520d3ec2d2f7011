package tcam

import (
	"errors"
	"fmt"
)

// ErrNoMoreEntries ends an enumeration.
var ErrNoMoreEntries = errors.New("no more entries")

// FrameFormat is the media bus format on the sensor's source pad.
type FrameFormat struct {
	Code         uint32
	Colorspace   Colorspace
	YCbCrEnc     YCbCrEncoding
	Quantization Quantization
	XferFunc     XferFunc
	Field        Field
	Width        uint32
	Height       uint32
}

// Which selects one of the two format slots of a device.
type Which int

const (
	// WhichTrial is scratch space for format negotiation; it never reaches the hardware.
	WhichTrial Which = iota
	// WhichActive is the format the streaming path uses.
	WhichActive
)

func (w Which) String() string {
	if w == WhichActive {
		return "active"
	}
	return "trial"
}

func defaultFormat() FrameFormat {
	return FrameFormat{
		Code:         pixelFormats[0].Code,
		Colorspace:   pixelFormats[0].Colorspace,
		YCbCrEnc:     YCbCrEncDefault,
		Quantization: QuantizationFullRange,
		XferFunc:     XferFuncDefault,
		Field:        FieldNone,
		Width:        ModeQVGA.Width,
		Height:       ModeQVGA.Height,
	}
}

func normalizeFormat(m Mode) FrameFormat {
	pf := pixelFormats[0]
	return FrameFormat{
		Code:         pf.Code,
		Colorspace:   pf.Colorspace,
		YCbCrEnc:     defaultYCbCrEnc(pf.Colorspace),
		Quantization: QuantizationFullRange,
		XferFunc:     defaultXferFunc(pf.Colorspace),
		Field:        FieldNone,
		Width:        m.Width,
		Height:       m.Height,
	}
}

func (d *Device) tryFormat(req FrameFormat) (FrameFormat, Mode, error) {
	m, ok := FindMode(d.currRate, req.Width, req.Height)
	if !ok {
		return FrameFormat{}, Mode{}, fmt.Errorf("%w: %dx%d@%d", ErrInvalidMode, req.Width, req.Height, d.currRate.FPS())
	}
	return normalizeFormat(m), m, nil
}

// TryFormat resolves req against the mode table at the current frame rate without
// touching device state.
func (d *Device) TryFormat(req FrameFormat) (FrameFormat, Mode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.tryFormat(req)
}

// SetFormat negotiates req and stores the normalized result in the selected slot.
// Storing into WhichActive also adopts the matching mode. On failure nothing changes.
func (d *Device) SetFormat(which Which, req FrameFormat) (FrameFormat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, m, err := d.tryFormat(req)
	if err != nil {
		return FrameFormat{}, fmt.Errorf("failed to set %s format: %w", which, err)
	}

	if which == WhichTrial {
		d.trial = f
		return f, nil
	}

	if m != d.currMode {
		old := d.currMode
		d.lastMode = d.currMode
		d.currMode = m
		d.pixelRate = PixelRate(m, d.currRate)
		devicePixelRate.WithLabelValues(d.name, d.id.String()).Set(float64(d.pixelRate))
		d.log.Info("Mode changed", "from", old, "to", m)
		publish(d.events, ModeEvent{Device: d.name, Old: old, New: m})
	}
	d.active = f

	return f, nil
}

// Format returns the format held in the selected slot.
func (d *Device) Format(which Which) FrameFormat {
	d.mu.Lock()
	defer d.mu.Unlock()

	if which == WhichTrial {
		return d.trial
	}
	return d.active
}

// FrameInterval returns the committed frame interval.
func (d *Device) FrameInterval() Fraction {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.interval
}

func (d *Device) FrameRate() FrameRate {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.currRate
}

// PixelRate returns the pixel rate of the committed mode and frame rate.
func (d *Device) PixelRate() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pixelRate
}

// SetFrameInterval picks the supported frame rate nearest to fi and commits it.
// It returns the interval actually in effect.
func (d *Device) SetFrameInterval(fi Fraction) (Fraction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streaming {
		return d.interval, fmt.Errorf("failed to set frame interval: %w", ErrBusy)
	}

	rate, interval := RateForInterval(fi)
	m, ok := FindMode(rate, d.currMode.Width, d.currMode.Height)
	if !ok {
		return d.interval, fmt.Errorf("failed to set frame interval: %w: %dx%d@%d", ErrInvalidMode, d.currMode.Width, d.currMode.Height, rate.FPS())
	}

	if m == d.currMode && rate == d.currRate {
		return d.interval, nil
	}

	if m != d.currMode {
		d.lastMode = d.currMode
		d.currMode = m
	}
	d.currRate = rate
	d.interval = interval
	d.pixelRate = PixelRate(m, rate)

	devicePixelRate.WithLabelValues(d.name, d.id.String()).Set(float64(d.pixelRate))
	d.log.Info("Frame rate changed", "fps", rate.FPS(), "interval", interval, "pixel_rate", d.pixelRate)
	publish(d.events, FrameRateEvent{Device: d.name, Rate: rate, Interval: interval, PixelRate: d.pixelRate})

	return interval, nil
}

// EnumMbusCode returns the index-th supported media bus code.
func (d *Device) EnumMbusCode(index int) (uint32, error) {
	if index < 0 || index >= len(pixelFormats) {
		return 0, ErrNoMoreEntries
	}
	return pixelFormats[index].Code, nil
}

// FrameSize is a range of frame sizes; the sensor only reports fixed sizes.
type FrameSize struct {
	MinWidth  uint32
	MaxWidth  uint32
	MinHeight uint32
	MaxHeight uint32
}

// EnumFrameSize reports the current mode's size at index 0.
func (d *Device) EnumFrameSize(index int) (FrameSize, error) {
	if index != 0 {
		return FrameSize{}, ErrNoMoreEntries
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return FrameSize{
		MinWidth:  d.currMode.Width,
		MaxWidth:  d.currMode.Width,
		MinHeight: d.currMode.Height,
		MaxHeight: d.currMode.Height,
	}, nil
}

// EnumFrameInterval returns the index-th frame interval supported at width x height.
// Only the current mode's size is accepted and rates above its maximum are not listed.
func (d *Device) EnumFrameInterval(index int, code uint32, width, height uint32) (Fraction, error) {
	rate := FrameRate(index)
	if !rate.Valid() {
		return Fraction{}, ErrNoMoreEntries
	}
	if width == 0 || height == 0 || code == 0 {
		return Fraction{}, fmt.Errorf("%w: pixel code, width and height are required", ErrInvalidMode)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if width != d.currMode.Width || height != d.currMode.Height {
		return Fraction{}, fmt.Errorf("%w: %dx%d", ErrInvalidMode, width, height)
	}
	// Unlike the rate table, rates above the mode's maximum are not advertised.
	if uint32(rate.FPS()) > d.currMode.MaxFPS {
		return Fraction{}, ErrNoMoreEntries
	}

	return Fraction{1, uint32(rate.FPS())}, nil
}
