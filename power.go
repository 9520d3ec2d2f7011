package tcam

import (
	"fmt"
)

// PowerAction is the hardware action a power request caused.
type PowerAction int

const (
	PowerNone PowerAction = iota
	PowerOn
	PowerOff
)

func (a PowerAction) String() string {
	switch a {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "none"
	}
}

type State int

const (
	StateOff State = iota
	StateIdle
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state()
}

func (d *Device) state() State {
	switch {
	case d.powerCount == 0:
		return StateOff
	case d.streaming:
		return StateStreaming
	default:
		return StateIdle
	}
}

// SetPower takes (on) or drops (off) a power reference. Only the first reference
// powers the sensor up and only releasing the last one powers it down.
func (d *Device) SetPower(on bool) (PowerAction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	action := PowerNone
	if on {
		if d.powerCount == 0 {
			if err := d.powerOn(); err != nil {
				return PowerNone, fmt.Errorf("failed to power on: %w", err)
			}
			action = PowerOn
		}
		d.powerCount++
	} else {
		if d.powerCount == 0 {
			d.log.Warn("Power off requested on a powered down device", "error", ErrPowerUnderflow)
			return PowerNone, nil
		}
		if d.powerCount == 1 {
			d.powerOff()
			action = PowerOff
		}
		d.powerCount--
	}

	devicePowerCount.WithLabelValues(d.name, d.id.String()).Set(float64(d.powerCount))
	publish(d.events, PowerEvent{Device: d.name, Action: action, Count: d.powerCount})

	return action, nil
}

func (d *Device) powerOn() error {
	d.log.Debug("Resetting sensor")
	if err := d.reset(); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	d.log.Info("Powered on")
	return nil
}

func (d *Device) powerOff() {
	wasStreaming := d.streaming
	d.streaming = false
	deviceStreaming.WithLabelValues(d.name, d.id.String()).Set(0)
	if wasStreaming {
		publish(d.events, StreamEvent{Device: d.name, Streaming: false})
	}
	d.log.Info("Powered off")
}

// SetStream starts or stops streaming. Starting requires a CSI-2 D-PHY bus, a
// mode/rate pair from the mode table and a powered device. Stopping always succeeds.
func (d *Device) SetStream(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streaming == enable {
		return nil
	}

	if enable {
		if d.busCfg.Type != BusCSI2DPHY {
			return fmt.Errorf("failed to start stream: %w: %s", ErrUnsupportedBus, d.busCfg.Type)
		}
		if m, ok := FindMode(d.currRate, d.currMode.Width, d.currMode.Height); !ok || m != d.currMode {
			d.log.Error("Mode not supported", "width", d.currMode.Width, "height", d.currMode.Height, "fps", d.currRate.FPS())
			return fmt.Errorf("failed to start stream: %w: %dx%d@%d", ErrInvalidMode, d.currMode.Width, d.currMode.Height, d.currRate.FPS())
		}
		if d.powerCount == 0 {
			return fmt.Errorf("failed to start stream: %w", ErrNotPowered)
		}
	}

	d.streaming = enable
	d.log.Info("Stream state changed", "streaming", enable, "width", d.currMode.Width, "height", d.currMode.Height, "fps", d.currRate.FPS())

	deviceStreaming.WithLabelValues(d.name, d.id.String()).Set(boolGauge(enable))
	publish(d.events, StreamEvent{Device: d.name, Streaming: enable})

	return nil
}

// Streaming reports whether the device is currently streaming.
func (d *Device) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.streaming
}
