// Package periphi2c reaches the sensor over a native two-wire bus using periph.
package periphi2c

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Dev is a tcam.Transport bound to one device address. Every Write and Read
// is a separate bus transaction.
type Dev struct {
	dev *i2c.Dev
	// bus is only set when Open owns the bus.
	bus i2c.BusCloser
}

// New binds to addr on an already open bus.
func New(b i2c.Bus, addr uint16) *Dev {
	return &Dev{dev: &i2c.Dev{Bus: b, Addr: addr}}
}

// Open initializes the host drivers and opens the named bus; an empty name
// selects the first bus found. A zero speed keeps the bus default.
func Open(name string, addr uint16, speed physic.Frequency) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", name, err)
	}

	if speed > 0 {
		if err := b.SetSpeed(speed); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to set I2C bus speed to %s: %w", speed, err)
		}
	}

	d := New(b, addr)
	d.bus = b
	return d, nil
}

// ParseSpeed parses frequencies like "400kHz". An empty string yields 0.
func ParseSpeed(s string) (physic.Frequency, error) {
	var f physic.Frequency
	if s == "" {
		return 0, nil
	}
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("invalid I2C speed %q: %w", s, err)
	}
	return f, nil
}

func (d *Dev) Write(p []byte) (int, error) {
	if err := d.dev.Tx(p, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *Dev) Read(p []byte) (int, error) {
	if err := d.dev.Tx(nil, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *Dev) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

func (d *Dev) String() string {
	return d.dev.String()
}
