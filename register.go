package tcam

import (
	"fmt"
)

// Transport carries raw two-wire bus transactions to the sensor. Each call is a
// single bus transaction and returns the number of bytes the bus accepted or
// delivered.
type Transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

func writeReg(t Transport, reg uint16, value uint16) error {
	buf := []byte{byte(reg >> 8), byte(reg & 0xff), byte(value >> 8), byte(value & 0xff)}

	n, err := t.Write(buf)
	if err != nil {
		registerErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("%w: failed to write register 0x%04X: %w", ErrIO, reg, err)
	}
	if n != len(buf) {
		registerErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("%w: failed to write register 0x%04X: short write (%d of %d bytes)", ErrIO, reg, n, len(buf))
	}

	return nil
}

func readReg(t Transport, reg uint16) (uint16, error) {
	buf := []byte{byte(reg >> 8), byte(reg & 0xff)}

	n, err := t.Write(buf)
	if err != nil {
		registerErrors.WithLabelValues("read").Inc()
		return 0, fmt.Errorf("%w: failed to address register 0x%04X: %w", ErrIO, reg, err)
	}
	if n != len(buf) {
		registerErrors.WithLabelValues("read").Inc()
		return 0, fmt.Errorf("%w: failed to address register 0x%04X: short write (%d of %d bytes)", ErrIO, reg, n, len(buf))
	}

	n, err = t.Read(buf)
	if err != nil {
		registerErrors.WithLabelValues("read").Inc()
		return 0, fmt.Errorf("%w: failed to read register 0x%04X: %w", ErrIO, reg, err)
	}
	if n != len(buf) {
		registerErrors.WithLabelValues("read").Inc()
		return 0, fmt.Errorf("%w: failed to read register 0x%04X: short read (%d of %d bytes)", ErrIO, reg, n, len(buf))
	}

	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// ReadRegister reads a raw 16-bit register. It is meant for debugging.
func (d *Device) ReadRegister(addr uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return readReg(d.bus, addr)
}

// WriteRegister writes a raw 16-bit register. It is meant for debugging and
// refuses registers known to be read-only.
func (d *Device) WriteRegister(addr uint16, value uint16) error {
	for _, reg := range []register{RES_WIDTH, RES_HEIGHT} {
		if reg.Address == addr && reg.ReadOnly {
			return fmt.Errorf("register 0x%04X is read-only", addr)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return writeReg(d.bus, addr, value)
}
