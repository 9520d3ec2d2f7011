package tcam

import "errors"

var (
	// ErrIO is returned when a register transaction is malformed or fails on the bus.
	ErrIO = errors.New("register i/o error")

	// ErrInvalidMode is returned when a resolution or frame rate is not in the mode table.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrBusy is returned when a mutating request arrives while the device is streaming.
	ErrBusy = errors.New("device is streaming")

	// ErrUnsupportedBus is returned when the video bus is not a CSI-2 D-PHY link.
	ErrUnsupportedBus = errors.New("unsupported video bus")

	// ErrNotPowered is returned when streaming is requested on a powered down device.
	ErrNotPowered = errors.New("device is not powered")

	// ErrPowerUnderflow marks a power-off request on a device that is already off.
	// It is logged, never returned.
	ErrPowerUnderflow = errors.New("power reference count underflow")

	ErrInvalidVirtualChannel = errors.New("virtual channel must be in 0..3")
)
