package tcam

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonas-koeritz/tcam/internal/logging"
)

type BusType int

const (
	BusUnknown BusType = iota
	BusParallel
	BusBT656
	BusCSI1
	BusCCP2
	BusCSI2DPHY
	BusCSI2CPHY
)

var busTypeNames = map[BusType]string{
	BusUnknown:  "unknown",
	BusParallel: "parallel",
	BusBT656:    "bt656",
	BusCSI1:     "csi1",
	BusCCP2:     "ccp2",
	BusCSI2DPHY: "csi2-dphy",
	BusCSI2CPHY: "csi2-cphy",
}

func (b BusType) String() string {
	if name, ok := busTypeNames[b]; ok {
		return name
	}
	return fmt.Sprintf("BusType(%d)", int(b))
}

// ParseBusType accepts the names returned by BusType.String.
func ParseBusType(s string) (BusType, error) {
	for t, name := range busTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return BusUnknown, fmt.Errorf("unknown bus type %q", s)
}

// BusConfig describes the video link between the sensor and the receiver.
// Only Type is interpreted; the rest is passed through to the host.
type BusConfig struct {
	Type           BusType
	DataLanes      []uint8
	ClockLane      uint8
	LanePolarities []bool
	Flags          uint32
	VirtualChannel uint8
}

// DefaultBusConfig is a two-lane CSI-2 D-PHY link on virtual channel 0.
var DefaultBusConfig = BusConfig{
	Type:      BusCSI2DPHY,
	DataLanes: []uint8{1, 2},
	ClockLane: 0,
}

type Options struct {
	// Name labels logs and metrics, defaults to "tcam".
	Name string
	// Bus describes the video link. The zero value is BusUnknown, which can
	// negotiate formats but never stream; use DefaultBusConfig for a CSI-2 link.
	Bus BusConfig
	// Retry controls bring-up polling. Zero fields take DefaultRetryPolicy values.
	Retry RetryPolicy
	// Detector defaults to DefaultDetector.
	Detector *Detector
	// Reset is the board hook run when the device powers up.
	Reset  func() error
	Logger *slog.Logger
	Events *Events
}

// Device is one attached sensor. All methods are safe for concurrent use.
type Device struct {
	id     uuid.UUID
	name   string
	bus    Transport
	busCfg BusConfig
	reset  func() error
	events *Events
	log    *slog.Logger

	mu         sync.Mutex
	powerCount int
	streaming  bool
	currMode   Mode
	lastMode   Mode
	currRate   FrameRate
	interval   Fraction
	pixelRate  uint64
	active     FrameFormat
	trial      FrameFormat
	detection  Detection
}

// Attach sets up a sensor reachable over t. The first attach in the process runs
// bring-up; detection problems fall back to the default mode and never fail Attach.
func Attach(t Transport, opts Options) (*Device, error) {
	if opts.Bus.VirtualChannel > 3 {
		return nil, fmt.Errorf("failed to attach sensor: %w (got %d)", ErrInvalidVirtualChannel, opts.Bus.VirtualChannel)
	}
	if opts.Name == "" {
		opts.Name = "tcam"
	}
	if opts.Detector == nil {
		opts.Detector = DefaultDetector
	}
	if opts.Reset == nil {
		opts.Reset = func() error { return nil }
	}

	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("tcam")
	}
	logger = logger.With("device", opts.Name, "instance", id.String())

	d := &Device{
		id:     id,
		name:   opts.Name,
		bus:    t,
		busCfg: opts.Bus,
		reset:  opts.Reset,
		events: opts.Events,
		log:    logger,
	}

	d.init(opts.Detector, opts.Retry)

	return d, nil
}

func (d *Device) init(detector *Detector, policy RetryPolicy) {
	d.active = defaultFormat()
	d.currRate = Rate30FPS
	d.interval = Fraction{1, uint32(Rate30FPS.FPS())}

	if d.busCfg.Type != BusCSI2DPHY {
		d.log.Warn("Video bus cannot stream, expected CSI-2 D-PHY", "bus", d.busCfg.Type)
	} else {
		d.log.Info("Video bus",
			"bus", d.busCfg.Type,
			"data_lanes", d.busCfg.DataLanes,
			"clock_lane", d.busCfg.ClockLane,
			"lane_polarities", d.busCfg.LanePolarities,
			"flags", d.busCfg.Flags,
			"virtual_channel", d.busCfg.VirtualChannel)
	}

	d.detection = detector.Detect(d.bus, policy, d.log)

	d.currMode = d.detection.Mode
	d.lastMode = d.currMode
	d.active.Width = d.currMode.Width
	d.active.Height = d.currMode.Height
	d.trial = d.active
	d.pixelRate = PixelRate(d.currMode, d.currRate)

	devicePowerCount.WithLabelValues(d.name, d.id.String()).Set(0)
	deviceStreaming.WithLabelValues(d.name, d.id.String()).Set(0)
	devicePixelRate.WithLabelValues(d.name, d.id.String()).Set(float64(d.pixelRate))
}

// Close releases the transport if it can be closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	devicePowerCount.DeleteLabelValues(d.name, d.id.String())
	deviceStreaming.DeleteLabelValues(d.name, d.id.String())
	devicePixelRate.DeleteLabelValues(d.name, d.id.String())

	if c, ok := d.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (d *Device) ID() uuid.UUID { return d.id }

func (d *Device) Name() string { return d.name }

func (d *Device) Bus() BusConfig { return d.busCfg }

// Detection returns the bring-up result this device was seeded from.
func (d *Device) Detection() Detection {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.detection
}

// Status is a point-in-time snapshot of the device record.
type Status struct {
	State      State
	PowerCount int
	Streaming  bool
	Mode       Mode
	LastMode   Mode
	Rate       FrameRate
	Interval   Fraction
	PixelRate  uint64
	Format     FrameFormat
}

func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Status{
		State:      d.state(),
		PowerCount: d.powerCount,
		Streaming:  d.streaming,
		Mode:       d.currMode,
		LastMode:   d.lastMode,
		Rate:       d.currRate,
		Interval:   d.interval,
		PixelRate:  d.pixelRate,
		Format:     d.active,
	}
}
