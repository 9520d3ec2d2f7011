package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonas-koeritz/tcam"
	"github.com/jonas-koeritz/tcam/internal/logging"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "TCAM_"

// Duration is a time.Duration written as a Go duration string ("500ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Device  DeviceConfig   `toml:"device"`
	Bringup BringupConfig  `toml:"bringup"`
	Logging logging.Config `toml:"logging"`
	Metrics MetricsConfig  `toml:"metrics"`
}

type DeviceConfig struct {
	Name string `toml:"name"`
	// Transport is "i2c" for a native two-wire bus or "serial" for a USB bridge.
	Transport  string `toml:"transport"`
	I2CBus     string `toml:"i2c_bus"`
	I2CSpeed   string `toml:"i2c_speed"`
	SerialPort string `toml:"serial_port"`
	Address    uint16 `toml:"address"`

	BusType        string `toml:"bus_type"`
	DataLanes      []int  `toml:"data_lanes"`
	ClockLane      uint8  `toml:"clock_lane"`
	LanePolarities []bool `toml:"lane_polarities"`
	Flags          uint32 `toml:"flags"`
	VirtualChannel uint8  `toml:"virtual_channel"`
}

type BringupConfig struct {
	SettleDelay Duration `toml:"settle_delay"`
	MaxAttempts int      `toml:"max_attempts"`
	Interval    Duration `toml:"interval"`
}

type MetricsConfig struct {
	// Listen is the address of the Prometheus endpoint, empty disables it.
	Listen string `toml:"listen"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	policy := tcam.DefaultRetryPolicy()
	return Config{
		Device: DeviceConfig{
			Name:      "tcam0",
			Transport: "i2c",
			Address:   tcam.DefaultAddress,
			BusType:   tcam.BusCSI2DPHY.String(),
			DataLanes: []int{1, 2},
			ClockLane: tcam.DefaultBusConfig.ClockLane,
		},
		Bringup: BringupConfig{
			SettleDelay: Duration{policy.SettleDelay},
			MaxAttempts: policy.MaxAttempts,
			Interval:    Duration{policy.Interval},
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies TCAM_* environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse TOML config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

type envBinding struct {
	key string
	set func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"DEVICE_NAME", func(c *Config, v string) error { c.Device.Name = v; return nil }},
	{"DEVICE_TRANSPORT", func(c *Config, v string) error { c.Device.Transport = v; return nil }},
	{"DEVICE_I2C_BUS", func(c *Config, v string) error { c.Device.I2CBus = v; return nil }},
	{"DEVICE_I2C_SPEED", func(c *Config, v string) error { c.Device.I2CSpeed = v; return nil }},
	{"DEVICE_SERIAL_PORT", func(c *Config, v string) error { c.Device.SerialPort = v; return nil }},
	{"DEVICE_ADDRESS", func(c *Config, v string) error {
		a, err := strconv.ParseUint(v, 0, 16)
		c.Device.Address = uint16(a)
		return err
	}},
	{"DEVICE_BUS_TYPE", func(c *Config, v string) error { c.Device.BusType = v; return nil }},
	{"DEVICE_VIRTUAL_CHANNEL", func(c *Config, v string) error {
		vc, err := strconv.ParseUint(v, 10, 8)
		c.Device.VirtualChannel = uint8(vc)
		return err
	}},
	{"BRINGUP_SETTLE_DELAY", func(c *Config, v string) error { return c.Bringup.SettleDelay.UnmarshalText([]byte(v)) }},
	{"BRINGUP_MAX_ATTEMPTS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Bringup.MaxAttempts = n
		return err
	}},
	{"BRINGUP_INTERVAL", func(c *Config, v string) error { return c.Bringup.Interval.UnmarshalText([]byte(v)) }},
	{"LOGGING_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"LOGGING_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
	{"METRICS_LISTEN", func(c *Config, v string) error { c.Metrics.Listen = v; return nil }},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(envPrefix + b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, b.key, err)
		}
	}
	return nil
}

// Validate checks values the driver would otherwise reject at attach time.
func (c Config) Validate() error {
	switch c.Device.Transport {
	case "i2c", "serial":
	default:
		return fmt.Errorf("unknown transport %q (want i2c or serial)", c.Device.Transport)
	}
	if _, err := tcam.ParseBusType(c.Device.BusType); err != nil {
		return err
	}
	if c.Device.VirtualChannel > 3 {
		return fmt.Errorf("virtual_channel %d: %w", c.Device.VirtualChannel, tcam.ErrInvalidVirtualChannel)
	}
	if c.Bringup.MaxAttempts <= 0 {
		return fmt.Errorf("bringup.max_attempts must be positive, got %d", c.Bringup.MaxAttempts)
	}
	return nil
}

// BusConfig converts the device section into the driver's bus descriptor.
func (c Config) BusConfig() (tcam.BusConfig, error) {
	bt, err := tcam.ParseBusType(c.Device.BusType)
	if err != nil {
		return tcam.BusConfig{}, err
	}
	lanes := make([]uint8, 0, len(c.Device.DataLanes))
	for _, l := range c.Device.DataLanes {
		if l < 0 || l > 255 {
			return tcam.BusConfig{}, fmt.Errorf("invalid data lane %d", l)
		}
		lanes = append(lanes, uint8(l))
	}
	return tcam.BusConfig{
		Type:           bt,
		DataLanes:      lanes,
		ClockLane:      c.Device.ClockLane,
		LanePolarities: c.Device.LanePolarities,
		Flags:          c.Device.Flags,
		VirtualChannel: c.Device.VirtualChannel,
	}, nil
}

// RetryPolicy converts the bringup section into the driver's poll policy.
func (c Config) RetryPolicy() tcam.RetryPolicy {
	return tcam.RetryPolicy{
		SettleDelay: c.Bringup.SettleDelay.Duration,
		MaxAttempts: c.Bringup.MaxAttempts,
		Interval:    c.Bringup.Interval.Duration,
	}
}

// BindFlags registers the command line overrides on fs.
func BindFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("transport", def.Device.Transport, "Bus transport (i2c, serial)")
	fs.String("i2c-bus", def.Device.I2CBus, "I2C bus name, empty for the first bus")
	fs.String("i2c-speed", def.Device.I2CSpeed, "I2C bus speed such as 400kHz, empty keeps the bus default")
	fs.String("serial-port", def.Device.SerialPort, "Serial bridge port, empty to autodetect")
	fs.Uint16("address", def.Device.Address, "Sensor two-wire address")
	fs.String("bus-type", def.Device.BusType, "Video bus type")
	fs.Uint8("virtual-channel", def.Device.VirtualChannel, "CSI-2 virtual channel (0..3)")
	fs.String("log-level", def.Logging.Level, "Log level (debug, info, warn, error)")
	fs.String("log-format", def.Logging.Format, "Log format (text, json)")
}

// ApplyFlags copies flags explicitly set on the command line into cfg, so they
// win over the file and the environment.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "transport":
			cfg.Device.Transport = f.Value.String()
		case "i2c-bus":
			cfg.Device.I2CBus = f.Value.String()
		case "i2c-speed":
			cfg.Device.I2CSpeed = f.Value.String()
		case "serial-port":
			cfg.Device.SerialPort = f.Value.String()
		case "address":
			cfg.Device.Address, err = fs.GetUint16(f.Name)
		case "bus-type":
			cfg.Device.BusType = f.Value.String()
		case "virtual-channel":
			cfg.Device.VirtualChannel, err = fs.GetUint8(f.Name)
		case "log-level":
			cfg.Logging.Level = f.Value.String()
		case "log-format":
			cfg.Logging.Format = f.Value.String()
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// String renders cfg as TOML, used by "tcamctl config".
func (c Config) String() string {
	var b strings.Builder
	enc := toml.NewEncoder(&b)
	if err := enc.Encode(c); err != nil {
		return fmt.Sprintf("# failed to encode config: %s", err)
	}
	return b.String()
}
