package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jonas-koeritz/tcam"
	"github.com/jonas-koeritz/tcam/bus/periphi2c"
	"github.com/jonas-koeritz/tcam/bus/serialbridge"
	"github.com/jonas-koeritz/tcam/internal/config"
	"github.com/jonas-koeritz/tcam/internal/logging"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	cfg        config.Config
	log        *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "tcamctl",
		Short:        "Control an LWIR camera module",
		Long:         `Brings up an LWIR camera module over its two-wire control bus, negotiates the video mode and toggles streaming.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if err := config.ApplyFlags(&cfg, cmd.Flags()); err != nil {
				return err
			}
			a.cfg = cfg

			logging.Initialize(cfg.Logging)
			a.log = logging.GetLogger("tcamctl")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "tcam.toml", "Path to configuration file")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		createDetectCmd(a),
		createStreamCmd(a),
		createRegCmd(a),
		createPortsCmd(),
		createConfigCmd(a),
	)

	return cmd
}

func (a *app) openTransport() (tcam.Transport, error) {
	switch a.cfg.Device.Transport {
	case "serial":
		b, err := serialbridge.Open(a.cfg.Device.Address, a.cfg.Device.SerialPort)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "i2c":
		speed, err := periphi2c.ParseSpeed(a.cfg.Device.I2CSpeed)
		if err != nil {
			return nil, err
		}
		d, err := periphi2c.Open(a.cfg.Device.I2CBus, a.cfg.Device.Address, speed)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", a.cfg.Device.Transport)
	}
}

func (a *app) attach(events *tcam.Events) (*tcam.Device, error) {
	bus, err := a.cfg.BusConfig()
	if err != nil {
		return nil, err
	}

	t, err := a.openTransport()
	if err != nil {
		return nil, err
	}

	return a.attachTransport(t, bus, events)
}

// attachTransport takes ownership of t and closes it when attaching fails.
func (a *app) attachTransport(t tcam.Transport, bus tcam.BusConfig, events *tcam.Events) (*tcam.Device, error) {
	dev, err := tcam.Attach(t, tcam.Options{
		Name:   a.cfg.Device.Name,
		Bus:    bus,
		Retry:  a.cfg.RetryPolicy(),
		Events: events,
	})
	if err != nil {
		if c, ok := t.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	return dev, nil
}

func createConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), a.cfg.String())
		},
	}
}

func createPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List attached serial bridges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := serialbridge.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no bridges found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.Name, p.SerialNumber, p.Product)
			}
			return nil
		},
	}
}
