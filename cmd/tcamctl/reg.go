package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func createRegCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reg",
		Short: "Read or write raw sensor registers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <address>",
		Short: "Read a 16-bit register",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseWord(args[0])
			if err != nil {
				return err
			}

			dev, err := a.attach(nil)
			if err != nil {
				return err
			}
			defer dev.Close()

			v, err := dev.ReadRegister(addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "0x%04X = 0x%04X (%d)\n", addr, v, v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <address> <value>",
		Short: "Write a 16-bit register",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			addr, err := parseWord(args[0])
			if err != nil {
				return err
			}
			value, err := parseWord(args[1])
			if err != nil {
				return err
			}

			dev, err := a.attach(nil)
			if err != nil {
				return err
			}
			defer dev.Close()

			return dev.WriteRegister(addr, value)
		},
	})

	return cmd
}

// parseWord accepts decimal, 0x hex, 0o octal and 0b binary.
func parseWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid 16-bit value %q: %w", s, err)
	}
	return uint16(v), nil
}
