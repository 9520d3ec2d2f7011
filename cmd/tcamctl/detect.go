package main

import (
	"fmt"

	"github.com/jonas-koeritz/tcam"
	"github.com/spf13/cobra"
)

func createDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Run sensor bring-up and print the resolved mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := a.attach(nil)
			if err != nil {
				return err
			}
			defer dev.Close()

			det := dev.Detection()
			st := dev.Status()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "result:    %s (%d attempts)\n", det.Result, det.Attempts)
			if det.Result != tcam.DetectedTimeout {
				fmt.Fprintf(out, "reported:  %dx%d\n", det.ReportedWidth, det.ReportedHeight)
			}
			fmt.Fprintf(out, "mode:      %s\n", st.Mode)
			fmt.Fprintf(out, "interval:  %s\n", st.Interval)
			fmt.Fprintf(out, "pixelrate: %d\n", st.PixelRate)
			return nil
		},
	}
}
