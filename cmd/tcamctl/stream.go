package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonas-koeritz/tcam"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func createStreamCmd(a *app) *cobra.Command {
	var fps int
	var width, height uint32
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Power the sensor, negotiate a mode and stream until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("metrics") {
				a.cfg.Metrics.Listen = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := tcam.NewEvents()
			defer tcam.Subscribe(events, func(e tcam.PowerEvent) {
				a.log.Debug("Power event", "action", e.Action, "count", e.Count)
			})()
			defer tcam.Subscribe(events, func(e tcam.StreamEvent) {
				a.log.Debug("Stream event", "streaming", e.Streaming)
			})()
			defer tcam.Subscribe(events, func(e tcam.FrameRateEvent) {
				a.log.Debug("Frame rate event", "fps", e.Rate.FPS(), "pixel_rate", e.PixelRate)
			})()

			dev, err := a.attach(events)
			if err != nil {
				return err
			}
			defer dev.Close()

			if a.cfg.Metrics.Listen != "" {
				srv := serveMetrics(a, a.cfg.Metrics.Listen)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			if _, err := dev.SetPower(true); err != nil {
				return err
			}
			defer dev.SetPower(false)

			f, err := dev.SetFormat(tcam.WhichActive, tcam.FrameFormat{Width: width, Height: height})
			if err != nil {
				return err
			}

			var fi tcam.Fraction
			if fps > 0 {
				fi = tcam.Fraction{Numerator: 1, Denominator: uint32(fps)}
			}
			fi, err = dev.SetFrameInterval(fi)
			if err != nil {
				return err
			}

			if err := dev.SetStream(true); err != nil {
				return err
			}
			defer dev.SetStream(false)

			fmt.Fprintf(cmd.OutOrStdout(), "streaming %dx%d at %s s/frame, pixel rate %d\n", f.Width, f.Height, fi, dev.PixelRate())

			<-ctx.Done()
			a.log.Info("Stopping stream")
			return nil
		},
	}

	cmd.Flags().IntVar(&fps, "fps", 0, "Requested frame rate, 0 selects the maximum")
	cmd.Flags().Uint32Var(&width, "width", tcam.ModeQVGA.Width, "Frame width")
	cmd.Flags().Uint32Var(&height, "height", tcam.ModeQVGA.Height, "Frame height")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")

	return cmd
}

func serveMetrics(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info("Serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Metrics server failed", "error", err)
		}
	}()

	return srv
}
