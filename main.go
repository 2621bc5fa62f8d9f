package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "topo-scan",
	Short: "Extract corneal topography measurements from printout photographs",
	Long: `topo-scan reads photographs of corneal topography printouts, runs them
through a text detector and turns the detected fragments into a fixed set
of named measurements (radii, keratometry, axis, Q-value, pachymetry,
anterior chamber depth and pupil diameter).`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml)",
	)
	rootCmd.AddCommand(serveCmd, extractCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
