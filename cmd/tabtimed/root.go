package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:     "tabtimed",
	Short:   "Browser time tracking and limit enforcement daemon",
	Long:    "tabtimed attributes browser activity to web resources, aggregates per-day usage, and enforces per-domain time limits.",
	Version: Version,
	RunE:    runServer,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/tabtime/config.yaml", "Path to the configuration file")
}
