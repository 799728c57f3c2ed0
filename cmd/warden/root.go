package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - policy enforcement engine for fleet operations",
	Long: `Warden compiles governance policy documents into deterministic rules and
enforces them synchronously against fleet operations.

It provides:
  - Policy-to-rule compilation with dry-run previews
  - Synchronous enforcement with allow/warn/approval/block decisions
  - Durable approval workflows that never bypass enforcement
  - A hash-chained, append-only audit trail with retention`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
