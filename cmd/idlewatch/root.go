package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "idlewatch",
	Short: "idlewatch - track active, idle and sleeping time on a Mac",
	Long: `idlewatch samples OS activity signals (input idle time, display power,
brightness and attached displays) on a fixed interval, classifies each sample
as active, idle, display sleep or system sleep, and records how long the
machine spends in each state until it is stopped.`,
	Version:      version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to run command when no subcommand is provided
		return runMonitor(cmd, args)
	},
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to configuration file (default searches ~/.config/idlewatch and .)")
	flags.Int("idle-threshold", 60, "Seconds without input before the machine counts as idle")
	flags.Int("check-interval", 5, "Seconds between samples")
	flags.Bool("diagnostic", false, "Write a diagnostic record of every signal")
	flags.Int("diagnostic-interval", 30, "Minimum seconds between diagnostic records")
	flags.String("log-file", "idlewatch.log", "Transition log path")
	flags.String("diagnostic-file", "idlewatch-diagnostic.log", "Diagnostic log path")
	flags.String("log-level", "info", "Application log level (debug, info, warn, error)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
