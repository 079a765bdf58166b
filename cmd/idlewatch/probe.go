package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/clock"
	"github.com/goodtune/idlewatch/internal/config"
	"github.com/goodtune/idlewatch/internal/probe"
	"github.com/goodtune/idlewatch/internal/signals"
	"github.com/spf13/cobra"
)

var (
	probePreviousIdle float64
	probeHost         bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Sample every signal once and show the classification",
	Long:  `Query each activity signal once, print the readings and show which state idlewatch would record for them.`,
	Example: `  idlewatch probe
  idlewatch probe --previous-idle 412 --idle-threshold 120`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().Float64Var(&probePreviousIdle, "previous-idle", 0, "Idle seconds from the previous sample, used by the system sleep check")
	probeCmd.Flags().BoolVar(&probeHost, "host", false, "Also show host uptime and load averages")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for probe mode
	logger := quietLogger()

	runner := probe.ExecRunner{Timeout: cfg.Probes.ProbeTimeout()}
	aggregator := signals.NewAggregator(probe.MacOSSources(runner), clock.Real{}, logger)

	classifier := activity.NewClassifier(activity.ClassifierConfig{
		IdleThreshold:     cfg.Monitor.IdleThreshold(),
		SystemSleepIdle:   cfg.Monitor.SystemSleepIdle(),
		SystemSleepJitter: cfg.Monitor.SystemSleepJitter(),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	snap := aggregator.Sample(ctx)
	decision := classifier.Decide(snap, probePreviousIdle)

	printProbeResult(snap, probePreviousIdle, decision)

	if probeHost {
		stats, err := probe.CollectHostStats(ctx)
		printHostStats(stats, err)
	}

	return nil
}

// printProbeResult prints the readings and classification with colors
func printProbeResult(snap signals.Snapshot, previousIdle float64, decision activity.Decision) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("SIGNAL PROBE")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Captured:      %s\n", snap.CapturedAt.Format("2006-01-02 15:04:05"))
	printReading("Idle:", snap.Idle.Available, fmt.Sprintf("%.1fs", snap.Idle.Seconds), red)
	printReading("Display:", snap.DisplayPower.Available,
		fmt.Sprintf("%s (level %.0f)", snap.DisplayPower.State, snap.DisplayPower.Level), red)
	printReading("Brightness:", snap.Brightness.Available, fmt.Sprintf("%.2f", snap.Brightness.Level), red)
	printReading("Displays:", snap.DisplayCount.Available, fmt.Sprintf("%d", snap.DisplayCount.Count), red)
	printReading("Power:", snap.PowerSummary.Available, snap.PowerSummary.Summary, red)
	fmt.Printf("Previous idle: %.1fs\n", previousIdle)
	fmt.Println()

	cyan.Print("State:         ")
	switch decision.State {
	case activity.StateActive:
		green.Println(decision.State.Label())
	case activity.StateIdle:
		yellow.Println(decision.State.Label())
	case activity.StateDisplaySleep:
		blue.Println(decision.State.Label())
	case activity.StateSystemSleep:
		red.Println(decision.State.Label())
	default:
		fmt.Println(decision.State.Label())
	}

	switch decision.Rule {
	case activity.RuleStuckIdleCounter:
		fmt.Println("               → Idle counter is high and has not moved since the previous sample")
	case activity.RuleDisplayOff:
		fmt.Println("               → Display reports power off")
	case activity.RuleNoDisplayProxies:
		fmt.Println("               → Neither brightness nor display count could be read")
	case activity.RuleIdleThreshold:
		fmt.Println("               → No input for longer than the idle threshold")
	default:
		fmt.Println("               → Recent input and the display is on")
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

func printReading(label string, available bool, value string, unavailable *color.Color) {
	fmt.Printf("%-15s", label)
	if !available {
		unavailable.Println(signals.FallbackText)
		return
	}
	fmt.Println(value)
}

func printHostStats(stats probe.HostStats, err error) {
	if err != nil {
		color.New(color.FgYellow).Printf("Host stats incomplete: %v\n", err)
	}
	fmt.Printf("Uptime:        %s\n", stats.Uptime)
	if !stats.BootTime.IsZero() {
		fmt.Printf("Booted:        %s\n", stats.BootTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Load:          %.2f %.2f %.2f\n", stats.Load1, stats.Load5, stats.Load15)
	fmt.Println()
}
