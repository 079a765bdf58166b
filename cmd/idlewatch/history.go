package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/config"
	"github.com/goodtune/idlewatch/internal/storage"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [SESSION_ID]",
	Short: "Show recorded sessions",
	Long: `List recent monitoring sessions from the session store, or show the
transitions of one session. Requires storage.type to be "redis".`,
	Example: `  idlewatch history --limit 5
  idlewatch history 3f2c9a4e-7b1d-4c55-9f0e-2a8d6c1b0e47`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of sessions to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Storage.Type != "redis" {
		return fmt.Errorf("session history requires storage.type \"redis\" (configured: %q)", cfg.Storage.Type)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	if len(args) == 1 {
		return showSession(ctx, store.Sessions(), args[0])
	}

	sessions, err := store.Sessions().ListSessions(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	printSessions(sessions)
	return nil
}

func printSessions(sessions []storage.Session) {
	// Escape codes would throw off tabwriter's column widths, so the table
	// stays uncolored
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHOST\tSTARTED\tTOTAL\tACTIVE\tIDLE\tDISPLAY SLEEP\tSYSTEM SLEEP")
	for _, s := range sessions {
		total := activity.FormatHMS(s.Total())
		if s.Open {
			total = "open"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Host,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			total,
			activity.FormatHMS(s.Active),
			activity.FormatHMS(s.Idle),
			activity.FormatHMS(s.DisplaySleep),
			activity.FormatHMS(s.SystemSleep))
	}
	_ = w.Flush()
}

func showSession(ctx context.Context, sessions storage.SessionStore, id string) error {
	s, err := sessions.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	transitions, err := sessions.ListTransitions(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list transitions: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Printf("SESSION %s\n", s.ID)
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Host:           %s\n", s.Host)
	fmt.Printf("Started:        %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.Open {
		fmt.Printf("Ended:          (still open, current state %s)\n", s.State)
	} else {
		fmt.Printf("Ended:          %s\n", s.EndedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Idle threshold: %s\n", s.IdleThreshold)
	fmt.Printf("Check interval: %s\n", s.CheckInterval)
	fmt.Println()

	totals := activity.Totals{
		Active:       s.Active,
		Idle:         s.Idle,
		DisplaySleep: s.DisplaySleep,
		SystemSleep:  s.SystemSleep,
	}
	for _, share := range totals.Shares() {
		fmt.Printf("%-15s %s  %5.1f%%\n", share.State.Label(), activity.FormatHMS(share.Duration), share.Percent)
	}
	fmt.Println()

	for _, tr := range transitions {
		fmt.Printf("%s  %s -> %s (duration: %s)\n",
			tr.At.Local().Format("2006-01-02 15:04:05"), tr.From, tr.To, activity.FormatHMS(tr.Duration))
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	return nil
}
