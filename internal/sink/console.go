package sink

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/signals"
	"github.com/mattn/go-isatty"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Console prints the live status line, transitions and the final summary.
type Console struct {
	out        io.Writer
	tty        bool
	statusLine bool
	pending    bool // a status line is on screen without a newline

	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	blue   *color.Color
	red    *color.Color
}

// NewConsole writes to out. On a terminal the status line is redrawn in
// place; otherwise each status is a line of its own. statusLine false
// suppresses per-tick status output.
func NewConsole(out io.Writer, statusLine bool) *Console {
	tty := IsTerminal(out)
	c := &Console{
		out:        out,
		tty:        tty,
		statusLine: statusLine,
		cyan:       color.New(color.FgCyan, color.Bold),
		green:      color.New(color.FgGreen, color.Bold),
		yellow:     color.New(color.FgYellow, color.Bold),
		blue:       color.New(color.FgBlue, color.Bold),
		red:        color.New(color.FgRed, color.Bold),
	}
	for _, col := range []*color.Color{c.cyan, c.green, c.yellow, c.blue, c.red} {
		if tty {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SessionStarted prints the monitoring banner.
func (c *Console) SessionStarted(at time.Time, idleThreshold, checkInterval time.Duration) error {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(c.cyan.Sprintln(rule))
	b.WriteString(c.cyan.Sprintln("IDLE MONITOR"))
	b.WriteString(c.cyan.Sprintln(rule))
	fmt.Fprintf(&b, "Started:        %s\n", at.Format(TimestampLayout))
	fmt.Fprintf(&b, "Idle threshold: %s\n", seconds(idleThreshold))
	fmt.Fprintf(&b, "Check interval: %s\n", seconds(checkInterval))
	b.WriteString("Press Ctrl+C to stop.\n\n")
	return c.write(b.String())
}

// Status shows the state of the latest tick together with the raw signal
// values and the running totals.
func (c *Console) Status(state activity.State, snap signals.Snapshot, totals activity.Totals) error {
	if !c.statusLine {
		return nil
	}

	line := fmt.Sprintf("[%s] %s | idle %s | display %s | brightness %s | displays %s | active %s idle %s display_sleep %s system_sleep %s",
		snap.CapturedAt.Format("15:04:05"),
		c.colorFor(state).Sprint(state.Label()),
		reading(snap.Idle.Available, fmt.Sprintf("%.1fs", snap.Idle.Seconds)),
		reading(snap.DisplayPower.Available, snap.DisplayPower.State.String()),
		reading(snap.Brightness.Available, fmt.Sprintf("%.2f", snap.Brightness.Level)),
		reading(snap.DisplayCount.Available, fmt.Sprintf("%d", snap.DisplayCount.Count)),
		activity.FormatHMS(totals.Active),
		activity.FormatHMS(totals.Idle),
		activity.FormatHMS(totals.DisplaySleep),
		activity.FormatHMS(totals.SystemSleep),
	)

	if c.tty {
		c.pending = true
		return c.writeRaw("\r\033[K" + line)
	}
	return c.writeRaw(line + "\n")
}

// Transition prints a state change on its own line.
func (c *Console) Transition(tr activity.Transition) error {
	if tr.Terminal() {
		return nil
	}
	line := fmt.Sprintf("%s  %s -> %s after %s\n",
		tr.At.Format("15:04:05"),
		tr.From.Label(),
		c.colorFor(tr.To).Sprint(tr.To.Label()),
		activity.FormatHMS(tr.Duration))
	return c.write(line)
}

// Summary prints the final per-state totals and percentages.
func (c *Console) Summary(started, ended time.Time, totals activity.Totals) error {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(c.cyan.Sprintln(rule))
	b.WriteString(c.cyan.Sprintln("SESSION SUMMARY"))
	b.WriteString(c.cyan.Sprintln(rule))
	if !started.IsZero() {
		fmt.Fprintf(&b, "Started:  %s\n", started.Format(TimestampLayout))
	}
	fmt.Fprintf(&b, "Ended:    %s\n", ended.Format(TimestampLayout))
	fmt.Fprintf(&b, "Total:    %s\n\n", activity.FormatHMS(totals.Sum()))

	for _, share := range totals.Shares() {
		label := fmt.Sprintf("%-14s", share.State.Label())
		fmt.Fprintf(&b, "%s %s  %5.1f%%\n",
			c.colorFor(share.State).Sprint(label),
			activity.FormatHMS(share.Duration),
			share.Percent)
	}

	b.WriteString("\n")
	b.WriteString(c.cyan.Sprintln(rule))
	return c.write(b.String())
}

func (c *Console) colorFor(s activity.State) *color.Color {
	switch s {
	case activity.StateActive:
		return c.green
	case activity.StateIdle:
		return c.yellow
	case activity.StateDisplaySleep:
		return c.blue
	case activity.StateSystemSleep:
		return c.red
	default:
		return c.cyan
	}
}

// write prints text after ending any status line still on screen.
func (c *Console) write(text string) error {
	if c.pending {
		c.pending = false
		text = "\r\033[K" + text
	}
	return c.writeRaw(text)
}

func (c *Console) writeRaw(text string) error {
	if _, err := io.WriteString(c.out, text); err != nil {
		return fmt.Errorf("failed to write console: %w", err)
	}
	return nil
}

func reading(available bool, value string) string {
	if !available {
		return signals.FallbackText
	}
	return value
}
