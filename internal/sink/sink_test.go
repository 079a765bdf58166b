package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/probe"
	"github.com/goodtune/idlewatch/internal/signals"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)

func TestTransitionLog_Lines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "idlewatch.log")

	l, err := OpenTransitionLog(path)
	if err != nil {
		t.Fatalf("OpenTransitionLog failed: %v", err)
	}

	if err := l.SessionStarted(t0, 60*time.Second, 5*time.Second); err != nil {
		t.Fatalf("SessionStarted failed: %v", err)
	}
	tr := activity.Transition{From: activity.StateActive, To: activity.StateIdle, Duration: 75 * time.Second, At: t0.Add(75 * time.Second)}
	if err := l.Transition(tr); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	totals := activity.Totals{Active: 75 * time.Second, Idle: 3725 * time.Second}
	if err := l.SessionEnded(t0.Add(time.Hour+time.Minute+20*time.Second), totals); err != nil {
		t.Fatalf("SessionEnded failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	want := []string{
		"2026-03-01 09:00:00 - Session started (idle threshold: 60s, check interval: 5s)",
		"2026-03-01 09:01:15 - Changed from active to idle (duration: 00:01:15)",
		"2026-03-01 10:01:20 - Session ended (total: 01:03:20, active: 00:01:15, idle: 01:02:05, display_sleep: 00:00:00, system_sleep: 00:00:00)",
	}
	got := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("Expected %d lines, got %d:\n%s", len(want), len(got), data)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d:\n got  %q\n want %q", i, got[i], want[i])
		}
	}
}

func TestTransitionLog_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idlewatch.log")

	for i := 0; i < 2; i++ {
		l, err := OpenTransitionLog(path)
		if err != nil {
			t.Fatalf("OpenTransitionLog failed: %v", err)
		}
		_ = l.SessionStarted(t0, time.Minute, 5*time.Second)
		_ = l.Close()
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "Session started"); n != 2 {
		t.Errorf("Expected 2 session headers, got %d", n)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestTransitionLog_WriteError(t *testing.T) {
	l := NewTransitionLog(failingWriter{})
	if err := l.Transition(activity.Transition{From: activity.StateActive, To: activity.StateIdle, At: t0}); err == nil {
		t.Fatal("Expected write error")
	}
}

func TestDiagnostics_Record(t *testing.T) {
	var buf bytes.Buffer
	stats := func(context.Context) (probe.HostStats, error) {
		return probe.HostStats{Uptime: 90 * time.Second, Load1: 1.5}, nil
	}
	d := NewDiagnostics(&buf, stats)

	snap := signals.Snapshot{
		CapturedAt:   t0,
		Idle:         signals.IdleReading{Seconds: 12.5, Available: true, Raw: `"HIDIdleTime" = 12500000000`},
		DisplayPower: signals.DisplayPowerReading{State: signals.DisplayPowerOn, Level: 4, Available: true},
		Brightness:   signals.BrightnessReading{Available: false},
		DisplayCount: signals.DisplayCountReading{Count: 1, Available: true},
		PowerSummary: signals.PowerSummaryReading{Summary: signals.FallbackText},
	}
	rec := DiagnosticRecord{
		Snapshot:     snap,
		PreviousIdle: 7.5,
		Decision:     activity.Decision{State: activity.StateActive, Rule: activity.RuleDefault},
	}
	if err := d.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON line %q: %v", buf.String(), err)
	}

	if got["state"] != "active" {
		t.Errorf("Expected state active, got %v", got["state"])
	}
	if got["rule"] != "default" {
		t.Errorf("Expected rule default, got %v", got["rule"])
	}
	if got["previous_idle"] != 7.5 {
		t.Errorf("Expected previous_idle 7.5, got %v", got["previous_idle"])
	}
	idle := got["idle"].(map[string]any)
	if idle["seconds"] != 12.5 || idle["available"] != true {
		t.Errorf("Unexpected idle field: %v", idle)
	}
	if got["display_power"].(map[string]any)["state"] != "on" {
		t.Errorf("Expected display power on, got %v", got["display_power"])
	}
	if got["brightness"].(map[string]any)["available"] != false {
		t.Errorf("Expected brightness unavailable, got %v", got["brightness"])
	}
	host := got["host"].(map[string]any)
	if host["uptime_seconds"] != 90.0 || host["load1"] != 1.5 {
		t.Errorf("Unexpected host field: %v", host)
	}
}

func TestDiagnostics_WriteError(t *testing.T) {
	d := NewDiagnostics(failingWriter{}, nil)
	if err := d.Write(context.Background(), DiagnosticRecord{}); err == nil {
		t.Fatal("Expected write error")
	}
	// The error is reported once
	d.w.w = &bytes.Buffer{}
	if err := d.Write(context.Background(), DiagnosticRecord{}); err != nil {
		t.Errorf("Expected no error after recovery, got %v", err)
	}
}

func TestConsole_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	if c.tty {
		t.Fatal("bytes.Buffer detected as terminal")
	}

	snap := signals.Snapshot{
		CapturedAt:   t0,
		Idle:         signals.IdleReading{Seconds: 3, Available: true},
		DisplayPower: signals.DisplayPowerReading{State: signals.DisplayPowerOn, Available: true},
	}
	if err := c.Status(activity.StateActive, snap, activity.Totals{Active: 5 * time.Second}); err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if err := c.Transition(activity.Transition{From: activity.StateActive, To: activity.StateIdle, Duration: time.Minute, At: t0}); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "\r") || strings.Contains(out, "\033[") {
		t.Errorf("Expected no terminal control sequences, got %q", out)
	}
	for _, want := range []string{"Active", "idle 3.0s", "display on", "brightness N/A", "active 00:00:05", "Active -> Idle after 00:01:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %q", want, out)
		}
	}
}

func TestConsole_StatusDisabled(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	_ = c.Status(activity.StateIdle, signals.Snapshot{CapturedAt: t0}, activity.Totals{})
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestConsole_TerminalTransitionSkipped(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	_ = c.Transition(activity.Transition{From: activity.StateIdle, To: activity.StateSessionEnd, At: t0})
	if buf.Len() != 0 {
		t.Errorf("Expected no output for terminal transition, got %q", buf.String())
	}
}

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	totals := activity.Totals{Active: 10 * time.Second, Idle: 10 * time.Second, DisplaySleep: 10 * time.Second}
	if err := c.Summary(t0, t0.Add(30*time.Second), totals); err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"SESSION SUMMARY",
		"Total:    00:00:30",
		"Active         00:00:10   33.4%",
		"Idle           00:00:10   33.3%",
		"Display Sleep  00:00:10   33.3%",
		"System Sleep   00:00:00    0.0%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, out)
		}
	}
}
