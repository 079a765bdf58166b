package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/probe"
	"github.com/goodtune/idlewatch/internal/signals"
	"github.com/rs/zerolog"
)

// DiagnosticRecord is everything known about one tick.
type DiagnosticRecord struct {
	Snapshot     signals.Snapshot
	PreviousIdle float64
	Decision     activity.Decision
}

// HostStatsFunc collects host state for a diagnostic record.
type HostStatsFunc func(ctx context.Context) (probe.HostStats, error)

// Diagnostics writes one JSON line per record.
type Diagnostics struct {
	w         *errWriter
	logger    zerolog.Logger
	hostStats HostStatsFunc
	close     func() error
}

// OpenDiagnostics opens path for appending.
func OpenDiagnostics(path string) (*Diagnostics, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostic log: %w", err)
	}
	d := NewDiagnostics(f, probe.CollectHostStats)
	d.close = f.Close
	return d, nil
}

// NewDiagnostics writes records to w. hostStats may be nil.
func NewDiagnostics(w io.Writer, hostStats HostStatsFunc) *Diagnostics {
	ew := &errWriter{w: w}
	return &Diagnostics{
		w:         ew,
		logger:    zerolog.New(ew),
		hostStats: hostStats,
	}
}

// Write appends rec as a JSON line.
func (d *Diagnostics) Write(ctx context.Context, rec DiagnosticRecord) error {
	snap := rec.Snapshot

	ev := d.logger.Log().
		Time("time", snap.CapturedAt).
		Dict("idle", zerolog.Dict().
			Float64("seconds", snap.Idle.Seconds).
			Bool("available", snap.Idle.Available).
			Str("raw", snap.Idle.Raw)).
		Dict("display_power", zerolog.Dict().
			Str("state", snap.DisplayPower.State.String()).
			Float64("level", snap.DisplayPower.Level).
			Bool("available", snap.DisplayPower.Available).
			Str("raw", snap.DisplayPower.Raw)).
		Dict("brightness", zerolog.Dict().
			Float64("level", snap.Brightness.Level).
			Bool("available", snap.Brightness.Available).
			Str("raw", snap.Brightness.Raw)).
		Dict("display_count", zerolog.Dict().
			Int("count", snap.DisplayCount.Count).
			Bool("available", snap.DisplayCount.Available).
			Str("raw", snap.DisplayCount.Raw)).
		Dict("power_summary", zerolog.Dict().
			Str("summary", snap.PowerSummary.Summary).
			Bool("available", snap.PowerSummary.Available).
			Str("raw", snap.PowerSummary.Raw)).
		Float64("previous_idle", rec.PreviousIdle).
		Str("state", rec.Decision.State.String()).
		Str("rule", string(rec.Decision.Rule))

	if d.hostStats != nil {
		stats, err := d.hostStats(ctx)
		host := zerolog.Dict().
			Float64("uptime_seconds", stats.Uptime.Seconds()).
			Float64("load1", stats.Load1).
			Float64("load5", stats.Load5).
			Float64("load15", stats.Load15)
		if !stats.BootTime.IsZero() {
			host = host.Time("boot_time", stats.BootTime)
		}
		if err != nil {
			host = host.Str("error", err.Error())
		}
		ev = ev.Dict("host", host)
	}

	ev.Msg("sample")
	return d.w.take()
}

// Close closes the underlying file, if any.
func (d *Diagnostics) Close() error {
	if d.close == nil {
		return nil
	}
	return d.close()
}

// errWriter remembers the first write error so callers of zerolog, which
// swallows them, can still report it.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil && e.err == nil {
		e.err = err
	}
	return n, err
}

func (e *errWriter) take() error {
	err := e.err
	e.err = nil
	if err != nil {
		return fmt.Errorf("failed to write diagnostic log: %w", err)
	}
	return nil
}
