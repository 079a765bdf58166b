// Package sink writes session records: the transition log, the diagnostic
// log and the console.
package sink

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/storage"
)

// TimestampLayout is the timestamp format of transition log lines.
const TimestampLayout = "2006-01-02 15:04:05"

// TransitionLog is the append-only, human-readable record of a session.
type TransitionLog struct {
	w     io.Writer
	close func() error
}

// OpenTransitionLog opens path for appending, creating it and its
// directory if needed.
func OpenTransitionLog(path string) (*TransitionLog, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transition log: %w", err)
	}
	return &TransitionLog{w: f, close: f.Close}, nil
}

// NewTransitionLog writes log lines to w.
func NewTransitionLog(w io.Writer) *TransitionLog {
	return &TransitionLog{w: w}
}

// SessionStarted writes the session header line.
func (l *TransitionLog) SessionStarted(at time.Time, idleThreshold, checkInterval time.Duration) error {
	return l.printf(at, "Session started (idle threshold: %s, check interval: %s)",
		seconds(idleThreshold), seconds(checkInterval))
}

// Transition writes one state change.
func (l *TransitionLog) Transition(tr activity.Transition) error {
	return l.printf(tr.At, "Changed from %s to %s (duration: %s)",
		tr.From, tr.To, activity.FormatHMS(tr.Duration))
}

// SessionEnded writes the final totals.
func (l *TransitionLog) SessionEnded(at time.Time, totals activity.Totals) error {
	return l.printf(at, "Session ended (total: %s, active: %s, idle: %s, display_sleep: %s, system_sleep: %s)",
		activity.FormatHMS(totals.Sum()),
		activity.FormatHMS(totals.Active),
		activity.FormatHMS(totals.Idle),
		activity.FormatHMS(totals.DisplaySleep),
		activity.FormatHMS(totals.SystemSleep))
}

// Close closes the underlying file, if any.
func (l *TransitionLog) Close() error {
	if l.close == nil {
		return nil
	}
	return l.close()
}

func (l *TransitionLog) printf(at time.Time, format string, args ...any) error {
	line := at.Format(TimestampLayout) + " - " + fmt.Sprintf(format, args...) + "\n"
	if _, err := io.WriteString(l.w, line); err != nil {
		return fmt.Errorf("failed to write transition log: %w", err)
	}
	return nil
}

// seconds renders d as whole seconds, e.g. "60s".
func seconds(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

func openAppend(path string) (*os.File, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
