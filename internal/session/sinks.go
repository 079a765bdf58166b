package session

import (
	"context"
	"time"

	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/signals"
	"github.com/goodtune/idlewatch/internal/sink"
	"github.com/goodtune/idlewatch/internal/storage"
)

// Sampler produces one Snapshot per call.
type Sampler interface {
	Sample(ctx context.Context) signals.Snapshot
}

// TransitionLog receives the durable session record.
type TransitionLog interface {
	SessionStarted(at time.Time, idleThreshold, checkInterval time.Duration) error
	Transition(tr activity.Transition) error
	SessionEnded(at time.Time, totals activity.Totals) error
}

// Console receives live feedback for the user.
type Console interface {
	SessionStarted(at time.Time, idleThreshold, checkInterval time.Duration) error
	Status(state activity.State, snap signals.Snapshot, totals activity.Totals) error
	Transition(tr activity.Transition) error
	Summary(started, ended time.Time, totals activity.Totals) error
}

// DiagnosticSink receives per-tick diagnostic records.
type DiagnosticSink interface {
	Write(ctx context.Context, rec sink.DiagnosticRecord) error
}

// Recorder persists session history. storage.SessionStore satisfies it.
type Recorder interface {
	StartSession(ctx context.Context, session storage.Session) error
	AppendTransition(ctx context.Context, tr storage.TransitionRecord) error
	FinishSession(ctx context.Context, session storage.Session) error
}

// HeartbeatFunc is called after every tick with the current state name.
type HeartbeatFunc func(state string) error

var (
	_ TransitionLog  = (*sink.TransitionLog)(nil)
	_ Console        = (*sink.Console)(nil)
	_ DiagnosticSink = (*sink.Diagnostics)(nil)
	_ Recorder       = storage.SessionStore(nil)
	_ Sampler        = (*signals.Aggregator)(nil)
)
