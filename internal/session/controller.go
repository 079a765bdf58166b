// Package session runs the monitoring loop: it samples signals on a fixed
// cadence, classifies each snapshot, accumulates time per state and fans
// transitions out to the configured sinks.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/idlewatch/internal/activity"
	"github.com/goodtune/idlewatch/internal/clock"
	"github.com/goodtune/idlewatch/internal/metrics"
	"github.com/goodtune/idlewatch/internal/sink"
	"github.com/goodtune/idlewatch/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// finishTimeout bounds the session-end writes once the run context is gone.
const finishTimeout = 5 * time.Second

// Config holds controller settings.
type Config struct {
	IdleThreshold      time.Duration
	CheckInterval      time.Duration
	Diagnostics        bool
	DiagnosticInterval time.Duration
	Host               string
}

// Options wires a Controller to its collaborators. Sampler and Log are
// required; the rest may be nil.
type Options struct {
	Config      Config
	Sampler     Sampler
	Classifier  activity.Classifier
	Clock       clock.Clock
	Log         TransitionLog
	Console     Console
	Diagnostics DiagnosticSink
	Recorder    Recorder
	Heartbeat   HeartbeatFunc
	Logger      zerolog.Logger
}

// Summary describes a finished session.
type Summary struct {
	ID          string
	StartedAt   time.Time
	EndedAt     time.Time
	Totals      activity.Totals
	Ticks       int
	Transitions int
}

// Controller owns one monitoring session.
type Controller struct {
	cfg         Config
	sampler     Sampler
	classifier  activity.Classifier
	clock       clock.Clock
	log         TransitionLog
	console     Console
	diagnostics DiagnosticSink
	recorder    Recorder
	heartbeat   HeartbeatFunc
	logger      zerolog.Logger

	id          string
	started     time.Time
	acc         *activity.Accumulator
	prevIdle    float64
	lastDiag    time.Time
	ticks       int
	transitions int
	summary     *Summary

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// New creates a controller.
func New(opts Options) *Controller {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	classifier := opts.Classifier
	if classifier == (activity.Classifier{}) {
		classifier = activity.NewClassifier(activity.ClassifierConfig{IdleThreshold: opts.Config.IdleThreshold})
	}

	return &Controller{
		cfg:         opts.Config,
		sampler:     opts.Sampler,
		classifier:  classifier,
		clock:       clk,
		log:         opts.Log,
		console:     opts.Console,
		diagnostics: opts.Diagnostics,
		recorder:    opts.Recorder,
		heartbeat:   opts.Heartbeat,
		logger:      opts.Logger.With().Str("component", "session").Logger(),
		id:          uuid.NewString(),
		acc:         activity.NewAccumulator(),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Run samples immediately and then every CheckInterval until ctx is
// cancelled, then flushes the session and returns its summary. Cancellation
// is the normal way to stop and is not reported as an error.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	if c.summary != nil {
		return *c.summary, activity.ErrFlushed
	}
	if c.cfg.CheckInterval <= 0 {
		return Summary{}, errors.New("session: check interval must be positive")
	}

	c.begin(ctx)

	ticks, stop := c.newTicker(c.cfg.CheckInterval)
	defer stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return c.finish(ctx), nil
		case <-ticks:
			c.tick(ctx)
		}
	}
}

// begin writes the session header to every sink.
func (c *Controller) begin(ctx context.Context) {
	c.started = c.clock.Now()

	c.logger.Info().
		Str("session_id", c.id).
		Dur("idle_threshold", c.cfg.IdleThreshold).
		Dur("check_interval", c.cfg.CheckInterval).
		Bool("diagnostics", c.cfg.Diagnostics).
		Msg("Session started")

	c.report("transition_log", c.log.SessionStarted(c.started, c.cfg.IdleThreshold, c.cfg.CheckInterval))
	if c.console != nil {
		c.report("console", c.console.SessionStarted(c.started, c.cfg.IdleThreshold, c.cfg.CheckInterval))
	}

	if c.recorder != nil {
		err := c.recorder.StartSession(ctx, storage.Session{
			ID:            c.id,
			Host:          c.cfg.Host,
			StartedAt:     c.started,
			State:         activity.StateUnknown.String(),
			IdleThreshold: c.cfg.IdleThreshold,
			CheckInterval: c.cfg.CheckInterval,
			Open:          true,
		})
		if err != nil {
			// Appends would fail the same way for the rest of the session
			c.report("store", err)
			c.logger.Warn().Msg("Session history disabled for this session")
			c.recorder = nil
		}
	}
}

// tick takes one sample and feeds its classification to the accumulator.
// A sample interrupted by cancellation is discarded.
func (c *Controller) tick(ctx context.Context) {
	began := time.Now()
	snap := c.sampler.Sample(ctx)
	if ctx.Err() != nil {
		c.logger.Debug().Msg("Discarding sample interrupted by shutdown")
		return
	}
	metrics.TickDuration.Observe(time.Since(began).Seconds())
	metrics.TicksTotal.Inc()
	c.ticks++

	prevIdle := c.prevIdle
	decision := c.classifier.Decide(snap, prevIdle)
	c.prevIdle = snap.IdleSeconds()

	metrics.IdleSeconds.Set(snap.IdleSeconds())
	metrics.SetCurrentState(decision.State.String(), activity.StateNames())

	tr, err := c.acc.Observe(decision.State, snap.CapturedAt)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to record observation")
		return
	}
	if tr != nil {
		c.logger.Info().
			Str("from", tr.From.String()).
			Str("to", tr.To.String()).
			Str("rule", string(decision.Rule)).
			Dur("duration", tr.Duration).
			Msg("State changed")
		_ = c.emit(ctx, *tr)
	}

	if c.console != nil {
		c.report("console", c.console.Status(decision.State, snap, c.acc.RunningTotals(snap.CapturedAt)))
	}

	if c.cfg.Diagnostics && c.diagnostics != nil && c.diagnosticDue(snap.CapturedAt) {
		c.lastDiag = snap.CapturedAt
		c.report("diagnostic_log", c.diagnostics.Write(ctx, sink.DiagnosticRecord{
			Snapshot:     snap,
			PreviousIdle: prevIdle,
			Decision:     decision,
		}))
	}

	if c.heartbeat != nil {
		if err := c.heartbeat(decision.State.String()); err != nil {
			c.logger.Debug().Err(err).Msg("Heartbeat failed")
		}
	}
}

func (c *Controller) diagnosticDue(at time.Time) bool {
	if c.lastDiag.IsZero() {
		return true
	}
	return at.Sub(c.lastDiag) >= c.cfg.DiagnosticInterval
}

// emit forwards a transition to every sink. Each sink is attempted even if
// an earlier one fails.
func (c *Controller) emit(ctx context.Context, tr activity.Transition) error {
	c.transitions++
	metrics.TransitionsTotal.WithLabelValues(tr.From.String(), tr.To.String()).Inc()
	if tr.From.IsCounted() {
		metrics.StateSecondsTotal.WithLabelValues(tr.From.String()).Add(tr.Duration.Seconds())
	}

	var errs []error
	errs = append(errs, c.report("transition_log", c.log.Transition(tr)))
	if c.console != nil {
		errs = append(errs, c.report("console", c.console.Transition(tr)))
	}
	if c.recorder != nil {
		errs = append(errs, c.report("store", c.recorder.AppendTransition(ctx, storage.TransitionRecord{
			SessionID: c.id,
			From:      tr.From.String(),
			To:        tr.To.String(),
			Duration:  tr.Duration,
			At:        tr.At,
		})))
	}
	return errors.Join(errs...)
}

// finish flushes the accumulator and writes the session-end records. It
// runs once; later calls return the same summary.
func (c *Controller) finish(ctx context.Context) Summary {
	if c.summary != nil {
		return *c.summary
	}

	at := c.clock.Now()
	tr, err := c.acc.Flush(at)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to flush session")
	}

	// The run context is already cancelled; give the final writes their own
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	totals := c.acc.Totals()
	started := c.acc.FirstObservedAt()
	if started.IsZero() {
		started = c.started
	}

	var errs []error
	if tr != nil {
		errs = append(errs, c.emit(sinkCtx, *tr))
	}
	errs = append(errs, c.report("transition_log", c.log.SessionEnded(at, totals)))
	if c.recorder != nil {
		errs = append(errs, c.report("store", c.recorder.FinishSession(sinkCtx, storage.Session{
			ID:            c.id,
			Host:          c.cfg.Host,
			StartedAt:     c.started,
			EndedAt:       at,
			State:         activity.StateSessionEnd.String(),
			IdleThreshold: c.cfg.IdleThreshold,
			CheckInterval: c.cfg.CheckInterval,
			Active:        totals.Active,
			Idle:          totals.Idle,
			DisplaySleep:  totals.DisplaySleep,
			SystemSleep:   totals.SystemSleep,
		})))
	}
	if c.console != nil {
		errs = append(errs, c.report("console", c.console.Summary(started, at, totals)))
	}

	if err := errors.Join(errs...); err != nil {
		c.logger.Error().Err(err).Msg("Session ended with sink errors")
	}

	c.logger.Info().
		Str("session_id", c.id).
		Dur("total", totals.Sum()).
		Dur("active", totals.Active).
		Dur("idle", totals.Idle).
		Dur("display_sleep", totals.DisplaySleep).
		Dur("system_sleep", totals.SystemSleep).
		Msg("Session ended")

	c.summary = &Summary{
		ID:          c.id,
		StartedAt:   started,
		EndedAt:     at,
		Totals:      totals,
		Ticks:       c.ticks,
		Transitions: c.transitions,
	}
	return *c.summary
}

// report logs and counts a sink failure and passes err through.
func (c *Controller) report(sinkName string, err error) error {
	if err == nil {
		return nil
	}
	metrics.SinkErrorsTotal.WithLabelValues(sinkName).Inc()
	c.logger.Warn().Err(err).Str("sink", sinkName).Msg("Sink write failed")
	return err
}
