package activity

import (
	"errors"
	"fmt"
	"time"
)

// ErrFlushed is returned by an Accumulator that has already been flushed.
var ErrFlushed = errors.New("activity: accumulator already flushed")

// Transition records the close of one state interval.
type Transition struct {
	From     State
	To       State
	Duration time.Duration
	At       time.Time
}

// Terminal reports whether t closes the session.
func (t Transition) Terminal() bool {
	return t.To == StateSessionEnd
}

// Totals holds the accumulated time per counted state.
type Totals struct {
	Active       time.Duration
	Idle         time.Duration
	DisplaySleep time.Duration
	SystemSleep  time.Duration
}

// Get returns the total for s, or 0 for states that are not counted.
func (t Totals) Get(s State) time.Duration {
	switch s {
	case StateActive:
		return t.Active
	case StateIdle:
		return t.Idle
	case StateDisplaySleep:
		return t.DisplaySleep
	case StateSystemSleep:
		return t.SystemSleep
	default:
		return 0
	}
}

// Sum returns the total across all counted states.
func (t Totals) Sum() time.Duration {
	return t.Active + t.Idle + t.DisplaySleep + t.SystemSleep
}

func (t *Totals) add(s State, d time.Duration) {
	switch s {
	case StateActive:
		t.Active += d
	case StateIdle:
		t.Idle += d
	case StateDisplaySleep:
		t.DisplaySleep += d
	case StateSystemSleep:
		t.SystemSleep += d
	}
}

// Accumulator is the duration accounting state machine. Totals change only
// when an interval is closed by a transition or by Flush, so accounting is
// exact regardless of tick jitter.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	current   State
	startedAt time.Time
	firstAt   time.Time
	totals    Totals
	flushed   bool
}

// NewAccumulator returns an Accumulator in the Unknown state.
func NewAccumulator() *Accumulator {
	return &Accumulator{current: StateUnknown}
}

// Current returns the state of the open interval.
func (a *Accumulator) Current() State {
	return a.current
}

// StartedAt returns when the open interval began.
func (a *Accumulator) StartedAt() time.Time {
	return a.startedAt
}

// FirstObservedAt returns the time of the first classification, which is
// where accounted session time begins.
func (a *Accumulator) FirstObservedAt() time.Time {
	return a.firstAt
}

// Flushed reports whether the session has been closed.
func (a *Accumulator) Flushed() bool {
	return a.flushed
}

// Observe feeds the state classified at time at. It returns the transition
// closing the previous interval, or nil if the state did not change.
func (a *Accumulator) Observe(state State, at time.Time) (*Transition, error) {
	if a.flushed {
		return nil, ErrFlushed
	}
	if !state.IsCounted() {
		return nil, fmt.Errorf("activity: cannot observe state %s", state)
	}

	if a.current == StateUnknown {
		a.current = state
		a.startedAt = at
		a.firstAt = at
		return nil, nil
	}

	if state == a.current {
		return nil, nil
	}

	tr := a.close(state, at)
	a.current = state
	a.startedAt = at
	return &tr, nil
}

// Flush closes the open interval and freezes the accumulator. It returns the
// terminal transition; a second call returns ErrFlushed and changes nothing.
func (a *Accumulator) Flush(at time.Time) (*Transition, error) {
	if a.flushed {
		return nil, ErrFlushed
	}

	tr := a.close(StateSessionEnd, at)
	a.flushed = true
	return &tr, nil
}

// close ends the open interval at time at, adding it to the current state's
// total. Unknown intervals are reported but never counted.
func (a *Accumulator) close(to State, at time.Time) Transition {
	var d time.Duration
	if !a.startedAt.IsZero() {
		d = at.Sub(a.startedAt)
	}
	if d < 0 {
		d = 0
	}
	a.totals.add(a.current, d)

	return Transition{
		From:     a.current,
		To:       to,
		Duration: d,
		At:       at,
	}
}

// Totals returns the totals of closed intervals.
func (a *Accumulator) Totals() Totals {
	return a.totals
}

// RunningTotals returns the totals as if the open interval were closed at
// now. The accumulator itself is not changed.
func (a *Accumulator) RunningTotals(now time.Time) Totals {
	t := a.totals
	if a.flushed || a.current == StateUnknown {
		return t
	}
	if d := now.Sub(a.startedAt); d > 0 {
		t.add(a.current, d)
	}
	return t
}
