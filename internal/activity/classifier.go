package activity

import (
	"math"
	"time"

	"github.com/goodtune/idlewatch/internal/signals"
)

const (
	// DefaultIdleThreshold is the idle time after which the machine is idle.
	DefaultIdleThreshold = 60 * time.Second

	// DefaultSystemSleepIdle is the minimum idle reading for the stuck-counter
	// heuristic to apply.
	DefaultSystemSleepIdle = 300 * time.Second

	// DefaultSystemSleepJitter is the largest change between consecutive idle
	// readings still treated as a frozen counter.
	DefaultSystemSleepJitter = 2 * time.Second
)

// Rule names the heuristic that produced a Decision.
type Rule string

const (
	RuleStuckIdleCounter Rule = "stuck_idle_counter"
	RuleDisplayOff       Rule = "display_power_off"
	RuleNoDisplayProxies Rule = "no_display_proxies"
	RuleIdleThreshold    Rule = "idle_threshold"
	RuleDefault          Rule = "default"
)

// ClassifierConfig holds classifier thresholds. Zero values take defaults.
type ClassifierConfig struct {
	IdleThreshold     time.Duration
	SystemSleepIdle   time.Duration
	SystemSleepJitter time.Duration
}

// Classifier maps a Snapshot to a State. It holds no history; the caller
// supplies the previous idle reading.
type Classifier struct {
	idleThreshold     float64
	systemSleepIdle   float64
	systemSleepJitter float64
}

// Decision is a classification together with the rule that produced it.
type Decision struct {
	State State
	Rule  Rule
}

// NewClassifier creates a classifier from cfg
func NewClassifier(cfg ClassifierConfig) Classifier {
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if cfg.SystemSleepIdle <= 0 {
		cfg.SystemSleepIdle = DefaultSystemSleepIdle
	}
	if cfg.SystemSleepJitter <= 0 {
		cfg.SystemSleepJitter = DefaultSystemSleepJitter
	}

	return Classifier{
		idleThreshold:     cfg.IdleThreshold.Seconds(),
		systemSleepIdle:   cfg.SystemSleepIdle.Seconds(),
		systemSleepJitter: cfg.SystemSleepJitter.Seconds(),
	}
}

// Classify returns the state for snap. previousIdle is the idle reading of
// the preceding tick (0 if there was none or it was unavailable).
func (c Classifier) Classify(snap signals.Snapshot, previousIdle float64) State {
	return c.Decide(snap, previousIdle).State
}

// Decide applies the heuristics in priority order; the first match wins.
func (c Classifier) Decide(snap signals.Snapshot, previousIdle float64) Decision {
	idle := snap.IdleSeconds()

	if idle >= c.systemSleepIdle && math.Abs(idle-previousIdle) < c.systemSleepJitter {
		return Decision{State: StateSystemSleep, Rule: RuleStuckIdleCounter}
	}

	if snap.DisplayPower.Available && snap.DisplayPower.State == signals.DisplayPowerOff {
		return Decision{State: StateDisplaySleep, Rule: RuleDisplayOff}
	}
	if !snap.Brightness.Available && !snap.DisplayCount.Available {
		return Decision{State: StateDisplaySleep, Rule: RuleNoDisplayProxies}
	}

	if idle >= c.idleThreshold {
		return Decision{State: StateIdle, Rule: RuleIdleThreshold}
	}

	return Decision{State: StateActive, Rule: RuleDefault}
}
