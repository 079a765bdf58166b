package activity

import (
	"testing"
	"time"

	"github.com/goodtune/idlewatch/internal/signals"
)

// snapshot builds a snapshot with every display proxy available and the
// display powered on.
func snapshot(idle float64) signals.Snapshot {
	return signals.Snapshot{
		Idle:         signals.IdleReading{Seconds: idle, Available: true},
		DisplayPower: signals.DisplayPowerReading{State: signals.DisplayPowerOn, Level: 4, Available: true},
		Brightness:   signals.BrightnessReading{Level: 0.75, Available: true},
		DisplayCount: signals.DisplayCountReading{Count: 1, Available: true},
		PowerSummary: signals.PowerSummaryReading{Summary: "AC Power", Available: true},
	}
}

func TestClassifier_Decide(t *testing.T) {
	c := NewClassifier(ClassifierConfig{IdleThreshold: 60 * time.Second})

	displayOff := snapshot(10)
	displayOff.DisplayPower.State = signals.DisplayPowerOff

	noProxies := snapshot(10)
	noProxies.Brightness = signals.BrightnessReading{}
	noProxies.DisplayCount = signals.DisplayCountReading{}

	oneProxy := snapshot(10)
	oneProxy.Brightness = signals.BrightnessReading{}

	offUnavailable := snapshot(10)
	offUnavailable.DisplayPower = signals.DisplayPowerReading{State: signals.DisplayPowerOff}

	stuckAndOff := snapshot(400)
	stuckAndOff.DisplayPower.State = signals.DisplayPowerOff

	idleUnavailable := snapshot(0)
	idleUnavailable.Idle = signals.IdleReading{Seconds: 900}

	tests := []struct {
		name     string
		snap     signals.Snapshot
		prevIdle float64
		want     State
		wantRule Rule
	}{
		{"fresh input", snapshot(0), 0, StateActive, RuleDefault},
		{"just under threshold", snapshot(59.9), 55, StateActive, RuleDefault},
		{"at threshold", snapshot(60), 55, StateIdle, RuleIdleThreshold},
		{"long idle climbing", snapshot(400), 395, StateIdle, RuleIdleThreshold},
		{"stuck idle counter", snapshot(400), 399, StateSystemSleep, RuleStuckIdleCounter},
		{"stuck at boundary", snapshot(300), 300, StateSystemSleep, RuleStuckIdleCounter},
		{"jitter exactly 2s is not stuck", snapshot(402), 400, StateIdle, RuleIdleThreshold},
		{"counter jumped backwards", snapshot(400), 10, StateIdle, RuleIdleThreshold},
		{"display off", displayOff, 0, StateDisplaySleep, RuleDisplayOff},
		{"no display proxies", noProxies, 0, StateDisplaySleep, RuleNoDisplayProxies},
		{"one proxy missing", oneProxy, 0, StateActive, RuleDefault},
		{"display off but unavailable", offUnavailable, 0, StateActive, RuleDefault},
		{"system sleep beats display sleep", stuckAndOff, 400, StateSystemSleep, RuleStuckIdleCounter},
		{"unavailable idle reads as zero", idleUnavailable, 900, StateActive, RuleDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Decide(tt.snap, tt.prevIdle)
			if got.State != tt.want {
				t.Errorf("Decide() state = %v, want %v", got.State, tt.want)
			}
			if got.Rule != tt.wantRule {
				t.Errorf("Decide() rule = %v, want %v", got.Rule, tt.wantRule)
			}
		})
	}
}

func TestClassifier_Defaults(t *testing.T) {
	c := NewClassifier(ClassifierConfig{})

	if got := c.Classify(snapshot(59), 0); got != StateActive {
		t.Errorf("idle 59s = %v, want active", got)
	}
	if got := c.Classify(snapshot(60), 0); got != StateIdle {
		t.Errorf("idle 60s = %v, want idle", got)
	}
	if got := c.Classify(snapshot(299), 299); got != StateIdle {
		t.Errorf("stuck at 299s = %v, want idle", got)
	}
	if got := c.Classify(snapshot(300), 299); got != StateSystemSleep {
		t.Errorf("stuck at 300s = %v, want system_sleep", got)
	}
}

func TestClassifier_CustomSleepThresholds(t *testing.T) {
	c := NewClassifier(ClassifierConfig{
		IdleThreshold:     30 * time.Second,
		SystemSleepIdle:   120 * time.Second,
		SystemSleepJitter: 5 * time.Second,
	})

	if got := c.Classify(snapshot(125), 121); got != StateSystemSleep {
		t.Errorf("Classify() = %v, want system_sleep", got)
	}
	if got := c.Classify(snapshot(35), 0); got != StateIdle {
		t.Errorf("Classify() = %v, want idle", got)
	}
}

// TestClassifier_TotalAndDeterministic sweeps a grid of snapshots and checks
// every one maps to exactly one counted state, the same one every time.
func TestClassifier_TotalAndDeterministic(t *testing.T) {
	c := NewClassifier(ClassifierConfig{})

	idles := []float64{0, 1, 59, 60, 61, 299, 300, 301, 400, 3600}
	prevs := []float64{0, 59, 298.5, 300, 399, 400, 3600}
	powers := []signals.DisplayPower{signals.DisplayPowerUnknown, signals.DisplayPowerOn, signals.DisplayPowerOff}
	bools := []bool{false, true}

	for _, idle := range idles {
		for _, prev := range prevs {
			for _, power := range powers {
				for _, idleOK := range bools {
					for _, powerOK := range bools {
						for _, brightOK := range bools {
							for _, countOK := range bools {
								snap := signals.Snapshot{
									Idle:         signals.IdleReading{Seconds: idle, Available: idleOK},
									DisplayPower: signals.DisplayPowerReading{State: power, Available: powerOK},
									Brightness:   signals.BrightnessReading{Available: brightOK},
									DisplayCount: signals.DisplayCountReading{Available: countOK},
								}

								first := c.Classify(snap, prev)
								if !first.IsCounted() {
									t.Fatalf("Classify(%+v, %v) = %v, not a counted state", snap, prev, first)
								}
								if again := c.Classify(snap, prev); again != first {
									t.Fatalf("Classify not deterministic: %v then %v", first, again)
								}
								if !idleOK && (first == StateIdle || first == StateSystemSleep) {
									t.Fatalf("unavailable idle classified %v", first)
								}
								if powerOK && power == signals.DisplayPowerOff && idleOK && idle >= 300 && idle-prev < 2 && prev-idle < 2 {
									if first != StateSystemSleep {
										t.Fatalf("stuck counter with display off = %v, want system_sleep", first)
									}
								}
							}
						}
					}
				}
			}
		}
	}
}
