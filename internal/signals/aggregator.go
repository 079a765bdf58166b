package signals

import (
	"context"

	"github.com/goodtune/idlewatch/internal/clock"
	"github.com/goodtune/idlewatch/internal/metrics"
	"github.com/rs/zerolog"
)

// FallbackText is substituted for textual readings whose probe failed.
const FallbackText = "N/A"

// Sources holds one Source per signal. A nil Source is treated as a probe
// that always fails.
type Sources struct {
	Idle         Source
	DisplayPower Source
	Brightness   Source
	DisplayCount Source
	PowerSummary Source
}

// Aggregator samples every Source once per tick and assembles a Snapshot.
type Aggregator struct {
	sources Sources
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewAggregator creates a new signal aggregator
func NewAggregator(sources Sources, clk clock.Clock, logger zerolog.Logger) *Aggregator {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Aggregator{
		sources: sources,
		clock:   clk,
		logger:  logger.With().Str("component", "aggregator").Logger(),
	}
}

// Sample queries each source sequentially and returns the resulting Snapshot.
// A failed probe never aborts the sample; its reading is marked unavailable
// and carries the fallback value.
func (a *Aggregator) Sample(ctx context.Context) Snapshot {
	snap := Snapshot{CapturedAt: a.clock.Now()}

	if v, ok := a.probe(ctx, KindIdleDuration, a.sources.Idle); ok {
		seconds := v.Number
		if seconds < 0 {
			seconds = 0
		}
		snap.Idle = IdleReading{Seconds: seconds, Available: true, Raw: v.Raw}
	} else {
		snap.Idle = IdleReading{Raw: v.Raw}
	}

	if v, ok := a.probe(ctx, KindDisplayPower, a.sources.DisplayPower); ok {
		snap.DisplayPower = DisplayPowerReading{
			State:     ParseDisplayPower(v.Text),
			Level:     v.Number,
			Available: true,
			Raw:       v.Raw,
		}
	} else {
		snap.DisplayPower = DisplayPowerReading{State: DisplayPowerUnknown, Raw: v.Raw}
	}

	if v, ok := a.probe(ctx, KindBrightness, a.sources.Brightness); ok {
		snap.Brightness = BrightnessReading{Level: v.Number, Available: true, Raw: v.Raw}
	} else {
		snap.Brightness = BrightnessReading{Raw: v.Raw}
	}

	if v, ok := a.probe(ctx, KindDisplayCount, a.sources.DisplayCount); ok {
		snap.DisplayCount = DisplayCountReading{Count: int(v.Number), Available: true, Raw: v.Raw}
	} else {
		snap.DisplayCount = DisplayCountReading{Raw: v.Raw}
	}

	if v, ok := a.probe(ctx, KindPowerSummary, a.sources.PowerSummary); ok && v.Text != "" {
		snap.PowerSummary = PowerSummaryReading{Summary: v.Text, Available: true, Raw: v.Raw}
	} else {
		snap.PowerSummary = PowerSummaryReading{Summary: FallbackText, Raw: v.Raw}
	}

	return snap
}

func (a *Aggregator) probe(ctx context.Context, kind Kind, src Source) (Value, bool) {
	if src == nil {
		metrics.ProbeFailuresTotal.WithLabelValues(kind.String()).Inc()
		return Value{}, false
	}

	v, ok := src.Probe(ctx)
	if !ok {
		metrics.ProbeFailuresTotal.WithLabelValues(kind.String()).Inc()
		a.logger.Debug().
			Str("signal", kind.String()).
			Str("raw", v.Raw).
			Msg("Probe unavailable")
	}
	return v, ok
}
