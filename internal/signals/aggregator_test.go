package signals

import (
	"context"
	"testing"
	"time"

	"github.com/goodtune/idlewatch/internal/clock"
	"github.com/goodtune/idlewatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func ok(v Value) Source {
	return SourceFunc(func(ctx context.Context) (Value, bool) { return v, true })
}

func failing(raw string) Source {
	return SourceFunc(func(ctx context.Context) (Value, bool) { return Value{Raw: raw}, false })
}

func TestAggregator_AllAvailable(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	agg := NewAggregator(Sources{
		Idle:         ok(Value{Number: 12.5, Raw: `"HIDIdleTime" = 12500000000`}),
		DisplayPower: ok(Value{Number: 4, Text: "on"}),
		Brightness:   ok(Value{Number: 0.5}),
		DisplayCount: ok(Value{Number: 2}),
		PowerSummary: ok(Value{Text: "AC Power"}),
	}, clock.NewManual(at), zerolog.Nop())

	snap := agg.Sample(context.Background())

	if !snap.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", snap.CapturedAt, at)
	}
	if !snap.Idle.Available || snap.Idle.Seconds != 12.5 || snap.IdleSeconds() != 12.5 {
		t.Errorf("idle = %+v", snap.Idle)
	}
	if snap.DisplayPower.State != DisplayPowerOn || snap.DisplayPower.Level != 4 {
		t.Errorf("display power = %+v", snap.DisplayPower)
	}
	if snap.Brightness.Level != 0.5 || !snap.Brightness.Available {
		t.Errorf("brightness = %+v", snap.Brightness)
	}
	if snap.DisplayCount.Count != 2 || !snap.DisplayCount.Available {
		t.Errorf("display count = %+v", snap.DisplayCount)
	}
	if snap.PowerSummary.Summary != "AC Power" {
		t.Errorf("power summary = %+v", snap.PowerSummary)
	}
	for _, k := range Kinds {
		if !snap.Available(k) {
			t.Errorf("%s should be available", k)
		}
	}
}

func TestAggregator_FailuresUseFallbacks(t *testing.T) {
	before := testutil.ToFloat64(metrics.ProbeFailuresTotal.WithLabelValues("idle_duration"))

	agg := NewAggregator(Sources{
		Idle:         failing("ioreg: not found"),
		DisplayPower: failing(""),
		Brightness:   nil,
		DisplayCount: failing(""),
		PowerSummary: failing("pmset: permission denied"),
	}, clock.NewManual(time.Unix(0, 0)), zerolog.Nop())

	snap := agg.Sample(context.Background())

	if snap.Idle.Available || snap.IdleSeconds() != 0 {
		t.Errorf("idle = %+v, want unavailable 0", snap.Idle)
	}
	if snap.Idle.Raw != "ioreg: not found" {
		t.Errorf("idle raw = %q, want probe output kept", snap.Idle.Raw)
	}
	if snap.DisplayPower.Available || snap.DisplayPower.State != DisplayPowerUnknown {
		t.Errorf("display power = %+v", snap.DisplayPower)
	}
	if snap.Brightness.Available || snap.DisplayCount.Available {
		t.Error("brightness and display count should be unavailable")
	}
	if snap.PowerSummary.Available || snap.PowerSummary.Summary != FallbackText {
		t.Errorf("power summary = %+v, want %q", snap.PowerSummary, FallbackText)
	}

	after := testutil.ToFloat64(metrics.ProbeFailuresTotal.WithLabelValues("idle_duration"))
	if after-before != 1 {
		t.Errorf("idle probe failures increased by %v, want 1", after-before)
	}
}

func TestAggregator_NegativeIdleClamped(t *testing.T) {
	agg := NewAggregator(Sources{Idle: ok(Value{Number: -3})}, nil, zerolog.Nop())
	if got := agg.Sample(context.Background()).IdleSeconds(); got != 0 {
		t.Errorf("idle = %v, want 0", got)
	}
}

func TestAggregator_ProbesEachSourceOncePerSample(t *testing.T) {
	calls := 0
	counting := SourceFunc(func(ctx context.Context) (Value, bool) {
		calls++
		return Value{}, false
	})

	agg := NewAggregator(Sources{
		Idle:         counting,
		DisplayPower: counting,
		Brightness:   counting,
		DisplayCount: counting,
		PowerSummary: counting,
	}, nil, zerolog.Nop())
	agg.Sample(context.Background())

	if calls != len(Kinds) {
		t.Errorf("probe calls = %d, want %d (no retries)", calls, len(Kinds))
	}
}

func TestKindString(t *testing.T) {
	want := []string{"idle_duration", "display_power", "brightness", "display_count", "power_summary"}
	for i, k := range Kinds {
		if k.String() != want[i] {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want[i])
		}
	}
	if Kind(99).String() != "unknown" {
		t.Error("unexpected name for out of range kind")
	}
}
