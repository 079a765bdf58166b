package signals

import (
	"context"
	"time"
)

// Kind identifies one OS-level indicator.
type Kind int

const (
	KindIdleDuration Kind = iota // seconds since last user input
	KindDisplayPower             // display power state (on/off)
	KindBrightness               // backlight brightness level
	KindDisplayCount             // number of attached displays
	KindPowerSummary             // power management summary text
)

// Kinds lists every signal in sampling order.
var Kinds = []Kind{
	KindIdleDuration,
	KindDisplayPower,
	KindBrightness,
	KindDisplayCount,
	KindPowerSummary,
}

// String returns the name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindIdleDuration:
		return "idle_duration"
	case KindDisplayPower:
		return "display_power"
	case KindBrightness:
		return "brightness"
	case KindDisplayCount:
		return "display_count"
	case KindPowerSummary:
		return "power_summary"
	default:
		return "unknown"
	}
}

// Value is what a Source reports. Number carries numeric readings, Text
// carries textual ones, and Raw keeps the unparsed probe output for
// diagnostics.
type Value struct {
	Number float64
	Text   string
	Raw    string
}

// Source queries one OS indicator. Probe must not fail loudly: a failed query
// is reported by returning false.
type Source interface {
	Probe(ctx context.Context) (Value, bool)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Value, bool)

// Probe calls f(ctx).
func (f SourceFunc) Probe(ctx context.Context) (Value, bool) {
	return f(ctx)
}

// DisplayPower is the reported power state of the display.
type DisplayPower int

const (
	DisplayPowerUnknown DisplayPower = iota
	DisplayPowerOn
	DisplayPowerOff
)

// String returns a human-readable display power state.
func (p DisplayPower) String() string {
	switch p {
	case DisplayPowerOn:
		return "on"
	case DisplayPowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (p DisplayPower) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ParseDisplayPower maps a display power source's text to a DisplayPower.
func ParseDisplayPower(s string) DisplayPower {
	switch s {
	case "on":
		return DisplayPowerOn
	case "off":
		return DisplayPowerOff
	default:
		return DisplayPowerUnknown
	}
}

// IdleReading is the OS idle counter in seconds.
type IdleReading struct {
	Seconds   float64 `json:"seconds"`
	Available bool    `json:"available"`
	Raw       string  `json:"raw,omitempty"`
}

// DisplayPowerReading is the display power state.
type DisplayPowerReading struct {
	State     DisplayPower `json:"state"`
	Level     float64      `json:"level"`
	Available bool         `json:"available"`
	Raw       string       `json:"raw,omitempty"`
}

// BrightnessReading is the backlight level, 0.0 to 1.0.
type BrightnessReading struct {
	Level     float64 `json:"level"`
	Available bool    `json:"available"`
	Raw       string  `json:"raw,omitempty"`
}

// DisplayCountReading is the number of attached displays.
type DisplayCountReading struct {
	Count     int    `json:"count"`
	Available bool   `json:"available"`
	Raw       string `json:"raw,omitempty"`
}

// PowerSummaryReading is a short power management summary.
type PowerSummaryReading struct {
	Summary   string `json:"summary"`
	Available bool   `json:"available"`
	Raw       string `json:"raw,omitempty"`
}

// Snapshot holds every signal reading captured during one tick.
type Snapshot struct {
	CapturedAt   time.Time           `json:"captured_at"`
	Idle         IdleReading         `json:"idle"`
	DisplayPower DisplayPowerReading `json:"display_power"`
	Brightness   BrightnessReading   `json:"brightness"`
	DisplayCount DisplayCountReading `json:"display_count"`
	PowerSummary PowerSummaryReading `json:"power_summary"`
}

// IdleSeconds returns the idle reading, or 0 when the probe failed.
func (s Snapshot) IdleSeconds() float64 {
	if !s.Idle.Available {
		return 0
	}
	return s.Idle.Seconds
}

// Available reports whether the given signal was read successfully.
func (s Snapshot) Available(k Kind) bool {
	switch k {
	case KindIdleDuration:
		return s.Idle.Available
	case KindDisplayPower:
		return s.DisplayPower.Available
	case KindBrightness:
		return s.Brightness.Available
	case KindDisplayCount:
		return s.DisplayCount.Available
	case KindPowerSummary:
		return s.PowerSummary.Available
	default:
		return false
	}
}
