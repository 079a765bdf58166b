package probe

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/goodtune/idlewatch/internal/signals"
)

var (
	hidIdlePattern     = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)
	wranglerPattern    = regexp.MustCompile(`IODisplayWrangler\s+(\d+)\s+(\d+)`)
	brightnessPattern  = regexp.MustCompile(`brightness\s+([0-9]*\.?[0-9]+)`)
	resolutionPattern  = regexp.MustCompile(`(?m)^\s*Resolution:`)
	powerSourcePattern = regexp.MustCompile(`Now drawing from '([^']+)'`)
)

// displayOnLevel is the IODisplayWrangler power state for a lit display.
const displayOnLevel = 4

// IdleSource reads the HID idle counter from ioreg, in seconds.
type IdleSource struct {
	Runner Runner
}

// Probe implements signals.Source.
func (s IdleSource) Probe(ctx context.Context) (signals.Value, bool) {
	out, err := s.Runner.Run(ctx, "ioreg", "-c", "IOHIDSystem")
	raw := rawOrError(out, err)
	if err != nil {
		return signals.Value{Raw: raw}, false
	}

	seconds, ok := ParseHIDIdle(string(out))
	if !ok {
		return signals.Value{Raw: raw}, false
	}
	return signals.Value{Number: seconds, Raw: firstMatch(hidIdlePattern, string(out))}, true
}

// ParseHIDIdle extracts HIDIdleTime (nanoseconds) from ioreg output and
// returns it in seconds.
func ParseHIDIdle(out string) (float64, bool) {
	m := hidIdlePattern.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	ns, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(ns) / 1e9, true
}

// DisplayPowerSource reads the display wrangler power state from pmset.
type DisplayPowerSource struct {
	Runner Runner
}

// Probe implements signals.Source. Text is "on" or "off"; Number is the
// wrangler's current power state.
func (s DisplayPowerSource) Probe(ctx context.Context) (signals.Value, bool) {
	out, err := s.Runner.Run(ctx, "pmset", "-g", "powerstate", "IODisplayWrangler")
	raw := rawOrError(out, err)
	if err != nil {
		return signals.Value{Raw: raw}, false
	}

	level, ok := ParseDisplayWrangler(string(out))
	if !ok {
		return signals.Value{Raw: raw}, false
	}
	text := "off"
	if level >= displayOnLevel {
		text = "on"
	}
	return signals.Value{Number: float64(level), Text: text, Raw: raw}, true
}

// ParseDisplayWrangler returns the current power state column of the
// IODisplayWrangler row in `pmset -g powerstate` output.
func ParseDisplayWrangler(out string) (int, bool) {
	m := wranglerPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	level, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return level, true
}

// BrightnessSource reads the built-in display brightness with the
// `brightness` command line tool.
type BrightnessSource struct {
	Runner Runner
}

// Probe implements signals.Source.
func (s BrightnessSource) Probe(ctx context.Context) (signals.Value, bool) {
	out, err := s.Runner.Run(ctx, "brightness", "-l")
	raw := rawOrError(out, err)
	if err != nil {
		return signals.Value{Raw: raw}, false
	}

	level, ok := ParseBrightness(string(out))
	if !ok {
		return signals.Value{Raw: raw}, false
	}
	return signals.Value{Number: level, Raw: raw}, true
}

// ParseBrightness returns the first brightness level in `brightness -l`
// output.
func ParseBrightness(out string) (float64, bool) {
	m := brightnessPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	level, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return level, true
}

// DisplayCountSource counts attached displays via system_profiler. A count
// of zero is reported as unavailable: no display was found to read.
type DisplayCountSource struct {
	Runner Runner
}

// Probe implements signals.Source.
func (s DisplayCountSource) Probe(ctx context.Context) (signals.Value, bool) {
	out, err := s.Runner.Run(ctx, "system_profiler", "SPDisplaysDataType")
	if err != nil {
		return signals.Value{Raw: rawOrError(out, err)}, false
	}

	n := CountDisplays(string(out))
	raw := strconv.Itoa(n) + " display(s)"
	if n == 0 {
		return signals.Value{Raw: truncate(string(out))}, false
	}
	return signals.Value{Number: float64(n), Raw: raw}, true
}

// CountDisplays counts the Resolution entries in system_profiler output.
func CountDisplays(out string) int {
	return len(resolutionPattern.FindAllStringIndex(out, -1))
}

// PowerSummarySource summarises `pmset -g ps` and the sleep-blocking
// assertions from `pmset -g`.
type PowerSummarySource struct {
	Runner Runner
}

// Probe implements signals.Source.
func (s PowerSummarySource) Probe(ctx context.Context) (signals.Value, bool) {
	out, err := s.Runner.Run(ctx, "pmset", "-g")
	raw := rawOrError(out, err)
	if err != nil {
		return signals.Value{Raw: raw}, false
	}

	summary := SummarizePmset(string(out))
	if summary == "" {
		return signals.Value{Raw: raw}, false
	}

	if ps, err := s.Runner.Run(ctx, "pmset", "-g", "ps"); err == nil {
		if m := powerSourcePattern.FindStringSubmatch(string(ps)); m != nil {
			summary = m[1] + "; " + summary
		}
	}
	return signals.Value{Text: summary, Raw: raw}, true
}

// SummarizePmset picks the sleep settings and any "prevented by" notes out
// of `pmset -g` output and joins them on one line.
func SummarizePmset(out string) string {
	var parts []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "sleep", "displaysleep":
			parts = append(parts, strings.Join(fields, " "))
		}
	}
	return strings.Join(parts, ", ")
}

func firstMatch(re *regexp.Regexp, s string) string {
	return strings.TrimSpace(re.FindString(s))
}

// MacOSSources returns the full set of macOS signal sources sharing runner.
func MacOSSources(runner Runner) signals.Sources {
	return signals.Sources{
		Idle:         IdleSource{Runner: runner},
		DisplayPower: DisplayPowerSource{Runner: runner},
		Brightness:   BrightnessSource{Runner: runner},
		DisplayCount: DisplayCountSource{Runner: runner},
		PowerSummary: PowerSummarySource{Runner: runner},
	}
}
