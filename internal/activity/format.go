package activity

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FormatHMS formats d as HH:MM:SS, truncated to whole seconds. Hours are not
// capped at 24.
func FormatHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// Share is one state's portion of the session.
type Share struct {
	State    State
	Duration time.Duration
	Percent  float64
}

// Shares returns each counted state's duration and percentage of the total.
// Percentages are rounded to tenths using the largest remainder method, so
// they add up to exactly 100.0 whenever the total is positive.
func (t Totals) Shares() []Share {
	shares := make([]Share, len(Counted))
	total := t.Sum()

	type part struct {
		idx   int
		tenth int64
		frac  float64
	}
	parts := make([]part, len(Counted))
	var assigned int64

	for i, s := range Counted {
		shares[i] = Share{State: s, Duration: t.Get(s)}
		if total <= 0 {
			continue
		}
		exact := float64(t.Get(s)) / float64(total) * 1000
		floor := math.Floor(exact)
		parts[i] = part{idx: i, tenth: int64(floor), frac: exact - floor}
		assigned += int64(floor)
	}

	if total <= 0 {
		return shares
	}

	sort.SliceStable(parts, func(a, b int) bool {
		return parts[a].frac > parts[b].frac
	})
	for i := 0; assigned < 1000 && i < len(parts); i++ {
		parts[i].tenth++
		assigned++
	}

	for _, p := range parts {
		shares[p.idx].Percent = float64(p.tenth) / 10
	}
	return shares
}
