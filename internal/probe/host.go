package probe

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
)

// HostStats is supplementary host state recorded with diagnostics.
type HostStats struct {
	Uptime   time.Duration `json:"uptime"`
	BootTime time.Time     `json:"boot_time"`
	Load1    float64       `json:"load1"`
	Load5    float64       `json:"load5"`
	Load15   float64       `json:"load15"`
}

// CollectHostStats reads uptime, boot time and load averages. Fields whose
// query fails are left zero; the error reports the first failure.
func CollectHostStats(ctx context.Context) (HostStats, error) {
	var stats HostStats
	var firstErr error

	if up, err := host.UptimeWithContext(ctx); err == nil {
		stats.Uptime = time.Duration(up) * time.Second
	} else {
		firstErr = err
	}

	if boot, err := host.BootTimeWithContext(ctx); err == nil {
		stats.BootTime = time.Unix(int64(boot), 0)
	} else if firstErr == nil {
		firstErr = err
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		stats.Load1 = avg.Load1
		stats.Load5 = avg.Load5
		stats.Load15 = avg.Load15
	} else if firstErr == nil {
		firstErr = err
	}

	return stats, firstErr
}
