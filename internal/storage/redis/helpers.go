package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/idlewatch/internal/storage"
)

const keyPrefix = "idlewatch"

func sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

func transitionsKey(id string) string {
	return fmt.Sprintf("%s:session:%s:transitions", keyPrefix, id)
}

var (
	sessionIndexKey = keyPrefix + ":sessions"
	openSessionsKey = keyPrefix + ":sessions:open"
)

// totalField maps a state name to the hash field holding its total. States
// without a total map to "".
func totalField(state string) string {
	switch state {
	case "active", "idle", "display_sleep", "system_sleep":
		return state + "_ns"
	default:
		return ""
	}
}

// parseSession converts a Redis hash to Session
func parseSession(data map[string]string) (*storage.Session, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	var endedAt time.Time
	if v := data["ended_at"]; v != "" {
		endedAt, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ended_at: %w", err)
		}
	}

	durations := make(map[string]time.Duration, 6)
	for _, field := range []string{
		"idle_threshold_ns", "check_interval_ns",
		"active_ns", "idle_ns", "display_sleep_ns", "system_sleep_ns",
	} {
		n, err := strconv.ParseInt(data[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", field, err)
		}
		durations[field] = time.Duration(n)
	}

	open, err := strconv.ParseBool(data["open"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse open: %w", err)
	}

	return &storage.Session{
		ID:            data["id"],
		Host:          data["host"],
		StartedAt:     startedAt,
		EndedAt:       endedAt,
		State:         data["state"],
		IdleThreshold: durations["idle_threshold_ns"],
		CheckInterval: durations["check_interval_ns"],
		Active:        durations["active_ns"],
		Idle:          durations["idle_ns"],
		DisplaySleep:  durations["display_sleep_ns"],
		SystemSleep:   durations["system_sleep_ns"],
		Open:          open,
	}, nil
}
