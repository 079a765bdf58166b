package storage

import "time"

// Session is a stored monitoring session.
type Session struct {
	ID            string        `json:"id"`
	Host          string        `json:"host"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at,omitempty"`
	State         string        `json:"state"`
	IdleThreshold time.Duration `json:"idle_threshold"`
	CheckInterval time.Duration `json:"check_interval"`
	Active        time.Duration `json:"active"`
	Idle          time.Duration `json:"idle"`
	DisplaySleep  time.Duration `json:"display_sleep"`
	SystemSleep   time.Duration `json:"system_sleep"`
	Open          bool          `json:"open"`
}

// Total returns the sum of all tracked durations.
func (s Session) Total() time.Duration {
	return s.Active + s.Idle + s.DisplaySleep + s.SystemSleep
}

// TransitionRecord is a stored state change within a session.
type TransitionRecord struct {
	SessionID string        `json:"session_id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}
