package systemd

import (
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. A disabled Notifier does nothing, and
// outside a systemd unit every call is a no-op.
type Notifier struct {
	enabled  bool
	watchdog time.Duration
}

// NewNotifier creates a notifier. The watchdog interval is read from the
// environment systemd sets up for the unit.
func NewNotifier(enabled bool) *Notifier {
	n := &Notifier{enabled: enabled}
	if enabled {
		if d, err := daemon.SdWatchdogEnabled(false); err == nil {
			n.watchdog = d
		}
	}
	return n
}

// WatchdogInterval returns the unit's watchdog timeout, zero if none.
func (n *Notifier) WatchdogInterval() time.Duration {
	return n.watchdog
}

// Ready tells systemd the service has finished starting up.
func (n *Notifier) Ready() error {
	return n.send(daemon.SdNotifyReady, "ready")
}

// Stopping tells systemd the service is shutting down.
func (n *Notifier) Stopping() error {
	return n.send(daemon.SdNotifyStopping, "stopping")
}

// Heartbeat reports the current state in the unit status and pings the
// watchdog when one is configured.
func (n *Notifier) Heartbeat(state string) error {
	msg := "STATUS=" + state
	if n.watchdog > 0 {
		msg = daemon.SdNotifyWatchdog + "\n" + msg
	}
	return n.send(msg, "heartbeat")
}

func (n *Notifier) send(state, what string) error {
	if n == nil || !n.enabled {
		return nil
	}
	// sent is false when not running under systemd, which is not an error
	if _, err := daemon.SdNotify(false, state); err != nil {
		return fmt.Errorf("failed to send sd_notify %s: %w", what, err)
	}
	return nil
}
