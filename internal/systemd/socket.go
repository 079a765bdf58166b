package systemd

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
)

// MetricsSocketName is the FileDescriptorName= expected on the metrics
// socket unit.
const MetricsSocketName = "metrics"

// MetricsListener returns the socket-activated metrics listener, or nil if
// the process was not started with one.
func MetricsListener() (net.Listener, error) {
	// Named listeners require systemd 227+. Outside socket activation the
	// map is empty.
	listenersMap, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	if lns, ok := listenersMap[MetricsSocketName]; ok && len(lns) > 0 {
		return lns[0], nil
	}
	return nil, nil
}
