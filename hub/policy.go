package hub

import "github.com/mbocsi/gobeacon/proto"

// RelayPolicy decides what command, if any, a report should trigger.
// ok=false means no command.
type RelayPolicy interface {
	Desired(deviceID string, report *proto.SensorReport) (relayID uint8, state bool, ok bool)
}

// TogglePolicy inverts whatever relay state the node reported. This is
// demonstration logic; real deployments supply their own policy.
type TogglePolicy struct{}

func (TogglePolicy) Desired(_ string, report *proto.SensorReport) (uint8, bool, bool) {
	if report.RelayState == nil {
		return 0, false, false
	}
	return 0, !*report.RelayState, true
}

// NoCommandPolicy never issues commands; the hub just records reports.
type NoCommandPolicy struct{}

func (NoCommandPolicy) Desired(string, *proto.SensorReport) (uint8, bool, bool) {
	return 0, false, false
}
