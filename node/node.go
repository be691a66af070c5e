// Package node implements the battery-powered side of the beacon protocol:
// short broadcast-then-listen cycles separated by deep sleep, with pairing
// state persisted across power loss.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbocsi/gobeacon/proto"
	"github.com/mbocsi/gobeacon/radio"
	"github.com/mbocsi/gobeacon/store"
)

// Default cycle timings.
const (
	DefaultUnpairedAdv  = 2 * time.Second
	DefaultUnpairedScan = 8 * time.Second
	DefaultReportPeriod = 10 * time.Second
	DefaultReportAdv    = 500 * time.Millisecond
	DefaultCommandScan  = 3 * time.Second
	DefaultRetrySleep   = 10 * time.Second
	DefaultCollectCap   = 4
)

// Readings is one sample from the node's sensors. Nil means the sensor
// did not produce a value this cycle.
type Readings struct {
	Temperature *float32
	Humidity    *float32
}

// SensorReader produces the readings sent in each report.
type SensorReader interface {
	Read() (Readings, error)
}

// Relay is the single switched output a node may carry.
type Relay interface {
	Set(state bool) error
	// State reports the current output; ok=false means no relay fitted,
	// and reports then omit the relay field.
	State() (state bool, ok bool)
}

// Power abstracts the node's power management. On hardware DeepSleep does
// not return (the device resets on wake) and Restart reboots; simulated
// implementations block for the duration and return, which the run loop
// also handles.
type Power interface {
	DeepSleep(d time.Duration)
	Restart()
}

// Status drives a user-visible indicator (an LED on hardware). A nil
// Status disables indication.
type Status interface {
	SetBusy(on bool)
	Success()
}

// Config carries the node's identity and cycle timings.
type Config struct {
	DeviceID string

	UnpairedAdv  time.Duration // hello broadcast length while unpaired
	UnpairedScan time.Duration // listen window for the hub's answer
	ReportPeriod time.Duration // cadence of report cycles once paired
	ReportAdv    time.Duration // report broadcast length
	CommandScan  time.Duration // listen window for relay commands
	RetrySleep   time.Duration // sleep between failed pairing attempts

	CollectCapacity int
}

func (c *Config) applyDefaults() {
	if c.UnpairedAdv == 0 {
		c.UnpairedAdv = DefaultUnpairedAdv
	}
	if c.UnpairedScan == 0 {
		c.UnpairedScan = DefaultUnpairedScan
	}
	if c.ReportPeriod == 0 {
		c.ReportPeriod = DefaultReportPeriod
	}
	if c.ReportAdv == 0 {
		c.ReportAdv = DefaultReportAdv
	}
	if c.CommandScan == 0 {
		c.CommandScan = DefaultCommandScan
	}
	if c.RetrySleep == 0 {
		c.RetrySleep = DefaultRetrySleep
	}
	if c.CollectCapacity == 0 {
		c.CollectCapacity = DefaultCollectCap
	}
}

// Node owns one radio and runs the pairing and report cycles. Everything
// is sequential: a node never scans and advertises at the same time.
type Node struct {
	radio  *radio.Radio
	db     *store.DB
	sensor SensorReader
	relay  Relay // may be nil: no relay fitted
	power  Power
	status Status // may be nil: no indicator
	cfg    Config
}

func New(r *radio.Radio, db *store.DB, sensor SensorReader, relay Relay, power Power, status Status, cfg Config) *Node {
	cfg.applyDefaults()
	return &Node{
		radio:  r,
		db:     db,
		sensor: sensor,
		relay:  relay,
		power:  power,
		status: status,
		cfg:    cfg,
	}
}

// Run drives the node until ctx is cancelled: pairing attempts separated
// by deep sleep while unpaired, then periodic report cycles. A successful
// pairing restarts the device; simulated power returns from Restart and
// the loop re-reads the persisted state.
func (n *Node) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		state, err := n.db.Pairing()
		if err != nil {
			return fmt.Errorf("node: read pairing state: %w", err)
		}

		if state == store.Paired {
			return n.runPaired(ctx)
		}

		paired, err := n.pairingCycle()
		if err != nil {
			slog.Error("pairing cycle failed", "device", n.cfg.DeviceID, "error", err)
		}
		if paired {
			slog.Info("paired with hub, restarting", "device", n.cfg.DeviceID)
			n.power.Restart()
			continue
		}

		slog.Info("no hub answered, sleeping", "device", n.cfg.DeviceID, "sleep", n.cfg.RetrySleep)
		n.power.DeepSleep(n.cfg.RetrySleep)
	}
}

// pairingCycle broadcasts a hello and listens for the hub's answer. The new
// pairing state is persisted before anything acts on it, so a power loss
// right after the write still leaves the node paired.
func (n *Node) pairingCycle() (bool, error) {
	n.setBusy(true)
	defer n.setBusy(false)

	if err := n.radio.Open(); err != nil {
		return false, err
	}
	defer n.radio.Close()

	if err := n.radio.Broadcast(proto.NewHello(n.cfg.DeviceID, proto.SourceNode), n.cfg.UnpairedAdv); err != nil {
		return false, err
	}

	msgs, dropped, err := n.radio.Collect(n.cfg.UnpairedScan, n.cfg.CollectCapacity)
	if err != nil {
		return false, err
	}
	if dropped > 0 {
		slog.Warn("pairing scan overflowed", "dropped", dropped)
	}

	for _, m := range msgs {
		if m.Kind() != proto.KindHello || m.Hello.Source != proto.SourceHub {
			continue
		}
		slog.Info("hub answered", "hub", m.SenderID)
		if err := n.db.SetPairing(store.Paired); err != nil {
			return false, fmt.Errorf("persist pairing state: %w", err)
		}
		n.success()
		return true, nil
	}
	return false, nil
}

// runPaired reports on a fixed cadence until ctx is cancelled. A failed
// cycle is logged and retried on the next tick; transient radio faults
// must not take the node offline.
func (n *Node) runPaired(ctx context.Context) error {
	slog.Info("node paired, reporting", "device", n.cfg.DeviceID, "period", n.cfg.ReportPeriod)

	ticker := time.NewTicker(n.cfg.ReportPeriod)
	defer ticker.Stop()

	// First report immediately; the ticker covers the rest.
	if err := n.reportCycle(); err != nil {
		slog.Error("report cycle failed", "device", n.cfg.DeviceID, "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := n.reportCycle(); err != nil {
				slog.Error("report cycle failed", "device", n.cfg.DeviceID, "error", err)
			}
		}
	}
}

// reportCycle broadcasts one sensor report, then listens briefly for relay
// commands addressed to this node.
func (n *Node) reportCycle() error {
	n.setBusy(true)
	defer n.setBusy(false)

	report := proto.SensorReport{}
	readings, err := n.sensor.Read()
	if err != nil {
		// Report whatever we have; an empty report still proves liveness.
		slog.Warn("sensor read failed", "error", err)
	} else {
		report.Temperature = readings.Temperature
		report.Humidity = readings.Humidity
	}
	if n.relay != nil {
		if state, ok := n.relay.State(); ok {
			report.RelayState = &state
		}
	}

	if err := n.radio.Open(); err != nil {
		return err
	}
	defer n.radio.Close()

	if err := n.radio.Broadcast(proto.NewReport(n.cfg.DeviceID, report), n.cfg.ReportAdv); err != nil {
		return err
	}

	msgs, dropped, err := n.radio.Collect(n.cfg.CommandScan, n.cfg.CollectCapacity)
	if err != nil {
		return err
	}
	if dropped > 0 {
		slog.Warn("command scan overflowed", "dropped", dropped)
	}

	for _, m := range msgs {
		n.applyCommand(m)
	}
	n.success()
	return nil
}

// applyCommand executes a relay command if it is addressed to this node.
func (n *Node) applyCommand(m *proto.Message) {
	if m.Kind() != proto.KindRelayCommand {
		return
	}
	cmd := m.RelayCmd
	if cmd.TargetID != n.cfg.DeviceID {
		return
	}
	if n.relay == nil {
		slog.Warn("relay command received but no relay fitted", "from", m.SenderID)
		return
	}
	if cmd.RelayID != 0 {
		slog.Warn("relay command for unknown relay", "relay", cmd.RelayID, "from", m.SenderID)
		return
	}
	if err := n.relay.Set(cmd.State); err != nil {
		slog.Error("setting relay", "state", cmd.State, "error", err)
		return
	}
	slog.Info("relay switched", "state", cmd.State, "from", m.SenderID)
}

func (n *Node) setBusy(on bool) {
	if n.status != nil {
		n.status.SetBusy(on)
	}
}

func (n *Node) success() {
	if n.status != nil {
		n.status.Success()
	}
}
