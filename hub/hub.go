// Package hub implements the always-on side of the beacon protocol: a
// continuous scan with short broadcast interruptions for pairing responses
// and relay commands, plus the registry and operator surfaces built on it.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mbocsi/gobeacon/proto"
	"github.com/mbocsi/gobeacon/radio"
)

// Default response timings.
const (
	DefaultGrace           = 2 * time.Second
	DefaultHelloDuration   = 2 * time.Second
	DefaultCommandDuration = 2 * time.Second
)

// Config carries the hub's identity and response timings.
type Config struct {
	DeviceID        string
	Grace           time.Duration // lets the node finish its own broadcast phase first
	HelloDuration   time.Duration
	CommandDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.Grace == 0 {
		c.Grace = DefaultGrace
	}
	if c.HelloDuration == 0 {
		c.HelloDuration = DefaultHelloDuration
	}
	if c.CommandDuration == 0 {
		c.CommandDuration = DefaultCommandDuration
	}
}

// Hub drives the dispatch loop. All radio ownership swaps (pause scan,
// broadcast, resume) are serialized on one mutex; message handling runs on
// the radio host's event context and hands off to goroutines for anything
// that touches the radio.
type Hub struct {
	radio    *radio.Radio
	registry *Registry
	policy   RelayPolicy
	feed     *Feed // may be nil: no event feed
	cfg      Config

	mu sync.Mutex // serializes scan-pause/broadcast/resume sequences

	pmu     sync.Mutex
	pending map[string]struct{} // devices with a pairing response in flight
}

func New(r *radio.Radio, registry *Registry, policy RelayPolicy, feed *Feed, cfg Config) *Hub {
	cfg.applyDefaults()
	if policy == nil {
		policy = TogglePolicy{}
	}
	return &Hub{
		radio:    r,
		registry: registry,
		policy:   policy,
		feed:     feed,
		cfg:      cfg,
		pending:  make(map[string]struct{}),
	}
}

// Run opens the radio and scans continuously until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if err := h.radio.Open(); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	defer h.radio.Close()

	if err := h.radio.StartScan(h.handleMessage); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	slog.Info("hub ready, scanning for nodes", "device", h.cfg.DeviceID)

	<-ctx.Done()
	return h.radio.StopScan()
}

// handleMessage is the push-mode delivery handler. No dedup happens here:
// each message is acted on as it arrives and redelivery is noise the
// individual paths tolerate.
func (h *Hub) handleMessage(m *proto.Message) {
	switch m.Kind() {
	case proto.KindHello:
		if m.Hello.Source != proto.SourceNode {
			return
		}
		slog.Info("hello from node", "device", m.SenderID)
		h.feed.Publish(Event{Type: EventHello, Device: m.SenderID, Time: time.Now()})
		if !h.claimPairing(m.SenderID) {
			slog.Debug("pairing response already active", "device", m.SenderID)
			return
		}
		go h.respondToHello(m.SenderID)

	case proto.KindReport:
		h.handleReport(m)

	case proto.KindRelayCommand:
		// Commands are addressed to nodes; hearing one (ours echoed or
		// another hub's) needs no action.
	}
}

func (h *Hub) claimPairing(deviceID string) bool {
	h.pmu.Lock()
	defer h.pmu.Unlock()
	if _, active := h.pending[deviceID]; active {
		return false
	}
	h.pending[deviceID] = struct{}{}
	return true
}

func (h *Hub) releasePairing(deviceID string) {
	h.pmu.Lock()
	delete(h.pending, deviceID)
	h.pmu.Unlock()
}

// respondToHello pauses scanning, waits out the node's own broadcast phase,
// answers with a hub Hello, and resumes scanning.
func (h *Hub) respondToHello(deviceID string) {
	defer h.releasePairing(deviceID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.radio.StopScan(); err != nil {
		slog.Error("pausing scan for pairing response", "device", deviceID, "error", err)
		return
	}
	time.Sleep(h.cfg.Grace)

	if err := h.radio.Broadcast(proto.NewHello(h.cfg.DeviceID, proto.SourceHub), h.cfg.HelloDuration); err != nil {
		slog.Error("pairing response broadcast failed", "device", deviceID, "error", err)
	} else {
		slog.Info("pairing response sent", "device", deviceID)
		h.registry.MarkPaired(deviceID)
		h.feed.Publish(Event{Type: EventPaired, Device: deviceID, Time: time.Now()})
	}

	if err := h.radio.StartScan(h.handleMessage); err != nil {
		slog.Error("resuming scan after pairing response", "error", err)
	}
}

func (h *Hub) handleReport(m *proto.Message) {
	slog.Debug("sensor report", "device", m.SenderID,
		"temperature", m.Report.Temperature, "humidity", m.Report.Humidity,
		"relay", m.Report.RelayState)

	h.registry.UpdateReport(m.SenderID, m.Report)
	h.feed.Publish(Event{Type: EventReport, Device: m.SenderID, Time: time.Now(), Report: m.Report})

	if m.Report.RelayState == nil {
		return
	}
	relayID, state, ok := h.policy.Desired(m.SenderID, m.Report)
	if !ok {
		return
	}
	go func() {
		if err := h.SendRelayCommand(m.SenderID, relayID, state); err != nil {
			slog.Error("relay command failed", "device", m.SenderID, "error", err)
		}
	}()
}

// SendRelayCommand pauses scanning, broadcasts a command addressed to
// target, and resumes scanning. It also serves out-of-band callers (the
// MCP set_relay tool).
func (h *Hub) SendRelayCommand(target string, relayID uint8, state bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.radio.StopScan(); err != nil {
		return fmt.Errorf("hub: pause scan: %w", err)
	}

	cmd := proto.NewRelayCommand(h.cfg.DeviceID, target, relayID, state)
	err := h.radio.Broadcast(cmd, h.cfg.CommandDuration)

	if rerr := h.radio.StartScan(h.handleMessage); rerr != nil && err == nil {
		err = fmt.Errorf("hub: resume scan: %w", rerr)
	}
	if err != nil {
		return err
	}

	slog.Info("relay command sent", "device", target, "relay", relayID, "state", state)
	h.feed.Publish(Event{Type: EventCommand, Device: target, Time: time.Now(), Command: cmd.RelayCmd})
	return nil
}
