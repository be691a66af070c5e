package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mbocsi/gobeacon/config"
	"github.com/mbocsi/gobeacon/devname"
	"github.com/mbocsi/gobeacon/node"
	"github.com/mbocsi/gobeacon/radio"
	"github.com/mbocsi/gobeacon/radio/udphost"
	"github.com/mbocsi/gobeacon/store"
)

// simSensor produces a slow random walk around room conditions.
type simSensor struct {
	temperature float32
	humidity    float32
}

func newSimSensor() *simSensor {
	return &simSensor{temperature: 21, humidity: 45}
}

func (s *simSensor) Read() (node.Readings, error) {
	s.temperature += rand.Float32() - 0.5
	s.humidity += rand.Float32()*2 - 1
	t, h := s.temperature, s.humidity
	return node.Readings{Temperature: &t, Humidity: &h}, nil
}

type simRelay struct {
	mu    sync.Mutex
	state bool
}

func (r *simRelay) Set(state bool) error {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	slog.Info("relay output changed", "state", state)
	return nil
}

func (r *simRelay) State() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, true
}

// simPower sleeps in-process; on hardware DeepSleep cuts power and the
// process never sees the return.
type simPower struct{}

func (simPower) DeepSleep(d time.Duration) {
	time.Sleep(d)
}

func (simPower) Restart() {
	slog.Info("restart requested")
}

// simStatus logs where hardware would blink an LED.
type simStatus struct{}

func (simStatus) SetBusy(on bool) {
	slog.Debug("status indicator", "busy", on)
}

func (simStatus) Success() {
	slog.Debug("status indicator", "blink", "success")
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (empty for defaults)")
	debug := flag.Bool("debug", false, "enable debug logging")
	reset := flag.Bool("reset", false, "clear the persisted pairing state and exit")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(logger))

	cfg, err := config.LoadNode(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	deviceID := devname.FromHardwareID(hardwareID(cfg.HardwareID))
	slog.Info("starting node", "device", deviceID)

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *reset {
		if err := db.ResetPairing(); err != nil {
			slog.Error("factory reset failed", "error", err)
			os.Exit(1)
		}
		slog.Info("pairing state cleared", "device", deviceID)
		return
	}

	r := radio.New(udphost.New(cfg.Group), radio.Options{DeviceName: deviceID})
	n := node.New(r, db, newSimSensor(), &simRelay{}, simPower{}, simStatus{}, node.Config{
		DeviceID:        deviceID,
		UnpairedAdv:     cfg.UnpairedAdv(),
		UnpairedScan:    cfg.UnpairedScan(),
		ReportPeriod:    cfg.ReportPeriod(),
		ReportAdv:       cfg.ReportAdv(),
		CommandScan:     cfg.CommandScan(),
		RetrySleep:      cfg.RetrySleep(),
		CollectCapacity: cfg.CollectCapacity,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := n.Run(ctx); err != nil {
		slog.Error("node stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutting down", "device", deviceID)
}

// hardwareID decodes the configured hex id, falling back to the hostname
// when none is set so a machine keeps a stable identity.
func hardwareID(hexID string) []byte {
	if hexID != "" {
		if b, err := hex.DecodeString(hexID); err == nil && len(b) > 0 {
			return b
		}
		slog.Warn("invalid hardware_id, deriving from hostname", "hardware_id", hexID)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return []byte(host)
}
