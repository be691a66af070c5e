package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mbocsi/gobeacon/config"
	"github.com/mbocsi/gobeacon/devname"
	"github.com/mbocsi/gobeacon/hub"
	"github.com/mbocsi/gobeacon/radio"
	"github.com/mbocsi/gobeacon/radio/udphost"
	"github.com/mbocsi/gobeacon/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (empty for defaults)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(logger))

	cfg, err := config.LoadHub(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "hub"
		}
		deviceID = devname.FromHardwareID([]byte(host))
	}
	slog.Info("starting hub", "device", deviceID)

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		slog.Error("opening store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry, err := hub.NewRegistry(db)
	if err != nil {
		slog.Error("loading device registry", "error", err)
		os.Exit(1)
	}
	feed := hub.NewFeed()

	r := radio.New(udphost.New(cfg.Group), radio.Options{DeviceName: deviceID})
	h := hub.New(r, registry, hub.TogglePolicy{}, feed, hub.Config{
		DeviceID:        deviceID,
		Grace:           cfg.Grace(),
		HelloDuration:   cfg.HelloDuration(),
		CommandDuration: cfg.CommandDuration(),
	})

	web := hub.NewWeb(cfg.HTTPAddr, registry, feed)
	go func() {
		if err := web.Start(); err != nil {
			slog.Error("status API failed", "error", err)
		}
	}()

	if cfg.Announce {
		if port, err := addrPort(cfg.HTTPAddr); err != nil {
			slog.Error("cannot announce: bad http_addr", "addr", cfg.HTTPAddr, "error", err)
		} else if server, err := hub.Announce(deviceID, port); err != nil {
			slog.Error("mDNS announce failed", "error", err)
		} else {
			defer server.Shutdown()
		}
	}

	if cfg.MCP {
		go func() {
			if err := hub.NewMCPServer(h, registry).Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Run(ctx); err != nil {
		slog.Error("hub stopped", "error", err)
	}
	slog.Info("shutting down")
	web.Shutdown(context.Background())
}

func addrPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
