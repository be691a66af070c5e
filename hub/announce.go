package hub

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/mdns"
)

// Announce registers the hub's status API on the local network over mDNS so
// dashboards can find it without configuration. Callers own the returned
// server and must Shutdown it on exit.
func Announce(instance string, port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		host = instance
	}

	service, err := mdns.NewMDNSService(
		instance,
		"_gobeacon._tcp",
		"",
		"",
		port,
		nil,
		[]string{"status API for the beacon hub"},
	)
	if err != nil {
		return nil, fmt.Errorf("hub: mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("hub: mdns server: %w", err)
	}
	slog.Info("announcing hub over mDNS", "instance", instance, "host", host, "port", port)
	return server, nil
}
