// Package udphost implements radio.Host over UDP multicast. Every payload
// handed to the advertiser is re-sent on its advertising interval for the
// session's duration, and scanning delivers whatever datagrams arrive on
// the group. It exists so hub and node binaries can interoperate on one
// machine or LAN without a radio controller.
package udphost

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mbocsi/gobeacon/radio"
)

// DefaultGroup is the multicast group the simulated air lives on.
const DefaultGroup = "239.82.13.37:31847"

const maxDatagram = 1 << 12

// Host is a radio.Host whose "air" is a UDP multicast group.
type Host struct {
	group string

	mu       sync.Mutex
	recv     *net.UDPConn
	send     *net.UDPConn
	payload  []byte
	interval time.Duration
	advStop  chan struct{}
	scanStop chan struct{}
}

// New returns a Host on the given multicast group ("ip:port"); an empty
// group selects DefaultGroup.
func New(group string) *Host {
	if group == "" {
		group = DefaultGroup
	}
	return &Host{group: group}
}

func (h *Host) Enable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recv != nil {
		return errors.New("udphost: already enabled")
	}

	addr, err := net.ResolveUDPAddr("udp4", h.group)
	if err != nil {
		return fmt.Errorf("udphost: resolve group %s: %w", h.group, err)
	}
	recv, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("udphost: join group %s: %w", h.group, err)
	}
	send, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		recv.Close()
		return fmt.Errorf("udphost: dial group %s: %w", h.group, err)
	}

	h.recv = recv
	h.send = send
	slog.Debug("udp host enabled", "group", h.group)
	return nil
}

func (h *Host) Disable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopAdvLocked()
	h.stopScanLocked()
	if h.recv != nil {
		h.recv.Close()
		h.recv = nil
	}
	if h.send != nil {
		h.send.Close()
		h.send = nil
	}
	return nil
}

func (h *Host) ConfigureAdvertising(cfg radio.AdvConfig, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.send == nil {
		return errors.New("udphost: not enabled")
	}
	h.payload = append([]byte{}, payload...)
	h.interval = time.Duration(cfg.IntervalMin) * 625 * time.Microsecond
	if h.interval <= 0 {
		h.interval = 100 * time.Millisecond
	}
	return nil
}

// StartAdvertising re-sends the configured payload on the advertising
// interval until the duration elapses, then invokes onComplete. Calling
// StopAdvertising first suppresses the completion callback.
func (h *Host) StartAdvertising(durationTicks uint16, onComplete func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.send == nil {
		return errors.New("udphost: not enabled")
	}
	if h.advStop != nil {
		return errors.New("udphost: already advertising")
	}
	if h.payload == nil {
		return errors.New("udphost: no payload configured")
	}

	stop := make(chan struct{})
	h.advStop = stop
	conn := h.send
	payload := append([]byte{}, h.payload...)
	interval := h.interval
	duration := time.Duration(durationTicks) * 10 * time.Millisecond

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		deadline := time.NewTimer(duration)
		defer deadline.Stop()

		send := func() {
			if _, err := conn.Write(payload); err != nil {
				slog.Debug("udp advertisement send failed", "error", err)
			}
		}
		send()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				send()
			case <-deadline.C:
				h.mu.Lock()
				if h.advStop == stop {
					h.advStop = nil
				}
				h.mu.Unlock()
				onComplete()
				return
			}
		}
	}()
	return nil
}

func (h *Host) StopAdvertising() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopAdvLocked()
	return nil
}

func (h *Host) stopAdvLocked() {
	if h.advStop != nil {
		close(h.advStop)
		h.advStop = nil
	}
}

// StartScan reads datagrams from the group and hands each one to
// onAdvertisement until StopScan.
func (h *Host) StartScan(_ radio.ScanConfig, onAdvertisement func(data []byte)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recv == nil {
		return errors.New("udphost: not enabled")
	}
	if h.scanStop != nil {
		return errors.New("udphost: already scanning")
	}

	stop := make(chan struct{})
	h.scanStop = stop
	conn := h.recv

	go func() {
		buf := make([]byte, maxDatagram)
		for {
			select {
			case <-stop:
				return
			default:
			}
			conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return // closed
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			onAdvertisement(data)
		}
	}()
	return nil
}

func (h *Host) StopScan() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopScanLocked()
	return nil
}

func (h *Host) stopScanLocked() {
	if h.scanStop != nil {
		close(h.scanStop)
		h.scanStop = nil
	}
}
