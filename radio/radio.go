package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mbocsi/gobeacon/adv"
	"github.com/mbocsi/gobeacon/proto"
)

var (
	ErrClosed      = errors.New("radio: not open")
	ErrAlreadyOpen = errors.New("radio: already open")

	// ErrBusy rejects overlapping advertise/scan: the two are mutually
	// exclusive on a single radio and callers must serialize.
	ErrBusy = errors.New("radio: advertise and scan are mutually exclusive")
)

// Default duty-cycle parameters.
const (
	DefaultAdvIntervalMin   = 100 * time.Millisecond
	DefaultAdvIntervalMax   = 200 * time.Millisecond
	DefaultScanInterval     = 100 * time.Millisecond
	DefaultScanWindow       = 50 * time.Millisecond
	DefaultCompletionMargin = 1 * time.Second
)

type state uint8

const (
	stateClosed state = iota
	stateIdle
	stateAdvertising
	stateScanning
)

// Options configure a Radio. Zero values fall back to defaults.
type Options struct {
	DeviceName       string
	AdvIntervalMin   time.Duration
	AdvIntervalMax   time.Duration
	ScanInterval     time.Duration
	ScanWindow       time.Duration
	CompletionMargin time.Duration
	ChannelMap       byte
}

func (o *Options) applyDefaults() {
	if o.AdvIntervalMin == 0 {
		o.AdvIntervalMin = DefaultAdvIntervalMin
	}
	if o.AdvIntervalMax == 0 {
		o.AdvIntervalMax = DefaultAdvIntervalMax
	}
	if o.ScanInterval == 0 {
		o.ScanInterval = DefaultScanInterval
	}
	if o.ScanWindow == 0 {
		o.ScanWindow = DefaultScanWindow
	}
	if o.CompletionMargin == 0 {
		o.CompletionMargin = DefaultCompletionMargin
	}
	if o.ChannelMap == 0 {
		o.ChannelMap = ChannelMap39
	}
}

// Radio is the half-duplex transport. Broadcast and Scan block the caller;
// exactly one of them may be in progress at a time.
type Radio struct {
	host Host
	opts Options

	mu sync.Mutex
	st state
}

func New(host Host, opts Options) *Radio {
	opts.applyDefaults()
	return &Radio{host: host, opts: opts}
}

// Open acquires the radio and blocks until the host stack reports ready.
func (r *Radio) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st != stateClosed {
		return ErrAlreadyOpen
	}
	if err := r.host.Enable(); err != nil {
		return fmt.Errorf("radio: enable: %w", err)
	}
	r.st = stateIdle
	slog.Debug("radio opened", "device", r.opts.DeviceName)
	return nil
}

// Close cancels any in-progress advertise or scan and releases the radio.
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.st {
	case stateClosed:
		return nil
	case stateAdvertising:
		if err := r.host.StopAdvertising(); err != nil {
			slog.Warn("stopping advertising on close", "error", err)
		}
	case stateScanning:
		if err := r.host.StopScan(); err != nil {
			slog.Warn("stopping scan on close", "error", err)
		}
	}
	r.st = stateClosed
	if err := r.host.Disable(); err != nil {
		return fmt.Errorf("radio: disable: %w", err)
	}
	slog.Debug("radio closed", "device", r.opts.DeviceName)
	return nil
}

// Broadcast advertises the message for duration and blocks until the host
// reports completion or duration plus a safety margin elapses. A missed
// completion is treated as success after a forced stop: the advertisement
// was almost certainly sent.
func (r *Radio) Broadcast(m *proto.Message, duration time.Duration) error {
	var buf [proto.MaxEncodedSize]byte
	n, err := proto.Encode(m, buf[:])
	if err != nil {
		return fmt.Errorf("radio: encode message: %w", err)
	}
	payload, err := adv.BuildPayload(r.opts.DeviceName, adv.WrapFrame(buf[:n]))
	if err != nil {
		return fmt.Errorf("radio: build payload: %w", err)
	}

	r.mu.Lock()
	if r.st == stateClosed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.st != stateIdle {
		r.mu.Unlock()
		return ErrBusy
	}

	cfg := AdvConfig{
		IntervalMin: ticks625(r.opts.AdvIntervalMin),
		IntervalMax: ticks625(r.opts.AdvIntervalMax),
		ChannelMap:  r.opts.ChannelMap,
		Connectable: false,
		Scannable:   false,
		Extended:    true,
	}
	if err := r.host.ConfigureAdvertising(cfg, payload); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("radio: configure advertising: %w", err)
	}

	// Single-slot handoff from the host's event context, released at
	// most once per session.
	done := make(chan struct{}, 1)
	var once sync.Once
	complete := func() {
		once.Do(func() { done <- struct{}{} })
	}

	if err := r.host.StartAdvertising(ticks10ms(duration), complete); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("radio: start advertising: %w", err)
	}
	r.st = stateAdvertising
	r.mu.Unlock()

	timer := time.NewTimer(duration + r.opts.CompletionMargin)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("advertising completion timeout, forcing stop",
			"device", r.opts.DeviceName, "duration", duration)
		if err := r.host.StopAdvertising(); err != nil {
			slog.Warn("forced advertising stop failed", "error", err)
		}
	}

	r.mu.Lock()
	if r.st == stateAdvertising {
		r.st = stateIdle
	}
	r.mu.Unlock()
	return nil
}

// StartScan begins continuous passive scanning, delivering each decoded
// message to onMessage from the host's event context. It returns
// immediately; scanning runs until StopScan or Close. Duplicates are not
// filtered at this layer.
func (r *Radio) StartScan(onMessage func(*proto.Message)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st == stateClosed {
		return ErrClosed
	}
	if r.st != stateIdle {
		return ErrBusy
	}

	cfg := ScanConfig{
		Interval: ticks625(r.opts.ScanInterval),
		Window:   ticks625(r.opts.ScanWindow),
		Passive:  true,
	}
	if err := r.host.StartScan(cfg, func(data []byte) {
		r.deliver(data, onMessage)
	}); err != nil {
		return fmt.Errorf("radio: start scan: %w", err)
	}
	r.st = stateScanning
	return nil
}

// StopScan cancels a continuous scan. Stopping when no scan is running is
// a no-op.
func (r *Radio) StopScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st != stateScanning {
		return nil
	}
	if err := r.host.StopScan(); err != nil {
		return fmt.Errorf("radio: stop scan: %w", err)
	}
	r.st = stateIdle
	return nil
}

// Scan blocks scanning for duration, then cancels.
func (r *Radio) Scan(duration time.Duration, onMessage func(*proto.Message)) error {
	if err := r.StartScan(onMessage); err != nil {
		return err
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	<-timer.C
	return r.StopScan()
}

// deliver runs the receive path: LTV walk, frame unwrap, decode. Framing
// mismatches are other people's traffic and ignored silently; a frame that
// is ours but does not decode is logged and dropped.
func (r *Radio) deliver(data []byte, onMessage func(*proto.Message)) {
	vendor, ok := adv.FindVendorData(data)
	if !ok {
		return
	}
	encoded, err := adv.UnwrapFrame(vendor)
	if err != nil {
		return
	}
	m, err := proto.Decode(encoded)
	if err != nil {
		slog.Warn("dropping undecodable frame", "len", len(encoded), "error", err)
		return
	}
	onMessage(m)
}

func ticks625(d time.Duration) uint16 {
	return uint16(d / (625 * time.Microsecond))
}

func ticks10ms(d time.Duration) uint16 {
	return uint16(d / (10 * time.Millisecond))
}
