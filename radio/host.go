// Package radio owns the half-duplex broadcast/scan duty cycle over an
// abstract radio host stack. A single Radio value is driven by exactly one
// task at a time; the host stack's own event context talks back only
// through completion callbacks and received-advertisement callbacks.
package radio

// Interval and window values handed to the host are in the stack's native
// 0.625 ms tick units; advertising durations are in 10 ms units. The Radio
// converts from time.Duration internally.

// AdvConfig carries advertising parameters in native units.
type AdvConfig struct {
	IntervalMin uint16 // 0.625 ms units
	IntervalMax uint16 // 0.625 ms units
	ChannelMap  byte
	Connectable bool
	Scannable   bool
	Extended    bool
}

// ScanConfig carries scanning parameters in native units.
type ScanConfig struct {
	Interval uint16 // 0.625 ms units
	Window   uint16 // 0.625 ms units
	Passive  bool
}

// ChannelMap39 selects a single fixed primary advertising channel. One
// channel trades a small chance of a missed reception for lower power
// draw and a deterministic timing budget.
const ChannelMap39 byte = 0x04

// Host is the surface of the underlying radio stack the transport drives.
// Implementations deliver events (advertise completion, received
// advertisements) from their own execution context; callbacks must be
// treated as concurrent with the caller.
type Host interface {
	// Enable powers the controller and blocks until it is ready
	// (address assigned).
	Enable() error
	Disable() error

	// ConfigureAdvertising sets parameters and the raw payload for the
	// next advertising session.
	ConfigureAdvertising(cfg AdvConfig, payload []byte) error

	// StartAdvertising begins a bounded advertising session. onComplete
	// is invoked at most once from the host's context when the session
	// ends on its own; it is not invoked after StopAdvertising.
	StartAdvertising(durationTicks uint16, onComplete func()) error
	StopAdvertising() error

	// StartScan begins scanning and invokes onAdvertisement with the raw
	// payload bytes of each received advertisement until StopScan.
	StartScan(cfg ScanConfig, onAdvertisement func(data []byte)) error
	StopScan() error
}
