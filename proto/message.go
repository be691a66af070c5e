package proto

import (
	"math/rand/v2"
	"time"
)

// Source identifies which side of the protocol sent a Hello.
type Source uint8

const (
	SourceNode Source = 0
	SourceHub  Source = 1
)

func (s Source) String() string {
	switch s {
	case SourceNode:
		return "node"
	case SourceHub:
		return "hub"
	default:
		return "unknown"
	}
}

// MaxDeviceIDLen bounds every device-id string carried on the wire.
const MaxDeviceIDLen = 31

// Hello is the discovery/pairing beacon.
type Hello struct {
	Source Source `json:"source"`
}

// SensorReport carries the node's current readings. Each field is
// independently optional; nil means "not measured", not zero.
type SensorReport struct {
	Temperature *float32 `json:"temperature,omitempty"`
	Humidity    *float32 `json:"humidity,omitempty"`
	RelayState  *bool    `json:"relay_state,omitempty"`
}

// RelayCommand addresses one relay on one device.
type RelayCommand struct {
	TargetID string `json:"target_id"`
	RelayID  uint8  `json:"relay_id"`
	State    bool   `json:"state"`
}

// Message is the unit of transport. Exactly one payload pointer is set;
// the constructors below maintain that and Decode only ever produces
// well-formed values.
type Message struct {
	ID       uint32        `json:"id"`
	SenderID string        `json:"sender_id"`
	Hello    *Hello        `json:"hello,omitempty"`
	Report   *SensorReport `json:"report,omitempty"`
	RelayCmd *RelayCommand `json:"relay_cmd,omitempty"`
}

// Kind names a payload variant.
type Kind uint8

const (
	KindInvalid      Kind = 0
	KindHello        Kind = 1
	KindReport       Kind = 2
	KindRelayCommand Kind = 3
)

// Kind returns the populated variant, or KindInvalid if zero or more
// than one payload pointer is set.
func (m *Message) Kind() Kind {
	k := KindInvalid
	n := 0
	if m.Hello != nil {
		k, n = KindHello, n+1
	}
	if m.Report != nil {
		k, n = KindReport, n+1
	}
	if m.RelayCmd != nil {
		k, n = KindRelayCommand, n+1
	}
	if n != 1 {
		return KindInvalid
	}
	return k
}

// NewHello builds a discovery beacon from the given sender.
func NewHello(senderID string, source Source) *Message {
	return &Message{
		ID:       NewMessageID(),
		SenderID: senderID,
		Hello:    &Hello{Source: source},
	}
}

// NewReport builds a sensor report. Nil fields are omitted on the wire.
func NewReport(senderID string, report SensorReport) *Message {
	return &Message{
		ID:       NewMessageID(),
		SenderID: senderID,
		Report:   &report,
	}
}

// NewRelayCommand builds a command addressed to one of target's relays.
func NewRelayCommand(senderID, targetID string, relayID uint8, state bool) *Message {
	return &Message{
		ID:       NewMessageID(),
		SenderID: senderID,
		RelayCmd: &RelayCommand{TargetID: targetID, RelayID: relayID, State: state},
	}
}

// NewMessageID generates an id unique enough for dedup: the upper 16 bits
// are a coarse millisecond timestamp (recency-biased, so stale duplicates
// age out of dedup windows naturally), the lower 16 bits random.
func NewMessageID() uint32 {
	ms := uint32(time.Now().UnixMilli())
	return (ms&0xFFFF)<<16 | rand.Uint32()&0xFFFF
}
