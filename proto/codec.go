package proto

import (
	"encoding/binary"
	"errors"
	"math"
)

// Binary wire layout, little-endian throughout:
//
//	u32 message_id
//	u8  sender_id_len (<= MaxDeviceIDLen), sender_id bytes
//	u8  payload tag
//	  tag 1 (hello):   u8 source
//	  tag 2 (report):  u8 field bitmap, then f32 temperature, f32 humidity,
//	                   u8 relay_state for each bit set
//	  tag 3 (command): u8 target_len, target bytes, u8 relay_id, u8 state
//
// Decode never reads past the supplied buffer and rejects trailing bytes.

var (
	// ErrMalformed is returned for any input Decode cannot account for
	// byte by byte: truncation, oversized strings, unknown tags.
	ErrMalformed = errors.New("proto: malformed message")

	// ErrCapacity is returned when an encoded message would not fit the
	// caller-supplied buffer.
	ErrCapacity = errors.New("proto: encoded message exceeds buffer capacity")

	// ErrAmbiguousPayload is returned by Encode when not exactly one
	// payload variant is populated.
	ErrAmbiguousPayload = errors.New("proto: message must carry exactly one payload")
)

const (
	tagHello        = 1
	tagReport       = 2
	tagRelayCommand = 3

	bitTemperature = 0x01
	bitHumidity    = 0x02
	bitRelay       = 0x04
	reportBitsMask = bitTemperature | bitHumidity | bitRelay
)

// MaxEncodedSize is the largest encoding any valid Message can produce:
// header (4+1+31) plus the largest payload (relay command, 1+1+31+1+1).
const MaxEncodedSize = 4 + 1 + MaxDeviceIDLen + 1 + 1 + MaxDeviceIDLen + 1 + 1

// EncodedSize returns the exact number of bytes Encode will write, or an
// error if the message cannot be encoded at all.
func EncodedSize(m *Message) (int, error) {
	if len(m.SenderID) > MaxDeviceIDLen {
		return 0, ErrCapacity
	}
	n := 4 + 1 + len(m.SenderID) + 1
	switch m.Kind() {
	case KindHello:
		n++
	case KindReport:
		n++
		if m.Report.Temperature != nil {
			n += 4
		}
		if m.Report.Humidity != nil {
			n += 4
		}
		if m.Report.RelayState != nil {
			n++
		}
	case KindRelayCommand:
		if len(m.RelayCmd.TargetID) > MaxDeviceIDLen {
			return 0, ErrCapacity
		}
		n += 1 + len(m.RelayCmd.TargetID) + 1 + 1
	default:
		return 0, ErrAmbiguousPayload
	}
	return n, nil
}

// Encode writes m into buf and returns the number of bytes written.
// A buffer too small for the encoding fails with ErrCapacity before
// anything is written.
func Encode(m *Message, buf []byte) (int, error) {
	size, err := EncodedSize(m)
	if err != nil {
		return 0, err
	}
	if size > len(buf) {
		return 0, ErrCapacity
	}

	binary.LittleEndian.PutUint32(buf[0:4], m.ID)
	buf[4] = byte(len(m.SenderID))
	n := 5 + copy(buf[5:], m.SenderID)

	switch m.Kind() {
	case KindHello:
		buf[n] = tagHello
		buf[n+1] = byte(m.Hello.Source)
		n += 2
	case KindReport:
		buf[n] = tagReport
		n++
		var bits byte
		if m.Report.Temperature != nil {
			bits |= bitTemperature
		}
		if m.Report.Humidity != nil {
			bits |= bitHumidity
		}
		if m.Report.RelayState != nil {
			bits |= bitRelay
		}
		buf[n] = bits
		n++
		if m.Report.Temperature != nil {
			binary.LittleEndian.PutUint32(buf[n:], math.Float32bits(*m.Report.Temperature))
			n += 4
		}
		if m.Report.Humidity != nil {
			binary.LittleEndian.PutUint32(buf[n:], math.Float32bits(*m.Report.Humidity))
			n += 4
		}
		if m.Report.RelayState != nil {
			buf[n] = boolByte(*m.Report.RelayState)
			n++
		}
	case KindRelayCommand:
		buf[n] = tagRelayCommand
		buf[n+1] = byte(len(m.RelayCmd.TargetID))
		n += 2
		n += copy(buf[n:], m.RelayCmd.TargetID)
		buf[n] = m.RelayCmd.RelayID
		buf[n+1] = boolByte(m.RelayCmd.State)
		n += 2
	}
	return n, nil
}

// Decode parses one Message from data. Any length mismatch, unknown tag,
// oversized field or trailing garbage fails with ErrMalformed.
func Decode(data []byte) (*Message, error) {
	r := reader{buf: data}

	id, ok := r.u32()
	if !ok {
		return nil, ErrMalformed
	}
	sender, ok := r.boundedString()
	if !ok {
		return nil, ErrMalformed
	}
	tag, ok := r.u8()
	if !ok {
		return nil, ErrMalformed
	}

	m := &Message{ID: id, SenderID: sender}

	switch tag {
	case tagHello:
		src, ok := r.u8()
		if !ok || src > byte(SourceHub) {
			return nil, ErrMalformed
		}
		m.Hello = &Hello{Source: Source(src)}

	case tagReport:
		bits, ok := r.u8()
		if !ok || bits&^byte(reportBitsMask) != 0 {
			return nil, ErrMalformed
		}
		rep := &SensorReport{}
		if bits&bitTemperature != 0 {
			v, ok := r.f32()
			if !ok {
				return nil, ErrMalformed
			}
			rep.Temperature = &v
		}
		if bits&bitHumidity != 0 {
			v, ok := r.f32()
			if !ok {
				return nil, ErrMalformed
			}
			rep.Humidity = &v
		}
		if bits&bitRelay != 0 {
			b, ok := r.u8()
			if !ok || b > 1 {
				return nil, ErrMalformed
			}
			on := b == 1
			rep.RelayState = &on
		}
		m.Report = rep

	case tagRelayCommand:
		target, ok := r.boundedString()
		if !ok {
			return nil, ErrMalformed
		}
		relayID, ok := r.u8()
		if !ok {
			return nil, ErrMalformed
		}
		state, ok := r.u8()
		if !ok || state > 1 {
			return nil, ErrMalformed
		}
		m.RelayCmd = &RelayCommand{TargetID: target, RelayID: relayID, State: state == 1}

	default:
		return nil, ErrMalformed
	}

	if r.remaining() != 0 {
		return nil, ErrMalformed
	}
	return m, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// reader is a bounds-checked cursor over the decode buffer.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) u8() (byte, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *reader) u32() (uint32, bool) {
	if r.remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}

func (r *reader) f32() (float32, bool) {
	v, ok := r.u32()
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (r *reader) boundedString() (string, bool) {
	n, ok := r.u8()
	if !ok || int(n) > MaxDeviceIDLen || r.remaining() < int(n) {
		return "", false
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, true
}
