// Package adv builds and parses the advertisement payloads that carry
// protocol messages: the vendor-data frame wrapper, the LTV field walk
// over raw received advertisements, and the full outgoing payload
// (flags + local name + vendor data).
package adv

import "errors"

// VendorID is a private namespace marker, not a registered identifier.
// Development/testing company ids are conventionally 0xFFFF.
const VendorID uint16 = 0xFFFF

// Magic disambiguates our frames from other traffic that happens to use
// the same development vendor id.
var magic = [2]byte{0x48, 0x41} // "HA"

// frameHeaderLen covers vendor id (2) + magic (2).
const frameHeaderLen = 4

// ErrNotOurs reports that a vendor-data field does not belong to this
// protocol. It is expected background noise, never escalated.
var ErrNotOurs = errors.New("adv: vendor data is not ours")

// WrapFrame prefixes encoded message bytes with the vendor-data header:
// [vendor_id lo][vendor_id hi][magic0][magic1][codec bytes].
func WrapFrame(encoded []byte) []byte {
	frame := make([]byte, frameHeaderLen+len(encoded))
	frame[0] = byte(VendorID & 0xFF)
	frame[1] = byte(VendorID >> 8)
	frame[2] = magic[0]
	frame[3] = magic[1]
	copy(frame[frameHeaderLen:], encoded)
	return frame
}

// UnwrapFrame validates the vendor-data header and returns the codec
// bytes. Anything shorter than the header or with a mismatched constant
// fails with ErrNotOurs before any decode is attempted.
func UnwrapFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderLen {
		return nil, ErrNotOurs
	}
	vendor := uint16(frame[0]) | uint16(frame[1])<<8
	if vendor != VendorID {
		return nil, ErrNotOurs
	}
	if frame[2] != magic[0] || frame[3] != magic[1] {
		return nil, ErrNotOurs
	}
	return frame[frameHeaderLen:], nil
}
