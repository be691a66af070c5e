package adv

import (
	"errors"
	"fmt"
)

// Advertisement flags: general discoverable, classic radio unsupported.
const (
	flagGeneralDiscoverable = 0x02
	flagClassicUnsupported  = 0x04
	flagsValue              = flagGeneralDiscoverable | flagClassicUnsupported
)

// maxFieldValueLen is the ceiling one LTV field value can describe:
// the length byte covers the type byte plus the value.
const maxFieldValueLen = 254

var ErrFieldTooLong = errors.New("adv: field exceeds LTV length ceiling")

// BuildPayload assembles the complete advertisement payload broadcast on
// air: a flags field, the complete local device name, and the wrapped
// vendor-data frame.
func BuildPayload(name string, frame []byte) ([]byte, error) {
	if len(name) > maxFieldValueLen {
		return nil, fmt.Errorf("device name %q: %w", name, ErrFieldTooLong)
	}
	if len(frame) > maxFieldValueLen {
		return nil, fmt.Errorf("vendor frame of %d bytes: %w", len(frame), ErrFieldTooLong)
	}

	payload := make([]byte, 0, 3+2+len(name)+2+len(frame))

	payload = append(payload, 2, typeFlags, flagsValue)

	payload = append(payload, byte(len(name)+1), typeCompleteName)
	payload = append(payload, name...)

	payload = append(payload, byte(len(frame)+1), typeVendorData)
	payload = append(payload, frame...)

	return payload, nil
}
