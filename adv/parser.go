package adv

// LTV field types used by this protocol.
const (
	typeFlags        = 0x01
	typeCompleteName = 0x09
	typeVendorData   = 0xFF
)

// FindVendorData walks the LTV fields of a raw advertisement and returns
// the first vendor-specific data field (without its type byte).
//
// Stack-supplied field parsers are typically written for the legacy 31-byte
// advertisement and reject any single field longer than 29 bytes, which our
// extended-advertising sensor reports routinely exceed, so the walk is done
// by hand: 1-byte length, 1-byte type, length-1 value bytes. The walk stops
// when the remaining data is shorter than a field header or a field claims
// more bytes than remain; it never reads out of bounds. Works for both the
// legacy and extended encodings, since the layout is the same and only the
// size ceiling differs.
func FindVendorData(data []byte) ([]byte, bool) {
	for len(data) >= 2 {
		fieldLen := int(data[0])
		fieldType := data[1]

		if fieldLen == 0 || fieldLen > len(data)-1 {
			break // invalid or truncated
		}

		if fieldType == typeVendorData {
			return data[2 : 1+fieldLen], true
		}

		data = data[1+fieldLen:]
	}
	return nil, false
}
