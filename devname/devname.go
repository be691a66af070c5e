// Package devname derives short human-readable device names from a stable
// hardware identifier. The same hardware id always yields the same name,
// so a device keeps its identity across restarts with nothing persisted.
package devname

import "fmt"

var adjectives = []string{
	"swift", "bright", "calm", "bold", "keen",
	"warm", "cool", "quick", "sharp", "soft",
	"fair", "true", "pure", "wise", "kind",
	"brave", "free", "glad", "proud", "neat",
	"crisp", "fresh", "clear", "prime", "noble",
	"vivid", "stark", "sleek", "spry", "deft",
}

var nouns = []string{
	"falcon", "river", "oak", "fox", "wolf",
	"pine", "hawk", "brook", "stone", "fern",
	"birch", "heron", "cliff", "moss", "reed",
	"wren", "sage", "flint", "grove", "lark",
	"marsh", "peak", "vale", "aspen", "crow",
	"ridge", "spruce", "finch", "dale", "elm",
}

// FromHardwareID maps a stable hardware identifier (typically a 6-byte
// radio address) to an "adjective-noun-xxxx" name. The last four bytes
// seed the word choice and the last two form the hex suffix. Shorter ids
// are zero-padded on the left.
func FromHardwareID(hw []byte) string {
	var b [6]byte
	if len(hw) >= 6 {
		copy(b[:], hw[len(hw)-6:])
	} else {
		copy(b[6-len(hw):], hw)
	}

	seed := uint32(b[2])<<24 | uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5])
	suffix := uint16(b[4])<<8 | uint16(b[5])

	adj := adjectives[seed%uint32(len(adjectives))]
	noun := nouns[(seed/uint32(len(adjectives)))%uint32(len(nouns))]

	return fmt.Sprintf("%s-%s-%04x", adj, noun, suffix)
}
