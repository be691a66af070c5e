package radio

import (
	"log/slog"
	"time"

	"github.com/mbocsi/gobeacon/proto"
)

// DedupWindowSize is the capacity of the recently-seen id ring kept for
// one bounded scan. It only needs to cover the handful of distinct
// messages a short listen window can plausibly observe.
const DedupWindowSize = 32

// dedupWindow is a fixed-capacity ring of recently-seen message ids.
// When full, the oldest id is overwritten.
type dedupWindow struct {
	ids  []uint32
	next int
	n    int
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{ids: make([]uint32, capacity)}
}

// remember records id and reports true on first sight, false on resight.
func (w *dedupWindow) remember(id uint32) bool {
	for i := 0; i < w.n; i++ {
		if w.ids[i] == id {
			return false
		}
	}
	w.ids[w.next] = id
	w.next = (w.next + 1) % len(w.ids)
	if w.n < len(w.ids) {
		w.n++
	}
	return true
}

// Collect scans for duration and gathers up to max unique messages,
// deduplicated by message id. It returns the buffered messages and the
// count of unique messages dropped because the buffer was full — there is
// no way to signal backpressure to a broadcaster, so overflow is simply
// reported as loss.
func (r *Radio) Collect(duration time.Duration, max int) ([]*proto.Message, int, error) {
	window := newDedupWindow(DedupWindowSize)
	msgs := make([]*proto.Message, 0, max)
	dropped := 0

	err := r.Scan(duration, func(m *proto.Message) {
		if !window.remember(m.ID) {
			return
		}
		if len(msgs) >= max {
			dropped++
			slog.Warn("collect buffer full, dropping message",
				"sender", m.SenderID, "id", m.ID, "capacity", max)
			return
		}
		msgs = append(msgs, m)
	})
	if err != nil {
		return nil, 0, err
	}
	return msgs, dropped, nil
}
