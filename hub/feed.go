package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbocsi/gobeacon/proto"
)

// Event types published on the feed.
const (
	EventHello   = "hello"
	EventPaired  = "paired"
	EventReport  = "report"
	EventCommand = "command"
)

// Event is one protocol happening, as shown to feed subscribers.
type Event struct {
	Type    string              `json:"type"`
	Device  string              `json:"device"`
	Time    time.Time           `json:"time"`
	Report  *proto.SensorReport `json:"report,omitempty"`
	Command *proto.RelayCommand `json:"command,omitempty"`
}

// Feed fans protocol events out to subscribers (the websocket endpoint).
// Publishing never blocks: a subscriber that falls behind loses events.
type Feed struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber and returns its id and channel.
func (f *Feed) Subscribe() (string, <-chan Event) {
	id := "feed-" + uuid.NewString()
	ch := make(chan Event, 16)
	f.mu.Lock()
	f.subs[id] = ch
	f.mu.Unlock()
	slog.Debug("feed subscriber added", "id", id)
	return id, ch
}

func (f *Feed) Unsubscribe(id string) {
	f.mu.Lock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
	f.mu.Unlock()
	slog.Debug("feed subscriber removed", "id", id)
}

// Publish delivers e to every subscriber that has room. Safe on a nil
// feed, which is how a hub without a web surface runs.
func (f *Feed) Publish(e Event) {
	if f == nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, ch := range f.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("feed subscriber lagging, event dropped", "id", id)
		}
	}
}
