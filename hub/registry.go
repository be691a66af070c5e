package hub

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mbocsi/gobeacon/proto"
	"github.com/mbocsi/gobeacon/store"
)

// Registry is the hub's view of every node it has heard from. It is read
// from and written through to the persistent store so the hub remembers
// devices across restarts; persistence failures are logged, never allowed
// to stall the protocol.
type Registry struct {
	mu      sync.RWMutex
	db      *store.DB // may be nil: memory only
	devices map[string]store.DeviceRecord
}

func NewRegistry(db *store.DB) (*Registry, error) {
	r := &Registry{db: db, devices: make(map[string]store.DeviceRecord)}
	if db != nil {
		recs, err := db.ListDevices()
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			r.devices[rec.ID] = rec
		}
		slog.Info("device registry loaded", "devices", len(recs))
	}
	return r, nil
}

// MarkPaired records that a pairing response was sent to this device.
func (r *Registry) MarkPaired(id string) {
	r.mu.Lock()
	rec := r.devices[id]
	rec.ID = id
	rec.Paired = true
	rec.LastSeen = time.Now()
	r.devices[id] = rec
	r.mu.Unlock()
	r.persist(rec)
}

// UpdateReport merges a sensor report into the device's record. Absent
// report fields leave the previous values in place.
func (r *Registry) UpdateReport(id string, report *proto.SensorReport) {
	r.mu.Lock()
	rec := r.devices[id]
	rec.ID = id
	rec.LastSeen = time.Now()
	if report.Temperature != nil {
		v := *report.Temperature
		rec.Temperature = &v
	}
	if report.Humidity != nil {
		v := *report.Humidity
		rec.Humidity = &v
	}
	if report.RelayState != nil {
		v := *report.RelayState
		rec.RelayState = &v
	}
	r.devices[id] = rec
	r.mu.Unlock()
	r.persist(rec)
}

func (r *Registry) persist(rec store.DeviceRecord) {
	if r.db == nil {
		return
	}
	if err := r.db.PutDevice(rec); err != nil {
		slog.Error("persisting device record", "device", rec.ID, "error", err)
	}
}

func (r *Registry) Get(id string) (store.DeviceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.devices[id]
	return rec, ok
}

// List returns all known devices ordered by id.
func (r *Registry) List() []store.DeviceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := make([]store.DeviceRecord, 0, len(r.devices))
	for _, rec := range r.devices {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs
}
