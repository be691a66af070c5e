package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DeviceRecord is the hub's persisted view of one node.
type DeviceRecord struct {
	ID          string    `json:"id"`
	Paired      bool      `json:"paired"`
	Temperature *float32  `json:"temperature,omitempty"`
	Humidity    *float32  `json:"humidity,omitempty"`
	RelayState  *bool     `json:"relay_state,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// PutDevice stores or replaces one device record.
func (d *DB) PutDevice(rec DeviceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal device %s: %w", rec.ID, err)
	}
	err = d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).Put([]byte(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("store: write device %s: %w", rec.ID, err)
	}
	return nil
}

// GetDevice reads one device record by id.
func (d *DB) GetDevice(id string) (DeviceRecord, bool, error) {
	var rec DeviceRecord
	found := false
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDevices).Get([]byte(id))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return DeviceRecord{}, false, fmt.Errorf("store: read device %s: %w", id, err)
	}
	return rec, found, nil
}

// ListDevices returns every stored device record, in key order.
func (d *DB) ListDevices() ([]DeviceRecord, error) {
	var recs []DeviceRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).ForEach(func(k, v []byte) error {
			var rec DeviceRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list devices: %w", err)
	}
	return recs, nil
}

// DeleteDevice removes one device record.
func (d *DB) DeleteDevice(id string) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("store: delete device %s: %w", id, err)
	}
	return nil
}
