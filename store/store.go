// Package store persists the little state this system keeps across
// restarts: a node's pairing state and the hub's device registry. Both
// live in a single bbolt file with one bucket per concern.
package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketState   = []byte("state")
	bucketDevices = []byte("devices")
)

type DB struct {
	db *bolt.DB
}

// Open opens (creating if needed) the store at path and ensures its
// buckets exist.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketState, bucketDevices} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
