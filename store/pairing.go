package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// PairingState is a node's persisted pairing state. Unpaired -> Paired is
// one-way in normal operation; only ResetPairing (factory reset) goes back.
type PairingState uint8

const (
	Unpaired PairingState = 0
	Paired   PairingState = 1
)

func (s PairingState) String() string {
	if s == Paired {
		return "paired"
	}
	return "unpaired"
}

var keyPairing = []byte("pairing")

// Pairing reads the persisted pairing state. A missing or unrecognized
// value reads as Unpaired.
func (d *DB) Pairing() (PairingState, error) {
	st := Unpaired
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketState).Get(keyPairing)
		if len(v) == 1 && PairingState(v[0]) == Paired {
			st = Paired
		}
		return nil
	})
	if err != nil {
		return Unpaired, fmt.Errorf("store: read pairing: %w", err)
	}
	return st, nil
}

// SetPairing durably persists the pairing state. It returns only after
// the write has committed, so callers can act on the new state knowing a
// restart will not lose it.
func (d *DB) SetPairing(st PairingState) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(keyPairing, []byte{byte(st)})
	})
	if err != nil {
		return fmt.Errorf("store: write pairing: %w", err)
	}
	return nil
}

// ResetPairing clears the pairing key (factory reset path).
func (d *DB) ResetPairing() error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Delete(keyPairing)
	})
	if err != nil {
		return fmt.Errorf("store: reset pairing: %w", err)
	}
	return nil
}
