package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPairingDefaultsToUnpaired(t *testing.T) {
	db := openTestDB(t)
	st, err := db.Pairing()
	if err != nil {
		t.Fatal(err)
	}
	if st != Unpaired {
		t.Errorf("fresh store pairing = %v, want unpaired", st)
	}
}

func TestPairingPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetPairing(Paired); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	st, err := db.Pairing()
	if err != nil {
		t.Fatal(err)
	}
	if st != Paired {
		t.Errorf("pairing after reopen = %v, want paired", st)
	}
}

func TestResetPairing(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetPairing(Paired); err != nil {
		t.Fatal(err)
	}
	if err := db.ResetPairing(); err != nil {
		t.Fatal(err)
	}
	st, err := db.Pairing()
	if err != nil {
		t.Fatal(err)
	}
	if st != Unpaired {
		t.Errorf("pairing after reset = %v, want unpaired", st)
	}
}

func TestDeviceRecordRoundTrip(t *testing.T) {
	db := openTestDB(t)

	temp := float32(21.5)
	on := true
	rec := DeviceRecord{
		ID:          "swift-falcon-a3f2",
		Paired:      true,
		Temperature: &temp,
		RelayState:  &on,
		LastSeen:    time.Now().UTC().Truncate(time.Second),
	}
	if err := db.PutDevice(rec); err != nil {
		t.Fatal(err)
	}

	got, found, err := db.GetDevice(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("device not found after put")
	}
	if got.ID != rec.ID || !got.Paired || got.Temperature == nil || *got.Temperature != temp {
		t.Errorf("got %+v, want %+v", got, rec)
	}
	if got.Humidity != nil {
		t.Error("absent humidity should stay absent")
	}

	if _, found, _ := db.GetDevice("nobody"); found {
		t.Error("unknown id reported as found")
	}
}

func TestListDevices(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"b-node", "a-node", "c-node"} {
		if err := db.PutDevice(DeviceRecord{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	recs, err := db.ListDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("listed %d devices, want 3", len(recs))
	}
	// bbolt iterates in key order.
	if recs[0].ID != "a-node" || recs[2].ID != "c-node" {
		t.Errorf("unexpected order: %v, %v, %v", recs[0].ID, recs[1].ID, recs[2].ID)
	}
}
