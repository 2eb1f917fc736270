// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiffPoints(t *testing.T) {
	idA := mustBlockID(t, testHashA)
	idB := mustBlockID(t, testHashB)

	before := map[uint64]BlockID{100: idA}
	after := map[uint64]BlockID{100: idA, 300: idB, 200: idB}

	// only the new heights show up, in ascending order
	changes := DiffPoints(before, after, "file")
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, found %d", len(changes))
	}
	if changes[0].Height != 200 || changes[1].Height != 300 {
		t.Fatal("Expected changes in ascending height order")
	}
	if changes[0].Source != "file" {
		t.Fatalf("Expected source \"file\", found %q", changes[0].Source)
	}

	// a nil before means everything is new
	changes = DiffPoints(nil, after, "default")
	if len(changes) != 3 {
		t.Fatalf("Expected 3 changes, found %d", len(changes))
	}
}

func TestCheckpointUpdater(t *testing.T) {
	dir, err := ioutil.TempDir("", "updater")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "checkpoints.json")

	store := NewCheckpointStore()
	if !store.AddCheckpoint(100, testHashA, "") {
		t.Fatal("Expected checkpoint to be accepted")
	}

	resolver := &stubResolver{records: []string{"200:" + testHashB}}
	updater := NewCheckpointUpdater(store, resolver, MAINNET, path, true, time.Hour, nil)
	updater.Run()
	defer updater.Shutdown()

	changeChan := make(chan CheckpointChange, 8)
	conflictChan := make(chan CheckpointConflict, 8)
	updater.RegisterForChanges(changeChan)
	updater.RegisterForConflicts(conflictChan)
	defer updater.UnregisterForChanges(changeChan)
	defer updater.UnregisterForConflicts(conflictChan)

	// first round picks up the DNS record
	changes, conflicts := updater.Update()
	if len(conflicts) != 0 {
		t.Fatalf("Expected no conflicts, found %d", len(conflicts))
	}
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, found %d", len(changes))
	}
	if changes[0].Height != 200 || changes[0].Source != "dns" {
		t.Fatalf("Unexpected change: height %d source %q", changes[0].Height, changes[0].Source)
	}
	if updater.MaxHeight() != 200 {
		t.Fatalf("Expected max height 200, found %d", updater.MaxHeight())
	}
	change := <-changeChan
	if change != changes[0] {
		t.Fatal("Published change differs from the applied change")
	}

	// a grown checkpoints file is picked up on the next round
	fileJson := `{"hashlines": [{"height": 300, "hash": "` + testHashC + `"}]}`
	if err := ioutil.WriteFile(path, []byte(fileJson), 0644); err != nil {
		t.Fatal(err)
	}
	resolver.records = nil
	changes, conflicts = updater.Update()
	if len(conflicts) != 0 {
		t.Fatalf("Expected no conflicts, found %d", len(conflicts))
	}
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, found %d", len(changes))
	}
	if changes[0].Height != 300 || changes[0].Source != "file" {
		t.Fatalf("Unexpected change: height %d source %q", changes[0].Height, changes[0].Source)
	}
	<-changeChan

	// a DNS record disagreeing with a held pin alarms and changes nothing
	resolver.records = []string{"200:" + testHashD}
	changes, conflicts = updater.Update()
	if len(changes) != 0 {
		t.Fatalf("Expected no changes, found %d", len(changes))
	}
	if len(conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, found %d", len(conflicts))
	}
	if conflicts[0].Height != 200 {
		t.Fatalf("Expected the conflict at height 200, found %d", conflicts[0].Height)
	}
	if conflicts[0].Have != mustBlockID(t, testHashB) {
		t.Fatal("Conflict doesn't carry the held pin")
	}
	if conflicts[0].Fetched != mustBlockID(t, testHashD) {
		t.Fatal("Conflict doesn't carry the fetched record")
	}
	if !updater.CheckBlockPassed(200, mustBlockID(t, testHashB)) {
		t.Fatal("Conflicting DNS record replaced the held pin")
	}
	conflict := <-conflictChan
	if conflict != conflicts[0] {
		t.Fatal("Published conflict differs from the returned conflict")
	}

	// stale DNS records are skipped quietly
	resolver.records = []string{"150:" + testHashD}
	changes, conflicts = updater.Update()
	if len(changes) != 0 || len(conflicts) != 0 {
		t.Fatal("Expected the stale record to be skipped")
	}
	if updater.Count() != 3 {
		t.Fatalf("Expected 3 checkpoints, found %d", updater.Count())
	}

	// the read side answers while the loop runs
	if !updater.IsInCheckpointZone(250) {
		t.Fatal("Expected height 250 to be inside the zone")
	}
	if updater.IsAlternativeBlockAllowed(250, 150) {
		t.Fatal("Expected the reorganization below a reached checkpoint to be rejected")
	}
}

func TestCheckpointUpdaterAudit(t *testing.T) {
	dir, err := ioutil.TempDir("", "updater")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	audit, err := NewAuditStorageDisk(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer audit.Close()

	store := NewCheckpointStore()
	resolver := &stubResolver{records: []string{"200:" + testHashB}}
	updater := NewCheckpointUpdater(store, resolver, MAINNET,
		filepath.Join(dir, "checkpoints.json"), true, time.Hour, audit)
	updater.Run()
	defer updater.Shutdown()

	changes, _ := updater.Update()
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, found %d", len(changes))
	}

	// the applied pin landed in the audit trail
	record, err := audit.GetByHeight(200)
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("Expected an audit record for the applied checkpoint")
	}
	if record.Source != "dns" {
		t.Fatalf("Expected source \"dns\", found %q", record.Source)
	}
	if record.BlockID != mustBlockID(t, testHashB) {
		t.Fatal("Audit record doesn't carry the applied pin")
	}
}
