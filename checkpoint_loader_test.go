// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

// Canned TXT records standing in for the checkpoint domain.
type stubResolver struct {
	records []string
	err     error
	queries int
}

func (r *stubResolver) LookupTXT(name string) ([]string, error) {
	r.queries++
	if r.err != nil {
		return nil, r.err
	}
	return r.records, nil
}

func TestInitDefaultCheckpoints(t *testing.T) {
	store := NewCheckpointStore()
	loader := NewCheckpointLoader(store, nil)

	// the whole compiled-in mainnet table must load
	if !loader.InitDefaultCheckpoints(MAINNET) {
		t.Fatal("Failed to load compiled-in checkpoints")
	}
	if store.Count() != len(mainnetCheckpoints) {
		t.Fatalf("Expected %d checkpoints, found %d", len(mainnetCheckpoints), store.Count())
	}
	if store.MaxHeight() != LatestCheckpointHeight {
		t.Fatalf("Expected max height %d, found %d", LatestCheckpointHeight, store.MaxHeight())
	}
	if !store.IsInCheckpointZone(LatestCheckpointHeight) {
		t.Fatal("Expected the latest checkpoint height to be inside the zone")
	}
	if store.IsInCheckpointZone(LatestCheckpointHeight + 1) {
		t.Fatal("Expected heights past the latest checkpoint to be outside the zone")
	}

	// difficulty pins come along with the IDs
	var expect int
	for _, line := range mainnetCheckpoints {
		if len(line.difficulty) != 0 {
			expect++
		}
	}
	if len(store.DifficultyPoints()) != expect {
		t.Fatalf("Expected %d difficulty pins, found %d", expect, len(store.DifficultyPoints()))
	}

	// loading twice is idempotent
	if !loader.InitDefaultCheckpoints(MAINNET) {
		t.Fatal("Failed to re-load compiled-in checkpoints")
	}
	if store.Count() != len(mainnetCheckpoints) {
		t.Fatalf("Expected %d checkpoints, found %d", len(mainnetCheckpoints), store.Count())
	}

	// the test networks have no compiled-in pins
	for _, network := range []NetworkType{TESTNET, STAGENET} {
		store := NewCheckpointStore()
		if !NewCheckpointLoader(store, nil).InitDefaultCheckpoints(network) {
			t.Fatalf("Failed to load compiled-in checkpoints for %s", network)
		}
		if store.Count() != 0 {
			t.Fatalf("Expected no checkpoints for %s, found %d", network, store.Count())
		}
	}
}

func TestLoadCheckpointsFromFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := NewCheckpointStore()
	loader := NewCheckpointLoader(store, nil)

	// a missing file is fine
	if !loader.LoadCheckpointsFromFile(filepath.Join(dir, "missing.json")) {
		t.Fatal("Expected a missing file to load as a no-op")
	}
	if store.Count() != 0 {
		t.Fatalf("Expected no checkpoints, found %d", store.Count())
	}

	// a well-formed file loads fully
	path := filepath.Join(dir, "checkpoints.json")
	fileJson := `{"hashlines": [
		{"height": 100, "hash": "` + testHashA + `"},
		{"height": 200, "hash": "` + testHashB + `"}
	]}`
	if err := ioutil.WriteFile(path, []byte(fileJson), 0644); err != nil {
		t.Fatal(err)
	}
	if !loader.LoadCheckpointsFromFile(path) {
		t.Fatal("Failed to load checkpoints file")
	}
	if store.Count() != 2 {
		t.Fatalf("Expected 2 checkpoints, found %d", store.Count())
	}
	if store.MaxHeight() != 200 {
		t.Fatalf("Expected max height 200, found %d", store.MaxHeight())
	}

	// entries at or below the max height going in are skipped
	fileJson = `{"hashlines": [
		{"height": 150, "hash": "` + testHashC + `"},
		{"height": 300, "hash": "` + testHashD + `"}
	]}`
	if err := ioutil.WriteFile(path, []byte(fileJson), 0644); err != nil {
		t.Fatal(err)
	}
	if !loader.LoadCheckpointsFromFile(path) {
		t.Fatal("Failed to load checkpoints file")
	}
	if _, ok := store.Points()[150]; ok {
		t.Fatal("Expected the checkpoint below the max height to be skipped")
	}
	if _, ok := store.Points()[300]; !ok {
		t.Fatal("Expected the checkpoint above the max height to be added")
	}

	// a document that isn't JSON fails the load
	if err := ioutil.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if loader.LoadCheckpointsFromFile(path) {
		t.Fatal("Expected a malformed file to fail the load")
	}

	// an entry missing its hash fails the load
	if err := ioutil.WriteFile(path, []byte(`{"hashlines": [{"height": 400}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if loader.LoadCheckpointsFromFile(path) {
		t.Fatal("Expected an incomplete entry to fail the load")
	}

	// a negative height fails the load
	fileJson = `{"hashlines": [{"height": -1, "hash": "` + testHashA + `"}]}`
	if err := ioutil.WriteFile(path, []byte(fileJson), 0644); err != nil {
		t.Fatal(err)
	}
	if loader.LoadCheckpointsFromFile(path) {
		t.Fatal("Expected a negative height to fail the load")
	}

	// a bad hash fails the load but entries before it stick
	fileJson = `{"hashlines": [
		{"height": 400, "hash": "` + testHashC + `"},
		{"height": 500, "hash": "not a block id"}
	]}`
	if err := ioutil.WriteFile(path, []byte(fileJson), 0644); err != nil {
		t.Fatal(err)
	}
	if loader.LoadCheckpointsFromFile(path) {
		t.Fatal("Expected a bad hash to fail the load")
	}
	if _, ok := store.Points()[400]; !ok {
		t.Fatal("Expected entries before the bad hash to be applied")
	}
	if _, ok := store.Points()[500]; ok {
		t.Fatal("Expected the bad hash not to be pinned")
	}
}

func TestLoadCheckpointsFromDNS(t *testing.T) {
	store := NewCheckpointStore()
	resolver := &stubResolver{records: []string{
		"garbage",
		"100:" + testHashA,
		":",
		"banana:" + testHashB,
		"300:abcd",
		"200:" + testHashB,
	}}
	loader := NewCheckpointLoader(store, resolver)

	// well-formed records load, the rest are skipped individually
	if !loader.LoadCheckpointsFromDNS(MAINNET) {
		t.Fatal("Failed to load checkpoints from DNS")
	}
	if store.Count() != 2 {
		t.Fatalf("Expected 2 checkpoints, found %d", store.Count())
	}
	if _, ok := store.Points()[100]; !ok {
		t.Fatal("Expected the checkpoint at height 100 to be added")
	}
	if _, ok := store.Points()[200]; !ok {
		t.Fatal("Expected the checkpoint at height 200 to be added")
	}

	// records at or below the max height going in are skipped
	resolver.records = []string{"150:" + testHashC, "250:" + testHashD}
	if !loader.LoadCheckpointsFromDNS(MAINNET) {
		t.Fatal("Failed to load checkpoints from DNS")
	}
	if _, ok := store.Points()[150]; ok {
		t.Fatal("Expected the record below the max height to be skipped")
	}
	if _, ok := store.Points()[250]; !ok {
		t.Fatal("Expected the record above the max height to be added")
	}

	// a resolver failure is not fatal
	failing := NewCheckpointLoader(store, &stubResolver{err: errors.New("i/o timeout")})
	if !failing.LoadCheckpointsFromDNS(MAINNET) {
		t.Fatal("Expected a resolver failure to load as a no-op")
	}

	// a batch that conflicts with itself fails the load
	conflicted := NewCheckpointStore()
	conflictedLoader := NewCheckpointLoader(conflicted, &stubResolver{records: []string{
		"100:" + testHashA,
		"100:" + testHashB,
	}})
	if conflictedLoader.LoadCheckpointsFromDNS(MAINNET) {
		t.Fatal("Expected a self-conflicting batch to fail the load")
	}
}

func TestLoadNewCheckpoints(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// dns is still consulted when the file load fails
	path := filepath.Join(dir, "checkpoints.json")
	if err := ioutil.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	store := NewCheckpointStore()
	resolver := &stubResolver{records: []string{"100:" + testHashA}}
	loader := NewCheckpointLoader(store, resolver)
	if loader.LoadNewCheckpoints(path, MAINNET, true) {
		t.Fatal("Expected the malformed file to fail the refresh")
	}
	if resolver.queries != 1 {
		t.Fatalf("Expected 1 DNS query, found %d", resolver.queries)
	}
	if _, ok := store.Points()[100]; !ok {
		t.Fatal("Expected the DNS checkpoint to be added despite the file failure")
	}

	// dns is left alone when disabled
	store = NewCheckpointStore()
	resolver = &stubResolver{records: []string{"100:" + testHashA}}
	loader = NewCheckpointLoader(store, resolver)
	if !loader.LoadNewCheckpoints(filepath.Join(dir, "missing.json"), MAINNET, false) {
		t.Fatal("Failed to refresh checkpoints")
	}
	if resolver.queries != 0 {
		t.Fatalf("Expected no DNS queries, found %d", resolver.queries)
	}
	if store.Count() != 0 {
		t.Fatalf("Expected no checkpoints, found %d", store.Count())
	}
}
