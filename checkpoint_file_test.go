// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestExportCheckpoints(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := NewCheckpointStore()
	if !store.AddCheckpoint(100, testHashA, "") {
		t.Fatal("Expected checkpoint to be accepted")
	}
	if !store.AddCheckpoint(300, testHashC, "") {
		t.Fatal("Expected checkpoint to be accepted")
	}
	if !store.AddCheckpoint(200, testHashB, "") {
		t.Fatal("Expected checkpoint to be accepted")
	}

	// write the table out and load it back
	path := filepath.Join(dir, "exported.json")
	if err := ExportCheckpoints(store.Points(), path); err != nil {
		t.Fatal(err)
	}
	reloaded := NewCheckpointStore()
	if !NewCheckpointLoader(reloaded, nil).LoadCheckpointsFromFile(path) {
		t.Fatal("Failed to load the exported file")
	}
	if reloaded.Count() != store.Count() {
		t.Fatalf("Expected %d checkpoints, found %d", store.Count(), reloaded.Count())
	}
	points, reloadedPoints := store.Points(), reloaded.Points()
	for height, id := range points {
		if reloadedPoints[height] != id {
			t.Fatalf("Checkpoint at height %d didn't survive the round trip", height)
		}
	}

	// entries are written in ascending height order
	fileBytes, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var file checkpointsFile
	if err := json.Unmarshal(fileBytes, &file); err != nil {
		t.Fatal(err)
	}
	if len(file.Hashlines) != 3 {
		t.Fatalf("Expected 3 hashlines, found %d", len(file.Hashlines))
	}
	for i := 1; i < len(file.Hashlines); i++ {
		if file.Hashlines[i-1].Height >= file.Hashlines[i].Height {
			t.Fatal("Expected hashlines in ascending height order")
		}
	}
}

func TestExportCheckpointsCompressed(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoints")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := NewCheckpointStore()
	if !store.AddCheckpoint(100, testHashA, "") {
		t.Fatal("Expected checkpoint to be accepted")
	}
	if !store.AddCheckpoint(200, testHashB, "") {
		t.Fatal("Expected checkpoint to be accepted")
	}

	// the .lz4 suffix compresses on write and decompresses on read
	path := filepath.Join(dir, "exported.json.lz4")
	if err := ExportCheckpoints(store.Points(), path); err != nil {
		t.Fatal(err)
	}
	fileBytes, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if json.Valid(fileBytes) {
		t.Fatal("Expected the file on disk to be compressed")
	}

	reloaded := NewCheckpointStore()
	if !NewCheckpointLoader(reloaded, nil).LoadCheckpointsFromFile(path) {
		t.Fatal("Failed to load the exported file")
	}
	if reloaded.Count() != 2 {
		t.Fatalf("Expected 2 checkpoints, found %d", reloaded.Count())
	}
	if reloaded.MaxHeight() != 200 {
		t.Fatalf("Expected max height 200, found %d", reloaded.MaxHeight())
	}
}
