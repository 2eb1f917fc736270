// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// CheckpointLoader populates a CheckpointStore from the three trusted
// sources: the compiled-in defaults, a local checkpoints file and DNS TXT
// records. Loads return false only when the store refused data or a present
// source was unreadable; the hosting program decides how hard to fail.
type CheckpointLoader struct {
	store    *CheckpointStore
	resolver TXTResolver
}

// NewCheckpointLoader returns a loader feeding the given store. resolver
// must be non-nil to use LoadCheckpointsFromDNS.
func NewCheckpointLoader(store *CheckpointStore, resolver TXTResolver) *CheckpointLoader {
	return &CheckpointLoader{store: store, resolver: resolver}
}

// InitDefaultCheckpoints adds the compiled-in checkpoints for the network.
// Only mainnet has any; the test networks load nothing and succeed.
func (l *CheckpointLoader) InitDefaultCheckpoints(network NetworkType) bool {
	if network != MAINNET {
		return true
	}
	for _, line := range mainnetCheckpoints {
		if !l.store.AddCheckpoint(line.height, line.hash, line.difficulty) {
			return false
		}
	}
	return true
}

// LoadCheckpointsFromFile adds checkpoints from the JSON file at path. A
// missing file is fine and changes nothing. A present but unreadable or
// malformed file returns false. Entries at or below the store's max height
// going in are skipped; dynamic sources only extend coverage forward.
func (l *CheckpointLoader) LoadCheckpointsFromFile(path string) bool {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Println("Checkpoints file not found")
		return true
	}

	lines, err := readCheckpointsFile(path)
	if err != nil {
		log.Printf("Error loading checkpoints from %s: %s\n", path, err)
		return false
	}

	maxHeight := l.store.MaxHeight()
	log.Printf("Adding checkpoints from %s, previous max checkpoint height %d\n", path, maxHeight)
	for _, line := range lines {
		if line.Height <= maxHeight {
			log.Printf("Ignoring checkpoint for height %d\n", line.Height)
			continue
		}
		log.Printf("Adding checkpoint for height %d, ID: %s\n", line.Height, line.Hash)
		if !l.store.AddCheckpoint(line.Height, line.Hash, "") {
			return false
		}
	}
	return true
}

// LoadCheckpointsFromDNS adds checkpoints published as TXT records under
// the network's checkpoint domain. Records that don't parse as
// "height:hash" are skipped individually. A resolver failure logs and
// returns true; DNS is best-effort and must never wedge startup.
func (l *CheckpointLoader) LoadCheckpointsFromDNS(network NetworkType) bool {
	records, err := l.resolver.LookupTXT(network.CheckpointDomain())
	if err != nil {
		log.Printf("Error querying DNS checkpoint records for %s: %s\n",
			network.CheckpointDomain(), err)
		return true
	}

	maxHeight := l.store.MaxHeight()
	for _, record := range records {
		pos := strings.Index(record, ":")
		if pos == -1 {
			continue
		}
		height, err := strconv.ParseUint(record[:pos], 10, 64)
		if err != nil {
			continue
		}
		hash := record[pos+1:]
		if _, err := NewBlockIDFromString(hash); err != nil {
			continue
		}
		if height <= maxHeight {
			log.Printf("Ignoring DNS checkpoint for height %d\n", height)
			continue
		}
		log.Printf("Adding DNS checkpoint for height %d, ID: %s\n", height, hash)
		if !l.store.AddCheckpoint(height, hash, "") {
			return false
		}
	}
	return true
}

// LoadNewCheckpoints refreshes the store from both dynamic sources. The
// file is always consulted, DNS when dnsEnabled. Both loads run regardless
// of each other's outcome and the result is the conjunction.
func (l *CheckpointLoader) LoadNewCheckpoints(path string, network NetworkType, dnsEnabled bool) bool {
	ok := l.LoadCheckpointsFromFile(path)
	if dnsEnabled {
		if !l.LoadCheckpointsFromDNS(network) {
			ok = false
		}
	}
	return ok
}
