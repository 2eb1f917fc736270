// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"log"
	"math/big"
	"sort"
)

// CheckpointStore holds the trusted height to block ID pins for a network,
// along with optional cumulative difficulty pins. A block that disagrees
// with a pinned ID is rejected no matter how much work its chain carries.
// The store does no locking of its own; see CheckpointUpdater for shared use.
type CheckpointStore struct {
	points           map[uint64]BlockID
	difficultyPoints map[uint64]*big.Int
	heights          []uint64 // pinned heights in ascending order
}

// NewCheckpointStore returns a new empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		points:           make(map[uint64]BlockID),
		difficultyPoints: make(map[uint64]*big.Int),
	}
}

// AddCheckpoint pins hashHex as the only acceptable block ID at the given
// height. difficultyStr optionally pins the cumulative difficulty expected
// at that height; pass "" to pin the ID alone. Returns false, changing
// nothing, if either value fails to parse or disagrees with an existing pin.
func (c *CheckpointStore) AddCheckpoint(height uint64, hashHex, difficultyStr string) bool {
	id, err := NewBlockIDFromString(hashHex)
	if err != nil {
		log.Printf("Failed to parse checkpoint ID %s: %s\n", hashHex, err)
		return false
	}

	var difficulty *big.Int
	if len(difficultyStr) != 0 {
		var ok bool
		difficulty, ok = new(big.Int).SetString(difficultyStr, 10)
		if !ok || difficulty.Sign() < 0 {
			log.Printf("Failed to parse checkpoint difficulty %s\n", difficultyStr)
			return false
		}
	}

	// validate both values before committing either
	if existing, ok := c.points[height]; ok && existing != id {
		log.Printf("Conflicting checkpoint for height %d, have %s, refusing %s\n",
			height, existing, id)
		return false
	}
	if difficulty != nil {
		if existing, ok := c.difficultyPoints[height]; ok && existing.Cmp(difficulty) != 0 {
			log.Printf("Conflicting difficulty checkpoint for height %d, have %s, refusing %s\n",
				height, existing, difficulty)
			return false
		}
	}

	if _, ok := c.points[height]; !ok {
		i := sort.Search(len(c.heights), func(i int) bool { return c.heights[i] >= height })
		c.heights = append(c.heights, 0)
		copy(c.heights[i+1:], c.heights[i:])
		c.heights[i] = height
	}
	c.points[height] = id
	if difficulty != nil {
		c.difficultyPoints[height] = difficulty
	}
	return true
}

// CheckBlock tests the block ID seen at the given height against the pinned
// ID. passed is true when the height isn't pinned or the ID matches.
// isCheckpoint reports whether the height is pinned at all.
func (c *CheckpointStore) CheckBlock(height uint64, id BlockID) (passed, isCheckpoint bool) {
	pointID, ok := c.points[height]
	if !ok {
		return true, false
	}
	if pointID == id {
		log.Printf("Checkpoint passed for height %d %s\n", height, id)
		return true, true
	}
	log.Printf("Checkpoint failed for height %d, expected %s, fetched %s\n", height, pointID, id)
	return false, true
}

// CheckBlockPassed is CheckBlock for callers that don't care whether the
// height was actually pinned.
func (c *CheckpointStore) CheckBlockPassed(height uint64, id BlockID) bool {
	passed, _ := c.CheckBlock(height, id)
	return passed
}

// IsInCheckpointZone returns true if the given height is at or below the
// highest pinned height.
func (c *CheckpointStore) IsInCheckpointZone(height uint64) bool {
	return len(c.heights) != 0 && height <= c.heights[len(c.heights)-1]
}

// IsAlternativeBlockAllowed decides whether a node whose main chain is at
// chainHeight may accept an alternative block at candidateHeight. The block
// is allowed only if it builds past the highest checkpoint the main chain
// has already reached; reorganizing beneath that point is never acceptable.
func (c *CheckpointStore) IsAlternativeBlockAllowed(chainHeight, candidateHeight uint64) bool {
	if candidateHeight == 0 {
		// genesis is never replaceable
		return false
	}

	// find the highest pinned height the main chain has reached
	i := sort.Search(len(c.heights), func(i int) bool { return c.heights[i] > chainHeight })
	if i == 0 {
		return true
	}
	return candidateHeight > c.heights[i-1]
}

// MaxHeight returns the highest pinned height, or 0 for an empty store.
func (c *CheckpointStore) MaxHeight() uint64 {
	if len(c.heights) == 0 {
		return 0
	}
	return c.heights[len(c.heights)-1]
}

// Count returns the number of pinned heights.
func (c *CheckpointStore) Count() int {
	return len(c.heights)
}

// Points returns a copy of the pinned height to block ID table.
func (c *CheckpointStore) Points() map[uint64]BlockID {
	points := make(map[uint64]BlockID, len(c.points))
	for height, id := range c.points {
		points[height] = id
	}
	return points
}

// DifficultyPoints returns a copy of the pinned height to cumulative
// difficulty table.
func (c *CheckpointStore) DifficultyPoints() map[uint64]*big.Int {
	points := make(map[uint64]*big.Int, len(c.difficultyPoints))
	for height, difficulty := range c.difficultyPoints {
		points[height] = new(big.Int).Set(difficulty)
	}
	return points
}

// CheckForConflicts returns false if any height pinned by both stores
// carries a different block ID. Heights known to only one store are not
// conflicts. Difficulty pins are not compared.
func (c *CheckpointStore) CheckForConflicts(other *CheckpointStore) bool {
	for height, id := range other.points {
		if pointID, ok := c.points[height]; ok && pointID != id {
			log.Printf("Conflicting checkpoint for height %d, have %s, fetched %s\n",
				height, pointID, id)
			return false
		}
	}
	return true
}

// Sorted ascending heights of a point snapshot
func sortedHeights(points map[uint64]BlockID) []uint64 {
	heights := make([]uint64, 0, len(points))
	for height := range points {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights
}
