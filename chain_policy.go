// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

// ChainPolicy is the read-only checkpoint view a node consults while
// validating blocks and weighing reorganizations. Both CheckpointStore and
// CheckpointUpdater satisfy it; embed whichever fits the caller's
// concurrency needs.
type ChainPolicy interface {
	// CheckBlock tests a block ID seen at a height against the pinned ID.
	CheckBlock(height uint64, id BlockID) (passed, isCheckpoint bool)

	// CheckBlockPassed is CheckBlock minus the pin indicator.
	CheckBlockPassed(height uint64, id BlockID) bool

	// IsInCheckpointZone returns true if the height is covered by a pin.
	IsInCheckpointZone(height uint64) bool

	// IsAlternativeBlockAllowed decides whether an alternative block at
	// candidateHeight is acceptable to a chain currently at chainHeight.
	IsAlternativeBlockAllowed(chainHeight, candidateHeight uint64) bool

	// MaxHeight returns the highest pinned height.
	MaxHeight() uint64
}

// CheckpointSource provides snapshots of the current checkpoint table for
// distribution by the seeder and the feed.
type CheckpointSource interface {
	// Points returns a copy of the pinned height to block ID table.
	Points() map[uint64]BlockID

	// MaxHeight returns the highest pinned height.
	MaxHeight() uint64
}
