// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

// CheckpointRecord describes one checkpoint applied by this authority and
// when it was applied.
type CheckpointRecord struct {
	Height  uint64  `json:"height"`
	BlockID BlockID `json:"block_id"`
	Source  string  `json:"source"` // which trusted source delivered it
	When    int64   `json:"when"`   // unix time the pin was applied here
}

// AuditStorage is an interface for persisting the checkpoints this
// authority has applied, so operators can answer "when did we start
// pinning that?"
type AuditStorage interface {
	// RecordCheckpoint stores a record of an applied checkpoint. Returns true
	// if it was newly recorded; re-recording an unchanged pin is a no-op.
	RecordCheckpoint(record CheckpointRecord) (bool, error)

	// GetByHeight returns the most recent record for a height, or nil if the
	// height was never recorded.
	GetByHeight(height uint64) (*CheckpointRecord, error)

	// GetSince returns up to count records applied at or after "when", newest
	// first.
	GetSince(count int, when int64) ([]CheckpointRecord, error)

	// Close is called to close any underlying storage.
	Close() error
}
