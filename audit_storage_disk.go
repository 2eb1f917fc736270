// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// AuditStorageDisk is an on-disk implementation of the AuditStorage
// interface using LevelDB.
type AuditStorageDisk struct {
	db *leveldb.DB
}

// NewAuditStorageDisk returns a new AuditStorageDisk instance.
func NewAuditStorageDisk(dbPath string) (*AuditStorageDisk, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, err
	}
	return &AuditStorageDisk{db: db}, nil
}

// RecordCheckpoint stores a record of an applied checkpoint. An unchanged
// pin is not re-recorded, so restarts don't flood the trail.
func (a *AuditStorageDisk) RecordCheckpoint(record CheckpointRecord) (bool, error) {
	existing, err := a.GetByHeight(record.Height)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.BlockID == record.BlockID {
		// keep the original application time
		return false, nil
	}

	encoded, err := encodeCheckpointRecord(record)
	if err != nil {
		return false, err
	}

	recordKey, err := computeRecordKey(record.Height)
	if err != nil {
		return false, err
	}
	timeKey, err := computeRecordTimeKey(record.When, record.Height)
	if err != nil {
		return false, err
	}

	batch := new(leveldb.Batch)
	batch.Put(recordKey, encoded)
	batch.Put(timeKey, encoded)
	return true, a.db.Write(batch, nil)
}

// GetByHeight returns the most recent record for a height.
func (a *AuditStorageDisk) GetByHeight(height uint64) (*CheckpointRecord, error) {
	key, err := computeRecordKey(height)
	if err != nil {
		return nil, err
	}

	encoded, err := a.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	record := new(CheckpointRecord)
	if err := decodeCheckpointRecord(encoded, record); err != nil {
		return nil, err
	}
	return record, nil
}

// GetSince returns up to count records applied at or after "when", newest first.
func (a *AuditStorageDisk) GetSince(count int, when int64) ([]CheckpointRecord, error) {
	startKey, err := computeRecordTimeKey(when, 0)
	if err != nil {
		return nil, err
	}

	// +1 so records applied this second are included
	endKey, err := computeRecordTimeKey(time.Now().Unix()+1, 0)
	if err != nil {
		return nil, err
	}

	snapshot, err := a.db.GetSnapshot()
	defer snapshot.Release()
	if err != nil {
		return nil, err
	}

	var records []CheckpointRecord

	iter := snapshot.NewIterator(&util.Range{Start: startKey, Limit: endKey}, nil)
	for ok := iter.Last(); ok; ok = iter.Prev() {
		record := new(CheckpointRecord)
		if err := decodeCheckpointRecord(iter.Value(), record); err != nil {
			iter.Release()
			return nil, err
		}
		records = append(records, *record)
		if len(records) == count {
			break
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, err
	}

	return records, nil
}

// Close is called to close any underlying storage.
func (a *AuditStorageDisk) Close() error {
	return a.db.Close()
}

// leveldb schema

// c{height}       -> serialized CheckpointRecord
// t{time}{height} -> serialized CheckpointRecord (time is of application)

const recordPrefix = 'c'

const recordTimePrefix = 't'

func computeRecordKey(height uint64) ([]byte, error) {
	key := new(bytes.Buffer)
	if err := key.WriteByte(recordPrefix); err != nil {
		return nil, err
	}
	if err := binary.Write(key, binary.BigEndian, height); err != nil {
		return nil, err
	}
	return key.Bytes(), nil
}

func computeRecordTimeKey(when int64, height uint64) ([]byte, error) {
	key := new(bytes.Buffer)
	if err := key.WriteByte(recordTimePrefix); err != nil {
		return nil, err
	}
	if err := binary.Write(key, binary.BigEndian, when); err != nil {
		return nil, err
	}
	if err := binary.Write(key, binary.BigEndian, height); err != nil {
		return nil, err
	}
	return key.Bytes(), nil
}

func encodeCheckpointRecord(record CheckpointRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCheckpointRecord(encoded []byte, record *CheckpointRecord) error {
	buf := bytes.NewBuffer(encoded)
	enc := gob.NewDecoder(buf)
	return enc.Decode(record)
}
