// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// BlockID is a block's unique identifier.
type BlockID [32]byte // SHA3-256 hash

// BlockHeader contains the data the client hashes to determine a block's ID.
// The authority never validates blocks itself; the type exists so operators
// can derive the ID of a header dumped from a trusted node when pinning it.
// Field order and names must match the client's serialization exactly.
type BlockHeader struct {
	Previous         BlockID `json:"previous"`
	HashListRoot     BlockID `json:"hash_list_root"`
	Time             int64   `json:"time"`
	Target           BlockID `json:"target"`
	ChainWork        BlockID `json:"chain_work"` // total cumulative chain work
	Nonce            int64   `json:"nonce"`
	Height           uint64  `json:"height"`
	TransactionCount int32   `json:"transaction_count"`
}

// ID computes an ID for a given block header.
func (header BlockHeader) ID() (BlockID, error) {
	headerJson, err := json.Marshal(header)
	if err != nil {
		return BlockID{}, err
	}
	return sha3.Sum256([]byte(headerJson)), nil
}

// NewBlockIDFromString decodes a 64 character hex string into a BlockID.
func NewBlockIDFromString(idStr string) (BlockID, error) {
	var id BlockID
	if len(idStr) != 64 {
		return id, fmt.Errorf("Invalid block ID: %s", idStr)
	}
	idBytes, err := hex.DecodeString(idStr)
	if err != nil {
		return id, err
	}
	copy(id[:], idBytes)
	return id, nil
}

// String implements the Stringer interface
func (id BlockID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON marshals BlockID as a hex string.
func (id BlockID) MarshalJSON() ([]byte, error) {
	s := "\"" + id.String() + "\""
	return []byte(s), nil
}

// UnmarshalJSON unmarshals BlockID hex string to BlockID.
func (id *BlockID) UnmarshalJSON(b []byte) error {
	if len(b) != 64+2 {
		return fmt.Errorf("Invalid block ID")
	}
	idBytes, err := hex.DecodeString(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	copy(id[:], idBytes)
	return nil
}
