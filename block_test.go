// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"encoding/json"
	"testing"
)

func TestBlockHeaderTestVector(t *testing.T) {
	// build the header for the test vector
	previous, err := NewBlockIDFromString("000000000017d6bd45be51cbd0f1420d9c2ed4ef4fa3d04e5e376e7157aa44b1")
	if err != nil {
		t.Fatal(err)
	}
	hashListRoot, err := NewBlockIDFromString("7afb89705316b3de79a3882ec3732b6b8796dd4bf2a80240549ae8fd49a517d8")
	if err != nil {
		t.Fatal(err)
	}
	target, err := NewBlockIDFromString("00000000007188dfb2e59ebdb1d8675a9dcfd8406d16558f8d98f186c1e45d94")
	if err != nil {
		t.Fatal(err)
	}
	chainWork, err := NewBlockIDFromString("0000000000000000000000000000000000000000000000000000351004881227")
	if err != nil {
		t.Fatal(err)
	}
	header := BlockHeader{
		Previous:         previous,
		HashListRoot:     hashListRoot,
		Time:             1585958400,
		Target:           target,
		ChainWork:        chainWork,
		Nonce:            1785410332897383,
		Height:           216000,
		TransactionCount: 1,
	}

	// check JSON matches test vector
	headerJson, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}
	if string(headerJson) != `{"previous":"000000000017d6bd45be51cbd0f1420d9c2ed4ef4fa3d04e5e376e7157aa44b1",`+
		`"hash_list_root":"7afb89705316b3de79a3882ec3732b6b8796dd4bf2a80240549ae8fd49a517d8","time":1585958400,`+
		`"target":"00000000007188dfb2e59ebdb1d8675a9dcfd8406d16558f8d98f186c1e45d94",`+
		`"chain_work":"0000000000000000000000000000000000000000000000000000351004881227",`+
		`"nonce":1785410332897383,"height":216000,"transaction_count":1}` {
		t.Fatal("JSON differs from test vector: " + string(headerJson))
	}

	// check ID matches test vector
	id, err := header.ID()
	if err != nil {
		t.Fatal(err)
	}
	if id.String() != "368af3485453989e72e59cf92b19af45856ffdadff49808a01e6869242c2f8fe" {
		t.Fatalf("ID %s differs from test vector", id)
	}

	// the ID is stable
	id2, err := header.ID()
	if err != nil {
		t.Fatal(err)
	}
	if id != id2 {
		t.Fatal("Expected the header ID to be deterministic")
	}

	// and sensitive to every field
	header.Nonce++
	id3, err := header.ID()
	if err != nil {
		t.Fatal(err)
	}
	if id == id3 {
		t.Fatal("Expected a different nonce to change the ID")
	}

	// the header round trips through its serialization
	var decoded BlockHeader
	if err := json.Unmarshal(headerJson, &decoded); err != nil {
		t.Fatal(err)
	}
	decodedID, err := decoded.ID()
	if err != nil {
		t.Fatal(err)
	}
	if decodedID != id {
		t.Fatal("Expected the decoded header to carry the same ID")
	}
}

func TestNewBlockIDFromString(t *testing.T) {
	// a valid ID round trips
	id, err := NewBlockIDFromString(testHashA)
	if err != nil {
		t.Fatal(err)
	}
	if id.String() != testHashA {
		t.Fatalf("ID %s differs from its source string", id)
	}

	// anything that isn't 64 hex characters is rejected
	if _, err := NewBlockIDFromString(testHashA[:63]); err == nil {
		t.Fatal("Expected a short string to be rejected")
	}
	if _, err := NewBlockIDFromString(testHashA + "0"); err == nil {
		t.Fatal("Expected a long string to be rejected")
	}
	if _, err := NewBlockIDFromString("zz" + testHashA[2:]); err == nil {
		t.Fatal("Expected a non-hex string to be rejected")
	}
}

func TestBlockIDJson(t *testing.T) {
	id := mustBlockID(t, testHashA)

	idJson, err := json.Marshal(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(idJson) != `"`+testHashA+`"` {
		t.Fatalf("Unexpected JSON: %s", idJson)
	}

	var decoded BlockID
	if err := json.Unmarshal(idJson, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != id {
		t.Fatal("ID didn't survive the round trip")
	}

	if err := json.Unmarshal([]byte(`"abcd"`), &decoded); err == nil {
		t.Fatal("Expected a short ID to be rejected")
	}
}
