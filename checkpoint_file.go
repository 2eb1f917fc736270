// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pierrec/lz4"
)

// A single entry in a checkpoints file.
type hashLine struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// The document layout written by ExportCheckpoints.
type checkpointsFile struct {
	Hashlines []hashLine `json:"hashlines"`
}

// Read and parse a checkpoints file. Files ending in .lz4 are decompressed
// first.
func readCheckpointsFile(path string) ([]hashLine, error) {
	fileBytes, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".lz4") {
		// uncompress
		zin := bytes.NewBuffer(fileBytes)
		out := new(bytes.Buffer)
		zr := lz4.NewReader(zin)
		if _, err := io.Copy(out, zr); err != nil {
			return nil, err
		}
		fileBytes = out.Bytes()
	}

	return parseHashlines(fileBytes)
}

// Parse a hashlines document: {"hashlines": [{"height": H, "hash": "..."}, ...]}
// Any entry missing either field makes the whole document invalid.
func parseHashlines(fileJson []byte) ([]hashLine, error) {
	var lines []hashLine
	var cbErr error
	_, err := jsonparser.ArrayEach(fileJson, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if cbErr != nil {
			return
		}
		if err != nil {
			cbErr = err
			return
		}
		height, err := jsonparser.GetInt(value, "height")
		if err != nil {
			cbErr = err
			return
		}
		if height < 0 {
			cbErr = fmt.Errorf("Invalid checkpoint height %d", height)
			return
		}
		hash, err := jsonparser.GetString(value, "hash")
		if err != nil {
			cbErr = err
			return
		}
		lines = append(lines, hashLine{Height: uint64(height), Hash: hash})
	}, "hashlines")
	if err != nil {
		return nil, err
	}
	if cbErr != nil {
		return nil, cbErr
	}
	return lines, nil
}

// ExportCheckpoints writes the given checkpoint table to path in the same
// hashlines format the loader reads. Paths ending in .lz4 are compressed.
func ExportCheckpoints(points map[uint64]BlockID, path string) error {
	file := checkpointsFile{Hashlines: make([]hashLine, 0, len(points))}
	for _, height := range sortedHeights(points) {
		file.Hashlines = append(file.Hashlines, hashLine{Height: height, Hash: points[height].String()})
	}

	fileBytes, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".lz4") {
		// compress with lz4
		in := bytes.NewReader(fileBytes)
		zout := new(bytes.Buffer)
		zw := lz4.NewWriter(zout)
		if _, err := io.Copy(zw, in); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		fileBytes = zout.Bytes()
	}

	// write and sync
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	n, err := f.Write(fileBytes)
	if err != nil {
		return err
	}
	if err == nil && n < len(fileBytes) {
		return io.ErrShortWrite
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return f.Close()
}
