// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"sort"
	"strings"

	"github.com/logrusorgru/aurora"
	. "github.com/vireonet/vireo-checkpoints"
)

// A small tool to inspect checkpoint tables and audit trails offline
func main() {
	var commands = []string{
		"show", "max", "verify", "zone", "reorg", "conflicts", "export", "history", "pin",
	}

	networkPtr := flag.String("network", "mainnet", "Network whose compiled-in checkpoints to start from")
	checkpointsPtr := flag.String("checkpoints", "", "Path to a checkpoints JSON file to load over the compiled-in table")
	auditDbPtr := flag.String("auditdb", "", "Path to a checkpoint audit database")
	cmdPtr := flag.String("command", "show", "Commands: "+strings.Join(commands, ", "))
	heightPtr := flag.Uint64("height", 0, "Block height")
	blockIDPtr := flag.String("block_id", "", "Block ID")
	chainHeightPtr := flag.Uint64("chain_height", 0, "Main chain height (for use with \"reorg\")")
	file2Ptr := flag.String("file2", "", "Path to a second checkpoints JSON file (for use with \"conflicts\")")
	outPtr := flag.String("out", "", "Path to write a checkpoints JSON file to (for use with \"export\")")
	headerPtr := flag.String("header", "", "Path to a JSON block header (for use with \"pin\")")
	limitPtr := flag.Int("limit", 10, "Limit (for use with \"history\")")
	sincePtr := flag.Int64("since", 0, "Unix time lower bound (for use with \"history\")")
	flag.Parse()

	network, err := ParseNetworkType(*networkPtr)
	if err != nil {
		log.Fatal(err)
	}

	var blockID *BlockID
	if len(*blockIDPtr) != 0 {
		id, err := NewBlockIDFromString(*blockIDPtr)
		if err != nil {
			log.Fatal(err)
		}
		blockID = &id
	}

	store := loadStore(network, *checkpointsPtr)

	switch *cmdPtr {
	case "show":
		displayPoints(network, store)

	case "max":
		log.Printf("Max checkpoint height is: %d\n", aurora.Bold(store.MaxHeight()))

	case "verify":
		if blockID == nil {
			log.Fatal("-block_id required for \"verify\" command")
		}
		passed, isCheckpoint := store.CheckBlock(*heightPtr, *blockID)
		if !isCheckpoint {
			log.Printf("%s: Height %d is not pinned\n",
				aurora.Bold(aurora.Green("PASSED")), *heightPtr)
		} else if passed {
			log.Printf("%s: Block matches the pin at height %d\n",
				aurora.Bold(aurora.Green("PASSED")), *heightPtr)
		} else {
			log.Fatalf("%s: Block does not match the pin at height %d\n",
				aurora.Bold(aurora.Red("FAILED")), *heightPtr)
		}

	case "zone":
		if store.IsInCheckpointZone(*heightPtr) {
			log.Printf("Height %d is inside the checkpoint zone, max height is %d\n",
				*heightPtr, store.MaxHeight())
		} else {
			log.Printf("Height %d is past the checkpoint zone\n", *heightPtr)
		}

	case "reorg":
		if store.IsAlternativeBlockAllowed(*chainHeightPtr, *heightPtr) {
			log.Printf("%s: An alternative block at height %d may replace the chain at height %d\n",
				aurora.Bold(aurora.Green("ALLOWED")), *heightPtr, *chainHeightPtr)
		} else {
			log.Printf("%s: An alternative block at height %d may not replace the chain at height %d\n",
				aurora.Bold(aurora.Red("REJECTED")), *heightPtr, *chainHeightPtr)
		}

	case "conflicts":
		if len(*file2Ptr) == 0 {
			log.Fatal("-file2 required for \"conflicts\" command")
		}
		other := NewCheckpointStore()
		otherLoader := NewCheckpointLoader(other, nil)
		if !otherLoader.LoadCheckpointsFromFile(*file2Ptr) {
			log.Fatalf("Failed to load checkpoints from %s\n", *file2Ptr)
		}
		if !store.CheckForConflicts(other) {
			log.Fatalf("%s: The tables pin different block IDs\n",
				aurora.Bold(aurora.Red("CONFLICT")))
		}
		log.Printf("%s: The tables agree on every shared height\n",
			aurora.Bold(aurora.Green("OK")))

	case "export":
		if len(*outPtr) == 0 {
			log.Fatal("-out required for \"export\" command")
		}
		if err := ExportCheckpoints(store.Points(), *outPtr); err != nil {
			log.Fatal(err)
		}
		log.Printf("%d checkpoints saved to %s\n", store.Count(), *outPtr)

	case "history":
		if len(*auditDbPtr) == 0 {
			log.Fatal("-auditdb required for \"history\" command")
		}
		audit, err := NewAuditStorageDisk(*auditDbPtr)
		if err != nil {
			log.Fatal(err)
		}
		if *heightPtr != 0 {
			record, err := audit.GetByHeight(*heightPtr)
			if err != nil {
				audit.Close()
				log.Fatal(err)
			}
			if record == nil {
				audit.Close()
				log.Fatalf("No record found for height %d\n", *heightPtr)
			}
			displayRecords([]CheckpointRecord{*record})
		} else {
			records, err := audit.GetSince(*limitPtr, *sincePtr)
			if err != nil {
				audit.Close()
				log.Fatal(err)
			}
			displayRecords(records)
		}
		if err := audit.Close(); err != nil {
			log.Println(err)
		}

	case "pin":
		if len(*headerPtr) == 0 {
			log.Fatal("-header required for \"pin\" command")
		}
		headerJson, err := ioutil.ReadFile(*headerPtr)
		if err != nil {
			log.Fatal(err)
		}
		var header BlockHeader
		if err := json.Unmarshal(headerJson, &header); err != nil {
			log.Fatal(err)
		}
		id, err := header.ID()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("{\"height\": %d, \"hash\": \"%s\"}\n", header.Height, id)
	}
}

// Build the table every command starts from: the compiled-in pins plus an
// optional checkpoints file layered over them.
func loadStore(network NetworkType, path string) *CheckpointStore {
	store := NewCheckpointStore()
	loader := NewCheckpointLoader(store, nil)
	if !loader.InitDefaultCheckpoints(network) {
		log.Fatal("Failed to load compiled-in checkpoints")
	}
	if len(path) != 0 {
		if !loader.LoadCheckpointsFromFile(path) {
			log.Fatalf("Failed to load checkpoints from %s\n", path)
		}
	}
	return store
}

type checkpointTable struct {
	Network     string              `json:"network"`
	MaxHeight   uint64              `json:"max_height"`
	Checkpoints []CheckpointMessage `json:"checkpoints"`
}

func displayPoints(network NetworkType, store *CheckpointStore) {
	points := store.Points()
	heights := make([]uint64, 0, len(points))
	for height := range points {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	t := checkpointTable{
		Network:     network.String(),
		MaxHeight:   store.MaxHeight(),
		Checkpoints: make([]CheckpointMessage, len(heights)),
	}
	for i, height := range heights {
		t.Checkpoints[i] = CheckpointMessage{Height: height, BlockID: points[height]}
	}

	tJson, err := json.MarshalIndent(&t, "", "    ")
	if err != nil {
		panic(err)
	}

	fmt.Println(string(tJson))
}

type auditHistory struct {
	Records []CheckpointRecord `json:"records"`
}

func displayRecords(records []CheckpointRecord) {
	h := auditHistory{Records: records}

	hJson, err := json.MarshalIndent(&h, "", "    ")
	if err != nil {
		panic(err)
	}

	fmt.Println(string(hJson))
}
