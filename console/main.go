// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"github.com/logrusorgru/aurora"
	. "github.com/vireonet/vireo-checkpoints"
)

// This is an interactive console for inspecting checkpoint tables and preparing
// checkpoints files for publication. It operates on a private in-memory table
// seeded from the compiled-in defaults; nothing is written unless you export.
func main() {
	DefaultPeer := "127.0.0.1:" + strconv.Itoa(DEFAULT_FEED_PORT)
	networkPtr := flag.String("network", "mainnet", "Network whose checkpoints to work with: mainnet, testnet or stagenet")
	checkpointsPtr := flag.String("checkpoints", "", "Path to a checkpoints JSON file to load on startup")
	peerPtr := flag.String("peer", DefaultPeer, "Address of a checkpoint feed to fetch from")
	flag.Parse()

	network, err := ParseNetworkType(*networkPtr)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Starting up...")
	fmt.Printf("Checkpoint domain: %s\n", network.CheckpointDomain())

	// build the working table
	store := NewCheckpointStore()
	loader := NewCheckpointLoader(store, NewDNSResolver())
	if !loader.InitDefaultCheckpoints(network) {
		log.Fatal("Failed to load compiled-in checkpoints")
	}
	if len(*checkpointsPtr) != 0 {
		if !loader.LoadCheckpointsFromFile(*checkpointsPtr) {
			log.Fatalf("Failed to load checkpoints from %s", *checkpointsPtr)
		}
	}

	// setup prompt
	completer := func(d prompt.Document) []prompt.Suggest {
		s := []prompt.Suggest{
			{Text: "status", Description: "Show a summary of the working table"},
			{Text: "points", Description: "List all pinned block IDs by height"},
			{Text: "difficulty", Description: "List all pinned cumulative difficulties by height"},
			{Text: "check", Description: "Test a block ID against the pin at a height"},
			{Text: "zone", Description: "Test whether a height is inside the checkpoint zone"},
			{Text: "reorg", Description: "Test whether an alternative block would be allowed"},
			{Text: "add", Description: "Pin a block ID at a height"},
			{Text: "load", Description: "Load a checkpoints file into the working table"},
			{Text: "dns", Description: "Mirror checkpoints published over DNS into the working table"},
			{Text: "fetch", Description: "Fetch a feed's table and compare it against the working table"},
			{Text: "conflicts", Description: "Compare a checkpoints file against the working table"},
			{Text: "export", Description: "Save the working table to a checkpoints file"},
			{Text: "history", Description: "Show recently applied checkpoints from an audit db"},
			{Text: "quit", Description: "Quit this console session"},
		}
		return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
	}

	fmt.Println("Please select a command.")
	for {
		// run interactive prompt
		cmd := prompt.Input("> ", completer)
		switch cmd {
		case "status":
			fmt.Printf("        %s: %s\n", aurora.Bold("Network"), network)
			fmt.Printf("           %s: %d\n", aurora.Bold("Pins"), store.Count())
			fmt.Printf("     %s: %d\n", aurora.Bold("Max height"), store.MaxHeight())
			fmt.Printf("%s: %d\n", aurora.Bold("Difficulty pins"), len(store.DifficultyPoints()))

		case "points":
			points := store.Points()
			for _, height := range sortHeights(points) {
				fmt.Printf("%10d: %s\n", height, points[height])
			}

		case "difficulty":
			points := store.DifficultyPoints()
			if len(points) == 0 {
				fmt.Println("No difficulty pins in the working table")
				break
			}
			heights := make([]uint64, 0, len(points))
			for height := range points {
				heights = append(heights, height)
			}
			sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
			for _, height := range heights {
				fmt.Printf("%10d: %s\n", height, points[height])
			}

		case "check":
			reader := bufio.NewReader(os.Stdin)
			height, err := promptForHeight("  Height: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			text, err := promptForString("Block ID: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			id, err := NewBlockIDFromString(text)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			passed, isCheckpoint := store.CheckBlock(height, id)
			if !isCheckpoint {
				fmt.Printf("Height %d is not pinned, %s\n",
					height, aurora.Bold(aurora.Green("PASSED")))
			} else if passed {
				fmt.Printf("Block matches the pin at height %d, %s\n",
					height, aurora.Bold(aurora.Green("PASSED")))
			} else {
				fmt.Printf("Block does not match the pin at height %d, %s\n",
					height, aurora.Bold(aurora.Red("FAILED")))
			}

		case "zone":
			height, err := promptForHeight("Height: ", bufio.NewReader(os.Stdin))
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			if store.IsInCheckpointZone(height) {
				fmt.Printf("Height %d is inside the checkpoint zone, max height is %d\n",
					height, store.MaxHeight())
			} else {
				fmt.Printf("Height %d is past the checkpoint zone\n", height)
			}

		case "reorg":
			reader := bufio.NewReader(os.Stdin)
			chainHeight, err := promptForHeight("    Chain height: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			candidateHeight, err := promptForHeight("Candidate height: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			if store.IsAlternativeBlockAllowed(chainHeight, candidateHeight) {
				fmt.Printf("Alternative block would be %s\n",
					aurora.Bold(aurora.Green("ALLOWED")))
			} else {
				fmt.Printf("Alternative block would be %s\n",
					aurora.Bold(aurora.Red("REJECTED")))
			}

		case "add":
			reader := bufio.NewReader(os.Stdin)
			height, err := promptForHeight("    Height: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			id, err := promptForString("  Block ID: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			difficulty, err := promptForString("Difficulty: ", reader)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			if store.AddCheckpoint(height, id, difficulty) {
				fmt.Printf("Checkpoint added, %d pins total\n", store.Count())
			} else {
				fmt.Println(aurora.Bold(aurora.Red("Checkpoint rejected")))
			}

		case "load":
			path, err := promptForString("Path: ", bufio.NewReader(os.Stdin))
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			before := store.Points()
			if !loader.LoadCheckpointsFromFile(path) {
				fmt.Println(aurora.Bold(aurora.Red("Failed to load checkpoints file")))
				break
			}
			fmt.Printf("%d new checkpoints applied\n",
				len(DiffPoints(before, store.Points(), "file")))

		case "dns":
			before := store.Points()
			if !loader.LoadCheckpointsFromDNS(network) {
				fmt.Println(aurora.Bold(aurora.Red("One or more DNS records conflict with the working table")))
				break
			}
			fmt.Printf("%d new checkpoints applied from DNS\n",
				len(DiffPoints(before, store.Points(), "dns")))

		case "fetch":
			msg, err := FetchCheckpoints(*peerPtr, network)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			remote := NewCheckpointStore()
			for _, point := range msg.Checkpoints {
				if !remote.AddCheckpoint(point.Height, point.BlockID.String(), "") {
					fmt.Printf("Error: invalid checkpoint in feed response at height %d\n", point.Height)
				}
			}
			fmt.Printf("Fetched %d checkpoints, feed max height %d\n", remote.Count(), msg.MaxHeight)
			if !store.CheckForConflicts(remote) {
				fmt.Println(aurora.Bold(aurora.Red("CONFLICT: the feed disagrees with the working table")))
				break
			}
			news := DiffPoints(store.Points(), remote.Points(), "feed")
			fmt.Printf("No conflicts with the working table, %d feed pins are new\n", len(news))

		case "conflicts":
			path, err := promptForString("Path: ", bufio.NewReader(os.Stdin))
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			other := NewCheckpointStore()
			otherLoader := NewCheckpointLoader(other, nil)
			if !otherLoader.LoadCheckpointsFromFile(path) {
				fmt.Println(aurora.Bold(aurora.Red("Failed to load checkpoints file")))
				break
			}
			if !store.CheckForConflicts(other) {
				fmt.Println(aurora.Bold(aurora.Red("CONFLICT: the file disagrees with the working table")))
				break
			}
			fmt.Printf("No conflicts across %d pins in '%s'\n", other.Count(), path)

		case "export":
			path, err := promptForString("Path: ", bufio.NewReader(os.Stdin))
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			if err := ExportCheckpoints(store.Points(), path); err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			fmt.Printf("%d checkpoints saved to '%s'\n", store.Count(), aurora.Bold(path))

		case "history":
			path, err := promptForString("Audit db: ", bufio.NewReader(os.Stdin))
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			audit, err := NewAuditStorageDisk(path)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			records, err := audit.GetSince(20, 0)
			audit.Close()
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				break
			}
			if len(records) == 0 {
				fmt.Println("No checkpoints recorded")
				break
			}
			for _, record := range records {
				fmt.Printf("%10d: %s (%s, %s)\n", record.Height, record.BlockID,
					record.Source, time.Unix(record.When, 0).Format(time.RFC1123))
			}

		case "quit":
			return
		}

		fmt.Println("")
	}
}

func promptForHeight(prompt string, reader *bufio.Reader) (uint64, error) {
	fmt.Print(aurora.Bold(prompt))
	text, err := reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(text), 10, 64)
}

func promptForString(prompt string, reader *bufio.Reader) (string, error) {
	fmt.Print(aurora.Bold(prompt))
	text, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func sortHeights(points map[uint64]BlockID) []uint64 {
	heights := make([]uint64, 0, len(points))
	for height := range points {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights
}
