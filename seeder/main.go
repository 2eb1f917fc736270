// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	. "github.com/vireonet/vireo-checkpoints"
)

// A checkpoint authority for the vireo network
func main() {
	rand.Seed(time.Now().UnixNano())

	// flags
	networkPtr := flag.String("network", "mainnet", "Network whose checkpoints to serve: mainnet, testnet or stagenet")
	dataDirPtr := flag.String("datadir", "", "Path to a directory to save checkpoint authority data")
	checkpointsPtr := flag.String("checkpoints", "", "Path to a checkpoints JSON file, defaults to checkpoints.json in -datadir")
	dnsPortPtr := flag.Int("dnsport", DEFAULT_DNS_PORT, "Port to answer checkpoint TXT queries on")
	feedPortPtr := flag.Int("feedport", DEFAULT_FEED_PORT, "Port to listen for incoming feed subscribers")
	noFeedPtr := flag.Bool("nofeed", false, "Disable the WebSocket checkpoint feed")
	dnsPtr := flag.Bool("dns", false, "Also mirror checkpoints published by the upstream DNS authority")
	refreshPtr := flag.Int("refresh", CHECKPOINT_UPDATE_INTERVAL, "Seconds between checkpoint refresh rounds")
	upnpPtr := flag.Bool("upnp", false, "Attempt to forward the feed port on your router with UPnP")
	ircPtr := flag.Bool("irc", false, "Announce applied checkpoints and conflicts over IRC")
	tlsCertPtr := flag.String("tlscert", "", "Path to a file containing a PEM-encoded X.509 certificate to use with TLS")
	tlsKeyPtr := flag.String("tlskey", "", "Path to a file containing a PEM-encoded EC key to use with TLS")
	flag.Parse()

	if len(*dataDirPtr) == 0 {
		log.Fatal("-datadir argument required")
	}
	if len(*tlsCertPtr) != 0 && len(*tlsKeyPtr) == 0 {
		log.Fatal("-tlskey argument missing")
	}
	if len(*tlsCertPtr) == 0 && len(*tlsKeyPtr) != 0 {
		log.Fatal("-tlscert argument missing")
	}

	network, err := ParseNetworkType(*networkPtr)
	if err != nil {
		log.Fatal(err)
	}

	checkpointsPath := *checkpointsPtr
	if len(checkpointsPath) == 0 {
		checkpointsPath = filepath.Join(*dataDirPtr, "checkpoints.json")
	}

	log.Println("Starting up...")
	log.Printf("Checkpoint domain: %s\n", network.CheckpointDomain())

	// build the startup table: compiled-in defaults, then the file, then
	// optionally records mirrored from the upstream DNS authority
	store := NewCheckpointStore()
	resolver := NewDNSResolver()
	loader := NewCheckpointLoader(store, resolver)

	var changes []CheckpointChange
	if !loader.InitDefaultCheckpoints(network) {
		log.Fatal("Failed to load compiled-in checkpoints")
	}
	changes = append(changes, DiffPoints(nil, store.Points(), "default")...)

	before := store.Points()
	if !loader.LoadCheckpointsFromFile(checkpointsPath) {
		log.Fatalf("Failed to load checkpoints from %s", checkpointsPath)
	}
	changes = append(changes, DiffPoints(before, store.Points(), "file")...)

	if *dnsPtr {
		before = store.Points()
		if !loader.LoadCheckpointsFromDNS(network) {
			log.Fatal("Checkpoints fetched from DNS conflict with the local table")
		}
		changes = append(changes, DiffPoints(before, store.Points(), "dns")...)
	}
	log.Printf("Checkpoint table has %d pins, max height %d\n", store.Count(), store.MaxHeight())

	// instantiate the audit trail
	audit, err := NewAuditStorageDisk(filepath.Join(*dataDirPtr, "audit.db"))
	if err != nil {
		log.Fatal(err)
	}
	for _, change := range changes {
		if _, err := audit.RecordCheckpoint(CheckpointRecord{
			Height:  change.Height,
			BlockID: change.BlockID,
			Source:  change.Source,
			When:    time.Now().Unix(),
		}); err != nil {
			log.Printf("Error recording checkpoint change: %s\n", err)
		}
	}

	// create and run the updater. the store belongs to it from here on
	updater := NewCheckpointUpdater(store, resolver, network, checkpointsPath,
		*dnsPtr, time.Duration(*refreshPtr)*time.Second, audit)
	updater.Run()

	// start the dns server
	seeder := NewCheckpointSeeder(updater, network, *dnsPortPtr)
	seeder.Run()

	// start the feed
	var feed *CheckpointFeed
	if !*noFeedPtr {
		feed = NewCheckpointFeed(updater, updater, network, *dataDirPtr,
			*tlsCertPtr, *tlsKeyPtr, *feedPortPtr)
		feed.Run()
	}

	// enable port forwarding (the feed must also be enabled)
	var myExternalIP string
	if *upnpPtr == true && *noFeedPtr == false {
		log.Printf("Enabling forwarding for port %d...\n", *feedPortPtr)
		var ok bool
		var err error
		if myExternalIP, ok, err = ForwardFeedPort(uint16(*feedPortPtr)); err != nil || !ok {
			log.Printf("Failed to enable forwarding: %s\n", err)
		} else {
			log.Println("Successfully enabled forwarding")
		}
	}

	if len(myExternalIP) == 0 {
		// operators point NS glue records here
		myExternalIP, err = DetermineExternalIP()
		if err != nil {
			log.Printf("Error determining external IP: %s\n", err)
		}
	}
	if len(myExternalIP) != 0 {
		log.Printf("External IP found: %s\n", myExternalIP)
	}

	// announce applied checkpoints and conflicts over irc
	var ircNotifier *IRCNotifier
	if *ircPtr {
		ircNotifier = NewIRCNotifier(updater)
		if err := ircNotifier.Connect(network); err != nil {
			log.Printf("Error connecting to IRC: %s\n", err)
			ircNotifier = nil
		} else {
			ircNotifier.Run()
		}
	}

	// shutdown on ctrl-c
	c := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(c, os.Interrupt)

	go func() {
		defer close(done)
		<-c

		log.Println("Shutting down...")

		if *upnpPtr == true && *noFeedPtr == false {
			// disable port forwarding
			log.Printf("Disabling forwarding for port %d...", *feedPortPtr)
			if ok, err := ClearFeedPort(uint16(*feedPortPtr)); err != nil || !ok {
				log.Printf("Failed to disable forwarding: %s", err)
			} else {
				log.Println("Successfully disabled forwarding")
			}
		}

		// shut everything down now
		if ircNotifier != nil {
			ircNotifier.Shutdown()
		}
		if feed != nil {
			feed.Shutdown()
		}
		seeder.Shutdown()
		updater.Shutdown()

		// close storage
		if err := audit.Close(); err != nil {
			log.Println(err)
		}
	}()

	log.Println("Seeder started")
	<-done
	log.Println("Exiting")
}
