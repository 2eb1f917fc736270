// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"io"
	"log"
	"sync"

	irc "github.com/thoj/go-ircevent"
)

const Server = "irc.freenode.net:7000"

// IRCNotifier announces applied checkpoints and DNS conflicts to an IRC
// channel. It primarily exists as a backup alert path alongside the feed.
type IRCNotifier struct {
	conn         *irc.Connection
	channel      string
	updater      *CheckpointUpdater
	changeChan   chan CheckpointChange
	conflictChan chan CheckpointConflict
	shutdownChan chan struct{}
	wg           sync.WaitGroup
}

// NewIRCNotifier returns a new notifier announcing the given updater's activity.
func NewIRCNotifier(updater *CheckpointUpdater) *IRCNotifier {
	return &IRCNotifier{
		updater:      updater,
		changeChan:   make(chan CheckpointChange, 10),
		conflictChan: make(chan CheckpointConflict, 10),
		shutdownChan: make(chan struct{}),
	}
}

// Connect connects the notifier to the IRC network and joins the network's
// checkpoint channel.
func (i *IRCNotifier) Connect(network NetworkType) error {
	nick, err := generateRandomNick()
	if err != nil {
		return err
	}

	i.channel = channelForNetwork(network)
	i.conn = irc.IRC(nick, nick)
	i.conn.UseTLS = true
	i.conn.TLSConfig = &tls.Config{InsecureSkipVerify: true}

	i.conn.AddCallback("001", func(e *irc.Event) {
		log.Printf("Joining channel %s\n", i.channel)
		i.conn.Join(i.channel)
	})
	i.conn.AddCallback("366", func(e *irc.Event) {
		log.Printf("Joined channel %s\n", i.channel)
	})

	return i.conn.Connect(Server)
}

// Run executes the IRCNotifier's main loop in its own goroutine.
// The updater must already be running.
func (i *IRCNotifier) Run() {
	i.updater.RegisterForChanges(i.changeChan)
	i.updater.RegisterForConflicts(i.conflictChan)

	i.wg.Add(2)
	go func() {
		defer i.wg.Done()
		i.conn.Loop()
	}()
	go i.run()
}

func (i *IRCNotifier) run() {
	defer i.wg.Done()

	for {
		select {
		case change := <-i.changeChan:
			i.conn.Privmsgf(i.channel, "checkpoint applied: height %d ID %s source %s",
				change.Height, change.BlockID, change.Source)

		case conflict := <-i.conflictChan:
			i.conn.Privmsgf(i.channel, "CHECKPOINT CONFLICT at height %d: have %s, DNS says %s",
				conflict.Height, conflict.Have, conflict.Fetched)

		case _, ok := <-i.shutdownChan:
			if !ok {
				log.Println("IRC notifier shutting down...")
				return
			}
		}
	}
}

// Shutdown stops the notifier synchronously.
func (i *IRCNotifier) Shutdown() {
	i.updater.UnregisterForChanges(i.changeChan)
	i.updater.UnregisterForConflicts(i.conflictChan)
	close(i.shutdownChan)
	i.conn.Quit()
	i.wg.Wait()
	log.Println("IRC notifier shutdown")
}

func generateRandomNick() (string, error) {
	nickBytes := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, nickBytes); err != nil {
		return "", err
	}
	return "vc" + hex.EncodeToString(nickBytes)[2:], nil
}

func channelForNetwork(network NetworkType) string {
	if network == MAINNET {
		return "#vireo-checkpoints"
	}
	return "#vireo-checkpoints-" + network.String()
}
