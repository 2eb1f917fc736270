// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/GeertJohan/go.rice"
	"github.com/gorilla/websocket"
)

// FeedProtocol is the name of this version of the vireo checkpoint feed protocol.
const FeedProtocol = "vireo-checkpoint.1"

// Message is a message frame for all messages in the vireo-checkpoint.1 protocol.
type Message struct {
	Type string      `json:"type"`
	Body interface{} `json:"body,omitempty"`
}

// CheckpointsMessage is used to send a subscriber the complete current
// checkpoint table. Sent in response to the empty "get_checkpoints" message.
// Type: "checkpoints".
type CheckpointsMessage struct {
	MaxHeight   uint64              `json:"max_height"`
	Checkpoints []CheckpointMessage `json:"checkpoints"`
}

// CheckpointMessage describes a single pin. It's pushed to subscribers as
// new pins are applied while they're connected.
// Type: "checkpoint".
type CheckpointMessage struct {
	Height  uint64  `json:"height"`
	BlockID BlockID `json:"block_id"`
	Source  string  `json:"source,omitempty"`
}

// MaxHeightMessage is used to send a subscriber the highest pinned height.
// Sent in response to the empty "get_max_height" message.
// Type: "max_height".
type MaxHeightMessage struct {
	Height uint64 `json:"height"`
}

// FeedUpgrader upgrades the incoming HTTP connection to a WebSocket if the subprotocol matches.
var FeedUpgrader = websocket.Upgrader{
	Subprotocols: []string{FeedProtocol},
	CheckOrigin:  func(r *http.Request) bool { return true },
}

// CheckpointFeed publishes the authority's checkpoint table to WebSocket
// subscribers: the full table on request and a push for every pin applied
// while they're connected. Wallets and explorers subscribe here instead of
// polling DNS.
type CheckpointFeed struct {
	source      CheckpointSource
	updater     *CheckpointUpdater // nil means snapshots only, no pushes
	network     NetworkType
	dataDir     string
	certPath    string
	keyPath     string
	port        int
	server      *http.Server
	changeChan  chan CheckpointChange
	subscribers map[*websocket.Conn]chan<- Message
	subLock     sync.Mutex
	wg          sync.WaitGroup
}

// NewCheckpointFeed returns a new CheckpointFeed instance. If certPath is
// empty an ephemeral certificate is generated into dataDir on Run.
func NewCheckpointFeed(source CheckpointSource, updater *CheckpointUpdater, network NetworkType,
	dataDir, certPath, keyPath string, port int) *CheckpointFeed {

	// server to listen for and handle incoming secure WebSocket connections
	server := &http.Server{
		Addr:         "0.0.0.0:" + strconv.Itoa(port),
		TLSConfig:    tlsServerConfig, // from tls.go
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &CheckpointFeed{
		source:      source,
		updater:     updater,
		network:     network,
		dataDir:     dataDir,
		certPath:    certPath,
		keyPath:     keyPath,
		port:        port,
		server:      server,
		changeChan:  make(chan CheckpointChange, FEED_QUEUE_LENGTH),
		subscribers: make(map[*websocket.Conn]chan<- Message),
	}
}

// Run executes the CheckpointFeed's main loop in its own goroutine.
// The updater, if any, must already be running.
func (f *CheckpointFeed) Run() {
	f.wg.Add(1)
	go f.run()
}

func (f *CheckpointFeed) run() {
	defer f.wg.Done()

	if f.updater != nil {
		f.updater.RegisterForChanges(f.changeChan)
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for change := range f.changeChan {
				f.publish(Message{Type: "checkpoint", Body: CheckpointMessage{
					Height:  change.Height,
					BlockID: change.BlockID,
					Source:  change.Source,
				}})
			}
		}()
	}

	feedHandler := func(w http.ResponseWriter, r *http.Request) {
		conn, err := FeedUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Print("Upgrade:", err)
			return
		}
		addr := conn.RemoteAddr().String()
		log.Printf("New feed subscriber from: %s\n", addr)
		f.handleSubscriber(conn)
		log.Printf("Feed subscriber disconnected: %s\n", addr)
	}

	var certPath, keyPath string = f.certPath, f.keyPath
	if len(certPath) == 0 {
		// generate new certificate and key for tls on each run
		log.Println("Generating TLS certificate and key")
		var err error
		certPath, keyPath, err = generateSelfSignedCertAndKey(f.dataDir)
		if err != nil {
			log.Println(err)
			return
		}
	}

	// listen for subscribers under the network's path
	http.HandleFunc("/checkpoints/"+f.network.String(), feedHandler)

	// serve a status page
	http.Handle("/", http.FileServer(rice.MustFindBox("html").HTTPBox()))

	log.Println("Listening for new feed subscribers")
	if err := f.server.ListenAndServeTLS(certPath, keyPath); err != nil {
		log.Println(err)
	}
}

// Serve a single subscriber. The caller's goroutine runs the read loop;
// writes go through a queue so pushes and replies never interleave mid-frame.
func (f *CheckpointFeed) handleSubscriber(conn *websocket.Conn) {
	outChan := make(chan Message, FEED_QUEUE_LENGTH)
	f.addSubscriber(conn, outChan)
	defer f.removeSubscriber(conn)

	// writer
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for m := range outChan {
			if err := conn.WriteJSON(m); err != nil {
				log.Printf("Write error: %s, to: %s\n", err, conn.RemoteAddr())
				conn.Close()
				// drain so the reader never blocks queueing a reply
				for range outChan {
				}
				return
			}
		}
	}()

	// reader
	conn.SetReadLimit(MAX_PROTOCOL_MESSAGE_LENGTH)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Read error: %s, from: %s\n", err, conn.RemoteAddr())
			break
		}

		var body json.RawMessage
		m := Message{Body: &body}
		if err := json.Unmarshal(message, &m); err != nil {
			log.Printf("Error: %s, from: %s\n", err, conn.RemoteAddr())
			break
		}

		switch m.Type {
		case "get_checkpoints":
			outChan <- f.checkpointsMessage()

		case "get_max_height":
			outChan <- Message{Type: "max_height", Body: MaxHeightMessage{Height: f.source.MaxHeight()}}

		default:
			log.Printf("Unknown message type: %s, from: %s\n", m.Type, conn.RemoteAddr())
		}
	}
	conn.Close()
}

// Build the complete table message from the current source snapshot.
func (f *CheckpointFeed) checkpointsMessage() Message {
	points := f.source.Points()
	heights := sortedHeights(points)
	body := CheckpointsMessage{Checkpoints: make([]CheckpointMessage, 0, len(points))}
	if len(heights) != 0 {
		body.MaxHeight = heights[len(heights)-1]
	}
	for _, height := range heights {
		body.Checkpoints = append(body.Checkpoints, CheckpointMessage{Height: height, BlockID: points[height]})
	}
	return Message{Type: "checkpoints", Body: body}
}

func (f *CheckpointFeed) addSubscriber(conn *websocket.Conn, outChan chan<- Message) {
	f.subLock.Lock()
	defer f.subLock.Unlock()
	f.subscribers[conn] = outChan
}

func (f *CheckpointFeed) removeSubscriber(conn *websocket.Conn) {
	f.subLock.Lock()
	defer f.subLock.Unlock()
	if outChan, ok := f.subscribers[conn]; ok {
		delete(f.subscribers, conn)
		close(outChan)
	}
}

// Queue a message to every connected subscriber. A subscriber too slow to
// drain its queue misses the push; its next get_checkpoints catches it up.
func (f *CheckpointFeed) publish(m Message) {
	f.subLock.Lock()
	defer f.subLock.Unlock()
	for _, outChan := range f.subscribers {
		select {
		case outChan <- m:
		default:
		}
	}
}

// Shutdown stops the feed synchronously.
func (f *CheckpointFeed) Shutdown() {
	log.Println("Checkpoint feed shutting down...")
	if f.updater != nil {
		f.updater.UnregisterForChanges(f.changeChan)
		close(f.changeChan)
	}
	f.server.Shutdown(context.Background())

	// Shutdown leaves hijacked connections alone; close them ourselves
	var conns []*websocket.Conn
	func() {
		f.subLock.Lock()
		defer f.subLock.Unlock()
		for conn := range f.subscribers {
			conns = append(conns, conn)
		}
	}()
	for _, conn := range conns {
		conn.Close()
	}

	f.wg.Wait()
	log.Println("Checkpoint feed shutdown")
}

// FetchCheckpoints connects to a checkpoint feed, requests the complete
// table and returns it. It's how the console compares another authority's
// view with its own.
func FetchCheckpoints(addr string, network NetworkType) (*CheckpointsMessage, error) {
	u := url.URL{Scheme: "wss", Host: addr, Path: "/checkpoints/" + network.String()}
	log.Printf("Connecting to %s", u.String())

	dialer := websocket.DefaultDialer
	dialer.TLSClientConfig = tlsClientConfig // set in tls.go
	dialer.Subprotocols = append(dialer.Subprotocols, FeedProtocol)

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: "get_checkpoints"}); err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		var body json.RawMessage
		m := Message{Body: &body}
		if err := json.Unmarshal(message, &m); err != nil {
			return nil, err
		}
		if m.Type != "checkpoints" {
			// pushes can arrive ahead of our reply; skip them
			continue
		}

		cm := new(CheckpointsMessage)
		if err := json.Unmarshal(body, cm); err != nil {
			return nil, err
		}
		return cm, nil
	}
}
