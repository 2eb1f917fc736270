// Copyright 2020 vireo developers
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

package vireo

import (
	"log"
	"math/big"
	"sync"
	"time"
)

// CheckpointUpdater owns a live CheckpointStore on behalf of a long-running
// program. It periodically refreshes the store from the checkpoints file
// and DNS, publishes applied changes to registered channels and alarms on
// DNS records that disagree with pins we already hold. Once constructed,
// all access to the underlying store goes through the updater.
type CheckpointUpdater struct {
	store                  *CheckpointStore
	resolver               TXTResolver
	network                NetworkType
	path                   string // checkpoints file consulted each round
	dnsEnabled             bool
	interval               time.Duration
	audit                  AuditStorage // optional trail of applied changes
	lock                   sync.RWMutex // guards store
	updateChan             chan updateRequest
	registerChangeChan     chan chan<- CheckpointChange
	unregisterChangeChan   chan chan<- CheckpointChange
	registerConflictChan   chan chan<- CheckpointConflict
	unregisterConflictChan chan chan<- CheckpointConflict
	changeChannels         map[chan<- CheckpointChange]struct{}
	conflictChannels       map[chan<- CheckpointConflict]struct{}
	shutdownChan           chan struct{}
	wg                     sync.WaitGroup
}

// CheckpointChange is a message sent to registered change channels when a
// checkpoint is applied to the live store.
type CheckpointChange struct {
	Height  uint64
	BlockID BlockID
	Source  string // which trusted source delivered it, e.g. "file" or "dns"
}

// CheckpointConflict is a message sent to registered conflict channels when
// a DNS record disagrees with a pin we already hold. One of the two sources
// is lying; an operator needs to find out which.
type CheckpointConflict struct {
	Height  uint64
	Have    BlockID
	Fetched BlockID
}

type updateRequest struct {
	resultChan chan<- updateResult
}

type updateResult struct {
	changes   []CheckpointChange
	conflicts []CheckpointConflict
}

// NewCheckpointUpdater returns a new updater owning the given store. audit
// may be nil if no trail of applied changes is wanted.
func NewCheckpointUpdater(store *CheckpointStore, resolver TXTResolver, network NetworkType,
	path string, dnsEnabled bool, interval time.Duration, audit AuditStorage) *CheckpointUpdater {
	return &CheckpointUpdater{
		store:                  store,
		resolver:               resolver,
		network:                network,
		path:                   path,
		dnsEnabled:             dnsEnabled,
		interval:               interval,
		audit:                  audit,
		updateChan:             make(chan updateRequest),
		registerChangeChan:     make(chan chan<- CheckpointChange),
		unregisterChangeChan:   make(chan chan<- CheckpointChange),
		registerConflictChan:   make(chan chan<- CheckpointConflict),
		unregisterConflictChan: make(chan chan<- CheckpointConflict),
		changeChannels:         make(map[chan<- CheckpointChange]struct{}),
		conflictChannels:       make(map[chan<- CheckpointConflict]struct{}),
		shutdownChan:           make(chan struct{}),
	}
}

// Run executes the CheckpointUpdater's main loop in its own goroutine.
func (u *CheckpointUpdater) Run() {
	u.wg.Add(1)
	go u.run()
}

func (u *CheckpointUpdater) run() {
	defer u.wg.Done()

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changes, conflicts := u.update()
			u.notify(changes, conflicts)

		case req := <-u.updateChan:
			changes, conflicts := u.update()
			u.notify(changes, conflicts)
			req.resultChan <- updateResult{changes: changes, conflicts: conflicts}

		case ch := <-u.registerChangeChan:
			u.changeChannels[ch] = struct{}{}

		case ch := <-u.unregisterChangeChan:
			delete(u.changeChannels, ch)

		case ch := <-u.registerConflictChan:
			u.conflictChannels[ch] = struct{}{}

		case ch := <-u.unregisterConflictChan:
			delete(u.conflictChannels, ch)

		case _, ok := <-u.shutdownChan:
			if !ok {
				log.Println("Checkpoint updater shutting down...")
				return
			}
		}
	}
}

// Run one refresh round. DNS records are fetched into a scratch store
// before any locks are taken, checked against the live table and merged
// only when the whole batch is conflict-free.
func (u *CheckpointUpdater) update() ([]CheckpointChange, []CheckpointConflict) {
	var dnsStore *CheckpointStore
	if u.dnsEnabled {
		dnsStore = NewCheckpointStore()
		loader := NewCheckpointLoader(dnsStore, u.resolver)
		if !loader.LoadCheckpointsFromDNS(u.network) {
			log.Println("Discarding DNS checkpoint records, the batch conflicts with itself")
			dnsStore = nil
		}
	}

	var changes []CheckpointChange
	var conflicts []CheckpointConflict

	u.lock.Lock()
	defer u.lock.Unlock()

	before := u.store.Points()
	loader := NewCheckpointLoader(u.store, u.resolver)
	if !loader.LoadCheckpointsFromFile(u.path) {
		log.Printf("Error reloading checkpoints from %s\n", u.path)
	}
	changes = DiffPoints(before, u.store.Points(), "file")

	if dnsStore != nil {
		points := dnsStore.Points()
		if !u.store.CheckForConflicts(dnsStore) {
			log.Println("One or more checkpoints fetched from DNS conflicted with existing checkpoints!")
			livePoints := u.store.Points()
			for _, height := range sortedHeights(points) {
				if have, ok := livePoints[height]; ok && have != points[height] {
					conflicts = append(conflicts, CheckpointConflict{
						Height: height, Have: have, Fetched: points[height]})
				}
			}
		} else {
			maxHeight := u.store.MaxHeight()
			for _, height := range sortedHeights(points) {
				if height <= maxHeight {
					continue
				}
				id := points[height]
				if u.store.AddCheckpoint(height, id.String(), "") {
					changes = append(changes, CheckpointChange{Height: height, BlockID: id, Source: "dns"})
				}
			}
		}
	}

	u.recordChanges(changes)
	return changes, conflicts
}

func (u *CheckpointUpdater) notify(changes []CheckpointChange, conflicts []CheckpointConflict) {
	for _, change := range changes {
		for ch := range u.changeChannels {
			ch <- change
		}
	}
	for _, conflict := range conflicts {
		for ch := range u.conflictChannels {
			ch <- conflict
		}
	}
}

// Best effort; the audit trail never blocks checkpoint distribution.
func (u *CheckpointUpdater) recordChanges(changes []CheckpointChange) {
	if u.audit == nil {
		return
	}
	for _, change := range changes {
		record := CheckpointRecord{
			Height:  change.Height,
			BlockID: change.BlockID,
			Source:  change.Source,
			When:    time.Now().Unix(),
		}
		if _, err := u.audit.RecordCheckpoint(record); err != nil {
			log.Printf("Error recording checkpoint change: %s\n", err)
		}
	}
}

// Update runs a refresh round immediately and returns the changes applied
// and any DNS conflicts found. The main loop must be running.
func (u *CheckpointUpdater) Update() ([]CheckpointChange, []CheckpointConflict) {
	resultChan := make(chan updateResult)
	u.updateChan <- updateRequest{resultChan: resultChan}
	result := <-resultChan
	return result.changes, result.conflicts
}

// RegisterForChanges is called to register to receive notifications of applied checkpoints.
func (u *CheckpointUpdater) RegisterForChanges(ch chan<- CheckpointChange) {
	u.registerChangeChan <- ch
}

// UnregisterForChanges is called to unregister to receive notifications of applied checkpoints.
func (u *CheckpointUpdater) UnregisterForChanges(ch chan<- CheckpointChange) {
	u.unregisterChangeChan <- ch
}

// RegisterForConflicts is called to register to receive notifications of DNS conflicts.
func (u *CheckpointUpdater) RegisterForConflicts(ch chan<- CheckpointConflict) {
	u.registerConflictChan <- ch
}

// UnregisterForConflicts is called to unregister to receive notifications of DNS conflicts.
func (u *CheckpointUpdater) UnregisterForConflicts(ch chan<- CheckpointConflict) {
	u.unregisterConflictChan <- ch
}

// Shutdown stops the updater synchronously.
func (u *CheckpointUpdater) Shutdown() {
	close(u.shutdownChan)
	u.wg.Wait()
	log.Println("Checkpoint updater shutdown")
}

// The read side. CheckpointUpdater satisfies ChainPolicy and
// CheckpointSource so the seeder and the feed can serve the live table
// while it's being refreshed.

// CheckBlock tests a block ID seen at a height against the live table.
func (u *CheckpointUpdater) CheckBlock(height uint64, id BlockID) (passed, isCheckpoint bool) {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.CheckBlock(height, id)
}

// CheckBlockPassed is CheckBlock minus the pin indicator.
func (u *CheckpointUpdater) CheckBlockPassed(height uint64, id BlockID) bool {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.CheckBlockPassed(height, id)
}

// IsInCheckpointZone returns true if the height is covered by the live table.
func (u *CheckpointUpdater) IsInCheckpointZone(height uint64) bool {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.IsInCheckpointZone(height)
}

// IsAlternativeBlockAllowed consults the live table for reorg safety.
func (u *CheckpointUpdater) IsAlternativeBlockAllowed(chainHeight, candidateHeight uint64) bool {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.IsAlternativeBlockAllowed(chainHeight, candidateHeight)
}

// MaxHeight returns the live table's highest pinned height.
func (u *CheckpointUpdater) MaxHeight() uint64 {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.MaxHeight()
}

// Count returns the number of pins in the live table.
func (u *CheckpointUpdater) Count() int {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.Count()
}

// Points returns a copy of the live pinned height to block ID table.
func (u *CheckpointUpdater) Points() map[uint64]BlockID {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.Points()
}

// DifficultyPoints returns a copy of the live difficulty pin table.
func (u *CheckpointUpdater) DifficultyPoints() map[uint64]*big.Int {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.store.DifficultyPoints()
}

// DiffPoints returns the checkpoints present in after but not in before,
// sorted by height and labeled with the given source.
func DiffPoints(before, after map[uint64]BlockID, source string) []CheckpointChange {
	var changes []CheckpointChange
	for _, height := range sortedHeights(after) {
		if _, ok := before[height]; !ok {
			changes = append(changes, CheckpointChange{Height: height, BlockID: after[height], Source: source})
		}
	}
	return changes
}
