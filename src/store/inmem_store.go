package store

import (
	"sort"
	"sync"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/hivemap"
	"github.com/hivemesh/hive/src/intent"
	"github.com/hivemesh/hive/src/members"
)

// InmemStore implements the Store interface with map-backed tables. It is the
// cache layer of BadgerStore and the storage of choice for tests and
// ephemeral nodes.
type InmemStore struct {
	mu sync.RWMutex

	records map[string]*members.Record
	entries map[string]*hivemap.Entry
	intents map[string]*intent.Notice
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		records: make(map[string]*members.Record),
		entries: make(map[string]*hivemap.Entry),
		intents: make(map[string]*intent.Notice),
	}
}

// SaveRecord implements the Store interface.
func (s *InmemStore) SaveRecord(rec *members.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.PubKeyHex] = rec.Copy()
	return nil
}

// GetRecord implements the Store interface.
func (s *InmemStore) GetRecord(pubKeyHex string) (*members.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[pubKeyHex]
	if !ok {
		return nil, common.NewCoordErr("inmem_store", common.KeyNotFound, pubKeyHex)
	}
	return rec.Copy(), nil
}

// Records implements the Store interface.
func (s *InmemStore) Records() ([]*members.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*members.Record, 0, len(s.records))
	for _, rec := range s.records {
		res = append(res, rec.Copy())
	}
	sort.Sort(members.ByPubKeyHex(res))
	return res, nil
}

// SaveEntry implements the Store interface.
func (s *InmemStore) SaveEntry(e *hivemap.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.PeerPub] = e.Copy()
	return nil
}

// GetEntry implements the Store interface.
func (s *InmemStore) GetEntry(pubKeyHex string) (*hivemap.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[pubKeyHex]
	if !ok {
		return nil, common.NewCoordErr("inmem_store", common.KeyNotFound, pubKeyHex)
	}
	return e.Copy(), nil
}

// Entries implements the Store interface.
func (s *InmemStore) Entries() ([]*hivemap.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*hivemap.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		res = append(res, e.Copy())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].PeerPub < res[j].PeerPub })
	return res, nil
}

// SaveIntent implements the Store interface.
func (s *InmemStore) SaveIntent(n *intent.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intents[n.IntentID] = n.Copy()
	return nil
}

// GetIntent implements the Store interface.
func (s *InmemStore) GetIntent(intentID string) (*intent.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.intents[intentID]
	if !ok {
		return nil, common.NewCoordErr("inmem_store", common.KeyNotFound, intentID)
	}
	return n.Copy(), nil
}

// Intents implements the Store interface.
func (s *InmemStore) Intents() ([]*intent.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*intent.Notice, 0, len(s.intents))
	for _, n := range s.intents {
		res = append(res, n.Copy())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].IntentID < res[j].IntentID })
	return res, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
