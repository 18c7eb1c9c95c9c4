package store

import (
	"bytes"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/hivemap"
	"github.com/hivemesh/hive/src/intent"
	"github.com/hivemesh/hive/src/members"
	"github.com/ugorji/go/codec"
)

const (
	memberPrefix = "member"
	statePrefix  = "state"
	intentPrefix = "intent"
)

// BadgerStore is a write-through wrapper around InmemStore: reads are served
// from the cache, writes go to both the cache and the badger database. On
// open, any existing database content is loaded back into the cache, which
// is how a restarting node recovers its last view.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
}

// NewBadgerStore opens or creates a database at the given path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(false)

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
	}

	if err := store.warm(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

// warm loads all persisted items into the cache.
func (s *BadgerStore) warm() error {
	records, err := s.dbRecords()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := s.inmemStore.SaveRecord(rec); err != nil {
			return err
		}
	}

	entries, err := s.dbEntries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.inmemStore.SaveEntry(e); err != nil {
			return err
		}
	}

	intents, err := s.dbIntents()
	if err != nil {
		return err
	}
	for _, n := range intents {
		if err := s.inmemStore.SaveIntent(n); err != nil {
			return err
		}
	}

	return nil
}

// Path returns the database directory.
func (s *BadgerStore) Path() string {
	return s.path
}

// SaveRecord implements the Store interface.
func (s *BadgerStore) SaveRecord(rec *members.Record) error {
	if err := s.dbSet(memberKey(rec.PubKeyHex), rec); err != nil {
		return err
	}
	return s.inmemStore.SaveRecord(rec)
}

// GetRecord implements the Store interface.
func (s *BadgerStore) GetRecord(pubKeyHex string) (*members.Record, error) {
	return s.inmemStore.GetRecord(pubKeyHex)
}

// Records implements the Store interface.
func (s *BadgerStore) Records() ([]*members.Record, error) {
	return s.inmemStore.Records()
}

// SaveEntry implements the Store interface.
func (s *BadgerStore) SaveEntry(e *hivemap.Entry) error {
	if err := s.dbSet(stateKey(e.PeerPub), e); err != nil {
		return err
	}
	return s.inmemStore.SaveEntry(e)
}

// GetEntry implements the Store interface.
func (s *BadgerStore) GetEntry(pubKeyHex string) (*hivemap.Entry, error) {
	return s.inmemStore.GetEntry(pubKeyHex)
}

// Entries implements the Store interface.
func (s *BadgerStore) Entries() ([]*hivemap.Entry, error) {
	return s.inmemStore.Entries()
}

// SaveIntent implements the Store interface.
func (s *BadgerStore) SaveIntent(n *intent.Notice) error {
	if err := s.dbSet(intentKey(n.IntentID), n); err != nil {
		return err
	}
	return s.inmemStore.SaveIntent(n)
}

// GetIntent implements the Store interface.
func (s *BadgerStore) GetIntent(intentID string) (*intent.Notice, error) {
	return s.inmemStore.GetIntent(intentID)
}

// Intents implements the Store interface.
func (s *BadgerStore) Intents() ([]*intent.Notice, error) {
	return s.inmemStore.Intents()
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RemoveAll deletes the database directory. Used by tests.
func (s *BadgerStore) RemoveAll() error {
	return os.RemoveAll(s.path)
}

func memberKey(pubKeyHex string) []byte {
	return []byte(memberPrefix + "_" + pubKeyHex)
}

func stateKey(pubKeyHex string) []byte {
	return []byte(statePrefix + "_" + pubKeyHex)
}

func intentKey(intentID string) []byte {
	return []byte(intentPrefix + "_" + intentID)
}

func (s *BadgerStore) dbSet(key []byte, v interface{}) error {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, new(codec.JsonHandle))
	if err := enc.Encode(v); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
	if err != nil {
		return common.NewCoordErr("badger_store", common.CollaboratorUnavailable, err.Error())
	}
	return nil
}

func (s *BadgerStore) dbScan(prefix string, each func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix + "_")
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := each(val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) dbRecords() ([]*members.Record, error) {
	res := []*members.Record{}
	err := s.dbScan(memberPrefix, func(val []byte) error {
		rec := &members.Record{}
		dec := codec.NewDecoder(bytes.NewBuffer(val), new(codec.JsonHandle))
		if err := dec.Decode(rec); err != nil {
			return err
		}
		res = append(res, rec)
		return nil
	})
	return res, err
}

func (s *BadgerStore) dbEntries() ([]*hivemap.Entry, error) {
	res := []*hivemap.Entry{}
	err := s.dbScan(statePrefix, func(val []byte) error {
		e := &hivemap.Entry{}
		dec := codec.NewDecoder(bytes.NewBuffer(val), new(codec.JsonHandle))
		if err := dec.Decode(e); err != nil {
			return err
		}
		res = append(res, e)
		return nil
	})
	return res, err
}

func (s *BadgerStore) dbIntents() ([]*intent.Notice, error) {
	res := []*intent.Notice{}
	err := s.dbScan(intentPrefix, func(val []byte) error {
		n := &intent.Notice{}
		dec := codec.NewDecoder(bytes.NewBuffer(val), new(codec.JsonHandle))
		if err := dec.Decode(n); err != nil {
			return err
		}
		res = append(res, n)
		return nil
	})
	return res, err
}
