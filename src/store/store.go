// Package store defines the persistence layer: membership records, hive-map
// entries and committed intents survive restarts so a node rejoining the
// hive resumes from its last known view instead of a blank slate.
package store

import (
	"github.com/hivemesh/hive/src/hivemap"
	"github.com/hivemesh/hive/src/intent"
	"github.com/hivemesh/hive/src/members"
)

// Store is the interface for the coordination state storage devices.
type Store interface {
	// SaveRecord persists a membership record, overwriting any previous
	// version for the same identity.
	SaveRecord(rec *members.Record) error
	// GetRecord retrieves a membership record by peer identity.
	GetRecord(pubKeyHex string) (*members.Record, error)
	// Records retrieves all membership records.
	Records() ([]*members.Record, error)
	// SaveEntry persists a hive-map entry.
	SaveEntry(e *hivemap.Entry) error
	// GetEntry retrieves a hive-map entry by subject identity.
	GetEntry(pubKeyHex string) (*hivemap.Entry, error)
	// Entries retrieves all hive-map entries.
	Entries() ([]*hivemap.Entry, error)
	// SaveIntent persists a committed intent notice.
	SaveIntent(n *intent.Notice) error
	// GetIntent retrieves a committed intent notice by id.
	GetIntent(intentID string) (*intent.Notice, error)
	// Intents retrieves all committed intent notices.
	Intents() ([]*intent.Notice, error)
	// Close releases the underlying resources.
	Close() error
}
