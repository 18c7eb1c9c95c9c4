package members

import (
	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

// Tier is a membership tier. Tiers are ordered: transitions are monotonic
// except for bans, which are terminal.
type Tier uint8

const (
	// Neophyte is the probationary tier. Neophytes may only request
	// promotion; they cannot vouch or ban.
	Neophyte Tier = iota
	// Member has voting rights: it may emit vouches and propose bans.
	Member
	// Admin is the founding, highest-trust tier.
	Admin
)

// String ...
func (t Tier) String() string {
	switch t {
	case Neophyte:
		return "neophyte"
	case Member:
		return "member"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseTier converts a tier name back into a Tier.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "neophyte":
		return Neophyte, true
	case "member":
		return Member, true
	case "admin":
		return Admin, true
	}
	return Neophyte, false
}

// Record holds everything the hive knows about one peer's membership.
type Record struct {
	PubKeyHex  string
	Moniker    string
	NetAddr    string
	Tier       Tier
	Banned     bool
	JoinedAt   int64
	LastSeen   int64
	VouchCount int
}

// NewRecord creates a Neophyte record for a peer identified by its public key
// hex.
func NewRecord(pubKeyHex, moniker, netAddr string, now int64) *Record {
	return &Record{
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
		NetAddr:   netAddr,
		Tier:      Neophyte,
		JoinedAt:  now,
		LastSeen:  now,
	}
}

// ID returns the compact uint32 representation of the record's public key,
// used in wire frames.
func (r *Record) ID() uint32 {
	raw, err := common.DecodeFromString(r.PubKeyHex)
	if err != nil {
		return 0
	}
	return keys.PublicKeyID(raw)
}

// PubKeyBytes returns the raw uncompressed public key.
func (r *Record) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(r.PubKeyHex)
}

// CanVouch reports whether the record's tier allows emitting vouches and ban
// proposals.
func (r *Record) CanVouch() bool {
	return !r.Banned && r.Tier >= Member
}

// Copy returns a shallow copy. Registry accessors return copies so that
// readers never hold a pointer into the table.
func (r *Record) Copy() *Record {
	c := *r
	return &c
}

// ByPubKeyHex implements sort.Interface for Records based on the PubKeyHex
// field. The same ordering underpins the intent tie-break.
type ByPubKeyHex []*Record

func (a ByPubKeyHex) Len() int      { return len(a) }
func (a ByPubKeyHex) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByPubKeyHex) Less(i, j int) bool {
	return a[i].PubKeyHex < a[j].PubKeyHex
}
