package members

import (
	"math"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto"
)

// vouchRoundLimit bounds the number of promotion rounds with tracked
// vouchers. Rounds are evicted LRU; an evicted round's vouches are already
// counted.
const vouchRoundLimit = 1024

// Registry is the node's view of fleet membership, keyed by peer identity.
//
// The handshake engine and the promotion/ban flows are the only writers;
// every other component reads through snapshot accessors. This single-writer
// discipline is what keeps the locking tractable: the mutex is only ever held
// around the map operation itself, never across a network call.
type Registry struct {
	sync.RWMutex
	records map[string]*Record

	// vouchRounds maps a promotion RequestID to the set of vouchers already
	// counted for it.
	vouchRounds *lru.Cache
}

// NewRegistry ...
func NewRegistry() *Registry {
	vouchRounds, _ := lru.New(vouchRoundLimit)
	return &Registry{
		records:     make(map[string]*Record),
		vouchRounds: vouchRounds,
	}
}

// Add inserts a new record. It is a ReplayRejected no-op if the peer is
// already known, and a PolicyViolation if the peer was banned; banned
// identities never rejoin.
func (reg *Registry) Add(rec *Record) error {
	reg.Lock()
	defer reg.Unlock()

	if existing, ok := reg.records[rec.PubKeyHex]; ok {
		if existing.Banned {
			return common.NewCoordErr("registry", common.PolicyViolation, rec.PubKeyHex)
		}
		return common.NewCoordErr("registry", common.ReplayRejected, rec.PubKeyHex)
	}

	reg.records[rec.PubKeyHex] = rec.Copy()

	return nil
}

// Get returns a copy of the record for the given peer identity.
func (reg *Registry) Get(pubKeyHex string) (*Record, bool) {
	reg.RLock()
	defer reg.RUnlock()

	rec, ok := reg.records[pubKeyHex]
	if !ok {
		return nil, false
	}
	return rec.Copy(), true
}

// IsMember reports whether the peer holds Member tier or above and is not
// banned. This is the gate applied to gossip and full-sync payloads.
func (reg *Registry) IsMember(pubKeyHex string) bool {
	reg.RLock()
	defer reg.RUnlock()

	rec, ok := reg.records[pubKeyHex]
	return ok && !rec.Banned && rec.Tier >= Member
}

// Promote raises a peer's tier. Tier transitions are monotonic: lowering a
// tier is a PolicyViolation, promoting a banned peer is a PolicyViolation,
// promoting to the current tier is a ReplayRejected no-op.
func (reg *Registry) Promote(pubKeyHex string, to Tier) error {
	reg.Lock()
	defer reg.Unlock()

	rec, ok := reg.records[pubKeyHex]
	if !ok {
		return common.NewCoordErr("registry", common.PolicyViolation, pubKeyHex)
	}
	if rec.Banned {
		return common.NewCoordErr("registry", common.PolicyViolation, pubKeyHex)
	}
	if to < rec.Tier {
		return common.NewCoordErr("registry", common.PolicyViolation, pubKeyHex)
	}
	if to == rec.Tier {
		return common.NewCoordErr("registry", common.ReplayRejected, pubKeyHex)
	}

	rec.Tier = to
	return nil
}

// Ban marks a peer banned. Bans are terminal and idempotent.
func (reg *Registry) Ban(pubKeyHex string) error {
	reg.Lock()
	defer reg.Unlock()

	rec, ok := reg.records[pubKeyHex]
	if !ok {
		return common.NewCoordErr("registry", common.PolicyViolation, pubKeyHex)
	}

	rec.Banned = true
	return nil
}

// Remove deletes a record on voluntary departure. Banned records are kept so
// the identity cannot rejoin.
func (reg *Registry) Remove(pubKeyHex string) {
	reg.Lock()
	defer reg.Unlock()

	if rec, ok := reg.records[pubKeyHex]; ok && !rec.Banned {
		delete(reg.records, pubKeyHex)
	}
}

// Touch updates a peer's last-seen timestamp.
func (reg *Registry) Touch(pubKeyHex string, now int64) {
	reg.Lock()
	defer reg.Unlock()

	if rec, ok := reg.records[pubKeyHex]; ok && now > rec.LastSeen {
		rec.LastSeen = now
	}
}

// RecordVouch counts a vouch for a promotion candidate. A voucher counts at
// most once per promotion round: replaying the same vouch leaves the counter
// untouched. Reports whether the vouch moved the counter.
func (reg *Registry) RecordVouch(targetPub, requestID, voucherPub string) bool {
	reg.Lock()
	defer reg.Unlock()

	rec, ok := reg.records[targetPub]
	if !ok {
		return false
	}

	var round map[string]bool
	if cached, ok := reg.vouchRounds.Get(requestID); ok {
		round = cached.(map[string]bool)
	} else {
		round = make(map[string]bool)
		reg.vouchRounds.Add(requestID, round)
	}
	if round[voucherPub] {
		return false
	}
	round[voucherPub] = true

	rec.VouchCount++
	return true
}

// Members returns a copy of all records, sorted by peer identity.
func (reg *Registry) Members() []*Record {
	reg.RLock()
	defer reg.RUnlock()

	res := make([]*Record, 0, len(reg.records))
	for _, rec := range reg.records {
		res = append(res, rec.Copy())
	}
	sort.Sort(ByPubKeyHex(res))

	return res
}

// Len returns the number of known records, banned included.
func (reg *Registry) Len() int {
	reg.RLock()
	defer reg.RUnlock()

	return len(reg.records)
}

// ActiveCount returns the number of non-banned members and admins seen within
// the recency window ending at now. It feeds the promotion quorum.
func (reg *Registry) ActiveCount(windowSecs int64, now int64) int {
	reg.RLock()
	defer reg.RUnlock()

	count := 0
	for _, rec := range reg.records {
		if rec.Banned || rec.Tier < Member {
			continue
		}
		if now-rec.LastSeen <= windowSecs {
			count++
		}
	}
	return count
}

// Merge folds trusted records into the registry: records this node persisted
// itself and recovers on restart. Unknown records are added as reported; for
// known records only monotonic updates are applied: last-seen moves forward,
// tiers move up, bans stick.
func (reg *Registry) Merge(incoming []*Record) int {
	reg.Lock()
	defer reg.Unlock()

	applied := 0
	for _, in := range incoming {
		rec, ok := reg.records[in.PubKeyHex]
		if !ok {
			reg.records[in.PubKeyHex] = in.Copy()
			applied++
			continue
		}
		changed := false
		if in.LastSeen > rec.LastSeen {
			rec.LastSeen = in.LastSeen
			changed = true
		}
		if in.Tier > rec.Tier && !rec.Banned {
			rec.Tier = in.Tier
			changed = true
		}
		if in.Banned && !rec.Banned {
			rec.Banned = true
			changed = true
		}
		if in.NetAddr != "" && in.NetAddr != rec.NetAddr {
			rec.NetAddr = in.NetAddr
			changed = true
		}
		if changed {
			applied++
		}
	}
	return applied
}

// MergeSync folds records learned from a full-sync response into the
// registry. Sync records are unsigned claims, so only benign facts are
// taken: addresses and forward-moving last-seen stamps. Tier raises and bans
// never come from sync; those flow from committed intents. Unknown
// identities enter at Neophyte standing whatever tier they claim.
func (reg *Registry) MergeSync(incoming []*Record) int {
	reg.Lock()
	defer reg.Unlock()

	applied := 0
	for _, in := range incoming {
		rec, ok := reg.records[in.PubKeyHex]
		if !ok {
			reg.records[in.PubKeyHex] = NewRecord(in.PubKeyHex, in.Moniker, in.NetAddr, in.LastSeen)
			applied++
			continue
		}
		changed := false
		if in.LastSeen > rec.LastSeen {
			rec.LastSeen = in.LastSeen
			changed = true
		}
		if in.NetAddr != "" && in.NetAddr != rec.NetAddr {
			rec.NetAddr = in.NetAddr
			changed = true
		}
		if changed {
			applied++
		}
	}
	return applied
}

// Hash uniquely identifies the membership view. It is computed by hashing
// (SHA256) the sorted public keys together, one by one.
func (reg *Registry) Hash() []byte {
	hash := []byte{}
	for _, rec := range reg.Members() {
		pk, err := rec.PubKeyBytes()
		if err != nil {
			continue
		}
		hash = crypto.SimpleHashFromTwoHashes(hash, pk)
	}
	return hash
}

// Quorum returns the number of vouches required for a promotion:
// max(floor, ceil(active * ratio)). Floor and ratio are policy parameters,
// not protocol invariants, so they are arguments rather than constants.
func Quorum(active int, floor int, ratio float64) int {
	q := int(math.Ceil(float64(active) * ratio))
	if q < floor {
		q = floor
	}
	return q
}
