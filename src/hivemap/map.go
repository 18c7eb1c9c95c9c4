package hivemap

import (
	"sort"
	"sync"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/sirupsen/logrus"
)

// MemberCheck reports whether a peer identity currently holds member standing.
// The map consults it at merge time so that entries are only ever accepted
// from verified members.
type MemberCheck func(pubKeyHex string) bool

// row wraps an entry with local bookkeeping that never goes on the wire.
type row struct {
	entry     *Entry
	appliedAt time.Time
}

// senderBucket tracks per-sender update counts for rate limiting.
type senderBucket struct {
	windowStart time.Time
	count       int
}

// Map is the node's eventually-consistent view of fleet-wide shared facts,
// one entry per peer. The state manager is the single writer; everything else
// reads snapshots. Merges are monotonic: an entry is replaced only by a
// strictly newer version, so replays and reordered deliveries converge to the
// same state on every node.
type Map struct {
	mu      sync.RWMutex
	rows    map[string]*row
	buckets map[string]*senderBucket

	rateLimitBurst  int
	rateLimitWindow time.Duration

	logger *logrus.Entry
}

// NewMap ...
func NewMap(rateLimitBurst int, rateLimitWindow time.Duration, logger *logrus.Entry) *Map {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Map{
		rows:            make(map[string]*row),
		buckets:         make(map[string]*senderBucket),
		rateLimitBurst:  rateLimitBurst,
		rateLimitWindow: rateLimitWindow,
		logger:          logger,
	}
}

// Apply merges one incoming entry. The entry replaces the stored one iff its
// version is strictly newer, the sender is a currently-verified member, and
// the signature verifies against the subject's key. Ties are discarded, not
// re-applied. Signature verification happens before the lock is taken; only
// the map mutation itself is locked.
func (m *Map) Apply(e *Entry, senderPub string, isMember MemberCheck) error {
	if err := e.Validate(); err != nil {
		return err
	}

	if !isMember(senderPub) {
		return common.NewCoordErr("hivemap", common.PolicyViolation, senderPub)
	}

	if !e.Verify() {
		return common.NewCoordErr("hivemap", common.AuthenticationFailure, e.PeerPub)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.rows[e.PeerPub]
	if ok && e.Version <= stored.entry.Version {
		return common.NewCoordErr("hivemap", common.ReplayRejected, e.PeerPub)
	}

	m.rows[e.PeerPub] = &row{entry: e.Copy(), appliedAt: time.Now()}

	return nil
}

// ApplyBatch merges a batch from one sender and returns the number of entries
// applied. Individual rejections are logged at debug and do not abort the
// batch: a malformed entry never partially mutates the map, and a stale one
// is an expected no-op.
func (m *Map) ApplyBatch(entries []*Entry, senderPub string, isMember MemberCheck) int {
	applied := 0
	for _, e := range entries {
		if err := m.Apply(e, senderPub, isMember); err != nil {
			m.logger.WithFields(logrus.Fields{
				"subject": e.PeerPub,
				"error":   err,
			}).Debug("entry not applied")
			continue
		}
		applied++
	}
	return applied
}

// AllowSender implements per-sender rate limiting: at most rateLimitBurst
// update frames per rateLimitWindow. Excess frames are dropped before any
// decode work is amplified into merge work.
func (m *Map) AllowSender(senderPub string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[senderPub]
	if !ok || now.Sub(b.windowStart) > m.rateLimitWindow {
		m.buckets[senderPub] = &senderBucket{windowStart: now, count: 1}
		return true
	}

	if b.count >= m.rateLimitBurst {
		return false
	}

	b.count++
	return true
}

// Seed loads entries recovered from the durable store. Subject signatures
// are still checked, but the sender-membership gate is skipped: these entries
// passed it when they were first applied.
func (m *Map) Seed(entries []*Entry) int {
	applied := 0
	for _, e := range entries {
		if e.Validate() != nil || !e.Verify() {
			continue
		}

		m.mu.Lock()
		stored, ok := m.rows[e.PeerPub]
		if !ok || e.Version > stored.entry.Version {
			m.rows[e.PeerPub] = &row{entry: e.Copy(), appliedAt: time.Now()}
			applied++
		}
		m.mu.Unlock()
	}
	return applied
}

// Get returns a copy of the entry for the given peer.
func (m *Map) Get(pubKeyHex string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rows[pubKeyHex]
	if !ok {
		return nil, false
	}
	return r.entry.Copy(), true
}

// Len returns the number of entries in the map.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rows)
}

// Digest returns the per-peer version vector used for anti-entropy: peers
// exchange digests first, then only the entries the digest shows as stale.
func (m *Map) Digest() map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d := make(map[string]uint64, len(m.rows))
	for pub, r := range m.rows {
		d[pub] = r.entry.Version
	}
	return d
}

// Diff returns up to limit entries strictly newer than the versions in the
// remote digest, sorted by peer identity for deterministic responses.
func (m *Map) Diff(remote map[string]uint64, limit int) []*Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := []*Entry{}
	for pub, r := range m.rows {
		if v, ok := remote[pub]; ok && r.entry.Version <= v {
			continue
		}
		res = append(res, r.entry.Copy())
	}

	sort.Slice(res, func(i, j int) bool { return res[i].PeerPub < res[j].PeerPub })

	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

// Fresh returns entries applied within the given window, the payload of a
// periodic gossip push.
func (m *Map) Fresh(since time.Time) []*Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := []*Entry{}
	for _, r := range m.rows {
		if r.appliedAt.After(since) {
			res = append(res, r.entry.Copy())
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].PeerPub < res[j].PeerPub })

	return res
}

// Snapshot returns a copy of all entries, sorted by peer identity.
func (m *Map) Snapshot() []*Entry {
	return m.Diff(nil, 0)
}

// TotalCapacity returns the aggregate routing capacity of the fleet, derived
// from the map. This is one of the aggregates that membership gating protects
// from pollution.
func (m *Map) TotalCapacity() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total uint64
	for _, r := range m.rows {
		total += r.entry.CapacityMsat
	}
	return total
}

// SweepBuckets drops rate-limit buckets whose window has passed. Called from
// the node's periodic eviction pass so the bucket table cannot grow with the
// number of historical senders.
func (m *Map) SweepBuckets(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pub, b := range m.buckets {
		if now.Sub(b.windowStart) > m.rateLimitWindow {
			delete(m.buckets, pub)
		}
	}
}
