package intent

import (
	"sort"
	"sync"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/sirupsen/logrus"
)

// MaxCompetingIntents bounds the number of intents tracked per conflict key.
// Excess proposals are rejected rather than queued.
const MaxCompetingIntents = 16

// Gate is the policy check evaluated at commit time. It runs while the
// manager lock is held so that evaluation and the Committed transition are
// atomic: implementations must be pure CPU checks with no I/O.
type Gate func(n *Notice) bool

// Manager tracks intent lifecycles for the local node. It is the single
// authority on intent state transitions; the node feeds it local proposals,
// remote notices, and clock ticks, and collects decided intents for
// side effects after the lock is released.
type Manager struct {
	mu sync.Mutex

	intents map[string][]*Intent
	byID    map[string]*Intent

	// abortQueue collects local intents that aborted since the last Tick,
	// for the node to retract on the wire.
	abortQueue []*Notice

	holdPeriod time.Duration
	retention  time.Duration
	gate       Gate

	logger *logrus.Entry
}

// NewManager creates an intent Manager. The gate may be nil, in which case
// every held intent commits.
func NewManager(holdPeriod, retention time.Duration, gate Gate, logger *logrus.Entry) *Manager {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	if gate == nil {
		gate = func(*Notice) bool { return true }
	}

	return &Manager{
		intents:    make(map[string][]*Intent),
		byID:       make(map[string]*Intent),
		holdPeriod: holdPeriod,
		retention:  retention,
		gate:       gate,
		logger:     logger,
	}
}

// Propose registers a locally-initiated intent and starts its hold period.
// The returned notice is what the node broadcasts.
func (m *Manager) Propose(n *Notice, now time.Time) error {
	return m.admit(n, now, true)
}

// Observe registers a remotely-announced intent. Replays of a known IntentID
// are idempotent no-ops; a genuinely new notice joins the conflict set for
// its key and the tie-break re-runs.
func (m *Manager) Observe(n *Notice, now time.Time) error {
	return m.admit(n, now, false)
}

func (m *Manager) admit(n *Notice, now time.Time, local bool) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if !n.Verify() {
		return common.NewCoordErr("intent", common.AuthenticationFailure, n.InitiatorPub)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[n.IntentID]; ok {
		return nil
	}

	// The cap counts decided intents too: they stay tracked until the
	// retention window prunes them, and a flood of losing notices must not
	// grow the conflict set in the meantime.
	key := IntentKey(n.Action, n.Target)
	if len(m.intents[key]) >= MaxCompetingIntents {
		return common.NewCoordErr("intent", common.PolicyViolation, "conflict set full")
	}

	// An admitted intent is Held from the start: the hold period is the
	// window in which a competing notice can still knock it out.
	it := &Intent{
		Notice:    n.Copy(),
		State:     Held,
		ProposeAt: now,
		Local:     local,
	}

	m.intents[key] = append(m.intents[key], it)
	m.byID[n.IntentID] = it

	m.resolveLocked(key, now)

	return nil
}

// resolveLocked runs the deterministic tie-break over the live intents of one
// conflict key: the intent with the lexicographically smallest initiator
// identity survives, everyone else aborts. Every correct node evaluates the
// same rule over the same notices and reaches the same winner.
func (m *Manager) resolveLocked(key string, now time.Time) {
	var live []*Intent
	for _, it := range m.intents[key] {
		if it.State == Held {
			live = append(live, it)
		}
	}
	if len(live) <= 1 {
		return
	}

	sort.Slice(live, func(i, j int) bool {
		a, b := live[i].Notice, live[j].Notice
		if a.InitiatorPub != b.InitiatorPub {
			return a.InitiatorPub < b.InitiatorPub
		}
		return a.IntentID < b.IntentID
	})

	for _, it := range live[1:] {
		it.State = Aborted
		it.DecidedAt = now
		if it.Local {
			m.abortQueue = append(m.abortQueue, it.Notice.Copy())
		}
		m.logger.WithFields(logrus.Fields{
			"intent_id": it.Notice.IntentID,
			"winner":    live[0].Notice.IntentID,
		}).Debug("intent lost tie-break")
	}
}

// Tick advances intent lifecycles. Held intents whose hold period elapsed go
// through the commit gate: gate and transition happen under the same lock
// acquisition, so a notice arriving concurrently can never race a
// half-committed intent. Decided intents past the retention window are
// pruned. Returns the notices that committed on this tick, and the local
// notices that aborted since the last tick, for the node to act on after the
// lock is released.
func (m *Manager) Tick(now time.Time) (committed, aborted []*Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, its := range m.intents {
		kept := its[:0]
		for _, it := range its {
			if it.State == Held && now.Sub(it.ProposeAt) >= m.holdPeriod {
				if m.gate(it.Notice) {
					it.State = Committed
					it.DecidedAt = now
					committed = append(committed, it.Notice.Copy())
				} else {
					it.State = Aborted
					it.DecidedAt = now
					if it.Local {
						m.abortQueue = append(m.abortQueue, it.Notice.Copy())
					}
					m.logger.WithField("intent_id", it.Notice.IntentID).
						Debug("intent failed commit gate")
				}
			}

			if (it.State == Committed || it.State == Aborted) &&
				now.Sub(it.DecidedAt) > m.retention {
				delete(m.byID, it.Notice.IntentID)
				continue
			}
			kept = append(kept, it)
		}

		if len(kept) == 0 {
			delete(m.intents, key)
		} else {
			m.intents[key] = kept
		}
	}

	aborted = m.abortQueue
	m.abortQueue = nil

	return committed, aborted
}

// Abort retracts a tracked intent on its initiator's say-so: the loser of a
// conflict announces its abort so observers that never saw the competing
// notice do not sit on the dead intent until retention. Only the initiator
// may retract its own intent, and a committed intent stays committed.
func (m *Manager) Abort(intentID, initiatorPub string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[intentID]
	if !ok {
		return common.NewCoordErr("intent", common.KeyNotFound, intentID)
	}
	if it.Notice.InitiatorPub != initiatorPub {
		return common.NewCoordErr("intent", common.PolicyViolation, intentID)
	}

	switch it.State {
	case Aborted:
		return nil
	case Committed:
		return common.NewCoordErr("intent", common.ReplayRejected, intentID)
	}

	it.State = Aborted
	it.DecidedAt = now

	m.logger.WithField("intent_id", intentID).Debug("intent retracted")

	return nil
}

// Get returns the tracked intent for an ID, if known.
func (m *Manager) Get(intentID string) (*Intent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.byID[intentID]
	if !ok {
		return nil, false
	}
	c := *it
	c.Notice = it.Notice.Copy()
	return &c, true
}

// Pending returns copies of all undecided intents, sorted by IntentID.
func (m *Manager) Pending() []*Intent {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []*Intent
	for _, its := range m.intents {
		for _, it := range its {
			if it.State == Held {
				c := *it
				c.Notice = it.Notice.Copy()
				res = append(res, &c)
			}
		}
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Notice.IntentID < res[j].Notice.IntentID
	})

	return res
}

// Len returns the number of tracked intents, decided ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.byID)
}
