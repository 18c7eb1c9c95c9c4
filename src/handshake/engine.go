package handshake

import (
	"sync"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/members"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// Session is an established, authenticated peering.
type Session struct {
	PeerPub       string
	EstablishedAt time.Time
	LastSeen      time.Time
}

// pendingChallenge is a challenge issued but not yet answered.
type pendingChallenge struct {
	challenge *Challenge
	ticket    *members.Ticket
	moniker   string
	netAddr   string
}

// Engine drives the admission handshake and owns the session table. The
// pending-challenge table is an LRU of fixed capacity: a flood of Hellos
// evicts the oldest outstanding challenges instead of growing memory, and
// evicted peers simply restart their handshake.
type Engine struct {
	mu sync.Mutex

	registry    *members.Registry
	pending     *lru.Cache
	usedTickets *lru.Cache
	sessions    map[string]*Session

	challengeTTL time.Duration
	sessionTTL   time.Duration

	logger *logrus.Entry
}

// NewEngine creates a handshake Engine bound to the membership registry.
func NewEngine(
	registry *members.Registry,
	pendingSize int,
	usedTicketSize int,
	challengeTTL time.Duration,
	sessionTTL time.Duration,
	logger *logrus.Entry,
) (*Engine, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	pending, err := lru.New(pendingSize)
	if err != nil {
		return nil, err
	}

	usedTickets, err := lru.New(usedTicketSize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		registry:     registry,
		pending:      pending,
		usedTickets:  usedTickets,
		sessions:     make(map[string]*Session),
		challengeTTL: challengeTTL,
		sessionTTL:   sessionTTL,
		logger:       logger,
	}, nil
}

// Hello processes a peer's opening message and returns the challenge it must
// sign. The ticket is checked structurally here; single-use marking waits
// until the attestation succeeds, so a peer that loses its challenge to
// eviction can retry with the same ticket.
func (e *Engine) Hello(
	claimedPub string,
	moniker string,
	netAddr string,
	ticket *members.Ticket,
	now time.Time,
) (*Challenge, error) {
	if rec, ok := e.registry.Get(claimedPub); ok && rec.Banned {
		return nil, common.NewCoordErr("handshake", common.PolicyViolation, claimedPub)
	}

	if ticket == nil {
		return nil, common.NewCoordErr("handshake", common.AuthenticationFailure, "missing ticket")
	}

	if err := e.checkTicket(claimedPub, ticket, now); err != nil {
		return nil, err
	}

	challenge, err := NewChallenge(now)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending.Add(claimedPub, &pendingChallenge{
		challenge: challenge,
		ticket:    ticket,
		moniker:   moniker,
		netAddr:   netAddr,
	})

	return challenge, nil
}

// checkTicket enforces ticket semantics: a valid issuer signature, an
// unexpired validity window, a matching invitee, an issuer in good standing,
// and no prior use. Reconnecting members self-issue, so issuer == invitee is
// acceptable when the issuer already holds member standing.
func (e *Engine) checkTicket(claimedPub string, ticket *members.Ticket, now time.Time) error {
	if !ticket.Verify() {
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "bad ticket signature")
	}
	if ticket.Expired(now.Unix()) {
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "expired ticket")
	}
	if ticket.InviteePub != claimedPub {
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "ticket invitee mismatch")
	}

	issuer, ok := e.registry.Get(ticket.IssuerPub)
	if !ok || !issuer.CanVouch() {
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "issuer not in good standing")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, used := e.usedTickets.Get(ticket.NonceHex()); used {
		return common.NewCoordErr("handshake", common.ReplayRejected, "ticket already used")
	}

	return nil
}

// Attest processes the signed challenge answer. On success the ticket is
// burned, a session is established, and a previously unknown peer enters the
// registry as a neophyte.
func (e *Engine) Attest(att *Attestation, now time.Time) error {
	if err := att.Validate(); err != nil {
		return err
	}

	e.mu.Lock()

	v, ok := e.pending.Get(att.PeerPub)
	if !ok {
		e.mu.Unlock()
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "no outstanding challenge")
	}
	pc := v.(*pendingChallenge)

	if now.Unix()-pc.challenge.IssuedAt > int64(e.challengeTTL/time.Second) {
		e.pending.Remove(att.PeerPub)
		e.mu.Unlock()
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "challenge expired")
	}

	if pc.challenge.NonceHex() != common.EncodeToString(att.Nonce) {
		e.mu.Unlock()
		return common.NewCoordErr("handshake", common.AuthenticationFailure, "nonce mismatch")
	}

	e.mu.Unlock()

	// Signature verification is the expensive step; it runs unlocked.
	if !att.Verify() {
		return common.NewCoordErr("handshake", common.AuthenticationFailure, att.PeerPub)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, used := e.usedTickets.Get(pc.ticket.NonceHex()); used {
		return common.NewCoordErr("handshake", common.ReplayRejected, "ticket already used")
	}
	e.usedTickets.Add(pc.ticket.NonceHex(), now)
	e.pending.Remove(att.PeerPub)

	e.sessions[att.PeerPub] = &Session{
		PeerPub:       att.PeerPub,
		EstablishedAt: now,
		LastSeen:      now,
	}

	if _, known := e.registry.Get(att.PeerPub); !known {
		rec := members.NewRecord(att.PeerPub, pc.moniker, pc.netAddr, now.Unix())
		if err := e.registry.Add(rec); err != nil {
			return err
		}
	}
	e.registry.Touch(att.PeerPub, now.Unix())

	e.logger.WithField("peer", att.PeerPub).Debug("session established")

	return nil
}

// Authenticated reports whether the peer holds a live session, and refreshes
// its activity timestamp if so.
func (e *Engine) Authenticated(pubKeyHex string, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[pubKeyHex]
	if !ok {
		return false
	}
	if now.Sub(s.LastSeen) > e.sessionTTL {
		delete(e.sessions, pubKeyHex)
		return false
	}
	s.LastSeen = now
	return true
}

// Revoke drops a peer's session. Used on ban and on voluntary departure.
func (e *Engine) Revoke(pubKeyHex string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sessions, pubKeyHex)
}

// Sessions returns the number of live sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.sessions)
}

// Sweep expires idle sessions and stale outstanding challenges. Called from
// the node's periodic eviction pass.
func (e *Engine) Sweep(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for pub, s := range e.sessions {
		if now.Sub(s.LastSeen) > e.sessionTTL {
			delete(e.sessions, pub)
		}
	}

	for _, k := range e.pending.Keys() {
		if v, ok := e.pending.Peek(k); ok {
			pc := v.(*pendingChallenge)
			if now.Unix()-pc.challenge.IssuedAt > int64(e.challengeTTL/time.Second) {
				e.pending.Remove(k)
			}
		}
	}
}
