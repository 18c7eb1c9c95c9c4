package handshake

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
	"github.com/hivemesh/hive/src/members"
)

func testEngine(t *testing.T, pendingSize int) (*Engine, *members.Registry) {
	registry := members.NewRegistry()

	engine, err := NewEngine(
		registry,
		pendingSize,
		128,
		5*time.Second,
		time.Minute,
		common.NewTestEntry(t, "handshake"),
	)
	if err != nil {
		t.Fatal(err)
	}
	return engine, registry
}

func addMember(t *testing.T, registry *members.Registry, tier members.Tier) *ecdsa.PrivateKey {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	rec := members.NewRecord(keys.PublicKeyHex(&key.PublicKey), "", "", 0)
	rec.Tier = tier
	if err := registry.Add(rec); err != nil {
		t.Fatal(err)
	}
	return key
}

func issueTicket(t *testing.T, issuer *ecdsa.PrivateKey, inviteePub string, now time.Time) *members.Ticket {
	ticket, err := members.NewTicket(issuer, inviteePub, now.Unix(), now.Add(time.Hour).Unix())
	if err != nil {
		t.Fatal(err)
	}
	return ticket
}

func attest(t *testing.T, key *ecdsa.PrivateKey, challenge *Challenge) *Attestation {
	att := &Attestation{
		PeerPub: keys.PublicKeyHex(&key.PublicKey),
		Nonce:   challenge.Nonce,
	}
	if err := att.Sign(key); err != nil {
		t.Fatal(err)
	}
	return att
}

func TestHandshake(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	challenge, err := engine.Hello(peerPub, "node1", "127.0.0.1:1338", ticket, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(challenge.Nonce) != NonceSize {
		t.Fatalf("nonce size should be %d, not %d", NonceSize, len(challenge.Nonce))
	}

	if err := engine.Attest(attest(t, peerKey, challenge), now); err != nil {
		t.Fatal(err)
	}

	if !engine.Authenticated(peerPub, now) {
		t.Fatal("peer should hold a session after attesting")
	}

	rec, ok := registry.Get(peerPub)
	if !ok {
		t.Fatal("peer should have entered the registry")
	}
	if rec.Tier != members.Neophyte {
		t.Fatalf("new peer should be a neophyte, not %s", rec.Tier)
	}
	if rec.Moniker != "node1" || rec.NetAddr != "127.0.0.1:1338" {
		t.Fatalf("record should carry the hello facts, got %#v", rec)
	}
}

func TestHandshakeTicketReplay(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	challenge, err := engine.Hello(peerPub, "", "", ticket, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Attest(attest(t, peerKey, challenge), now); err != nil {
		t.Fatal(err)
	}

	// the ticket is burned; a second handshake with it must fail
	_, err = engine.Hello(peerPub, "", "", ticket, now)
	if !common.IsCoord(err, common.ReplayRejected) {
		t.Fatalf("expected ReplayRejected, got %v", err)
	}
}

func TestHandshakeTicketSemantics(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)
	neophyte := addMember(t, registry, members.Neophyte)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)

	// missing ticket
	if _, err := engine.Hello(peerPub, "", "", nil, now); !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("missing ticket: expected AuthenticationFailure, got %v", err)
	}

	// expired ticket
	expired, _ := members.NewTicket(issuer, peerPub, now.Add(-2*time.Hour).Unix(), now.Add(-time.Hour).Unix())
	if _, err := engine.Hello(peerPub, "", "", expired, now); !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("expired ticket: expected AuthenticationFailure, got %v", err)
	}

	// ticket issued for somebody else
	other := issueTicket(t, issuer, testPubHex(t), now)
	if _, err := engine.Hello(peerPub, "", "", other, now); !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("invitee mismatch: expected AuthenticationFailure, got %v", err)
	}

	// issuer without vouching standing
	fromNeophyte := issueTicket(t, neophyte, peerPub, now)
	if _, err := engine.Hello(peerPub, "", "", fromNeophyte, now); !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("neophyte issuer: expected AuthenticationFailure, got %v", err)
	}

	// unknown issuer
	unknown, _ := keys.GenerateECDSAKey()
	fromUnknown := issueTicket(t, unknown, peerPub, now)
	if _, err := engine.Hello(peerPub, "", "", fromUnknown, now); !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("unknown issuer: expected AuthenticationFailure, got %v", err)
	}
}

func TestHandshakeBannedPeer(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	registry.Add(members.NewRecord(peerPub, "", "", 0))
	registry.Ban(peerPub)

	ticket := issueTicket(t, issuer, peerPub, now)
	if _, err := engine.Hello(peerPub, "", "", ticket, now); !common.IsCoord(err, common.PolicyViolation) {
		t.Fatalf("banned peer: expected PolicyViolation, got %v", err)
	}
}

func TestHandshakeChallengeExpiry(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	challenge, err := engine.Hello(peerPub, "", "", ticket, now)
	if err != nil {
		t.Fatal(err)
	}

	late := now.Add(6 * time.Second)
	err = engine.Attest(attest(t, peerKey, challenge), late)
	if !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("expired challenge: expected AuthenticationFailure, got %v", err)
	}

	// the challenge is gone; even a timely retry needs a fresh Hello
	err = engine.Attest(attest(t, peerKey, challenge), now)
	if !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("expected AuthenticationFailure, got %v", err)
	}
}

func TestHandshakeWrongNonce(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	if _, err := engine.Hello(peerPub, "", "", ticket, now); err != nil {
		t.Fatal(err)
	}

	forged, _ := NewChallenge(now)
	err := engine.Attest(attest(t, peerKey, forged), now)
	if !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("wrong nonce: expected AuthenticationFailure, got %v", err)
	}
}

func TestHandshakeFloodEviction(t *testing.T) {
	// pending table of capacity 2; a third Hello evicts the first
	engine, registry := testEngine(t, 2)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	type peer struct {
		key       *ecdsa.PrivateKey
		pub       string
		ticket    *members.Ticket
		challenge *Challenge
	}

	peers := make([]*peer, 3)
	for i := range peers {
		key, _ := keys.GenerateECDSAKey()
		p := &peer{key: key, pub: keys.PublicKeyHex(&key.PublicKey)}
		p.ticket = issueTicket(t, issuer, p.pub, now)

		challenge, err := engine.Hello(p.pub, "", "", p.ticket, now)
		if err != nil {
			t.Fatal(err)
		}
		p.challenge = challenge
		peers[i] = p
	}

	// the first peer's challenge was evicted
	err := engine.Attest(attest(t, peers[0].key, peers[0].challenge), now)
	if !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("evicted challenge: expected AuthenticationFailure, got %v", err)
	}

	// its ticket was never burned, so a full retry succeeds
	challenge, err := engine.Hello(peers[0].pub, "", "", peers[0].ticket, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Attest(attest(t, peers[0].key, challenge), now); err != nil {
		t.Fatal(err)
	}

	// the survivors of the flood complete normally
	if err := engine.Attest(attest(t, peers[2].key, peers[2].challenge), now); err != nil {
		t.Fatal(err)
	}
}

func TestSessionExpiry(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	challenge, _ := engine.Hello(peerPub, "", "", ticket, now)
	if err := engine.Attest(attest(t, peerKey, challenge), now); err != nil {
		t.Fatal(err)
	}

	if !engine.Authenticated(peerPub, now.Add(30*time.Second)) {
		t.Fatal("session should survive within its TTL")
	}

	// Authenticated refreshed LastSeen; idle past the TTL from there expires
	if engine.Authenticated(peerPub, now.Add(30*time.Second).Add(2*time.Minute)) {
		t.Fatal("idle session should expire")
	}
	if engine.Sessions() != 0 {
		t.Fatalf("expired session should be dropped, have %d", engine.Sessions())
	}
}

func TestRevoke(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	challenge, _ := engine.Hello(peerPub, "", "", ticket, now)
	if err := engine.Attest(attest(t, peerKey, challenge), now); err != nil {
		t.Fatal(err)
	}

	engine.Revoke(peerPub)
	if engine.Authenticated(peerPub, now) {
		t.Fatal("revoked peer should not be authenticated")
	}
}

func TestSweep(t *testing.T) {
	engine, registry := testEngine(t, 16)
	now := time.Now()

	issuer := addMember(t, registry, members.Member)

	peerKey, _ := keys.GenerateECDSAKey()
	peerPub := keys.PublicKeyHex(&peerKey.PublicKey)
	ticket := issueTicket(t, issuer, peerPub, now)

	challenge, _ := engine.Hello(peerPub, "", "", ticket, now)
	if err := engine.Attest(attest(t, peerKey, challenge), now); err != nil {
		t.Fatal(err)
	}

	engine.Sweep(now.Add(2 * time.Minute))
	if engine.Sessions() != 0 {
		t.Fatalf("sweep should expire idle sessions, have %d", engine.Sessions())
	}
}

func testPubHex(t testing.TB) string {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	return keys.PublicKeyHex(&key.PublicKey)
}
