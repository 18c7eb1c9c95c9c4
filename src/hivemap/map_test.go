package hivemap

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

func testMap(t *testing.T) *Map {
	return NewMap(3, time.Second, common.NewTestEntry(t, "hivemap"))
}

func signedEntry(t *testing.T, key *ecdsa.PrivateKey, version uint64) *Entry {
	e := &Entry{
		PeerPub:      keys.PublicKeyHex(&key.PublicKey),
		Version:      version,
		CapacityMsat: 1000 * version,
		FeePPM:       100,
		Channels:     []string{"chan0"},
	}
	if err := e.Sign(key); err != nil {
		t.Fatal(err)
	}
	return e
}

func memberAll(string) bool  { return true }
func memberNone(string) bool { return false }

func TestMapApply(t *testing.T) {
	m := testMap(t)
	key, _ := keys.GenerateECDSAKey()
	pub := keys.PublicKeyHex(&key.PublicKey)

	if err := m.Apply(signedEntry(t, key, 1), "sender", memberAll); err != nil {
		t.Fatal(err)
	}

	got, ok := m.Get(pub)
	if !ok || got.Version != 1 {
		t.Fatalf("entry should be stored at version 1, got %#v", got)
	}
}

func TestMapMonotonicMerge(t *testing.T) {
	m := testMap(t)
	key, _ := keys.GenerateECDSAKey()
	pub := keys.PublicKeyHex(&key.PublicKey)

	v1 := signedEntry(t, key, 1)
	v2 := signedEntry(t, key, 2)

	// newer first, then the stale one: the stale one is rejected
	if err := m.Apply(v2, "sender", memberAll); err != nil {
		t.Fatal(err)
	}
	if err := m.Apply(v1, "sender", memberAll); !common.IsCoord(err, common.ReplayRejected) {
		t.Fatalf("stale version: expected ReplayRejected, got %v", err)
	}

	// replay of the current version is also rejected
	if err := m.Apply(v2, "sender", memberAll); !common.IsCoord(err, common.ReplayRejected) {
		t.Fatalf("equal version: expected ReplayRejected, got %v", err)
	}

	got, _ := m.Get(pub)
	if got.Version != 2 {
		t.Fatalf("version should be 2, not %d", got.Version)
	}
}

func TestMapOrderIndependence(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()
	pub := keys.PublicKeyHex(&key.PublicKey)

	v1 := signedEntry(t, key, 1)
	v2 := signedEntry(t, key, 2)

	forward := testMap(t)
	forward.Apply(v1, "sender", memberAll)
	forward.Apply(v2, "sender", memberAll)

	backward := testMap(t)
	backward.Apply(v2, "sender", memberAll)
	backward.Apply(v1, "sender", memberAll)

	f, _ := forward.Get(pub)
	b, _ := backward.Get(pub)
	if f.Version != b.Version || f.CapacityMsat != b.CapacityMsat {
		t.Fatalf("delivery order should not matter \n%#v \n%#v", f, b)
	}
}

func TestMapRejectsNonMemberSender(t *testing.T) {
	m := testMap(t)
	key, _ := keys.GenerateECDSAKey()

	err := m.Apply(signedEntry(t, key, 1), "sender", memberNone)
	if !common.IsCoord(err, common.PolicyViolation) {
		t.Fatalf("expected PolicyViolation, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatal("rejected entry should not be stored")
	}
}

func TestMapRejectsBadSignature(t *testing.T) {
	m := testMap(t)
	key, _ := keys.GenerateECDSAKey()

	e := signedEntry(t, key, 1)
	e.CapacityMsat++

	err := m.Apply(e, "sender", memberAll)
	if !common.IsCoord(err, common.AuthenticationFailure) {
		t.Fatalf("expected AuthenticationFailure, got %v", err)
	}
}

func TestMapValidateBounds(t *testing.T) {
	m := testMap(t)
	key, _ := keys.GenerateECDSAKey()

	e := signedEntry(t, key, 1)
	e.Channels = make([]string, MaxTopologyHints+1)

	err := m.Apply(e, "sender", memberAll)
	if !common.IsCoord(err, common.MalformedFrame) {
		t.Fatalf("expected MalformedFrame, got %v", err)
	}
}

func TestMapApplyBatch(t *testing.T) {
	m := testMap(t)

	key1, _ := keys.GenerateECDSAKey()
	key2, _ := keys.GenerateECDSAKey()

	good1 := signedEntry(t, key1, 1)
	good2 := signedEntry(t, key2, 1)
	bad := signedEntry(t, key2, 2)
	bad.FeePPM++

	// a bad entry mid-batch does not abort the rest
	applied := m.ApplyBatch([]*Entry{good1, bad, good2}, "sender", memberAll)
	if applied != 2 {
		t.Fatalf("2 entries should apply, not %d", applied)
	}
	if m.Len() != 2 {
		t.Fatalf("map should hold 2 entries, not %d", m.Len())
	}
}

func TestMapDigestDiff(t *testing.T) {
	m := testMap(t)

	key1, _ := keys.GenerateECDSAKey()
	key2, _ := keys.GenerateECDSAKey()
	pub1 := keys.PublicKeyHex(&key1.PublicKey)

	m.Apply(signedEntry(t, key1, 3), "sender", memberAll)
	m.Apply(signedEntry(t, key2, 1), "sender", memberAll)

	digest := m.Digest()
	if len(digest) != 2 || digest[pub1] != 3 {
		t.Fatalf("digest should carry both versions, got %#v", digest)
	}

	// a remote that has pub1 up to date only needs pub2's entry
	remote := map[string]uint64{pub1: 3}
	diff := m.Diff(remote, 0)
	if len(diff) != 1 || diff[0].PeerPub == pub1 {
		t.Fatalf("diff should contain only the stale entry, got %#v", diff)
	}

	// a remote with everything needs nothing
	if diff := m.Diff(m.Digest(), 0); len(diff) != 0 {
		t.Fatalf("diff against own digest should be empty, got %d entries", len(diff))
	}

	// limit caps the response
	if diff := m.Diff(nil, 1); len(diff) != 1 {
		t.Fatalf("limited diff should carry 1 entry, got %d", len(diff))
	}
}

func TestMapRateLimit(t *testing.T) {
	m := testMap(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !m.AllowSender("peer", now) {
			t.Fatalf("push %d should be allowed", i)
		}
	}
	if m.AllowSender("peer", now) {
		t.Fatal("burst exhausted, push should be dropped")
	}

	// other senders have their own budget
	if !m.AllowSender("other", now) {
		t.Fatal("rate limit should be per-sender")
	}

	// a new window resets the budget
	if !m.AllowSender("peer", now.Add(2*time.Second)) {
		t.Fatal("new window should reset the budget")
	}

	m.SweepBuckets(now.Add(5 * time.Second))
}

func TestMapSeed(t *testing.T) {
	m := testMap(t)
	key, _ := keys.GenerateECDSAKey()
	pub := keys.PublicKeyHex(&key.PublicKey)

	good := signedEntry(t, key, 2)
	bad := signedEntry(t, key, 3)
	bad.UptimeSecs++

	// seeding checks subject signatures but not sender standing
	if applied := m.Seed([]*Entry{good, bad}); applied != 1 {
		t.Fatalf("1 entry should seed, not %d", applied)
	}

	got, _ := m.Get(pub)
	if got.Version != 2 {
		t.Fatalf("seeded version should be 2, not %d", got.Version)
	}
}

func TestMapTotalCapacity(t *testing.T) {
	m := testMap(t)

	key1, _ := keys.GenerateECDSAKey()
	key2, _ := keys.GenerateECDSAKey()

	m.Apply(signedEntry(t, key1, 2), "sender", memberAll)
	m.Apply(signedEntry(t, key2, 3), "sender", memberAll)

	if got := m.TotalCapacity(); got != 5000 {
		t.Fatalf("total capacity should be 5000, not %d", got)
	}
}
