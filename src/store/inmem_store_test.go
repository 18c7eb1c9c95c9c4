package store

import (
	"testing"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
	"github.com/hivemesh/hive/src/hivemap"
	"github.com/hivemesh/hive/src/intent"
	"github.com/hivemesh/hive/src/members"
)

func testPubHex(t testing.TB) string {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	return keys.PublicKeyHex(&key.PublicKey)
}

func testRecords(t *testing.T, s Store) {
	pub := testPubHex(t)

	if _, err := s.GetRecord(pub); !common.IsCoord(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	rec := members.NewRecord(pub, "node0", "127.0.0.1:1337", 100)
	rec.Tier = members.Member
	if err := s.SaveRecord(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRecord(pub)
	if err != nil {
		t.Fatal(err)
	}
	if got.Moniker != "node0" || got.Tier != members.Member {
		t.Fatalf("stored record should match, got %#v", got)
	}

	// save is an overwrite
	rec.Tier = members.Admin
	s.SaveRecord(rec)
	got, _ = s.GetRecord(pub)
	if got.Tier != members.Admin {
		t.Fatalf("record should be overwritten, got tier %s", got.Tier)
	}

	all, err := s.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("store should hold 1 record, not %d", len(all))
	}
}

func testEntries(t *testing.T, s Store) {
	key, _ := keys.GenerateECDSAKey()
	pub := keys.PublicKeyHex(&key.PublicKey)

	if _, err := s.GetEntry(pub); !common.IsCoord(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	e := &hivemap.Entry{
		PeerPub:      pub,
		Version:      3,
		CapacityMsat: 5000,
		FeePPM:       100,
		Channels:     []string{"chan0", "chan1"},
	}
	if err := e.Sign(key); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveEntry(e); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEntry(pub)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 3 || got.CapacityMsat != 5000 || len(got.Channels) != 2 {
		t.Fatalf("stored entry should match, got %#v", got)
	}
	if !got.Verify() {
		t.Fatal("entry signature should survive the store")
	}

	all, err := s.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("store should hold 1 entry, not %d", len(all))
	}
}

func testIntents(t *testing.T, s Store) {
	key, _ := keys.GenerateECDSAKey()

	if _, err := s.GetIntent("id-1"); !common.IsCoord(err, common.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	n := &intent.Notice{
		IntentID:     "id-1",
		InitiatorPub: keys.PublicKeyHex(&key.PublicKey),
		Action:       "ban",
		Target:       testPubHex(t),
		ProposedAt:   100,
	}
	if err := n.Sign(key); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveIntent(n); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetIntent("id-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != "ban" || !got.Verify() {
		t.Fatalf("stored notice should match and verify, got %#v", got)
	}

	all, err := s.Intents()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("store should hold 1 intent, not %d", len(all))
	}
}

func TestInmemStore(t *testing.T) {
	s := NewInmemStore()
	defer s.Close()

	testRecords(t, s)
	testEntries(t, s)
	testIntents(t, s)
}
