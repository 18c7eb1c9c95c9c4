package node

import (
	"testing"

	"github.com/hivemesh/hive/src/members"
)

func selectorRegistry(t *testing.T, pubs []string) *members.Registry {
	registry := members.NewRegistry()
	for _, pub := range pubs {
		rec := members.NewRecord(pub, "", "addr-"+pub, 0)
		if err := registry.Add(rec); err != nil {
			t.Fatal(err)
		}
	}
	return registry
}

func TestRandomPeerSelectorExcludesSelf(t *testing.T) {
	registry := selectorRegistry(t, []string{"a", "b"})
	selector := NewRandomPeerSelector(registry, "a")

	for i := 0; i < 10; i++ {
		peer := selector.Next()
		if peer == nil || peer.PubKeyHex != "b" {
			t.Fatalf("selector should always pick b, got %#v", peer)
		}
	}
}

func TestRandomPeerSelectorAvoidsLast(t *testing.T) {
	registry := selectorRegistry(t, []string{"a", "b", "c"})
	selector := NewRandomPeerSelector(registry, "a")

	selector.UpdateLast("b")
	for i := 0; i < 10; i++ {
		peer := selector.Next()
		if peer.PubKeyHex == "b" {
			t.Fatal("selector should avoid the last partner when there are alternatives")
		}
	}
}

func TestRandomPeerSelectorFallsBackToLast(t *testing.T) {
	registry := selectorRegistry(t, []string{"a", "b"})
	selector := NewRandomPeerSelector(registry, "a")

	// b is the only candidate; excluding it would leave nobody
	selector.UpdateLast("b")
	peer := selector.Next()
	if peer == nil || peer.PubKeyHex != "b" {
		t.Fatalf("selector should fall back to the last partner, got %#v", peer)
	}
}

func TestRandomPeerSelectorSkipsUnreachable(t *testing.T) {
	registry := members.NewRegistry()
	registry.Add(members.NewRecord("a", "", "addr-a", 0))
	registry.Add(members.NewRecord("b", "", "", 0)) // no address
	banned := members.NewRecord("c", "", "addr-c", 0)
	registry.Add(banned)
	registry.Ban("c")

	selector := NewRandomPeerSelector(registry, "self")
	for i := 0; i < 10; i++ {
		peer := selector.Next()
		if peer == nil || peer.PubKeyHex != "a" {
			t.Fatalf("selector should only pick a, got %#v", peer)
		}
	}
}

func TestRandomPeerSelectorEmpty(t *testing.T) {
	registry := members.NewRegistry()
	selector := NewRandomPeerSelector(registry, "self")

	if peer := selector.Next(); peer != nil {
		t.Fatalf("empty registry should yield no peer, got %#v", peer)
	}
}
