package node

import (
	"math/rand"
	"sync"

	"github.com/hivemesh/hive/src/members"
)

// PeerSelector provides an interface for selecting the next gossip partner.
type PeerSelector interface {
	Next() *members.Record
	UpdateLast(peer string)
}

// RandomPeerSelector selects gossip partners uniformly at random from the
// reachable, non-banned records in the registry, avoiding the immediately
// preceding partner.
type RandomPeerSelector struct {
	sync.Mutex
	registry *members.Registry
	selfPub  string
	last     string
}

// NewRandomPeerSelector ...
func NewRandomPeerSelector(registry *members.Registry, selfPub string) *RandomPeerSelector {
	return &RandomPeerSelector{
		registry: registry,
		selfPub:  selfPub,
	}
}

// UpdateLast sets the last gossip partner, which is excluded from the next
// pick when there are alternatives.
func (p *RandomPeerSelector) UpdateLast(peer string) {
	p.Lock()
	defer p.Unlock()

	p.last = peer
}

// Next implements the PeerSelector interface.
func (p *RandomPeerSelector) Next() *members.Record {
	p.Lock()
	defer p.Unlock()

	candidates := []*members.Record{}
	fallback := []*members.Record{}
	for _, rec := range p.registry.Members() {
		if rec.Banned || rec.NetAddr == "" || rec.PubKeyHex == p.selfPub {
			continue
		}
		fallback = append(fallback, rec)
		if rec.PubKeyHex != p.last {
			candidates = append(candidates, rec)
		}
	}

	if len(candidates) == 0 {
		candidates = fallback
	}
	if len(candidates) == 0 {
		return nil
	}

	return candidates[rand.Intn(len(candidates))]
}
