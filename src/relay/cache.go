// Package relay implements the dedup layer that keeps gossip re-broadcasts
// from turning into storms. Every frame that is a candidate for forwarding is
// fingerprinted; a fingerprint seen recently means the frame has already been
// relayed and is dropped silently. The cache is bounded both by capacity
// (LRU) and by a TTL, so sustained gossip traffic can never grow it without
// bound.
package relay

import (
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto"
	lru "github.com/hashicorp/golang-lru"
)

// Cache is the bounded recently-forwarded cache.
type Cache struct {
	seen *lru.Cache
	ttl  time.Duration
}

// NewCache creates a Cache with the given capacity and entry TTL.
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	seen, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		seen: seen,
		ttl:  ttl,
	}, nil
}

// Fingerprint derives the content fingerprint of a frame: hash of sender,
// type tag, and payload. Two frames with the same fingerprint carry the same
// information, whatever path they took through the gossip topology.
func Fingerprint(senderPub string, frameType uint16, payload []byte) string {
	b := []byte{}
	b = common.AppendString(b, senderPub)
	b = common.AppendUint16(b, frameType)
	b = append(b, payload...)
	return common.EncodeToString(crypto.SHA256(b))
}

// Seen records the fingerprint and reports whether it was already present and
// unexpired. The first caller for a given fingerprint gets false and should
// forward; everyone after gets true and should drop.
func (c *Cache) Seen(fingerprint string, now time.Time) bool {
	if v, ok := c.seen.Get(fingerprint); ok {
		if now.Sub(v.(time.Time)) <= c.ttl {
			return true
		}
	}
	c.seen.Add(fingerprint, now)
	return false
}

// Len returns the number of fingerprints currently cached.
func (c *Cache) Len() int {
	return c.seen.Len()
}

// Sweep removes expired fingerprints. The LRU already bounds capacity; the
// sweep bounds lifetime.
func (c *Cache) Sweep(now time.Time) {
	for _, k := range c.seen.Keys() {
		if v, ok := c.seen.Peek(k); ok {
			if now.Sub(v.(time.Time)) > c.ttl {
				c.seen.Remove(k)
			}
		}
	}
}
