// Package handshake implements the authenticated admission protocol. A peer
// proves control of its claimed key by signing a fresh random challenge, and
// proves sponsorship with a single-use admission ticket. Only peers that
// complete the handshake get a session; every other protocol surface checks
// the session before doing any work.
package handshake

import (
	"crypto/rand"
	"time"

	"github.com/hivemesh/hive/src/common"
)

// NonceSize is the size in bytes of a challenge nonce.
const NonceSize = 32

// Challenge is a fresh random nonce issued in response to a Hello. The peer
// must sign it within the challenge TTL or start over.
type Challenge struct {
	Nonce    []byte
	IssuedAt int64
}

// NewChallenge draws a fresh nonce from the system entropy source.
func NewChallenge(now time.Time) (*Challenge, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Challenge{
		Nonce:    nonce,
		IssuedAt: now.Unix(),
	}, nil
}

// NonceHex returns the nonce in the standard hex encoding.
func (c *Challenge) NonceHex() string {
	return common.EncodeToString(c.Nonce)
}
