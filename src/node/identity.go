package node

import (
	"crypto/ecdsa"

	"github.com/hivemesh/hive/src/crypto/keys"
)

// Identity encapsulates the node's digital identity: the key it signs frames
// with, and an optional moniker.
type Identity struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	id       uint32
	pubBytes []byte
	pubHex   string
}

// NewIdentity is a factory method for an Identity
func NewIdentity(key *ecdsa.PrivateKey, moniker string) *Identity {
	return &Identity{
		Key:     key,
		Moniker: moniker,
	}
}

// ID returns the identity's unique numeric ID which is derived from its key
func (v *Identity) ID() uint32 {
	if v.id == 0 {
		v.id = keys.PublicKeyID(v.PublicKeyBytes())
	}
	return v.id
}

// PublicKeyBytes returns the identity's public key as a byte slice
func (v *Identity) PublicKeyBytes() []byte {
	if v.pubBytes == nil {
		v.pubBytes = keys.FromPublicKey(&v.Key.PublicKey)
	}
	return v.pubBytes
}

// PublicKeyHex returns the identity's public key as a hex string
func (v *Identity) PublicKeyHex() string {
	if v.pubHex == "" {
		v.pubHex = keys.PublicKeyHex(&v.Key.PublicKey)
	}
	return v.pubHex
}
