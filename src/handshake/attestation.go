package handshake

import (
	"crypto/ecdsa"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

// Attestation is the peer's answer to a challenge: the nonce signed with the
// key it claimed in its Hello. A valid attestation proves the peer holds the
// private half of the claimed identity.
type Attestation struct {
	PeerPub string
	Nonce   []byte
	Sig     []byte
}

// CanonicalBytes is the deterministic encoding covered by the attestation
// signature.
func (a *Attestation) CanonicalBytes() []byte {
	b := []byte("hive-attest")
	b = common.AppendString(b, a.PeerPub)
	b = common.AppendBytes(b, a.Nonce)
	return b
}

// Sign sets the attestation signature.
func (a *Attestation) Sign(priv *ecdsa.PrivateKey) error {
	sig, err := keys.SignBytes(priv, a.CanonicalBytes())
	if err != nil {
		return err
	}
	a.Sig = sig
	return nil
}

// Verify checks the attestation signature against the claimed key.
func (a *Attestation) Verify() bool {
	pub, err := keys.ParsePublicKeyHex(a.PeerPub)
	if err != nil {
		return false
	}
	return keys.VerifyBytes(pub, a.CanonicalBytes(), a.Sig)
}

// Validate enforces per-field bounds at the decode boundary.
func (a *Attestation) Validate() error {
	if a.PeerPub == "" {
		return common.NewCoordErr("handshake", common.MalformedFrame, "empty identity")
	}
	if len(a.Nonce) != NonceSize {
		return common.NewCoordErr("handshake", common.MalformedFrame, "bad nonce size")
	}
	if len(a.Sig) != keys.SignatureSize {
		return common.NewCoordErr("handshake", common.MalformedFrame, "bad signature size")
	}
	return nil
}
