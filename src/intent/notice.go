package intent

import (
	"crypto/ecdsa"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

// Notice is the wire-visible announcement of an intent. It is signed by the
// initiator and identified by a unique IntentID; replays of the same ID are
// idempotent no-ops on every receiver.
type Notice struct {
	IntentID     string
	InitiatorPub string
	Action       string
	Target       string
	ProposedAt   int64
	Sig          []byte
}

// CanonicalBytes is the deterministic encoding covered by the notice
// signature.
func (n *Notice) CanonicalBytes() []byte {
	b := []byte("hive-intent")
	b = common.AppendString(b, n.IntentID)
	b = common.AppendString(b, n.InitiatorPub)
	b = common.AppendString(b, n.Action)
	b = common.AppendString(b, n.Target)
	b = common.AppendUint64(b, uint64(n.ProposedAt))
	return b
}

// Sign sets the notice signature with the initiator's key.
func (n *Notice) Sign(priv *ecdsa.PrivateKey) error {
	sig, err := keys.SignBytes(priv, n.CanonicalBytes())
	if err != nil {
		return err
	}
	n.Sig = sig
	return nil
}

// Verify checks the notice signature against the declared initiator key.
func (n *Notice) Verify() bool {
	pub, err := keys.ParsePublicKeyHex(n.InitiatorPub)
	if err != nil {
		return false
	}
	return keys.VerifyBytes(pub, n.CanonicalBytes(), n.Sig)
}

// Validate enforces per-field bounds before the notice reaches the manager.
func (n *Notice) Validate() error {
	if n.IntentID == "" {
		return common.NewCoordErr("intent", common.MalformedFrame, "empty intent id")
	}
	if n.InitiatorPub == "" {
		return common.NewCoordErr("intent", common.MalformedFrame, "empty initiator")
	}
	if n.Action == "" || n.Target == "" {
		return common.NewCoordErr("intent", common.MalformedFrame, "empty action or target")
	}
	if len(n.Sig) != keys.SignatureSize {
		return common.NewCoordErr("intent", common.MalformedFrame, "bad signature size")
	}
	return nil
}

// Copy returns a deep copy of the notice.
func (n *Notice) Copy() *Notice {
	c := *n
	if n.Sig != nil {
		c.Sig = append([]byte{}, n.Sig...)
	}
	return &c
}
