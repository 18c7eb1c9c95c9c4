package hivemap

import (
	"crypto/ecdsa"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

// MaxTopologyHints bounds the number of topology hints carried by one entry.
// Enforced at decode time, before the entry reaches the merge logic.
const MaxTopologyHints = 64

// Entry is one row of the hive map: the shared facts one peer publishes about
// itself. There is exactly one entry per known peer, keyed by the subject's
// identity, and it is only ever replaced by a strictly newer version signed
// by the subject.
type Entry struct {
	PeerPub      string
	Version      uint64
	CapacityMsat uint64
	FeePPM       uint32
	UptimeSecs   uint64
	Channels     []string
	Sig          []byte
}

// CanonicalBytes is the deterministic encoding covered by the entry
// signature. Field order: tag, subject, version, capacity, fee, uptime,
// channel hints in declared order.
func (e *Entry) CanonicalBytes() []byte {
	b := []byte("hive-state")
	b = common.AppendString(b, e.PeerPub)
	b = common.AppendUint64(b, e.Version)
	b = common.AppendUint64(b, e.CapacityMsat)
	b = common.AppendUint32(b, e.FeePPM)
	b = common.AppendUint64(b, e.UptimeSecs)
	b = common.AppendUint16(b, uint16(len(e.Channels)))
	for _, c := range e.Channels {
		b = common.AppendString(b, c)
	}
	return b
}

// Sign sets the entry signature. The key must belong to PeerPub: entries are
// only ever signed by their subject.
func (e *Entry) Sign(priv *ecdsa.PrivateKey) error {
	sig, err := keys.SignBytes(priv, e.CanonicalBytes())
	if err != nil {
		return err
	}
	e.Sig = sig
	return nil
}

// Verify checks the entry signature against the subject's declared key.
func (e *Entry) Verify() bool {
	pub, err := keys.ParsePublicKeyHex(e.PeerPub)
	if err != nil {
		return false
	}
	return keys.VerifyBytes(pub, e.CanonicalBytes(), e.Sig)
}

// Validate enforces per-field bounds. It runs at the decode boundary so the
// merge logic never sees an out-of-bounds entry.
func (e *Entry) Validate() error {
	if e.PeerPub == "" {
		return common.NewCoordErr("entry", common.MalformedFrame, "empty subject")
	}
	if len(e.Sig) != keys.SignatureSize {
		return common.NewCoordErr("entry", common.MalformedFrame, "bad signature size")
	}
	if len(e.Channels) > MaxTopologyHints {
		return common.NewCoordErr("entry", common.MalformedFrame, "too many topology hints")
	}
	return nil
}

// Copy returns a deep copy of the entry.
func (e *Entry) Copy() *Entry {
	c := *e
	if e.Channels != nil {
		c.Channels = append([]string{}, e.Channels...)
	}
	if e.Sig != nil {
		c.Sig = append([]byte{}, e.Sig...)
	}
	return &c
}
