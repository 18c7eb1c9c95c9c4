package members

import (
	"crypto/ecdsa"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

// Vouch is a signed attestation by a member supporting another peer's
// promotion. The signature covers the request id and the timestamp, which
// binds the vouch to one promotion round and prevents replay across rounds.
type Vouch struct {
	TargetPub  string
	RequestID  string
	VoucherPub string
	Timestamp  int64
	Sig        []byte
}

// NewVouch ...
func NewVouch(targetPub, requestID, voucherPub string, timestamp int64) *Vouch {
	return &Vouch{
		TargetPub:  targetPub,
		RequestID:  requestID,
		VoucherPub: voucherPub,
		Timestamp:  timestamp,
	}
}

// CanonicalBytes is the deterministic encoding covered by the vouch
// signature. Field order: tag, target, request id, voucher, timestamp.
func (v *Vouch) CanonicalBytes() []byte {
	b := []byte("hive-vouch")
	b = common.AppendString(b, v.TargetPub)
	b = common.AppendString(b, v.RequestID)
	b = common.AppendString(b, v.VoucherPub)
	b = common.AppendUint64(b, uint64(v.Timestamp))
	return b
}

// Sign sets the vouch signature. The key must belong to VoucherPub.
func (v *Vouch) Sign(priv *ecdsa.PrivateKey) error {
	sig, err := keys.SignBytes(priv, v.CanonicalBytes())
	if err != nil {
		return err
	}
	v.Sig = sig
	return nil
}

// Validate enforces per-field bounds at the decode boundary.
func (v *Vouch) Validate() error {
	if v.TargetPub == "" || v.VoucherPub == "" {
		return common.NewCoordErr("vouch", common.MalformedFrame, "empty identity")
	}
	if v.RequestID == "" {
		return common.NewCoordErr("vouch", common.MalformedFrame, "empty request id")
	}
	if len(v.Sig) != keys.SignatureSize {
		return common.NewCoordErr("vouch", common.MalformedFrame, "bad signature size")
	}
	return nil
}

// Verify checks the vouch signature against the voucher's declared public
// key. Callers must additionally check that VoucherPub equals the
// authenticated sender of the frame that carried the vouch; that binding is
// transport-level and cannot be established from the payload alone.
func (v *Vouch) Verify() bool {
	pub, err := keys.ParsePublicKeyHex(v.VoucherPub)
	if err != nil {
		return false
	}
	return keys.VerifyBytes(pub, v.CanonicalBytes(), v.Sig)
}
