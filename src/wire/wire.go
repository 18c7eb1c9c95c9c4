// Package wire defines the frame envelope and the typed payloads of the hive
// coordination protocol. Every frame is signed by its sender; every size
// bound is enforced at the decode boundary, before any structural parsing,
// so a malformed or oversized frame costs O(1) to reject.
package wire

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"io"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

const (
	// HeaderSize is the fixed envelope prefix: magic (2), type (2), sender
	// public key (65), payload length (4).
	HeaderSize = 2 + 2 + keys.PublicKeySize + 4

	// MaxPayloadSize is the hard ceiling on a frame payload.
	MaxPayloadSize = 64 * 1024

	// MaxFrameSize is the hard ceiling on a complete frame.
	MaxFrameSize = HeaderSize + MaxPayloadSize + keys.SignatureSize

	magic0 = 'H'
	magic1 = 'V'
)

// FrameType identifies the payload carried by a frame.
type FrameType uint16

const (
	// TypeHello opens the handshake.
	TypeHello FrameType = iota + 1
	// TypeChallenge answers a Hello with a nonce to sign.
	TypeChallenge
	// TypeAttest carries the signed challenge answer.
	TypeAttest
	// TypeAttestResult closes the handshake.
	TypeAttestResult
	// TypeGossipPush carries fresh hive-map entries.
	TypeGossipPush
	// TypeGossipPushAck acknowledges a push.
	TypeGossipPushAck
	// TypeFullSyncRequest carries a version digest for anti-entropy.
	TypeFullSyncRequest
	// TypeFullSyncResponse carries the entries the digest showed as stale.
	TypeFullSyncResponse
	// TypeIntentNotice announces an intent.
	TypeIntentNotice
	// TypeIntentAck acknowledges an intent notice.
	TypeIntentAck
	// TypeVouchNotice carries a signed vouch.
	TypeVouchNotice
	// TypeVouchAck acknowledges a vouch.
	TypeVouchAck
	// TypePromotionRequest asks the receiver to evaluate a promotion.
	TypePromotionRequest
	// TypePromotionAck carries the promotion verdict.
	TypePromotionAck
	// TypeIntentAbort retracts an intent on behalf of its initiator.
	TypeIntentAbort
	// TypeIntentAbortAck acknowledges an intent abort.
	TypeIntentAbortAck
)

// String implements the Stringer interface for FrameType.
func (t FrameType) String() string {
	switch t {
	case TypeHello:
		return "Hello"
	case TypeChallenge:
		return "Challenge"
	case TypeAttest:
		return "Attest"
	case TypeAttestResult:
		return "AttestResult"
	case TypeGossipPush:
		return "GossipPush"
	case TypeGossipPushAck:
		return "GossipPushAck"
	case TypeFullSyncRequest:
		return "FullSyncRequest"
	case TypeFullSyncResponse:
		return "FullSyncResponse"
	case TypeIntentNotice:
		return "IntentNotice"
	case TypeIntentAck:
		return "IntentAck"
	case TypeVouchNotice:
		return "VouchNotice"
	case TypeVouchAck:
		return "VouchAck"
	case TypePromotionRequest:
		return "PromotionRequest"
	case TypePromotionAck:
		return "PromotionAck"
	case TypeIntentAbort:
		return "IntentAbort"
	case TypeIntentAbortAck:
		return "IntentAbortAck"
	default:
		return "Unknown"
	}
}

// KnownType reports whether t is a defined frame type.
func KnownType(t FrameType) bool {
	return t >= TypeHello && t <= TypeIntentAbortAck
}

// Frame is a decoded protocol frame.
type Frame struct {
	Type      FrameType
	SenderPub []byte
	Payload   []byte
	Sig       []byte
}

// SenderHex returns the sender identity in the standard hex encoding.
func (f *Frame) SenderHex() string {
	return common.EncodeToString(f.SenderPub)
}

// signedBytes returns the byte range covered by the frame signature: the
// complete header followed by the payload.
func (f *Frame) signedBytes() []byte {
	b := make([]byte, 0, HeaderSize+len(f.Payload))
	b = append(b, magic0, magic1)
	b = common.AppendUint16(b, uint16(f.Type))
	b = append(b, f.SenderPub...)
	b = common.AppendUint32(b, uint32(len(f.Payload)))
	b = append(b, f.Payload...)
	return b
}

// Sign sets the frame signature and stamps the sender identity from the
// signing key.
func (f *Frame) Sign(priv *ecdsa.PrivateKey) error {
	f.SenderPub = keys.FromPublicKey(&priv.PublicKey)
	sig, err := keys.SignBytes(priv, f.signedBytes())
	if err != nil {
		return err
	}
	f.Sig = sig
	return nil
}

// Verify checks the frame signature against the declared sender key.
func (f *Frame) Verify() bool {
	pub := keys.ToPublicKey(f.SenderPub)
	if pub == nil {
		return false
	}
	return keys.VerifyBytes(pub, f.signedBytes(), f.Sig)
}

// Encode serialises the frame. The frame must already be signed.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.SenderPub) != keys.PublicKeySize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "bad sender key size")
	}
	if len(f.Payload) > MaxPayloadSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "payload too large")
	}
	if len(f.Sig) != keys.SignatureSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "bad signature size")
	}

	b := f.signedBytes()
	b = append(b, f.Sig...)
	return b, nil
}

// Decode parses a raw frame. Checks run cheapest first: total size ceiling,
// minimum size, magic, type, then length consistency. Signature verification
// is left to the caller, after the dedup check, so replayed frames never cost
// a curve operation.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) > MaxFrameSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "frame too large")
	}
	if len(raw) < HeaderSize+keys.SignatureSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "frame truncated")
	}
	if raw[0] != magic0 || raw[1] != magic1 {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "bad magic")
	}

	t := FrameType(binary.BigEndian.Uint16(raw[2:4]))
	if !KnownType(t) {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "unknown frame type")
	}

	plen := binary.BigEndian.Uint32(raw[HeaderSize-4 : HeaderSize])
	if plen > MaxPayloadSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "declared payload too large")
	}
	if int(plen) != len(raw)-HeaderSize-keys.SignatureSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "length mismatch")
	}

	f := &Frame{
		Type:      t,
		SenderPub: append([]byte{}, raw[4:4+keys.PublicKeySize]...),
		Payload:   append([]byte{}, raw[HeaderSize:HeaderSize+int(plen)]...),
		Sig:       append([]byte{}, raw[HeaderSize+int(plen):]...),
	}

	return f, nil
}

// WriteFrame writes an encoded frame to w.
func WriteFrame(w io.Writer, f *Frame) error {
	raw, err := f.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// ReadFrame reads one frame from r. The header is read first so the payload
// length is known and bounded before any payload bytes are accepted.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if header[0] != magic0 || header[1] != magic1 {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "bad magic")
	}

	t := FrameType(binary.BigEndian.Uint16(header[2:4]))
	if !KnownType(t) {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "unknown frame type")
	}

	plen := binary.BigEndian.Uint32(header[HeaderSize-4 : HeaderSize])
	if plen > MaxPayloadSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "declared payload too large")
	}

	rest := make([]byte, int(plen)+keys.SignatureSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}

	return Decode(append(header, rest...))
}

// EncodePayload serialises a typed payload into frame payload bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, new(codec.JsonHandle))
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if buf.Len() > MaxPayloadSize {
		return nil, common.NewCoordErr("wire", common.MalformedFrame, "payload too large")
	}
	return buf.Bytes(), nil
}

// DecodePayload parses frame payload bytes into a typed payload.
func DecodePayload(raw []byte, v interface{}) error {
	dec := codec.NewDecoder(bytes.NewBuffer(raw), new(codec.JsonHandle))
	if err := dec.Decode(v); err != nil {
		return common.NewCoordErr("wire", common.MalformedFrame, "bad payload structure")
	}
	return nil
}
