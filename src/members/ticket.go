package members

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

const (
	// MaxTicketEncodedSize is the hard ceiling on the encoded form of a
	// ticket. The length check runs before any base64 or structural
	// decoding, so oversized tickets are rejected in O(1).
	MaxTicketEncodedSize = 768

	// TicketNonceSize ...
	TicketNonceSize = 16
)

// Ticket is a bounded, signed credential proving invitation rights, presented
// during the handshake. It is issued by a member or admin for a specific
// invitee key. Members reconnecting to the hive self-issue: issuer and
// invitee are the same key, and the issuer's standing is checked against the
// registry at verification time.
type Ticket struct {
	IssuerPub  string
	InviteePub string
	IssuedAt   int64
	ExpiresAt  int64
	Nonce      []byte
	Sig        []byte
}

// NewTicket creates and signs a ticket for inviteePub, issued by the holder
// of priv.
func NewTicket(priv *ecdsa.PrivateKey, inviteePub string, issuedAt, expiresAt int64) (*Ticket, error) {
	nonce := make([]byte, TicketNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	t := &Ticket{
		IssuerPub:  keys.PublicKeyHex(&priv.PublicKey),
		InviteePub: inviteePub,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		Nonce:      nonce,
	}

	sig, err := keys.SignBytes(priv, t.CanonicalBytes())
	if err != nil {
		return nil, err
	}
	t.Sig = sig

	return t, nil
}

// CanonicalBytes is the deterministic encoding covered by the ticket
// signature.
func (t *Ticket) CanonicalBytes() []byte {
	b := []byte("hive-ticket")
	b = common.AppendString(b, t.IssuerPub)
	b = common.AppendString(b, t.InviteePub)
	b = common.AppendUint64(b, uint64(t.IssuedAt))
	b = common.AppendUint64(b, uint64(t.ExpiresAt))
	b = common.AppendBytes(b, t.Nonce)
	return b
}

// Verify checks the ticket signature against the declared issuer key. Issuer
// standing, expiry and single-use are enforced by the handshake engine.
func (t *Ticket) Verify() bool {
	pub, err := keys.ParsePublicKeyHex(t.IssuerPub)
	if err != nil {
		return false
	}
	return keys.VerifyBytes(pub, t.CanonicalBytes(), t.Sig)
}

// Expired ...
func (t *Ticket) Expired(now int64) bool {
	return now > t.ExpiresAt
}

// NonceHex keys the used-ticket set.
func (t *Ticket) NonceHex() string {
	return common.EncodeToString(t.Nonce)
}

// Encode returns the transportable form of the ticket: base64 over the codec
// encoding.
func (t *Ticket) Encode() (string, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, new(codec.JsonHandle))
	if err := enc.Encode(t); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeTicket parses the transportable form. The byte-length ceiling is
// enforced before any base decoding or structured parsing; invalid or
// oversized input is a terminal parse failure, never a partial decode.
func DecodeTicket(s string) (*Ticket, error) {
	if len(s) == 0 || len(s) > MaxTicketEncodedSize {
		return nil, common.NewCoordErr("ticket", common.MalformedFrame, "bad length")
	}

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, common.NewCoordErr("ticket", common.MalformedFrame, "bad base64")
	}

	t := &Ticket{}
	dec := codec.NewDecoder(bytes.NewBuffer(raw), new(codec.JsonHandle))
	if err := dec.Decode(t); err != nil {
		return nil, common.NewCoordErr("ticket", common.MalformedFrame, "bad structure")
	}

	if len(t.Nonce) != TicketNonceSize || len(t.Sig) != keys.SignatureSize {
		return nil, common.NewCoordErr("ticket", common.MalformedFrame, "bad field size")
	}

	return t, nil
}
