package wire

import (
	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/handshake"
	"github.com/hivemesh/hive/src/hivemap"
	"github.com/hivemesh/hive/src/intent"
	"github.com/hivemesh/hive/src/members"
)

const (
	// MaxSyncEntries bounds the number of hive-map entries in one push or
	// sync response.
	MaxSyncEntries = 500

	// MaxDigestEntries bounds the version digest of a sync request.
	MaxDigestEntries = 2048

	// MaxSyncRecords bounds the membership records in one sync response.
	MaxSyncRecords = 1024

	// MaxVouchesPerPromotion bounds the vouches attached to one promotion
	// request.
	MaxVouchesPerPromotion = 64

	// MaxMonikerSize and MaxNetAddrSize bound the free-form Hello fields.
	MaxMonikerSize = 64
	MaxNetAddrSize = 256
)

// Validator is implemented by payloads that enforce structural bounds beyond
// what the codec guarantees. DecodePayload callers run it before handing the
// payload to the engine.
type Validator interface {
	Validate() error
}

// HelloPayload opens the handshake. The ticket travels in its encoded form so
// its byte-length ceiling applies before any structural decode.
type HelloPayload struct {
	Moniker string
	NetAddr string
	Ticket  string
}

// Validate implements Validator.
func (p *HelloPayload) Validate() error {
	if len(p.Moniker) > MaxMonikerSize {
		return common.NewCoordErr("wire", common.MalformedFrame, "moniker too long")
	}
	if len(p.NetAddr) > MaxNetAddrSize {
		return common.NewCoordErr("wire", common.MalformedFrame, "net addr too long")
	}
	if len(p.Ticket) == 0 || len(p.Ticket) > members.MaxTicketEncodedSize {
		return common.NewCoordErr("wire", common.MalformedFrame, "bad ticket length")
	}
	return nil
}

// ChallengePayload answers a Hello.
type ChallengePayload struct {
	Nonce    []byte
	IssuedAt int64
}

// Validate implements Validator.
func (p *ChallengePayload) Validate() error {
	if len(p.Nonce) != handshake.NonceSize {
		return common.NewCoordErr("wire", common.MalformedFrame, "bad nonce size")
	}
	return nil
}

// AttestPayload carries the signed challenge answer. The claimed identity is
// the frame sender; the inner signature is the attestation proper.
type AttestPayload struct {
	Nonce []byte
	Sig   []byte
}

// Validate implements Validator.
func (p *AttestPayload) Validate() error {
	if len(p.Nonce) != handshake.NonceSize {
		return common.NewCoordErr("wire", common.MalformedFrame, "bad nonce size")
	}
	return nil
}

// AttestResultPayload closes the handshake.
type AttestResultPayload struct {
	Accepted bool
	Reason   string
}

// Validate implements Validator.
func (p *AttestResultPayload) Validate() error { return nil }

// GossipPushPayload carries fresh hive-map entries.
type GossipPushPayload struct {
	Entries []*hivemap.Entry
}

// Validate implements Validator.
func (p *GossipPushPayload) Validate() error {
	if len(p.Entries) > MaxSyncEntries {
		return common.NewCoordErr("wire", common.MalformedFrame, "too many entries")
	}
	for _, e := range p.Entries {
		if e == nil {
			return common.NewCoordErr("wire", common.MalformedFrame, "nil entry")
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GossipPushAckPayload acknowledges a push.
type GossipPushAckPayload struct {
	Applied int
}

// Validate implements Validator.
func (p *GossipPushAckPayload) Validate() error { return nil }

// FullSyncRequestPayload carries the requester's version digest.
type FullSyncRequestPayload struct {
	Digest map[string]uint64
}

// Validate implements Validator.
func (p *FullSyncRequestPayload) Validate() error {
	if len(p.Digest) > MaxDigestEntries {
		return common.NewCoordErr("wire", common.MalformedFrame, "digest too large")
	}
	return nil
}

// FullSyncResponsePayload carries the entries the digest showed as stale,
// plus the responder's membership records for registry convergence.
type FullSyncResponsePayload struct {
	Entries []*hivemap.Entry
	Records []*members.Record
}

// Validate implements Validator.
func (p *FullSyncResponsePayload) Validate() error {
	if len(p.Entries) > MaxSyncEntries {
		return common.NewCoordErr("wire", common.MalformedFrame, "too many entries")
	}
	for _, e := range p.Entries {
		if e == nil {
			return common.NewCoordErr("wire", common.MalformedFrame, "nil entry")
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	if len(p.Records) > MaxSyncRecords {
		return common.NewCoordErr("wire", common.MalformedFrame, "too many records")
	}
	return nil
}

// IntentNoticePayload announces an intent.
type IntentNoticePayload struct {
	Notice *intent.Notice
}

// Validate implements Validator.
func (p *IntentNoticePayload) Validate() error {
	if p.Notice == nil {
		return common.NewCoordErr("wire", common.MalformedFrame, "nil notice")
	}
	return p.Notice.Validate()
}

// IntentAckPayload acknowledges an intent notice.
type IntentAckPayload struct {
	IntentID string
	Accepted bool
}

// Validate implements Validator.
func (p *IntentAckPayload) Validate() error {
	if p.IntentID == "" {
		return common.NewCoordErr("wire", common.MalformedFrame, "empty intent id")
	}
	return nil
}

// VouchNoticePayload carries a signed vouch.
type VouchNoticePayload struct {
	Vouch *members.Vouch
}

// Validate implements Validator.
func (p *VouchNoticePayload) Validate() error {
	if p.Vouch == nil {
		return common.NewCoordErr("wire", common.MalformedFrame, "nil vouch")
	}
	return p.Vouch.Validate()
}

// VouchAckPayload acknowledges a vouch.
type VouchAckPayload struct {
	RequestID string
	Accepted  bool
}

// Validate implements Validator.
func (p *VouchAckPayload) Validate() error {
	if p.RequestID == "" {
		return common.NewCoordErr("wire", common.MalformedFrame, "empty request id")
	}
	return nil
}

// PromotionRequestPayload asks the receiver to evaluate a promotion backed by
// the attached vouches.
type PromotionRequestPayload struct {
	RequestID    string
	CandidatePub string
	ToTier       string
	Vouches      []*members.Vouch
}

// Validate implements Validator.
func (p *PromotionRequestPayload) Validate() error {
	if p.RequestID == "" || p.CandidatePub == "" {
		return common.NewCoordErr("wire", common.MalformedFrame, "empty request fields")
	}
	if _, ok := members.ParseTier(p.ToTier); !ok {
		return common.NewCoordErr("wire", common.MalformedFrame, "bad tier")
	}
	if len(p.Vouches) > MaxVouchesPerPromotion {
		return common.NewCoordErr("wire", common.MalformedFrame, "too many vouches")
	}
	for _, v := range p.Vouches {
		if v == nil {
			return common.NewCoordErr("wire", common.MalformedFrame, "nil vouch")
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IntentAbortPayload retracts an intent. The receiver only honours it when
// the frame sender is the intent's initiator.
type IntentAbortPayload struct {
	IntentID string
}

// Validate implements Validator.
func (p *IntentAbortPayload) Validate() error {
	if p.IntentID == "" {
		return common.NewCoordErr("wire", common.MalformedFrame, "empty intent id")
	}
	return nil
}

// IntentAbortAckPayload acknowledges an intent abort.
type IntentAbortAckPayload struct {
	IntentID string
	Accepted bool
}

// Validate implements Validator.
func (p *IntentAbortAckPayload) Validate() error {
	if p.IntentID == "" {
		return common.NewCoordErr("wire", common.MalformedFrame, "empty intent id")
	}
	return nil
}

// PromotionAckPayload carries the promotion verdict.
type PromotionAckPayload struct {
	RequestID string
	Granted   bool
	Reason    string
}

// Validate implements Validator.
func (p *PromotionAckPayload) Validate() error {
	if p.RequestID == "" {
		return common.NewCoordErr("wire", common.MalformedFrame, "empty request id")
	}
	return nil
}
