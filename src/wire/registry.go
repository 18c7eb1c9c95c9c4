package wire

// NewPayload returns a zero value of the payload type carried by frames of
// type t, ready for DecodePayload. Unknown types return nil.
func NewPayload(t FrameType) Validator {
	switch t {
	case TypeHello:
		return &HelloPayload{}
	case TypeChallenge:
		return &ChallengePayload{}
	case TypeAttest:
		return &AttestPayload{}
	case TypeAttestResult:
		return &AttestResultPayload{}
	case TypeGossipPush:
		return &GossipPushPayload{}
	case TypeGossipPushAck:
		return &GossipPushAckPayload{}
	case TypeFullSyncRequest:
		return &FullSyncRequestPayload{}
	case TypeFullSyncResponse:
		return &FullSyncResponsePayload{}
	case TypeIntentNotice:
		return &IntentNoticePayload{}
	case TypeIntentAck:
		return &IntentAckPayload{}
	case TypeVouchNotice:
		return &VouchNoticePayload{}
	case TypeVouchAck:
		return &VouchAckPayload{}
	case TypePromotionRequest:
		return &PromotionRequestPayload{}
	case TypePromotionAck:
		return &PromotionAckPayload{}
	case TypeIntentAbort:
		return &IntentAbortPayload{}
	case TypeIntentAbortAck:
		return &IntentAbortAckPayload{}
	default:
		return nil
	}
}

// TypeOf returns the frame type that carries the given payload.
func TypeOf(v interface{}) (FrameType, bool) {
	switch v.(type) {
	case *HelloPayload:
		return TypeHello, true
	case *ChallengePayload:
		return TypeChallenge, true
	case *AttestPayload:
		return TypeAttest, true
	case *AttestResultPayload:
		return TypeAttestResult, true
	case *GossipPushPayload:
		return TypeGossipPush, true
	case *GossipPushAckPayload:
		return TypeGossipPushAck, true
	case *FullSyncRequestPayload:
		return TypeFullSyncRequest, true
	case *FullSyncResponsePayload:
		return TypeFullSyncResponse, true
	case *IntentNoticePayload:
		return TypeIntentNotice, true
	case *IntentAckPayload:
		return TypeIntentAck, true
	case *VouchNoticePayload:
		return TypeVouchNotice, true
	case *VouchAckPayload:
		return TypeVouchAck, true
	case *PromotionRequestPayload:
		return TypePromotionRequest, true
	case *PromotionAckPayload:
		return TypePromotionAck, true
	case *IntentAbortPayload:
		return TypeIntentAbort, true
	case *IntentAbortAckPayload:
		return TypeIntentAbortAck, true
	default:
		return 0, false
	}
}

// ResponseType maps a request frame type to its expected response type.
// Frames with no response map to zero.
func ResponseType(t FrameType) FrameType {
	switch t {
	case TypeHello:
		return TypeChallenge
	case TypeAttest:
		return TypeAttestResult
	case TypeGossipPush:
		return TypeGossipPushAck
	case TypeFullSyncRequest:
		return TypeFullSyncResponse
	case TypeIntentNotice:
		return TypeIntentAck
	case TypeVouchNotice:
		return TypeVouchAck
	case TypePromotionRequest:
		return TypePromotionAck
	case TypeIntentAbort:
		return TypeIntentAbortAck
	default:
		return 0
	}
}
