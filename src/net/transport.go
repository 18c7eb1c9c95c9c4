package net

import "github.com/hivemesh/hive/src/wire"

// Transport provides an interface for network transports to allow a hive
// node to communicate with other nodes.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns a channel that can be used to consume and respond
	// to inbound requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other
	// peers can reach us.
	AdvertiseAddr() string

	// The remaining methods send the corresponding frame to the target
	// node and decode its response.

	Hello(target string, args *wire.HelloPayload, resp *wire.ChallengePayload) error

	Attest(target string, args *wire.AttestPayload, resp *wire.AttestResultPayload) error

	GossipPush(target string, args *wire.GossipPushPayload, resp *wire.GossipPushAckPayload) error

	FullSync(target string, args *wire.FullSyncRequestPayload, resp *wire.FullSyncResponsePayload) error

	IntentNotice(target string, args *wire.IntentNoticePayload, resp *wire.IntentAckPayload) error

	IntentAbort(target string, args *wire.IntentAbortPayload, resp *wire.IntentAbortAckPayload) error

	VouchNotice(target string, args *wire.VouchNoticePayload, resp *wire.VouchAckPayload) error

	PromotionRequest(target string, args *wire.PromotionRequestPayload, resp *wire.PromotionAckPayload) error

	// Close permanently closes a transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
