package net

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/hivemesh/hive/src/wire"
)

// NewInmemAddr returns a new in-memory addr with a randomly generated UUID
// as the ID.
func NewInmemAddr() string {
	return generateUUID()
}

// generateUUID is used to generate a random UUID.
func generateUUID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("failed to read random bytes: %v", err))
	}

	return fmt.Sprintf("%08x-%04x-%04x-%04x-%12x",
		buf[0:4],
		buf[4:6],
		buf[6:8],
		buf[8:10],
		buf[10:16])
}

// InmemTransport implements the Transport interface, to allow hive nodes to
// be tested in-memory without going over a network. Frames are not encoded;
// payloads cross directly, with the sender identity attached the way the
// signed envelope would attach it.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	pubKeyHex  string
	peers      map[string]*InmemTransport
	timeout    time.Duration
}

// NewInmemTransport is used to initialize a new transport for the given
// identity, and generates a random local address if none is specified.
func NewInmemTransport(addr string, pubKeyHex string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		pubKeyHex:  pubKeyHex,
		peers:      make(map[string]*InmemTransport),
		timeout:    50 * time.Millisecond,
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Hello implements the Transport interface.
func (i *InmemTransport) Hello(target string, args *wire.HelloPayload, resp *wire.ChallengePayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.ChallengePayload)
	*resp = *out
	return nil
}

// Attest implements the Transport interface.
func (i *InmemTransport) Attest(target string, args *wire.AttestPayload, resp *wire.AttestResultPayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.AttestResultPayload)
	*resp = *out
	return nil
}

// GossipPush implements the Transport interface.
func (i *InmemTransport) GossipPush(target string, args *wire.GossipPushPayload, resp *wire.GossipPushAckPayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.GossipPushAckPayload)
	*resp = *out
	return nil
}

// FullSync implements the Transport interface.
func (i *InmemTransport) FullSync(target string, args *wire.FullSyncRequestPayload, resp *wire.FullSyncResponsePayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.FullSyncResponsePayload)
	*resp = *out
	return nil
}

// IntentNotice implements the Transport interface.
func (i *InmemTransport) IntentNotice(target string, args *wire.IntentNoticePayload, resp *wire.IntentAckPayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.IntentAckPayload)
	*resp = *out
	return nil
}

// IntentAbort implements the Transport interface.
func (i *InmemTransport) IntentAbort(target string, args *wire.IntentAbortPayload, resp *wire.IntentAbortAckPayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.IntentAbortAckPayload)
	*resp = *out
	return nil
}

// VouchNotice implements the Transport interface.
func (i *InmemTransport) VouchNotice(target string, args *wire.VouchNoticePayload, resp *wire.VouchAckPayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.VouchAckPayload)
	*resp = *out
	return nil
}

// PromotionRequest implements the Transport interface.
func (i *InmemTransport) PromotionRequest(target string, args *wire.PromotionRequestPayload, resp *wire.PromotionAckPayload) error {
	rpcResp, err := i.makeRPC(target, args, i.timeout)
	if err != nil {
		return err
	}

	out := rpcResp.Response.(*wire.PromotionAckPayload)
	*resp = *out
	return nil
}

func (i *InmemTransport) makeRPC(target string, args interface{}, timeout time.Duration) (rpcResp RPCResponse, err error) {
	i.RLock()
	peer, ok := i.peers[target]
	i.RUnlock()

	if !ok {
		err = fmt.Errorf("failed to connect to peer: %v", target)
		return
	}

	// Send the RPC over
	respCh := make(chan RPCResponse)
	peer.consumerCh <- RPC{
		Command:   args,
		SenderPub: i.pubKeyHex,
		RespChan:  respCh,
	}

	// Wait for a response
	select {
	case rpcResp = <-respCh:
		if rpcResp.Error != nil {
			err = rpcResp.Error
		}
	case <-time.After(timeout):
		err = fmt.Errorf("command timed out")
	}
	return
}

// Connect is used to connect this transport to another transport for a given
// peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, t Transport) {
	trans := t.(*InmemTransport)
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.DisconnectAll()
	return nil
}

// Listen is an empty function as there is no need to defer initialisation of
// the in-memory transport.
func (i *InmemTransport) Listen() {
}
