package net

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/wire"
	"github.com/sirupsen/logrus"
)

const (
	bufSize = math.MaxUint16
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

/*
NetworkTransport provides a network based transport that can be used to
communicate with hive nodes on remote machines. It requires an underlying
stream layer to provide a stream abstraction, which can be simple TCP, TLS,
etc.

Each request is one signed frame; the response is one signed frame of the
matching response type. Frames are size-checked and signature-checked here,
at the transport boundary, so consumers only ever see well-formed,
authenticated payloads.
*/
type NetworkTransport struct {
	logger *logrus.Entry

	privKey *ecdsa.PrivateKey

	connPool     map[string][]*netConn
	connPoolLock sync.Mutex
	maxPool      int

	consumeCh chan RPC

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	stream StreamLayer

	timeout time.Duration
}

type netConn struct {
	target string
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
}

// Release closes the underlying connection
func (n *netConn) Release() error {
	return n.conn.Close()
}

// NewNetworkTransport creates a new network transport with the given stream
// layer and signing key. The maxPool controls how many connections we will
// pool (per target). The timeout is used to apply I/O deadlines.
func NewNetworkTransport(
	stream StreamLayer,
	privKey *ecdsa.PrivateKey,
	maxPool int,
	timeout time.Duration,
	logger *logrus.Entry,
) *NetworkTransport {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	trans := &NetworkTransport{
		connPool:   make(map[string][]*netConn),
		consumeCh:  make(chan RPC),
		logger:     logger,
		privKey:    privKey,
		maxPool:    maxPool,
		shutdownCh: make(chan struct{}),
		stream:     stream,
		timeout:    timeout,
	}

	return trans
}

// Close is used to stop the network transport.
func (n *NetworkTransport) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkTransport) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkTransport) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkTransport) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkTransport) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// getPooledConn is used to grab a pooled connection.
func (n *NetworkTransport) getPooledConn(target string) *netConn {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	conns, ok := n.connPool[target]
	if !ok || len(conns) == 0 {
		return nil
	}

	var conn *netConn
	num := len(conns)
	conn, conns[num-1] = conns[num-1], nil
	n.connPool[target] = conns[:num-1]
	return conn
}

// getConn is used to get a connection from the pool.
func (n *NetworkTransport) getConn(target string, timeout time.Duration) (*netConn, error) {
	// Check for a pooled conn
	if conn := n.getPooledConn(target); conn != nil {
		return conn, nil
	}

	// Dial a new connection
	conn, err := n.stream.Dial(target, timeout)
	if err != nil {
		return nil, err
	}

	// Wrap the conn
	netConn := &netConn{
		target: target,
		conn:   conn,
		r:      bufio.NewReaderSize(conn, bufSize),
		w:      bufio.NewWriterSize(conn, bufSize),
	}

	return netConn, nil
}

// returnConn returns a connection back to the pool.
func (n *NetworkTransport) returnConn(conn *netConn) {
	n.connPoolLock.Lock()
	defer n.connPoolLock.Unlock()

	key := conn.target
	conns := n.connPool[key]

	if !n.IsShutdown() && len(conns) < n.maxPool {
		n.connPool[key] = append(conns, conn)
	} else {
		conn.Release()
	}
}

// Hello implements the Transport interface.
func (n *NetworkTransport) Hello(target string, args *wire.HelloPayload, resp *wire.ChallengePayload) error {
	return n.genericRPC(target, args, resp)
}

// Attest implements the Transport interface.
func (n *NetworkTransport) Attest(target string, args *wire.AttestPayload, resp *wire.AttestResultPayload) error {
	return n.genericRPC(target, args, resp)
}

// GossipPush implements the Transport interface.
func (n *NetworkTransport) GossipPush(target string, args *wire.GossipPushPayload, resp *wire.GossipPushAckPayload) error {
	return n.genericRPC(target, args, resp)
}

// FullSync implements the Transport interface.
func (n *NetworkTransport) FullSync(target string, args *wire.FullSyncRequestPayload, resp *wire.FullSyncResponsePayload) error {
	return n.genericRPC(target, args, resp)
}

// IntentNotice implements the Transport interface.
func (n *NetworkTransport) IntentNotice(target string, args *wire.IntentNoticePayload, resp *wire.IntentAckPayload) error {
	return n.genericRPC(target, args, resp)
}

// IntentAbort implements the Transport interface.
func (n *NetworkTransport) IntentAbort(target string, args *wire.IntentAbortPayload, resp *wire.IntentAbortAckPayload) error {
	return n.genericRPC(target, args, resp)
}

// VouchNotice implements the Transport interface.
func (n *NetworkTransport) VouchNotice(target string, args *wire.VouchNoticePayload, resp *wire.VouchAckPayload) error {
	return n.genericRPC(target, args, resp)
}

// PromotionRequest implements the Transport interface.
func (n *NetworkTransport) PromotionRequest(target string, args *wire.PromotionRequestPayload, resp *wire.PromotionAckPayload) error {
	return n.genericRPC(target, args, resp)
}

// genericRPC handles a simple request/response exchange: one signed request
// frame out, one signed response frame back.
func (n *NetworkTransport) genericRPC(target string, args interface{}, resp interface{}) error {
	reqType, ok := wire.TypeOf(args)
	if !ok {
		return common.NewCoordErr("transport", common.MalformedFrame, "unregistered payload type")
	}

	conn, err := n.getConn(target, n.timeout)
	if err != nil {
		return err
	}

	if n.timeout > 0 {
		conn.conn.SetDeadline(time.Now().Add(n.timeout))
	}

	if err = n.sendFrame(conn, reqType, args); err != nil {
		return err
	}

	canReturn, err := n.decodeResponse(conn, wire.ResponseType(reqType), resp)
	if canReturn {
		n.returnConn(conn)
	}

	return err
}

// sendFrame encodes, signs and writes one frame.
func (n *NetworkTransport) sendFrame(conn *netConn, t wire.FrameType, args interface{}) error {
	payload, err := wire.EncodePayload(args)
	if err != nil {
		conn.Release()
		return err
	}

	f := &wire.Frame{Type: t, Payload: payload}
	if err := f.Sign(n.privKey); err != nil {
		conn.Release()
		return err
	}

	if err := wire.WriteFrame(conn.w, f); err != nil {
		conn.Release()
		return err
	}

	if err := conn.w.Flush(); err != nil {
		conn.Release()
		return err
	}
	return nil
}

// decodeResponse reads and checks one response frame and reports whether the
// connection can be reused.
func (n *NetworkTransport) decodeResponse(conn *netConn, want wire.FrameType, resp interface{}) (bool, error) {
	f, err := wire.ReadFrame(conn.r)
	if err != nil {
		conn.Release()
		return false, err
	}

	if f.Type != want {
		conn.Release()
		return false, common.NewCoordErr("transport", common.MalformedFrame, "unexpected response type")
	}

	if !f.Verify() {
		conn.Release()
		return false, common.NewCoordErr("transport", common.AuthenticationFailure, "bad response signature")
	}

	if err := wire.DecodePayload(f.Payload, resp); err != nil {
		conn.Release()
		return false, err
	}

	if v, ok := resp.(wire.Validator); ok {
		if err := v.Validate(); err != nil {
			conn.Release()
			return false, err
		}
	}

	return true, nil
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkTransport) Listen() {
	for {
		// Accept incoming connections
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		// Handle the connection in dedicated routine
		go n.handleConn(conn)
	}
}

// handleConn is used to handle an inbound connection for its lifespan.
func (n *NetworkTransport) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)

	for {
		if err := n.handleCommand(r, w); err != nil {
			if err != io.EOF && err != ErrTransportShutdown {
				n.logger.WithField("error", err).Error("Failed to handle incoming frame")
			}
			return
		}
		if err := w.Flush(); err != nil {
			n.logger.WithField("error", err).Error("Failed to flush response")
			return
		}
	}
}

// handleCommand reads, checks and dispatches a single frame. Any failure
// drops the connection: a peer that sends a malformed or mis-signed frame
// does not get a diagnostic, it gets a closed socket.
func (n *NetworkTransport) handleCommand(r *bufio.Reader, w *bufio.Writer) error {
	f, err := wire.ReadFrame(r)
	if err != nil {
		return err
	}

	if !f.Verify() {
		return common.NewCoordErr("transport", common.AuthenticationFailure, "bad frame signature")
	}

	cmd := wire.NewPayload(f.Type)
	if cmd == nil {
		return common.NewCoordErr("transport", common.MalformedFrame, "no payload for frame type")
	}
	if err := wire.DecodePayload(f.Payload, cmd); err != nil {
		return err
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		Command:   cmd,
		SenderPub: f.SenderHex(),
		RespChan:  respCh,
	}

	// Dispatch
	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	// Wait for response
	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return resp.Error
		}
		return n.sendResponse(w, wire.ResponseType(f.Type), resp.Response)
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}
}

// sendResponse encodes, signs and writes one response frame.
func (n *NetworkTransport) sendResponse(w *bufio.Writer, t wire.FrameType, resp interface{}) error {
	payload, err := wire.EncodePayload(resp)
	if err != nil {
		return err
	}

	f := &wire.Frame{Type: t, Payload: payload}
	if err := f.Sign(n.privKey); err != nil {
		return err
	}

	return wire.WriteFrame(w, f)
}
