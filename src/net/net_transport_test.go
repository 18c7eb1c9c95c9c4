package net

import (
	"crypto/ecdsa"
	"reflect"
	"testing"
	"time"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
	"github.com/hivemesh/hive/src/wire"
)

func testTransport(t *testing.T) (*NetworkTransport, *ecdsa.PrivateKey) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	trans, err := NewTCPTransport(
		"127.0.0.1:0",
		"",
		key,
		2,
		time.Second,
		common.NewTestEntry(t, "transport"),
	)
	if err != nil {
		t.Fatal(err)
	}
	return trans, key
}

func TestNetworkTransportStartStop(t *testing.T) {
	trans, _ := testTransport(t)

	if trans.LocalAddr() == "" {
		t.Fatal("transport should have a local address")
	}

	trans.Close()
}

func TestNetworkTransportGossipPush(t *testing.T) {
	trans1, _ := testTransport(t)
	defer trans1.Close()
	go trans1.Listen()

	trans2, key2 := testTransport(t)
	defer trans2.Close()
	go trans2.Listen()

	args := &wire.GossipPushPayload{}
	expected := &wire.GossipPushAckPayload{Applied: 3}
	senderPub := common.EncodeToString(keys.FromPublicKey(&key2.PublicKey))

	go func() {
		rpc := <-trans1.Consumer()
		// the frame signature binds the sender identity
		if rpc.SenderPub != senderPub {
			t.Errorf("sender should be %s, not %s", senderPub, rpc.SenderPub)
		}
		if _, ok := rpc.Command.(*wire.GossipPushPayload); !ok {
			t.Errorf("unexpected command type %#v", rpc.Command)
		}
		rpc.Respond(expected, nil)
	}()

	var resp wire.GossipPushAckPayload
	if err := trans2.GossipPush(trans1.LocalAddr(), args, &resp); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&resp, expected) {
		t.Fatalf("responses should match \n%#v \n%#v", &resp, expected)
	}
}

func TestNetworkTransportFullSync(t *testing.T) {
	trans1, _ := testTransport(t)
	defer trans1.Close()
	go trans1.Listen()

	trans2, _ := testTransport(t)
	defer trans2.Close()
	go trans2.Listen()

	go func() {
		rpc := <-trans1.Consumer()
		cmd, ok := rpc.Command.(*wire.FullSyncRequestPayload)
		if !ok {
			t.Errorf("unexpected command type %#v", rpc.Command)
			rpc.Respond(nil, ErrTransportShutdown)
			return
		}
		if cmd.Digest["peer"] != 7 {
			t.Errorf("digest should carry peer@7, got %#v", cmd.Digest)
		}
		rpc.Respond(&wire.FullSyncResponsePayload{}, nil)
	}()

	var resp wire.FullSyncResponsePayload
	err := trans2.FullSync(trans1.LocalAddr(), &wire.FullSyncRequestPayload{
		Digest: map[string]uint64{"peer": 7},
	}, &resp)
	if err != nil {
		t.Fatal(err)
	}
}

func TestNetworkTransportResponderError(t *testing.T) {
	trans1, _ := testTransport(t)
	defer trans1.Close()
	go trans1.Listen()

	trans2, _ := testTransport(t)
	defer trans2.Close()

	go func() {
		rpc := <-trans1.Consumer()
		rpc.Respond(nil, common.NewCoordErr("node", common.AuthenticationFailure, "no session"))
	}()

	// the responder refuses; the connection is dropped without a response
	var resp wire.GossipPushAckPayload
	err := trans2.GossipPush(trans1.LocalAddr(), &wire.GossipPushPayload{}, &resp)
	if err == nil {
		t.Fatal("refused rpc should fail")
	}
}

func TestNetworkTransportPooledConns(t *testing.T) {
	trans1, _ := testTransport(t)
	defer trans1.Close()
	go trans1.Listen()

	trans2, _ := testTransport(t)
	defer trans2.Close()

	go func() {
		for i := 0; i < 3; i++ {
			rpc := <-trans1.Consumer()
			rpc.Respond(&wire.GossipPushAckPayload{Applied: i}, nil)
		}
	}()

	// sequential calls reuse the pooled connection
	for i := 0; i < 3; i++ {
		var resp wire.GossipPushAckPayload
		if err := trans2.GossipPush(trans1.LocalAddr(), &wire.GossipPushPayload{}, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Applied != i {
			t.Fatalf("response %d should carry Applied=%d, got %d", i, i, resp.Applied)
		}
	}
}
