package net

import (
	"reflect"
	"testing"

	"github.com/hivemesh/hive/src/wire"
)

func TestInmemTransportImpl(t *testing.T) {
	var inm interface{} = &InmemTransport{}
	if _, ok := inm.(Transport); !ok {
		t.Fatalf("InmemTransport is not a Transport")
	}
}

func TestInmemTransportRPC(t *testing.T) {
	addr1, trans1 := NewInmemTransport("", "pub1")
	defer trans1.Close()
	addr2, trans2 := NewInmemTransport("", "pub2")
	defer trans2.Close()

	trans1.Connect(addr2, trans2)
	trans2.Connect(addr1, trans1)

	args := &wire.IntentNoticePayload{}
	expected := &wire.IntentAckPayload{IntentID: "id-1", Accepted: true}

	// responder
	go func() {
		rpc := <-trans2.Consumer()
		if rpc.SenderPub != "pub1" {
			t.Errorf("sender should be pub1, not %s", rpc.SenderPub)
		}
		if _, ok := rpc.Command.(*wire.IntentNoticePayload); !ok {
			t.Errorf("unexpected command type %#v", rpc.Command)
		}
		rpc.Respond(expected, nil)
	}()

	var resp wire.IntentAckPayload
	if err := trans1.IntentNotice(addr2, args, &resp); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&resp, expected) {
		t.Fatalf("responses should match \n%#v \n%#v", &resp, expected)
	}
}

func TestInmemTransportDisconnect(t *testing.T) {
	addr1, trans1 := NewInmemTransport("", "pub1")
	defer trans1.Close()
	addr2, trans2 := NewInmemTransport("", "pub2")
	defer trans2.Close()

	trans1.Connect(addr2, trans2)
	trans1.Disconnect(addr2)
	_ = addr1

	var resp wire.GossipPushAckPayload
	err := trans1.GossipPush(addr2, &wire.GossipPushPayload{}, &resp)
	if err == nil {
		t.Fatal("rpc to a disconnected peer should fail")
	}
}

func TestInmemTransportTimeout(t *testing.T) {
	addr1, trans1 := NewInmemTransport("", "pub1")
	defer trans1.Close()
	_, trans2 := NewInmemTransport("", "pub2")
	defer trans2.Close()

	trans1.Connect("peer2", trans2)
	_ = addr1

	// nobody consumes trans2's channel beyond its buffer; with no responder
	// the call must time out rather than hang
	var resp wire.GossipPushAckPayload
	err := trans1.GossipPush("peer2", &wire.GossipPushPayload{}, &resp)
	if err == nil {
		t.Fatal("rpc with no responder should time out")
	}
}
