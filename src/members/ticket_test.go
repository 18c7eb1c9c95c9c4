package members

import (
	"strings"
	"testing"

	"github.com/hivemesh/hive/src/common"
	"github.com/hivemesh/hive/src/crypto/keys"
)

func TestTicketRoundTrip(t *testing.T) {
	issuer, _ := keys.GenerateECDSAKey()
	inviteePub := testPubHex(t)

	ticket, err := NewTicket(issuer, inviteePub, 100, 200)
	if err != nil {
		t.Fatal(err)
	}
	if !ticket.Verify() {
		t.Fatal("fresh ticket should verify")
	}

	encoded, err := ticket.Encode()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeTicket(encoded)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.IssuerPub != ticket.IssuerPub ||
		decoded.InviteePub != ticket.InviteePub ||
		decoded.IssuedAt != ticket.IssuedAt ||
		decoded.ExpiresAt != ticket.ExpiresAt ||
		decoded.NonceHex() != ticket.NonceHex() {
		t.Fatalf("decoded ticket should match original \n%#v \n%#v", ticket, decoded)
	}
	if !decoded.Verify() {
		t.Fatal("decoded ticket should verify")
	}
}

func TestTicketTampered(t *testing.T) {
	issuer, _ := keys.GenerateECDSAKey()

	ticket, err := NewTicket(issuer, testPubHex(t), 100, 200)
	if err != nil {
		t.Fatal(err)
	}

	ticket.InviteePub = testPubHex(t)
	if ticket.Verify() {
		t.Fatal("ticket with rebound invitee should not verify")
	}
}

func TestTicketExpired(t *testing.T) {
	issuer, _ := keys.GenerateECDSAKey()

	ticket, _ := NewTicket(issuer, testPubHex(t), 100, 200)

	if ticket.Expired(200) {
		t.Fatal("ticket should be valid at its expiry instant")
	}
	if !ticket.Expired(201) {
		t.Fatal("ticket should be expired past its expiry instant")
	}
}

func TestDecodeTicketBounds(t *testing.T) {
	if _, err := DecodeTicket(""); !common.IsCoord(err, common.MalformedFrame) {
		t.Fatalf("empty ticket: expected MalformedFrame, got %v", err)
	}

	oversized := strings.Repeat("A", MaxTicketEncodedSize+1)
	if _, err := DecodeTicket(oversized); !common.IsCoord(err, common.MalformedFrame) {
		t.Fatalf("oversized ticket: expected MalformedFrame, got %v", err)
	}

	if _, err := DecodeTicket("not-base64!!"); !common.IsCoord(err, common.MalformedFrame) {
		t.Fatalf("bad base64: expected MalformedFrame, got %v", err)
	}

	// structurally valid base64, not a ticket
	if _, err := DecodeTicket("aGVsbG8="); !common.IsCoord(err, common.MalformedFrame) {
		t.Fatalf("bad structure: expected MalformedFrame, got %v", err)
	}
}

func TestDecodeTicketBadFieldSizes(t *testing.T) {
	issuer, _ := keys.GenerateECDSAKey()
	ticket, _ := NewTicket(issuer, testPubHex(t), 100, 200)

	ticket.Nonce = ticket.Nonce[:TicketNonceSize-1]
	encoded, err := ticket.Encode()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecodeTicket(encoded); !common.IsCoord(err, common.MalformedFrame) {
		t.Fatalf("short nonce: expected MalformedFrame, got %v", err)
	}
}
