package keys

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSignVerifyBytes(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	msg := []byte("payment routing fleet coordination")

	sig, err := SignBytes(key, msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != SignatureSize {
		t.Fatalf("signature size should be %d, not %d", SignatureSize, len(sig))
	}

	if !VerifyBytes(&key.PublicKey, msg, sig) {
		t.Fatal("signature should verify")
	}

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0xff
	if VerifyBytes(&key.PublicKey, tampered, sig) {
		t.Fatal("signature should not verify tampered message")
	}

	other, _ := GenerateECDSAKey()
	if VerifyBytes(&other.PublicKey, msg, sig) {
		t.Fatal("signature should not verify under another key")
	}
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	raw := DumpPrivateKey(key)

	parsed, err := ParsePrivateKey(raw)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(key.D, parsed.D) {
		t.Fatal("parsed private key should match original")
	}
	if !reflect.DeepEqual(key.PublicKey, parsed.PublicKey) {
		t.Fatal("parsed public key should match original")
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	raw := FromPublicKey(&key.PublicKey)
	if len(raw) != PublicKeySize {
		t.Fatalf("public key size should be %d, not %d", PublicKeySize, len(raw))
	}

	parsed := ToPublicKey(raw)
	if parsed == nil {
		t.Fatal("ToPublicKey returned nil")
	}
	if !reflect.DeepEqual(&key.PublicKey, parsed) {
		t.Fatal("parsed public key should match original")
	}

	if ToPublicKey([]byte{0x01, 0x02}) != nil {
		t.Fatal("ToPublicKey should reject garbage")
	}
}

func TestPublicKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	hex := PublicKeyHex(&key.PublicKey)

	parsed, err := ParsePublicKeyHex(hex)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(&key.PublicKey, parsed) {
		t.Fatal("parsed public key should match original")
	}
}

func TestPublicKeyID(t *testing.T) {
	key, _ := GenerateECDSAKey()
	raw := FromPublicKey(&key.PublicKey)

	id1 := PublicKeyID(raw)
	id2 := PublicKeyID(raw)
	if id1 != id2 {
		t.Fatal("PublicKeyID should be deterministic")
	}

	other, _ := GenerateECDSAKey()
	if PublicKeyID(FromPublicKey(&other.PublicKey)) == id1 {
		t.Fatal("different keys should map to different IDs")
	}
}

func TestSimpleKeyfile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "priv_key")

	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	keyfile := NewSimpleKeyfile(file)
	if err := keyfile.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	read, err := keyfile.ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(DumpPrivateKey(key), DumpPrivateKey(read)) {
		t.Fatal("key read from file should match key written")
	}
}
