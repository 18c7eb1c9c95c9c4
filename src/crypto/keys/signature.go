package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"

	hcrypto "github.com/hivemesh/hive/src/crypto"
)

// SignatureSize is the byte length of a wire signature: r and s, each padded
// to 32 bytes, big-endian. Fixed size so that the frame envelope can carry the
// signature as a trailer without a length field.
const SignatureSize = 64

// Sign signs the data with the private key and the built-in pseudo-random
// generator rand.Reader.
func Sign(priv *ecdsa.PrivateKey, data []byte) (r, s *big.Int, err error) {
	return ecdsa.Sign(rand.Reader, priv, data)
}

// Verify verifies that a signature represented by r and s values, is a valid
// signature of the data by an owner of the private key associated with the
// provided public key.
func Verify(pub *ecdsa.PublicKey, data []byte, r, s *big.Int) bool {
	return ecdsa.Verify(pub, data, r, s)
}

// SignBytes signs the SHA256 digest of data and returns the fixed-size r||s
// encoding. Every signed payload in the protocol (frames, tickets, vouches,
// state entries, intents, attestations) goes through here, so the bytes that
// are signed are always a single deterministic canonical encoding.
func SignBytes(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	r, s, err := Sign(priv, hcrypto.SHA256(data))
	if err != nil {
		return nil, err
	}
	return EncodeSignature(r, s), nil
}

// VerifyBytes verifies a fixed-size signature produced by SignBytes.
func VerifyBytes(pub *ecdsa.PublicKey, data []byte, sig []byte) bool {
	if pub == nil {
		return false
	}
	r, s, err := DecodeSignature(sig)
	if err != nil {
		return false
	}
	return Verify(pub, hcrypto.SHA256(data), r, s)
}

// EncodeSignature returns the fixed-size r||s representation of a signature.
func EncodeSignature(r, s *big.Int) []byte {
	sig := make([]byte, SignatureSize)
	copy(sig[:32], paddedBigBytes(r, 32))
	copy(sig[32:], paddedBigBytes(s, 32))
	return sig
}

// DecodeSignature parses the fixed-size representation of a signature as
// produced by EncodeSignature.
func DecodeSignature(sig []byte) (r, s *big.Int, err error) {
	if len(sig) != SignatureSize {
		return nil, nil, fmt.Errorf("wrong signature length: got %d, want %d", len(sig), SignatureSize)
	}
	r = new(big.Int).SetBytes(sig[:32])
	s = new(big.Int).SetBytes(sig[32:])
	return r, s, nil
}
