package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"hash/fnv"

	"github.com/hivemesh/hive/src/common"
)

// PublicKeySize is the byte length of an uncompressed secp256k1 public key.
const PublicKeySize = 65

// ErrInvalidPublicKey is returned when a byte slice or hex string does not
// represent a point on the curve.
var ErrInvalidPublicKey = errors.New("invalid public key")

// ToPublicKey is a wrapper around elliptic.Unmarshal which calls Curve() to
// determine which elliptic.Curve to use. The argument pub is expected to be the
// uncompressed form of a point on the curve, as returned by FromPublicKey.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	x, y := elliptic.Unmarshal(Curve(), pub)
	if x == nil {
		return nil
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}
}

// FromPublicKey is a wrapper around elliptic.Marshal which calls Curve() to
// determine which elliptic.Curve to use. It outputs the point in uncompressed
// form.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// PublicKeyID tries to give a unique uint32 representation of the public key.
// There is obviously a risk of collision here. The uint32 is used to save space
// in wire frames, by replacing the uncompressed form of public keys (65 bytes
// for the secp256k1 curve) with a uint32.
func PublicKeyID(pubBytes []byte) uint32 {
	return hash32(pubBytes)
}

// hash32 returns the 32-bit FNV-1a hash of data in big-endian byte order.
func hash32(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum32()
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed form
// of the public key. This string is the canonical peer identity: it keys the
// membership registry, the hive map, and the intent table, and it is the value
// compared in the intent tie-break.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// ParsePublicKeyHex converts a peer identity string back into an
// ecdsa.PublicKey.
func ParsePublicKeyHex(pubHex string) (*ecdsa.PublicKey, error) {
	raw, err := common.DecodeFromString(pubHex)
	if err != nil {
		return nil, err
	}
	pub := ToPublicKey(raw)
	if pub == nil {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}
