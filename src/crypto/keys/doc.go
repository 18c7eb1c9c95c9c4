// Package keys implements the public key cryptography used throughout the
// hive.
//
// An instance of a hive node owns a cryptographic key-pair that it uses to
// sign and verify messages. The private key is secret but the public key is
// used by other nodes to verify messages signed with the private key. The
// hexadecimal representation of the public key is the node's permanent
// identity within the fleet.
//
// Hive uses elliptic curve cryptography (ECDSA) with the secp256k1 curve. We
// chose the secp256k1 curve because it is also used by Bitcoin and the
// Lightning Network.
package keys
