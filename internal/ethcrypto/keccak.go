// Package ethcrypto provides the Ethereum primitives Grantline needs:
// Keccak-256 digests, secp256k1 signatures with public key recovery, and
// address derivation.
package ethcrypto

import "golang.org/x/crypto/sha3"

// Keccak256 hashes the concatenation of the inputs with legacy Keccak-256,
// the digest Ethereum uses everywhere.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash is Keccak256 returned as a fixed 32-byte array.
func Keccak256Hash(data ...[]byte) [32]byte {
	var out [32]byte
	copy(out[:], Keccak256(data...))
	return out
}
