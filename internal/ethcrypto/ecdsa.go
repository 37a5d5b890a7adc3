package ethcrypto

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidPrivateKey indicates the private key is invalid.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrInvalidSignature indicates the signature is invalid.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidHashLength indicates the hash length is not 32 bytes.
	ErrInvalidHashLength = errors.New("hash must be 32 bytes")

	// ErrInvalidPublicKeyPrefix indicates an invalid public key prefix.
	ErrInvalidPublicKeyPrefix = errors.New("invalid public key prefix")

	// ErrInvalidPublicKeyLength indicates an invalid public key length.
	ErrInvalidPublicKeyLength = errors.New("invalid public key length")
)

// SignatureLength is the length of an [R || S || V] signature in bytes.
const SignatureLength = 65

// Sign signs the given hash with the private key and returns a 65-byte signature.
// The signature format is [R || S || V] where V is the recovery ID (0 or 1).
// This matches Ethereum's signature format (before EIP-155 chain ID encoding).
func Sign(hash, privateKey []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHashLength
	}
	if len(privateKey) != 32 {
		return nil, ErrInvalidPrivateKey
	}

	privKey := secp256k1.PrivKeyFromBytes(privateKey)
	if privKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	// Sign with recovery to get the recovery ID
	sig := ecdsa.SignCompact(privKey, hash, false)

	// SignCompact returns [V || R || S] (65 bytes) where V is recovery ID + 27
	if len(sig) != SignatureLength {
		return nil, ErrInvalidSignature
	}

	// Reformat to Ethereum's [R || S || V] with V in {0, 1}
	result := make([]byte, SignatureLength)
	copy(result[0:32], sig[1:33])
	copy(result[32:64], sig[33:65])
	result[64] = sig[0] - 27

	return result, nil
}

// RecoverPublicKey recovers the uncompressed public key that produced the
// given [R || S || V] signature over hash.
func RecoverPublicKey(hash, signature []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, ErrInvalidHashLength
	}
	if len(signature) != SignatureLength {
		return nil, ErrInvalidSignature
	}
	if signature[64] > 1 {
		return nil, ErrInvalidSignature
	}

	// RecoverCompact expects [V || R || S] with V in {27, 28}
	compact := make([]byte, SignatureLength)
	compact[0] = signature[64] + 27
	copy(compact[1:33], signature[0:32])
	copy(compact[33:65], signature[32:64])

	pubKey, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	return pubKey.SerializeUncompressed(), nil
}

// RecoverAddress recovers the Ethereum address that signed hash.
func RecoverAddress(hash, signature []byte) (common.Address, error) {
	pubKey, err := RecoverPublicKey(hash, signature)
	if err != nil {
		return common.Address{}, err
	}

	addrBytes, err := PublicKeyToAddress(pubKey)
	if err != nil {
		return common.Address{}, err
	}

	return common.BytesToAddress(addrBytes), nil
}

// PrivateKeyToPublicKey derives the public key from a private key.
// Returns the uncompressed public key (65 bytes: 0x04 || X || Y).
func PrivateKeyToPublicKey(privateKey []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, ErrInvalidPrivateKey
	}

	privKey := secp256k1.PrivKeyFromBytes(privateKey)
	if privKey == nil {
		return nil, ErrInvalidPrivateKey
	}

	pubKey := privKey.PubKey()
	return pubKey.SerializeUncompressed(), nil
}

// PublicKeyToAddress derives an Ethereum address from an uncompressed public key.
// The public key should be 65 bytes (0x04 prefix + 64 bytes X,Y coordinates)
// or 64 bytes (just the X,Y coordinates without prefix).
func PublicKeyToAddress(publicKey []byte) ([]byte, error) {
	var pubKeyBytes []byte

	switch len(publicKey) {
	case 65:
		if publicKey[0] != 0x04 {
			return nil, ErrInvalidPublicKeyPrefix
		}
		pubKeyBytes = publicKey[1:]
	case 64:
		pubKeyBytes = publicKey
	default:
		return nil, ErrInvalidPublicKeyLength
	}

	hash := Keccak256(pubKeyBytes)

	// Last 20 bytes of the hash are the address
	return hash[12:], nil
}

// DeriveAddress derives an Ethereum address from a private key.
func DeriveAddress(privateKey []byte) (common.Address, error) {
	pubKey, err := PrivateKeyToPublicKey(privateKey)
	if err != nil {
		return common.Address{}, err
	}
	addrBytes, err := PublicKeyToAddress(pubKey)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(addrBytes), nil
}
