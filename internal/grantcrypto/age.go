// Package grantcrypto provides passphrase-based encryption and secure memory
// handling for Grantline's signing-key storage.
package grantcrypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// Encrypt seals plaintext with an age scrypt recipient derived from the
// passphrase. The output is a self-contained age file.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}

	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}
	if _, err = w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}

	return sealed.Bytes(), nil
}

// Decrypt opens an age file sealed by Encrypt with the same passphrase.
func Decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("initializing decryption: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted data: %w", err)
	}
	return plaintext, nil
}

// DecryptSecure decrypts straight into a SecureBytes buffer and zeroes
// the intermediate copy, so the plaintext key only lives in locked pages.
func DecryptSecure(ciphertext []byte, passphrase string) (*SecureBytes, error) {
	plaintext, err := Decrypt(ciphertext, passphrase)
	if err != nil {
		return nil, err
	}

	sb, err := SecureBytesFromSlice(plaintext)
	ZeroBytes(plaintext)
	return sb, err
}
