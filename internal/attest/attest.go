// Package attest binds an execution attempt to a principal's signature. The
// signed digest covers the principal, the session reference, and a hash of
// the execution payload, so a signature cannot be replayed against a
// different session or payload.
package attest

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/grantline/grantline/internal/ethcrypto"
	"github.com/grantline/grantline/internal/intent"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// domainTag separates attestation digests from any other signed material.
const domainTag = "grantline/attest/v1"

// InlineParams carries the session parameters embedded in an execution
// attempt. When a referenced session is unknown, these are the parameters a
// pending session is proposed from.
type InlineParams struct {
	Recurring bool `json:"recurring"`

	// One-time fields.
	ValidAfter uint64 `json:"valid_after,omitempty"`
	ValidUntil uint64 `json:"valid_until,omitempty"`

	// Recurring fields.
	TimePeriod uint64 `json:"time_period,omitempty"`
	TimeLimit  uint64 `json:"time_limit,omitempty"`

	// Amount is the budget (one-time) or per-interval amount (recurring),
	// as a decimal string.
	Amount string `json:"amount"`

	Receiver common.Address `json:"receiver"`
	Asset    common.Address `json:"asset"`
}

// AmountBig returns Amount as a *big.Int, or nil if unparseable.
func (p InlineParams) AmountBig() *big.Int {
	v, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok || v.Sign() < 0 {
		return nil
	}
	return v
}

// hash folds the inline parameters into a fixed-width commitment.
func (p InlineParams) hash() []byte {
	var buf [1 + 4*8]byte
	if p.Recurring {
		buf[0] = 1
		binary.BigEndian.PutUint64(buf[1:9], p.TimePeriod)
		binary.BigEndian.PutUint64(buf[9:17], p.TimeLimit)
	} else {
		binary.BigEndian.PutUint64(buf[1:9], p.ValidAfter)
		binary.BigEndian.PutUint64(buf[9:17], p.ValidUntil)
	}
	return ethcrypto.Keccak256(
		buf[:17],
		[]byte(p.Amount),
		p.Receiver.Bytes(),
		p.Asset.Bytes(),
	)
}

// Bundle is a signed execution attempt: who claims to act, under which
// session, with which parameters and payload.
type Bundle struct {
	Principal common.Address `json:"principal"`
	SessionID uint64         `json:"session_id"`
	Params    InlineParams   `json:"params"`

	// Payload is the raw execution payload the signature commits to.
	Payload []byte `json:"payload"`

	// Signature is a 65-byte compact recoverable signature over Digest.
	Signature []byte `json:"signature"`
}

// Digest computes the canonical signing digest for the bundle. Signature is
// not part of the digest.
func (b *Bundle) Digest() []byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], b.SessionID)

	kind := byte(0)
	if b.Params.Recurring {
		kind = 1
	}

	return ethcrypto.Keccak256(
		[]byte(domainTag),
		b.Principal.Bytes(),
		id[:],
		[]byte{kind},
		b.Params.hash(),
		ethcrypto.Keccak256(b.Payload),
	)
}

// DecodeIntent decodes the bundle's payload as a self-describing execute
// wrapper around a token transfer. The signature commits to the payload
// bytes, so the decoded intent is exactly what the principal signed.
func (b *Bundle) DecodeIntent() (intent.Intent, error) {
	return intent.DecodeExecute(b.Payload)
}

// Sign computes the digest and signs it with the given private key.
func (b *Bundle) Sign(privateKey []byte) error {
	sig, err := ethcrypto.Sign(b.Digest(), privateKey)
	if err != nil {
		return granterr.Wrap(err, "signing attestation")
	}
	b.Signature = sig
	return nil
}

// RecoverSigner recovers the address that produced the bundle's signature.
func (b *Bundle) RecoverSigner() (common.Address, error) {
	if len(b.Signature) != ethcrypto.SignatureLength {
		return common.Address{}, granterr.WithDetails(granterr.ErrInvalidAttestation, map[string]string{
			"reason": "signature must be 65 bytes",
		})
	}

	addr, err := ethcrypto.RecoverAddress(b.Digest(), b.Signature)
	if err != nil {
		return common.Address{}, granterr.WithDetails(granterr.ErrInvalidAttestation, map[string]string{
			"reason": "signature recovery failed",
		})
	}
	return addr, nil
}

// Verify checks that the signature was produced by the bundle's principal.
func (b *Bundle) Verify() error {
	signer, err := b.RecoverSigner()
	if err != nil {
		return err
	}
	if signer != b.Principal {
		return granterr.WithDetails(granterr.ErrInvalidAttestation, map[string]string{
			"expected":  b.Principal.Hex(),
			"recovered": signer.Hex(),
		})
	}
	return nil
}

// envelope is the JSON wire form: byte fields travel as hex strings.
type envelope struct {
	Principal common.Address `json:"principal"`
	SessionID uint64         `json:"session_id"`
	Params    InlineParams   `json:"params"`
	Payload   string         `json:"payload"`
	Signature string         `json:"signature,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Principal: b.Principal,
		SessionID: b.SessionID,
		Params:    b.Params,
		Payload:   hexPrefix(b.Payload),
		Signature: hexPrefix(b.Signature),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return granterr.Wrap(err, "decoding attestation bundle")
	}

	payload, err := parseHex(env.Payload)
	if err != nil {
		return granterr.Wrap(err, "decoding attestation payload")
	}
	sig, err := parseHex(env.Signature)
	if err != nil {
		return granterr.Wrap(err, "decoding attestation signature")
	}

	b.Principal = env.Principal
	b.SessionID = env.SessionID
	b.Params = env.Params
	b.Payload = payload
	b.Signature = sig
	return nil
}

func hexPrefix(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(data)
}

func parseHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
