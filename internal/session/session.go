// Package session stores scoped-spending authorization sessions. A session
// grants a counterparty permission to receive a bounded amount of one asset
// from a principal, either as a drawable one-time budget or as a fixed
// recurring subscription. Sessions are keyed by (principal, id); ids are
// per-principal counters starting at 1 and are never reused.
package session

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	granterr "github.com/grantline/grantline/pkg/errors"
)

// MaxTimestamp is the largest representable timestamp or duration: the
// session wire format carries these as unsigned 48-bit values.
const MaxTimestamp = uint64(1)<<48 - 1

// Kind distinguishes the two session shapes.
type Kind int

// Session kinds.
const (
	KindOneTime Kind = iota
	KindRecurring
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindOneTime:
		return "one-time"
	case KindRecurring:
		return "recurring"
	default:
		return "unknown"
	}
}

// OneTime is a drawable-budget session: the remaining quota only decreases,
// and the session is exhausted once it reaches zero.
//
// Amounts are stored as decimal strings to avoid JSON precision loss with
// 256-bit values.
type OneTime struct {
	// Approved is set once by the principal and never cleared.
	Approved bool `json:"approved"`

	// ValidAfter and ValidUntil bound the execution window. Boundary
	// semantics are a policy choice made at evaluation time.
	ValidAfter uint64 `json:"valid_after"`
	ValidUntil uint64 `json:"valid_until"`

	// RemainingQuota is the mutable ceiling on the cumulative amount
	// transferable under this session.
	RemainingQuota string `json:"remaining_quota"`

	// Receiver is the only counterparty allowed to receive funds.
	Receiver common.Address `json:"receiver"`

	// Asset is the only token contract allowed.
	Asset common.Address `json:"asset"`
}

// QuotaBig returns RemainingQuota as a *big.Int. Returns zero if unset or
// unparseable.
func (s *OneTime) QuotaBig() *big.Int {
	return parseAmount(s.RemainingQuota)
}

// SetQuota stores v as the remaining quota.
func (s *OneTime) SetQuota(v *big.Int) {
	s.RemainingQuota = v.String()
}

// Exhausted reports whether the quota has reached zero.
func (s *OneTime) Exhausted() bool {
	return s.QuotaBig().Sign() == 0
}

// Recurring is a fixed-subscription session: each interval permits exactly
// one execution of exactly AllowedAmount, until TimeLimit passes.
type Recurring struct {
	Approved bool `json:"approved"`

	// AllowedAmount is the fixed per-interval amount; executions must match
	// it exactly.
	AllowedAmount string `json:"allowed_amount"`

	// TimePeriod is the interval length in seconds.
	TimePeriod uint64 `json:"time_period"`

	// TimeLimit is the absolute expiry; no execution may occur after it.
	TimeLimit uint64 `json:"time_limit"`

	// NextInterval is the earliest time the next execution may occur. It
	// advances by exactly TimePeriod on each successful use.
	NextInterval uint64 `json:"next_interval"`

	Receiver common.Address `json:"receiver"`
	Asset    common.Address `json:"asset"`
}

// AllowedBig returns AllowedAmount as a *big.Int. Returns zero if unset or
// unparseable.
func (s *Recurring) AllowedBig() *big.Int {
	return parseAmount(s.AllowedAmount)
}

// Expired reports whether now is past the session's absolute expiry.
func (s *Recurring) Expired(now uint64) bool {
	return now > s.TimeLimit
}

// OneTimeParams describes a one-time session to open.
type OneTimeParams struct {
	ValidAfter uint64
	ValidUntil uint64
	Amount     *big.Int
	Receiver   common.Address
	Asset      common.Address
}

// Validate checks field ranges before a session is created.
func (p OneTimeParams) Validate() error {
	if p.ValidAfter > MaxTimestamp || p.ValidUntil > MaxTimestamp {
		return granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"reason": "timestamp exceeds 48 bits",
		})
	}
	if p.ValidUntil <= p.ValidAfter {
		return granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"reason":      "validUntil must be after validAfter",
			"valid_after": strconv.FormatUint(p.ValidAfter, 10),
			"valid_until": strconv.FormatUint(p.ValidUntil, 10),
		})
	}
	return validateAmount(p.Amount)
}

// record builds the stored record for these parameters.
func (p OneTimeParams) record() *OneTime {
	return &OneTime{
		ValidAfter:     p.ValidAfter,
		ValidUntil:     p.ValidUntil,
		RemainingQuota: p.Amount.String(),
		Receiver:       p.Receiver,
		Asset:          p.Asset,
	}
}

// RecurringParams describes a recurring session to open.
type RecurringParams struct {
	Amount     *big.Int
	TimePeriod uint64
	TimeLimit  uint64
	Receiver   common.Address
	Asset      common.Address
}

// Validate checks field ranges before a session is created.
func (p RecurringParams) Validate() error {
	if p.TimePeriod > MaxTimestamp || p.TimeLimit > MaxTimestamp {
		return granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"reason": "duration or timestamp exceeds 48 bits",
		})
	}
	if p.TimePeriod == 0 {
		return granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"reason": "timePeriod must be nonzero",
		})
	}
	return validateAmount(p.Amount)
}

// record builds the stored record for these parameters. The first interval
// opens at creation time.
func (p RecurringParams) record(now uint64) *Recurring {
	return &Recurring{
		AllowedAmount: p.Amount.String(),
		TimePeriod:    p.TimePeriod,
		TimeLimit:     p.TimeLimit,
		NextInterval:  now,
		Receiver:      p.Receiver,
		Asset:         p.Asset,
	}
}

// parseAmount parses a decimal amount string, returning zero for unset or
// malformed values.
func parseAmount(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}

// validateAmount rejects nil, negative, and zero amounts.
func validateAmount(v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"reason": "amount must be a positive integer",
		})
	}
	return nil
}
