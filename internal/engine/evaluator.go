// Package engine is the authorization core: it evaluates execution attempts
// against stored sessions and exposes the two entry points that consume the
// decision. Approved execution trusts the caller's authentication; attested
// execution requires a signed bundle.
package engine

import (
	"strconv"

	"github.com/grantline/grantline/internal/config"
	"github.com/grantline/grantline/internal/intent"
	"github.com/grantline/grantline/internal/session"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// WindowPolicy selects how the one-time session's execution window treats
// its endpoints. The two published policies are not equivalent and callers
// must pick one explicitly.
type WindowPolicy int

const (
	// InclusiveClosed accepts validAfter <= now <= validUntil.
	InclusiveClosed WindowPolicy = iota

	// StrictOpen accepts validAfter < now < validUntil.
	StrictOpen
)

// WindowFromConfig maps a configured window name to its policy. Unknown
// names fall back to the inclusive-closed default.
func WindowFromConfig(name string) WindowPolicy {
	if name == config.WindowStrictOpen {
		return StrictOpen
	}
	return InclusiveClosed
}

// String returns the configured name of the policy.
func (w WindowPolicy) String() string {
	if w == StrictOpen {
		return config.WindowStrictOpen
	}
	return config.WindowInclusiveClosed
}

// contains reports whether now falls inside the window under this policy.
func (w WindowPolicy) contains(after, until, now uint64) bool {
	if w == StrictOpen {
		return after < now && now < until
	}
	return after <= now && now <= until
}

// ApplyOneTime evaluates an execution attempt against an approved one-time
// session and, on success, draws the amount down from the remaining quota.
// The record is mutated only on a nil return, so it composes directly with
// the store's commit-on-success evaluation.
//
// Check order is fixed: approval, window, addresses, quota. The first
// failing check decides the denial reason.
func ApplyOneTime(s *session.OneTime, in intent.Intent, now uint64, window WindowPolicy) error {
	if !s.Approved {
		return granterr.ErrSessionNotApproved
	}

	if !window.contains(s.ValidAfter, s.ValidUntil, now) {
		return granterr.WithDetails(granterr.ErrInvalidTime, map[string]string{
			"window": window.String(),
		})
	}

	if in.Recipient != s.Receiver || in.Asset != s.Asset {
		return granterr.ErrInvalidAddress
	}

	quota := s.QuotaBig()
	if quota.Sign() == 0 {
		return granterr.WithDetails(granterr.ErrInvalidAmount, map[string]string{
			"reason": "quota exhausted",
		})
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return granterr.WithDetails(granterr.ErrInvalidAmount, map[string]string{
			"reason": "amount must be positive",
		})
	}
	if in.Amount.Cmp(quota) > 0 {
		return granterr.WithDetails(granterr.ErrInvalidAmount, map[string]string{
			"remaining": quota.String(),
			"requested": in.Amount.String(),
		})
	}

	s.SetQuota(quota.Sub(quota, in.Amount))
	return nil
}

// ApplyRecurring evaluates an execution attempt against an approved
// recurring session and, on success, advances the interval by exactly one
// period. The amount must equal the subscription amount exactly; this is a
// fixed-payment model, not a drawable budget.
func ApplyRecurring(s *session.Recurring, in intent.Intent, now uint64) error {
	if !s.Approved {
		return granterr.ErrSessionNotApproved
	}

	if now < s.NextInterval || now > s.TimeLimit {
		return granterr.WithDetails(granterr.ErrInvalidTime, map[string]string{
			"next_due": uintString(s.NextInterval),
			"expires":  uintString(s.TimeLimit),
		})
	}

	if in.Recipient != s.Receiver || in.Asset != s.Asset {
		return granterr.ErrInvalidAddress
	}

	if in.Amount == nil || in.Amount.Cmp(s.AllowedBig()) != 0 {
		return granterr.WithDetails(granterr.ErrInvalidAmount, map[string]string{
			"allowed": s.AllowedAmount,
		})
	}

	s.NextInterval += s.TimePeriod
	return nil
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
