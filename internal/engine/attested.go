package engine

import (
	"time"

	"github.com/grantline/grantline/internal/attest"
	"github.com/grantline/grantline/internal/session"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// Reason codes that can appear in a Result without a matching evaluation
// sentinel.
const (
	// ReasonInvalidAttestation marks a bundle whose signature does not
	// recover to its principal.
	ReasonInvalidAttestation = "INVALID_ATTESTATION"
)

// Validate is the attested-execution path: the caller presents a signed
// bundle binding a principal, a session reference, inline session
// parameters, and the execution payload. No prior approval call is
// required; when the referenced session is unknown or not yet approved and
// propose-on-unknown is enabled, a pending session is created from the
// bundle's own parameters and the attempt is denied, not failed.
//
// Validate never delegates a transfer; the host performs it only on an
// authorized result.
func (e *Engine) Validate(b *attest.Bundle) (Result, error) {
	start := time.Now()

	if e.maxPayload > 0 && len(b.Payload) > e.maxPayload {
		e.stats.RecordDecodeFailure()
		return Result{}, granterr.WithDetails(granterr.ErrMalformedIntent, map[string]string{
			"reason":    "payload exceeds size limit",
			"max_bytes": uintString(uint64(e.maxPayload)),
		})
	}

	if e.limiter != nil && !e.limiter.Allow(b.Principal) {
		e.stats.RecordRateLimited()
		return Result{}, granterr.WithDetails(granterr.ErrRateLimited, map[string]string{
			"principal": b.Principal.Hex(),
		})
	}

	if err := b.Verify(); err != nil {
		e.log.Debug("attestation rejected principal=%s session=%d: %v", b.Principal.Hex(), b.SessionID, err)
		return e.denied(start, ReasonInvalidAttestation), nil
	}

	in, err := b.DecodeIntent()
	if err != nil {
		e.stats.RecordDecodeFailure()
		return Result{}, err
	}

	res, err := e.evaluate(b.Principal, b.SessionID, b.Params.Recurring, in, start)
	if err != nil {
		return Result{}, err
	}
	if res.Authorized {
		return res, nil
	}

	// An unknown or unapproved session reference is a proposal, not a dead
	// end: record a pending session from the signed parameters so the
	// principal can approve it and the counterparty can retry.
	if e.proposeOnUnknown && proposable(res.Reason) {
		id, perr := e.propose(b)
		if perr != nil {
			return Result{}, perr
		}
		res.ProposedSession = id
		e.stats.RecordProposal()
		e.log.Info("session proposed principal=%s id=%d recurring=%t", b.Principal.Hex(), id, b.Params.Recurring)
	}
	return res, nil
}

// proposable reports whether a denial reason triggers implicit session
// creation on the attested path.
func proposable(reason string) bool {
	return reason == granterr.ErrUnknownSession.Code || reason == granterr.ErrSessionNotApproved.Code
}

// propose opens a pending session from the bundle's inline parameters.
func (e *Engine) propose(b *attest.Bundle) (uint64, error) {
	amount := b.Params.AmountBig()
	if amount == nil {
		return 0, granterr.WithDetails(granterr.ErrInvalidInput, map[string]string{
			"reason": "inline amount is not a valid decimal integer",
		})
	}

	if b.Params.Recurring {
		return e.store.OpenRecurring(b.Principal, session.RecurringParams{
			Amount:     amount,
			TimePeriod: b.Params.TimePeriod,
			TimeLimit:  b.Params.TimeLimit,
			Receiver:   b.Params.Receiver,
			Asset:      b.Params.Asset,
		}, e.clock())
	}

	return e.store.OpenOneTime(b.Principal, session.OneTimeParams{
		ValidAfter: b.Params.ValidAfter,
		ValidUntil: b.Params.ValidUntil,
		Amount:     amount,
		Receiver:   b.Params.Receiver,
		Asset:      b.Params.Asset,
	})
}
