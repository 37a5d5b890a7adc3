package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/grantline/grantline/internal/intent"
	"github.com/grantline/grantline/internal/session"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// Action is one entry of an execution bundle on the approved path: a call
// to Target carrying Value native units and Data call data.
type Action struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// ExecuteScoped is the approved-execution path: the caller is already
// authenticated as the executing agent and supplies the session reference
// directly. Exactly one action is accepted; bundles with more are rejected
// before any decoding. On an authorized result the transfer is delegated to
// the configured executor; on a denial nothing is executed.
//
// Denials come back in the Result with a nil error. A non-nil error means
// the attempt could not be evaluated at all (malformed payload, multi-action
// bundle, storage fault) and aborts the attempt outright.
func (e *Engine) ExecuteScoped(ctx context.Context, principal common.Address, sessionID uint64, recurring bool, actions []Action) (Result, error) {
	start := time.Now()

	if len(actions) != 1 {
		e.stats.RecordDecodeFailure()
		return Result{}, granterr.WithDetails(granterr.ErrUnsupportedIntentShape, map[string]string{
			"reason":  "exactly one action required",
			"actions": uintString(uint64(len(actions))),
		})
	}

	action := actions[0]
	if action.Value != nil && action.Value.Sign() != 0 {
		e.stats.RecordDecodeFailure()
		return Result{}, granterr.WithDetails(granterr.ErrUnsupportedIntentShape, map[string]string{
			"reason": "native value transfers are not supported",
		})
	}

	in, err := intent.DecodeTransfer(action.Target, action.Data)
	if err != nil {
		e.stats.RecordDecodeFailure()
		return Result{}, err
	}

	res, err := e.evaluate(principal, sessionID, recurring, in, start)
	if err != nil {
		return Result{}, err
	}

	// The completion log fires on denial too, matching the notification
	// behavior of the host protocol.
	defer e.log.Info("execution completed principal=%s session=%d authorized=%t",
		principal.Hex(), sessionID, res.Authorized)

	if !res.Authorized {
		return res, nil
	}

	if err := e.executor.ExecuteTransfer(ctx, principal, in); err != nil {
		return res, granterr.Wrap(err, "delegating transfer")
	}
	res.TransferDelegated = true
	return res, nil
}

// evaluate runs the decoded intent against the referenced session and
// commits the quota or interval mutation when authorized.
func (e *Engine) evaluate(principal common.Address, sessionID uint64, recurring bool, in intent.Intent, start time.Time) (Result, error) {
	now := e.clock()

	var err error
	if recurring {
		err = e.store.EvalRecurring(principal, sessionID, func(s *session.Recurring) error {
			return ApplyRecurring(s, in, now)
		})
	} else {
		err = e.store.EvalOneTime(principal, sessionID, func(s *session.OneTime) error {
			return ApplyOneTime(s, in, now, e.window)
		})
	}

	if err == nil {
		return e.authorized(start), nil
	}
	if reason, ok := denialReason(err); ok {
		e.log.Debug("execution denied principal=%s session=%d reason=%s", principal.Hex(), sessionID, reason)
		return e.denied(start, reason), nil
	}
	return Result{}, err
}

// denialReason maps an evaluation error to its denial reason code. Errors
// outside the denial taxonomy are infrastructure faults, not decisions.
func denialReason(err error) (string, bool) {
	switch {
	case granterr.Is(err, granterr.ErrUnknownSession),
		granterr.Is(err, granterr.ErrSessionNotApproved),
		granterr.Is(err, granterr.ErrInvalidTime),
		granterr.Is(err, granterr.ErrInvalidAddress),
		granterr.Is(err, granterr.ErrInvalidAmount):
		return granterr.Code(err), true
	default:
		return "", false
	}
}
