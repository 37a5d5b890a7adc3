package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantline/grantline/internal/attest"
	"github.com/grantline/grantline/internal/intent"
	"github.com/grantline/grantline/internal/metrics"
	"github.com/grantline/grantline/internal/session"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// Private key 0x...01 and its well-known address serve as the principal.
var (
	principalKey = append(make([]byte, 31), 0x01)
	principal    = common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
)

type fixedClock uint64

func (c fixedClock) Now() uint64 { return uint64(c) }

// recordingExecutor captures delegated transfers.
type recordingExecutor struct {
	calls []intent.Intent
	err   error
}

func (x *recordingExecutor) ExecuteTransfer(_ context.Context, _ common.Address, in intent.Intent) error {
	if x.err != nil {
		return x.err
	}
	x.calls = append(x.calls, in)
	return nil
}

func newTestEngine(t *testing.T, now uint64, opts ...Option) *Engine {
	t.Helper()

	store, err := session.NewStore("", nil)
	require.NoError(t, err)

	base := []Option{WithClock(fixedClock(now).Now)}
	return New(store, append(base, opts...)...)
}

func openApproved(t *testing.T, e *Engine, amount int64) uint64 {
	t.Helper()

	id, err := e.OpenSession(principal, session.OneTimeParams{
		ValidAfter: 100,
		ValidUntil: 200,
		Amount:     big.NewInt(amount),
		Receiver:   receiver,
		Asset:      asset,
	})
	require.NoError(t, err)
	require.NoError(t, e.Approve(principal, id))
	return id
}

func singleAction(amount int64) []Action {
	return []Action{{
		Target: asset,
		Value:  big.NewInt(0),
		Data:   intent.EncodeTransfer(receiver, big.NewInt(amount)),
	}}
}

func TestExecuteScopedAuthorizes(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{}
	e := newTestEngine(t, 150, WithExecutor(exec))
	id := openApproved(t, e, 100)

	res, err := e.ExecuteScoped(context.Background(), principal, id, false, singleAction(60))
	require.NoError(t, err)
	assert.True(t, res.Authorized)
	assert.True(t, res.TransferDelegated)
	require.Len(t, exec.calls, 1)
	assert.Equal(t, receiver, exec.calls[0].Recipient)
	assert.Equal(t, int64(60), exec.calls[0].Amount.Int64())

	s, err := e.Store().GetOneTime(principal, id)
	require.NoError(t, err)
	assert.Equal(t, "40", s.RemainingQuota)
}

func TestExecuteScopedDeniesWithoutTransfer(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{}
	e := newTestEngine(t, 150, WithExecutor(exec))
	id := openApproved(t, e, 100)

	// 60 then another 60 against a 100 budget: the second draw is denied
	// and the quota stays at 40.
	res, err := e.ExecuteScoped(context.Background(), principal, id, false, singleAction(60))
	require.NoError(t, err)
	require.True(t, res.Authorized)

	res, err = e.ExecuteScoped(context.Background(), principal, id, false, singleAction(60))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "INVALID_AMOUNT", res.Reason)
	assert.False(t, res.TransferDelegated)
	assert.Len(t, exec.calls, 1)

	s, err := e.Store().GetOneTime(principal, id)
	require.NoError(t, err)
	assert.Equal(t, "40", s.RemainingQuota)
}

func TestExecuteScopedUnknownSessionDeniesOutright(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)

	// The approved path never proposes; an unknown id is a plain denial.
	res, err := e.ExecuteScoped(context.Background(), principal, 9, false, singleAction(10))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "UNKNOWN_SESSION", res.Reason)
	assert.Zero(t, res.ProposedSession)

	n, err := e.Store().CountOneTime(principal)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecuteScopedUnapprovedDenies(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id, err := e.OpenSession(principal, session.OneTimeParams{
		ValidAfter: 100,
		ValidUntil: 200,
		Amount:     big.NewInt(100),
		Receiver:   receiver,
		Asset:      asset,
	})
	require.NoError(t, err)

	res, err := e.ExecuteScoped(context.Background(), principal, id, false, singleAction(10))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "SESSION_NOT_APPROVED", res.Reason)
}

func TestExecuteScopedRejectsMultiAction(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id := openApproved(t, e, 100)

	actions := append(singleAction(10), singleAction(10)...)
	_, err := e.ExecuteScoped(context.Background(), principal, id, false, actions)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrUnsupportedIntentShape))

	_, err = e.ExecuteScoped(context.Background(), principal, id, false, nil)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrUnsupportedIntentShape))
}

func TestExecuteScopedRejectsNativeValue(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id := openApproved(t, e, 100)

	actions := singleAction(10)
	actions[0].Value = big.NewInt(1)

	_, err := e.ExecuteScoped(context.Background(), principal, id, false, actions)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrUnsupportedIntentShape))
}

func TestExecuteScopedMalformedData(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id := openApproved(t, e, 100)

	actions := singleAction(10)
	actions[0].Data = actions[0].Data[:20]

	_, err := e.ExecuteScoped(context.Background(), principal, id, false, actions)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrMalformedIntent))
}

func TestExecuteScopedExecutorFailure(t *testing.T) {
	t.Parallel()

	exec := &recordingExecutor{err: granterr.New("DELEGATE_FAILED", "host rejected")}
	e := newTestEngine(t, 150, WithExecutor(exec))
	id := openApproved(t, e, 100)

	res, err := e.ExecuteScoped(context.Background(), principal, id, false, singleAction(60))
	require.Error(t, err)
	assert.True(t, res.Authorized)
	assert.False(t, res.TransferDelegated)

	// The quota draw was committed before delegation.
	s, err2 := e.Store().GetOneTime(principal, id)
	require.NoError(t, err2)
	assert.Equal(t, "40", s.RemainingQuota)
}

func TestExecuteScopedRecurring(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 1000)

	id, err := e.OpenRecurringSession(principal, session.RecurringParams{
		Amount:     big.NewInt(50),
		TimePeriod: 86400,
		TimeLimit:  1000 + 30*86400,
		Receiver:   receiver,
		Asset:      asset,
	})
	require.NoError(t, err)
	require.NoError(t, e.ApproveRecurring(principal, id))

	res, err := e.ExecuteScoped(context.Background(), principal, id, true, singleAction(50))
	require.NoError(t, err)
	assert.True(t, res.Authorized)

	r, err := e.Store().GetRecurring(principal, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000+86400), r.NextInterval)

	// An hour later the subscription is not due.
	e2clock := fixedClock(1000 + 3600)
	res, err = New(e.Store(), WithClock(e2clock.Now)).ExecuteScoped(context.Background(), principal, id, true, singleAction(50))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "INVALID_TIME", res.Reason)
}

func signedBundle(t *testing.T, sessionID uint64, amount int64) *attest.Bundle {
	t.Helper()

	b := &attest.Bundle{
		Principal: principal,
		SessionID: sessionID,
		Params: attest.InlineParams{
			ValidAfter: 100,
			ValidUntil: 200,
			Amount:     "100",
			Receiver:   receiver,
			Asset:      asset,
		},
		Payload: intent.EncodeExecute(asset, big.NewInt(0), intent.EncodeTransfer(receiver, big.NewInt(amount))),
	}
	require.NoError(t, b.Sign(principalKey))
	return b
}

func TestValidateAuthorizes(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id := openApproved(t, e, 100)

	res, err := e.Validate(signedBundle(t, id, 60))
	require.NoError(t, err)
	assert.True(t, res.Authorized)
	assert.False(t, res.TransferDelegated)

	s, err := e.Store().GetOneTime(principal, id)
	require.NoError(t, err)
	assert.Equal(t, "40", s.RemainingQuota)
}

func TestValidateUnknownSessionProposes(t *testing.T) {
	t.Parallel()

	stats := metrics.New()
	e := newTestEngine(t, 150, WithMetrics(stats))

	res, err := e.Validate(signedBundle(t, 1, 60))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "UNKNOWN_SESSION", res.Reason)
	require.Equal(t, uint64(1), res.ProposedSession)

	// The proposed record carries the attempt's own parameters, pending
	// approval.
	s, err := e.Store().GetOneTime(principal, res.ProposedSession)
	require.NoError(t, err)
	assert.False(t, s.Approved)
	assert.Equal(t, uint64(100), s.ValidAfter)
	assert.Equal(t, uint64(200), s.ValidUntil)
	assert.Equal(t, "100", s.RemainingQuota)
	assert.Equal(t, receiver, s.Receiver)
	assert.Equal(t, asset, s.Asset)

	assert.Equal(t, int64(1), stats.Snapshot().SessionsProposed)

	// Once the principal approves, the same bundle authorizes.
	require.NoError(t, e.Approve(principal, res.ProposedSession))
	res, err = e.Validate(signedBundle(t, res.ProposedSession, 60))
	require.NoError(t, err)
	assert.True(t, res.Authorized)
}

func TestValidateUnapprovedProposes(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)

	_, err := e.OpenSession(principal, session.OneTimeParams{
		ValidAfter: 100,
		ValidUntil: 200,
		Amount:     big.NewInt(100),
		Receiver:   receiver,
		Asset:      asset,
	})
	require.NoError(t, err)

	res, err := e.Validate(signedBundle(t, 1, 60))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "SESSION_NOT_APPROVED", res.Reason)
	assert.Equal(t, uint64(2), res.ProposedSession)
}

func TestValidateProposeDisabled(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150, WithProposeOnUnknown(false))

	res, err := e.Validate(signedBundle(t, 1, 60))
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, "UNKNOWN_SESSION", res.Reason)
	assert.Zero(t, res.ProposedSession)

	n, err := e.Store().CountOneTime(principal)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidateRecurringProposal(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 1000)

	b := &attest.Bundle{
		Principal: principal,
		SessionID: 1,
		Params: attest.InlineParams{
			Recurring:  true,
			TimePeriod: 86400,
			TimeLimit:  1000 + 30*86400,
			Amount:     "50",
			Receiver:   receiver,
			Asset:      asset,
		},
		Payload: intent.EncodeExecute(asset, big.NewInt(0), intent.EncodeTransfer(receiver, big.NewInt(50))),
	}
	require.NoError(t, b.Sign(principalKey))

	res, err := e.Validate(b)
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	require.Equal(t, uint64(1), res.ProposedSession)

	r, err := e.Store().GetRecurring(principal, res.ProposedSession)
	require.NoError(t, err)
	assert.Equal(t, "50", r.AllowedAmount)
	assert.Equal(t, uint64(1000), r.NextInterval)

	// Approve; the same attestation now authorizes and rolls the interval.
	require.NoError(t, e.ApproveRecurring(principal, res.ProposedSession))
	res, err = e.Validate(b)
	require.NoError(t, err)
	assert.True(t, res.Authorized)

	r, err = e.Store().GetRecurring(principal, res.ProposedSession)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000+86400), r.NextInterval)
}

func TestValidateBadSignature(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id := openApproved(t, e, 100)

	b := signedBundle(t, id, 60)
	b.Payload = intent.EncodeExecute(asset, big.NewInt(0), intent.EncodeTransfer(receiver, big.NewInt(99)))

	res, err := e.Validate(b)
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, ReasonInvalidAttestation, res.Reason)

	s, err := e.Store().GetOneTime(principal, id)
	require.NoError(t, err)
	assert.Equal(t, "100", s.RemainingQuota)
}

func TestValidateWrongSigner(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	id := openApproved(t, e, 100)

	b := signedBundle(t, id, 60)
	otherKey := append(make([]byte, 31), 0x02)
	require.NoError(t, b.Sign(otherKey))

	res, err := e.Validate(b)
	require.NoError(t, err)
	assert.False(t, res.Authorized)
	assert.Equal(t, ReasonInvalidAttestation, res.Reason)
}

func TestValidateMalformedPayload(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150)
	openApproved(t, e, 100)

	b := &attest.Bundle{
		Principal: principal,
		SessionID: 1,
		Params:    attest.InlineParams{Amount: "100", Receiver: receiver, Asset: asset},
		Payload:   []byte{0xb6, 0x1d, 0x27, 0xf6, 0x00},
	}
	require.NoError(t, b.Sign(principalKey))

	_, err := e.Validate(b)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrMalformedIntent))
}

func TestValidatePayloadSizeCap(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150, WithMaxPayloadSize(16))

	b := signedBundle(t, 1, 60)
	_, err := e.Validate(b)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrMalformedIntent))
}

func TestValidateRateLimited(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, 150, WithRateLimiter(NewRateLimiter(1, 2)))
	id := openApproved(t, e, 100)

	b := signedBundle(t, id, 1)
	_, err := e.Validate(b)
	require.NoError(t, err)
	_, err = e.Validate(b)
	require.NoError(t, err)

	_, err = e.Validate(b)
	require.Error(t, err)
	assert.True(t, granterr.Is(err, granterr.ErrRateLimited))
}

func TestRateLimiterPerPrincipal(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1)

	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")

	assert.True(t, rl.Allow(a))
	assert.False(t, rl.Allow(a))

	// A different principal has its own bucket.
	assert.True(t, rl.Allow(b))
}
