package engine

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/grantline/grantline/internal/config"
	"github.com/grantline/grantline/internal/intent"
	"github.com/grantline/grantline/internal/metrics"
	"github.com/grantline/grantline/internal/session"
)

// Executor performs the actual asset transfer once an execution has been
// authorized. The engine never moves funds itself and never inspects the
// transfer beyond passing the error through.
type Executor interface {
	ExecuteTransfer(ctx context.Context, principal common.Address, in intent.Intent) error
}

// NopExecutor authorizes without delegating any transfer. Used when the
// engine runs as a pure decision service.
type NopExecutor struct{}

// ExecuteTransfer implements Executor.
func (NopExecutor) ExecuteTransfer(context.Context, common.Address, intent.Intent) error {
	return nil
}

// Result is the outcome of an authorization attempt. A denied attempt is a
// final answer, not an error: hard errors are reserved for malformed input,
// failed attestations that cannot be evaluated, and infrastructure faults.
type Result struct {
	// Authorized reports whether the attempt passed every check and the
	// session mutation was committed.
	Authorized bool `json:"authorized"`

	// Reason is the denial reason code; empty when authorized.
	Reason string `json:"reason,omitempty"`

	// TransferDelegated reports whether the external executor was asked to
	// perform the transfer.
	TransferDelegated bool `json:"transfer_delegated,omitempty"`

	// ProposedSession is the id of the pending session created when an
	// attested attempt referenced an unknown or unapproved session; zero
	// otherwise.
	ProposedSession uint64 `json:"proposed_session,omitempty"`
}

// Clock supplies the engine's notion of current time as a unix timestamp.
// The engine treats it as trusted and monotonic.
type Clock func() uint64

// Engine binds the session store, the intent decoder, and the evaluation
// rules into the two externally callable paths.
type Engine struct {
	store            *session.Store
	clock            Clock
	window           WindowPolicy
	proposeOnUnknown bool
	executor         Executor
	limiter          *RateLimiter
	log              *config.Logger
	stats            *metrics.Metrics
	maxPayload       int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithWindowPolicy selects the one-time window boundary semantics.
func WithWindowPolicy(w WindowPolicy) Option {
	return func(e *Engine) { e.window = w }
}

// WithProposeOnUnknown controls whether the attested path creates a pending
// session when the referenced one is unknown or unapproved.
func WithProposeOnUnknown(propose bool) Option {
	return func(e *Engine) { e.proposeOnUnknown = propose }
}

// WithExecutor sets the external transfer executor for the approved path.
func WithExecutor(x Executor) Option {
	return func(e *Engine) { e.executor = x }
}

// WithRateLimiter applies a per-principal limiter to the attested path.
func WithRateLimiter(l *RateLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithLogger sets the engine's logger.
func WithLogger(log *config.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.stats = m }
}

// WithMaxPayloadSize caps attested payload length in bytes; zero disables
// the cap.
func WithMaxPayloadSize(n int) Option {
	return func(e *Engine) { e.maxPayload = n }
}

// New creates an engine over the given store. Defaults: wall-clock time,
// inclusive-closed windows, propose-on-unknown enabled, no executor, no
// rate limiter.
func New(store *session.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		clock:            func() uint64 { return uint64(time.Now().Unix()) }, //nolint:gosec // G115: unix time is positive
		window:           InclusiveClosed,
		proposeOnUnknown: true,
		executor:         NopExecutor{},
		log:              config.NullLogger(),
		stats:            metrics.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the engine's session store.
func (e *Engine) Store() *session.Store {
	return e.store
}

// Now returns the engine's current time.
func (e *Engine) Now() uint64 {
	return e.clock()
}

// OpenSession opens a one-time session for the principal.
func (e *Engine) OpenSession(principal common.Address, params session.OneTimeParams) (uint64, error) {
	id, err := e.store.OpenOneTime(principal, params)
	if err != nil {
		return 0, err
	}
	e.log.Info("session opened principal=%s id=%d kind=one-time", principal.Hex(), id)
	return id, nil
}

// OpenRecurringSession opens a recurring session for the principal. The
// first interval opens at the engine's current time.
func (e *Engine) OpenRecurringSession(principal common.Address, params session.RecurringParams) (uint64, error) {
	id, err := e.store.OpenRecurring(principal, params, e.clock())
	if err != nil {
		return 0, err
	}
	e.log.Info("session opened principal=%s id=%d kind=recurring", principal.Hex(), id)
	return id, nil
}

// Approve marks a one-time session approved.
func (e *Engine) Approve(principal common.Address, id uint64) error {
	if err := e.store.ApproveOneTime(principal, id); err != nil {
		return err
	}
	e.log.Info("session approved principal=%s id=%d kind=one-time", principal.Hex(), id)
	return nil
}

// ApproveRecurring marks a recurring session approved.
func (e *Engine) ApproveRecurring(principal common.Address, id uint64) error {
	if err := e.store.ApproveRecurring(principal, id); err != nil {
		return err
	}
	e.log.Info("session approved principal=%s id=%d kind=recurring", principal.Hex(), id)
	return nil
}

// denied builds a denial result from the evaluation error and records it.
func (e *Engine) denied(start time.Time, reason string) Result {
	e.stats.RecordEval(time.Since(start), false, reason)
	return Result{Reason: reason}
}

// authorized builds a success result and records it.
func (e *Engine) authorized(start time.Time) Result {
	e.stats.RecordEval(time.Since(start), true, "")
	return Result{Authorized: true}
}
