// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
// For production observability, consider integrating with Prometheus or similar.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/grantline/grantline/internal/session"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Session lifecycle metrics
	sessionsOpened   atomic.Int64
	sessionsApproved atomic.Int64
	sessionsProposed atomic.Int64

	// Evaluation metrics
	evalTotal        atomic.Int64
	evalAuthorized   atomic.Int64
	evalLatencyNanos atomic.Int64

	// Denials by reason code
	denialsMu sync.Mutex
	denials   map[string]int64

	// Decode failure metrics
	decodeFailures atomic.Int64

	// Rate limiter rejections
	rateLimited atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = New()

// New creates an empty metrics collector.
func New() *Metrics {
	return &Metrics{denials: make(map[string]int64)}
}

// SessionOpened implements session.EventSink.
func (m *Metrics) SessionOpened(common.Address, uint64, session.Kind) {
	m.sessionsOpened.Add(1)
}

// SessionApproved implements session.EventSink.
func (m *Metrics) SessionApproved(common.Address, uint64, session.Kind) {
	m.sessionsApproved.Add(1)
}

// RecordProposal records an implicitly proposed pending session.
func (m *Metrics) RecordProposal() {
	m.sessionsProposed.Add(1)
}

// RecordEval records one authorization evaluation. reason is the denial
// reason code, empty when authorized.
func (m *Metrics) RecordEval(duration time.Duration, authorized bool, reason string) {
	m.evalTotal.Add(1)
	m.evalLatencyNanos.Add(duration.Nanoseconds())

	if authorized {
		m.evalAuthorized.Add(1)
		return
	}

	m.denialsMu.Lock()
	m.denials[reason]++
	m.denialsMu.Unlock()
}

// RecordDecodeFailure records a payload that failed intent decoding.
func (m *Metrics) RecordDecodeFailure() {
	m.decodeFailures.Add(1)
}

// RecordRateLimited records a validation attempt rejected by the limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Add(1)
}

// Snapshot returns a point-in-time copy of all metrics.
type Snapshot struct {
	SessionsOpened   int64
	SessionsApproved int64
	SessionsProposed int64
	EvalTotal        int64
	EvalAuthorized   int64
	EvalLatencyNanos int64
	DenialsByReason  map[string]int64
	DecodeFailures   int64
	RateLimited      int64
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.denialsMu.Lock()
	denials := make(map[string]int64, len(m.denials))
	for k, v := range m.denials {
		denials[k] = v
	}
	m.denialsMu.Unlock()

	return Snapshot{
		SessionsOpened:   m.sessionsOpened.Load(),
		SessionsApproved: m.sessionsApproved.Load(),
		SessionsProposed: m.sessionsProposed.Load(),
		EvalTotal:        m.evalTotal.Load(),
		EvalAuthorized:   m.evalAuthorized.Load(),
		EvalLatencyNanos: m.evalLatencyNanos.Load(),
		DenialsByReason:  denials,
		DecodeFailures:   m.decodeFailures.Load(),
		RateLimited:      m.rateLimited.Load(),
	}
}

// EvalLatencyAvgMs returns the average evaluation latency in milliseconds.
// Returns 0 if no evaluations have occurred.
func (m *Metrics) EvalLatencyAvgMs() float64 {
	total := m.evalTotal.Load()
	if total == 0 {
		return 0
	}
	nanos := m.evalLatencyNanos.Load()
	return float64(nanos) / float64(total) / 1e6
}

// DenialRate returns the denial rate as a percentage (0-100).
// Returns 0 if no evaluations have occurred.
func (m *Metrics) DenialRate() float64 {
	total := m.evalTotal.Load()
	if total == 0 {
		return 0
	}
	denied := total - m.evalAuthorized.Load()
	return float64(denied) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.sessionsOpened.Store(0)
	m.sessionsApproved.Store(0)
	m.sessionsProposed.Store(0)
	m.evalTotal.Store(0)
	m.evalAuthorized.Store(0)
	m.evalLatencyNanos.Store(0)
	m.decodeFailures.Store(0)
	m.rateLimited.Store(0)

	m.denialsMu.Lock()
	m.denials = make(map[string]int64)
	m.denialsMu.Unlock()
}
