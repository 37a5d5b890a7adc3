package session

import "github.com/ethereum/go-ethereum/common"

// EventSink receives session lifecycle notifications. Implementations must
// be safe for concurrent use; callbacks run while the principal's state is
// locked, so they must not call back into the Store.
type EventSink interface {
	// SessionOpened fires when a session is created, including pending
	// sessions proposed during attested validation.
	SessionOpened(principal common.Address, id uint64, kind Kind)

	// SessionApproved fires on the first approval of a session. Idempotent
	// re-approvals do not fire.
	SessionApproved(principal common.Address, id uint64, kind Kind)
}

// NopSink discards all events.
type NopSink struct{}

// SessionOpened implements EventSink.
func (NopSink) SessionOpened(common.Address, uint64, Kind) {}

// SessionApproved implements EventSink.
func (NopSink) SessionApproved(common.Address, uint64, Kind) {}
