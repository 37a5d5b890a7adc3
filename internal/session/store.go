package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/grantline/grantline/internal/fileutil"
	granterr "github.com/grantline/grantline/pkg/errors"
)

// Store holds session state for every principal. Each principal's state is
// guarded by its own mutex so evaluation (a read-modify-write of quota or
// interval) is serialized per principal without blocking other principals.
//
// When constructed with a base path the store persists each principal's
// state to a JSON file under that directory; with an empty base path it is
// memory only.
type Store struct {
	mu         sync.Mutex // guards principals map
	principals map[common.Address]*principalState
	basePath   string
	sink       EventSink
}

// principalState is all session state owned by one principal. Counters are
// independent per kind, so one-time session 3 and recurring session 3 are
// distinct sessions.
type principalState struct {
	mu        sync.Mutex
	OneTimeN  uint64
	RecurN    uint64
	OneTimes  map[uint64]*OneTime
	Recurring map[uint64]*Recurring
}

// persistedState is the on-disk shape. JSON object keys must be strings, so
// session ids are serialized as decimal strings.
type persistedState struct {
	OneTimeN  uint64                `json:"one_time_counter"`
	RecurN    uint64                `json:"recurring_counter"`
	OneTimes  map[string]*OneTime   `json:"one_time_sessions"`
	Recurring map[string]*Recurring `json:"recurring_sessions"`
}

// NewStore creates a session store. basePath may be empty for a memory-only
// store; otherwise per-principal state files live under it.
func NewStore(basePath string, sink EventSink) (*Store, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if basePath != "" {
		if err := os.MkdirAll(basePath, 0o700); err != nil {
			return nil, granterr.Wrap(err, "creating sessions directory")
		}
	}
	return &Store{
		principals: make(map[common.Address]*principalState),
		basePath:   basePath,
		sink:       sink,
	}, nil
}

// state returns the principal's state, loading it from disk on first access.
func (st *Store) state(principal common.Address) (*principalState, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if ps, ok := st.principals[principal]; ok {
		return ps, nil
	}

	ps := &principalState{
		OneTimes:  make(map[uint64]*OneTime),
		Recurring: make(map[uint64]*Recurring),
	}
	if st.basePath != "" {
		if err := ps.load(st.statePath(principal)); err != nil {
			return nil, err
		}
	}
	st.principals[principal] = ps
	return ps, nil
}

func (st *Store) statePath(principal common.Address) string {
	name := strings.ToLower(principal.Hex()) + ".json"
	return filepath.Join(st.basePath, name)
}

// persist writes the principal's state to disk. Caller holds ps.mu.
func (st *Store) persist(principal common.Address, ps *principalState) error {
	if st.basePath == "" {
		return nil
	}

	out := persistedState{
		OneTimeN:  ps.OneTimeN,
		RecurN:    ps.RecurN,
		OneTimes:  make(map[string]*OneTime, len(ps.OneTimes)),
		Recurring: make(map[string]*Recurring, len(ps.Recurring)),
	}
	for id, s := range ps.OneTimes {
		out.OneTimes[fmt.Sprintf("%d", id)] = s
	}
	for id, s := range ps.Recurring {
		out.Recurring[fmt.Sprintf("%d", id)] = s
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return granterr.Wrap(err, "encoding session state")
	}
	if err := fileutil.WriteAtomic(st.statePath(principal), data, 0o600); err != nil {
		return granterr.Wrap(err, "writing session state")
	}
	return nil
}

func (ps *principalState) load(path string) error {
	data, exists, err := fileutil.ReadIfExists(path)
	if err != nil {
		return granterr.Wrap(err, "reading session state")
	}
	if !exists {
		return nil
	}

	var in persistedState
	if err := json.Unmarshal(data, &in); err != nil {
		return granterr.Wrap(err, "decoding session state")
	}

	ps.OneTimeN = in.OneTimeN
	ps.RecurN = in.RecurN
	for key, s := range in.OneTimes {
		var id uint64
		if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
			return granterr.Wrap(err, "decoding session id %q", key)
		}
		ps.OneTimes[id] = s
	}
	for key, s := range in.Recurring {
		var id uint64
		if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
			return granterr.Wrap(err, "decoding session id %q", key)
		}
		ps.Recurring[id] = s
	}
	return nil
}

// OpenOneTime creates a new unapproved one-time session and returns its id.
// Ids start at 1 and increase by one per opened session of this kind.
func (st *Store) OpenOneTime(principal common.Address, params OneTimeParams) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}

	ps, err := st.state(principal)
	if err != nil {
		return 0, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	id := ps.OneTimeN + 1
	ps.OneTimes[id] = params.record()
	ps.OneTimeN = id

	if err := st.persist(principal, ps); err != nil {
		delete(ps.OneTimes, id)
		ps.OneTimeN = id - 1
		return 0, err
	}

	st.sink.SessionOpened(principal, id, KindOneTime)
	return id, nil
}

// OpenRecurring creates a new unapproved recurring session and returns its
// id. The first interval opens at now.
func (st *Store) OpenRecurring(principal common.Address, params RecurringParams, now uint64) (uint64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}

	ps, err := st.state(principal)
	if err != nil {
		return 0, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	id := ps.RecurN + 1
	ps.Recurring[id] = params.record(now)
	ps.RecurN = id

	if err := st.persist(principal, ps); err != nil {
		delete(ps.Recurring, id)
		ps.RecurN = id - 1
		return 0, err
	}

	st.sink.SessionOpened(principal, id, KindRecurring)
	return id, nil
}

// ApproveOneTime marks a one-time session approved. Approving an already
// approved session is a no-op; approving an id above the principal's counter
// fails with ErrUnknownSession.
func (st *Store) ApproveOneTime(principal common.Address, id uint64) error {
	ps, err := st.state(principal)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	s, ok := ps.OneTimes[id]
	if !ok || id > ps.OneTimeN {
		return unknownSession(principal, id)
	}
	if s.Approved {
		return nil
	}

	s.Approved = true
	if err := st.persist(principal, ps); err != nil {
		s.Approved = false
		return err
	}

	st.sink.SessionApproved(principal, id, KindOneTime)
	return nil
}

// ApproveRecurring marks a recurring session approved, with the same
// semantics as ApproveOneTime.
func (st *Store) ApproveRecurring(principal common.Address, id uint64) error {
	ps, err := st.state(principal)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	s, ok := ps.Recurring[id]
	if !ok || id > ps.RecurN {
		return unknownSession(principal, id)
	}
	if s.Approved {
		return nil
	}

	s.Approved = true
	if err := st.persist(principal, ps); err != nil {
		s.Approved = false
		return err
	}

	st.sink.SessionApproved(principal, id, KindRecurring)
	return nil
}

// GetOneTime returns a copy of the session record, or ErrUnknownSession.
func (st *Store) GetOneTime(principal common.Address, id uint64) (OneTime, error) {
	ps, err := st.state(principal)
	if err != nil {
		return OneTime{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	s, ok := ps.OneTimes[id]
	if !ok {
		return OneTime{}, unknownSession(principal, id)
	}
	return *s, nil
}

// GetRecurring returns a copy of the session record, or ErrUnknownSession.
func (st *Store) GetRecurring(principal common.Address, id uint64) (Recurring, error) {
	ps, err := st.state(principal)
	if err != nil {
		return Recurring{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	s, ok := ps.Recurring[id]
	if !ok {
		return Recurring{}, unknownSession(principal, id)
	}
	return *s, nil
}

// CountOneTime returns the principal's one-time session counter.
func (st *Store) CountOneTime(principal common.Address) (uint64, error) {
	ps, err := st.state(principal)
	if err != nil {
		return 0, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.OneTimeN, nil
}

// CountRecurring returns the principal's recurring session counter.
func (st *Store) CountRecurring(principal common.Address) (uint64, error) {
	ps, err := st.state(principal)
	if err != nil {
		return 0, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.RecurN, nil
}

// EvalOneTime runs fn against the session record under the principal's
// lock. The record passed to fn is a working copy: mutations are persisted
// and made visible only when fn returns nil. A missing session yields
// ErrUnknownSession.
func (st *Store) EvalOneTime(principal common.Address, id uint64, fn func(s *OneTime) error) error {
	ps, err := st.state(principal)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	s, ok := ps.OneTimes[id]
	if !ok {
		return unknownSession(principal, id)
	}

	working := *s
	if err := fn(&working); err != nil {
		return err
	}

	*s = working
	return st.persist(principal, ps)
}

// EvalRecurring runs fn against the session record under the principal's
// lock, with the same commit-on-success semantics as EvalOneTime.
func (st *Store) EvalRecurring(principal common.Address, id uint64, fn func(s *Recurring) error) error {
	ps, err := st.state(principal)
	if err != nil {
		return err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	s, ok := ps.Recurring[id]
	if !ok {
		return unknownSession(principal, id)
	}

	working := *s
	if err := fn(&working); err != nil {
		return err
	}

	*s = working
	return st.persist(principal, ps)
}

// ListOneTime returns the principal's one-time sessions keyed by id.
func (st *Store) ListOneTime(principal common.Address) (map[uint64]OneTime, error) {
	ps, err := st.state(principal)
	if err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	out := make(map[uint64]OneTime, len(ps.OneTimes))
	for id, s := range ps.OneTimes {
		out[id] = *s
	}
	return out, nil
}

// ListRecurring returns the principal's recurring sessions keyed by id.
func (st *Store) ListRecurring(principal common.Address) (map[uint64]Recurring, error) {
	ps, err := st.state(principal)
	if err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	out := make(map[uint64]Recurring, len(ps.Recurring))
	for id, s := range ps.Recurring {
		out[id] = *s
	}
	return out, nil
}

func unknownSession(principal common.Address, id uint64) error {
	return granterr.WithDetails(granterr.ErrUnknownSession, map[string]string{
		"principal": principal.Hex(),
		"session":   fmt.Sprintf("%d", id),
	})
}
