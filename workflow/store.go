package workflow

import (
	"context"

	"go.uber.org/atomic"
)

// Store reads and writes the current state of one workflow instance.
//
// Load returns "" when no state has been stored yet; the machine then starts
// in the initial state. Persist is called exactly once per committed
// transition, from inside the innermost callback phase, and whatever it
// returns is reported as Result.Persisted. Returning an error from Persist
// fails the transition.
type Store interface {
	Load(ctx context.Context) (string, error)
	Persist(ctx context.Context, state string) (any, error)
}

// StoreFuncs adapts two functions to Store.
type StoreFuncs struct {
	LoadFunc    func(ctx context.Context) (string, error)
	PersistFunc func(ctx context.Context, state string) (any, error)
}

func (s StoreFuncs) Load(ctx context.Context) (string, error) {
	if s.LoadFunc == nil {
		return "", nil
	}

	return s.LoadFunc(ctx)
}

func (s StoreFuncs) Persist(ctx context.Context, state string) (any, error) {
	if s.PersistFunc == nil {
		return state, nil
	}

	return s.PersistFunc(ctx, state)
}

// MemoryStore keeps the state in memory. It is safe for concurrent use.
type MemoryStore struct {
	state  *atomic.String
	writes *atomic.Int64
	loads  *atomic.Int64
}

// NewMemoryStore returns a store holding initial, which may be "".
func NewMemoryStore(initial string) *MemoryStore {
	return &MemoryStore{
		state:  atomic.NewString(initial),
		writes: atomic.NewInt64(0),
		loads:  atomic.NewInt64(0),
	}
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.loads.Inc()

	return m.state.Load(), nil
}

// Persist stores state and returns it.
func (m *MemoryStore) Persist(_ context.Context, state string) (any, error) {
	m.state.Store(state)
	m.writes.Inc()

	return state, nil
}

// State returns the stored state without counting a load.
func (m *MemoryStore) State() string {
	return m.state.Load()
}

// Writes counts Persist calls.
func (m *MemoryStore) Writes() int64 {
	return m.writes.Load()
}

// Loads counts Load calls.
func (m *MemoryStore) Loads() int64 {
	return m.loads.Load()
}
