package memstore

import (
	"sort"
	"sync"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// ExceptionStore holds exceptions with per-exception compare-and-set status
// transitions. Readers never block writers; the lazy expiry check at
// evaluation time is the correctness guard, stored status only records
// explicit transitions.
type ExceptionStore struct {
	mu         sync.RWMutex
	exceptions map[string]*entities.Exception
	byIdemKey  map[string]string
}

// NewExceptionStore creates an empty exception store.
func NewExceptionStore() *ExceptionStore {
	return &ExceptionStore{
		exceptions: make(map[string]*entities.Exception),
		byIdemKey:  make(map[string]string),
	}
}

var _ ports.ExceptionStore = (*ExceptionStore)(nil)

// Put inserts a new exception.
func (s *ExceptionStore) Put(ex *entities.Exception) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.exceptions[ex.ID]; exists {
		return &derrors.ConflictError{ID: ex.ID}
	}
	s.exceptions[ex.ID] = ex.Clone()
	if ex.IdempotencyKey != "" {
		s.byIdemKey[ex.IdempotencyKey] = ex.ID
	}
	return nil
}

// Get returns the exception with the given ID.
func (s *ExceptionStore) Get(id string) (*entities.Exception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.exceptions[id]
	if !ok {
		return nil, &derrors.NotFoundError{Kind: "exception", ID: id}
	}
	return ex.Clone(), nil
}

// List returns all exceptions, most recently created first, ties broken by
// lexicographically smallest identifier. The total order keeps the
// evaluator's attribution deterministic.
func (s *ExceptionStore) List() []*entities.Exception {
	s.mu.RLock()
	out := make([]*entities.Exception, 0, len(s.exceptions))
	for _, ex := range s.exceptions {
		out = append(out, ex.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListActive returns exceptions whose stored status is active, in List order.
func (s *ExceptionStore) ListActive() []*entities.Exception {
	all := s.List()
	active := all[:0]
	for _, ex := range all {
		if ex.Status == entities.StatusActive {
			active = append(active, ex)
		}
	}
	return active
}

// FindByIdempotencyKey returns the exception created with the given key.
func (s *ExceptionStore) FindByIdempotencyKey(key string) (*entities.Exception, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdemKey[key]
	if !ok {
		return nil, false
	}
	ex, ok := s.exceptions[id]
	if !ok {
		return nil, false
	}
	return ex.Clone(), true
}

// Transition atomically moves an exception between statuses. The swap only
// succeeds while the current status still equals from, which enforces the
// terminal-state invariant when a revoke and an expire race.
func (s *ExceptionStore) Transition(id string, from, to entities.Status, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.exceptions[id]
	if !ok {
		return false, &derrors.NotFoundError{Kind: "exception", ID: id}
	}
	if ex.Status != from {
		return false, nil
	}
	ex.Status = to
	ex.StatusReason = reason
	return true, nil
}
