package ports

import "github.com/breakglass-dev/breakglass/domain/entities"

// ExceptionStore persists exceptions. The lifecycle manager owns the write
// path; readers receive defensive copies and never observe a transition back
// to active.
type ExceptionStore interface {
	// Put inserts a new exception. It returns a *errors.ConflictError when
	// the identifier is already taken.
	Put(ex *entities.Exception) error

	// Get returns the exception with the given ID, or a
	// *errors.NotFoundError.
	Get(id string) (*entities.Exception, error)

	// List returns all exceptions ordered most-recently-created first,
	// ties broken by lexicographically smallest identifier.
	List() []*entities.Exception

	// ListActive returns the subset of List with stored status active.
	// Callers still apply the lazy expiry check; stored status alone does
	// not imply the exception grants access.
	ListActive() []*entities.Exception

	// FindByIdempotencyKey returns the exception created with the given
	// key, if any.
	FindByIdempotencyKey(key string) (*entities.Exception, bool)

	// Transition atomically moves the exception from status from to status
	// to, recording reason. It reports false without error when the
	// exception is no longer in the from status (the terminal-state
	// invariant: a transition only succeeds while the current status
	// still matches). Unknown IDs return a *errors.NotFoundError.
	Transition(id string, from, to entities.Status, reason string) (bool, error)
}
