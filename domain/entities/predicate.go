package entities

import "context"

// Predicate is an opaque boolean condition over an admission request. Rules
// use predicates to decide denial; exceptions use them for their condition
// clauses. Implementations must be safe for concurrent use.
//
// A predicate may fail (for example, an out-of-process predicate whose
// backing module is unavailable). Callers on the admission path treat a
// failed rule predicate as a denial, never as an allow.
type Predicate interface {
	Matches(ctx context.Context, req *AdmissionRequest) (bool, error)
}

// PredicateFunc adapts a plain function to the Predicate interface.
type PredicateFunc func(ctx context.Context, req *AdmissionRequest) (bool, error)

// Matches implements Predicate.
func (f PredicateFunc) Matches(ctx context.Context, req *AdmissionRequest) (bool, error) {
	return f(ctx, req)
}
