package match

import (
	"context"

	"github.com/breakglass-dev/breakglass/domain/entities"
)

// And composes predicates conjunctively. It short-circuits on the first
// non-match or error. And of nothing always matches.
func And(preds ...entities.Predicate) entities.Predicate {
	return entities.PredicateFunc(func(ctx context.Context, req *entities.AdmissionRequest) (bool, error) {
		for _, p := range preds {
			ok, err := p.Matches(ctx, req)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// ScopePredicate wraps a compiled scope as a predicate.
func ScopePredicate(scope *CompiledScope) entities.Predicate {
	return entities.PredicateFunc(func(_ context.Context, req *entities.AdmissionRequest) (bool, error) {
		return scope.Matches(req), nil
	})
}

// ConditionsPredicate wraps compiled condition clauses as a predicate.
func ConditionsPredicate(conds *CompiledConditions) entities.Predicate {
	return entities.PredicateFunc(func(_ context.Context, req *entities.AdmissionRequest) (bool, error) {
		return conds.Matches(req), nil
	})
}
