package ports

import "github.com/breakglass-dev/breakglass/domain/entities"

// RuleStore holds the baseline admission rules. Implementations must allow
// concurrent reads during evaluation while serializing writes.
type RuleStore interface {
	// Register adds or replaces a rule by identifier. It returns a
	// *errors.ValidationError when the identifier is empty or the rule's
	// scope patterns are malformed.
	Register(rule entities.Rule) error

	// Get returns the rule with the given ID, or a *errors.NotFoundError.
	Get(ruleID string) (*entities.Rule, error)

	// List returns all rules in registration order, for deterministic
	// evaluation.
	List() []*entities.Rule
}
