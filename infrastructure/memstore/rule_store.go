// Package memstore provides the in-memory rule and exception stores. Both
// allow concurrent reads during evaluation while serializing writes, and
// both hand out defensive copies so callers never alias stored state.
package memstore

import (
	"sync"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/match"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// RuleStore holds baseline rules in registration order.
type RuleStore struct {
	mu    sync.RWMutex
	rules map[string]*entities.Rule
	order []string
}

// NewRuleStore creates an empty rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: make(map[string]*entities.Rule)}
}

var _ ports.RuleStore = (*RuleStore)(nil)

// Register adds or replaces a rule by identifier. Replacement is wholesale:
// the stored rule is swapped, never partially mutated.
func (s *RuleStore) Register(rule entities.Rule) error {
	if rule.ID == "" {
		return &derrors.ValidationError{Field: "id", Reason: "rule identifier must not be empty"}
	}
	if _, err := match.CompileScope(rule.Scope); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rules[rule.ID]; !exists {
		s.order = append(s.order, rule.ID)
	}
	stored := rule
	stored.Scope = rule.Scope.Clone()
	s.rules[rule.ID] = &stored
	return nil
}

// Get returns the rule with the given ID.
func (s *RuleStore) Get(ruleID string) (*entities.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[ruleID]
	if !ok {
		return nil, &derrors.NotFoundError{Kind: "rule", ID: ruleID}
	}
	return cloneRule(rule), nil
}

// List returns all rules in registration order.
func (s *RuleStore) List() []*entities.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.Rule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneRule(s.rules[id]))
	}
	return out
}

func cloneRule(r *entities.Rule) *entities.Rule {
	clone := *r
	clone.Scope = r.Scope.Clone()
	return &clone
}
