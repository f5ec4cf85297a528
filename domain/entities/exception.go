package entities

import "time"

// Status is the lifecycle state of an exception. Transitions are monotonic:
// active may move to expired or revoked, and both of those are terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// WildcardRuleRef in an exception's RuleRefs suspends every rule the
// exception's scope and conditions cover.
const WildcardRuleRef = "*"

// Provenance records who created an exception and why.
type Provenance struct {
	// CreatedBy is the identity of the operator or workflow that submitted
	// the exception.
	CreatedBy string `json:"createdBy" yaml:"createdBy"`

	// Justification is free-form text explaining why the exception exists.
	Justification string `json:"justification" yaml:"justification"`

	// IncidentID correlates the exception to an upstream incident, if any.
	IncidentID string `json:"incidentId,omitempty" yaml:"incidentId,omitempty"`
}

// Exception is a time-bound, scoped override that suspends one or more rules
// for matching requests. The write path (create, revoke, expire) is owned
// exclusively by the lifecycle manager; everything else reads.
type Exception struct {
	// ID uniquely identifies the exception.
	ID string `json:"id" yaml:"id"`

	// RuleRefs names the rules this exception suspends, by rule ID, or
	// contains WildcardRuleRef to suspend all rules.
	RuleRefs []string `json:"ruleRefs" yaml:"ruleRefs"`

	// Scope restricts the requests the exception applies to.
	Scope Scope `json:"scope" yaml:"scope"`

	// Conditions are additional conjunctive clauses; all must hold for the
	// exception to apply to a request.
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// IdempotencyKey is the derived key that makes duplicate submissions of
	// the same incident return this exception instead of creating another.
	IdempotencyKey string `json:"idempotencyKey,omitempty" yaml:"idempotencyKey,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" yaml:"expiresAt"`

	Status Status `json:"status" yaml:"status"`

	// StatusReason holds the revocation reason for revoked exceptions.
	StatusReason string `json:"statusReason,omitempty" yaml:"statusReason,omitempty"`

	Provenance Provenance `json:"provenance" yaml:"provenance"`
}

// ActiveAt reports whether the exception grants access at time t. This lazy
// time check is the authoritative expiry guard: an exception past its expiry
// is inactive the instant t passes ExpiresAt, even if the sweeper has not
// yet stored the expired status. Stored status is trusted only for explicit
// terminal transitions.
func (e *Exception) ActiveAt(t time.Time) bool {
	return e.Status == StatusActive && t.Before(e.ExpiresAt)
}

// SuspendsRule reports whether the exception covers the given rule ID,
// either by naming it or via the wildcard ref.
func (e *Exception) SuspendsRule(ruleID string) bool {
	for _, ref := range e.RuleRefs {
		if ref == WildcardRuleRef || ref == ruleID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the exception.
func (e *Exception) Clone() *Exception {
	if e == nil {
		return nil
	}
	clone := *e
	clone.RuleRefs = append([]string(nil), e.RuleRefs...)
	clone.Scope = e.Scope.Clone()
	clone.Conditions = append([]Condition(nil), e.Conditions...)
	return &clone
}
