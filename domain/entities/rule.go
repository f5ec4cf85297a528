package entities

// Rule is a deny-by-default admission rule. A rule only affects requests its
// scope matches; requests outside every registered rule's scope are allowed
// by default. Rules are immutable once registered and are replaced wholesale
// on update, never partially mutated.
type Rule struct {
	// ID uniquely identifies the rule, e.g. "restrict-prod-pod-exec".
	ID string `json:"id"`

	// Message is returned to the caller when this rule denies a request.
	Message string `json:"message"`

	// Scope selects the requests this rule applies to.
	Scope Scope `json:"scope"`

	// Deny is an optional additional predicate. When nil, every request in
	// scope is denied; when set, only in-scope requests for which Deny
	// reports true are denied.
	Deny Predicate `json:"-"`
}

// Scope selects a subset of admission requests by attribute patterns. Each
// field holds doublestar glob patterns; an empty field matches everything on
// that dimension, a non-empty field requires at least one pattern to match.
type Scope struct {
	Namespaces   []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	Resources    []string `json:"resources,omitempty" yaml:"resources,omitempty"`
	Subresources []string `json:"subresources,omitempty" yaml:"subresources,omitempty"`
	Operations   []string `json:"operations,omitempty" yaml:"operations,omitempty"`
	Users        []string `json:"users,omitempty" yaml:"users,omitempty"`
	Groups       []string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// IsEmpty reports whether the scope constrains nothing.
func (s Scope) IsEmpty() bool {
	return len(s.Namespaces) == 0 &&
		len(s.Resources) == 0 &&
		len(s.Subresources) == 0 &&
		len(s.Operations) == 0 &&
		len(s.Users) == 0 &&
		len(s.Groups) == 0
}

// Clone returns a deep copy of the scope.
func (s Scope) Clone() Scope {
	return Scope{
		Namespaces:   append([]string(nil), s.Namespaces...),
		Resources:    append([]string(nil), s.Resources...),
		Subresources: append([]string(nil), s.Subresources...),
		Operations:   append([]string(nil), s.Operations...),
		Users:        append([]string(nil), s.Users...),
		Groups:       append([]string(nil), s.Groups...),
	}
}
