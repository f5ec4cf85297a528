// Package match compiles scopes and condition clauses into predicates over
// admission requests. Patterns use doublestar glob syntax; a compiled scope
// is immutable and safe for concurrent use.
package match

import (
	"github.com/bmatcuk/doublestar/v4"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
)

// CompiledScope is a validated, ready-to-evaluate scope.
type CompiledScope struct {
	namespaces   []string
	resources    []string
	subresources []string
	operations   []string
	users        []string
	groups       []string
}

// CompileScope validates every pattern in the scope. Malformed patterns
// return a *errors.ValidationError naming the offending dimension.
func CompileScope(s entities.Scope) (*CompiledScope, error) {
	c := &CompiledScope{}
	for _, dim := range []struct {
		field    string
		patterns []string
		dst      *[]string
	}{
		{"namespaces", s.Namespaces, &c.namespaces},
		{"resources", s.Resources, &c.resources},
		{"subresources", s.Subresources, &c.subresources},
		{"operations", s.Operations, &c.operations},
		{"users", s.Users, &c.users},
		{"groups", s.Groups, &c.groups},
	} {
		for _, p := range dim.patterns {
			if !doublestar.ValidatePattern(p) {
				return nil, &derrors.ValidationError{
					Field:  "scope." + dim.field,
					Reason: "malformed pattern " + p,
				}
			}
			*dim.dst = append(*dim.dst, p)
		}
	}
	return c, nil
}

// Matches reports whether the request falls inside the scope. Every
// non-empty dimension must match; empty dimensions are unconstrained.
func (c *CompiledScope) Matches(req *entities.AdmissionRequest) bool {
	if !matchAny(c.namespaces, req.Namespace) {
		return false
	}
	if !matchAny(c.resources, req.Resource) {
		return false
	}
	if !matchAny(c.subresources, req.Subresource) {
		return false
	}
	if !matchAny(c.operations, req.Operation) {
		return false
	}
	if !matchAny(c.users, req.User) {
		return false
	}
	if len(c.groups) > 0 && !matchAnyOf(c.groups, req.Groups) {
		return false
	}
	return true
}

func matchAny(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if matched, _ := doublestar.Match(p, value); matched {
			return true
		}
	}
	return false
}

func matchAnyOf(patterns, values []string) bool {
	for _, v := range values {
		for _, p := range patterns {
			if matched, _ := doublestar.Match(p, v); matched {
				return true
			}
		}
	}
	return false
}
