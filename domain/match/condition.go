package match

import (
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
)

const (
	labelKeyPrefix      = "label:"
	annotationKeyPrefix = "annotation:"
)

type compiledCondition struct {
	cond entities.Condition
	when time.Time // parsed Value for before/after
}

// CompiledConditions is a conjunctive list of validated condition clauses.
type CompiledConditions struct {
	clauses []compiledCondition
}

// CompileConditions validates the clauses. Unknown keys or operators, glob
// patterns that do not parse, and unparseable timestamps all return a
// *errors.ValidationError.
func CompileConditions(conds []entities.Condition) (*CompiledConditions, error) {
	c := &CompiledConditions{}
	for _, cond := range conds {
		cc := compiledCondition{cond: cond}
		if !knownKey(cond.Key) {
			return nil, &derrors.ValidationError{Field: "conditions.key", Reason: "unknown attribute " + cond.Key}
		}
		switch cond.Op {
		case entities.OpEquals, entities.OpPresent:
		case entities.OpMatches:
			if !doublestar.ValidatePattern(cond.Value) {
				return nil, &derrors.ValidationError{Field: "conditions.value", Reason: "malformed pattern " + cond.Value}
			}
		case entities.OpBefore, entities.OpAfter:
			when, err := time.Parse(time.RFC3339, cond.Value)
			if err != nil {
				return nil, &derrors.ValidationError{Field: "conditions.value", Reason: "not an RFC 3339 time", Err: err}
			}
			cc.when = when
		default:
			return nil, &derrors.ValidationError{Field: "conditions.op", Reason: "unknown operator " + string(cond.Op)}
		}
		c.clauses = append(c.clauses, cc)
	}
	return c, nil
}

func knownKey(key string) bool {
	switch key {
	case "user", "namespace", "operation", "resource", "subresource", "group", "name", "timestamp":
		return true
	}
	return strings.HasPrefix(key, labelKeyPrefix) || strings.HasPrefix(key, annotationKeyPrefix)
}

// Matches reports whether every clause holds for the request.
func (c *CompiledConditions) Matches(req *entities.AdmissionRequest) bool {
	for _, clause := range c.clauses {
		if !clauseMatches(clause, req) {
			return false
		}
	}
	return true
}

func clauseMatches(cc compiledCondition, req *entities.AdmissionRequest) bool {
	cond := cc.cond

	if cond.Op == entities.OpBefore {
		return req.Timestamp.Before(cc.when)
	}
	if cond.Op == entities.OpAfter {
		return req.Timestamp.After(cc.when)
	}

	// Group membership is set-valued: a clause holds when any membership
	// satisfies it.
	if cond.Key == "group" {
		for _, g := range req.Groups {
			if scalarMatches(cond, g, true) {
				return true
			}
		}
		return false
	}

	value, present := attributeValue(cond.Key, req)
	return scalarMatches(cond, value, present)
}

func scalarMatches(cond entities.Condition, value string, present bool) bool {
	switch cond.Op {
	case entities.OpEquals:
		return present && value == cond.Value
	case entities.OpMatches:
		if !present {
			return false
		}
		matched, _ := doublestar.Match(cond.Value, value)
		return matched
	case entities.OpPresent:
		return present && value != ""
	}
	return false
}

func attributeValue(key string, req *entities.AdmissionRequest) (string, bool) {
	switch key {
	case "user":
		return req.User, true
	case "namespace":
		return req.Namespace, true
	case "operation":
		return req.Operation, true
	case "resource":
		return req.Resource, true
	case "subresource":
		return req.Subresource, true
	case "name":
		return req.Name, true
	case "timestamp":
		return req.Timestamp.Format(time.RFC3339), true
	}
	if k, ok := strings.CutPrefix(key, labelKeyPrefix); ok {
		v, present := req.Labels[k]
		return v, present
	}
	if k, ok := strings.CutPrefix(key, annotationKeyPrefix); ok {
		v, present := req.Annotations[k]
		return v, present
	}
	return "", false
}
