package entities

// ConditionOp identifies the comparison a condition clause performs.
type ConditionOp string

const (
	// OpEquals requires the request attribute to equal Value exactly.
	OpEquals ConditionOp = "equals"

	// OpMatches requires the request attribute to match Value as a
	// doublestar glob pattern.
	OpMatches ConditionOp = "matches"

	// OpPresent requires the request attribute to exist (labels and
	// annotations) or be non-empty (scalar attributes). Value is ignored.
	OpPresent ConditionOp = "present"

	// OpBefore and OpAfter compare the request timestamp against Value,
	// an RFC 3339 time.
	OpBefore ConditionOp = "before"
	OpAfter  ConditionOp = "after"
)

// Condition is one conjunctive clause of an exception. Key selects a request
// attribute: "user", "namespace", "operation", "resource", "subresource",
// "group", "timestamp", or a prefixed metadata key such as "label:incident-id"
// or "annotation:owner".
type Condition struct {
	Key   string      `json:"key" yaml:"key"`
	Op    ConditionOp `json:"op" yaml:"op"`
	Value string      `json:"value,omitempty" yaml:"value,omitempty"`
}
