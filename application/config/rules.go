package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/match"
)

// RuleSpec is one rule in the declarative rule file.
type RuleSpec struct {
	ID      string         `json:"id" yaml:"id"`
	Message string         `json:"message" yaml:"message"`
	Scope   entities.Scope `json:"scope" yaml:"scope"`

	// DenyConditions narrow the denial within the scope: when present,
	// only in-scope requests satisfying every clause are denied. Absent,
	// the whole scope is denied.
	DenyConditions []entities.Condition `json:"denyConditions,omitempty" yaml:"denyConditions,omitempty"`

	// WasmModule optionally points at a compiled predicate module whose
	// verdict replaces DenyConditions.
	WasmModule string `json:"wasmModule,omitempty" yaml:"wasmModule,omitempty"`
}

// RuleFile is the top-level document of the declarative rule file.
type RuleFile struct {
	Rules []RuleSpec `json:"rules" yaml:"rules"`
}

// LoadRuleFile parses the YAML rule file at path.
func LoadRuleFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &derrors.StorageError{Op: "read rule file", Err: err}
	}
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &derrors.ValidationError{Field: "rules", Reason: "malformed YAML", Err: err}
	}
	return &file, nil
}

// PredicateLoader turns a module path into a predicate. The daemon wires the
// WASM-backed loader here; tests substitute stubs.
type PredicateLoader func(path string) (entities.Predicate, error)

// buildConfig holds configuration for BuildRules.
type buildConfig struct {
	loadPredicate PredicateLoader
}

// BuildOption configures BuildRules.
type BuildOption func(*buildConfig)

// WithPredicateLoader supplies the loader used for specs that name a
// WasmModule. Without one, such specs fail to build.
func WithPredicateLoader(loader PredicateLoader) BuildOption {
	return func(c *buildConfig) {
		c.loadPredicate = loader
	}
}

// BuildRules compiles rule specs into registerable rules, validating scopes
// and condition clauses as it goes.
func BuildRules(specs []RuleSpec, opts ...BuildOption) ([]entities.Rule, error) {
	cfg := buildConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	rules := make([]entities.Rule, 0, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, &derrors.ValidationError{Field: "rules.id", Reason: "rule identifier must not be empty"}
		}
		if _, err := match.CompileScope(spec.Scope); err != nil {
			return nil, err
		}

		rule := entities.Rule{
			ID:      spec.ID,
			Message: spec.Message,
			Scope:   spec.Scope,
		}
		if rule.Message == "" {
			rule.Message = "denied by policy " + spec.ID
		}

		switch {
		case spec.WasmModule != "":
			if cfg.loadPredicate == nil {
				return nil, &derrors.ValidationError{
					Field:  "rules.wasmModule",
					Reason: "no predicate loader configured for " + spec.WasmModule,
				}
			}
			pred, err := cfg.loadPredicate(spec.WasmModule)
			if err != nil {
				return nil, err
			}
			rule.Deny = pred
		case len(spec.DenyConditions) > 0:
			conds, err := match.CompileConditions(spec.DenyConditions)
			if err != nil {
				return nil, err
			}
			rule.Deny = match.ConditionsPredicate(conds)
		}

		rules = append(rules, rule)
	}
	return rules, nil
}
