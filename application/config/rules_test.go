package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakglass-dev/breakglass/application/config"
	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
)

const ruleFileDoc = `
rules:
  - id: restrict-prod-pod-exec
    message: pod exec is not allowed in production namespaces
    scope:
      namespaces: ["prod-*"]
      resources: ["pods"]
      subresources: ["exec"]
  - id: restrict-emergency-deploys
    scope:
      namespaces: ["prod-*"]
      operations: ["create", "update"]
    denyConditions:
      - key: "label:emergency"
        op: present
`

func TestLoadRuleFile(t *testing.T) {
	path := writeFile(t, ruleFileDoc)

	file, err := config.LoadRuleFile(path)
	require.NoError(t, err)
	require.Len(t, file.Rules, 2)
	assert.Equal(t, "restrict-prod-pod-exec", file.Rules[0].ID)
	assert.Equal(t, []string{"prod-*"}, file.Rules[0].Scope.Namespaces)
	require.Len(t, file.Rules[1].DenyConditions, 1)
	assert.Equal(t, entities.OpPresent, file.Rules[1].DenyConditions[0].Op)
}

func TestBuildRules(t *testing.T) {
	path := writeFile(t, ruleFileDoc)
	file, err := config.LoadRuleFile(path)
	require.NoError(t, err)

	rules, err := config.BuildRules(file.Rules)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	// A rule without a message gets a default one.
	assert.Equal(t, "denied by policy restrict-emergency-deploys", rules[1].Message)

	// The deny predicate fires when every condition holds.
	req := &entities.AdmissionRequest{
		Operation: "create",
		Namespace: "prod-x",
		Labels:    map[string]string{"emergency": "true"},
		Timestamp: time.Now(),
	}
	denies, err := rules[1].Deny.Matches(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, denies)

	req.Labels = nil
	denies, err = rules[1].Deny.Matches(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, denies)
}

func TestBuildRules_Invalid(t *testing.T) {
	var validationErr *derrors.ValidationError

	t.Run("empty id", func(t *testing.T) {
		_, err := config.BuildRules([]config.RuleSpec{{ID: ""}})
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("bad scope", func(t *testing.T) {
		_, err := config.BuildRules([]config.RuleSpec{{
			ID:    "bad",
			Scope: entities.Scope{Namespaces: []string{"[unclosed"}},
		}})
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("wasm module without loader", func(t *testing.T) {
		_, err := config.BuildRules([]config.RuleSpec{{
			ID:         "wasm-backed",
			WasmModule: "predicate.wasm",
		}})
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestBuildRules_WasmLoader(t *testing.T) {
	loaded := ""
	loader := func(path string) (entities.Predicate, error) {
		loaded = path
		return entities.PredicateFunc(func(context.Context, *entities.AdmissionRequest) (bool, error) {
			return true, nil
		}), nil
	}

	rules, err := config.BuildRules(
		[]config.RuleSpec{{ID: "wasm-backed", WasmModule: "predicate.wasm"}},
		config.WithPredicateLoader(loader),
	)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "predicate.wasm", loaded)
	require.NotNil(t, rules[0].Deny)
}
