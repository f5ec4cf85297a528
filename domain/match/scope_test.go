package match_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/match"
)

func execRequest() *entities.AdmissionRequest {
	return &entities.AdmissionRequest{
		Operation:   "exec",
		Resource:    "pods",
		Subresource: "exec",
		Namespace:   "prod-x",
		User:        "alice",
		Groups:      []string{"dev", "oncall"},
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCompiledScope_Matches(t *testing.T) {
	tests := []struct {
		name  string
		scope entities.Scope
		want  bool
	}{
		{"empty scope matches everything", entities.Scope{}, true},
		{"exact namespace", entities.Scope{Namespaces: []string{"prod-x"}}, true},
		{"glob namespace", entities.Scope{Namespaces: []string{"prod-*"}}, true},
		{"other namespace", entities.Scope{Namespaces: []string{"staging"}}, false},
		{"resource and subresource", entities.Scope{Resources: []string{"pods"}, Subresources: []string{"exec"}}, true},
		{"wrong subresource", entities.Scope{Subresources: []string{"portforward"}}, false},
		{"operation", entities.Scope{Operations: []string{"exec"}}, true},
		{"user glob", entities.Scope{Users: []string{"a*"}}, true},
		{"group membership", entities.Scope{Groups: []string{"oncall"}}, true},
		{"no group matches", entities.Scope{Groups: []string{"sre"}}, false},
		{"all dimensions must hold", entities.Scope{Namespaces: []string{"prod-x"}, Users: []string{"bob"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := match.CompileScope(tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, compiled.Matches(execRequest()))
		})
	}
}

func TestScopePredicate(t *testing.T) {
	compiled, err := match.CompileScope(entities.Scope{Namespaces: []string{"prod-*"}})
	require.NoError(t, err)

	ok, err := match.ScopePredicate(compiled).Matches(context.Background(), execRequest())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileScope_MalformedPattern(t *testing.T) {
	_, err := match.CompileScope(entities.Scope{Namespaces: []string{"[unclosed"}})
	var validationErr *derrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "scope.namespaces", validationErr.Field)
}
