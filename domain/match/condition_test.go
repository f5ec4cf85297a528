package match_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/match"
)

func TestCompiledConditions_Matches(t *testing.T) {
	req := execRequest()
	req.Labels = map[string]string{"incident-id": "INC-42", "empty": ""}
	req.Annotations = map[string]string{"owner": "team-a"}

	tests := []struct {
		name  string
		conds []entities.Condition
		want  bool
	}{
		{"empty conjunction holds", nil, true},
		{"user equals", []entities.Condition{{Key: "user", Op: entities.OpEquals, Value: "alice"}}, true},
		{"user differs", []entities.Condition{{Key: "user", Op: entities.OpEquals, Value: "bob"}}, false},
		{"label present and non-empty", []entities.Condition{{Key: "label:incident-id", Op: entities.OpPresent}}, true},
		{"label present but empty", []entities.Condition{{Key: "label:empty", Op: entities.OpPresent}}, false},
		{"label missing", []entities.Condition{{Key: "label:none", Op: entities.OpPresent}}, false},
		{"annotation matches glob", []entities.Condition{{Key: "annotation:owner", Op: entities.OpMatches, Value: "team-*"}}, true},
		{"group member", []entities.Condition{{Key: "group", Op: entities.OpEquals, Value: "oncall"}}, true},
		{"group non-member", []entities.Condition{{Key: "group", Op: entities.OpEquals, Value: "sre"}}, false},
		{"before future time", []entities.Condition{{Key: "timestamp", Op: entities.OpBefore, Value: "2026-03-01T13:00:00Z"}}, true},
		{"before past time", []entities.Condition{{Key: "timestamp", Op: entities.OpBefore, Value: "2026-03-01T11:00:00Z"}}, false},
		{"after past time", []entities.Condition{{Key: "timestamp", Op: entities.OpAfter, Value: "2026-03-01T11:00:00Z"}}, true},
		{
			"conjunction requires all clauses",
			[]entities.Condition{
				{Key: "user", Op: entities.OpEquals, Value: "alice"},
				{Key: "namespace", Op: entities.OpEquals, Value: "staging"},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := match.CompileConditions(tt.conds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, compiled.Matches(req))
		})
	}
}

func TestCompileConditions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cond entities.Condition
	}{
		{"unknown key", entities.Condition{Key: "nonsense", Op: entities.OpEquals, Value: "x"}},
		{"unknown operator", entities.Condition{Key: "user", Op: "approximately", Value: "x"}},
		{"bad glob", entities.Condition{Key: "user", Op: entities.OpMatches, Value: "[unclosed"}},
		{"bad timestamp", entities.Condition{Key: "timestamp", Op: entities.OpBefore, Value: "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := match.CompileConditions([]entities.Condition{tt.cond})
			var validationErr *derrors.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestAnd_ShortCircuits(t *testing.T) {
	calls := 0
	yes := entities.PredicateFunc(func(context.Context, *entities.AdmissionRequest) (bool, error) {
		calls++
		return true, nil
	})
	no := entities.PredicateFunc(func(context.Context, *entities.AdmissionRequest) (bool, error) {
		calls++
		return false, nil
	})

	ok, err := match.And(yes, no, yes).Matches(context.Background(), execRequest())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)

	ok, err = match.And().Matches(context.Background(), execRequest())
	require.NoError(t, err)
	assert.True(t, ok)
}
