package admission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakglass-dev/breakglass/application/admission"
	"github.com/breakglass-dev/breakglass/application/lifecycle"
	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/infrastructure/auditlog"
	"github.com/breakglass-dev/breakglass/infrastructure/memstore"
	"github.com/breakglass-dev/breakglass/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	evaluator *admission.Evaluator
	manager   *lifecycle.Manager
	rules     *memstore.RuleStore
	sink      *auditlog.MemorySink
	clock     *testutil.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rules := memstore.NewRuleStore()
	exceptions := memstore.NewExceptionStore()
	sink := auditlog.NewMemorySink()
	clock := testutil.NewFakeClock(t0)

	manager := lifecycle.NewManager(exceptions, sink, lifecycle.WithClock(clock))
	evaluator := admission.NewEvaluator(rules, manager, sink,
		admission.WithClock(clock),
	)

	require.NoError(t, rules.Register(entities.Rule{
		ID:      "deny-exec",
		Message: "pod exec is not allowed in prod-x",
		Scope: entities.Scope{
			Namespaces: []string{"prod-x"},
			Operations: []string{"exec"},
		},
	}))

	return &fixture{evaluator: evaluator, manager: manager, rules: rules, sink: sink, clock: clock}
}

func (f *fixture) execRequest() *entities.AdmissionRequest {
	return &entities.AdmissionRequest{
		Operation: "exec",
		Resource:  "pods",
		Namespace: "prod-x",
		User:      "alice",
		Timestamp: f.clock.Now(),
	}
}

func (f *fixture) grantException(t *testing.T, duration time.Duration) *entities.Exception {
	t.Helper()
	ex, err := f.manager.Create(context.Background(), lifecycle.Submission{
		RuleRefs:      []string{"deny-exec"},
		Scope:         entities.Scope{Namespaces: []string{"prod-x"}, Users: []string{"alice"}},
		Requester:     "alice",
		Justification: "debugging INC-42",
		IncidentID:    "INC-42",
		Duration:      duration,
	})
	require.NoError(t, err)
	return ex
}

func TestEvaluator_DeniesInScopeRequest(t *testing.T) {
	f := newFixture(t)

	decision, err := f.evaluator.Evaluate(context.Background(), f.execRequest())
	require.NoError(t, err)

	assert.Equal(t, entities.EffectDeny, decision.Effect)
	assert.Equal(t, "deny-exec", decision.RuleID)
	assert.Equal(t, "pod exec is not allowed in prod-x", decision.Message)
}

func TestEvaluator_DefaultAllowOutsideScope(t *testing.T) {
	f := newFixture(t)

	req := f.execRequest()
	req.Namespace = "staging"

	decision, err := f.evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, entities.EffectAllow, decision.Effect)
	assert.Empty(t, decision.RuleID)
	assert.Empty(t, decision.ExceptionID)
}

func TestEvaluator_ExceptionOverridesDenial(t *testing.T) {
	f := newFixture(t)
	ex := f.grantException(t, 60*time.Minute)

	decision, err := f.evaluator.Evaluate(context.Background(), f.execRequest())
	require.NoError(t, err)
	assert.Equal(t, entities.EffectAllow, decision.Effect)
	assert.Equal(t, ex.ID, decision.ExceptionID)

	// Advance past expiry: the identical request is denied again, with no
	// sweeper involved.
	f.clock.Advance(61 * time.Minute)
	decision, err = f.evaluator.Evaluate(context.Background(), f.execRequest())
	require.NoError(t, err)
	assert.Equal(t, entities.EffectDeny, decision.Effect)
	assert.Equal(t, "deny-exec", decision.RuleID)
}

func TestEvaluator_ExceptionScopeMustMatchRequester(t *testing.T) {
	f := newFixture(t)
	f.grantException(t, 60*time.Minute)

	req := f.execRequest()
	req.User = "bob"

	decision, err := f.evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entities.EffectDeny, decision.Effect)
}

func TestEvaluator_MostRecentExceptionWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subA := lifecycle.Submission{
		RuleRefs:      []string{"deny-exec"},
		Scope:         entities.Scope{Namespaces: []string{"prod-x"}},
		Requester:     "alice",
		Justification: "first",
		IncidentID:    "INC-1",
		Duration:      2 * time.Hour,
	}
	_, err := f.manager.Create(ctx, subA)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)

	subB := subA
	subB.IncidentID = "INC-2"
	newer, err := f.manager.Create(ctx, subB)
	require.NoError(t, err)

	decision, err := f.evaluator.Evaluate(ctx, f.execRequest())
	require.NoError(t, err)
	assert.Equal(t, entities.EffectAllow, decision.Effect)
	assert.Equal(t, newer.ID, decision.ExceptionID)
}

func TestEvaluator_RevokedExceptionNoLongerApplies(t *testing.T) {
	f := newFixture(t)
	ex := f.grantException(t, 60*time.Minute)

	require.NoError(t, f.manager.Revoke(context.Background(), ex.ID, "incident resolved"))

	decision, err := f.evaluator.Evaluate(context.Background(), f.execRequest())
	require.NoError(t, err)
	assert.Equal(t, entities.EffectDeny, decision.Effect)
}

func TestEvaluator_EveryCallAuditsExactlyOnce(t *testing.T) {
	f := newFixture(t)

	_, err := f.evaluator.Evaluate(context.Background(), f.execRequest())
	require.NoError(t, err)

	req := f.execRequest()
	req.Namespace = "staging"
	_, err = f.evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)

	var decisions int
	for _, record := range f.sink.Records() {
		if record.Kind == entities.AuditAdmissionDecision {
			decisions++
			assert.NotNil(t, record.Decision)
			assert.Equal(t, "alice", record.Actor)
		}
	}
	assert.Equal(t, 2, decisions)
}

func TestEvaluator_FailsClosedWhenAuditUnavailable(t *testing.T) {
	f := newFixture(t)
	f.grantException(t, 60*time.Minute)
	f.sink.FailWith(errors.New("disk full"))

	// The rules would allow via the exception, but the unaudited grant
	// must not escape.
	decision, err := f.evaluator.Evaluate(context.Background(), f.execRequest())

	var storageErr *derrors.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, entities.EffectDeny, decision.Effect)
}

func TestEvaluator_RulePredicateNarrowsDenial(t *testing.T) {
	f := newFixture(t)

	// Deny deletes in prod only for resources labelled protected.
	require.NoError(t, f.rules.Register(entities.Rule{
		ID:      "deny-protected-delete",
		Message: "protected resources cannot be deleted",
		Scope:   entities.Scope{Namespaces: []string{"prod-*"}, Operations: []string{"delete"}},
		Deny: entities.PredicateFunc(func(_ context.Context, req *entities.AdmissionRequest) (bool, error) {
			return req.Labels["protected"] == "true", nil
		}),
	}))

	req := f.execRequest()
	req.Operation = "delete"
	req.Labels = map[string]string{"protected": "true"}

	decision, err := f.evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entities.EffectDeny, decision.Effect)
	assert.Equal(t, "deny-protected-delete", decision.RuleID)

	req.Labels["protected"] = "false"
	decision, err = f.evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entities.EffectAllow, decision.Effect)
}

func TestEvaluator_FailingPredicateDenies(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.rules.Register(entities.Rule{
		ID:      "broken-rule",
		Message: "predicate backend unavailable",
		Scope:   entities.Scope{Namespaces: []string{"staging"}},
		Deny: entities.PredicateFunc(func(context.Context, *entities.AdmissionRequest) (bool, error) {
			return false, errors.New("module crashed")
		}),
	}))

	req := f.execRequest()
	req.Namespace = "staging"

	decision, err := f.evaluator.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entities.EffectDeny, decision.Effect)
	assert.Equal(t, "broken-rule", decision.RuleID)
}
