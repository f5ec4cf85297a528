// Package admission implements the evaluator: the synchronous decision point
// consulted by the platform's admission chain for every inbound request.
package admission

import (
	"context"
	"log/slog"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/match"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// ExceptionFinder is the read-only slice of the lifecycle manager the
// evaluator needs.
type ExceptionFinder interface {
	FindMatching(ctx context.Context, req *entities.AdmissionRequest, ruleID string) ([]*entities.Exception, error)
}

// evaluatorConfig holds configuration for the Evaluator.
type evaluatorConfig struct {
	clock  ports.Clock
	logger *slog.Logger
	onDeny ports.DenialHandler
}

func defaultEvaluatorConfig() evaluatorConfig {
	return evaluatorConfig{
		clock:  ports.SystemClock{},
		logger: slog.Default(),
		onDeny: NopDenialHandler{},
	}
}

// Option configures the Evaluator.
type Option func(*evaluatorConfig)

// WithClock sets the clock stamped onto audit records.
func WithClock(clock ports.Clock) Option {
	return func(c *evaluatorConfig) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *evaluatorConfig) {
		c.logger = logger
	}
}

// WithDenialHandler sets the handler invoked on every denial.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *evaluatorConfig) {
		c.onDeny = h
	}
}

// Evaluator decides allow/deny for admission requests from the baseline
// rules and the currently active exceptions. It holds read-only access to
// both stores.
type Evaluator struct {
	config     evaluatorConfig
	rules      ports.RuleStore
	exceptions ExceptionFinder
	sink       ports.AuditSink
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(rules ports.RuleStore, exceptions ExceptionFinder, sink ports.AuditSink, opts ...Option) *Evaluator {
	cfg := defaultEvaluatorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Evaluator{config: cfg, rules: rules, exceptions: exceptions, sink: sink}
}

// Evaluate decides the request. Rules are consulted in registration order;
// a request outside every rule's scope is allowed by default. A denying rule
// is overridden only by a currently active exception matching the request
// and covering that rule; when several apply, attribution goes to the most
// recently created one, ties broken by smallest identifier.
//
// Every call writes exactly one audit record before returning. When that
// write fails the evaluation fails closed: the returned decision is a deny
// regardless of what the rules said, alongside a *errors.StorageError.
func (e *Evaluator) Evaluate(ctx context.Context, req *entities.AdmissionRequest) (*entities.AdmissionDecision, error) {
	decision := e.decide(ctx, req)

	record := &entities.AuditRecord{
		Timestamp:   e.config.clock.Now(),
		Kind:        entities.AuditAdmissionDecision,
		Actor:       req.User,
		Decision:    decision,
		RuleID:      decision.RuleID,
		ExceptionID: decision.ExceptionID,
	}
	if err := e.sink.Append(ctx, record); err != nil {
		// An unaudited allow is worse than an availability failure.
		denied := &entities.AdmissionDecision{
			Effect:  entities.EffectDeny,
			Message: "admission audit unavailable, failing closed",
		}
		e.config.logger.Error("audit write failed, failing closed",
			"user", req.User, "namespace", req.Namespace, "error", err)
		e.config.onDeny.OnDenial("", req, denied.Message)
		return denied, &derrors.StorageError{Op: "audit admission-decision", Err: err}
	}

	if !decision.Allowed() {
		e.config.onDeny.OnDenial(decision.RuleID, req, decision.Message)
	}
	return decision, nil
}

func (e *Evaluator) decide(ctx context.Context, req *entities.AdmissionRequest) *entities.AdmissionDecision {
	var best *entities.Exception
	denied := false

	for _, rule := range e.rules.List() {
		scope, err := match.CompileScope(rule.Scope)
		if err != nil {
			// Register validated the scope; a failure here means the
			// store was bypassed. Treat the rule as matching nothing.
			e.config.logger.Error("registered rule has malformed scope", "rule", rule.ID, "error", err)
			continue
		}
		if !scope.Matches(req) {
			continue
		}

		denies := true
		if rule.Deny != nil {
			ok, err := rule.Deny.Matches(ctx, req)
			if err != nil {
				// Fail closed: an unanswerable predicate denies.
				e.config.logger.Error("rule predicate failed, treating as deny", "rule", rule.ID, "error", err)
				ok = true
			}
			denies = ok
		}
		if !denies {
			continue
		}
		denied = true

		matching, err := e.exceptions.FindMatching(ctx, req, rule.ID)
		if err != nil || len(matching) == 0 {
			if err != nil {
				e.config.logger.Error("exception lookup failed, treating rule as unexcepted", "rule", rule.ID, "error", err)
			}
			return &entities.AdmissionDecision{
				Effect:  entities.EffectDeny,
				RuleID:  rule.ID,
				Message: rule.Message,
			}
		}
		if cand := matching[0]; best == nil || moreRecent(cand, best) {
			best = cand
		}
	}

	if !denied {
		return &entities.AdmissionDecision{
			Effect:  entities.EffectAllow,
			Message: "no matching rule denies the request",
		}
	}
	return &entities.AdmissionDecision{
		Effect:      entities.EffectAllow,
		RuleID:      "", // attribution belongs to the exception
		ExceptionID: best.ID,
		Message:     "denied by baseline policy, allowed by exception " + best.ID,
	}
}

// moreRecent implements the attribution tie-break: latest creation first,
// then lexicographically smallest identifier.
func moreRecent(a, b *entities.Exception) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
