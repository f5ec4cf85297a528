// Package lifecycle implements the exception lifecycle manager: the sole
// write path for creating, revoking, and matching time-bound exceptions.
package lifecycle

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/match"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// DefaultMaxLifetime caps requested exception durations unless overridden.
const DefaultMaxLifetime = 240 * time.Minute

// managerConfig holds configuration for the Manager.
type managerConfig struct {
	clock       ports.Clock
	maxLifetime time.Duration
	logger      *slog.Logger
	token       func() string // uniqueness token for incident-less submissions
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		clock:       ports.SystemClock{},
		maxLifetime: DefaultMaxLifetime,
		logger:      slog.Default(),
		token:       uuid.NewString,
	}
}

// Option configures the Manager.
type Option func(*managerConfig)

// WithClock sets the clock used for creation and expiry arithmetic.
func WithClock(clock ports.Clock) Option {
	return func(c *managerConfig) {
		c.clock = clock
	}
}

// WithMaxLifetime sets the ceiling on requested exception durations.
func WithMaxLifetime(d time.Duration) Option {
	return func(c *managerConfig) {
		c.maxLifetime = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithTokenSource sets the uniqueness-token source used when a submission
// carries no incident ID. Override in tests for determinism.
func WithTokenSource(token func() string) Option {
	return func(c *managerConfig) {
		c.token = token
	}
}

// Manager owns the exception collection's write path. Evaluators read
// through FindMatching and IsActive; nothing else mutates exceptions.
type Manager struct {
	config managerConfig
	store  ports.ExceptionStore
	sink   ports.AuditSink

	// compiled caches per-exception scope and condition compilation, keyed
	// by exception ID. Exceptions are immutable after creation apart from
	// their status field, so entries never go stale.
	compiled sync.Map
}

type compiledException struct {
	scope *match.CompiledScope
	conds *match.CompiledConditions
}

// NewManager creates a Manager backed by the given store and audit sink.
func NewManager(store ports.ExceptionStore, sink ports.AuditSink, opts ...Option) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{config: cfg, store: store, sink: sink}
}

// Submission is an exception request from an operator or an automated
// incident workflow.
type Submission struct {
	// RuleRefs names the rules to suspend, or contains "*" for all rules.
	RuleRefs []string `json:"ruleRefs" validate:"required,min=1,dive,required"`

	// Scope restricts the requests the exception applies to.
	Scope entities.Scope `json:"scope"`

	// Conditions are additional conjunctive clauses.
	Conditions []entities.Condition `json:"conditions,omitempty"`

	// Requester is the identity submitting the exception.
	Requester string `json:"requester" validate:"required"`

	// Justification explains why the exception is needed.
	Justification string `json:"justification" validate:"required"`

	// IncidentID correlates the exception to an upstream incident and
	// anchors the idempotency key. Optional.
	IncidentID string `json:"incidentId,omitempty"`

	// Duration is the requested lifetime, bounded by the configured
	// ceiling.
	Duration time.Duration `json:"duration" validate:"required"`
}

// Create validates the submission and persists a new active exception.
// Resubmitting the same incident, requester, and rule refs while the first
// exception is still active returns the existing exception instead of
// creating a duplicate.
//
// Errors: *errors.ValidationError for malformed input, *errors.DurationError
// when the lifetime exceeds the ceiling, *errors.ConflictError on an
// identifier collision the idempotency key did not resolve, and
// *errors.StorageError when persistence fails. Nothing is persisted on
// error.
func (m *Manager) Create(ctx context.Context, sub Submission) (*entities.Exception, error) {
	if err := validateStruct(&sub); err != nil {
		return nil, err
	}
	if sub.Duration <= 0 {
		return nil, &derrors.ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if sub.Duration > m.config.maxLifetime {
		return nil, &derrors.DurationError{Requested: sub.Duration, Ceiling: m.config.maxLifetime}
	}

	scope, err := match.CompileScope(sub.Scope)
	if err != nil {
		return nil, err
	}
	conds, err := match.CompileConditions(sub.Conditions)
	if err != nil {
		return nil, err
	}

	now := m.config.clock.Now()
	key := m.idempotencyKey(sub)

	if existing, ok := m.store.FindByIdempotencyKey(key); ok {
		// Only a still-active exception satisfies the idempotent-return
		// path; resubmitting after expiry or revocation creates a fresh
		// exception under a new identifier.
		if existing.ActiveAt(now) {
			m.config.logger.Info("duplicate exception submission, returning existing",
				"exception", existing.ID, "incident", sub.IncidentID)
			return existing, nil
		}
	}

	ex := &entities.Exception{
		ID:             m.exceptionID(sub.IncidentID, key, now),
		RuleRefs:       append([]string(nil), sub.RuleRefs...),
		Scope:          sub.Scope.Clone(),
		Conditions:     append([]entities.Condition(nil), sub.Conditions...),
		IdempotencyKey: key,
		CreatedAt:      now,
		ExpiresAt:      now.Add(sub.Duration),
		Status:         entities.StatusActive,
		Provenance: entities.Provenance{
			CreatedBy:     sub.Requester,
			Justification: sub.Justification,
			IncidentID:    sub.IncidentID,
		},
	}

	if err := m.store.Put(ex); err != nil {
		return nil, err
	}
	m.compiled.Store(ex.ID, &compiledException{scope: scope, conds: conds})

	record := &entities.AuditRecord{
		Timestamp:   now,
		Kind:        entities.AuditExceptionCreated,
		Actor:       sub.Requester,
		ExceptionID: ex.ID,
		IncidentID:  sub.IncidentID,
		Reason:      sub.Justification,
	}
	if err := m.sink.Append(ctx, record); err != nil {
		// All-or-nothing: an exception whose creation could not be
		// audited must not remain grantable.
		if _, terr := m.store.Transition(ex.ID, entities.StatusActive, entities.StatusRevoked, "audit write failed during creation"); terr != nil {
			m.config.logger.Error("rollback after failed audit write also failed",
				"exception", ex.ID, "error", terr)
		}
		return nil, &derrors.StorageError{Op: "audit exception-created", Err: err}
	}

	m.config.logger.Info("exception created",
		"exception", ex.ID, "rules", strings.Join(ex.RuleRefs, ","),
		"expires", ex.ExpiresAt, "requester", sub.Requester, "incident", sub.IncidentID)
	return ex.Clone(), nil
}

// Revoke transitions an active exception to revoked. Revoking an exception
// that is already revoked or expired is a no-op that succeeds; the end state
// is identical.
func (m *Manager) Revoke(ctx context.Context, exceptionID, reason string) error {
	ex, err := m.store.Get(exceptionID)
	if err != nil {
		return err
	}
	if ex.Status.Terminal() {
		return nil
	}

	swapped, err := m.store.Transition(exceptionID, entities.StatusActive, entities.StatusRevoked, reason)
	if err != nil {
		return err
	}
	if !swapped {
		// Lost the race to the sweeper or another revoke; the exception
		// is terminal either way.
		return nil
	}

	record := &entities.AuditRecord{
		Timestamp:   m.config.clock.Now(),
		Kind:        entities.AuditExceptionRevoked,
		Actor:       ex.Provenance.CreatedBy,
		ExceptionID: exceptionID,
		IncidentID:  ex.Provenance.IncidentID,
		Reason:      reason,
	}
	if err := m.sink.Append(ctx, record); err != nil {
		return &derrors.StorageError{Op: "audit exception-revoked", Err: err}
	}
	m.config.logger.Info("exception revoked", "exception", exceptionID, "reason", reason)
	return nil
}

// IsActive reports whether the exception grants access as of the given time.
// It is true only while the stored status is active AND asOf precedes the
// expiry; the time check holds even when the sweeper has not yet stored the
// expired status.
func (m *Manager) IsActive(exceptionID string, asOf time.Time) (bool, error) {
	ex, err := m.store.Get(exceptionID)
	if err != nil {
		return false, err
	}
	return ex.ActiveAt(asOf), nil
}

// Get returns the exception with the given ID.
func (m *Manager) Get(exceptionID string) (*entities.Exception, error) {
	return m.store.Get(exceptionID)
}

// List returns all exceptions, most recently created first.
func (m *Manager) List() []*entities.Exception {
	return m.store.List()
}

// FindMatching returns the exceptions that currently apply to the request
// and suspend the given rule (or any rule, for ruleID == "*"). Results keep
// the store's order: most recently created first, then smallest ID.
func (m *Manager) FindMatching(ctx context.Context, req *entities.AdmissionRequest, ruleID string) ([]*entities.Exception, error) {
	now := m.config.clock.Now()
	var out []*entities.Exception
	for _, ex := range m.store.ListActive() {
		if !ex.ActiveAt(now) {
			continue
		}
		if ruleID != entities.WildcardRuleRef && !ex.SuspendsRule(ruleID) {
			continue
		}
		ce, err := m.compiledFor(ex)
		if err != nil {
			// A stored exception that no longer compiles cannot be
			// trusted to grant anything.
			m.config.logger.Error("skipping uncompilable exception", "exception", ex.ID, "error", err)
			continue
		}
		if !ce.scope.Matches(req) || !ce.conds.Matches(req) {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

func (m *Manager) compiledFor(ex *entities.Exception) (*compiledException, error) {
	if v, ok := m.compiled.Load(ex.ID); ok {
		return v.(*compiledException), nil
	}
	scope, err := match.CompileScope(ex.Scope)
	if err != nil {
		return nil, err
	}
	conds, err := match.CompileConditions(ex.Conditions)
	if err != nil {
		return nil, err
	}
	ce := &compiledException{scope: scope, conds: conds}
	m.compiled.Store(ex.ID, ce)
	return ce, nil
}

// idempotencyKey derives the duplicate-submission key from the incident ID,
// requester, and rule refs. Submissions without an incident ID get a fresh
// uniqueness token, so they are never deduplicated against each other.
func (m *Manager) idempotencyKey(sub Submission) string {
	anchor := sub.IncidentID
	if anchor == "" {
		anchor = m.config.token()
	}
	refs := append([]string(nil), sub.RuleRefs...)
	sort.Strings(refs)

	h := blake3.New()
	h.Write([]byte(anchor))
	h.Write([]byte{0})
	h.Write([]byte(sub.Requester))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(refs, ",")))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// exceptionID builds a readable identifier: the incident slug (or "adhoc")
// plus a short digest of the idempotency key and the creation time, keeping
// retries after expiry distinct.
func (m *Manager) exceptionID(incidentID, key string, now time.Time) string {
	slug := slugify(incidentID)
	if slug == "" {
		slug = "adhoc"
	}
	return fmt.Sprintf("exc-%s-%s-%x", slug, key[:8], now.UnixNano()%0x100000)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
