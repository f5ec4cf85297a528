package ports

import (
	"context"
	"time"

	"github.com/breakglass-dev/breakglass/domain/entities"
)

// AuditSink is the append-only record of every admission decision and every
// exception lifecycle transition. Append fails only on unrecoverable storage
// failure; well-formed records are never rejected for business reasons. No
// update or delete operation exists.
type AuditSink interface {
	Append(ctx context.Context, record *entities.AuditRecord) error
}

// AuditFilter selects audit records on the export read path. Zero values
// leave a dimension unconstrained.
type AuditFilter struct {
	From       time.Time
	To         time.Time
	Actor      string
	IncidentID string
	Kind       entities.AuditKind
}

// AuditReader is the export read path for compliance tooling. It is outside
// the admission hot path: the engine guarantees append ordering and
// immutability, not query performance.
type AuditReader interface {
	Query(ctx context.Context, filter AuditFilter) ([]*entities.AuditRecord, error)
}
