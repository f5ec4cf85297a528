package auditlog

import (
	"context"
	"sync"

	"github.com/breakglass-dev/breakglass/domain/entities"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// MemorySink keeps records in memory. It is the sink of choice in tests and
// supports failure injection to exercise fail-closed paths.
type MemorySink struct {
	mu      sync.Mutex
	records []*entities.AuditRecord
	failErr error
}

var (
	_ ports.AuditSink   = (*MemorySink)(nil)
	_ ports.AuditReader = (*MemorySink)(nil)
)

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes every subsequent Append return err. Pass nil to heal.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Append implements ports.AuditSink.
func (s *MemorySink) Append(_ context.Context, record *entities.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	clone := *record
	s.records = append(s.records, &clone)
	return nil
}

// Query implements ports.AuditReader.
func (s *MemorySink) Query(_ context.Context, filter ports.AuditFilter) ([]*entities.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.AuditRecord
	for _, r := range s.records {
		if matchesFilter(r, filter) {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

// Records returns a snapshot of everything appended so far.
func (s *MemorySink) Records() []*entities.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entities.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Kinds returns the kinds of all appended records, in order. Convenient for
// asserting audit sequences in tests.
func (s *MemorySink) Kinds() []entities.AuditKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.AuditKind, len(s.records))
	for i, r := range s.records {
		out[i] = r.Kind
	}
	return out
}
