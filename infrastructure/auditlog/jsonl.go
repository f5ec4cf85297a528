// Package auditlog provides audit sink implementations: an append-only JSONL
// file sink for production and an in-memory sink for tests. Records are
// immutable once written; the only read path is the export query used by
// compliance tooling, never the decision path.
package auditlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// fileSinkConfig holds configuration for the FileSink.
type fileSinkConfig struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileSinkConfig() fileSinkConfig {
	return fileSinkConfig{
		dirPerm:  0o755,
		filePerm: 0o600, // audit trails are sensitive; user-only by default
	}
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*fileSinkConfig)

// WithFilePermissions sets the permissions of the audit file. Default 0600.
func WithFilePermissions(perm os.FileMode) FileSinkOption {
	return func(c *fileSinkConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions used when creating the parent
// directory. Default 0755.
func WithDirPermissions(perm os.FileMode) FileSinkOption {
	return func(c *fileSinkConfig) {
		c.dirPerm = perm
	}
}

// FileSink appends audit records as one JSON object per line. Queries scan
// the file linearly; the engine promises append ordering and immutability,
// not query performance.
type FileSink struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

var (
	_ ports.AuditSink   = (*FileSink)(nil)
	_ ports.AuditReader = (*FileSink)(nil)
)

// NewFileSink opens (or creates) the JSONL file at path, creating parent
// directories as needed.
func NewFileSink(path string, opts ...FileSinkOption) (*FileSink, error) {
	cfg := defaultFileSinkConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if path == "" {
		return nil, &derrors.ValidationError{Field: "path", Reason: "audit file path must not be empty"}
	}
	if err := os.MkdirAll(filepath.Dir(path), cfg.dirPerm); err != nil {
		return nil, &derrors.StorageError{Op: "create audit directory", Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, cfg.filePerm)
	if err != nil {
		return nil, &derrors.StorageError{Op: "open audit file", Err: err}
	}
	return &FileSink{path: path, f: f}, nil
}

// Append writes one record as a JSON line.
func (s *FileSink) Append(_ context.Context, record *entities.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &derrors.StorageError{Op: "marshal audit record", Err: err}
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return &derrors.StorageError{Op: "append audit record", Err: os.ErrClosed}
	}
	if _, err := s.f.Write(data); err != nil {
		return &derrors.StorageError{Op: "append audit record", Err: err}
	}
	return nil
}

// Query scans the whole file and returns the records the filter selects, in
// append order.
func (s *FileSink) Query(_ context.Context, filter ports.AuditFilter) ([]*entities.AuditRecord, error) {
	s.mu.Lock()
	if s.f != nil {
		_ = s.f.Sync()
	}
	s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &derrors.StorageError{Op: "read audit file", Err: err}
	}

	var out []*entities.AuditRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var record entities.AuditRecord
		if err := json.Unmarshal(line, &record); err != nil {
			// A torn trailing line from a crash is skipped, not fatal.
			continue
		}
		if matchesFilter(&record, filter) {
			out = append(out, &record)
		}
	}
	return out, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func matchesFilter(r *entities.AuditRecord, f ports.AuditFilter) bool {
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.Timestamp.Before(f.To) {
		return false
	}
	if f.Actor != "" && r.Actor != f.Actor {
		return false
	}
	if f.IncidentID != "" && r.IncidentID != f.IncidentID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	return true
}
