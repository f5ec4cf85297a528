// Package sweeper runs the periodic expiry sweep: it transitions exceptions
// whose expiry has passed into the terminal expired status. The sweep is a
// cleanliness mechanism, not a correctness dependency; the lazy time check
// at evaluation time already treats overdue exceptions as inactive.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/breakglass-dev/breakglass/domain/entities"
	"github.com/breakglass-dev/breakglass/domain/ports"
)

// DefaultInterval between sweep cycles.
const DefaultInterval = 2 * time.Minute

// sweeperConfig holds configuration for the Sweeper.
type sweeperConfig struct {
	clock    ports.Clock
	interval time.Duration
	logger   *slog.Logger
}

func defaultSweeperConfig() sweeperConfig {
	return sweeperConfig{
		clock:    ports.SystemClock{},
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
}

// Option configures the Sweeper.
type Option func(*sweeperConfig)

// WithClock sets the clock used to decide expiry.
func WithClock(clock ports.Clock) Option {
	return func(c *sweeperConfig) {
		c.clock = clock
	}
}

// WithInterval sets the time between sweep cycles.
func WithInterval(d time.Duration) Option {
	return func(c *sweeperConfig) {
		c.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sweeperConfig) {
		c.logger = logger
	}
}

// Sweeper expires overdue exceptions. Exactly one instance runs per process.
type Sweeper struct {
	config sweeperConfig
	store  ports.ExceptionStore
	sink   ports.AuditSink
}

// NewSweeper creates a Sweeper over the given store and audit sink.
func NewSweeper(store ports.ExceptionStore, sink ports.AuditSink, opts ...Option) *Sweeper {
	cfg := defaultSweeperConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sweeper{config: cfg, store: store, sink: sink}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept := s.Sweep(ctx)
			if swept > 0 {
				s.config.logger.Info("sweep cycle complete", "expired", swept)
			}
		}
	}
}

// Sweep runs one cycle and returns the number of exceptions it expired.
// Cycles are idempotent: transitions are compare-and-set guarded, so a
// repeat sweep over the same state changes nothing and emits no duplicate
// audit records. A single exception's failure is logged and skipped rather
// than aborting the cycle.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.config.clock.Now()
	swept := 0

	for _, ex := range s.store.ListActive() {
		if ex.ExpiresAt.After(now) {
			continue
		}
		swapped, err := s.store.Transition(ex.ID, entities.StatusActive, entities.StatusExpired, "lifetime elapsed")
		if err != nil {
			s.config.logger.Error("expiry transition failed", "exception", ex.ID, "error", err)
			continue
		}
		if !swapped {
			// Revoked (or already expired) since we listed it.
			continue
		}
		swept++

		record := &entities.AuditRecord{
			Timestamp:   now,
			Kind:        entities.AuditExceptionExpired,
			Actor:       ex.Provenance.CreatedBy,
			ExceptionID: ex.ID,
			IncidentID:  ex.Provenance.IncidentID,
			Reason:      "expiry " + ex.ExpiresAt.Format(time.RFC3339) + " passed",
		}
		if err := s.sink.Append(ctx, record); err != nil {
			// The transition already happened and is terminal; losing
			// the record is logged, not retried here.
			s.config.logger.Error("audit write failed for expired exception", "exception", ex.ID, "error", err)
		}
	}
	return swept
}
