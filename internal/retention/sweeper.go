// Package retention destroys expired verification data. The sweeper is the
// single writer responsible for guaranteeing no selfie persists past a
// session's expiry, even across partial failures.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"twinsale/internal/blob"
	"twinsale/internal/verification/models"
	id "twinsale/pkg/domain"
)

// DefaultInterval is the sweep period used when config does not set one. The
// exact period is a deployment parameter, not a correctness property.
const DefaultInterval = time.Hour

// SessionStore is the slice of session persistence the sweeper needs.
type SessionStore interface {
	ListExpired(ctx context.Context, now time.Time) ([]*models.VerificationSession, error)
	Execute(ctx context.Context, listingID id.ListingID,
		validate func(*models.VerificationSession) error,
		mutate func(*models.VerificationSession)) (*models.VerificationSession, error)
}

// StoreTx runs a cleanup write as one unit. Deployments inject the same
// StoreTx the verification service uses, so a sweep can never interleave
// with the transaction finalizer's multi-record unit.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// passthroughTx runs fn directly. Standalone sweepers get no cross-component
// exclusion; wired deployments always inject the shared StoreTx.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// Sweeper finds open sessions past expiry, deletes their selfie blobs, and
// marks them cleaned. Per-item failures are logged and retried on the next
// tick; they never block other items in the same run.
type Sweeper struct {
	sessions SessionStore
	blobs    blob.Store
	logger   *slog.Logger
	metrics  *Metrics
	clock    clock.Clock
	tx       StoreTx
	interval time.Duration
}

type sweeperConfig struct {
	logger   *slog.Logger
	metrics  *Metrics
	clock    clock.Clock
	tx       StoreTx
	interval time.Duration
}

// Option configures optional sweeper dependencies.
type Option func(*sweeperConfig)

func WithLogger(l *slog.Logger) Option {
	return func(c *sweeperConfig) { c.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(c *sweeperConfig) { c.metrics = m }
}

// WithClock overrides the timer source. Tests drive sweeps with a mock clock.
func WithClock(clk clock.Clock) Option {
	return func(c *sweeperConfig) { c.clock = clk }
}

func WithInterval(d time.Duration) Option {
	return func(c *sweeperConfig) { c.interval = d }
}

// WithTx makes cleanup writes run under the given transaction runner. Pass
// the StoreTx shared with the verification service.
func WithTx(tx StoreTx) Option {
	return func(c *sweeperConfig) { c.tx = tx }
}

func NewSweeper(sessions SessionStore, blobs blob.Store, opts ...Option) *Sweeper {
	cfg := &sweeperConfig{interval: DefaultInterval}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.clock == nil {
		cfg.clock = clock.New()
	}
	if cfg.tx == nil {
		cfg.tx = passthroughTx{}
	}
	return &Sweeper{
		sessions: sessions,
		blobs:    blobs,
		logger:   cfg.logger,
		metrics:  cfg.metrics,
		clock:    cfg.clock,
		tx:       cfg.tx,
		interval: cfg.interval,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. An in-flight
// item finishes before shutdown; only the gaps between items observe
// cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepAt(ctx, s.clock.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepAt runs one sweep over all sessions expired as of now. Exported for
// testability; Run passes the clock's wall time.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) {
	expired, err := s.sessions.ListExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list expired sessions",
			slog.String("error", err.Error()))
		return
	}

	for _, sess := range expired {
		if ctx.Err() != nil {
			return
		}
		// Per-item work runs to completion even when ctx is cancelled
		// mid-sweep, so no session is left half cleaned.
		if err := s.cleanOne(context.WithoutCancel(ctx), sess, now); err != nil {
			if s.metrics != nil {
				s.metrics.IncrementCleanupFailures()
			}
			s.logger.ErrorContext(ctx, "session cleanup failed, will retry next sweep",
				slog.String("listing_id", sess.ListingID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.IncrementSessionsCleaned()
		}
		s.logger.InfoContext(ctx, "expired session cleaned",
			slog.String("listing_id", sess.ListingID.String()),
			slog.Time("expired_at", sess.ExpiresAt),
		)
	}
}

// cleanOne deletes the session's blobs, then marks it cleaned. The cleaned
// marker is written only after every blob deletion succeeds: a failed delete
// leaves the session open so the next sweep retries the whole item
// (deletions are idempotent).
func (s *Sweeper) cleanOne(ctx context.Context, sess *models.VerificationSession, now time.Time) error {
	deleted := make(map[string]bool, 2)
	for _, ref := range sess.SelfieRefs() {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			return err
		}
		deleted[ref] = true
	}

	// The cleaned marker is written under the shared StoreTx so it cannot land
	// between the steps of the finalizer's session-plus-listing unit.
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.sessions.Execute(txCtx, sess.ListingID,
			func(sess *models.VerificationSession) error {
				if err := sess.CanClean(now); err != nil {
					return err
				}
				// A selfie replaced since the sweep listed this session has not
				// been deleted; leave the session open and retry next tick.
				for _, ref := range sess.SelfieRefs() {
					if !deleted[ref] {
						return fmt.Errorf("selfie ref changed during cleanup")
					}
				}
				return nil
			},
			func(sess *models.VerificationSession) { sess.ApplyCleanup(now) },
		)
		return err
	})
}
