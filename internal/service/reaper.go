package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/mattcg/oauth-sessions/internal/observability/metrics"
	"github.com/mattcg/oauth-sessions/internal/observability/statsd"
)

// DefaultPurgeInterval is used when SessionReaperOptions.Interval is zero.
const DefaultPurgeInterval = 5 * time.Minute

// Purger deletes expired session records and reports how many were removed.
// Stores with native key expiry do not need one.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// SessionReaperOptions groups dependencies for SessionReaper.
type SessionReaperOptions struct {
	Purger   Purger        // Required
	Interval time.Duration // Optional: defaults to DefaultPurgeInterval
	Logger   *slog.Logger  // Optional
	Metrics  statsd.Sink   // Optional
}

// SessionReaper periodically removes expired rows from stores that only expire lazily.
type SessionReaper struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewSessionReaper constructs a SessionReaper.
func NewSessionReaper(opts SessionReaperOptions) (*SessionReaper, error) {
	if opts.Purger == nil {
		return nil, errors.New("purger is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionReaper{
		purger:   opts.Purger,
		interval: interval,
		logger:   logger.With("component", "session_reaper"),
		metrics:  opts.Metrics,
	}, nil
}

// Run sweeps once after a short jitter and then on every tick until ctx is done.
// It returns nil on cancellation.
func (r *SessionReaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session reaper", "interval", r.interval)

	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Sweep runs a single purge and returns the number of rows removed.
func (r *SessionReaper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := r.purger.Purge(ctx)
	metrics.EmitPurge(r.metrics, metrics.PurgeMetric{
		Count:    count,
		Duration: time.Since(start),
		Err:      suppressContextCancellation(err),
	})
	return count, err
}

func (r *SessionReaper) sweep(ctx context.Context) {
	count, err := r.Sweep(ctx)
	switch {
	case isContextCancellation(err):
		r.logger.DebugContext(ctx, "purge interrupted by shutdown")
	case err != nil:
		r.logger.ErrorContext(ctx, "purge expired sessions failed", "error", err)
	case count > 0:
		r.logger.InfoContext(ctx, "purged expired sessions", "count", count)
	}
}

// waitWithJitter delays up to 10% of the interval so replicas started together
// do not sweep in lockstep.
func (r *SessionReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
