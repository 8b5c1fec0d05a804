// Package sweeper enforces lead retention and closes audit entries left
// open by runs that never finished.
package sweeper

import (
	"context"
	"time"

	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/common/metrics"
)

// AbandonedMessage is written to audit entries closed by the sweep.
const AbandonedMessage = "abandoned: process terminated mid-run"

type LeadPurger interface {
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

type StaleCloser interface {
	CloseStale(ctx context.Context, olderThan time.Time, message string) (int64, error)
}

type Options struct {
	// StaleAfter is how long an audit entry may stay started.
	StaleAfter time.Duration
	BatchSize  int
	// MaxBatches bounds one sweep; zero means 100.
	MaxBatches int
}

type Sweeper struct {
	leads LeadPurger
	audit StaleCloser
	opts  Options
	log   logger.Logger
	now   func() time.Time
}

// Report is what one sweep did.
type Report struct {
	LeadsDeleted int64
	AuditsClosed int64
	Duration     time.Duration
}

func New(leads LeadPurger, audit StaleCloser, opts Options, log logger.Logger) *Sweeper {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = 100
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	return &Sweeper{leads: leads, audit: audit, opts: opts, log: log, now: time.Now}
}

// Run deletes expired leads in batches and then closes stale audit entries.
// Work done before an error is kept and reported.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	start := s.now()
	var rep Report

	for i := 0; i < s.opts.MaxBatches; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := s.leads.DeleteExpired(ctx, start, s.opts.BatchSize)
		rep.LeadsDeleted += n
		metrics.SweeperDeleted.WithLabelValues("leads").Add(float64(n))
		if err != nil {
			s.log.Error("Lead retention sweep failed", map[string]interface{}{"error": err.Error(), "deleted": rep.LeadsDeleted})
			return rep, err
		}
		if n < int64(s.opts.BatchSize) {
			break
		}
	}

	closed, err := s.audit.CloseStale(ctx, start.Add(-s.opts.StaleAfter), AbandonedMessage)
	rep.AuditsClosed = closed
	metrics.SweeperDeleted.WithLabelValues("audits").Add(float64(closed))
	if err != nil {
		s.log.Error("Stale audit sweep failed", map[string]interface{}{"error": err.Error()})
		return rep, err
	}

	rep.Duration = s.now().Sub(start)
	s.log.Info("Sweep completed", map[string]interface{}{
		"leadsDeleted": rep.LeadsDeleted,
		"auditsClosed": rep.AuditsClosed,
		"durationMs":   rep.Duration.Milliseconds(),
	})
	return rep, nil
}
