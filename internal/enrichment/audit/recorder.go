// Package audit is the append-only ledger of enrichment attempts.
package audit

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"lead-enricher/internal/common/database"
	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Mirror receives closed entries for analytics. Failures never affect a run.
type Mirror interface {
	Index(ctx context.Context, entry *models.AuditEntry) error
}

// PostgresRecorder writes one row per attempt. Open inserts it as started;
// Close is the only update and succeeds once.
type PostgresRecorder struct {
	db     *database.PostgresClient
	mirror Mirror
	logger logger.Logger
}

func NewPostgresRecorder(db *database.PostgresClient, mirror Mirror, log logger.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, mirror: mirror, logger: log}
}

func (r *PostgresRecorder) Open(ctx context.Context, leadID string, tier models.Tier, startedAt time.Time) (string, error) {
	id := uuid.NewString()

	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO enrichment_audit (id, lead_id, tier, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, leadID, string(tier), string(models.AuditStarted), startedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: open audit entry for lead %s: %v", apperrors.ErrUpdateFailed, leadID, err)
	}
	return id, nil
}

// Close records the terminal outcome. A second Close for the same entry is
// rejected.
func (r *PostgresRecorder) Close(ctx context.Context, auditID string, out models.AuditOutcome) error {
	if out.Status != models.AuditSuccess && out.Status != models.AuditFailed {
		return fmt.Errorf("%w: audit close status must be success or failed, got %q", apperrors.ErrInvalidStatusChange, out.Status)
	}
	if out.CompletedAt.IsZero() {
		out.CompletedAt = time.Now()
	}
	toolsUsed := out.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}

	completedAt := out.CompletedAt.UTC()
	entry := models.AuditEntry{
		ID:           auditID,
		Status:       out.Status,
		Turns:        out.Turns,
		ToolCalls:    out.ToolCalls,
		ToolsUsed:    toolsUsed,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
		CostUSD:      out.CostUSD,
		ErrorCode:    out.ErrorCode,
		ErrorMessage: out.ErrorMessage,
	}
	var tier string

	err := r.db.DB.QueryRowContext(ctx,
		`UPDATE enrichment_audit
		 SET status = $2,
		     completed_at = $3,
		     duration_ms = GREATEST(0, (EXTRACT(EPOCH FROM ($3::timestamptz - started_at)) * 1000)::BIGINT),
		     turns = $4,
		     tool_calls = $5,
		     tools_used = $6,
		     input_tokens = $7,
		     output_tokens = $8,
		     cost_usd = $9,
		     error_code = NULLIF($10, ''),
		     error_message = NULLIF($11, '')
		 WHERE id = $1 AND status = 'started'
		 RETURNING lead_id, tier, started_at, duration_ms`,
		auditID, string(out.Status), completedAt, out.Turns, out.ToolCalls, pq.Array(toolsUsed),
		out.InputTokens, out.OutputTokens, out.CostUSD, out.ErrorCode, out.ErrorMessage,
	).Scan(&entry.LeadID, &tier, &entry.StartedAt, &entry.DurationMS)
	if stderrors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: audit entry %s is unknown or already closed", apperrors.ErrInvalidStatusChange, auditID)
	}
	if err != nil {
		return fmt.Errorf("%w: close audit entry %s: %v", apperrors.ErrUpdateFailed, auditID, err)
	}
	entry.Tier = models.Tier(tier)
	entry.CompletedAt = &completedAt

	if r.mirror != nil {
		if err := r.mirror.Index(ctx, &entry); err != nil {
			r.logger.Warn("Failed to mirror audit entry", map[string]interface{}{
				"auditId": auditID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// CloseStale fails entries left started since before olderThan, which only
// happens when a process died mid-run.
func (r *PostgresRecorder) CloseStale(ctx context.Context, olderThan time.Time, message string) (int64, error) {
	res, err := r.db.DB.ExecContext(ctx,
		`UPDATE enrichment_audit
		 SET status = 'failed',
		     completed_at = NOW(),
		     duration_ms = GREATEST(0, (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::BIGINT),
		     error_code = $2,
		     error_message = $3
		 WHERE status = 'started' AND started_at < $1`,
		olderThan.UTC(), string(apperrors.ErrCodeInfrastructure), message,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: close stale audit entries: %v", apperrors.ErrUpdateFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: close stale audit entries: %v", apperrors.ErrUpdateFailed, err)
	}
	return n, nil
}

// Summary aggregates the ledger since the given time.
func (r *PostgresRecorder) Summary(ctx context.Context, since time.Time) (*models.AuditSummary, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT tier,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'success'),
		        COUNT(*) FILTER (WHERE status = 'failed'),
		        COUNT(*) FILTER (WHERE status = 'started'),
		        COALESCE(SUM(cost_usd), 0),
		        COALESCE(SUM(duration_ms) FILTER (WHERE status <> 'started'), 0)
		 FROM enrichment_audit
		 WHERE started_at >= $1
		 GROUP BY tier
		 ORDER BY tier`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: audit summary: %v", apperrors.ErrQueryFailed, err)
	}
	defer rows.Close()

	summary := &models.AuditSummary{Since: since, ByTier: make(map[models.Tier]models.TierAuditSummary)}
	var totalDuration int64

	for rows.Next() {
		var (
			tier                            string
			total, success, failed, started int64
			cost                            float64
			duration                        int64
		)
		if err := rows.Scan(&tier, &total, &success, &failed, &started, &cost, &duration); err != nil {
			return nil, fmt.Errorf("%w: scan audit summary: %v", apperrors.ErrQueryFailed, err)
		}

		summary.Total += total
		summary.Success += success
		summary.Failed += failed
		summary.Started += started
		summary.TotalCostUSD += cost
		totalDuration += duration
		summary.ByTier[models.Tier(tier)] = models.TierAuditSummary{Runs: total, Success: success, CostUSD: cost}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: audit summary rows: %v", apperrors.ErrQueryFailed, err)
	}

	if closed := summary.Success + summary.Failed; closed > 0 {
		summary.SuccessRate = float64(summary.Success) / float64(closed)
		summary.AvgDurationMS = float64(totalDuration) / float64(closed)
	}
	return summary, nil
}
