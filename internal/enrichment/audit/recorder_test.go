package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lead-enricher/internal/common/config"
	"lead-enricher/internal/common/database"
	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/logger"
	"lead-enricher/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	entries []*models.AuditEntry
	err     error
}

func (m *fakeMirror) Index(_ context.Context, entry *models.AuditEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

func newRecorder(t *testing.T, mirror Mirror) (*PostgresRecorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRecorder(database.NewPostgresFromDB(db), mirror, logger.NewTestLogger(t)), mock
}

var returningCols = []string{"lead_id", "tier", "started_at", "duration_ms"}

func TestPostgresRecorder_Open(t *testing.T) {
	rec, mock := newRecorder(t, nil)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO enrichment_audit`).
		WithArgs(sqlmock.AnyArg(), "lead-1", "standard", "started", started).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := rec.Open(context.Background(), "lead-1", models.TierStandard, started)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_OpenFailure(t *testing.T) {
	rec, mock := newRecorder(t, nil)

	mock.ExpectExec(`INSERT INTO enrichment_audit`).WillReturnError(errors.New("connection reset"))

	_, err := rec.Open(context.Background(), "lead-1", models.TierStandard, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrUpdateFailed)
}

func TestPostgresRecorder_CloseSuccessMirrors(t *testing.T) {
	mirror := &fakeMirror{}
	rec, mock := newRecorder(t, mirror)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(4200 * time.Millisecond)

	mock.ExpectQuery(`UPDATE enrichment_audit\s+SET status = \$2.+WHERE id = \$1 AND status = 'started'\s+RETURNING`).
		WithArgs("audit-1", "success", completed, 3, 2, sqlmock.AnyArg(), int64(1200), int64(300), 0.0042, "", "").
		WillReturnRows(sqlmock.NewRows(returningCols).AddRow("lead-1", "medium", started, int64(4200)))

	err := rec.Close(context.Background(), "audit-1", models.AuditOutcome{
		Status:       models.AuditSuccess,
		CompletedAt:  completed,
		Turns:        3,
		ToolCalls:    2,
		ToolsUsed:    []string{"web_search", "scrape_company_website"},
		InputTokens:  1200,
		OutputTokens: 300,
		CostUSD:      0.0042,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, mirror.entries, 1)
	entry := mirror.entries[0]
	assert.Equal(t, "audit-1", entry.ID)
	assert.Equal(t, "lead-1", entry.LeadID)
	assert.Equal(t, models.TierMedium, entry.Tier)
	assert.Equal(t, models.AuditSuccess, entry.Status)
	assert.Equal(t, int64(4200), entry.DurationMS)
	assert.Equal(t, []string{"web_search", "scrape_company_website"}, entry.ToolsUsed)
}

func TestPostgresRecorder_CloseOnlyOnce(t *testing.T) {
	rec, mock := newRecorder(t, nil)
	out := models.AuditOutcome{Status: models.AuditFailed, ErrorCode: "SCHEMA_VALIDATION_ERROR", ErrorMessage: "missing draft_email"}

	mock.ExpectQuery(`UPDATE enrichment_audit`).
		WillReturnRows(sqlmock.NewRows(returningCols).AddRow("lead-1", "standard", time.Now(), int64(10)))
	mock.ExpectQuery(`UPDATE enrichment_audit`).
		WillReturnRows(sqlmock.NewRows(returningCols))

	require.NoError(t, rec.Close(context.Background(), "audit-1", out))

	err := rec.Close(context.Background(), "audit-1", out)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusChange)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_CloseRejectsNonTerminalStatus(t *testing.T) {
	rec, mock := newRecorder(t, nil)

	err := rec.Close(context.Background(), "audit-1", models.AuditOutcome{Status: models.AuditStarted})
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusChange)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_MirrorFailureIsIgnored(t *testing.T) {
	rec, mock := newRecorder(t, &fakeMirror{err: errors.New("es down")})

	mock.ExpectQuery(`UPDATE enrichment_audit`).
		WillReturnRows(sqlmock.NewRows(returningCols).AddRow("lead-1", "standard", time.Now(), int64(10)))

	assert.NoError(t, rec.Close(context.Background(), "audit-1", models.AuditOutcome{Status: models.AuditSuccess}))
}

func TestPostgresRecorder_CloseStale(t *testing.T) {
	rec, mock := newRecorder(t, nil)
	cutoff := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE enrichment_audit\s+SET status = 'failed'.+WHERE status = 'started' AND started_at < \$1`).
		WithArgs(cutoff, "INFRASTRUCTURE_ERROR", "abandoned").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := rec.CloseStale(context.Background(), cutoff, "abandoned")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_Summary(t *testing.T) {
	rec, mock := newRecorder(t, nil)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT tier,.+FROM enrichment_audit\s+WHERE started_at >= \$1\s+GROUP BY tier`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"tier", "total", "success", "failed", "started", "cost", "duration"}).
			AddRow("medium", int64(4), int64(2), int64(1), int64(1), 0.6, int64(9000)).
			AddRow("standard", int64(6), int64(5), int64(1), int64(0), 0.3, int64(9000)))

	s, err := rec.Summary(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, int64(10), s.Total)
	assert.Equal(t, int64(7), s.Success)
	assert.Equal(t, int64(2), s.Failed)
	assert.Equal(t, int64(1), s.Started)
	assert.Equal(t, s.Total, s.Success+s.Failed+s.Started)
	assert.InDelta(t, 7.0/9.0, s.SuccessRate, 1e-9)
	assert.InDelta(t, 0.9, s.TotalCostUSD, 1e-9)
	assert.InDelta(t, 2000.0, s.AvgDurationMS, 1e-9)
	assert.Equal(t, models.TierAuditSummary{Runs: 6, Success: 5, CostUSD: 0.3}, s.ByTier[models.TierStandard])
}

func TestElasticsearchMirror_Index(t *testing.T) {
	var (
		gotMethod, gotPath string
		gotDoc             map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)

	mirror := NewElasticsearchMirror(es, "")
	err = mirror.Index(context.Background(), &models.AuditEntry{ID: "audit-9", LeadID: "lead-1", Tier: models.TierPremium, Status: models.AuditSuccess})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/lead-enrichment-audit/_doc/audit-9", gotPath)
	assert.Equal(t, "lead-1", gotDoc["lead_id"])
	assert.Equal(t, "premium", gotDoc["tier"])
}
