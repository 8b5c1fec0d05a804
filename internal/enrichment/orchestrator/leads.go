package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"lead-enricher/internal/common/database"
	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/common/validation"
	"lead-enricher/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const leadColumns = `id, full_name, company_name, COALESCE(email, ''), COALESCE(title, ''),
	COALESCE(linkedin_url, ''), COALESCE(website, ''), tier, status, enrichment_data,
	COALESCE(error_message, ''), created_at, processed_at, expires_at`

// PostgresLeadStore reads and updates lead rows. Every write is a single
// statement on one row, guarded by the expected current status.
type PostgresLeadStore struct {
	db *database.PostgresClient
}

func NewPostgresLeadStore(db *database.PostgresClient) *PostgresLeadStore {
	return &PostgresLeadStore{db: db}
}

func (s *PostgresLeadStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var (
		lead        models.Lead
		tier, state string
		data        []byte
		processedAt sql.NullTime
	)

	err := s.db.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id).Scan(
		&lead.ID, &lead.FullName, &lead.CompanyName, &lead.Email, &lead.Title,
		&lead.LinkedInURL, &lead.Website, &tier, &state, &data,
		&lead.ErrorMessage, &lead.CreatedAt, &processedAt, &lead.ExpiresAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLeadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load lead %s: %v", apperrors.ErrQueryFailed, id, err)
	}

	lead.Tier = models.Tier(tier)
	lead.Status = models.LeadStatus(state)
	if processedAt.Valid {
		t := processedAt.Time
		lead.ProcessedAt = &t
	}
	if len(data) > 0 {
		lead.EnrichmentData = &models.EnrichmentData{}
		if err := json.Unmarshal(data, lead.EnrichmentData); err != nil {
			return nil, fmt.Errorf("%w: decode enrichment data of lead %s: %v", apperrors.ErrQueryFailed, id, err)
		}
	}
	return &lead, nil
}

// CreateLead validates and inserts a pending lead that expires after
// retention. A missing id is generated; an unknown tier is stored as
// standard.
func (s *PostgresLeadStore) CreateLead(ctx context.Context, lead *models.Lead, retention time.Duration) error {
	if res := validation.ValidateLead(validation.LeadFields{
		FullName:    lead.FullName,
		CompanyName: lead.CompanyName,
		Email:       lead.Email,
		LinkedInURL: lead.LinkedInURL,
		Website:     lead.Website,
	}); !res.Valid {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidLead, res.Error())
	}

	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	lead.Tier = models.ParseTier(string(lead.Tier))
	lead.Status = models.LeadStatusPending
	lead.CreatedAt = time.Now().UTC()
	lead.ExpiresAt = lead.CreatedAt.Add(retention)

	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO leads (id, full_name, company_name, email, title, linkedin_url, website,
		                    tier, status, created_at, expires_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)`,
		lead.ID, lead.FullName, lead.CompanyName, lead.Email, lead.Title, lead.LinkedInURL, lead.Website,
		string(lead.Tier), string(lead.Status), lead.CreatedAt, lead.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert lead: %v", apperrors.ErrUpdateFailed, err)
	}
	return nil
}

// UpdateStatus moves a lead to status if the lifecycle allows it from the
// row's current status.
func (s *PostgresLeadStore) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) error {
	var from []string
	for _, st := range []models.LeadStatus{models.LeadStatusPending, models.LeadStatusProcessing, models.LeadStatusEnriched, models.LeadStatusFailed} {
		if st.CanTransitionTo(status) {
			from = append(from, string(st))
		}
	}
	if len(from) == 0 {
		return fmt.Errorf("%w: nothing may transition to %s", apperrors.ErrInvalidStatusChange, status)
	}

	query := `UPDATE leads SET status = $2 WHERE id = $1 AND status = ANY($3)`
	if status == models.LeadStatusProcessing {
		// A new attempt starts clean: error_message belongs to failed rows only.
		query = `UPDATE leads SET status = $2, error_message = NULL, processed_at = NULL
		 WHERE id = $1 AND status = ANY($3)`
	}
	res, err := s.db.DB.ExecContext(ctx, query, id, string(status), pq.Array(from))
	return s.checkUpdated(res, err, id, status)
}

// MarkEnriched writes the result and the status together.
func (s *PostgresLeadStore) MarkEnriched(ctx context.Context, id string, data *models.EnrichmentData, processedAt time.Time) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode enrichment data: %v", apperrors.ErrUpdateFailed, err)
	}

	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE leads
		 SET status = 'enriched', enrichment_data = $2, error_message = NULL, processed_at = $3
		 WHERE id = $1 AND status = 'processing'`,
		id, body, processedAt.UTC(),
	)
	return s.checkUpdated(res, err, id, models.LeadStatusEnriched)
}

// MarkFailed records the failure and clears any previous result.
func (s *PostgresLeadStore) MarkFailed(ctx context.Context, id, message string, processedAt time.Time) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE leads
		 SET status = 'failed', enrichment_data = NULL, error_message = $2, processed_at = $3
		 WHERE id = $1 AND status = 'processing'`,
		id, message, processedAt.UTC(),
	)
	return s.checkUpdated(res, err, id, models.LeadStatusFailed)
}

// DeleteExpired removes up to limit leads whose retention has passed.
func (s *PostgresLeadStore) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM leads WHERE id IN (
			SELECT id FROM leads WHERE expires_at < $1 ORDER BY expires_at LIMIT $2
		 )`,
		now.UTC(), limit,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired leads: %v", apperrors.ErrUpdateFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired leads: %v", apperrors.ErrUpdateFailed, err)
	}
	return n, nil
}

func (s *PostgresLeadStore) checkUpdated(res sql.Result, err error, id string, status models.LeadStatus) error {
	if err != nil {
		return fmt.Errorf("%w: set lead %s to %s: %v", apperrors.ErrUpdateFailed, id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: set lead %s to %s: %v", apperrors.ErrUpdateFailed, id, status, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: lead %s cannot move to %s", apperrors.ErrInvalidStatusChange, id, status)
	}
	return nil
}

// PostgresBusinessContextStore reads the sender profile of the active project.
type PostgresBusinessContextStore struct {
	db       *database.PostgresClient
	tenantID string
}

func NewPostgresBusinessContextStore(db *database.PostgresClient, tenantID string) *PostgresBusinessContextStore {
	return &PostgresBusinessContextStore{db: db, tenantID: tenantID}
}

// GetActiveBusinessContext returns nil when no project is active.
func (s *PostgresBusinessContextStore) GetActiveBusinessContext(ctx context.Context) (*models.BusinessContext, error) {
	var bc models.BusinessContext

	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, project_name, company_name, COALESCE(website, ''), COALESCE(description, ''),
		        products, value_props, competitors, COALESCE(target_customer, ''),
		        COALESCE(sender_name, ''), COALESCE(sender_title, ''), COALESCE(sender_email, '')
		 FROM business_contexts
		 WHERE tenant_id = $1 AND is_active = TRUE
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		s.tenantID,
	).Scan(
		&bc.ID, &bc.ProjectName, &bc.CompanyName, &bc.Website, &bc.Description,
		pq.Array(&bc.Products), pq.Array(&bc.ValueProps), pq.Array(&bc.Competitors), &bc.TargetCustomer,
		&bc.SenderName, &bc.SenderTitle, &bc.SenderEmail,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: active business context: %v", apperrors.ErrQueryFailed, err)
	}
	return &bc, nil
}
