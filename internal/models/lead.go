package models

import (
	"encoding/json"
	"time"
)

type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "pending"
	LeadStatusProcessing LeadStatus = "processing"
	LeadStatusEnriched   LeadStatus = "enriched"
	LeadStatusFailed     LeadStatus = "failed"
)

// CanTransitionTo enforces the forward-only lifecycle. A failed lead may be
// claimed again for a new attempt; enriched is terminal.
func (s LeadStatus) CanTransitionTo(next LeadStatus) bool {
	switch s {
	case LeadStatusPending, LeadStatusFailed:
		return next == LeadStatusProcessing
	case LeadStatusProcessing:
		return next == LeadStatusProcessing || next == LeadStatusEnriched || next == LeadStatusFailed
	default:
		return false
	}
}

type Lead struct {
	ID             string          `json:"id"`
	FullName       string          `json:"fullName"`
	CompanyName    string          `json:"companyName"`
	Email          string          `json:"email,omitempty"`
	Title          string          `json:"title,omitempty"`
	LinkedInURL    string          `json:"linkedinUrl,omitempty"`
	Website        string          `json:"website,omitempty"`
	Tier           Tier            `json:"tier"`
	Status         LeadStatus      `json:"status"`
	EnrichmentData *EnrichmentData `json:"enrichmentData,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	ProcessedAt    *time.Time      `json:"processedAt,omitempty"`
	ExpiresAt      time.Time       `json:"expiresAt"`
}

// EnrichmentData is written in a single update together with status enriched.
// Enrichment keeps the model's structured insights byte-for-byte; only the
// subject and draft are content filtered.
type EnrichmentData struct {
	Enrichment   json.RawMessage `json:"enrichment"`
	Sources      []Source        `json:"sources"`
	EmailSubject string          `json:"email_subject"`
	DraftEmail   string          `json:"draft_email"`
}

type SourceType string

const (
	SourceWebSearch      SourceType = "web_search"
	SourceWebFetch       SourceType = "web_fetch"
	SourceCompanyWebsite SourceType = "scrape_company_website"
	SourceLinkedIn       SourceType = "scrape_linkedin"
	SourceInference      SourceType = "inference"
)

type Source struct {
	Type       SourceType `json:"type"`
	URL        string     `json:"url,omitempty"`
	DataPoints []string   `json:"data_points"`
}
