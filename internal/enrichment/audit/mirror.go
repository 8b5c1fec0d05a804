package audit

import (
	"context"

	"lead-enricher/internal/common/database"
	"lead-enricher/internal/models"
)

const DefaultIndex = "lead-enrichment-audit"

// ElasticsearchMirror indexes closed entries by audit id, so a retried
// index call overwrites instead of duplicating.
type ElasticsearchMirror struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchMirror(client *database.ElasticsearchClient, index string) *ElasticsearchMirror {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchMirror{client: client, index: index}
}

func (m *ElasticsearchMirror) Index(ctx context.Context, entry *models.AuditEntry) error {
	return m.client.IndexDocument(ctx, m.index, entry.ID, entry)
}
