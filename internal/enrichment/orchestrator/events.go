package orchestrator

import (
	"context"
	"time"

	"lead-enricher/internal/common/aws"
)

// RunEvent summarises a finished run for downstream consumers.
type RunEvent struct {
	LeadID      string    `json:"lead_id"`
	AuditID     string    `json:"audit_id"`
	Tier        string    `json:"tier"`
	Outcome     string    `json:"outcome"`
	Turns       int       `json:"turns"`
	ToolCalls   int       `json:"tool_calls"`
	CostUSD     float64   `json:"cost_usd"`
	DurationMS  int64     `json:"duration_ms"`
	ErrorCode   string    `json:"error_code,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

type EventSink interface {
	RunCompleted(ctx context.Context, ev RunEvent) error
}

type snsPublisher interface {
	PublishJSON(ctx context.Context, subject string, payload interface{}, attributes map[string]string) (string, error)
}

// SNSEventSink publishes run events to a topic, with tier and outcome as
// message attributes for subscription filtering.
type SNSEventSink struct {
	publisher snsPublisher
}

func NewSNSEventSink(publisher *aws.SNSPublisher) *SNSEventSink {
	return &SNSEventSink{publisher: publisher}
}

func (s *SNSEventSink) RunCompleted(ctx context.Context, ev RunEvent) error {
	_, err := s.publisher.PublishJSON(ctx, "Lead enrichment "+ev.Outcome, ev, map[string]string{
		"tier":    ev.Tier,
		"outcome": ev.Outcome,
	})
	return err
}
