package models

import "time"

type AuditStatus string

const (
	AuditStarted AuditStatus = "started"
	AuditSuccess AuditStatus = "success"
	AuditFailed  AuditStatus = "failed"
)

// AuditEntry is one enrichment attempt. It is opened as started and closed
// exactly once; all metrics are additive.
type AuditEntry struct {
	ID           string      `json:"id"`
	LeadID       string      `json:"lead_id"`
	Tier         Tier        `json:"tier"`
	Status       AuditStatus `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	DurationMS   int64       `json:"duration_ms"`
	Turns        int         `json:"turns"`
	ToolCalls    int         `json:"tool_calls"`
	ToolsUsed    []string    `json:"tools_used"`
	InputTokens  int64       `json:"input_tokens"`
	OutputTokens int64       `json:"output_tokens"`
	CostUSD      float64     `json:"cost_usd"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// AuditOutcome carries the terminal values written by close.
type AuditOutcome struct {
	Status       AuditStatus
	CompletedAt  time.Time
	Turns        int
	ToolCalls    int
	ToolsUsed    []string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	ErrorCode    string
	ErrorMessage string
}

type TierAuditSummary struct {
	Runs    int64   `json:"runs"`
	Success int64   `json:"success"`
	CostUSD float64 `json:"cost_usd"`
}

// AuditSummary is a read-only projection over the ledger.
type AuditSummary struct {
	Since         time.Time                 `json:"since"`
	Total         int64                     `json:"total"`
	Success       int64                     `json:"success"`
	Failed        int64                     `json:"failed"`
	Started       int64                     `json:"started"`
	SuccessRate   float64                   `json:"success_rate"`
	TotalCostUSD  float64                   `json:"total_cost_usd"`
	AvgDurationMS float64                   `json:"avg_duration_ms"`
	ByTier        map[Tier]TierAuditSummary `json:"by_tier"`
}
