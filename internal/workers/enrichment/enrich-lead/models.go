package enrichlead

type Input struct {
	LeadID string `json:"leadId"`
	// Tier forces a tier path; empty uses the lead's own tier.
	Tier string `json:"tier,omitempty"`
}

type Output struct {
	LeadID     string  `json:"leadId"`
	AuditID    string  `json:"auditId"`
	Tier       string  `json:"tier"`
	Status     string  `json:"enrichmentStatus"`
	Turns      int     `json:"turns"`
	ToolCalls  int     `json:"toolCalls"`
	CostUSD    float64 `json:"costUsd"`
	EmailWords int     `json:"emailWords"`
}
