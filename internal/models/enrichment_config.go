package models

import "time"

// EnrichmentConfig is a named, versioned research policy for one tier. At most
// one config per tier and tenant is active.
type EnrichmentConfig struct {
	ID            string          `json:"id" yaml:"-"`
	TenantID      string          `json:"tenantId" yaml:"-"`
	Name          string          `json:"name" yaml:"name"`
	Description   string          `json:"description,omitempty" yaml:"description"`
	Tier          Tier            `json:"tier" yaml:"tier"`
	Version       int             `json:"version" yaml:"-"`
	MaxTurns      int             `json:"maxTurns" yaml:"max_turns"`
	MaxToolCalls  int             `json:"maxToolCalls" yaml:"max_tool_calls"`
	MaxBudgetUSD  float64         `json:"maxBudgetUsd" yaml:"max_budget_usd"`
	EmailMinWords int             `json:"emailMinWords" yaml:"email_min_words"`
	EmailMaxWords int             `json:"emailMaxWords" yaml:"email_max_words"`
	EmailTone     string          `json:"emailTone" yaml:"email_tone"`
	AllowedTools  []string        `json:"allowedTools" yaml:"allowed_tools"`
	IsActive      bool            `json:"isActive" yaml:"-"`
	Origin        string          `json:"origin" yaml:"-"` // manual | template | generated
	PlaybookSteps []PlaybookStep  `json:"playbookSteps" yaml:"playbook"`
	Priorities    []Priority      `json:"priorities" yaml:"priorities"`
	ThinkingRules []ThinkingRule  `json:"thinkingRules" yaml:"thinking_rules"`
	EmailTemplate *EmailTemplate  `json:"emailTemplate,omitempty" yaml:"email_template"`
	Blacklist     []BlacklistItem `json:"blacklist" yaml:"blacklist"`
	CreatedAt     time.Time       `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time       `json:"updatedAt" yaml:"-"`
}

// PlaybookStep instructions may reference {{company_name}}, {{person_name}}
// and the other prompt variables.
type PlaybookStep struct {
	Position    int    `json:"position" yaml:"-"`
	Name        string `json:"name" yaml:"name"`
	Instruction string `json:"instruction" yaml:"instruction"`
	ToolHint    string `json:"toolHint,omitempty" yaml:"tool_hint"`
}

type Priority struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Weight      int    `json:"weight" yaml:"weight"`
	Required    bool   `json:"required" yaml:"required"`
}

type ThinkingRule struct {
	Position int    `json:"position" yaml:"-"`
	Rule     string `json:"rule" yaml:"rule"`
}

type EmailTemplate struct {
	Tone      string   `json:"tone" yaml:"tone"`
	Sections  []string `json:"sections" yaml:"sections"`
	MinWords  int      `json:"minWords" yaml:"min_words"`
	MaxWords  int      `json:"maxWords" yaml:"max_words"`
	Signature string   `json:"signature,omitempty" yaml:"signature"`
}

type BlacklistItemType string

const (
	BlacklistWord       BlacklistItemType = "word"
	BlacklistPhrase     BlacklistItemType = "phrase"
	BlacklistTopic      BlacklistItemType = "topic"
	BlacklistCompetitor BlacklistItemType = "competitor"
	BlacklistRegex      BlacklistItemType = "regex"
)

type BlacklistItem struct {
	ID          string            `json:"id" yaml:"-"`
	ItemType    BlacklistItemType `json:"itemType" yaml:"type"`
	Value       string            `json:"value" yaml:"value"`
	Replacement string            `json:"replacement,omitempty" yaml:"replacement"`
	IsEnabled   bool              `json:"isEnabled" yaml:"enabled"`
}
