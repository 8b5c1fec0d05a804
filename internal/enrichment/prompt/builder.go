// Package prompt renders the research and writing instructions for one run.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"lead-enricher/internal/enrichment/settings"
	"lead-enricher/internal/enrichment/tools"
	"lead-enricher/internal/models"
)

const notProvided = "not provided"

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build renders the prompt for lead. An active configuration drives the
// research steps through its playbook; otherwise the tier's built-in
// instructions are used. Both end with the same output contract.
func (b *Builder) Build(lead *models.Lead, loaded settings.LoadedConfig, bc *models.BusinessContext) string {
	eff := settings.Effective(loaded)
	vars := variables(lead, bc)

	var sb strings.Builder
	sb.WriteString("You are a B2B research analyst and outreach copywriter. Research the lead below, then write a personalised cold email.\n\n")
	writeLead(&sb, lead)
	writeSender(&sb, bc)
	writeTools(&sb, eff.AllowedTools)

	tone := ""
	switch c := loaded.(type) {
	case settings.Active:
		tone = writeActive(&sb, c.Config, vars)
	case settings.Default:
		sb.WriteString(defaultInstructions(c.Defaults.Tier))
		tone = c.Defaults.EmailTone
	}
	if tone == "" {
		tone = settings.DefaultsForTier(loaded.Tier()).EmailTone
	}

	writeEmailRules(&sb, eff.EmailWordRange, tone)
	sb.WriteString(outputContract(loaded.Tier()))
	return sb.String()
}

// variables substitutes the lead and sender fields referenced by playbook text.
func variables(lead *models.Lead, bc *models.BusinessContext) *strings.Replacer {
	sender, senderName := notProvided, notProvided
	if bc != nil {
		sender = orNotProvided(bc.CompanyName)
		senderName = orNotProvided(bc.SenderName)
	}
	return strings.NewReplacer(
		"{{company_name}}", orNotProvided(lead.CompanyName),
		"{{person_name}}", orNotProvided(lead.FullName),
		"{{person_title}}", orNotProvided(lead.Title),
		"{{company_website}}", orNotProvided(lead.Website),
		"{{linkedin_url}}", orNotProvided(lead.LinkedInURL),
		"{{sender_company}}", sender,
		"{{sender_name}}", senderName,
	)
}

func orNotProvided(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notProvided
	}
	return s
}

func writeLead(sb *strings.Builder, lead *models.Lead) {
	sb.WriteString("## Lead\n")
	fmt.Fprintf(sb, "- Name: %s\n", orNotProvided(lead.FullName))
	fmt.Fprintf(sb, "- Company: %s\n", orNotProvided(lead.CompanyName))
	if lead.Title != "" {
		fmt.Fprintf(sb, "- Title: %s\n", lead.Title)
	}
	if lead.Email != "" {
		fmt.Fprintf(sb, "- Email: %s\n", lead.Email)
	}
	if lead.Website != "" {
		fmt.Fprintf(sb, "- Website: %s\n", lead.Website)
	}
	if lead.LinkedInURL != "" {
		fmt.Fprintf(sb, "- LinkedIn: %s\n", lead.LinkedInURL)
	}
	sb.WriteString("\n")
}

func writeSender(sb *strings.Builder, bc *models.BusinessContext) {
	if bc == nil {
		return
	}
	sb.WriteString("## Sender\n")
	fmt.Fprintf(sb, "- Company: %s\n", orNotProvided(bc.CompanyName))
	if bc.Description != "" {
		fmt.Fprintf(sb, "- About: %s\n", bc.Description)
	}
	writeList(sb, "Products", bc.Products)
	writeList(sb, "Value propositions", bc.ValueProps)
	writeList(sb, "Competitors (never name them in the email)", bc.Competitors)
	if bc.TargetCustomer != "" {
		fmt.Fprintf(sb, "- Target customer: %s\n", bc.TargetCustomer)
	}
	if bc.SenderName != "" {
		signature := bc.SenderName
		if bc.SenderTitle != "" {
			signature += ", " + bc.SenderTitle
		}
		fmt.Fprintf(sb, "- Sign the email as: %s\n", signature)
	}
	sb.WriteString("\n")
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "- %s: %s\n", label, strings.Join(items, ", "))
}

func writeTools(sb *strings.Builder, allowed []tools.ID) {
	sb.WriteString("## Tools\nYou may only use these tools:\n")
	for _, id := range allowed {
		if def, ok := tools.Lookup(id); ok {
			fmt.Fprintf(sb, "- %s: %s\n", id, def.Description)
		}
	}
	sb.WriteString("\n")
}

// writeActive renders the operator's playbook and returns the configured tone.
func writeActive(sb *strings.Builder, cfg *models.EnrichmentConfig, vars *strings.Replacer) string {
	if len(cfg.PlaybookSteps) > 0 {
		steps := append([]models.PlaybookStep(nil), cfg.PlaybookSteps...)
		sort.SliceStable(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })

		sb.WriteString("## Research playbook\n")
		for i, step := range steps {
			fmt.Fprintf(sb, "%d. %s: %s", i+1, step.Name, vars.Replace(step.Instruction))
			if step.ToolHint != "" {
				fmt.Fprintf(sb, " (use %s)", step.ToolHint)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(cfg.Priorities) > 0 {
		prios := append([]models.Priority(nil), cfg.Priorities...)
		sort.SliceStable(prios, func(i, j int) bool { return prios[i].Weight > prios[j].Weight })

		sb.WriteString("## Information priorities (highest first)\n")
		for _, p := range prios {
			fmt.Fprintf(sb, "- %s", vars.Replace(p.Name))
			if p.Description != "" {
				fmt.Fprintf(sb, ": %s", vars.Replace(p.Description))
			}
			if p.Required {
				sb.WriteString(" [required]")
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(cfg.ThinkingRules) > 0 {
		rules := append([]models.ThinkingRule(nil), cfg.ThinkingRules...)
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Position < rules[j].Position })

		sb.WriteString("## Reasoning rules\n")
		for _, r := range rules {
			fmt.Fprintf(sb, "- %s\n", vars.Replace(r.Rule))
		}
		sb.WriteString("\n")
	}

	tone := cfg.EmailTone
	if t := cfg.EmailTemplate; t != nil {
		if t.Tone != "" {
			tone = t.Tone
		}
		if len(t.Sections) > 0 {
			sb.WriteString("## Email structure\n")
			for i, s := range t.Sections {
				fmt.Fprintf(sb, "%d. %s\n", i+1, vars.Replace(s))
			}
			sb.WriteString("\n")
		}
		if t.Signature != "" {
			fmt.Fprintf(sb, "End the email with this signature:\n%s\n\n", vars.Replace(t.Signature))
		}
	}
	return tone
}

func writeEmailRules(sb *strings.Builder, words settings.WordRange, tone string) {
	sb.WriteString("## Email rules\n")
	fmt.Fprintf(sb, "- The draft_email must be %d-%d words.\n", words.Min, words.Max)
	fmt.Fprintf(sb, "- Tone: %s.\n", tone)
	sb.WriteString("- Reference at least one specific finding from your research.\n")
	sb.WriteString("- Do not invent facts. If something could not be verified, leave it out.\n\n")
}
