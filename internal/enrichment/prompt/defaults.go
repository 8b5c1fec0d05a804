package prompt

import (
	"fmt"
	"strings"

	"lead-enricher/internal/models"
)

// defaultInstructions are the built-in research steps used when no
// configuration is active for the tier.
func defaultInstructions(tier models.Tier) string {
	switch tier {
	case models.TierPremium:
		return `## Research plan
Phase 1, company:
1. Search the web for the company's positioning, funding and recent news.
2. Scrape the company website for products, customers and hiring signals.
Phase 2, person:
3. Scrape the LinkedIn profile (include experience and education) to understand the lead's career and focus.
4. Search for the lead's recent talks, posts or interviews.
Phase 3, synthesis:
5. Cross-check findings, discard anything unverified, and derive value propositions and talking points tailored to the lead.

`
	case models.TierMedium:
		return `## Research plan
1. Search the web for the company and the lead's role.
2. Scrape the company website for products, positioning and recent announcements.
3. Identify challenges the company is likely facing given its stage and market.

`
	default:
		return `## Research plan
Make one or two research calls at most:
1. Search the web for the company and the lead's role.
2. Optionally fetch one page that confirms the most relevant finding.

`
	}
}

// outputContract describes the JSON the answer must be, matching the tier's
// output schema.
func outputContract(tier models.Tier) string {
	minInsights, maxInsights := 2, 3
	switch tier {
	case models.TierMedium:
		minInsights, maxInsights = 3, 4
	case models.TierPremium:
		minInsights, maxInsights = 3, 5
	}

	sourceTypes := "web_search|web_fetch|inference"
	if tier.AtLeast(models.TierMedium) {
		sourceTypes = "web_search|web_fetch|scrape_company_website|scrape_linkedin|inference"
	}

	var enrichment []string
	enrichment = append(enrichment,
		`    "role_summary": "string"`,
		`    "company_focus": "string"`,
		fmt.Sprintf(`    "key_insights": ["string", ... %d to %d items]`, minInsights, maxInsights),
		`    "confidence_score": 0-100 integer`,
		`    "data_freshness": "real_time|cached|inferred"`,
	)
	if tier.AtLeast(models.TierMedium) {
		enrichment = append(enrichment,
			`    "company_info": {"description": "string", "industry": "string", "size": "string", "founded": "string", "headquarters": "string", "products_services": ["string"], "recent_news": ["string"], "tech_stack": ["string"], "social_links": {"name": "url"}}`,
			`    "likely_challenges": ["string"]`,
		)
	}
	if tier.AtLeast(models.TierPremium) {
		enrichment = append(enrichment,
			`    "person_info": {"bio": "string", "current_role": "string", "experience_years": 0, "expertise_areas": ["string"], "recent_posts": ["string"], "education": "string", "certifications": ["string"]}`,
			`    "potential_value_props": ["string"]`,
			`    "talking_points": ["string"]`,
		)
	}

	var sb strings.Builder
	sb.WriteString("## Output\nWhen your research is complete, reply with ONLY one JSON object and no other text:\n{\n")
	sb.WriteString("  \"enrichment\": {\n")
	sb.WriteString(strings.Join(enrichment, ",\n"))
	sb.WriteString("\n  },\n")
	sb.WriteString("  \"email_subject\": \"string\",\n")
	sb.WriteString("  \"draft_email\": \"string\",\n")
	fmt.Fprintf(&sb, "  \"sources\": [{\"type\": \"%s\", \"url\": \"string\", \"data_points\": [\"string\"]}]\n", sourceTypes)
	sb.WriteString("}\n")
	sb.WriteString("Every required enrichment field must be present. Do not add keys that are not listed.\n")
	return sb.String()
}
