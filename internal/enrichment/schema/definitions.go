package schema

import "lead-enricher/internal/models"

type object = map[string]interface{}

var stringType = object{"type": "string"}

func stringArray() object {
	return object{"type": "array", "items": stringType}
}

func insightsBounds(tier models.Tier) (int, int) {
	switch tier {
	case models.TierPremium:
		return 3, 5
	case models.TierMedium:
		return 3, 4
	default:
		return 2, 3
	}
}

func sourceTypes(tier models.Tier) []interface{} {
	types := []interface{}{
		string(models.SourceWebSearch),
		string(models.SourceWebFetch),
		string(models.SourceInference),
	}
	if tier.AtLeast(models.TierMedium) {
		types = append(types, string(models.SourceCompanyWebsite), string(models.SourceLinkedIn))
	}
	return types
}

func companyInfo() object {
	return object{
		"type": "object",
		"properties": object{
			"description":       stringType,
			"industry":          stringType,
			"size":              stringType,
			"founded":           object{"type": []interface{}{"string", "integer"}},
			"headquarters":      stringType,
			"products_services": stringArray(),
			"recent_news":       stringArray(),
			"tech_stack":        stringArray(),
			"social_links": object{
				"type":                 "object",
				"additionalProperties": stringType,
			},
		},
	}
}

func personInfo() object {
	return object{
		"type": "object",
		"properties": object{
			"bio":              stringType,
			"current_role":     stringType,
			"experience_years": object{"type": "integer", "minimum": 0},
			"expertise_areas":  stringArray(),
			"recent_posts":     stringArray(),
			"education":        stringType,
			"certifications":   stringArray(),
		},
	}
}

// definition returns the JSON schema a final answer must satisfy for tier.
func definition(tier models.Tier) object {
	minInsights, maxInsights := insightsBounds(tier)

	enrichment := object{
		"role_summary":  object{"type": "string", "minLength": 1},
		"company_focus": object{"type": "string", "minLength": 1},
		"key_insights": object{
			"type":     "array",
			"items":    object{"type": "string", "minLength": 1},
			"minItems": minInsights,
			"maxItems": maxInsights,
		},
		"confidence_score": object{"type": "integer", "minimum": 0, "maximum": 100},
		"data_freshness":   object{"type": "string", "enum": []interface{}{"real_time", "cached", "inferred"}},
	}
	if tier.AtLeast(models.TierMedium) {
		enrichment["company_info"] = companyInfo()
		enrichment["likely_challenges"] = stringArray()
	}
	if tier.AtLeast(models.TierPremium) {
		enrichment["person_info"] = personInfo()
		enrichment["potential_value_props"] = stringArray()
		enrichment["talking_points"] = stringArray()
	}

	return object{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []interface{}{"enrichment", "email_subject", "draft_email", "sources"},
		"properties": object{
			"enrichment": object{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []interface{}{"role_summary", "company_focus", "key_insights", "confidence_score", "data_freshness"},
				"properties":           enrichment,
			},
			"email_subject": object{"type": "string", "minLength": 1},
			"draft_email":   object{"type": "string", "minLength": 1},
			"sources": object{
				"type": "array",
				"items": object{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []interface{}{"type", "data_points"},
					"properties": object{
						"type":        object{"type": "string", "enum": sourceTypes(tier)},
						"url":         stringType,
						"data_points": stringArray(),
					},
				},
			},
		},
	}
}
