// Package schema validates the model's final answer against the per-tier
// output contract.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// Output is a validated final answer. Enrichment is kept as the model wrote it.
type Output struct {
	Enrichment   json.RawMessage `json:"enrichment"`
	EmailSubject string          `json:"email_subject"`
	DraftEmail   string          `json:"draft_email"`
	Sources      []models.Source `json:"sources"`
}

// Validator holds the compiled schema for every tier.
type Validator struct {
	schemas map[models.Tier]*gojsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[models.Tier]*gojsonschema.Schema, len(models.AllTiers))}
	for _, tier := range models.AllTiers {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition(tier)))
		if err != nil {
			return nil, fmt.Errorf("compile %s output schema: %w", tier, err)
		}
		v.schemas[tier] = s
	}
	return v, nil
}

// MustNewValidator panics if a built-in schema does not compile.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate extracts the JSON object from raw model text and checks it against
// the tier's schema. Missing or mistyped fields are never filled in.
func (v *Validator) Validate(tier models.Tier, raw string) (*Output, error) {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	s, ok := v.schemas[models.ParseTier(string(tier))]
	if !ok {
		return nil, fmt.Errorf("%w: no schema for tier %q", apperrors.ErrSchemaValidation, tier)
	}

	result, err := s.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaValidation, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSchemaValidation, strings.Join(errs, "; "))
	}

	var out Output
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("%w: decode output: %v", apperrors.ErrSchemaValidation, err)
	}
	return &out, nil
}

// ExtractJSON returns the outermost JSON object in text, tolerating markdown
// code fences and prose around it.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in model output", apperrors.ErrSchemaValidation)
	}

	doc := s[start : end+1]
	if !json.Valid([]byte(doc)) {
		return "", fmt.Errorf("%w: model output is not valid JSON", apperrors.ErrSchemaValidation)
	}
	return doc, nil
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
