// Package tools is the closed catalog of research tools, the per-run tool
// surface, and the executors for tools run in-process.
package tools

import (
	"sort"

	"lead-enricher/internal/models"
)

// ID names a tool. The set is closed: every ID has exactly one definition.
type ID string

const (
	WebSearch            ID = "web_search"
	WebFetch             ID = "web_fetch"
	ScrapeCompanyWebsite ID = "scrape_company_website"
	ScrapeLinkedIn       ID = "scrape_linkedin"
)

// ids lists every tool in catalog order.
var ids = []ID{WebSearch, WebFetch, ScrapeCompanyWebsite, ScrapeLinkedIn}

// Execution says who runs a tool.
type Execution int

const (
	// Delegated tools run on the model provider's infrastructure.
	Delegated Execution = iota
	// Local tools are executed by this process and their results fed back.
	Local
)

func (e Execution) String() string {
	if e == Local {
		return "local"
	}
	return "delegated"
}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamBoolean ParamType = "boolean"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

type Definition struct {
	ID          ID
	Description string
	Execution   Execution
	MinTier     models.Tier
	Params      []Param
}

// Lookup returns the definition for id. Adding an ID without a case here is
// caught by TestEveryIDHasDefinition.
func Lookup(id ID) (Definition, bool) {
	switch id {
	case WebSearch:
		return Definition{
			ID:          WebSearch,
			Description: "Search the public web for recent information about a person or company.",
			Execution:   Delegated,
			MinTier:     models.TierStandard,
		}, true
	case WebFetch:
		return Definition{
			ID:          WebFetch,
			Description: "Fetch and read the content of a specific public URL.",
			Execution:   Delegated,
			MinTier:     models.TierStandard,
		}, true
	case ScrapeCompanyWebsite:
		return Definition{
			ID:          ScrapeCompanyWebsite,
			Description: "Scrape a company website and return its title, description and visible text.",
			Execution:   Local,
			MinTier:     models.TierMedium,
			Params: []Param{
				{Name: "url", Type: ParamString, Description: "Absolute http(s) URL of the company website", Required: true},
			},
		}, true
	case ScrapeLinkedIn:
		return Definition{
			ID:          ScrapeLinkedIn,
			Description: "Fetch a structured LinkedIn profile for a person.",
			Execution:   Local,
			MinTier:     models.TierPremium,
			Params: []Param{
				{Name: "url", Type: ParamString, Description: "LinkedIn profile URL, e.g. https://www.linkedin.com/in/jane-doe", Required: true},
				{Name: "include_experience", Type: ParamBoolean, Description: "Include work history"},
				{Name: "include_education", Type: ParamBoolean, Description: "Include education history"},
			},
		}, true
	default:
		return Definition{}, false
	}
}

// All returns every definition in catalog order.
func All() []Definition {
	defs := make([]Definition, 0, len(ids))
	for _, id := range ids {
		def, _ := Lookup(id)
		defs = append(defs, def)
	}
	return defs
}

// ListForTier returns every tool whose minimum tier is at or below tier.
func ListForTier(tier models.Tier) []Definition {
	var out []Definition
	for _, def := range All() {
		if tier.AtLeast(def.MinTier) {
			out = append(out, def)
		}
	}
	return out
}

// Categorize splits known ids by execution kind, preserving order. Unknown
// ids are dropped.
func Categorize(in []ID) (delegated, local []ID) {
	for _, id := range in {
		def, ok := Lookup(id)
		if !ok {
			continue
		}
		if def.Execution == Local {
			local = append(local, id)
		} else {
			delegated = append(delegated, id)
		}
	}
	return delegated, local
}

type ValidationResult struct {
	Valid      bool
	InvalidIDs []string
}

// Validate rejects ids that are not in the catalog.
func Validate(in []string) ValidationResult {
	res := ValidationResult{Valid: true}
	for _, raw := range in {
		if _, ok := Lookup(ID(raw)); !ok {
			res.Valid = false
			res.InvalidIDs = append(res.InvalidIDs, raw)
		}
	}
	return res
}

// ValidateForTier also rejects ids the tier is not entitled to.
func ValidateForTier(in []string, tier models.Tier) ValidationResult {
	res := Validate(in)
	for _, raw := range in {
		def, ok := Lookup(ID(raw))
		if ok && !tier.AtLeast(def.MinTier) {
			res.Valid = false
			res.InvalidIDs = append(res.InvalidIDs, raw)
		}
	}
	sort.Strings(res.InvalidIDs)
	return res
}

// DefaultsForTier is the preset used when no configuration is active.
func DefaultsForTier(tier models.Tier) []ID {
	switch tier {
	case models.TierPremium:
		return []ID{WebSearch, WebFetch, ScrapeCompanyWebsite, ScrapeLinkedIn}
	case models.TierMedium:
		return []ID{WebSearch, WebFetch, ScrapeCompanyWebsite}
	default:
		return []ID{WebSearch, WebFetch}
	}
}

// ParseIDs converts stored strings, dropping unknown ids.
func ParseIDs(in []string) []ID {
	out := make([]ID, 0, len(in))
	seen := make(map[ID]bool, len(in))
	for _, raw := range in {
		id := ID(raw)
		if _, ok := Lookup(id); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Strings converts ids back to their stored form.
func Strings(in []ID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = string(id)
	}
	return out
}
