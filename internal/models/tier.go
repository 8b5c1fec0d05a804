package models

import "strings"

// Tier selects research depth, tool access and cost caps.
type Tier string

const (
	TierStandard Tier = "standard"
	TierMedium   Tier = "medium"
	TierPremium  Tier = "premium"
)

// AllTiers is ordered from cheapest to most thorough.
var AllTiers = []Tier{TierStandard, TierMedium, TierPremium}

// ParseTier normalises s. Unknown or empty values route to standard.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return TierStandard
	}
	return t
}

func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Rank orders tiers standard < medium < premium; -1 for unknown values.
func (t Tier) Rank() int {
	switch t {
	case TierStandard:
		return 0
	case TierMedium:
		return 1
	case TierPremium:
		return 2
	default:
		return -1
	}
}

// AtLeast reports whether t grants everything min grants.
func (t Tier) AtLeast(min Tier) bool {
	return t.Valid() && min.Valid() && t.Rank() >= min.Rank()
}

func (t Tier) String() string {
	return string(t)
}
