package models

import "time"

// Tier is a named subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// Interval is the rolling window over which a tier's quota resets.
type Interval string

const (
	IntervalDay       Interval = "day"
	IntervalMonth     Interval = "month"
	IntervalTwoMonths Interval = "two_months"
	IntervalYear      Interval = "year"
)

// Advance returns the end of the interval starting at t, using calendar
// arithmetic so month-length differences are respected.
func (i Interval) Advance(t time.Time) time.Time {
	switch i {
	case IntervalDay:
		return t.AddDate(0, 0, 1)
	case IntervalMonth:
		return t.AddDate(0, 1, 0)
	case IntervalTwoMonths:
		return t.AddDate(0, 2, 0)
	case IntervalYear:
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 0, 1)
}

func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalMonth, IntervalTwoMonths, IntervalYear:
		return true
	}
	return false
}

// PlanSpec describes what a tier grants. Unlimited is an explicit sentinel,
// never a large quota number.
type PlanSpec struct {
	Tier      Tier     `json:"tier"`
	Quota     int      `json:"quota"`
	Unlimited bool     `json:"unlimited"`
	Interval  Interval `json:"interval"`
	PriceUSD  float64  `json:"price_usd"`
}

// PlanCatalog maps every tier to its limits. The catalog is static: tiers
// form a closed enumeration and plans are not editable at runtime.
var PlanCatalog = map[Tier]PlanSpec{
	TierFree: {
		Tier:     TierFree,
		Quota:    1,
		Interval: IntervalDay,
		PriceUSD: 0,
	},
	TierPro: {
		Tier:     TierPro,
		Quota:    10,
		Interval: IntervalMonth,
		PriceUSD: 9.99,
	},
	TierPremium: {
		Tier:     TierPremium,
		Quota:    40,
		Interval: IntervalTwoMonths,
		PriceUSD: 24.99,
	},
	TierEnterprise: {
		Tier:      TierEnterprise,
		Unlimited: true,
		Interval:  IntervalYear,
		PriceUSD:  199.99,
	},
}

// GetPlan returns the spec for a tier, falling back to the free plan for
// unknown tiers.
func GetPlan(tier Tier) PlanSpec {
	if plan, ok := PlanCatalog[tier]; ok {
		return plan
	}
	return PlanCatalog[TierFree]
}

// ListPlans returns the catalog in ascending price order.
func ListPlans() []PlanSpec {
	return []PlanSpec{
		PlanCatalog[TierFree],
		PlanCatalog[TierPro],
		PlanCatalog[TierPremium],
		PlanCatalog[TierEnterprise],
	}
}

// ValidTier reports whether tier is one of the known subscription levels.
func ValidTier(tier Tier) bool {
	_, ok := PlanCatalog[tier]
	return ok
}
