package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterval_Advance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, start.AddDate(0, 0, 1), IntervalDay.Advance(start))
	assert.Equal(t, start.AddDate(0, 1, 0), IntervalMonth.Advance(start))
	assert.Equal(t, start.AddDate(0, 2, 0), IntervalTwoMonths.Advance(start))
	assert.Equal(t, start.AddDate(1, 0, 0), IntervalYear.Advance(start))
}

func TestGetPlan_FallsBackToFree(t *testing.T) {
	t.Parallel()

	plan := GetPlan(Tier("platinum"))
	assert.Equal(t, TierFree, plan.Tier)
	assert.Equal(t, 1, plan.Quota)
	assert.False(t, plan.Unlimited)
}

func TestPlanCatalog_EnterpriseIsUnlimitedSentinel(t *testing.T) {
	t.Parallel()

	plan := GetPlan(TierEnterprise)
	assert.True(t, plan.Unlimited)
	// The sentinel is the flag, never a big quota number.
	assert.Equal(t, 0, plan.Quota)
}

func TestUserSubscription_Rollover(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sub := UserSubscription{
		Quota:          10,
		Consumed:       12,
		IntervalLength: IntervalMonth,
		IntervalStart:  start,
	}

	assert.False(t, sub.RolloverDue(start.AddDate(0, 1, 0).Add(-time.Second)))
	assert.True(t, sub.RolloverDue(start.AddDate(0, 1, 0)))
	assert.Equal(t, 0, sub.Remaining(), "remaining clamps at zero")
}
