package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripDraft_MergeLastWriteWins(t *testing.T) {
	t.Parallel()

	draft := TripDraft{}
	draft.Merge(TripDraft{Destination: "Paris", BudgetBand: BudgetCheap})
	draft.Merge(TripDraft{Destination: "Rome"})

	assert.Equal(t, "Rome", draft.Destination)
	assert.Equal(t, BudgetCheap, draft.BudgetBand)
}

func TestTripDraft_MergeNeverClears(t *testing.T) {
	t.Parallel()

	draft := TripDraft{
		Destination:  "Tokyo",
		Source:       "Berlin",
		BudgetBand:   BudgetModerate,
		GroupBand:    GroupCouple,
		DurationDays: 7,
	}
	draft.Merge(TripDraft{})

	assert.Equal(t, "Tokyo", draft.Destination)
	assert.Equal(t, "Berlin", draft.Source)
	assert.Equal(t, BudgetModerate, draft.BudgetBand)
	assert.Equal(t, GroupCouple, draft.GroupBand)
	assert.Equal(t, 7, draft.DurationDays)
}

func TestTripDraft_MergeRejectsInvalidBands(t *testing.T) {
	t.Parallel()

	draft := TripDraft{BudgetBand: BudgetLuxury, GroupBand: GroupSolo}
	draft.Merge(TripDraft{BudgetBand: "extravagant", GroupBand: "crowd"})

	assert.Equal(t, BudgetLuxury, draft.BudgetBand)
	assert.Equal(t, GroupSolo, draft.GroupBand)
}

func TestTripDraft_MergeInterestsAccumulate(t *testing.T) {
	t.Parallel()

	draft := TripDraft{Interests: []string{"food"}}
	draft.Merge(TripDraft{Interests: []string{"culture", "food", "", "nature"}})

	assert.Equal(t, []string{"food", "culture", "nature"}, draft.Interests)
}

func TestConversation_DraftRoundTrip(t *testing.T) {
	t.Parallel()

	conv := Conversation{}
	assert.Equal(t, TripDraft{}, conv.DraftValue())

	draft := TripDraft{Destination: "Lisbon", DurationDays: 4}
	assert.NoError(t, conv.SetDraft(draft))
	assert.Equal(t, draft, conv.DraftValue())
}

func TestConversation_CorruptDraftYieldsEmpty(t *testing.T) {
	t.Parallel()

	conv := Conversation{Draft: []byte("{not json")}
	assert.Equal(t, TripDraft{}, conv.DraftValue())
}
