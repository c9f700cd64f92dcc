package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tripwise_backend/internal/llm"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/notify"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

type flowFixture struct {
	svc           FlowService
	model         *fakeModel
	dispatcher    *notify.Dispatcher
	conversations *repositories.ConversationRepository
	trips         *repositories.TripRepository
}

// newFlow wires a flow service over an unlimited-tier user so tests can run
// as many turns as they need. The dispatcher is not started: submitted
// events stay queued and countable.
func newFlow(t *testing.T, db *gorm.DB, model *fakeModel) *flowFixture {
	t.Helper()

	subscriptionRepo := repositories.NewSubscriptionRepository()
	conversationRepo := repositories.NewConversationRepository()
	tripRepo := repositories.NewTripRepository()
	dispatcher := notify.NewDispatcher(16)

	admission := NewAdmissionService(subscriptionRepo, nil)
	svc := NewFlowService(admission, model, conversationRepo, tripRepo, dispatcher)

	return &flowFixture{
		svc:           svc,
		model:         model,
		dispatcher:    dispatcher,
		conversations: conversationRepo,
		trips:         tripRepo,
	}
}

func reply(ui, resp string) *llm.Reply {
	return &llm.Reply{Resp: resp, UI: ui}
}

func TestFlow_FirstTurnWelcome(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{reply("welcome", "Hi! Dream trip?")}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())

	result, err := f.svc.Turn(context.Background(), db, "user-1", userMessage("hello"))
	require.NoError(t, err)
	assert.Equal(t, models.StageWelcome, result.Stage)
	assert.Equal(t, models.ComponentGreeting, result.Component)
	assert.Equal(t, "Hi! Dream trip?", result.Resp)
	assert.Nil(t, result.Automation)
}

func TestFlow_EmptyHistoryAsksForClarification(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{reply("welcome", "unused")}})

	result, err := f.svc.Turn(context.Background(), db, "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Stage, "clarification carries no ui tag")
	assert.Empty(t, result.Component)
	assert.NotEmpty(t, result.Resp)
	assert.Equal(t, 0, f.model.calls, "no model call for an empty history")

	// The hiccup must not have spent quota.
	admission := NewAdmissionService(repositories.NewSubscriptionRepository(), nil)
	decision, err := admission.Peek(context.Background(), db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, decision.Remaining)
}

// TestFlow_SecondTurnDeniedOnFreeTier runs the end-to-end admission path: a
// free user gets one turn, then a quota denial with upgrade details.
func TestFlow_SecondTurnDeniedOnFreeTier(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		reply("welcome", "Hello!"),
		reply("ask-source", "Where from?"),
	}})

	first, err := f.svc.Turn(context.Background(), db, "user-1", userMessage("hi"))
	require.NoError(t, err)
	assert.Equal(t, models.StageWelcome, first.Stage)

	_, err = f.svc.Turn(context.Background(), db, "user-1", userMessage("I want a beach trip"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeQuotaExceeded, appErr.Code)
	assert.Equal(t, 429, appErr.HTTPCode)

	details, ok := appErr.Details.(*apperrors.QuotaDetails)
	require.True(t, ok)
	assert.Equal(t, "free", details.Tier)
	assert.Equal(t, 0, details.Remaining)
	assert.False(t, details.ResetAt.IsZero())
}

func TestFlow_StageAdvancesAndClamps(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		reply("ask-source", "Where from?"),
		reply("map", "Jumping ahead!"), // wild forward proposal
		reply("welcome", "Back to start!"),
	}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())
	ctx := context.Background()

	first, err := f.svc.Turn(ctx, db, "user-1", userMessage("hi"))
	require.NoError(t, err)
	assert.Equal(t, models.StageAskSource, first.Stage)

	second, err := f.svc.Turn(ctx, db, "user-1", userMessage("from Berlin"))
	require.NoError(t, err)
	assert.Equal(t, models.StageAskDestination, second.Stage, "jump past next stage is cut")

	third, err := f.svc.Turn(ctx, db, "user-1", userMessage("to Rome"))
	require.NoError(t, err)
	assert.Equal(t, models.StageAskDestination, third.Stage, "regression holds the watermark")
}

func TestFlow_DraftAccumulatesAcrossTurns(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		{Resp: "From where?", UI: "ask-source", Source: "Berlin"},
		{Resp: "Where to?", UI: "ask-destination", Destination: "Rome", Interests: []string{"food"}},
		{Resp: "Budget?", UI: "budget", Interests: []string{"history", "food"}},
	}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())
	ctx := context.Background()

	for _, msg := range []string{"hi", "Berlin", "Rome please"} {
		_, err := f.svc.Turn(ctx, db, "user-1", userMessage(msg))
		require.NoError(t, err)
	}

	conv, err := f.conversations.FindOrCreate(db, "user-1")
	require.NoError(t, err)
	draft := conv.DraftValue()
	assert.Equal(t, "Berlin", draft.Source)
	assert.Equal(t, "Rome", draft.Destination)
	assert.Equal(t, []string{"food", "history"}, draft.Interests)
}

func TestFlow_DestinationChangeFansOutOnce(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		{Resp: "Rome it is", UI: "ask-source", Destination: "Rome"},
		{Resp: "Still Rome", UI: "ask-destination", Destination: "Rome"},
		{Resp: "Paris then", UI: "budget", Destination: "Paris"},
	}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())
	ctx := context.Background()

	_, err := f.svc.Turn(ctx, db, "user-1", userMessage("Rome"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.dispatcher.Len(), "new destination triggers fan-out")

	_, err = f.svc.Turn(ctx, db, "user-1", userMessage("yes Rome"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.dispatcher.Len(), "unchanged destination stays quiet")

	_, err = f.svc.Turn(ctx, db, "user-1", userMessage("actually Paris"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.dispatcher.Len(), "changed destination triggers again")
}

func TestFlow_ModelFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{err: errors.New("provider timeout")})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())

	// Put the conversation past welcome first.
	conv, err := f.conversations.FindOrCreate(db, "user-1")
	require.NoError(t, err)
	conv.FurthestStage = models.StageBudget
	require.NoError(t, f.conversations.Save(db, conv))

	_, err = f.svc.Turn(context.Background(), db, "user-1", userMessage("hi"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeUpstreamError, appErr.Code)

	after, err := f.conversations.FindOrCreate(db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageBudget, after.FurthestStage)
	assert.Equal(t, 0, f.dispatcher.Len())
}

// TestFlow_ModelFailureRefundsQuota covers the retry contract: a transient
// provider failure must not burn the quota unit, so re-sending the same
// turn succeeds once the provider recovers.
func TestFlow_ModelFailureRefundsQuota(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{err: errors.New("provider timeout")})
	ctx := context.Background()

	// Free tier, one trip per day, provisioned lazily on first contact.
	_, err := f.svc.Turn(ctx, db, "user-1", userMessage("hi"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeUpstreamError, appErr.Code)

	// Provider recovers; the same turn re-sent must get a real reply, not a
	// quota denial.
	f.model.err = nil
	f.model.replies = []*llm.Reply{reply("welcome", "Hi! Dream trip?")}

	result, err := f.svc.Turn(ctx, db, "user-1", userMessage("hi"))
	require.NoError(t, err)
	assert.Equal(t, models.StageWelcome, result.Stage)
	assert.Equal(t, 0, result.Remaining, "the retry spends the unit the failed turn gave back")
}

func TestFlow_ResetReturnsToWelcome(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		{Resp: "Where to?", UI: "ask-source", Destination: "Rome"},
	}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())
	ctx := context.Background()

	_, err := f.svc.Turn(ctx, db, "user-1", userMessage("Rome"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx, db, "user-1"))

	conv, err := f.conversations.FindOrCreate(db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageWelcome, conv.FurthestStage)
	assert.Empty(t, conv.DraftValue().Destination)
}

func TestFlow_UserLocksDoNotAccumulate(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{reply("welcome", "Hi")}})
	seedSubscription(t, db, "alice", models.TierEnterprise, time.Now())
	seedSubscription(t, db, "bob", models.TierEnterprise, time.Now())
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		_, err := f.svc.Turn(ctx, db, user, userMessage("hi"))
		require.NoError(t, err)
	}

	assert.Equal(t, 0, f.svc.(*flowService).locks.size(), "lock entries are released after the turn")
}

func TestFlow_FinalPlanCarriesAutomationAndArchivesTrip(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		{Resp: "Day 1: ...", UI: "final-plan", Destination: "Rome", DurationDays: 5},
	}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())

	conv, err := f.conversations.FindOrCreate(db, "user-1")
	require.NoError(t, err)
	conv.FurthestStage = models.StageVirtualTour
	require.NoError(t, f.conversations.Save(db, conv))

	result, err := f.svc.Turn(context.Background(), db, "user-1", userMessage("show me the plan"))
	require.NoError(t, err)
	assert.Equal(t, models.StageFinalPlan, result.Stage)
	require.NotNil(t, result.Automation)
	assert.True(t, result.Automation.Booking)
	assert.True(t, result.Automation.SafetyAlerts)

	trips, err := f.trips.FindByUser(db, "user-1")
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "Rome", trips[0].Destination)
	assert.Equal(t, "Day 1: ...", trips[0].Plan)
}

func TestFlow_TerminalStageIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	f := newFlow(t, db, &fakeModel{replies: []*llm.Reply{
		reply("final-plan", "Here is your plan again"),
	}})
	seedSubscription(t, db, "user-1", models.TierEnterprise, time.Now())

	conv, err := f.conversations.FindOrCreate(db, "user-1")
	require.NoError(t, err)
	conv.FurthestStage = models.StageFinalPlan
	require.NoError(t, f.conversations.Save(db, conv))

	for i := 0; i < 3; i++ {
		result, err := f.svc.Turn(context.Background(), db, "user-1", userMessage("again"))
		require.NoError(t, err)
		assert.Equal(t, models.StageFinalPlan, result.Stage)
		assert.NotNil(t, result.Automation)
	}
}
