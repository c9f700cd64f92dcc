package services

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"tripwise_backend/internal/llm"
	"tripwise_backend/internal/logger"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/notify"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

// TurnResult is what one conversation turn produces for the client.
type TurnResult struct {
	Resp       string                    `json:"resp"`
	Stage      models.Stage              `json:"ui"`
	Component  models.Component          `json:"component"`
	Draft      models.TripDraft          `json:"draft"`
	Automation *models.AutomationSummary `json:"automation,omitempty"`
	Remaining  int                       `json:"remaining"`
	Unlimited  bool                      `json:"unlimited"`
}

// FlowService runs the guided trip-planning conversation: admission, model
// call, stage clamping, draft accumulation and collaborator fan-out.
type FlowService interface {
	// Turn processes one user message against the full history. A quota or
	// burst denial surfaces as a QuotaExceeded AppError; a model failure as
	// an UpstreamModelError with no state written and the quota unit
	// refunded, so re-sending the same turn can succeed.
	Turn(ctx context.Context, db *gorm.DB, userID string, history []llm.Message) (*TurnResult, error)

	// Reset abandons the session, returning it to the welcome stage with an
	// empty draft. Quota already spent stays spent.
	Reset(ctx context.Context, db *gorm.DB, userID string) error
}

// userLocks serializes turns per user. Entries are reference counted and
// removed as soon as the last holder releases, so the map does not grow with
// the number of user IDs ever seen.
type userLocks struct {
	mu      sync.Mutex
	entries map[string]*userLockEntry
}

type userLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[string]*userLockEntry)}
}

func (l *userLocks) lock(key string) *userLockEntry {
	l.mu.Lock()
	entry := l.entries[key]
	if entry == nil {
		entry = &userLockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (l *userLocks) unlock(key string, entry *userLockEntry) {
	entry.mu.Unlock()
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type flowService struct {
	admission     AdmissionService
	model         llm.Client
	conversations *repositories.ConversationRepository
	trips         *repositories.TripRepository
	dispatcher    *notify.Dispatcher

	// Per-user turn serialization. Concurrent turns for one user would race
	// on the stage watermark and draft document.
	locks *userLocks
}

func NewFlowService(
	admission AdmissionService,
	model llm.Client,
	conversations *repositories.ConversationRepository,
	trips *repositories.TripRepository,
	dispatcher *notify.Dispatcher,
) FlowService {
	return &flowService{
		admission:     admission,
		model:         model,
		conversations: conversations,
		trips:         trips,
		dispatcher:    dispatcher,
		locks:         newUserLocks(),
	}
}

func (s *flowService) Turn(ctx context.Context, db *gorm.DB, userID string, history []llm.Message) (*TurnResult, error) {
	if userID == "" {
		return nil, apperrors.NewBadRequestError("user id is required")
	}

	entry := s.locks.lock(userID)
	defer s.locks.unlock(userID, entry)

	conv, err := s.conversations.FindOrCreate(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	// An empty history is a client hiccup, not a planning request. Answer
	// with a clarification carrying no UI tag and spend nothing.
	if len(history) == 0 {
		return &TurnResult{
			Resp:  "I did not catch that. Could you say it again?",
			Draft: conv.DraftValue(),
		}, nil
	}

	decision, err := s.admission.CheckAndConsume(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		plan := models.GetPlan(decision.Tier)
		return nil, apperrors.QuotaExceeded(&apperrors.QuotaDetails{
			Tier:       string(decision.Tier),
			Remaining:  decision.Remaining,
			ResetAt:    decision.ResetAt,
			PlanLimits: plan,
		})
	}

	reply, err := s.model.Plan(ctx, history)
	if err != nil {
		logger.CtxError(ctx, "model call failed", "user_id", userID, "error", err.Error())
		// The turn did no work, so the admission must not stand: give the
		// quota unit back or a free user's retry would be denied.
		if refundErr := s.admission.Refund(ctx, db, userID); refundErr != nil {
			logger.CtxError(ctx, "quota refund failed", "user_id", userID, "error", refundErr.Error())
		}
		return nil, apperrors.UpstreamModelError(err)
	}

	stage := models.ClampStage(conv.FurthestStage, models.Stage(reply.UI))
	if stage != models.Stage(reply.UI) {
		logger.CtxWarn(ctx, "model stage proposal clamped",
			"user_id", userID,
			"proposed", reply.UI,
			"resolved", string(stage),
		)
	}

	draft := conv.DraftValue()
	previousDestination := draft.Destination
	draft.Merge(models.TripDraft{
		Destination:  reply.Destination,
		Source:       reply.Source,
		BudgetBand:   reply.Budget,
		GroupBand:    reply.GroupSize,
		DurationDays: reply.DurationDays,
		Interests:    reply.Interests,
	})

	conv.FurthestStage = stage
	if err := conv.SetDraft(draft); err != nil {
		return nil, apperrors.InternalError(err)
	}
	if err := s.conversations.Save(db, conv); err != nil {
		return nil, apperrors.InternalError(err)
	}

	if draft.Destination != "" && draft.Destination != previousDestination {
		s.dispatcher.Submit(notify.Event{
			UserID:      userID,
			Destination: draft.Destination,
		})
	}

	component, _ := stage.Component()
	result := &TurnResult{
		Resp:      reply.Resp,
		Stage:     stage,
		Component: component,
		Draft:     draft,
		Remaining: decision.Remaining,
		Unlimited: decision.Unlimited,
	}

	if stage.Terminal() {
		result.Automation = models.FinalPlanAutomation()
		s.saveTrip(ctx, db, userID, draft, reply.Resp)
	}

	return result, nil
}

func (s *flowService) Reset(ctx context.Context, db *gorm.DB, userID string) error {
	if userID == "" {
		return apperrors.NewBadRequestError("user id is required")
	}

	entry := s.locks.lock(userID)
	defer s.locks.unlock(userID, entry)

	if err := s.conversations.Reset(db, userID); err != nil {
		return apperrors.InternalError(err)
	}
	logger.CtxInfo(ctx, "conversation reset", "user_id", userID)
	return nil
}

// saveTrip archives the finished plan. Failure to archive never fails the
// turn: the user already has the plan in hand.
func (s *flowService) saveTrip(ctx context.Context, db *gorm.DB, userID string, draft models.TripDraft, plan string) {
	trip := &models.Trip{
		UserID:       userID,
		Destination:  draft.Destination,
		Source:       draft.Source,
		BudgetBand:   draft.BudgetBand,
		GroupBand:    draft.GroupBand,
		DurationDays: draft.DurationDays,
		Plan:         plan,
	}
	if err := trip.SetInterests(draft.Interests); err != nil {
		logger.CtxWarn(ctx, "trip interests encode failed", "user_id", userID, "error", err.Error())
	}
	if err := s.trips.Create(db, trip); err != nil {
		logger.CtxWarn(ctx, "trip archive failed", "user_id", userID, "error", err.Error())
	}
}
