package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tripwise_backend/internal/logger"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/ratelimit"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool        `json:"allowed"`
	Tier      models.Tier `json:"tier"`
	Unlimited bool        `json:"unlimited"`
	Remaining int         `json:"remaining"`
	ResetAt   time.Time   `json:"reset_at"`
	// Reason is set on denials: "quota" or "burst".
	Reason string `json:"reason,omitempty"`
}

const (
	DenyReasonQuota = "quota"
	DenyReasonBurst = "burst"
)

// AdmissionService gates trip-planning requests on the user's subscription
// quota and the per-user burst limiter. Both must allow; the quota unit is
// spent only after the burst limiter has let the request through.
type AdmissionService interface {
	// CheckAndConsume admits or denies one request, spending one quota unit
	// on admit. Denial is a valid Decision, not an error.
	CheckAndConsume(ctx context.Context, db *gorm.DB, userID string) (*Decision, error)

	// Refund returns the unit spent by an admitted request whose turn then
	// failed upstream before any state was written, so re-sending the same
	// turn is not answered with a denial.
	Refund(ctx context.Context, db *gorm.DB, userID string) error

	// Peek reports the current quota state without consuming.
	Peek(ctx context.Context, db *gorm.DB, userID string) (*Decision, error)

	// RecordUpgrade switches the user's subscription to tier with a fresh
	// interval. The user must already have a subscription record.
	RecordUpgrade(ctx context.Context, db *gorm.DB, userID string, tier models.Tier) (*Decision, error)
}

type admissionService struct {
	subs  *repositories.SubscriptionRepository
	burst ratelimit.Policy
	now   func() time.Time
}

func NewAdmissionService(subs *repositories.SubscriptionRepository, burst ratelimit.Policy) AdmissionService {
	if burst == nil {
		burst = ratelimit.NewAlwaysAllow()
	}
	return &admissionService{
		subs:  subs,
		burst: burst,
		now:   time.Now,
	}
}

func (s *admissionService) CheckAndConsume(ctx context.Context, db *gorm.DB, userID string) (*Decision, error) {
	if userID == "" {
		return nil, apperrors.NewBadRequestError("user id is required")
	}

	now := s.now()
	sub, err := s.loadCurrent(db, userID, now)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	// Burst limiter first: a burst-denied request must not burn quota.
	allowed, retryAfter, err := s.burst.Allow(ctx, userID)
	if err != nil {
		// The limiter is a guard rail, not the source of truth. If it is
		// unreachable the quota alone decides.
		logger.CtxWarn(ctx, "burst limiter unavailable, admitting on quota only", "error", err.Error())
		allowed = true
	}
	if !allowed {
		logger.CtxInfo(ctx, "admission denied by burst limiter",
			"user_id", userID,
			"retry_after", retryAfter.String(),
		)
		return &Decision{
			Allowed:   false,
			Tier:      sub.Tier,
			Unlimited: sub.Unlimited,
			Remaining: sub.Remaining(),
			ResetAt:   sub.ResetAt(),
			Reason:    DenyReasonBurst,
		}, nil
	}

	if sub.Unlimited {
		if err := s.subs.IncrementUnlimited(db, userID); err != nil {
			return nil, apperrors.InternalError(err)
		}
		return &Decision{
			Allowed:   true,
			Tier:      sub.Tier,
			Unlimited: true,
			ResetAt:   sub.ResetAt(),
		}, nil
	}

	consumed, err := s.subs.Consume(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !consumed {
		logger.CtxInfo(ctx, "admission denied by quota",
			"user_id", userID,
			"tier", string(sub.Tier),
		)
		return &Decision{
			Allowed:   false,
			Tier:      sub.Tier,
			Remaining: 0,
			ResetAt:   sub.ResetAt(),
			Reason:    DenyReasonQuota,
		}, nil
	}

	return &Decision{
		Allowed:   true,
		Tier:      sub.Tier,
		Remaining: sub.Remaining() - 1,
		ResetAt:   sub.ResetAt(),
	}, nil
}

func (s *admissionService) Refund(ctx context.Context, db *gorm.DB, userID string) error {
	if userID == "" {
		return apperrors.NewBadRequestError("user id is required")
	}

	refunded, err := s.subs.Refund(db, userID)
	if err != nil {
		return apperrors.InternalError(err)
	}
	if !refunded {
		// Nothing to give back: the interval rolled over in between, or the
		// counter was already zero.
		logger.CtxWarn(ctx, "quota refund found nothing to return", "user_id", userID)
	}
	return nil
}

func (s *admissionService) Peek(ctx context.Context, db *gorm.DB, userID string) (*Decision, error) {
	if userID == "" {
		return nil, apperrors.NewBadRequestError("user id is required")
	}

	sub, err := s.loadCurrent(db, userID, s.now())
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &Decision{
		Allowed:   sub.Unlimited || sub.Remaining() > 0,
		Tier:      sub.Tier,
		Unlimited: sub.Unlimited,
		Remaining: sub.Remaining(),
		ResetAt:   sub.ResetAt(),
	}, nil
}

func (s *admissionService) RecordUpgrade(ctx context.Context, db *gorm.DB, userID string, tier models.Tier) (*Decision, error) {
	if !models.ValidTier(tier) {
		return nil, apperrors.NewBadRequestError("unknown subscription tier")
	}

	plan := models.GetPlan(tier)
	affected, err := s.subs.Upgrade(db, userID, plan, s.now())
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if affected == 0 {
		return nil, apperrors.UnknownUser(userID)
	}

	logger.CtxInfo(ctx, "subscription upgraded",
		"user_id", userID,
		"tier", string(tier),
	)
	return s.Peek(ctx, db, userID)
}

// loadCurrent fetches the subscription, provisioning free tier on first
// contact and applying a lazy interval rollover when due. Rollover is a
// guarded update: losing the race to another request means someone else
// already reset, so the record is simply re-read.
func (s *admissionService) loadCurrent(db *gorm.DB, userID string, now time.Time) (*models.UserSubscription, error) {
	sub, err := s.subs.FindOrCreate(db, userID, now)
	if err != nil {
		return nil, err
	}

	if !sub.RolloverDue(now) {
		return sub, nil
	}

	// Walk the interval forward in whole steps so a long-dormant user lands
	// in the interval containing now, not merely the next one.
	start := sub.IntervalStart
	for !now.Before(sub.IntervalLength.Advance(start)) {
		start = sub.IntervalLength.Advance(start)
	}

	if _, err := s.subs.ResetInterval(db, userID, sub.IntervalStart, start); err != nil {
		return nil, err
	}
	return s.subs.FindByUserID(db, userID)
}
