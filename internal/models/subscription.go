package models

import "time"

type PaymentStatus string
type PaymentMethod string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"

	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
)

// UserSubscription is the per-user quota record. It is the only mutable
// shared resource of the admission path and is written exclusively through
// the subscription repository. Records are never hard-deleted, only reset.
type UserSubscription struct {
	BaseModel
	UserID         string    `gorm:"not null;uniqueIndex" json:"user_id"`
	Tier           Tier      `gorm:"not null" json:"tier"`
	Quota          int       `gorm:"not null" json:"quota"`
	Unlimited      bool      `gorm:"not null;default:false" json:"unlimited"`
	Consumed       int       `gorm:"not null;default:0" json:"consumed"`
	IntervalLength Interval  `gorm:"not null" json:"interval_length"`
	IntervalStart  time.Time `gorm:"not null" json:"interval_start"`
}

// ResetAt is the instant the current interval ends and consumed rolls back
// to zero.
func (s *UserSubscription) ResetAt() time.Time {
	return s.IntervalLength.Advance(s.IntervalStart)
}

// RolloverDue reports whether the interval has elapsed at now.
func (s *UserSubscription) RolloverDue(now time.Time) bool {
	return !now.Before(s.ResetAt())
}

// Remaining is the quota left in the current interval, clamped to zero.
// Meaningless for unlimited tiers.
func (s *UserSubscription) Remaining() int {
	remaining := s.Quota - s.Consumed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PaymentTransaction records one upgrade purchase attempt against the
// external gateway.
type PaymentTransaction struct {
	BaseModel
	UserID string        `gorm:"not null;index" json:"user_id"`
	Tier   Tier          `gorm:"not null" json:"tier"`
	Amount float64       `gorm:"not null" json:"amount"`
	Method PaymentMethod `gorm:"not null" json:"method"`
	Status PaymentStatus `gorm:"not null;default:'pending'" json:"status"`
	InvID  string        `gorm:"uniqueIndex" json:"inv_id"`
	PaidAt *time.Time    `json:"paid_at,omitempty"`
}
