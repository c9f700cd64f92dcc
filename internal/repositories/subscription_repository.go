package repositories

import (
	"time"

	"gorm.io/gorm"

	"tripwise_backend/internal/models"
)

// SubscriptionRepository owns all writes to user subscription and payment
// records. Quota mutations go through guarded single-statement updates so
// concurrent requests cannot overspend, on any backing database.
type SubscriptionRepository struct{}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{}
}

// FindByUserID returns the subscription for a user, or
// gorm.ErrRecordNotFound.
func (r *SubscriptionRepository) FindByUserID(db *gorm.DB, userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	if err := db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindOrCreate returns the user's subscription, provisioning a free-tier
// record on first contact. A concurrent insert of the same user is resolved
// by re-reading after a unique-index conflict.
func (r *SubscriptionRepository) FindOrCreate(db *gorm.DB, userID string, now time.Time) (*models.UserSubscription, error) {
	sub, err := r.FindByUserID(db, userID)
	if err == nil {
		return sub, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	plan := models.GetPlan(models.TierFree)
	fresh := &models.UserSubscription{
		UserID:         userID,
		Tier:           plan.Tier,
		Quota:          plan.Quota,
		Unlimited:      plan.Unlimited,
		Consumed:       0,
		IntervalLength: plan.Interval,
		IntervalStart:  now,
	}

	if err := db.Create(fresh).Error; err != nil {
		// Lost the race to another request for the same user.
		return r.FindByUserID(db, userID)
	}
	return fresh, nil
}

// Consume spends one unit of quota atomically. The guarded update succeeds
// only while consumed is still below quota, so N concurrent calls against
// one remaining unit admit exactly one.
func (r *SubscriptionRepository) Consume(db *gorm.DB, userID string) (bool, error) {
	result := db.Model(&models.UserSubscription{}).
		Where("user_id = ? AND consumed < quota", userID).
		Update("consumed", gorm.Expr("consumed + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Refund returns one quota unit after an admitted request failed before any
// conversation state was written. Guarded so a stray refund can never push
// consumed below zero.
func (r *SubscriptionRepository) Refund(db *gorm.DB, userID string) (bool, error) {
	result := db.Model(&models.UserSubscription{}).
		Where("user_id = ? AND consumed > 0", userID).
		Update("consumed", gorm.Expr("consumed - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementUnlimited bumps the usage counter for unlimited tiers. The count
// is bookkeeping only and never gates admission.
func (r *SubscriptionRepository) IncrementUnlimited(db *gorm.DB, userID string) error {
	return db.Model(&models.UserSubscription{}).
		Where("user_id = ?", userID).
		Update("consumed", gorm.Expr("consumed + 1")).Error
}

// ResetInterval rolls the subscription into a new interval starting at
// start. The update is guarded on the old interval start so two requests
// observing the same elapsed interval reset it once.
func (r *SubscriptionRepository) ResetInterval(db *gorm.DB, userID string, oldStart, start time.Time) (bool, error) {
	result := db.Model(&models.UserSubscription{}).
		Where("user_id = ? AND interval_start = ?", userID, oldStart).
		Updates(map[string]interface{}{
			"consumed":       0,
			"interval_start": start,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Upgrade replaces the subscription's plan and opens a fresh interval. The
// consumed counter starts over: an upgrade is a new grant, not a top-up.
func (r *SubscriptionRepository) Upgrade(db *gorm.DB, userID string, plan models.PlanSpec, now time.Time) (int64, error) {
	result := db.Model(&models.UserSubscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"tier":            plan.Tier,
			"quota":           plan.Quota,
			"unlimited":       plan.Unlimited,
			"consumed":        0,
			"interval_length": plan.Interval,
			"interval_start":  now,
		})
	return result.RowsAffected, result.Error
}

// FindRolloverDue lists subscriptions whose interval elapsed before cutoff,
// for the background sweep. The comparison runs in Go because interval
// length is calendar arithmetic, not a fixed duration.
func (r *SubscriptionRepository) FindRolloverDue(db *gorm.DB, cutoff time.Time, limit int) ([]models.UserSubscription, error) {
	var subs []models.UserSubscription
	err := db.Where("interval_start < ?", cutoff).
		Order("interval_start ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}

	due := subs[:0]
	for _, sub := range subs {
		if sub.RolloverDue(cutoff) {
			due = append(due, sub)
		}
	}
	return due, nil
}

// CreatePayment records a pending upgrade purchase.
func (r *SubscriptionRepository) CreatePayment(db *gorm.DB, tx *models.PaymentTransaction) error {
	return db.Create(tx).Error
}

// FindPaymentByInvID resolves a gateway callback to its transaction.
func (r *SubscriptionRepository) FindPaymentByInvID(db *gorm.DB, invID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := db.Where("inv_id = ?", invID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// UpdatePaymentStatus transitions a transaction out of pending. The guard
// makes callback replays idempotent.
func (r *SubscriptionRepository) UpdatePaymentStatus(db *gorm.DB, invID string, status models.PaymentStatus, paidAt *time.Time) (bool, error) {
	result := db.Model(&models.PaymentTransaction{}).
		Where("inv_id = ? AND status = ?", invID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":  status,
			"paid_at": paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindPaymentsByUser lists a user's purchase history, newest first.
func (r *SubscriptionRepository) FindPaymentsByUser(db *gorm.DB, userID string) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txs).Error
	return txs, err
}

// FindStalePending lists pending payments older than cutoff, for the sweep
// to mark failed.
func (r *SubscriptionRepository) FindStalePending(db *gorm.DB, cutoff time.Time) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := db.Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Find(&txs).Error
	return txs, err
}
