package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tripwise_backend/internal/logger"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/repositories"
)

// SubscriptionWorker sweeps subscription state in the background. Quota
// rollover is already lazy on the request path; the sweep keeps dormant
// accounts fresh so limit reads stay accurate, and fails payments the
// gateway never confirmed.
type SubscriptionWorker struct {
	db   *gorm.DB
	subs *repositories.SubscriptionRepository
}

func NewSubscriptionWorker(db *gorm.DB, subs *repositories.SubscriptionRepository) *SubscriptionWorker {
	return &SubscriptionWorker{db: db, subs: subs}
}

func (w *SubscriptionWorker) Start(ctx context.Context) {
	go w.rolloverSweep(ctx)
	go w.failStalePayments(ctx)
}

func (w *SubscriptionWorker) rolloverSweep(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("subscription worker stopped")
			return
		case <-ticker.C:
			w.sweepRollovers()
		}
	}
}

func (w *SubscriptionWorker) sweepRollovers() {
	now := time.Now()
	due, err := w.subs.FindRolloverDue(w.db, now, 500)
	if err != nil {
		logger.WorkerLog("subscription", "find rollover due", err)
		return
	}

	reset := 0
	for _, sub := range due {
		start := sub.IntervalStart
		for !now.Before(sub.IntervalLength.Advance(start)) {
			start = sub.IntervalLength.Advance(start)
		}

		ok, err := w.subs.ResetInterval(w.db, sub.UserID, sub.IntervalStart, start)
		if err != nil {
			logger.WorkerLog("subscription", "reset interval", err)
			continue
		}
		if ok {
			reset++
		}
	}

	if reset > 0 {
		logger.Info("interval rollover sweep completed", "reset", reset)
	}
}

func (w *SubscriptionWorker) failStalePayments(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-24 * time.Hour)
			stale, err := w.subs.FindStalePending(w.db, cutoff)
			if err != nil {
				logger.WorkerLog("subscription", "find stale payments", err)
				continue
			}

			for _, tx := range stale {
				if _, err := w.subs.UpdatePaymentStatus(w.db, tx.InvID, models.PaymentStatusFailed, nil); err != nil {
					logger.WorkerLog("subscription", "fail stale payment", err)
				}
			}

			if len(stale) > 0 {
				logger.Info("stale pending payments failed", "count", len(stale))
			}
		}
	}
}
