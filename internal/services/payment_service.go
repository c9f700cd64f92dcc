package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tripwise_backend/internal/logger"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/payment"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

// UpgradeInitiation is returned when a charge has been opened with the
// gateway and awaits confirmation.
type UpgradeInitiation struct {
	InvoiceID   string      `json:"invoice_id"`
	Tier        models.Tier `json:"tier"`
	Amount      float64     `json:"amount"`
	RedirectURL string      `json:"redirect_url,omitempty"`
}

// PaymentService drives the upgrade purchase lifecycle: open a charge,
// confirm it from the gateway callback, apply the tier change.
type PaymentService interface {
	InitiateUpgrade(ctx context.Context, db *gorm.DB, userID string, tier models.Tier, method models.PaymentMethod, accountToken string) (*UpgradeInitiation, error)
	// ProcessCallback validates and applies one gateway callback. Replays of
	// an already-settled invoice are acknowledged without effect.
	ProcessCallback(ctx context.Context, db *gorm.DB, invoiceID string, amount float64, status, signature string) error
	GetHistory(ctx context.Context, db *gorm.DB, userID string) ([]models.PaymentTransaction, error)
	// ListStalePending reports transactions still pending after cutoff, for
	// operators chasing gateway callbacks that never arrived.
	ListStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]models.PaymentTransaction, error)
}

type paymentService struct {
	subs      *repositories.SubscriptionRepository
	gateway   payment.Gateway
	admission AdmissionService
	now       func() time.Time
}

func NewPaymentService(subs *repositories.SubscriptionRepository, gateway payment.Gateway, admission AdmissionService) PaymentService {
	return &paymentService{
		subs:      subs,
		gateway:   gateway,
		admission: admission,
		now:       time.Now,
	}
}

func (s *paymentService) InitiateUpgrade(ctx context.Context, db *gorm.DB, userID string, tier models.Tier, method models.PaymentMethod, accountToken string) (*UpgradeInitiation, error) {
	if !models.ValidTier(tier) || tier == models.TierFree {
		return nil, apperrors.NewBadRequestError("tier is not purchasable")
	}
	if method != models.PaymentMethodMobileMoney && method != models.PaymentMethodCard {
		return nil, apperrors.NewBadRequestError("unknown payment method")
	}

	// The user must exist before money changes hands.
	if _, err := s.subs.FindByUserID(db, userID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.UnknownUser(userID)
		}
		return nil, apperrors.InternalError(err)
	}

	plan := models.GetPlan(tier)
	invoiceID := payment.NewInvoiceID()

	tx := &models.PaymentTransaction{
		UserID: userID,
		Tier:   tier,
		Amount: plan.PriceUSD,
		Method: method,
		Status: models.PaymentStatusPending,
		InvID:  invoiceID,
	}
	if err := s.subs.CreatePayment(db, tx); err != nil {
		return nil, apperrors.InternalError(err)
	}

	result, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		InvoiceID:    invoiceID,
		UserID:       userID,
		Amount:       plan.PriceUSD,
		Method:       string(method),
		AccountToken: accountToken,
		Description:  fmt.Sprintf("Tripwise %s subscription", tier),
	})
	if err != nil {
		// Leave the transaction pending: the sweep fails it if the gateway
		// never calls back.
		logger.CtxError(ctx, "gateway charge failed",
			"user_id", userID,
			"invoice_id", invoiceID,
			"error", err.Error(),
		)
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "payment",
			"Payment could not be started. Please try again.", 502)
	}

	logger.CtxInfo(ctx, "upgrade charge opened",
		"user_id", userID,
		"invoice_id", invoiceID,
		"tier", string(tier),
	)
	return &UpgradeInitiation{
		InvoiceID:   invoiceID,
		Tier:        tier,
		Amount:      plan.PriceUSD,
		RedirectURL: result.RedirectURL,
	}, nil
}

func (s *paymentService) ProcessCallback(ctx context.Context, db *gorm.DB, invoiceID string, amount float64, status, signature string) error {
	if !s.gateway.VerifyCallback(invoiceID, amount, status, signature) {
		logger.CtxWarn(ctx, "payment callback signature mismatch", "invoice_id", invoiceID)
		return apperrors.ErrPaymentSignature
	}

	tx, err := s.subs.FindPaymentByInvID(db, invoiceID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.InternalError(err)
	}

	if amount != tx.Amount {
		logger.CtxWarn(ctx, "payment callback amount mismatch",
			"invoice_id", invoiceID,
			"expected", tx.Amount,
			"got", amount,
		)
		return apperrors.ErrPaymentAmount
	}

	if status != "paid" {
		if _, err := s.subs.UpdatePaymentStatus(db, invoiceID, models.PaymentStatusFailed, nil); err != nil {
			return apperrors.InternalError(err)
		}
		return nil
	}

	paidAt := s.now()
	settled, err := s.subs.UpdatePaymentStatus(db, invoiceID, models.PaymentStatusPaid, &paidAt)
	if err != nil {
		return apperrors.InternalError(err)
	}
	if !settled {
		// Callback replay; the upgrade already happened.
		return nil
	}

	if _, err := s.admission.RecordUpgrade(ctx, db, tx.UserID, tx.Tier); err != nil {
		return err
	}

	logger.CtxInfo(ctx, "payment settled",
		"user_id", tx.UserID,
		"invoice_id", invoiceID,
		"tier", string(tx.Tier),
	)
	return nil
}

func (s *paymentService) GetHistory(ctx context.Context, db *gorm.DB, userID string) ([]models.PaymentTransaction, error) {
	txs, err := s.subs.FindPaymentsByUser(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return txs, nil
}

func (s *paymentService) ListStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]models.PaymentTransaction, error) {
	txs, err := s.subs.FindStalePending(db, cutoff)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return txs, nil
}
