package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tripwise_backend/internal/models"
	"tripwise_backend/internal/payment"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

const testGatewaySecret = "test-secret"

// fakeGateway signs and verifies like the real one but never leaves the
// process.
type fakeGateway struct {
	chargeErr error
	charges   []payment.ChargeRequest
}

func (g *fakeGateway) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges = append(g.charges, req)
	return &payment.ChargeResult{
		InvoiceID:   req.InvoiceID,
		RedirectURL: "https://gateway.test/pay/" + req.InvoiceID,
	}, nil
}

func (g *fakeGateway) VerifyCallback(invoiceID string, amount float64, status, signature string) bool {
	return payment.Sign(testGatewaySecret, invoiceID, amount, status) == signature
}

func newPayment(db *gorm.DB, gateway payment.Gateway) (PaymentService, AdmissionService, *repositories.SubscriptionRepository) {
	repo := repositories.NewSubscriptionRepository()
	admission := NewAdmissionService(repo, nil)
	return NewPaymentService(repo, gateway, admission), admission, repo
}

func sign(invoiceID string, amount float64, status string) string {
	return payment.Sign(testGatewaySecret, invoiceID, amount, status)
}

func TestPayment_InitiateUpgradeOpensCharge(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	gateway := &fakeGateway{}
	svc, _, repo := newPayment(db, gateway)

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	initiation, err := svc.InitiateUpgrade(context.Background(), db, "user-1", models.TierPro, models.PaymentMethodCard, "tok_123")
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, initiation.Tier)
	assert.Equal(t, 9.99, initiation.Amount)
	assert.NotEmpty(t, initiation.InvoiceID)
	assert.Contains(t, initiation.RedirectURL, initiation.InvoiceID)

	tx, err := repo.FindPaymentByInvID(db, initiation.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, tx.Status)
	assert.Equal(t, "user-1", tx.UserID)

	require.Len(t, gateway.charges, 1)
	assert.Equal(t, "tok_123", gateway.charges[0].AccountToken)
}

func TestPayment_InitiateUpgradeRejectsFreeAndUnknownTier(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, _ := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	_, err := svc.InitiateUpgrade(ctx, db, "user-1", models.TierFree, models.PaymentMethodCard, "")
	assert.Error(t, err)

	_, err = svc.InitiateUpgrade(ctx, db, "user-1", models.Tier("gold"), models.PaymentMethodCard, "")
	assert.Error(t, err)
}

func TestPayment_InitiateUpgradeUnknownUser(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, _ := newPayment(db, &fakeGateway{})

	_, err := svc.InitiateUpgrade(context.Background(), db, "ghost", models.TierPro, models.PaymentMethodCard, "")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeUnknownUser, appErr.Code)
}

func TestPayment_GatewayFailureLeavesTransactionPending(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, repo := newPayment(db, &fakeGateway{chargeErr: errors.New("gateway down")})

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	_, err := svc.InitiateUpgrade(context.Background(), db, "user-1", models.TierPro, models.PaymentMethodCard, "")
	require.Error(t, err)

	txs, err := repo.FindPaymentsByUser(db, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.PaymentStatusPending, txs[0].Status)
}

func TestPayment_PaidCallbackAppliesUpgrade(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, admission, repo := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	initiation, err := svc.InitiateUpgrade(ctx, db, "user-1", models.TierPremium, models.PaymentMethodMobileMoney, "acct")
	require.NoError(t, err)

	err = svc.ProcessCallback(ctx, db, initiation.InvoiceID, initiation.Amount, "paid",
		sign(initiation.InvoiceID, initiation.Amount, "paid"))
	require.NoError(t, err)

	tx, err := repo.FindPaymentByInvID(db, initiation.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, tx.Status)
	require.NotNil(t, tx.PaidAt)

	decision, err := admission.Peek(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, decision.Tier)
	assert.Equal(t, 40, decision.Remaining)
}

func TestPayment_CallbackReplayIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, admission, _ := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	initiation, err := svc.InitiateUpgrade(ctx, db, "user-1", models.TierPro, models.PaymentMethodCard, "")
	require.NoError(t, err)

	signature := sign(initiation.InvoiceID, initiation.Amount, "paid")
	require.NoError(t, svc.ProcessCallback(ctx, db, initiation.InvoiceID, initiation.Amount, "paid", signature))

	// Spend some quota, then replay the callback: the replay must not
	// reset the interval again.
	_, err = admission.CheckAndConsume(ctx, db, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.ProcessCallback(ctx, db, initiation.InvoiceID, initiation.Amount, "paid", signature))

	decision, err := admission.Peek(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 9, decision.Remaining, "replay must not re-grant quota")
}

func TestPayment_CallbackSignatureMismatch(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, repo := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	initiation, err := svc.InitiateUpgrade(ctx, db, "user-1", models.TierPro, models.PaymentMethodCard, "")
	require.NoError(t, err)

	err = svc.ProcessCallback(ctx, db, initiation.InvoiceID, initiation.Amount, "paid", "forged")
	assert.ErrorIs(t, err, apperrors.ErrPaymentSignature)

	tx, err := repo.FindPaymentByInvID(db, initiation.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, tx.Status)
}

func TestPayment_CallbackAmountMismatch(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, _ := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	initiation, err := svc.InitiateUpgrade(ctx, db, "user-1", models.TierPro, models.PaymentMethodCard, "")
	require.NoError(t, err)

	// Signature valid for the wrong amount.
	err = svc.ProcessCallback(ctx, db, initiation.InvoiceID, 0.01, "paid",
		sign(initiation.InvoiceID, 0.01, "paid"))
	assert.ErrorIs(t, err, apperrors.ErrPaymentAmount)
}

func TestPayment_FailedCallbackMarksTransaction(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, admission, repo := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	initiation, err := svc.InitiateUpgrade(ctx, db, "user-1", models.TierPro, models.PaymentMethodCard, "")
	require.NoError(t, err)

	err = svc.ProcessCallback(ctx, db, initiation.InvoiceID, initiation.Amount, "failed",
		sign(initiation.InvoiceID, initiation.Amount, "failed"))
	require.NoError(t, err)

	tx, err := repo.FindPaymentByInvID(db, initiation.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, tx.Status)

	decision, err := admission.Peek(ctx, db, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, decision.Tier, "failed payment must not upgrade")
}

func TestPayment_CallbackUnknownInvoice(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, _ := newPayment(db, &fakeGateway{})

	err := svc.ProcessCallback(context.Background(), db, "no-such-invoice", 9.99, "paid",
		sign("no-such-invoice", 9.99, "paid"))
	assert.Error(t, err)
}

func TestPayment_HistoryNewestFirst(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc, _, repo := newPayment(db, &fakeGateway{})
	ctx := context.Background()

	seedSubscription(t, db, "user-1", models.TierFree, time.Now())

	// Two direct inserts with distinct timestamps.
	older := &models.PaymentTransaction{UserID: "user-1", Tier: models.TierPro, Amount: 9.99, Method: models.PaymentMethodCard, InvID: "inv-old"}
	require.NoError(t, repo.CreatePayment(db, older))
	require.NoError(t, db.Model(older).Update("created_at", time.Now().Add(-time.Hour)).Error)

	newer := &models.PaymentTransaction{UserID: "user-1", Tier: models.TierPremium, Amount: 24.99, Method: models.PaymentMethodCard, InvID: "inv-new"}
	require.NoError(t, repo.CreatePayment(db, newer))

	history, err := svc.GetHistory(ctx, db, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "inv-new", history[0].InvID)
	assert.Equal(t, "inv-old", history[1].InvID)
}
