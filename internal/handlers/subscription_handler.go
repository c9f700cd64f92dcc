package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripwise_backend/internal/dto"
	"tripwise_backend/internal/middleware"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/services"
	"tripwise_backend/pkg/apperrors"
)

type SubscriptionHandler struct {
	*BaseHandler
	admissionService services.AdmissionService
	paymentService   services.PaymentService
}

func NewSubscriptionHandler(base *BaseHandler, admissionService services.AdmissionService, paymentService services.PaymentService) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:      base,
		admissionService: admissionService,
		paymentService:   paymentService,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(r *gin.RouterGroup) {
	// Public route - plan catalog
	r.GET("/plans", h.GetPlans)

	r.GET("/trip-limit", middleware.AuthMiddleware(), h.CheckTripLimit)

	subscriptions := r.Group("/subscriptions")
	subscriptions.Use(middleware.AuthMiddleware())
	{
		subscriptions.POST("/upgrade", h.InitiateUpgrade)
	}

	payments := r.Group("/payments")
	{
		// No auth - external gateway callback, authenticated by signature.
		payments.POST("/callback", h.ProcessCallback)
		payments.GET("/history", middleware.AuthMiddleware(), h.GetPaymentHistory)
	}

	admin := r.Group("/admin", middleware.AuthMiddleware(), middleware.RoleMiddleware(models.UserRoleAdmin))
	{
		admin.GET("/payments/pending", h.ListPendingPayments)
	}
}

func (h *SubscriptionHandler) GetPlans(c *gin.Context) {
	plans := models.ListPlans()
	c.JSON(http.StatusOK, gin.H{
		"plans": plans,
		"total": len(plans),
	})
}

// CheckTripLimit reports the quota state without consuming a unit. An
// exhausted quota answers 429 with the plan catalog so the client can show
// the upgrade prompt before the user types anything.
func (h *SubscriptionHandler) CheckTripLimit(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	decision, err := h.admissionService.Peek(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	if !decision.Allowed {
		plan := models.GetPlan(decision.Tier)
		apperrors.HandleError(c, apperrors.QuotaExceeded(&apperrors.QuotaDetails{
			Tier:       string(decision.Tier),
			Remaining:  decision.Remaining,
			ResetAt:    decision.ResetAt,
			PlanLimits: plan,
		}))
		return
	}

	c.JSON(http.StatusOK, dto.LimitResponse{
		Allowed:   decision.Allowed,
		Tier:      string(decision.Tier),
		Unlimited: decision.Unlimited,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt,
	})
}

func (h *SubscriptionHandler) InitiateUpgrade(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.UpgradeRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	initiation, err := h.paymentService.InitiateUpgrade(
		c.Request.Context(),
		h.GetDB(c),
		userID,
		models.Tier(req.Tier),
		models.PaymentMethod(req.Method),
		req.AccountToken,
	)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, initiation)
}

func (h *SubscriptionHandler) ProcessCallback(c *gin.Context) {
	var cb dto.GatewayCallback
	if !h.BindAndValidate_JSON(c, &cb) {
		return
	}

	err := h.paymentService.ProcessCallback(
		c.Request.Context(),
		h.GetDB(c),
		cb.InvoiceID,
		cb.Amount,
		cb.Status,
		cb.Signature,
	)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment processed successfully"})
}

// ListPendingPayments shows transactions stuck in pending for over an hour,
// so an operator can chase the gateway before the sweep fails them.
func (h *SubscriptionHandler) ListPendingPayments(c *gin.Context) {
	cutoff := time.Now().Add(-time.Hour)
	payments, err := h.paymentService.ListStalePending(c.Request.Context(), h.GetDB(c), cutoff)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"total":    len(payments),
	})
}

func (h *SubscriptionHandler) GetPaymentHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	payments, err := h.paymentService.GetHistory(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"total":    len(payments),
	})
}
