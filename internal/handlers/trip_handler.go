package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tripwise_backend/internal/dto"
	"tripwise_backend/internal/middleware"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

type TripHandler struct {
	*BaseHandler
	trips *repositories.TripRepository
}

func NewTripHandler(base *BaseHandler, trips *repositories.TripRepository) *TripHandler {
	return &TripHandler{
		BaseHandler: base,
		trips:       trips,
	}
}

func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup) {
	trips := r.Group("/trips")
	trips.Use(middleware.AuthMiddleware())
	{
		trips.POST("", h.SaveTrip)
		trips.GET("", h.ListTrips)
		trips.GET("/:id", h.GetTrip)
	}
}

// GetTrip returns one saved trip. Another user's trip answers 404, not 403,
// so trip IDs cannot be probed.
func (h *TripHandler) GetTrip(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	trip, err := h.trips.FindByID(h.GetDB(c), c.Param("id"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			h.HandleServiceError(c, apperrors.ErrNotFound(err))
			return
		}
		h.HandleServiceError(c, err)
		return
	}
	if trip.UserID != userID {
		h.HandleServiceError(c, apperrors.ErrNotFound(gorm.ErrRecordNotFound))
		return
	}

	c.JSON(http.StatusOK, trip)
}

// SaveTrip persists a plan the client wants to keep.
func (h *TripHandler) SaveTrip(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SaveTripRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	trip := &models.Trip{
		UserID:       userID,
		Destination:  req.Destination,
		Source:       req.Source,
		BudgetBand:   req.BudgetBand,
		GroupBand:    req.GroupBand,
		DurationDays: req.DurationDays,
		Plan:         req.Plan,
	}
	if err := trip.SetInterests(req.Interests); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	if err := h.trips.Create(h.GetDB(c), trip); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, trip)
}

func (h *TripHandler) ListTrips(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	trips, err := h.trips.FindByUser(h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": trips,
		"total": len(trips),
	})
}
