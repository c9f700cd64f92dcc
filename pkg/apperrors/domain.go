package apperrors

import (
	"net/http"
	"time"
)

// Factories for the trip-planning domain.

// ErrNotFound converts a repository miss (e.g. gorm.ErrRecordNotFound)
// into a 404 AppError.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// QuotaDetails is attached to every quota denial so the client can render
// the reset time and an upgrade call-to-action.
type QuotaDetails struct {
	Tier       string    `json:"tier"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	PlanLimits any       `json:"plan_limits,omitempty"`
}

// QuotaExceeded is the 429 returned when either the subscription quota or
// the burst limiter denies a trip-planning request.
func QuotaExceeded(details *QuotaDetails) *AppError {
	return New(CodeQuotaExceeded, "admission",
		"You have reached your trip limit for this period. Upgrade your plan to keep planning.",
		http.StatusTooManyRequests).WithDetails(details)
}

// UnknownUser indicates an upgrade was recorded for a user that was never
// registered. This is an integration error, not a user mistake.
func UnknownUser(userID string) *AppError {
	return New(CodeUnknownUser, "admission", "No subscription record for user", http.StatusNotFound).
		WithDetails(map[string]string{"user_id": userID})
}

// UpstreamModelError hides the provider failure behind a retry-safe apology.
// The wrapped error is logged server-side only.
func UpstreamModelError(err error) *AppError {
	return Wrap(err, CodeUpstreamError, "planner",
		"Sorry, I had trouble putting that together. Please send your message again.",
		http.StatusInternalServerError)
}

var ErrInvalidCredentials = New(
	CodeInvalidCredentials,
	"auth",
	"Invalid email or password",
	http.StatusUnauthorized,
)

var ErrPaymentSignature = New(
	CodeForbidden,
	"payment",
	"Payment callback signature mismatch",
	http.StatusForbidden,
)

var ErrPaymentAmount = New(
	CodeInvalidOperation,
	"payment",
	"Payment amount does not match the invoice",
	http.StatusBadRequest,
)
