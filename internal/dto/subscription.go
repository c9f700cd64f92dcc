package dto

import "time"

type UpgradeRequest struct {
	Tier         string `json:"tier" validate:"required,oneof=pro premium enterprise"`
	Method       string `json:"method" validate:"required,oneof=mobile_money card"`
	AccountToken string `json:"account_token" validate:"max=200"`
}

// GatewayCallback is the payment gateway's settlement notification.
type GatewayCallback struct {
	InvoiceID string  `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required"`
	Status    string  `json:"status" validate:"required,oneof=paid failed"`
	Signature string  `json:"signature" validate:"required"`
}

// LimitResponse reports the quota state without consuming.
type LimitResponse struct {
	Allowed   bool      `json:"allowed"`
	Tier      string    `json:"tier"`
	Unlimited bool      `json:"unlimited"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
