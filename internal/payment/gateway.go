// Package payment integrates the external charge gateway used for
// subscription upgrades.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ChargeRequest describes one upgrade purchase sent to the gateway.
type ChargeRequest struct {
	InvoiceID    string  `json:"invoice_id"`
	UserID       string  `json:"user_id"`
	Amount       float64 `json:"amount"`
	Method       string  `json:"method"`
	AccountToken string  `json:"account_token"`
	Description  string  `json:"description"`
}

// ChargeResult is the gateway's acknowledgement. RedirectURL is set for
// methods that need user interaction (card 3DS pages).
type ChargeResult struct {
	InvoiceID   string `json:"invoice_id"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Gateway is the external payment dependency. Tests substitute a fake.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// VerifyCallback checks the HMAC signature of a gateway callback.
	VerifyCallback(invoiceID string, amount float64, status, signature string) bool
}

// HTTPGateway talks to the real gateway over HTTPS and signs callbacks with
// a shared secret.
type HTTPGateway struct {
	url    string
	secret string
	client *http.Client
}

func NewHTTPGateway(url, secret string) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// NewInvoiceID mints the identifier both sides use to correlate a charge
// with its callback.
func NewInvoiceID() string {
	return uuid.NewString()
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode charge: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("charge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("charge request: gateway status %d", resp.StatusCode)
	}

	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode charge result: %w", err)
	}
	if result.InvoiceID == "" {
		result.InvoiceID = req.InvoiceID
	}
	return &result, nil
}

// Sign computes the callback signature for an invoice. Exposed so tests can
// produce valid callbacks.
func Sign(secret, invoiceID string, amount float64, status string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(invoiceID))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatFloat(amount, 'f', 2, 64)))
	mac.Write([]byte(":"))
	mac.Write([]byte(status))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *HTTPGateway) VerifyCallback(invoiceID string, amount float64, status, signature string) bool {
	expected := Sign(g.secret, invoiceID, amount, status)
	return hmac.Equal([]byte(expected), []byte(signature))
}
