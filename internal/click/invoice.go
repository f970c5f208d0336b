// journal-payments/internal/click/invoice.go
package click

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/pkg/metrics"
)

// InvoiceClient calls the provider's merchant API to push an invoice to the
// payer's phone. The call is best-effort: when the API is down, answers
// garbage, or the phone number is unusable, the client degrades to a direct
// pay-link instead of failing the payment attempt. Availability over
// precision, and never silent (logged + counted).
type InvoiceClient struct {
	cfg     Config
	secret  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewInvoiceClient(cfg Config, secret string) *InvoiceClient {
	return &InvoiceClient{
		cfg:    cfg,
		secret: secret,
		http:   &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "click-invoice",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

type invoiceRequest struct {
	ServiceID       string  `json:"service_id"`
	Amount          float64 `json:"amount"`
	PhoneNumber     string  `json:"phone_number"`
	MerchantTransID string  `json:"merchant_trans_id"`
}

type invoiceResponse struct {
	ErrorCode int    `json:"error_code"`
	ErrorNote string `json:"error_note"`
	InvoiceID int64  `json:"invoice_id"`
}

// PayURL is what the caller hands to the payer: either the invoice checkout
// flow or the degraded direct pay-link.
type PayURL struct {
	URL       string
	InvoiceID int64
	Fallback  bool
}

// CreateInvoice issues an invoice for tx, degrading to PayLink on failure.
func (c *InvoiceClient) CreateInvoice(ctx context.Context, tx *ledger.Transaction, phone string) PayURL {
	if !validPhone(phone) {
		log.Printf("[click] invoice for %s: unusable phone %q, using pay-link", tx.ID, phone)
		metrics.IncInvoiceFallback("invalid_phone")
		return PayURL{URL: c.PayLink(tx), Fallback: true}
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.postInvoice(ctx, tx, phone)
	})
	if err != nil {
		log.Printf("[click] invoice for %s failed (%v), using pay-link", tx.ID, err)
		metrics.IncInvoiceFallback("api_error")
		return PayURL{URL: c.PayLink(tx), Fallback: true}
	}
	inv := out.(*invoiceResponse)
	return PayURL{URL: c.PayLink(tx), InvoiceID: inv.InvoiceID}
}

func (c *InvoiceClient) postInvoice(ctx context.Context, tx *ledger.Transaction, phone string) (*invoiceResponse, error) {
	amount, _ := tx.Amount.Float64()
	body, err := json.Marshal(invoiceRequest{
		ServiceID:       c.cfg.ServiceID,
		Amount:          amount,
		PhoneNumber:     phone,
		MerchantTransID: tx.ID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIBase+"/invoice/create", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth", AuthHeader(c.cfg.MerchantUserID, c.secret, time.Now()))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("malformed invoice response: %w", err)
	}
	if out.ErrorCode != 0 {
		return nil, fmt.Errorf("invoice api error %d: %s", out.ErrorCode, out.ErrorNote)
	}
	return &out, nil
}

// InvoiceStatus queries the merchant API for an issued invoice's state.
func (c *InvoiceClient) InvoiceStatus(ctx context.Context, invoiceID int64) (int, error) {
	u := fmt.Sprintf("%s/invoice/status/%s/%d", c.cfg.APIBase, c.cfg.ServiceID, invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Auth", AuthHeader(c.cfg.MerchantUserID, c.secret, time.Now()))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		ErrorCode     int    `json:"error_code"`
		ErrorNote     string `json:"error_note"`
		InvoiceStatus int    `json:"invoice_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("malformed invoice status response: %w", err)
	}
	if out.ErrorCode != 0 {
		return 0, fmt.Errorf("invoice status api error %d: %s", out.ErrorCode, out.ErrorNote)
	}
	return out.InvoiceStatus, nil
}

// PaymentStatus queries the merchant API for a settled payment's state.
func (c *InvoiceClient) PaymentStatus(ctx context.Context, paymentID string) (int, error) {
	u := fmt.Sprintf("%s/payment/status/%s/%s", c.cfg.APIBase, c.cfg.ServiceID, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Auth", AuthHeader(c.cfg.MerchantUserID, c.secret, time.Now()))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		ErrorCode     int    `json:"error_code"`
		ErrorNote     string `json:"error_note"`
		PaymentStatus int    `json:"payment_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("malformed status response: %w", err)
	}
	if out.ErrorCode != 0 {
		return 0, fmt.Errorf("status api error %d: %s", out.ErrorCode, out.ErrorNote)
	}
	return out.PaymentStatus, nil
}

// PayLink builds the direct checkout URL: service id + transaction id as
// query parameters.
func (c *InvoiceClient) PayLink(tx *ledger.Transaction) string {
	q := url.Values{}
	q.Set("service_id", c.cfg.ServiceID)
	q.Set("merchant_id", c.cfg.MerchantID)
	q.Set("amount", tx.Amount.StringFixed(2))
	q.Set("transaction_param", tx.ID)
	return "https://my.click.uz/services/pay?" + q.Encode()
}

func validPhone(phone string) bool {
	p := strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if len(p) < 9 {
		return false
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
