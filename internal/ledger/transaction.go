// journal-payments/internal/ledger/transaction.go
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies which adapter owns a transaction. Set at most once.
type Provider string

const (
	ProviderClick Provider = "click"
	ProviderPayme Provider = "payme"
)

// Status values are monotonic; the three *ed states at the bottom are terminal.
type Status string

const (
	StatusCreated                Status = "created"
	StatusPending                Status = "pending"
	StatusCompleted              Status = "completed"
	StatusFailed                 Status = "failed"
	StatusCancelled              Status = "cancelled"
	StatusCancelledAfterComplete Status = "cancelled_after_complete"
)

// Terminal reports whether no further transitions are defined from s.
// Completed is not terminal: it can still move to CancelledAfterComplete.
func (s Status) Terminal() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusCancelledAfterComplete:
		return true
	}
	return false
}

// Transaction is the single durable record both adapters converge on.
type Transaction struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   Status

	Provider Provider
	// ProviderRef is the provider-side transaction id. Set exactly once at
	// Prepare/Create; idempotency key for every later call from that provider.
	ProviderRef string
	// ProviderDocRef is the provider's secondary document id (click_paydoc_id).
	ProviderDocRef string
	// ProviderServiceID is the merchant/service id the Prepare call arrived
	// under. Complete omits it, so it is persisted here for secret resolution.
	ProviderServiceID string

	CreatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	// CancelReason uses the provider's reason enumeration (payme) or zero.
	CancelReason int
}

// AmountMinor returns the amount in the currency's minor unit (1 UZS = 100 tiyin).
func (t *Transaction) AmountMinor() int64 {
	return t.Amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (t *Transaction) clone() *Transaction {
	cp := *t
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	if t.CancelledAt != nil {
		v := *t.CancelledAt
		cp.CancelledAt = &v
	}
	return &cp
}
