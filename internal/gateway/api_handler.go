// journal-payments/internal/gateway/api_handler.go
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/pkg/errors"
)

// Collaborator-facing transaction surface: some other component creates a
// Transaction here, hands the payer a pay URL, and later reads the terminal
// status. Everything in between is driven by provider webhooks.

type createTransactionIn struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

type transactionOut struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Provider    string `json:"provider,omitempty"`
	ProviderRef string `json:"provider_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`
}

func toTransactionOut(tx *ledger.Transaction) transactionOut {
	out := transactionOut{
		ID:          tx.ID,
		Amount:      tx.Amount.StringFixed(2),
		Currency:    tx.Currency,
		Status:      string(tx.Status),
		Provider:    string(tx.Provider),
		ProviderRef: tx.ProviderRef,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.CompletedAt != nil {
		out.CompletedAt = tx.CompletedAt.Format(time.RFC3339)
	}
	if tx.CancelledAt != nil {
		out.CancelledAt = tx.CancelledAt.Format(time.RFC3339)
	}
	return out
}

func (s *Server) createTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var in createTransactionIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_json"})
		return
	}
	amount, err := decimal.NewFromString(in.Amount.String())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_amount"})
		return
	}
	tx, err := s.ledger.Create(r.Context(), amount, in.Currency)
	if err != nil {
		if errors.KindOf(err) == errors.KindAmountMismatch {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_amount"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionOut(tx))
}

func (s *Server) getTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tx, err := s.ledger.Find(r.Context(), id)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	writeJSON(w, http.StatusOK, toTransactionOut(tx))
}

type payURLOut struct {
	Provider string `json:"provider"`
	PayURL   string `json:"pay_url"`
	Fallback bool   `json:"fallback,omitempty"`
}

// payURLHandler produces a payment URL for the chosen provider. The click
// path tries the invoice API first and may degrade to a direct pay-link.
func (s *Server) payURLHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tx, err := s.ledger.Find(r.Context(), id)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	if tx.Status != ledger.StatusCreated {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "not_payable"})
		return
	}

	switch r.URL.Query().Get("provider") {
	case "click":
		res := s.invoices.CreateInvoice(r.Context(), tx, r.URL.Query().Get("phone"))
		writeJSON(w, http.StatusOK, payURLOut{Provider: "click", PayURL: res.URL, Fallback: res.Fallback})
	case "payme":
		writeJSON(w, http.StatusOK, payURLOut{Provider: "payme", PayURL: s.payme.PayLink(tx)})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown_provider"})
	}
}
