// journal-payments/internal/click/adapter.go
package click

import (
	"context"
	"log"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/internal/secrets"
	"github.com/example/journal-payments/pkg/errors"
)

// Config is injected at construction; no package-level secret material.
type Config struct {
	MerchantID     string
	MerchantUserID string
	ServiceID      string // primary service id, used for outbound calls
	APIBase        string // e.g. https://api.click.uz/v2/merchant
	// AmountTolerance absorbs float/rounding noise in callback amounts.
	// The provider contract does not mandate a value, so it is configurable.
	AmountTolerance decimal.Decimal
}

// Adapter translates the provider's webhook protocol into ledger operations
// and back into provider-shaped envelopes. It never lets an error escape:
// every outcome is a Response with a wire code.
type Adapter struct {
	cfg      Config
	secrets  *secrets.Resolver
	ledger   *ledger.Ledger
	invoices *InvoiceClient
}

func NewAdapter(cfg Config, res *secrets.Resolver, l *ledger.Ledger, inv *InvoiceClient) *Adapter {
	if cfg.AmountTolerance.IsZero() {
		cfg.AmountTolerance = decimal.RequireFromString("0.01")
	}
	return &Adapter{cfg: cfg, secrets: res, ledger: l, invoices: inv}
}

// locate finds the transaction by internal id first, falling back to the
// provider-side ref in case the echoed merchant_trans_id is stale.
func (a *Adapter) locate(ctx context.Context, merchantTransID, clickTransID string) (*ledger.Transaction, error) {
	tx, err := a.ledger.Find(ctx, merchantTransID)
	if err == nil {
		return tx, nil
	}
	if errors.KindOf(err) != errors.KindNotFound || clickTransID == "" {
		return nil, err
	}
	return a.ledger.FindByProviderRef(ctx, ledger.ProviderClick, clickTransID)
}

// HandlePrepare verifies authenticity, then amount, then binds the provider
// ref and moves Created->Pending. Replays return the same envelope without
// re-mutating state.
func (a *Adapter) HandlePrepare(ctx context.Context, req Request) Response {
	secret, err := a.secrets.Resolve(req.ServiceID)
	if err != nil {
		log.Printf("[click] prepare: %v", err)
		return errResponse(req, CodeInvalidSign, "invalid signature")
	}
	if PrepareDigest(req, secret) != req.SignString {
		log.Printf("[click] prepare: bad signature for trans %s", req.ClickTransID)
		return errResponse(req, CodeInvalidSign, "invalid signature")
	}

	tx, err := a.locate(ctx, req.MerchantTransID, req.ClickTransID)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			return errResponse(req, CodeNotFound, "transaction not found")
		}
		log.Printf("[click] prepare: lookup %s: %v", req.MerchantTransID, err)
		return errResponse(req, CodeInternal, "internal error")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return errResponse(req, CodeInvalidAmount, "invalid amount")
	}
	if amount.Sub(tx.Amount).Abs().Cmp(a.cfg.AmountTolerance) > 0 {
		log.Printf("[click] prepare: amount %s != stored %s for %s", req.Amount, tx.Amount, tx.ID)
		return errResponse(req, CodeInvalidAmount, "invalid amount")
	}

	tx, err = a.ledger.Attach(ctx, tx.ID, ledger.ProviderClick,
		req.ClickTransID, req.ClickPaydocID, req.ServiceID)
	if err != nil {
		log.Printf("[click] prepare: attach %s: %v", req.MerchantTransID, err)
		return errResponse(req, CodeInternal, "transaction not payable")
	}

	return Response{
		ClickTransID:      req.ClickTransID,
		MerchantTransID:   req.MerchantTransID,
		MerchantPrepareID: tx.ID,
		Error:             CodeSuccess,
		ErrorNote:         "Success",
	}
}

// HandleComplete re-resolves the secret persisted at prepare time (the
// callback omits service_id) and settles or fails the transaction depending
// on the provider's embedded error code.
func (a *Adapter) HandleComplete(ctx context.Context, req Request) Response {
	tx, err := a.locate(ctx, req.MerchantTransID, req.ClickTransID)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			return errResponse(req, CodeNotFound, "transaction not found")
		}
		log.Printf("[click] complete: lookup %s: %v", req.MerchantTransID, err)
		return errResponse(req, CodeInternal, "internal error")
	}

	// No persisted service id means no prior prepare; authenticity cannot be
	// established, so reject instead of guessing a default secret.
	if tx.ProviderServiceID == "" {
		log.Printf("[click] complete: %s has no prepare on record", tx.ID)
		return errResponse(req, CodeInvalidSign, "prepare required")
	}
	secret, err := a.secrets.Resolve(tx.ProviderServiceID)
	if err != nil {
		log.Printf("[click] complete: %v", err)
		return errResponse(req, CodeInvalidSign, "invalid signature")
	}
	if CompleteDigest(req, secret) != req.SignString {
		log.Printf("[click] complete: bad signature for trans %s", req.ClickTransID)
		return errResponse(req, CodeInvalidSign, "invalid signature")
	}
	if tx.ProviderRef != req.ClickTransID {
		log.Printf("[click] complete: ref %s does not match stored %s for %s",
			req.ClickTransID, tx.ProviderRef, tx.ID)
		return errResponse(req, CodeInternal, "transaction reference mismatch")
	}

	provErr, err := strconv.Atoi(req.Error)
	if err != nil {
		return errResponse(req, CodeInternal, "invalid error code")
	}
	txID := tx.ID
	if provErr == 0 {
		tx, err = a.ledger.Complete(ctx, txID)
	} else {
		tx, err = a.ledger.Fail(ctx, txID)
	}
	if err != nil {
		log.Printf("[click] complete: transition %s: %v", txID, err)
		return errResponse(req, CodeInternal, "internal error")
	}

	switch tx.Status {
	case ledger.StatusCompleted, ledger.StatusFailed:
		// Applied now or an identical redelivery; either way acknowledge with
		// the previously-computed confirm id.
		return Response{
			ClickTransID:      req.ClickTransID,
			MerchantTransID:   req.MerchantTransID,
			MerchantConfirmID: tx.ID,
			Error:             CodeSuccess,
			ErrorNote:         "Success",
		}
	case ledger.StatusCreated:
		return errResponse(req, CodeInvalidSign, "prepare required")
	default:
		// Cancelled before the complete arrived: deterministic refusal, never
		// a confirmation of settled funds.
		return errResponse(req, CodeInternal, "transaction cancelled")
	}
}
