// journal-payments/internal/payme/adapter.go
package payme

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/pkg/errors"
)

// Config is injected at construction. Mode selects which key inbound Basic
// credentials are checked against.
type Config struct {
	MerchantID string
	LiveKey    string
	TestKey    string
	Endpoint   string // checkout base, e.g. https://checkout.paycom.uz
	TestMode   bool
}

// Adapter implements the provider's JSON-RPC merchant API on top of the
// ledger. Every method returns a typed provider error and mutates nothing on
// validation failure.
type Adapter struct {
	cfg    Config
	ledger *ledger.Ledger
}

func NewAdapter(cfg Config, l *ledger.Ledger) *Adapter {
	return &Adapter{cfg: cfg, ledger: l}
}

// Authorize checks the Basic header before any method logic runs.
func (a *Adapter) Authorize(header string) *RPCError {
	if header == "" {
		return rpcErr(CodeUnauthorized, "authorization header missing")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return rpcErr(CodeUnauthorized, "invalid authorization type")
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return rpcErr(CodeUnauthorized, "invalid authorization encoding")
	}
	id, key, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return rpcErr(CodeUnauthorized, "invalid authorization format")
	}
	expected := a.cfg.LiveKey
	if a.cfg.TestMode {
		expected = a.cfg.TestKey
	}
	if id != a.cfg.MerchantID || key != expected {
		log.Printf("[payme] rejected credentials for merchant %q", id)
		return rpcErr(CodeUnauthorized, "invalid credentials")
	}
	return nil
}

// Dispatch routes a method name to its handler. Unknown names are a typed
// error, not a panic path.
func (a *Adapter) Dispatch(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
	switch method {
	case "CheckPerformTransaction":
		return a.checkPerform(ctx, params)
	case "CreateTransaction":
		return a.createTransaction(ctx, params)
	case "PerformTransaction":
		return a.performTransaction(ctx, params)
	case "CancelTransaction":
		return a.cancelTransaction(ctx, params)
	case "CheckTransaction":
		return a.checkTransaction(ctx, params)
	case "GetStatement":
		return a.getStatement(ctx, params)
	default:
		return nil, rpcErr(CodeMethodNotFound, "method not found: "+method)
	}
}

func decodeParams[T any](raw json.RawMessage) (*T, *RPCError) {
	var p T
	if len(raw) == 0 {
		return nil, rpcErr(CodeInvalidRequest, "params missing")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErr(CodeInvalidRequest, "invalid params")
	}
	return &p, nil
}

func (a *Adapter) findByAccount(ctx context.Context, acc Account) (*ledger.Transaction, *RPCError) {
	if acc.TransactionID == "" {
		return nil, rpcErr(CodeTransNotFound, "account.transaction_id not provided")
	}
	tx, err := a.ledger.Find(ctx, acc.TransactionID)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			return nil, rpcErr(CodeTransNotFound, "transaction not found")
		}
		log.Printf("[payme] lookup %s: %v", acc.TransactionID, err)
		return nil, rpcErr(CodeUnableToPerform, "internal error")
	}
	return tx, nil
}

func (a *Adapter) findByRef(ctx context.Context, ref string) (*ledger.Transaction, *RPCError) {
	if ref == "" {
		return nil, rpcErr(CodeTransNotFound, "id not provided")
	}
	tx, err := a.ledger.FindByProviderRef(ctx, ledger.ProviderPayme, ref)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			return nil, rpcErr(CodeTransNotFound, "transaction not found")
		}
		log.Printf("[payme] lookup ref %s: %v", ref, err)
		return nil, rpcErr(CodeUnableToPerform, "internal error")
	}
	return tx, nil
}

// Amounts are integers in the currency's minor unit and must match exactly,
// unlike the tolerance-based adapter.
func checkAmount(tx *ledger.Transaction, amount int64) *RPCError {
	if expected := tx.AmountMinor(); amount != expected {
		return &RPCError{
			Code:    CodeInvalidAmount,
			Message: fmt.Sprintf("invalid amount: expected %d, got %d", expected, amount),
		}
	}
	return nil
}

func (a *Adapter) checkPerform(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	p, rerr := decodeParams[CheckPerformParams](raw)
	if rerr != nil {
		return nil, rerr
	}
	tx, rerr := a.findByAccount(ctx, p.Account)
	if rerr != nil {
		return nil, rerr
	}
	if rerr := checkAmount(tx, p.Amount); rerr != nil {
		return nil, rerr
	}
	switch tx.Status {
	case ledger.StatusCompleted, ledger.StatusCancelledAfterComplete:
		return nil, rpcErr(CodeAlreadyCompleted, "transaction already completed")
	case ledger.StatusCancelled, ledger.StatusFailed:
		return nil, rpcErr(CodeUnableToPerform, "transaction cancelled")
	}
	return &CheckPerformResult{Allow: true}, nil
}

func (a *Adapter) createTransaction(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	p, rerr := decodeParams[CreateParams](raw)
	if rerr != nil {
		return nil, rerr
	}
	if p.ID == "" {
		return nil, rpcErr(CodeTransNotFound, "id not provided")
	}
	tx, rerr := a.findByAccount(ctx, p.Account)
	if rerr != nil {
		return nil, rerr
	}
	if rerr := checkAmount(tx, p.Amount); rerr != nil {
		return nil, rerr
	}

	// Idempotent by construction: a stored matching ref replays the original
	// creation result; a differing ref is rejected, never overwritten.
	if tx.ProviderRef != "" && !(tx.Provider == ledger.ProviderPayme && tx.ProviderRef == p.ID) {
		return nil, rpcErr(CodeUnableToPerform, "transaction already taken")
	}
	tx, err := a.ledger.Attach(ctx, tx.ID, ledger.ProviderPayme, p.ID, "", a.cfg.MerchantID)
	if err != nil {
		if errors.KindOf(err) == errors.KindConflict {
			return nil, rpcErr(CodeUnableToPerform, "unable to perform operation")
		}
		log.Printf("[payme] create %s: %v", tx.ID, err)
		return nil, rpcErr(CodeUnableToPerform, "internal error")
	}
	return &CreateResult{
		CreateTime:  tx.CreatedAt.UnixMilli(),
		Transaction: tx.ID,
		State:       StateCreated,
	}, nil
}

func (a *Adapter) performTransaction(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	p, rerr := decodeParams[PerformParams](raw)
	if rerr != nil {
		return nil, rerr
	}
	tx, rerr := a.findByRef(ctx, p.ID)
	if rerr != nil {
		return nil, rerr
	}
	tx, err := a.ledger.Complete(ctx, tx.ID)
	if err != nil {
		log.Printf("[payme] perform %s: %v", p.ID, err)
		return nil, rpcErr(CodeUnableToPerform, "internal error")
	}
	if tx.Status != ledger.StatusCompleted {
		// Cancelled before (or while) the perform arrived.
		return nil, rpcErr(CodeUnableToPerform, "unable to perform operation")
	}
	// Replays return the original perform_time, not a fresh timestamp.
	return &PerformResult{
		Transaction: tx.ID,
		PerformTime: tx.CompletedAt.UnixMilli(),
		State:       StateCompleted,
	}, nil
}

func (a *Adapter) cancelTransaction(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	p, rerr := decodeParams[CancelParams](raw)
	if rerr != nil {
		return nil, rerr
	}
	tx, rerr := a.findByRef(ctx, p.ID)
	if rerr != nil {
		return nil, rerr
	}
	tx, err := a.ledger.Cancel(ctx, tx.ID, p.Reason)
	if err != nil {
		log.Printf("[payme] cancel %s: %v", p.ID, err)
		return nil, rpcErr(CodeUnableToPerform, "internal error")
	}
	var cancelTime int64
	if tx.CancelledAt != nil {
		cancelTime = tx.CancelledAt.UnixMilli()
	}
	return &CancelResult{
		Transaction: tx.ID,
		CancelTime:  cancelTime,
		State:       StateOf(tx),
	}, nil
}

func (a *Adapter) checkTransaction(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	p, rerr := decodeParams[CheckParams](raw)
	if rerr != nil {
		return nil, rerr
	}
	tx, rerr := a.findByRef(ctx, p.ID)
	if rerr != nil {
		return nil, rerr
	}
	res := &CheckResult{
		CreateTime:  tx.CreatedAt.UnixMilli(),
		Transaction: tx.ID,
		State:       StateOf(tx),
	}
	fillTimes(tx, &res.PerformTime, &res.CancelTime, &res.Reason)
	return res, nil
}

func (a *Adapter) getStatement(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	p, rerr := decodeParams[StatementParams](raw)
	if rerr != nil {
		return nil, rerr
	}
	if p.To < p.From {
		return nil, rpcErr(CodeInvalidRequest, "invalid time range")
	}
	txs, err := a.ledger.Statement(ctx, ledger.ProviderPayme, p.From, p.To)
	if err != nil {
		log.Printf("[payme] statement: %v", err)
		return nil, rpcErr(CodeUnableToPerform, "internal error")
	}
	items := make([]StatementItem, 0, len(txs))
	for _, tx := range txs {
		item := StatementItem{
			ID:          tx.ProviderRef,
			Time:        tx.CreatedAt.UnixMilli(),
			Amount:      tx.AmountMinor(),
			Account:     Account{TransactionID: tx.ID},
			CreateTime:  tx.CreatedAt.UnixMilli(),
			Transaction: tx.ID,
			State:       StateOf(tx),
		}
		fillTimes(tx, &item.PerformTime, &item.CancelTime, &item.Reason)
		items = append(items, item)
	}
	return &StatementResult{Transactions: items}, nil
}

// fillTimes emits the state-conditional fields: perform_time only when
// Completed, cancel_time and reason only in the cancelled states.
func fillTimes(tx *ledger.Transaction, performTime, cancelTime *int64, reason **int) {
	if tx.Status == ledger.StatusCompleted && tx.CompletedAt != nil {
		*performTime = tx.CompletedAt.UnixMilli()
	}
	if tx.Status == ledger.StatusCancelled || tx.Status == ledger.StatusCancelledAfterComplete {
		if tx.CancelledAt != nil {
			*cancelTime = tx.CancelledAt.UnixMilli()
		}
		r := tx.CancelReason
		*reason = &r
	}
}

// PayLink builds the hosted checkout URL for a transaction:
// {endpoint}/{base64("m=<merchant>;ac.transaction_id=<id>;a=<minor units>")}.
func (a *Adapter) PayLink(tx *ledger.Transaction) string {
	data := fmt.Sprintf("m=%s;ac.transaction_id=%s;a=%d",
		a.cfg.MerchantID, tx.ID, tx.AmountMinor())
	return a.cfg.Endpoint + "/" + base64.StdEncoding.EncodeToString([]byte(data))
}
