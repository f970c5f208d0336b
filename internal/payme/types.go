// journal-payments/internal/payme/types.go
package payme

import (
	"encoding/json"

	"github.com/example/journal-payments/internal/ledger"
)

// JSON-RPC 2.0 envelope. ID is echoed back verbatim; providers send numbers
// but JSON-RPC also allows strings.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type RPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Wire error codes. -327xx/-326xx are JSON-RPC transport codes, -31xxx are
// the provider's business codes.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeUnauthorized     = -32504
	CodeUnableToPerform  = -31008
	CodeTransNotFound    = -31050
	CodeInvalidAmount    = -31051
	CodeAlreadyCompleted = -31052
)

func rpcErr(code int, msg string) *RPCError {
	return &RPCError{Code: code, Message: msg}
}

// Provider transaction state enumeration.
const (
	StateCreated                = 1
	StateCompleted              = 2
	StateCancelled              = -1
	StateCancelledAfterComplete = -2
)

// StateOf maps internal statuses onto the provider's integer codes. Failed
// only arises on the other adapter's path; if such a row is ever read here it
// reports as cancelled.
func StateOf(tx *ledger.Transaction) int {
	switch tx.Status {
	case ledger.StatusCompleted:
		return StateCompleted
	case ledger.StatusCancelled, ledger.StatusFailed:
		return StateCancelled
	case ledger.StatusCancelledAfterComplete:
		return StateCancelledAfterComplete
	default:
		return StateCreated
	}
}

type Account struct {
	TransactionID string `json:"transaction_id"`
}

type CheckPerformParams struct {
	Amount  int64   `json:"amount"`
	Account Account `json:"account"`
}

type CheckPerformResult struct {
	Allow bool `json:"allow"`
}

type CreateParams struct {
	ID      string  `json:"id"`
	Time    int64   `json:"time"`
	Amount  int64   `json:"amount"`
	Account Account `json:"account"`
}

type CreateResult struct {
	CreateTime  int64  `json:"create_time"`
	Transaction string `json:"transaction"`
	State       int    `json:"state"`
}

type PerformParams struct {
	ID string `json:"id"`
}

type PerformResult struct {
	Transaction string `json:"transaction"`
	PerformTime int64  `json:"perform_time"`
	State       int    `json:"state"`
}

type CancelParams struct {
	ID     string `json:"id"`
	Reason int    `json:"reason"`
}

type CancelResult struct {
	Transaction string `json:"transaction"`
	CancelTime  int64  `json:"cancel_time"`
	State       int    `json:"state"`
}

type CheckParams struct {
	ID string `json:"id"`
}

type CheckResult struct {
	CreateTime  int64  `json:"create_time"`
	PerformTime int64  `json:"perform_time,omitempty"`
	CancelTime  int64  `json:"cancel_time,omitempty"`
	Transaction string `json:"transaction"`
	State       int    `json:"state"`
	Reason      *int   `json:"reason,omitempty"`
}

type StatementParams struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type StatementItem struct {
	ID          string  `json:"id"`
	Time        int64   `json:"time"`
	Amount      int64   `json:"amount"`
	Account     Account `json:"account"`
	CreateTime  int64   `json:"create_time"`
	PerformTime int64   `json:"perform_time,omitempty"`
	CancelTime  int64   `json:"cancel_time,omitempty"`
	Transaction string  `json:"transaction"`
	State       int     `json:"state"`
	Reason      *int    `json:"reason,omitempty"`
}

type StatementResult struct {
	Transactions []StatementItem `json:"transactions"`
}
