// journal-payments/pkg/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so adapter boundaries can translate it into the
// provider's native envelope without inspecting message text.
type Kind int

const (
	KindInternal Kind = iota
	KindTransport
	KindAuth
	KindNotFound
	KindAmountMismatch
	KindAlreadyTerminal
	KindUnknownMethod
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TRANSPORT"
	case KindAuth:
		return "AUTH"
	case KindNotFound:
		return "NOT_FOUND"
	case KindAmountMismatch:
		return "AMOUNT_MISMATCH"
	case KindAlreadyTerminal:
		return "ALREADY_TERMINAL"
	case KindUnknownMethod:
		return "UNKNOWN_METHOD"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &E{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &E{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the Kind of err, or KindInternal for plain errors.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
