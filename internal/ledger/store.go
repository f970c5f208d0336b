// journal-payments/internal/ledger/store.go
package ledger

import (
	"context"
	"time"
)

// Store is the durable record behind the ledger. Every mutating call is a
// compare-and-swap on the current status: it applies only when the row still
// matches the expected pre-state, and reports applied=false otherwise so the
// caller can re-read and return the already-applied outcome.
type Store interface {
	Insert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	GetByProviderRef(ctx context.Context, provider Provider, ref string) (*Transaction, error)

	// AttachProviderRef moves Created->Pending and stamps the provider
	// correlation fields in one step. Applies only while status=created and
	// provider_ref is unset.
	AttachProviderRef(ctx context.Context, id string, provider Provider, ref, docRef, serviceID string) (applied bool, err error)

	// SetCompleted applies Pending->Completed and stamps completed_at.
	SetCompleted(ctx context.Context, id string, at time.Time) (applied bool, err error)

	// SetFailed applies Pending->Failed.
	SetFailed(ctx context.Context, id string) (applied bool, err error)

	// SetCancelled applies {Created,Pending}->Cancelled or
	// Completed->CancelledAfterComplete depending on `to`.
	SetCancelled(ctx context.Context, id string, to Status, at time.Time, reason int) (applied bool, err error)

	// Range returns transactions created within [from, to] that carry a
	// provider_ref for the given provider, ordered by created_at.
	Range(ctx context.Context, provider Provider, from, to time.Time) ([]*Transaction, error)
}
