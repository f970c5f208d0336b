// journal-payments/internal/ledger/ledger.go
package ledger

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/journal-payments/pkg/errors"
	"github.com/example/journal-payments/pkg/metrics"
)

// Publisher receives transactions that just reached a settled or terminal
// state. Implementations must not block the webhook path for long.
type Publisher interface {
	PublishTransition(ctx context.Context, tx *Transaction)
}

// NoopPublisher is used when no event bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransition(context.Context, *Transaction) {}

// Ledger owns the transaction state machine. Mutations go through the store's
// compare-and-swap operations; when a CAS loses (replay or concurrent caller),
// the methods return the already-applied row instead of an error, so adapters
// can answer redeliveries with the original outcome.
type Ledger struct {
	store Store
	pub   Publisher
}

func New(store Store, pub Publisher) *Ledger {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &Ledger{store: store, pub: pub}
}

// Create inserts a fresh Created transaction. Called by the collaborator API,
// never by a provider webhook.
func (l *Ledger) Create(ctx context.Context, amount decimal.Decimal, currency string) (*Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, errors.New(errors.KindAmountMismatch, "amount must be positive")
	}
	if currency == "" {
		currency = "UZS"
	}
	tx := &Transaction{
		ID:        uuid.NewString(),
		Amount:    amount,
		Currency:  currency,
		Status:    StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *Ledger) Find(ctx context.Context, id string) (*Transaction, error) {
	return l.store.Get(ctx, id)
}

func (l *Ledger) FindByProviderRef(ctx context.Context, provider Provider, ref string) (*Transaction, error) {
	return l.store.GetByProviderRef(ctx, provider, ref)
}

// Attach records the provider's transaction id and moves Created->Pending.
// Replaying with the ref already stored returns the existing row unchanged; a
// differing ref for the same transaction is a protocol violation.
func (l *Ledger) Attach(ctx context.Context, id string, provider Provider, ref, docRef, serviceID string) (*Transaction, error) {
	tx, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.ProviderRef != "" {
		if tx.Provider == provider && tx.ProviderRef == ref {
			return tx, nil // idempotent replay
		}
		return nil, errors.Newf(errors.KindConflict,
			"transaction %s already bound to %s ref %s", id, tx.Provider, tx.ProviderRef)
	}
	if tx.Status != StatusCreated {
		return nil, errors.Newf(errors.KindConflict,
			"transaction %s is %s, not payable", id, tx.Status)
	}

	applied, err := l.store.AttachProviderRef(ctx, id, provider, ref, docRef, serviceID)
	if err != nil {
		return nil, err
	}
	tx, err = l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncTransition(string(provider), string(StatusPending))
		return tx, nil
	}
	// Lost a race: someone attached first. Same ref means redelivery, fine.
	if tx.Provider == provider && tx.ProviderRef == ref {
		return tx, nil
	}
	return nil, errors.Newf(errors.KindConflict,
		"transaction %s already bound to %s ref %s", id, tx.Provider, tx.ProviderRef)
}

// Complete moves Pending->Completed. If the transaction is already past
// Pending the current row is returned untouched; the caller shapes the reply
// from its status (Completed -> original completed_at, terminal -> terminal
// outcome). Exactly one concurrent caller ever applies the transition.
func (l *Ledger) Complete(ctx context.Context, id string) (*Transaction, error) {
	applied, err := l.store.SetCompleted(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	tx, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncTransition(string(tx.Provider), string(StatusCompleted))
		l.pub.PublishTransition(ctx, tx)
	}
	return tx, nil
}

// Fail moves Pending->Failed; same replay contract as Complete.
func (l *Ledger) Fail(ctx context.Context, id string) (*Transaction, error) {
	applied, err := l.store.SetFailed(ctx, id)
	if err != nil {
		return nil, err
	}
	tx, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncTransition(string(tx.Provider), string(StatusFailed))
		l.pub.PublishTransition(ctx, tx)
	}
	return tx, nil
}

// Cancel is always accepted and always idempotent. Whether the transaction
// had settled decides the target state: Completed funds were moved, so the
// distinction CancelledAfterComplete is preserved.
func (l *Ledger) Cancel(ctx context.Context, id string, reason int) (*Transaction, error) {
	for attempt := 0; attempt < 2; attempt++ {
		tx, err := l.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if tx.Status.Terminal() {
			return tx, nil // previously-computed outcome
		}
		target := StatusCancelled
		if tx.Status == StatusCompleted {
			target = StatusCancelledAfterComplete
		}
		applied, err := l.store.SetCancelled(ctx, id, target, time.Now().UTC(), reason)
		if err != nil {
			return nil, err
		}
		if applied {
			tx, err = l.store.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			metrics.IncTransition(string(tx.Provider), string(target))
			l.pub.PublishTransition(ctx, tx)
			return tx, nil
		}
		// Status moved under us (e.g. Pending->Completed mid-cancel); re-read
		// once and cancel from the new state.
		log.Printf("[ledger] cancel race on %s, retrying", id)
	}
	return nil, errors.Newf(errors.KindInternal, "cancel %s: transition kept racing", id)
}

// Statement lists provider-bound transactions created within the millisecond
// epoch bounds [fromMs, toMs].
func (l *Ledger) Statement(ctx context.Context, provider Provider, fromMs, toMs int64) ([]*Transaction, error) {
	from := time.UnixMilli(fromMs).UTC()
	to := time.UnixMilli(toMs).UTC()
	return l.store.Range(ctx, provider, from, to)
}
