// journal-payments/internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/journal-payments/internal/ledger"
)

// Bus publishes settled/terminal transaction transitions for downstream
// consumers (notifications, accounting). Delivery is best-effort: a broker
// outage must never fail the webhook that triggered the transition.
type Bus struct {
	writer *kafka.Writer
}

func New(brokers []string, topic string) *Bus {
	return &Bus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 2 * time.Second,
		},
	}
}

func (b *Bus) Close() error { return b.writer.Close() }

type transitionEvent struct {
	TransactionID string `json:"transaction_id"`
	Provider      string `json:"provider"`
	ProviderRef   string `json:"provider_ref"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CompletedAt   int64  `json:"completed_at,omitempty"`
	CancelledAt   int64  `json:"cancelled_at,omitempty"`
	OccurredAt    int64  `json:"occurred_at"`
}

func (b *Bus) PublishTransition(ctx context.Context, tx *ledger.Transaction) {
	ev := transitionEvent{
		TransactionID: tx.ID,
		Provider:      string(tx.Provider),
		ProviderRef:   tx.ProviderRef,
		Status:        string(tx.Status),
		Amount:        tx.Amount.StringFixed(2),
		Currency:      tx.Currency,
		OccurredAt:    time.Now().UTC().UnixMilli(),
	}
	if tx.CompletedAt != nil {
		ev.CompletedAt = tx.CompletedAt.UnixMilli()
	}
	if tx.CancelledAt != nil {
		ev.CancelledAt = tx.CancelledAt.UnixMilli()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[events] marshal %s: %v", tx.ID, err)
		return
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tx.ID),
		Value: payload,
		Time:  time.Now(),
	}); err != nil {
		log.Printf("[events] publish %s: %v", tx.ID, err)
	}
}
