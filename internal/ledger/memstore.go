// journal-payments/internal/ledger/memstore.go
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/journal-payments/pkg/errors"
)

// MemStore keeps transactions in process memory behind one mutex. Good enough
// for tests and single-node dev runs; the CAS contract matches PGStore.
type MemStore struct {
	mu  sync.Mutex
	txs map[string]*Transaction
}

func NewMemStore() *MemStore {
	return &MemStore{txs: make(map[string]*Transaction)}
}

func (s *MemStore) Insert(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.ID]; ok {
		return errors.Newf(errors.KindConflict, "transaction %s already exists", tx.ID)
	}
	s.txs[tx.ID] = tx.clone()
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, errors.Newf(errors.KindNotFound, "transaction %s not found", id)
	}
	return tx.clone(), nil
}

func (s *MemStore) GetByProviderRef(ctx context.Context, provider Provider, ref string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.Provider == provider && tx.ProviderRef == ref {
			return tx.clone(), nil
		}
	}
	return nil, errors.Newf(errors.KindNotFound, "no %s transaction with ref %s", provider, ref)
}

func (s *MemStore) AttachProviderRef(ctx context.Context, id string, provider Provider, ref, docRef, serviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return false, errors.Newf(errors.KindNotFound, "transaction %s not found", id)
	}
	if tx.Status != StatusCreated || tx.ProviderRef != "" {
		return false, nil
	}
	tx.Status = StatusPending
	tx.Provider = provider
	tx.ProviderRef = ref
	tx.ProviderDocRef = docRef
	tx.ProviderServiceID = serviceID
	return true, nil
}

func (s *MemStore) SetCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return false, errors.Newf(errors.KindNotFound, "transaction %s not found", id)
	}
	if tx.Status != StatusPending {
		return false, nil
	}
	tx.Status = StatusCompleted
	tx.CompletedAt = &at
	return true, nil
}

func (s *MemStore) SetFailed(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return false, errors.Newf(errors.KindNotFound, "transaction %s not found", id)
	}
	if tx.Status != StatusPending {
		return false, nil
	}
	tx.Status = StatusFailed
	return true, nil
}

func (s *MemStore) SetCancelled(ctx context.Context, id string, to Status, at time.Time, reason int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return false, errors.Newf(errors.KindNotFound, "transaction %s not found", id)
	}
	switch to {
	case StatusCancelled:
		if tx.Status != StatusCreated && tx.Status != StatusPending {
			return false, nil
		}
	case StatusCancelledAfterComplete:
		if tx.Status != StatusCompleted {
			return false, nil
		}
	default:
		return false, errors.Newf(errors.KindInternal, "invalid cancel target %s", to)
	}
	tx.Status = to
	tx.CancelledAt = &at
	tx.CancelReason = reason
	return true, nil
}

func (s *MemStore) Range(ctx context.Context, provider Provider, from, to time.Time) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Transaction
	for _, tx := range s.txs {
		if tx.Provider != provider || tx.ProviderRef == "" {
			continue
		}
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		out = append(out, tx.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
