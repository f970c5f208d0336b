// journal-payments/internal/ledger/pgstore.go
package ledger

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/journal-payments/pkg/errors"
)

// PGStore persists transactions in Postgres. Status transitions rely on
// UPDATE ... WHERE status = <expected> affected-row counts, so two concurrent
// writers can never both apply the same transition.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                  TEXT PRIMARY KEY,
	amount              NUMERIC(18,2) NOT NULL,
	currency            TEXT NOT NULL,
	status              TEXT NOT NULL,
	provider            TEXT NOT NULL DEFAULT '',
	provider_ref        TEXT NOT NULL DEFAULT '',
	provider_doc_ref    TEXT NOT NULL DEFAULT '',
	provider_service_id TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL,
	completed_at        TIMESTAMPTZ,
	cancelled_at        TIMESTAMPTZ,
	cancel_reason       INT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS transactions_provider_ref
	ON transactions (provider, provider_ref) WHERE provider_ref <> '';
CREATE INDEX IF NOT EXISTS transactions_created_at ON transactions (created_at);
`

// EnsureSchema creates the transactions table on startup if missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const txColumns = `id, amount, currency, status, provider, provider_ref,
	provider_doc_ref, provider_service_id, created_at, completed_at,
	cancelled_at, cancel_reason`

// isNoRows matches pgx's sentinel through any wrapping the driver applies.
func isNoRows(err error) bool {
	return stderrors.Is(err, pgx.ErrNoRows)
}

func scanTx(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	var amount decimal.Decimal
	var provider, status string
	err := row.Scan(&tx.ID, &amount, &tx.Currency, &status, &provider,
		&tx.ProviderRef, &tx.ProviderDocRef, &tx.ProviderServiceID,
		&tx.CreatedAt, &tx.CompletedAt, &tx.CancelledAt, &tx.CancelReason)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.Status = Status(status)
	tx.Provider = Provider(provider)
	return &tx, nil
}

func (s *PGStore) Insert(ctx context.Context, tx *Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, amount, currency, status, provider,
			provider_ref, provider_doc_ref, provider_service_id, created_at,
			completed_at, cancelled_at, cancel_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		tx.ID, tx.Amount, tx.Currency, string(tx.Status), string(tx.Provider),
		tx.ProviderRef, tx.ProviderDocRef, tx.ProviderServiceID, tx.CreatedAt,
		tx.CompletedAt, tx.CancelledAt, tx.CancelReason)
	if err != nil {
		return errors.Wrap(errors.KindInternal, "insert transaction", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id=$1`, id)
	tx, err := scanTx(row)
	if isNoRows(err) {
		return nil, errors.Newf(errors.KindNotFound, "transaction %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "get transaction", err)
	}
	return tx, nil
}

func (s *PGStore) GetByProviderRef(ctx context.Context, provider Provider, ref string) (*Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE provider=$1 AND provider_ref=$2`,
		string(provider), ref)
	tx, err := scanTx(row)
	if isNoRows(err) {
		return nil, errors.Newf(errors.KindNotFound, "no %s transaction with ref %s", provider, ref)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "get transaction by ref", err)
	}
	return tx, nil
}

func (s *PGStore) AttachProviderRef(ctx context.Context, id string, provider Provider, ref, docRef, serviceID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET status=$2, provider=$3, provider_ref=$4, provider_doc_ref=$5, provider_service_id=$6
		WHERE id=$1 AND status=$7 AND provider_ref=''`,
		id, string(StatusPending), string(provider), ref, docRef, serviceID,
		string(StatusCreated))
	if err != nil {
		return false, errors.Wrap(errors.KindInternal, "attach provider ref", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET status=$2, completed_at=$3
		WHERE id=$1 AND status=$4`,
		id, string(StatusCompleted), at, string(StatusPending))
	if err != nil {
		return false, errors.Wrap(errors.KindInternal, "set completed", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetFailed(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET status=$2
		WHERE id=$1 AND status=$3`,
		id, string(StatusFailed), string(StatusPending))
	if err != nil {
		return false, errors.Wrap(errors.KindInternal, "set failed", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetCancelled(ctx context.Context, id string, to Status, at time.Time, reason int) (bool, error) {
	var fromClause string
	switch to {
	case StatusCancelled:
		fromClause = `status IN ('created','pending')`
	case StatusCancelledAfterComplete:
		fromClause = `status = 'completed'`
	default:
		return false, errors.Newf(errors.KindInternal, "invalid cancel target %s", to)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET status=$2, cancelled_at=$3, cancel_reason=$4
		WHERE id=$1 AND `+fromClause,
		id, string(to), at, reason)
	if err != nil {
		return false, errors.Wrap(errors.KindInternal, "set cancelled", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Range(ctx context.Context, provider Provider, from, to time.Time) ([]*Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE provider=$1 AND provider_ref <> '' AND created_at BETWEEN $2 AND $3
		ORDER BY created_at`,
		string(provider), from, to)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "range transactions", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, errors.Wrap(errors.KindInternal, "scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindInternal, "range transactions", err)
	}
	return out, nil
}
