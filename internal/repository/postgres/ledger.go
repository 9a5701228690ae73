package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

const itemColumns = `id, title, description, starting_price, current_price, start_time, end_time, status, seller_id, high_bidder_id, created_at`

// Ledger implements repository.LedgerStore using PostgreSQL row locks.
type Ledger struct{ db *DB }

var _ repository.LedgerStore = (*Ledger)(nil)

// NewLedger constructs the auction ledger.
func NewLedger(db *DB) *Ledger { return &Ledger{db: db} }

// WithLockedItem runs fn while holding SELECT ... FOR UPDATE on the item row.
func (l *Ledger) WithLockedItem(ctx context.Context, itemID uuid.UUID, fn repository.LockedItemFunc) (err error) {
	tx, err := l.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = unavailable(e)
		}
	}()

	const sel = `SELECT ` + itemColumns + ` FROM items WHERE id=$1 FOR UPDATE`
	item, err := scanItem(tx.QueryRow(ctx, sel, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return unavailable(err)
	}
	return fn(ctx, &pgTx{tx: tx}, item)
}

// InTx runs fn inside a plain read-committed transaction.
func (l *Ledger) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := l.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = unavailable(e)
		}
	}()
	return fn(ctx, &pgTx{tx: tx})
}

// ListExpired returns Active items past their deadline.
func (l *Ledger) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const q = `
SELECT id FROM items
WHERE status='Active' AND end_time <= $1
ORDER BY end_time ASC
LIMIT $2`
	rows, err := l.db.Pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateItem inserts a new listing.
func (l *Ledger) CreateItem(ctx context.Context, it model.Item) error {
	const q = `
INSERT INTO items (id, title, description, starting_price, current_price, start_time, end_time, status, seller_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := l.db.Pool.Exec(ctx, q,
		it.ID, it.Title, it.Description, it.StartingPrice, it.CurrentPrice,
		it.StartTime, it.EndTime, string(it.Status), it.SellerID, it.CreatedAt,
	)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetItem returns a single item by id without locking it.
func (l *Ledger) GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE id=$1`
	it, err := scanItem(l.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}

// Ping checks that the pool can reach the database.
func (l *Ledger) Ping(ctx context.Context) error { return l.db.Pool.Ping(ctx) }

func scanItem(row pgx.Row) (model.Item, error) {
	var (
		it     model.Item
		status string
	)
	err := row.Scan(
		&it.ID, &it.Title, &it.Description, &it.StartingPrice, &it.CurrentPrice,
		&it.StartTime, &it.EndTime, &status, &it.SellerID, &it.HighBidderID, &it.CreatedAt,
	)
	if err != nil {
		return model.Item{}, err
	}
	it.Status = model.ItemStatus(status)
	return it, nil
}
