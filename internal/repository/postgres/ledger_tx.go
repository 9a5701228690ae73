package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

// pgTx adapts pgx.Tx to repository.Tx. Every driver error is reported as
// errs.ErrStoreUnavailable so the whole unit of work is retryable.
type pgTx struct{ tx pgx.Tx }

var _ repository.Tx = (*pgTx)(nil)

func (t *pgTx) InsertBid(ctx context.Context, b model.Bid) error {
	const q = `INSERT INTO bids (id, item_id, user_id, amount, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := t.tx.Exec(ctx, q, b.ID, b.ItemID, b.UserID, b.Amount, b.CreatedAt)
	return unavailable(err)
}

func (t *pgTx) UpdateItemPrice(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, highBidder uuid.UUID) error {
	const q = `UPDATE items SET current_price=$2, high_bidder_id=$3 WHERE id=$1`
	tag, err := t.tx.Exec(ctx, q, itemID, price, highBidder)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *pgTx) UpsertWatch(ctx context.Context, userID, itemID uuid.UUID) error {
	const q = `INSERT INTO watchlist (user_id, item_id) VALUES ($1, $2) ON CONFLICT (user_id, item_id) DO NOTHING`
	_, err := t.tx.Exec(ctx, q, userID, itemID)
	return unavailable(err)
}

// CloseItem is a compare-and-swap: the WHERE clause is re-checked against the
// latest committed row after any concurrent bid releases its lock.
func (t *pgTx) CloseItem(ctx context.Context, itemID uuid.UUID, now time.Time) (model.Item, bool, error) {
	const q = `
UPDATE items
SET status = CASE WHEN high_bidder_id IS NULL THEN 'Unsold' ELSE 'WaitingPayment' END
WHERE id=$1 AND status='Active' AND end_time <= $2
RETURNING ` + itemColumns
	it, err := scanItem(t.tx.QueryRow(ctx, q, itemID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Item{}, false, nil
		}
		return model.Item{}, false, unavailable(err)
	}
	return it, true, nil
}

func (t *pgTx) InsertNotification(ctx context.Context, n model.Notification) error {
	const q = `
INSERT INTO notifications (id, user_id, item_id, type, message, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.tx.Exec(ctx, q, n.ID, n.UserID, n.ItemID, string(n.Type), n.Message, n.IsRead, n.CreatedAt)
	return unavailable(err)
}
