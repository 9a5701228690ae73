package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

const (
	lockItemSQL  = `SELECT id, title, description, starting_price, current_price, start_time, end_time, status, seller_id, high_bidder_id, created_at FROM items WHERE id=\$1 FOR UPDATE`
	closeItemSQL = `UPDATE items SET status = CASE WHEN high_bidder_id IS NULL THEN 'Unsold' ELSE 'WaitingPayment' END WHERE id=\$1 AND status='Active' AND end_time <= \$2 RETURNING`
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var itemCols = []string{
	"id", "title", "description", "starting_price", "current_price",
	"start_time", "end_time", "status", "seller_id", "high_bidder_id", "created_at",
}

func itemRow(it model.Item) *pgxmock.Rows {
	var bidder any
	if it.HighBidderID != nil {
		bidder = it.HighBidderID
	}
	return pgxmock.NewRows(itemCols).AddRow(
		it.ID, it.Title, it.Description, it.StartingPrice, it.CurrentPrice,
		it.StartTime, it.EndTime, string(it.Status), it.SellerID, bidder, it.CreatedAt,
	)
}

func activeItem(end time.Time) model.Item {
	return model.Item{
		ID:            uuid.Must(uuid.NewV4()),
		Title:         "Lamp",
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		StartTime:     end.Add(-time.Hour),
		EndTime:       end,
		Status:        model.StatusActive,
		SellerID:      uuid.Must(uuid.NewV4()),
		CreatedAt:     end.Add(-time.Hour),
	}
}

func TestLedger_WithLockedItem_AppliesBid(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)

	ctx := context.Background()
	it := activeItem(time.Now().Add(time.Hour))
	bidder := uuid.Must(uuid.NewV4())
	amount := decimal.NewFromInt(150)
	bid := model.Bid{ID: uuid.Must(uuid.NewV4()), ItemID: it.ID, UserID: bidder, Amount: amount, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(lockItemSQL).WithArgs(it.ID).WillReturnRows(itemRow(it))
	mock.ExpectExec(`INSERT INTO bids \(id, item_id, user_id, amount, created_at\) VALUES`).
		WithArgs(bid.ID, it.ID, bidder, amount, bid.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE items SET current_price=\$2, high_bidder_id=\$3 WHERE id=\$1`).
		WithArgs(it.ID, amount, bidder).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO watchlist \(user_id, item_id\) VALUES \(\$1, \$2\) ON CONFLICT`).
		WithArgs(bidder, it.ID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var seen model.Item
	err := l.WithLockedItem(ctx, it.ID, func(ctx context.Context, tx repository.Tx, item model.Item) error {
		seen = item
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}
		if err := tx.UpdateItemPrice(ctx, item.ID, amount, bidder); err != nil {
			return err
		}
		return tx.UpsertWatch(ctx, bidder, item.ID)
	})
	require.NoError(t, err)
	require.Equal(t, it.ID, seen.ID)
	require.Equal(t, model.StatusActive, seen.Status)
	require.Nil(t, seen.HighBidderID)
	require.True(t, seen.CurrentPrice.Equal(decimal.NewFromInt(100)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_WithLockedItem_ScansHighBidder(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)

	it := activeItem(time.Now().Add(time.Hour))
	prev := uuid.Must(uuid.NewV4())
	it.HighBidderID = &prev
	it.CurrentPrice = decimal.NewFromInt(120)

	mock.ExpectBegin()
	mock.ExpectQuery(lockItemSQL).WithArgs(it.ID).WillReturnRows(itemRow(it))
	mock.ExpectCommit()

	err := l.WithLockedItem(context.Background(), it.ID, func(_ context.Context, _ repository.Tx, item model.Item) error {
		require.NotNil(t, item.HighBidderID)
		require.Equal(t, prev, *item.HighBidderID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_WithLockedItem_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(lockItemSQL).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := l.WithLockedItem(context.Background(), id, func(context.Context, repository.Tx, model.Item) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_WithLockedItem_CallbackErrorRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)
	it := activeItem(time.Now().Add(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(lockItemSQL).WithArgs(it.ID).WillReturnRows(itemRow(it))
	mock.ExpectRollback()

	err := l.WithLockedItem(context.Background(), it.ID, func(context.Context, repository.Tx, model.Item) error {
		return errs.ErrBidTooLow
	})
	require.ErrorIs(t, err, errs.ErrBidTooLow)
	require.False(t, errors.Is(err, errs.ErrStoreUnavailable))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_WithLockedItem_StoreFailures(t *testing.T) {
	it := activeItem(time.Now().Add(time.Hour))
	noop := func(context.Context, repository.Tx, model.Item) error { return nil }

	t.Run("begin", func(t *testing.T) {
		db, mock := newDB(t)
		defer mock.Close()
		mock.ExpectBegin().WillReturnError(errors.New("conn refused"))

		err := NewLedger(db).WithLockedItem(context.Background(), it.ID, noop)
		require.ErrorIs(t, err, errs.ErrStoreUnavailable)
	})

	t.Run("lock timeout", func(t *testing.T) {
		db, mock := newDB(t)
		defer mock.Close()
		mock.ExpectBegin()
		mock.ExpectQuery(lockItemSQL).WithArgs(it.ID).WillReturnError(&pgconn.PgError{Code: "55P03"})
		mock.ExpectRollback()

		err := NewLedger(db).WithLockedItem(context.Background(), it.ID, noop)
		require.ErrorIs(t, err, errs.ErrStoreUnavailable)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit", func(t *testing.T) {
		db, mock := newDB(t)
		defer mock.Close()
		mock.ExpectBegin()
		mock.ExpectQuery(lockItemSQL).WithArgs(it.ID).WillReturnRows(itemRow(it))
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err := NewLedger(db).WithLockedItem(context.Background(), it.ID, noop)
		require.ErrorIs(t, err, errs.ErrStoreUnavailable)
	})

	t.Run("insert", func(t *testing.T) {
		db, mock := newDB(t)
		defer mock.Close()
		mock.ExpectBegin()
		mock.ExpectQuery(lockItemSQL).WithArgs(it.ID).WillReturnRows(itemRow(it))
		mock.ExpectExec(`INSERT INTO bids`).
			WithArgs(pgxmock.AnyArg(), it.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := NewLedger(db).WithLockedItem(context.Background(), it.ID,
			func(ctx context.Context, tx repository.Tx, item model.Item) error {
				return tx.InsertBid(ctx, model.Bid{ID: uuid.Must(uuid.NewV4()), ItemID: item.ID, Amount: decimal.NewFromInt(1)})
			})
		require.ErrorIs(t, err, errs.ErrStoreUnavailable)
		require.ErrorContains(t, err, "disk full")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_CloseItem_WithWinner(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)

	now := time.Now()
	it := activeItem(now.Add(-time.Second))
	winner := uuid.Must(uuid.NewV4())
	closedRow := it
	closedRow.Status = model.StatusWaitingPayment
	closedRow.HighBidderID = &winner
	closedRow.CurrentPrice = decimal.NewFromInt(160)

	mock.ExpectBegin()
	mock.ExpectQuery(closeItemSQL).WithArgs(it.ID, now).WillReturnRows(itemRow(closedRow))
	mock.ExpectExec(`INSERT INTO notifications \(id, user_id, item_id, type, message, is_read, created_at\) VALUES`).
		WithArgs(pgxmock.AnyArg(), winner, pgxmock.AnyArg(), "AuctionWon", pgxmock.AnyArg(), false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := l.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		got, closed, err := tx.CloseItem(ctx, it.ID, now)
		require.NoError(t, err)
		require.True(t, closed)
		require.Equal(t, model.StatusWaitingPayment, got.Status)
		require.Equal(t, winner, *got.HighBidderID)
		itemID := got.ID
		return tx.InsertNotification(ctx, model.Notification{
			ID:        uuid.Must(uuid.NewV4()),
			UserID:    winner,
			ItemID:    &itemID,
			Type:      model.NotifyAuctionWon,
			Message:   "won",
			CreatedAt: now,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CloseItem_AlreadyClosedIsNoop(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)

	now := time.Now()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(closeItemSQL).WithArgs(id, now).WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	err := l.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, closed, err := tx.CloseItem(ctx, id, now)
		require.NoError(t, err)
		require.False(t, closed)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_ListExpired(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)

	now := time.Now()
	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`SELECT id FROM items WHERE status='Active' AND end_time <= \$1 ORDER BY end_time ASC LIMIT \$2`).
		WithArgs(now, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(a).AddRow(b))

	ids, err := l.ListExpired(context.Background(), now, 50)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a, b}, ids)

	mock.ExpectQuery(`SELECT id FROM items`).WithArgs(now, 50).WillReturnError(errors.New("q-fail"))
	_, err = l.ListExpired(context.Background(), now, 50)
	require.Error(t, err)
}

func TestLedger_CreateItem_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)
	it := activeItem(time.Now().Add(time.Hour))

	mock.ExpectExec(`INSERT INTO items \(id, title, description, starting_price, current_price, start_time, end_time, status, seller_id, created_at\)`).
		WithArgs(it.ID, it.Title, it.Description, it.StartingPrice, it.CurrentPrice, it.StartTime, it.EndTime, "Active", it.SellerID, it.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.CreateItem(context.Background(), it))

	mock.ExpectExec(`INSERT INTO items`).
		WithArgs(it.ID, it.Title, it.Description, it.StartingPrice, it.CurrentPrice, it.StartTime, it.EndTime, "Active", it.SellerID, it.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, l.CreateItem(context.Background(), it), errs.ErrAlreadyExists)
}

func TestLedger_GetItem(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	l := NewLedger(db)
	it := activeItem(time.Now().Add(time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM items WHERE id=\$1`).WithArgs(it.ID).WillReturnRows(itemRow(it))
	got, err := l.GetItem(context.Background(), it.ID)
	require.NoError(t, err)
	require.Equal(t, it.Title, got.Title)
	require.Equal(t, it.SellerID, got.SellerID)

	mock.ExpectQuery(`SELECT .+ FROM items WHERE id=\$1`).WithArgs(it.ID).WillReturnError(pgx.ErrNoRows)
	_, err = l.GetItem(context.Background(), it.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
