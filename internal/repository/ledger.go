// Package repository declares storage contracts used by the auction services.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/bidhouse/internal/model"
)

// Tx is a unit of work handed to LedgerStore callbacks. Writes become visible
// atomically when the callback returns nil and are discarded otherwise.
type Tx interface {
	// InsertBid appends an accepted bid.
	InsertBid(ctx context.Context, b model.Bid) error

	// UpdateItemPrice moves the cached price projection to the new high bid.
	UpdateItemPrice(ctx context.Context, itemID uuid.UUID, price decimal.Decimal, highBidder uuid.UUID) error

	// UpsertWatch adds the (user, item) watch pair if missing.
	UpsertWatch(ctx context.Context, userID, itemID uuid.UUID) error

	// CloseItem atomically moves an Active item whose deadline is <= now to
	// WaitingPayment (has a bidder) or Unsold (no bidder). closed is false when
	// the item was already closed or its deadline is in the future.
	CloseItem(ctx context.Context, itemID uuid.UUID, now time.Time) (item model.Item, closed bool, err error)

	// InsertNotification stores an inbox row.
	InsertNotification(ctx context.Context, n model.Notification) error
}

// LockedItemFunc runs while the item row is exclusively locked.
type LockedItemFunc func(ctx context.Context, tx Tx, item model.Item) error

// LedgerStore is the transactional store beneath the bid engine and sweeper.
type LedgerStore interface {
	// WithLockedItem locks the item row, runs fn and commits if fn returns nil.
	// Returns errs.ErrNotFound when the item does not exist and wraps
	// errs.ErrStoreUnavailable on lock or commit failures.
	WithLockedItem(ctx context.Context, itemID uuid.UUID, fn LockedItemFunc) error

	// InTx runs fn in a transaction without taking any lock up front.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListExpired returns ids of Active items with end_time <= now, oldest deadline first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// CreateItem stores a new listing.
	CreateItem(ctx context.Context, it model.Item) error

	// GetItem returns a single item by ID.
	GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error)

	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}
