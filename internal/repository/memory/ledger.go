// Package memory contains a single-process implementation of the repository
// contracts. It honours the same lock-and-run semantics as the PostgreSQL
// ledger and is meant for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

type watchKey struct{ user, item uuid.UUID }

// Ledger keeps all rows in maps guarded by mu. Row locks are one-slot
// channels so waiting honours context cancellation.
type Ledger struct {
	mu    sync.RWMutex
	items map[uuid.UUID]model.Item
	bids  map[uuid.UUID][]model.Bid
	watch map[watchKey]time.Time
	notes map[uuid.UUID]model.Notification
	locks map[uuid.UUID]chan struct{}
}

var (
	_ repository.LedgerStore            = (*Ledger)(nil)
	_ repository.NotificationRepository = (*Ledger)(nil)
)

// NewLedger returns an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		items: make(map[uuid.UUID]model.Item),
		bids:  make(map[uuid.UUID][]model.Bid),
		watch: make(map[watchKey]time.Time),
		notes: make(map[uuid.UUID]model.Notification),
		locks: make(map[uuid.UUID]chan struct{}),
	}
}

// rowLock returns the lock of an existing item. Unknown ids get no entry,
// so the lock map never outgrows the item map.
func (l *Ledger) rowLock(id uuid.UUID) (chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[id]; !ok {
		return nil, false
	}
	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	return ch, true
}

func acquire(ctx context.Context, ch chan struct{}) error {
	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, ctx.Err())
	}
}

// WithLockedItem runs fn while holding the item's row lock.
func (l *Ledger) WithLockedItem(ctx context.Context, itemID uuid.UUID, fn repository.LockedItemFunc) error {
	lock, ok := l.rowLock(itemID)
	if !ok {
		return errs.ErrNotFound
	}
	if err := acquire(ctx, lock); err != nil {
		return err
	}
	tx := &memTx{l: l, held: map[uuid.UUID]chan struct{}{itemID: lock}}
	defer tx.release()

	l.mu.RLock()
	item, ok := l.items[itemID]
	l.mu.RUnlock()
	if !ok {
		return errs.ErrNotFound
	}
	if err := fn(ctx, tx, item); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// InTx runs fn in a unit of work; row locks are taken lazily by CloseItem.
func (l *Ledger) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx := &memTx{l: l, held: map[uuid.UUID]chan struct{}{}}
	defer tx.release()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ListExpired returns Active items with end_time <= now, oldest deadline first.
func (l *Ledger) ListExpired(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	l.mu.RLock()
	expired := make([]model.Item, 0)
	for _, it := range l.items {
		if it.Status == model.StatusActive && !it.EndTime.After(now) {
			expired = append(expired, it)
		}
	}
	l.mu.RUnlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].EndTime.Before(expired[j].EndTime) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	ids := make([]uuid.UUID, len(expired))
	for i := range expired {
		ids[i] = expired[i].ID
	}
	return ids, nil
}

// CreateItem stores a new listing.
func (l *Ledger) CreateItem(_ context.Context, it model.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.items[it.ID]; exists {
		return errs.ErrAlreadyExists
	}
	l.items[it.ID] = it
	return nil
}

// GetItem returns a copy of the item.
func (l *Ledger) GetItem(_ context.Context, id uuid.UUID) (*model.Item, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it, ok := l.items[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &it, nil
}

// lockCount is the number of row locks allocated so far.
func (l *Ledger) lockCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.locks)
}

// Ping always succeeds.
func (l *Ledger) Ping(context.Context) error { return nil }

// Bids returns the accepted bids of an item in insertion order.
func (l *Ledger) Bids(itemID uuid.UUID) []model.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Bid(nil), l.bids[itemID]...)
}

// IsWatching reports whether the user follows the item.
func (l *Ledger) IsWatching(userID, itemID uuid.UUID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.watch[watchKey{user: userID, item: itemID}]
	return ok
}

// memTx stages writes and applies them under the ledger mutex on commit.
type memTx struct {
	l    *Ledger
	held map[uuid.UUID]chan struct{}
	ops  []func(l *Ledger)
}

func (t *memTx) commit() {
	t.l.mu.Lock()
	defer t.l.mu.Unlock()
	for _, op := range t.ops {
		op(t.l)
	}
}

func (t *memTx) release() {
	for _, ch := range t.held {
		<-ch
	}
}

func (t *memTx) InsertBid(_ context.Context, b model.Bid) error {
	t.ops = append(t.ops, func(l *Ledger) {
		l.bids[b.ItemID] = append(l.bids[b.ItemID], b)
	})
	return nil
}

func (t *memTx) UpdateItemPrice(_ context.Context, itemID uuid.UUID, price decimal.Decimal, highBidder uuid.UUID) error {
	t.l.mu.RLock()
	_, ok := t.l.items[itemID]
	t.l.mu.RUnlock()
	if !ok {
		return errs.ErrNotFound
	}
	bidder := highBidder
	t.ops = append(t.ops, func(l *Ledger) {
		it := l.items[itemID]
		it.CurrentPrice = price
		it.HighBidderID = &bidder
		l.items[itemID] = it
	})
	return nil
}

func (t *memTx) UpsertWatch(_ context.Context, userID, itemID uuid.UUID) error {
	now := time.Now()
	t.ops = append(t.ops, func(l *Ledger) {
		k := watchKey{user: userID, item: itemID}
		if _, ok := l.watch[k]; !ok {
			l.watch[k] = now
		}
	})
	return nil
}

func (t *memTx) CloseItem(ctx context.Context, itemID uuid.UUID, now time.Time) (model.Item, bool, error) {
	if _, ok := t.held[itemID]; !ok {
		lock, exists := t.l.rowLock(itemID)
		if !exists {
			return model.Item{}, false, nil
		}
		if err := acquire(ctx, lock); err != nil {
			return model.Item{}, false, err
		}
		t.held[itemID] = lock
	}

	t.l.mu.RLock()
	it, ok := t.l.items[itemID]
	t.l.mu.RUnlock()
	if !ok || it.Status != model.StatusActive || it.EndTime.After(now) {
		return model.Item{}, false, nil
	}

	it.Status = model.StatusUnsold
	if it.HasBidder() {
		it.Status = model.StatusWaitingPayment
	}
	status := it.Status
	t.ops = append(t.ops, func(l *Ledger) {
		cur := l.items[itemID]
		cur.Status = status
		l.items[itemID] = cur
	})
	return it, true, nil
}

func (t *memTx) InsertNotification(_ context.Context, n model.Notification) error {
	t.ops = append(t.ops, func(l *Ledger) {
		l.notes[n.ID] = n
	})
	return nil
}
