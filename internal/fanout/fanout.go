// Package fanout turns auction state transitions into inbox notifications and
// pushes them to their recipients' private rooms.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/convert"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/realtime"
)

// Transition describes one notifiable event.
type Transition struct {
	Kind      model.NotificationType
	Recipient uuid.UUID
	ItemID    uuid.UUID
	Title     string
	Amount    decimal.Decimal
}

// Recorder persists a notification inside the caller's unit of work.
type Recorder interface {
	InsertNotification(ctx context.Context, n model.Notification) error
}

// Fanout records notifications in-transaction and delivers them after commit.
type Fanout struct {
	bc  realtime.Broadcaster
	log *zap.Logger
	now func() time.Time
}

// New returns a fanout that pushes through bc.
func New(bc realtime.Broadcaster, log *zap.Logger) *Fanout {
	return &Fanout{bc: bc, log: log, now: time.Now}
}

// Record builds the notification for t and stores it through rec. The caller
// keeps the returned value and passes it to Deliver once its transaction
// has committed.
func (f *Fanout) Record(ctx context.Context, rec Recorder, t Transition) (model.Notification, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Notification{}, err
	}
	item := t.ItemID
	n := model.Notification{
		ID:        id,
		UserID:    t.Recipient,
		ItemID:    &item,
		Type:      t.Kind,
		Message:   Message(t),
		CreatedAt: f.now().UTC(),
	}
	if err := rec.InsertNotification(ctx, n); err != nil {
		return model.Notification{}, fmt.Errorf("record %s notification: %w", t.Kind, err)
	}
	return n, nil
}

// Deliver pushes each notification to its recipient. Best effort.
func (f *Fanout) Deliver(ctx context.Context, notes []model.Notification) {
	for _, n := range notes {
		f.bc.Broadcast(ctx, realtime.UserRoom(n.UserID), convert.EventNotification, convert.ToNotification(n))
	}
	if len(notes) > 0 {
		f.log.Debug("notifications pushed", zap.Int("count", len(notes)))
	}
}

// Message renders the inbox text for t.
func Message(t Transition) string {
	amount := t.Amount.StringFixed(2)
	switch t.Kind {
	case model.NotifyOutbid:
		return fmt.Sprintf("You have been outbid on %q. The current price is %s.", t.Title, amount)
	case model.NotifyNewBid:
		return fmt.Sprintf("Your item %q received a new bid of %s.", t.Title, amount)
	case model.NotifyAuctionWon:
		return fmt.Sprintf("Congratulations! You won %q for %s. Please complete payment.", t.Title, amount)
	case model.NotifyItemSold:
		return fmt.Sprintf("Your item %q sold for %s. Awaiting payment.", t.Title, amount)
	case model.NotifyAuctionFailed:
		return fmt.Sprintf("The auction for %q ended without any bids.", t.Title)
	default:
		return t.Title
	}
}
