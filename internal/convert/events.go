// Package convert maps domain models to the JSON shapes served over HTTP and
// pushed to realtime subscribers.
package convert

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/bidhouse/internal/model"
)

// Realtime event names.
const (
	EventPriceUpdate  = "price_update"
	EventFeedUpdate   = "feed_update"
	EventAuctionEnded = "auction_ended"
	EventNotification = "notification"
)

// PriceUpdate is pushed to the item's room after an accepted bid.
type PriceUpdate struct {
	ItemID       string    `json:"itemId"`
	NewPrice     float64   `json:"newPrice"`
	HighBidderID string    `json:"highBidderId"`
	Timestamp    time.Time `json:"timestamp"`
}

// FeedUpdate is pushed to the global feed after an accepted bid.
type FeedUpdate struct {
	ItemID   string  `json:"itemId"`
	NewPrice float64 `json:"newPrice"`
}

// AuctionEnded is pushed to the global feed after the sweeper closes an item.
type AuctionEnded struct {
	ItemID string `json:"itemId"`
}

// Notification is both the realtime payload and the inbox list entry.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	ItemID    *string   `json:"itemId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Money renders a price as a JSON number.
func Money(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

func ToPriceUpdate(itemID, bidder uuid.UUID, price decimal.Decimal, at time.Time) PriceUpdate {
	return PriceUpdate{
		ItemID:       itemID.String(),
		NewPrice:     Money(price),
		HighBidderID: bidder.String(),
		Timestamp:    at.UTC(),
	}
}

func ToFeedUpdate(itemID uuid.UUID, price decimal.Decimal) FeedUpdate {
	return FeedUpdate{ItemID: itemID.String(), NewPrice: Money(price)}
}

func ToAuctionEnded(itemID uuid.UUID) AuctionEnded {
	return AuctionEnded{ItemID: itemID.String()}
}

// ToNotification converts an inbox row; ItemID is omitted when unset.
func ToNotification(n model.Notification) Notification {
	out := Notification{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if n.ItemID != nil {
		s := n.ItemID.String()
		out.ItemID = &s
	}
	return out
}

// ToNotifications converts a list, never returning nil.
func ToNotifications(ns []model.Notification) []Notification {
	out := make([]Notification, 0, len(ns))
	for _, n := range ns {
		out = append(out, ToNotification(n))
	}
	return out
}
