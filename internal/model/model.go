// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// ItemStatus is the lifecycle state of an auctioned item.
type ItemStatus string

const (
	StatusActive         ItemStatus = "Active"
	StatusWaitingPayment ItemStatus = "WaitingPayment"
	StatusUnsold         ItemStatus = "Unsold"
	StatusPaid           ItemStatus = "Paid"      // reserved, set by payment flows
	StatusCancelled      ItemStatus = "Cancelled" // reserved, set by moderation
)

// Item is a listed auction together with its cached price projection.
type Item struct {
	ID            uuid.UUID       // PK
	Title         string          // shown in notifications
	Description   string
	StartingPrice decimal.Decimal // > 0
	CurrentPrice  decimal.Decimal // >= StartingPrice, never decreases
	StartTime     time.Time
	EndTime       time.Time       // bidding deadline
	Status        ItemStatus
	SellerID      uuid.UUID       // owner, may not bid
	HighBidderID  *uuid.UUID      // nil until the first accepted bid
	CreatedAt     time.Time
}

// HasBidder reports whether at least one bid was accepted.
func (it Item) HasBidder() bool { return it.HighBidderID != nil }

// NewItem is a seller's listing request.
type NewItem struct {
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
}

// Bid is an accepted bid. Rejected bids are never stored.
type Bid struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// BidResult is returned to the bidder after commit.
type BidResult struct {
	BidID    uuid.UUID
	NewPrice decimal.Decimal
}

// Watch marks an item a user follows. Placing a bid implies watching.
type Watch struct {
	UserID    uuid.UUID
	ItemID    uuid.UUID
	CreatedAt time.Time
}

// NotificationType classifies inbox messages.
type NotificationType string

const (
	NotifyNewBid        NotificationType = "NewBid"
	NotifyOutbid        NotificationType = "Outbid"
	NotifyAuctionWon    NotificationType = "AuctionWon"
	NotifyItemSold      NotificationType = "ItemSold"
	NotifyAuctionFailed NotificationType = "AuctionFailed"
	NotifySystem        NotificationType = "System"
)

// Notification is an inbox row addressed to a single recipient.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID  // recipient
	ItemID    *uuid.UUID // optional
	Type      NotificationType
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
