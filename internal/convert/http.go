package convert

import (
	"time"

	"github.com/and161185/bidhouse/internal/model"
)

// Item is the HTTP representation of a listing.
type Item struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	StartingPrice float64   `json:"startingPrice"`
	CurrentPrice  float64   `json:"currentPrice"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        string    `json:"status"`
	SellerID      string    `json:"sellerId"`
	HighBidderID  *string   `json:"highBidderId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BidAccepted is the 200 body of a successful bid.
type BidAccepted struct {
	Price float64 `json:"price"`
	BidID string  `json:"bidId"`
}

func ToItem(it model.Item) Item {
	out := Item{
		ID:            it.ID.String(),
		Title:         it.Title,
		Description:   it.Description,
		StartingPrice: Money(it.StartingPrice),
		CurrentPrice:  Money(it.CurrentPrice),
		StartTime:     it.StartTime.UTC(),
		EndTime:       it.EndTime.UTC(),
		Status:        string(it.Status),
		SellerID:      it.SellerID.String(),
		CreatedAt:     it.CreatedAt.UTC(),
	}
	if it.HighBidderID != nil {
		s := it.HighBidderID.String()
		out.HighBidderID = &s
	}
	return out
}

func ToBidAccepted(r model.BidResult) BidAccepted {
	return BidAccepted{Price: Money(r.NewPrice), BidID: r.BidID.String()}
}
