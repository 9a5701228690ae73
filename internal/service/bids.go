// Package service contains the auction application services: the bid engine,
// item listing and the notification inbox.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/convert"
	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/fanout"
	"github.com/and161185/bidhouse/internal/metrics"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/realtime"
	"github.com/and161185/bidhouse/internal/repository"
)

// BidService accepts or rejects bids against the current auction state.
type BidService interface {
	// PlaceBid validates and applies one bid atomically. Rejections are
	// *errs.BidRejectedError values wrapping a state sentinel.
	PlaceBid(ctx context.Context, itemID, userID uuid.UUID, amount decimal.Decimal) (model.BidResult, error)
}

type BidServiceImpl struct {
	store   repository.LedgerStore
	notify  *fanout.Fanout
	bc      realtime.Broadcaster
	metrics metrics.Recorder
	log     *zap.Logger
	now     func() time.Time
}

var _ BidService = (*BidServiceImpl)(nil)

// NewBidService wires the bid engine to its store and realtime channel.
func NewBidService(store repository.LedgerStore, bc realtime.Broadcaster, m metrics.Recorder, log *zap.Logger) *BidServiceImpl {
	return &BidServiceImpl{
		store:   store,
		notify:  fanout.New(bc, log),
		bc:      bc,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// PlaceBid rejects amounts that are not storable prices up front, then
// checks, in order and under the item's row lock: the auction is Active, the
// deadline has not passed, the bidder is not the seller and the amount is
// strictly above the current price. On success the bid, price,
// watch and notifications commit together; pushes happen after commit.
func (s *BidServiceImpl) PlaceBid(ctx context.Context, itemID, userID uuid.UUID, amount decimal.Decimal) (model.BidResult, error) {
	if itemID == uuid.Nil || userID == uuid.Nil {
		s.metrics.BidRejected(rejectReason(errs.ErrInvalidBid))
		return model.BidResult{}, fmt.Errorf("%w: empty item or user id", errs.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		s.metrics.BidRejected(rejectReason(errs.ErrInvalidBid))
		return model.BidResult{}, fmt.Errorf("%w: amount must be positive", errs.ErrInvalidBid)
	}
	if err := model.CheckMoney(amount); err != nil {
		s.metrics.BidRejected(rejectReason(errs.ErrInvalidBid))
		return model.BidResult{}, fmt.Errorf("%w: %v", errs.ErrInvalidBid, err)
	}

	bidID, err := uuid.NewV4()
	if err != nil {
		return model.BidResult{}, err
	}

	var (
		notes []model.Notification
		at    time.Time
	)
	err = s.store.WithLockedItem(ctx, itemID, func(ctx context.Context, tx repository.Tx, item model.Item) error {
		now := s.now()
		switch {
		case item.Status != model.StatusActive:
			return errs.Reject(errs.ErrAuctionClosed, item.CurrentPrice)
		case now.After(item.EndTime):
			return errs.Reject(errs.ErrAuctionEnded, item.CurrentPrice)
		case userID == item.SellerID:
			return errs.Reject(errs.ErrSelfBid, item.CurrentPrice)
		case !amount.GreaterThan(item.CurrentPrice):
			return errs.Reject(errs.ErrBidTooLow, item.CurrentPrice)
		}

		prev := item.HighBidderID
		bid := model.Bid{ID: bidID, ItemID: item.ID, UserID: userID, Amount: amount, CreatedAt: now.UTC()}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}
		if err := tx.UpdateItemPrice(ctx, item.ID, amount, userID); err != nil {
			return err
		}
		if err := tx.UpsertWatch(ctx, userID, item.ID); err != nil {
			return err
		}

		if prev != nil && *prev != userID {
			n, err := s.notify.Record(ctx, tx, fanout.Transition{
				Kind: model.NotifyOutbid, Recipient: *prev, ItemID: item.ID, Title: item.Title, Amount: amount,
			})
			if err != nil {
				return err
			}
			notes = append(notes, n)
		}
		n, err := s.notify.Record(ctx, tx, fanout.Transition{
			Kind: model.NotifyNewBid, Recipient: item.SellerID, ItemID: item.ID, Title: item.Title, Amount: amount,
		})
		if err != nil {
			return err
		}
		notes = append(notes, n)
		at = now
		return nil
	})
	if err != nil {
		s.metrics.BidRejected(rejectReason(err))
		return model.BidResult{}, err
	}

	s.metrics.BidAccepted()
	s.log.Info("bid accepted",
		zap.Stringer("item", itemID),
		zap.Stringer("bidder", userID),
		zap.String("amount", amount.StringFixed(2)),
	)

	// the bid is committed; pushes must not depend on the caller staying around
	pushCtx := context.WithoutCancel(ctx)
	s.bc.Broadcast(pushCtx, realtime.AuctionRoom(itemID), convert.EventPriceUpdate,
		convert.ToPriceUpdate(itemID, userID, amount, at))
	s.bc.Broadcast(pushCtx, realtime.GlobalRoom, convert.EventFeedUpdate,
		convert.ToFeedUpdate(itemID, amount))
	s.notify.Deliver(pushCtx, notes)

	return model.BidResult{BidID: bidID, NewPrice: amount}, nil
}

// rejectReason is the metrics tag for a failed bid.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, errs.ErrInvalidBid):
		return "invalid"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrAuctionClosed):
		return "closed"
	case errors.Is(err, errs.ErrAuctionEnded):
		return "ended"
	case errors.Is(err, errs.ErrSelfBid):
		return "self_bid"
	case errors.Is(err, errs.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, errs.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
