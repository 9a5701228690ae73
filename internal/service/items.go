package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bidhouse/internal/errs"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/repository"
)

const maxTitleLen = 200

// ItemService lists items for auction and reads them back.
type ItemService interface {
	// Create validates a listing and stores it as an Active auction.
	Create(ctx context.Context, sellerID uuid.UUID, in model.NewItem) (model.Item, error)
	// Get returns a single item by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Item, error)
}

type ItemServiceImpl struct {
	store repository.LedgerStore
	now   func() time.Time
}

var _ ItemService = (*ItemServiceImpl)(nil)

// NewItemService constructs ItemService over the ledger store.
func NewItemService(store repository.LedgerStore) *ItemServiceImpl {
	return &ItemServiceImpl{store: store, now: time.Now}
}

// Create validates input and stores the listing.
// Validation rules:
// - sellerID not empty
// - title not blank, at most 200 characters
// - starting price > 0, at most two decimal places, below 10^12
// - end time after start time and in the future
// A zero start time means "now".
func (s *ItemServiceImpl) Create(ctx context.Context, sellerID uuid.UUID, in model.NewItem) (model.Item, error) {
	now := s.now().UTC()
	if sellerID == uuid.Nil {
		return model.Item{}, fmt.Errorf("%w: empty seller", errs.ErrInvalidItem)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Item{}, fmt.Errorf("%w: empty title", errs.ErrInvalidItem)
	}
	if len([]rune(title)) > maxTitleLen {
		return model.Item{}, fmt.Errorf("%w: title too long", errs.ErrInvalidItem)
	}
	if !in.StartingPrice.IsPositive() {
		return model.Item{}, fmt.Errorf("%w: starting price must be positive", errs.ErrInvalidItem)
	}
	if err := model.CheckMoney(in.StartingPrice); err != nil {
		return model.Item{}, fmt.Errorf("%w: starting price: %v", errs.ErrInvalidItem, err)
	}
	start := in.StartTime
	if start.IsZero() {
		start = now
	}
	if !in.EndTime.After(start) {
		return model.Item{}, fmt.Errorf("%w: end time must be after start time", errs.ErrInvalidItem)
	}
	if !in.EndTime.After(now) {
		return model.Item{}, fmt.Errorf("%w: end time is in the past", errs.ErrInvalidItem)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.Item{}, err
	}
	it := model.Item{
		ID:            id,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		StartTime:     start.UTC(),
		EndTime:       in.EndTime.UTC(),
		Status:        model.StatusActive,
		SellerID:      sellerID,
		CreatedAt:     now,
	}
	if err := s.store.CreateItem(ctx, it); err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// Get fetches single item by id.
func (s *ItemServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	return s.store.GetItem(ctx, id)
}
