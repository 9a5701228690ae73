// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing or invalid identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., item id reused).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidBid indicates a malformed bid (non-positive amount, empty ids).
	ErrInvalidBid = errors.New("invalid bid")

	// ErrInvalidItem indicates a malformed item listing.
	ErrInvalidItem = errors.New("invalid item")

	// ErrAuctionClosed indicates the item is no longer Active.
	ErrAuctionClosed = errors.New("auction is not active")

	// ErrAuctionEnded indicates the deadline has passed but the sweeper has not closed the item yet.
	ErrAuctionEnded = errors.New("auction has ended")

	// ErrSelfBid indicates the seller tried to bid on their own item.
	ErrSelfBid = errors.New("cannot bid on your own item")

	// ErrBidTooLow indicates the amount does not exceed the current price.
	ErrBidTooLow = errors.New("bid must be higher than current price")

	// ErrStoreUnavailable indicates a lock or transaction failure; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
