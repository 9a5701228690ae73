package errs

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BidRejectedError carries the item's current price alongside the rejection reason.
type BidRejectedError struct {
	Reason       error
	CurrentPrice decimal.Decimal
}

// Reject wraps one of the bid state sentinels with the price seen under the lock.
func Reject(reason error, current decimal.Decimal) *BidRejectedError {
	return &BidRejectedError{Reason: reason, CurrentPrice: current}
}

func (e *BidRejectedError) Error() string {
	return fmt.Sprintf("%v (current price %s)", e.Reason, e.CurrentPrice.StringFixed(2))
}

func (e *BidRejectedError) Unwrap() error { return e.Reason }
