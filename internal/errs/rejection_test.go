package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBidRejectedError_UnwrapsReason(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("place bid: %w", Reject(ErrBidTooLow, decimal.NewFromInt(150)))
	require.ErrorIs(t, err, ErrBidTooLow)
	require.False(t, errors.Is(err, ErrSelfBid))

	var rej *BidRejectedError
	require.True(t, errors.As(err, &rej))
	require.True(t, rej.CurrentPrice.Equal(decimal.NewFromInt(150)))
	require.Contains(t, err.Error(), "150.00")
}
