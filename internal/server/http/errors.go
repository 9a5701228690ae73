package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/convert"
	"github.com/and161185/bidhouse/internal/errs"
)

type errorBody struct {
	Error        string   `json:"error"`
	Code         string   `json:"code,omitempty"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
}

// codes are stable identifiers clients can switch on.
var codes = []struct {
	err    error
	status int
	code   string
}{
	{errs.ErrInvalidBid, http.StatusBadRequest, "INVALID_BID"},
	{errs.ErrInvalidItem, http.StatusBadRequest, "INVALID_ITEM"},
	{errs.ErrAuctionClosed, http.StatusBadRequest, "AUCTION_CLOSED"},
	{errs.ErrAuctionEnded, http.StatusBadRequest, "AUCTION_ENDED"},
	{errs.ErrSelfBid, http.StatusBadRequest, "SELF_BID_FORBIDDEN"},
	{errs.ErrBidTooLow, http.StatusBadRequest, "BID_TOO_LOW"},
	{errs.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{errs.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{errs.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{errs.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
}

// writeError maps a service error to its HTTP status and body.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	for _, m := range codes {
		if !errors.Is(err, m.err) {
			continue
		}
		body := errorBody{Error: m.err.Error(), Code: m.code}
		var rej *errs.BidRejectedError
		if errors.As(err, &rej) {
			price := convert.Money(rej.CurrentPrice)
			body.CurrentPrice = &price
		}
		if m.status >= http.StatusInternalServerError {
			log.Warn("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(m.status, body)
		return
	}
	log.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorBody{Error: "internal"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg, Code: "INVALID_REQUEST"})
}
