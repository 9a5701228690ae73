package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Prices are stored as NUMERIC(14,2).
const MoneyScale = 2

// MaxMoney is the first amount that no longer fits the price columns.
var MaxMoney = decimal.New(1, 12)

var (
	ErrMoneyPrecision = errors.New("more than two decimal places")
	ErrMoneyRange     = errors.New("amount out of range")
)

// CheckMoney reports whether d is storable as a price without rounding.
// Trailing zeros are fine: 150.500 is accepted.
func CheckMoney(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return ErrMoneyPrecision
	}
	if d.Abs().GreaterThanOrEqual(MaxMoney) {
		return ErrMoneyRange
	}
	return nil
}
