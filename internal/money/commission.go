package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// RateDecimals is the precision commission rates are stored with.
const RateDecimals = 4

var (
	// ErrInvalidRate is returned by ValidateRate for rates outside [0, 1].
	ErrInvalidRate = errors.New("commission rate must be between 0 and 1")
	// ErrRatePrecision is returned by ValidateRate for rates finer than
	// RateDecimals places, which storage would silently round.
	ErrRatePrecision = errors.New("commission rate allows at most 4 decimal places")
)

// Split is a payment amount divided between the platform and the organizer.
// PlatformFee + OrganizerEarnings always equals the amount that was split.
type Split struct {
	Rate              decimal.Decimal `json:"commission_rate"`
	PlatformFee       decimal.Decimal `json:"platform_fee"`
	OrganizerEarnings decimal.Decimal `json:"organizer_earnings"`
}

// SplitAmount computes the platform fee rounded to cents and gives the
// organizer the remainder, so the two parts never drift from amount.
func SplitAmount(amount, rate decimal.Decimal) Split {
	fee := amount.Mul(rate).Round(2)
	return Split{
		Rate:              rate,
		PlatformFee:       fee,
		OrganizerEarnings: amount.Sub(fee),
	}
}

// ValidateRate rejects commission rates outside the closed interval [0, 1]
// or with more than RateDecimals decimal places.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidRate
	}
	if !rate.Equal(rate.Round(RateDecimals)) {
		return ErrRatePrecision
	}
	return nil
}
