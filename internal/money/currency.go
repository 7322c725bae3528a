// Package money holds the fixed-point rules shared by every payment provider:
// conversion between major and minor currency units and the commission split.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists ISO 4217 currencies whose smallest unit is the major unit.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// IsZeroDecimal reports whether currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if IsZeroDecimal(currency) {
		return 0
	}
	return 2
}

// ToMinor converts a major-unit amount to the provider's integer minor units.
// The scaled value is rounded half away from zero.
func ToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(Exponent(currency)).Round(0).IntPart()
}

// FromMinor is the inverse of ToMinor.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}
