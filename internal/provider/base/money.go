package base

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists ISO 4217 currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// MinorExponent returns the number of minor-unit digits for a currency.
func MinorExponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// MinorToMajor converts an amount in minor units (cents, kobo) to major units.
// The shift is exact; a fractional minor input is rounded half away from zero
// to the currency's precision. 1050 USD -> 10.5, 250000 NGN -> 2500.
func MinorToMajor(amount decimal.Decimal, currency string) decimal.Decimal {
	exp := MinorExponent(currency)
	return amount.Shift(-exp).Round(exp)
}

// MajorToMinor converts a major amount to the integer minor units rails expect.
// Sub-minor precision is rounded half away from zero.
func MajorToMinor(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(MinorExponent(currency)).Round(0).IntPart()
}
