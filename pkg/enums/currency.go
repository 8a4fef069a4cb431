package enums

import "strings"

// Currency is an ISO 4217 alphabetic code as carried on order payloads.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency applies when a manually entered order omits a currency.
const DefaultCurrency = CurrencyINR

func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether c has the shape of an ISO 4217 code. Platforms can
// sell in any store currency, so membership in a fixed list is not required.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeCurrency upper-cases and trims raw. Blank or malformed input
// yields fallback, which may itself be empty.
func NormalizeCurrency(raw string, fallback Currency) Currency {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return fallback
	}
	return c
}
