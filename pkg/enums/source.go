package enums

import (
	"fmt"
	"strings"
)

// Source identifies the external system an order originated from.
type Source string

const (
	SourceShopify     Source = "shopify"
	SourceWooCommerce Source = "woocommerce"
	SourceManual      Source = "manual"
)

var validSources = []Source{
	SourceShopify,
	SourceWooCommerce,
	SourceManual,
}

// HasNumericIDs reports whether the source identifies orders by 64-bit integers.
func (s Source) HasNumericIDs() bool {
	return s == SourceShopify || s == SourceWooCommerce
}

// String implements fmt.Stringer.
func (s Source) String() string {
	return string(s)
}

// IsValid reports whether the value is a known Source.
func (s Source) IsValid() bool {
	for _, candidate := range validSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// Platform returns the display label used in unified order views.
func (s Source) Platform() string {
	switch s {
	case SourceShopify:
		return "Shopify"
	case SourceWooCommerce:
		return "WooCommerce"
	case SourceManual:
		return "Facebook"
	default:
		return "Unknown"
	}
}

// Sources returns every known source in canonical order.
func Sources() []Source {
	out := make([]Source, len(validSources))
	copy(out, validSources)
	return out
}

// ParseSource converts raw input into a Source. Matching is case-insensitive and
// accepts the "woo" and "facebook" aliases used by operators.
func ParseSource(value string) (Source, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "woo":
		return SourceWooCommerce, nil
	case "facebook", "fb":
		return SourceManual, nil
	}
	for _, candidate := range validSources {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source %q", value)
}
