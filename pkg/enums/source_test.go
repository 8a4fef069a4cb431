package enums

import "testing"

func TestParseSource(t *testing.T) {
	cases := map[string]Source{
		"shopify":     SourceShopify,
		" Shopify ":   SourceShopify,
		"woocommerce": SourceWooCommerce,
		"woo":         SourceWooCommerce,
		"manual":      SourceManual,
		"facebook":    SourceManual,
	}
	for raw, want := range cases {
		got, err := ParseSource(raw)
		if err != nil {
			t.Fatalf("ParseSource(%q) unexpected error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseSource(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseSource("etsy"); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestSourcePlatformLabels(t *testing.T) {
	if SourceShopify.Platform() != "Shopify" || SourceWooCommerce.Platform() != "WooCommerce" || SourceManual.Platform() != "Facebook" {
		t.Fatalf("unexpected platform labels")
	}
	if Source("x").IsValid() {
		t.Fatalf("unknown source should be invalid")
	}
}
