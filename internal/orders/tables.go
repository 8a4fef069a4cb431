package orders

import (
	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// tableSpec names the columns the shared queries need for one source table.
type tableSpec struct {
	table      string
	keyColumn  string
	dateColumn string
	statusCol  string
	searchCols []string
}

var tableSpecs = map[enums.Source]tableSpec{
	enums.SourceShopify: {
		table:      "shopify_orders",
		keyColumn:  "shopify_id",
		dateColumn: "created_at_shopify",
		statusCol:  "fulfillment_status",
		searchCols: []string{
			"CAST(shopify_id AS TEXT)", "name", "email", "customer_name",
			"billing_phone", "billing_city", "billing_zip", "shipping_phone", "shipping_zip",
		},
	},
	enums.SourceWooCommerce: {
		table:      "woocommerce_orders",
		keyColumn:  "woo_id",
		dateColumn: "date_created_woo",
		statusCol:  "status",
		searchCols: []string{
			"CAST(woo_id AS TEXT)", "billing_first_name", "billing_last_name", "billing_phone",
			"billing_city", "billing_postcode", "billing_email",
		},
	},
	enums.SourceManual: {
		table:      "manual_orders",
		keyColumn:  "order_id",
		dateColumn: "date_created",
		statusCol:  "status",
		searchCols: []string{
			"order_id", "first_name", "last_name", "phone", "email", "alternate_number",
		},
	},
}

// SourceRank orders sources when rows share a timestamp in a merged stream.
func SourceRank(source enums.Source) int {
	for i, candidate := range enums.Sources() {
		if candidate == source {
			return i
		}
	}
	return len(enums.Sources())
}
