package reconcile

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

func view(source enums.Source, id string, at *time.Time) UnifiedOrderView {
	return UnifiedOrderView{RowID: uuid.New(), ID: id, Source: source, Date: at}
}

func hoursAgo(h int) *time.Time {
	t := now.Add(-time.Duration(h) * time.Hour)
	return &t
}

func ids(views []UnifiedOrderView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestMergeSortsDescendingAndDropsUndated(t *testing.T) {
	shopify := []UnifiedOrderView{
		view(enums.SourceShopify, "s1", hoursAgo(1)),
		view(enums.SourceShopify, "s-nil", nil),
		view(enums.SourceShopify, "s5", hoursAgo(5)),
	}
	woo := []UnifiedOrderView{
		view(enums.SourceWooCommerce, "w-nil", nil),
		view(enums.SourceWooCommerce, "w2", hoursAgo(2)),
		view(enums.SourceWooCommerce, "w6", hoursAgo(6)),
	}
	manual := []UnifiedOrderView{
		view(enums.SourceManual, "m3", hoursAgo(3)),
		view(enums.SourceManual, "m4", hoursAgo(4)),
		view(enums.SourceManual, "m-nil", nil),
	}

	merged := Merge(shopify, woo, manual)

	assert.Equal(t, []string{"s1", "w2", "m3", "m4", "s5", "w6"}, ids(merged))
	assert.True(t, sort.SliceIsSorted(merged, func(i, j int) bool { return merged[i].Date.After(*merged[j].Date) }))
}

func TestMergeBreaksTiesBySourceThenRowID(t *testing.T) {
	at := hoursAgo(1)
	low := view(enums.SourceManual, "m-low", at)
	high := view(enums.SourceManual, "m-high", at)
	low.RowID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high.RowID = uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

	merged := Merge(
		[]UnifiedOrderView{high, low},
		[]UnifiedOrderView{view(enums.SourceWooCommerce, "w", at)},
		[]UnifiedOrderView{view(enums.SourceShopify, "s", at)},
	)
	assert.Equal(t, []string{"s", "w", "m-high", "m-low"}, ids(merged))
}

func TestMergeEmptyInputs(t *testing.T) {
	require.Empty(t, Merge())
	require.Empty(t, Merge(nil, []UnifiedOrderView{view(enums.SourceShopify, "x", nil)}))
}
