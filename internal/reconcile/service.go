package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sudhir1041/nursery-orders/internal/orders"
	"github.com/sudhir1041/nursery-orders/internal/sources"
	"github.com/sudhir1041/nursery-orders/pkg/db/models"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/pagination"
)

const (
	DefaultWindow          = 35 * 24 * time.Hour
	DefaultDashboardWindow = 30 * 24 * time.Hour
)

type orderReader interface {
	Find(ctx context.Context, key sources.ExternalOrderKey) (orders.Order, error)
	ListShopify(ctx context.Context, q orders.ListQuery) ([]models.ShopifyOrder, error)
	ListWooCommerce(ctx context.Context, q orders.ListQuery) ([]models.WooCommerceOrder, error)
	ListManual(ctx context.Context, q orders.ListQuery) ([]models.ManualOrder, error)
	CountBySource(ctx context.Context, source enums.Source, q orders.CountQuery) (orders.SourceCount, error)
}

// Filters narrow the unified order list. With no filter set the list covers
// the default window.
type Filters struct {
	Search string
	// Date selects one calendar day in UTC.
	Date *time.Time
	// Days selects the last N days. Ignored when Date is set.
	Days int
	// NotShipped keeps needs-attention orders older than the SLA.
	NotShipped bool
	// Source restricts the list to one source. Empty means all.
	Source enums.Source
}

func (f Filters) active() bool {
	return strings.TrimSpace(f.Search) != "" || f.Date != nil || f.Days > 0 || f.NotShipped
}

// Page is one slice of the merged stream.
type Page struct {
	Orders     []UnifiedOrderView `json:"orders"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// SourceSummary is the dashboard tally for one source.
type SourceSummary struct {
	Source     enums.Source `json:"source"`
	Platform   string       `json:"platform"`
	Total      int64        `json:"total"`
	Pending    int64        `json:"pending"`
	Shipped    int64        `json:"shipped"`
	NotShipped int64        `json:"not_shipped"`
}

// Dashboard aggregates the recent window across all sources.
type Dashboard struct {
	Since           time.Time       `json:"since"`
	TotalOrders     int64           `json:"total_orders"`
	TotalPending    int64           `json:"total_pending"`
	TotalShipped    int64           `json:"total_shipped"`
	TotalNotShipped int64           `json:"total_not_shipped"`
	Sources         []SourceSummary `json:"sources"`
}

// Service is the read side over every local order store.
type Service interface {
	List(ctx context.Context, filters Filters, page pagination.Params) (Page, error)
	Detail(ctx context.Context, source enums.Source, id string) (UnifiedOrderView, error)
	Dashboard(ctx context.Context) (Dashboard, error)
}

type ServiceParams struct {
	Orders          orderReader
	Policy          Policy
	Templates       Templates
	DefaultWindow   time.Duration
	DashboardWindow time.Duration
}

type service struct {
	orders          orderReader
	policy          Policy
	projector       *Projector
	defaultWindow   time.Duration
	dashboardWindow time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Policy.now == nil {
		params.Policy = NewPolicy(params.Policy.sla, nil)
	}
	if params.DefaultWindow <= 0 {
		params.DefaultWindow = DefaultWindow
	}
	if params.DashboardWindow <= 0 {
		params.DashboardWindow = DefaultDashboardWindow
	}
	return &service{
		orders:          params.Orders,
		policy:          params.Policy,
		projector:       NewProjector(params.Policy, params.Templates),
		defaultWindow:   params.DefaultWindow,
		dashboardWindow: params.DashboardWindow,
	}, nil
}

// List fetches limit+1 rows past the cursor from every selected source,
// merges them and keeps the first limit.
func (s *service) List(ctx context.Context, filters Filters, page pagination.Params) (Page, error) {
	after, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if filters.Source != "" && !filters.Source.IsValid() {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown source %q", filters.Source))
	}
	if filters.Days < 0 {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "days must be positive")
	}
	limit := pagination.NormalizeLimit(page.Limit)

	base := s.baseQuery(filters)
	base.After = after
	base.Limit = limit + 1

	var streams [][]UnifiedOrderView
	for _, source := range enums.Sources() {
		if filters.Source != "" && filters.Source != source {
			continue
		}
		q := base
		if filters.NotShipped {
			q.Statuses, q.IncludeNullStatus = AttentionStatuses(source)
		}
		views, err := s.listSource(ctx, source, q)
		if err != nil {
			return Page{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, fmt.Sprintf("list %s orders", source))
		}
		streams = append(streams, views)
	}

	rows, more := pagination.Trim(Merge(streams...), limit)
	out := Page{Orders: rows}
	if more {
		last := rows[limit-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: *last.Date,
			Source:    string(last.Source),
			ID:        last.RowID,
		})
	}
	return out, nil
}

func (s *service) baseQuery(filters Filters) orders.ListQuery {
	now := s.policy.Now()
	q := orders.ListQuery{Search: strings.TrimSpace(filters.Search)}
	switch {
	case filters.Date != nil:
		day := filters.Date.UTC().Truncate(24 * time.Hour)
		end := day.Add(24 * time.Hour)
		q.From = &day
		q.CreatedBefore = &end
	case filters.Days > 0:
		from := now.Add(-time.Duration(filters.Days) * 24 * time.Hour)
		q.From = &from
	case !filters.active():
		from := now.Add(-s.defaultWindow)
		q.From = &from
	}
	if filters.NotShipped {
		before := s.policy.OverdueBefore()
		if q.CreatedBefore == nil || before.Before(*q.CreatedBefore) {
			q.CreatedBefore = &before
		}
	}
	return q
}

func (s *service) listSource(ctx context.Context, source enums.Source, q orders.ListQuery) ([]UnifiedOrderView, error) {
	switch source {
	case enums.SourceShopify:
		rows, err := s.orders.ListShopify(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]UnifiedOrderView, 0, len(rows))
		for i := range rows {
			out = append(out, s.projector.Shopify(&rows[i]))
		}
		return out, nil
	case enums.SourceWooCommerce:
		rows, err := s.orders.ListWooCommerce(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]UnifiedOrderView, 0, len(rows))
		for i := range rows {
			out = append(out, s.projector.WooCommerce(&rows[i]))
		}
		return out, nil
	case enums.SourceManual:
		rows, err := s.orders.ListManual(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]UnifiedOrderView, 0, len(rows))
		for i := range rows {
			out = append(out, s.projector.Manual(&rows[i]))
		}
		return out, nil
	}
	return nil, nil
}

func (s *service) Detail(ctx context.Context, source enums.Source, id string) (UnifiedOrderView, error) {
	key, err := sources.NewKey(source, id)
	if err != nil {
		return UnifiedOrderView{}, err
	}
	order, err := s.orders.Find(ctx, key)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return UnifiedOrderView{}, err
		}
		return UnifiedOrderView{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, fmt.Sprintf("load order %s", key))
	}
	return s.projector.Order(order), nil
}

func (s *service) Dashboard(ctx context.Context) (Dashboard, error) {
	since := s.policy.Now().Add(-s.dashboardWindow)
	out := Dashboard{Since: since}
	for _, source := range enums.Sources() {
		statuses, includeNull := AttentionStatuses(source)
		count, err := s.orders.CountBySource(ctx, source, orders.CountQuery{
			Since:             since,
			NeedsAttention:    statuses,
			IncludeNullStatus: includeNull,
			OverdueBefore:     s.policy.OverdueBefore(),
		})
		if err != nil {
			return Dashboard{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, fmt.Sprintf("count %s orders", source))
		}
		out.Sources = append(out.Sources, SourceSummary{
			Source:     source,
			Platform:   source.Platform(),
			Total:      count.Total,
			Pending:    count.Pending,
			Shipped:    count.Shipped,
			NotShipped: count.NotShipped,
		})
		out.TotalOrders += count.Total
		out.TotalPending += count.Pending
		out.TotalShipped += count.Shipped
		out.TotalNotShipped += count.NotShipped
	}
	return out, nil
}
