package sources

import (
	"github.com/sudhir1041/nursery-orders/pkg/backoff"
	"github.com/sudhir1041/nursery-orders/pkg/config"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	"github.com/sudhir1041/nursery-orders/pkg/logger"
	"github.com/sudhir1041/nursery-orders/pkg/metrics"
	"github.com/sudhir1041/nursery-orders/pkg/platform"
	"github.com/sudhir1041/nursery-orders/pkg/shopify"
	"github.com/sudhir1041/nursery-orders/pkg/woocommerce"
)

// Deps carries the shared collaborators of the upstream clients.
type Deps struct {
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

func (d Deps) options(cfg config.SyncConfig) []platform.Option {
	return []platform.Option{
		platform.WithPolicy(backoff.Policy{
			MaxAttempts:   cfg.MaxAttempts,
			BaseDelay:     cfg.BaseDelay,
			MaxDelay:      cfg.MaxDelay,
			Randomization: cfg.Randomization,
		}),
		platform.WithLogger(d.Logger),
		platform.WithMetrics(d.Metrics),
	}
}

// NewAdapter builds the adapter for source from configuration. Missing
// credentials fail with CONFIGURATION_ERROR before any network call.
func NewAdapter(source enums.Source, cfg *config.Config, deps Deps) (Adapter, error) {
	switch source {
	case enums.SourceShopify:
		client, err := shopify.NewClient(cfg.Shopify, deps.options(cfg.Sync)...)
		if err != nil {
			return nil, err
		}
		return NewShopifyAdapter(client), nil
	case enums.SourceWooCommerce:
		client, err := woocommerce.NewClient(cfg.WooCommerce, deps.options(cfg.Sync)...)
		if err != nil {
			return nil, err
		}
		return NewWooCommerceAdapter(client), nil
	case enums.SourceManual:
		return NewManualAdapter(nil), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown source "+string(source))
}

// ConfiguredAdapters returns an adapter for every source whose credentials
// are present. Unconfigured platforms are skipped and reported by name.
func ConfiguredAdapters(cfg *config.Config, deps Deps) ([]Adapter, []enums.Source) {
	var (
		adapters []Adapter
		skipped  []enums.Source
	)
	for _, source := range enums.Sources() {
		adapter, err := NewAdapter(source, cfg, deps)
		if err != nil {
			skipped = append(skipped, source)
			continue
		}
		adapters = append(adapters, adapter)
	}
	return adapters, skipped
}
