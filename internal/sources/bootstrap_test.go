package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudhir1041/nursery-orders/pkg/config"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
)

func TestNewAdapterRequiresCredentials(t *testing.T) {
	cfg := &config.Config{}
	_, err := NewAdapter(enums.SourceShopify, cfg, Deps{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
	_, err = NewAdapter(enums.SourceWooCommerce, cfg, Deps{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))

	manual, err := NewAdapter(enums.SourceManual, cfg, Deps{})
	require.NoError(t, err)
	assert.Equal(t, enums.SourceManual, manual.Source())

	_, err = NewAdapter(enums.Source("etsy"), cfg, Deps{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConfiguredAdaptersSkipsMissingPlatforms(t *testing.T) {
	cfg := &config.Config{
		Shopify: config.ShopifyConfig{ShopDomain: "green-leaf.myshopify.com", AccessToken: "shpat_x"},
	}
	adapters, skipped := ConfiguredAdapters(cfg, Deps{})

	var got []enums.Source
	for _, a := range adapters {
		got = append(got, a.Source())
	}
	assert.Equal(t, []enums.Source{enums.SourceShopify, enums.SourceManual}, got)
	assert.Equal(t, []enums.Source{enums.SourceWooCommerce}, skipped)

	_, pageable := adapters[0].(BatchFetcher)
	assert.True(t, pageable)
}
