package config

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
)

const (
	defaultShopifyAPIVersion = "2024-07"
	defaultShopifyTimeout    = 30 * time.Second
	defaultWooTimeout        = 20 * time.Second
)

// ShopifyConfig holds the credentials for one Shopify shop.
type ShopifyConfig struct {
	ShopDomain        string        `envconfig:"NURSERY_SHOPIFY_SHOP_DOMAIN"`
	AccessToken       string        `envconfig:"NURSERY_SHOPIFY_ACCESS_TOKEN"`
	APIVersion        string        `envconfig:"NURSERY_SHOPIFY_API_VERSION" default:"2024-07"`
	WebhookSecret     string        `envconfig:"NURSERY_SHOPIFY_WEBHOOK_SECRET"`
	Timeout           time.Duration `envconfig:"NURSERY_SHOPIFY_TIMEOUT" default:"30s"`
	RequestsPerSecond float64       `envconfig:"NURSERY_SHOPIFY_REQUESTS_PER_SECOND" default:"2"`
}

// Validate applies defaults and rejects missing API credentials.
func (c *ShopifyConfig) Validate() error {
	var missing []string
	c.ShopDomain = strings.TrimSpace(c.ShopDomain)
	if c.ShopDomain == "" {
		missing = append(missing, EnvShopifyShopDomain)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		missing = append(missing, EnvShopifyAccessToken)
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("shopify credentials missing: %s", strings.Join(missing, ", ")))
	}
	c.ShopDomain = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(c.ShopDomain, "https://"), "http://"), "/")
	if c.APIVersion == "" {
		c.APIVersion = defaultShopifyAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultShopifyTimeout
	}
	return nil
}

// WooCommerceConfig holds the REST credentials for one WooCommerce store.
type WooCommerceConfig struct {
	StoreURL          string        `envconfig:"NURSERY_WOO_STORE_URL"`
	ConsumerKey       string        `envconfig:"NURSERY_WOO_CONSUMER_KEY"`
	ConsumerSecret    string        `envconfig:"NURSERY_WOO_CONSUMER_SECRET"`
	WebhookSecret     string        `envconfig:"NURSERY_WOO_WEBHOOK_SECRET"`
	Timeout           time.Duration `envconfig:"NURSERY_WOO_TIMEOUT" default:"20s"`
	RequestsPerSecond float64       `envconfig:"NURSERY_WOO_REQUESTS_PER_SECOND" default:"5"`
}

// Validate applies defaults and rejects missing API credentials.
func (c *WooCommerceConfig) Validate() error {
	var missing []string
	c.StoreURL = strings.TrimRight(strings.TrimSpace(c.StoreURL), "/")
	if c.StoreURL == "" {
		missing = append(missing, EnvWooStoreURL)
	}
	if strings.TrimSpace(c.ConsumerKey) == "" {
		missing = append(missing, EnvWooConsumerKey)
	}
	if strings.TrimSpace(c.ConsumerSecret) == "" {
		missing = append(missing, EnvWooConsumerSecret)
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeConfiguration, fmt.Sprintf("woocommerce credentials missing: %s", strings.Join(missing, ", ")))
	}
	if !strings.HasPrefix(c.StoreURL, "http://") && !strings.HasPrefix(c.StoreURL, "https://") {
		c.StoreURL = "https://" + c.StoreURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultWooTimeout
	}
	return nil
}
