package config

const (
	EnvPrefix = "NURSERY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "NURSERY_APP_ENV"
	EnvPort     = "NURSERY_APP_PORT"
	EnvLogLevel = "NURSERY_LOG_LEVEL"

	EnvDBDSN  = "NURSERY_DB_DSN"
	EnvDBHost = "NURSERY_DB_HOST"
	EnvDBUser = "NURSERY_DB_USER"
	EnvDBName = "NURSERY_DB_NAME"

	EnvRedisURL = "NURSERY_REDIS_URL"

	EnvShopifyShopDomain    = "NURSERY_SHOPIFY_SHOP_DOMAIN"
	EnvShopifyAccessToken   = "NURSERY_SHOPIFY_ACCESS_TOKEN"
	EnvShopifyWebhookSecret = "NURSERY_SHOPIFY_WEBHOOK_SECRET"

	EnvWooStoreURL       = "NURSERY_WOO_STORE_URL"
	EnvWooConsumerKey    = "NURSERY_WOO_CONSUMER_KEY"
	EnvWooConsumerSecret = "NURSERY_WOO_CONSUMER_SECRET"
	EnvWooWebhookSecret  = "NURSERY_WOO_WEBHOOK_SECRET"

	EnvSyncBaseDelay    = "NURSERY_SYNC_BASE_DELAY"
	EnvReconcileSLA     = "NURSERY_RECONCILE_SLA_THRESHOLD"
	EnvPubSubOrderTopic = "NURSERY_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
