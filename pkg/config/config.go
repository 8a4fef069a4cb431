package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	API          APIConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Shopify      ShopifyConfig
	WooCommerce  WooCommerceConfig
	Sync         SyncConfig
	Reconcile    ReconcileConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NURSERY_APP_ENV" required:"true"`
	Port         string `envconfig:"NURSERY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"NURSERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NURSERY_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where background workers expose /metrics; empty disables.
	MetricsAddr string `envconfig:"NURSERY_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"NURSERY_SERVICE_KIND" default:"api"`
}

type APIConfig struct {
	CORSOrigins     []string      `envconfig:"NURSERY_API_CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow time.Duration `envconfig:"NURSERY_API_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"NURSERY_API_RATE_LIMIT_PER_IP" default:"120"`
	IdempotencyTTL  time.Duration `envconfig:"NURSERY_API_IDEMPOTENCY_TTL" default:"24h"`
}

type DBConfig struct {
	DSN string `envconfig:"NURSERY_DB_DSN"`

	LegacyHost     string `envconfig:"NURSERY_DB_HOST"`
	LegacyPort     int    `envconfig:"NURSERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NURSERY_DB_USER"`
	LegacyPassword string `envconfig:"NURSERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"NURSERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"NURSERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NURSERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NURSERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NURSERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NURSERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"NURSERY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NURSERY_REDIS_URL"`
	Address      string        `envconfig:"NURSERY_REDIS_ADDR"`
	Password     string        `envconfig:"NURSERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"NURSERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NURSERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NURSERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NURSERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NURSERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NURSERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NURSERY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"NURSERY_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"NURSERY_GCP_CREDENTIALS_JSON"`
	// EmulatorHost points the client at a local Pub/Sub emulator without auth.
	EmulatorHost string `envconfig:"NURSERY_PUBSUB_EMULATOR_HOST"`
	// CreateTopics creates missing topics at startup instead of failing.
	CreateTopics bool `envconfig:"NURSERY_PUBSUB_CREATE_TOPICS" default:"false"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"NURSERY_PUBSUB_ORDERS_TOPIC" default:"nursery-order-events"`
	InvoicesTopic string `envconfig:"NURSERY_PUBSUB_INVOICES_TOPIC" default:"nursery-invoice-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"NURSERY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"NURSERY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"NURSERY_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// OrderedDelivery keys messages by order so a subscriber sees a sync
	// before the operator edit that followed it.
	OrderedDelivery bool          `envconfig:"NURSERY_OUTBOX_ORDERED_DELIVERY" default:"true"`
	MaxBackoff      time.Duration `envconfig:"NURSERY_OUTBOX_MAX_BACKOFF" default:"10s"`
	Retention       time.Duration `envconfig:"NURSERY_OUTBOX_RETENTION" default:"720h"`
	RetentionEvery  time.Duration `envconfig:"NURSERY_OUTBOX_RETENTION_EVERY" default:"6h"`
}

type SyncConfig struct {
	MaxAttempts     int           `envconfig:"NURSERY_SYNC_MAX_ATTEMPTS" default:"3"`
	BaseDelay       time.Duration `envconfig:"NURSERY_SYNC_BASE_DELAY" default:"1s"`
	MaxDelay        time.Duration `envconfig:"NURSERY_SYNC_MAX_DELAY" default:"30s"`
	Randomization   float64       `envconfig:"NURSERY_SYNC_RANDOMIZATION" default:"0.2"`
	BackfillPerPage int           `envconfig:"NURSERY_SYNC_BACKFILL_PER_PAGE" default:"50"`
	WebhookDedupTTL time.Duration `envconfig:"NURSERY_SYNC_WEBHOOK_DEDUP_TTL" default:"24h"`

	CronInterval          time.Duration `envconfig:"NURSERY_SYNC_CRON_INTERVAL" default:"15m"`
	CronLockTTL           time.Duration `envconfig:"NURSERY_SYNC_CRON_LOCK_TTL" default:"30m"`
	IncrementalMaxBatches int           `envconfig:"NURSERY_SYNC_INCREMENTAL_MAX_BATCHES" default:"20"`
}

type ReconcileConfig struct {
	SLAThreshold       time.Duration `envconfig:"NURSERY_RECONCILE_SLA_THRESHOLD" default:"48h"`
	DefaultWindow      time.Duration `envconfig:"NURSERY_RECONCILE_DEFAULT_WINDOW" default:"840h"`
	DashboardWindow    time.Duration `envconfig:"NURSERY_RECONCILE_DASHBOARD_WINDOW" default:"720h"`
	WooTrackingURL     string        `envconfig:"NURSERY_RECONCILE_WOO_TRACKING_URL" default:"https://nurserynisarga.in/admin-track-order/?track_order_id=%s"`
	ShopifyTrackingURL string        `envconfig:"NURSERY_RECONCILE_SHOPIFY_TRACKING_URL" default:"https://lalitenterprise.com/pages/trackorder?channel_order_no=%s"`
	ManualTrackingURL  string        `envconfig:"NURSERY_RECONCILE_MANUAL_TRACKING_URL" default:"http://parcelx.in/tracking.php?waybill_no=%s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
