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
	DB           DBConfig
	Redis        RedisConfig
	Razorpay     RazorpayConfig
	Checkout     CheckoutConfig
	Coupons      CouponsConfig
	Admin        AdminConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HOROLOGE_APP_ENV" required:"true"`
	Port         string `envconfig:"HOROLOGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HOROLOGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HOROLOGE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"HOROLOGE_LOG_FORMAT" default:"json"`
	LogNoColor   bool   `envconfig:"HOROLOGE_LOG_NO_COLOR" default:"false"`
	CORSOrigins  string `envconfig:"HOROLOGE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type DBConfig struct {
	DSN    string `envconfig:"HOROLOGE_DB_DSN"`
	Driver string `envconfig:"HOROLOGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOROLOGE_DB_HOST"`
	LegacyPort     int    `envconfig:"HOROLOGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOROLOGE_DB_USER"`
	LegacyPassword string `envconfig:"HOROLOGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOROLOGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOROLOGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOROLOGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOROLOGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOROLOGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOROLOGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"HOROLOGE_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOROLOGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOROLOGE_REDIS_ADDR"`
	Password     string        `envconfig:"HOROLOGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOROLOGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOROLOGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOROLOGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOROLOGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOROLOGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOROLOGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"HOROLOGE_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string `envconfig:"HOROLOGE_RAZORPAY_KEY_SECRET" required:"true"`
	Currency  string `envconfig:"HOROLOGE_RAZORPAY_CURRENCY" default:"INR"`
	// RequireSignature rejects verify-payment calls that omit razorpay_signature.
	// Set it to false only for legacy callers that cannot forward the signature.
	RequireSignature bool `envconfig:"HOROLOGE_RAZORPAY_REQUIRE_SIGNATURE" default:"true"`
}

type CheckoutConfig struct {
	// DefaultShippingPaise applies when no collection settings row exists or its shipping charge is NULL.
	DefaultShippingPaise int64         `envconfig:"HOROLOGE_CHECKOUT_DEFAULT_SHIPPING_PAISE" default:"5000"`
	CartTTL              time.Duration `envconfig:"HOROLOGE_CHECKOUT_CART_TTL" default:"168h"`
	AttemptTTL           time.Duration `envconfig:"HOROLOGE_CHECKOUT_ATTEMPT_TTL" default:"24h"`
	SubmitLockTTL        time.Duration `envconfig:"HOROLOGE_CHECKOUT_SUBMIT_LOCK_TTL" default:"30m"`
	StepLockTTL          time.Duration `envconfig:"HOROLOGE_CHECKOUT_STEP_LOCK_TTL" default:"30s"`
	// OrderServiceURL points the orchestrator at a remote create-order/verify-payment
	// deployment. Empty means the in-process order service is used.
	OrderServiceURL     string        `envconfig:"HOROLOGE_CHECKOUT_ORDER_SERVICE_URL"`
	OrderServiceTimeout time.Duration `envconfig:"HOROLOGE_CHECKOUT_ORDER_SERVICE_TIMEOUT" default:"15s"`
}

func (c CheckoutConfig) validate() error {
	if c.DefaultShippingPaise < 0 {
		return fmt.Errorf("%s must be >= 0", EnvCheckoutDefaultShipping)
	}
	if c.OrderServiceURL != "" {
		if _, err := url.ParseRequestURI(c.OrderServiceURL); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCheckoutOrderServiceURL, err)
		}
	}
	return nil
}

type CouponsConfig struct {
	CacheTTL time.Duration `envconfig:"HOROLOGE_COUPONS_CACHE_TTL" default:"60s"`
}

type AdminConfig struct {
	JWTSecret string        `envconfig:"HOROLOGE_ADMIN_JWT_SECRET" required:"true"`
	JWTIssuer string        `envconfig:"HOROLOGE_ADMIN_JWT_ISSUER" default:"horologe"`
	TokenTTL  time.Duration `envconfig:"HOROLOGE_ADMIN_TOKEN_TTL" default:"12h"`

	// Username and PasswordHash enable the back office login endpoint.
	// Leaving the hash empty disables password login.
	Username     string `envconfig:"HOROLOGE_ADMIN_USERNAME" default:"admin"`
	PasswordHash string `envconfig:"HOROLOGE_ADMIN_PASSWORD_HASH"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"HOROLOGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"HOROLOGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"HOROLOGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"HOROLOGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"HOROLOGE_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	CouponWindow   time.Duration `envconfig:"HOROLOGE_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponIPLimit  int           `envconfig:"HOROLOGE_RATE_LIMIT_COUPON_IP_LIMIT" default:"20"`
	TrackWindow    time.Duration `envconfig:"HOROLOGE_RATE_LIMIT_TRACK_WINDOW" default:"1m"`
	TrackIPLimit   int           `envconfig:"HOROLOGE_RATE_LIMIT_TRACK_IP_LIMIT" default:"30"`
	LoginWindow    time.Duration `envconfig:"HOROLOGE_RATE_LIMIT_LOGIN_WINDOW" default:"15m"`
	LoginIPLimit   int           `envconfig:"HOROLOGE_RATE_LIMIT_LOGIN_IP_LIMIT" default:"10"`
	ContactWindow  time.Duration `envconfig:"HOROLOGE_RATE_LIMIT_CONTACT_WINDOW" default:"1h"`
	ContactIPLimit int           `envconfig:"HOROLOGE_RATE_LIMIT_CONTACT_IP_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite     bool `envconfig:"HOROLOGE_USE_SQLITE" default:"false"`
	AutoMigrate   bool `envconfig:"HOROLOGE_AUTO_MIGRATE" default:"false"`
	PublishEvents bool `envconfig:"HOROLOGE_FEATURE_PUBLISH_EVENTS" default:"true"`
	SalesReports  bool `envconfig:"HOROLOGE_FEATURE_SALES_REPORTS" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HOROLOGE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HOROLOGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HOROLOGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"HOROLOGE_PUBSUB_ORDERS_TOPIC" default:"horologe-order-events"`
	AnalyticsSubscription string `envconfig:"HOROLOGE_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"horologe-order-analytics"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"HOROLOGE_BIGQUERY_DATASET" default:"storefront"`
	OrderEventsTable  string `envconfig:"HOROLOGE_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	InsertMaxAttempts int    `envconfig:"HOROLOGE_BIGQUERY_INSERT_MAX_ATTEMPTS" default:"3"`
	MaxBytesBilled    int64  `envconfig:"HOROLOGE_BIGQUERY_MAX_BYTES_BILLED" default:"1073741824"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"HOROLOGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOROLOGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOROLOGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOROLOGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval            time.Duration `envconfig:"HOROLOGE_CRON_INTERVAL" default:"15m"`
	LockTTL             time.Duration `envconfig:"HOROLOGE_CRON_LOCK_TTL" default:"10m"`
	UnpaidOrderTTL      time.Duration `envconfig:"HOROLOGE_CRON_UNPAID_ORDER_TTL" default:"48h"`
	ExpireBatchSize     int           `envconfig:"HOROLOGE_CRON_EXPIRE_BATCH_SIZE" default:"100"`
	OutboxRetentionDays int           `envconfig:"HOROLOGE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}
