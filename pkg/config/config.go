package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	CORS         CORSConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	AzamPay      AzamPayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DUKAPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"DUKAPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DUKAPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DUKAPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CORSConfig lists the storefront origins allowed to call the customer API.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"DUKAPAY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         int      `envconfig:"DUKAPAY_CORS_MAX_AGE" default:"300"`
}

type ServiceConfig struct {
	Kind string `envconfig:"DUKAPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DUKAPAY_DB_DSN"`
	Driver string `envconfig:"DUKAPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DUKAPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"DUKAPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DUKAPAY_DB_USER"`
	LegacyPassword string `envconfig:"DUKAPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"DUKAPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"DUKAPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DUKAPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DUKAPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DUKAPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DUKAPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DUKAPAY_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DUKAPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DUKAPAY_REDIS_ADDR"`
	Password     string        `envconfig:"DUKAPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"DUKAPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DUKAPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DUKAPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DUKAPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DUKAPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DUKAPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"DUKAPAY_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"DUKAPAY_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DUKAPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DUKAPAY_AUTO_MIGRATE" default:"false"`
}

// PaymentsConfig holds the orchestration knobs shared by checkout, retry and webhooks.
type PaymentsConfig struct {
	ProviderTimeout  time.Duration `envconfig:"DUKAPAY_PAYMENT_PROVIDER_TIMEOUT" default:"30s"`
	PollingTimeout   time.Duration `envconfig:"DUKAPAY_PAYMENT_POLLING_TIMEOUT" default:"5m"`
	OrderTTL         time.Duration `envconfig:"DUKAPAY_PAYMENT_ORDER_TTL" default:"72h"`
	CallbackSecret   string        `envconfig:"DUKAPAY_PAYMENT_CALLBACK_SECRET" required:"true"`
	SignatureHeader  string        `envconfig:"DUKAPAY_PAYMENT_SIGNATURE_HEADER" default:"X-Azampay-Signature"`
	WebhookDedupeTTL time.Duration `envconfig:"DUKAPAY_PAYMENT_WEBHOOK_DEDUPE_TTL" default:"168h"`
	ShippingFlatTZS  string        `envconfig:"DUKAPAY_PRICING_SHIPPING_FLAT_TZS" default:"0"`
	TaxRatePercent   string        `envconfig:"DUKAPAY_PRICING_TAX_RATE_PERCENT" default:"0"`
}

// ShippingFlat returns the configured flat shipping fee.
func (p PaymentsConfig) ShippingFlat() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(p.ShippingFlatTZS))
	if err != nil {
		return decimal.Zero
	}
	return value
}

// TaxRate returns the configured tax rate expressed as a fraction.
func (p PaymentsConfig) TaxRate() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(p.TaxRatePercent))
	if err != nil {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(100))
}

func (p PaymentsConfig) validate() error {
	if _, err := decimal.NewFromString(strings.TrimSpace(p.ShippingFlatTZS)); err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvShippingFlat, err)
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(p.TaxRatePercent)); err != nil {
		return fmt.Errorf("%s must be numeric: %w", EnvTaxRate, err)
	}
	if p.ProviderTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvProviderTimeout)
	}
	return nil
}

// AzamPayConfig carries the credentials for the AzamPay mobile-money aggregator.
type AzamPayConfig struct {
	Env             string        `envconfig:"DUKAPAY_AZAMPAY_ENV" default:"sandbox"`
	AppName         string        `envconfig:"DUKAPAY_AZAMPAY_APP_NAME"`
	ClientID        string        `envconfig:"DUKAPAY_AZAMPAY_CLIENT_ID"`
	ClientSecret    string        `envconfig:"DUKAPAY_AZAMPAY_CLIENT_SECRET"`
	APIKey          string        `envconfig:"DUKAPAY_AZAMPAY_API_KEY"`
	AuthBaseURL     string        `envconfig:"DUKAPAY_AZAMPAY_AUTH_BASE_URL"`
	CheckoutBaseURL string        `envconfig:"DUKAPAY_AZAMPAY_CHECKOUT_BASE_URL"`
	TokenSkew       time.Duration `envconfig:"DUKAPAY_AZAMPAY_TOKEN_SKEW" default:"60s"`
}

// Environment returns the normalized AzamPay environment (sandbox/production).
func (a AzamPayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(a.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DUKAPAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DUKAPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DUKAPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"DUKAPAY_PUBSUB_ORDERS_TOPIC" default:"dukapay-orders"`
	PaymentsTopic string `envconfig:"DUKAPAY_PUBSUB_PAYMENTS_TOPIC" default:"dukapay-payments"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DUKAPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DUKAPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DUKAPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"DUKAPAY_CRON_INTERVAL" default:"15m"`
	LockTTL         time.Duration `envconfig:"DUKAPAY_CRON_LOCK_TTL" default:"10m"`
	BatchSize       int           `envconfig:"DUKAPAY_CRON_BATCH_SIZE" default:"200"`
	OutboxRetention time.Duration `envconfig:"DUKAPAY_CRON_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = "file:dukapay.db?_busy_timeout=5000"
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
