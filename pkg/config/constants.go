package config

const (
	EnvPrefix = "DUKAPAY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv = "DUKAPAY_APP_ENV"
	EnvPort   = "DUKAPAY_APP_PORT"

	EnvDBDSN  = "DUKAPAY_DB_DSN"
	EnvDBHost = "DUKAPAY_DB_HOST"
	EnvDBUser = "DUKAPAY_DB_USER"
	EnvDBName = "DUKAPAY_DB_NAME"

	EnvRedisURL = "DUKAPAY_REDIS_URL"

	EnvJWTSecret = "DUKAPAY_JWT_SECRET"
	EnvJWTIssuer = "DUKAPAY_JWT_ISSUER"

	EnvUseSQLite = "DUKAPAY_USE_SQLITE"

	EnvCallbackSecret  = "DUKAPAY_PAYMENT_CALLBACK_SECRET"
	EnvProviderTimeout = "DUKAPAY_PAYMENT_PROVIDER_TIMEOUT"
	EnvPollingTimeout  = "DUKAPAY_PAYMENT_POLLING_TIMEOUT"
	EnvShippingFlat    = "DUKAPAY_PRICING_SHIPPING_FLAT_TZS"
	EnvTaxRate         = "DUKAPAY_PRICING_TAX_RATE_PERCENT"

	EnvAzamPayClientID = "DUKAPAY_AZAMPAY_CLIENT_ID"
	EnvAzamPayEnv      = "DUKAPAY_AZAMPAY_ENV"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
