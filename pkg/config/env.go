package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultSQLiteDSN = "file:phoneshop.db?cache=shared&_busy_timeout=5000"

	EnvAppEnv            = "PHONESHOP_APP_ENV"
	EnvPort              = "PHONESHOP_APP_PORT"
	EnvTimeZone          = "PHONESHOP_APP_TIMEZONE"
	EnvDBDSN             = "PHONESHOP_DB_DSN"
	EnvDBHost            = "PHONESHOP_DB_HOST"
	EnvDBUser            = "PHONESHOP_DB_USER"
	EnvDBName            = "PHONESHOP_DB_NAME"
	EnvRedisURL          = "PHONESHOP_REDIS_URL"
	EnvJWTSecret         = "PHONESHOP_JWT_SECRET"
	EnvJWTIssuer         = "PHONESHOP_JWT_ISSUER"
	EnvUseSQLite         = "PHONESHOP_USE_SQLITE"
	EnvVNPayTmnCode      = "PHONESHOP_VNPAY_TMN_CODE"
	EnvVNPayHashSecret   = "PHONESHOP_VNPAY_HASH_SECRET"
	EnvVNPayReturnURL    = "PHONESHOP_VNPAY_RETURN_URL"
	EnvStatsCacheTTL     = "PHONESHOP_STATS_CACHE_TTL"
	EnvCallbackReplayTTL = "PHONESHOP_PAYMENTS_CALLBACK_REPLAY_TTL"
	EnvKafkaBrokers      = "PHONESHOP_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
