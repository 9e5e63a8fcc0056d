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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	VNPay        VNPayConfig
	Payments     PaymentsConfig
	Stats        StatsConfig
	Cron         CronConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PHONESHOP_APP_ENV" required:"true"`
	Port         string   `envconfig:"PHONESHOP_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PHONESHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PHONESHOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"PHONESHOP_LOG_FORMAT" default:"json"`
	TimeZone     string   `envconfig:"PHONESHOP_APP_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	CORSOrigins  []string `envconfig:"PHONESHOP_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the merchant time zone used for day boundaries and gateway timestamps.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

type DBConfig struct {
	DSN    string `envconfig:"PHONESHOP_DB_DSN"`
	Driver string `envconfig:"PHONESHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PHONESHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"PHONESHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PHONESHOP_DB_USER"`
	LegacyPassword string `envconfig:"PHONESHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"PHONESHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"PHONESHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PHONESHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PHONESHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PHONESHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PHONESHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PHONESHOP_REDIS_URL"`
	Address      string        `envconfig:"PHONESHOP_REDIS_ADDR"`
	Password     string        `envconfig:"PHONESHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PHONESHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PHONESHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PHONESHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PHONESHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PHONESHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PHONESHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig verifies bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string `envconfig:"PHONESHOP_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PHONESHOP_JWT_ISSUER" required:"true"`
	// ExpirationMinutes only applies to tokens minted locally (tests, dev tooling).
	ExpirationMinutes int `envconfig:"PHONESHOP_JWT_EXPIRATION_MINUTES" default:"60"`
	// Leeway absorbs clock skew between this service and the identity service.
	Leeway time.Duration `envconfig:"PHONESHOP_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PHONESHOP_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PHONESHOP_AUTO_MIGRATE" default:"false"`
}

type VNPayConfig struct {
	TmnCode    string        `envconfig:"PHONESHOP_VNPAY_TMN_CODE" required:"true"`
	HashSecret string        `envconfig:"PHONESHOP_VNPAY_HASH_SECRET" required:"true"`
	PayURL     string        `envconfig:"PHONESHOP_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL  string        `envconfig:"PHONESHOP_VNPAY_RETURN_URL" required:"true"`
	Locale     string        `envconfig:"PHONESHOP_VNPAY_LOCALE" default:"vn"`
	Expiry     time.Duration `envconfig:"PHONESHOP_VNPAY_EXPIRY" default:"15m"`
}

type PaymentsConfig struct {
	CallbackReplayTTL time.Duration `envconfig:"PHONESHOP_PAYMENTS_CALLBACK_REPLAY_TTL" default:"72h"`
	// UnpaidExpiryGrace is added to the gateway expiry before an unpaid
	// gateway order is cancelled and restocked.
	UnpaidExpiryGrace time.Duration `envconfig:"PHONESHOP_PAYMENTS_UNPAID_EXPIRY_GRACE" default:"30m"`
}

// UnpaidExpiryWindow is how long an unpaid gateway order keeps its stock.
func (c *Config) UnpaidExpiryWindow() time.Duration {
	return c.VNPay.Expiry + c.Payments.UnpaidExpiryGrace
}

type StatsConfig struct {
	CacheTTL time.Duration `envconfig:"PHONESHOP_STATS_CACHE_TTL" default:"30s"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"PHONESHOP_CRON_INTERVAL" default:"5m"`
	LockTTL    time.Duration `envconfig:"PHONESHOP_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"PHONESHOP_CRON_JOB_TIMEOUT" default:"2m"`
	BatchSize  int           `envconfig:"PHONESHOP_CRON_BATCH_SIZE" default:"100"`
}

// KafkaConfig points the outbox publisher at the broker that fans order
// events out to downstream consumers.
type KafkaConfig struct {
	Brokers  []string `envconfig:"PHONESHOP_KAFKA_BROKERS"`
	Topic    string   `envconfig:"PHONESHOP_KAFKA_TOPIC" default:"phoneshop.order-events"`
	ClientID string   `envconfig:"PHONESHOP_KAFKA_CLIENT_ID" default:"phoneshop-outbox"`
}

// Enabled reports whether at least one non-blank broker is configured.
func (k KafkaConfig) Enabled() bool {
	for _, b := range k.Brokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PHONESHOP_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"PHONESHOP_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"PHONESHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"PHONESHOP_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	// Retention is how long published rows are kept before the cron worker prunes them.
	Retention time.Duration `envconfig:"PHONESHOP_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = DefaultSQLiteDSN
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
