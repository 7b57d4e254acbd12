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
	FeatureFlags FeatureFlagsConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	Pricing      PricingConfig
	Eventing     EventingConfig
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
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SMILEQUOTE_APP_ENV" required:"true"`
	Port         string `envconfig:"SMILEQUOTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SMILEQUOTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SMILEQUOTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SMILEQUOTE_SERVICE_KIND" default:"api"`

	ReadHeaderTimeout time.Duration `envconfig:"SMILEQUOTE_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"SMILEQUOTE_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"SMILEQUOTE_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"SMILEQUOTE_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout   time.Duration `envconfig:"SMILEQUOTE_HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SMILEQUOTE_AUTO_MIGRATE" default:"false"`
}

type DBConfig struct {
	DSN    string `envconfig:"SMILEQUOTE_DB_DSN"`
	Driver string `envconfig:"SMILEQUOTE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SMILEQUOTE_DB_HOST"`
	LegacyPort     int    `envconfig:"SMILEQUOTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SMILEQUOTE_DB_USER"`
	LegacyPassword string `envconfig:"SMILEQUOTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SMILEQUOTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SMILEQUOTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SMILEQUOTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SMILEQUOTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SMILEQUOTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SMILEQUOTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SMILEQUOTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SMILEQUOTE_REDIS_ADDR"`
	Password     string        `envconfig:"SMILEQUOTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SMILEQUOTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SMILEQUOTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SMILEQUOTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SMILEQUOTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SMILEQUOTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SMILEQUOTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SMILEQUOTE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SMILEQUOTE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SMILEQUOTE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SMILEQUOTE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SMILEQUOTE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SMILEQUOTE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SMILEQUOTE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SMILEQUOTE_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	Window          time.Duration `envconfig:"SMILEQUOTE_RATE_LIMIT_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"SMILEQUOTE_RATE_LIMIT_LOGIN_IP" default:"20"`
	LoginEmailLimit int           `envconfig:"SMILEQUOTE_RATE_LIMIT_LOGIN_EMAIL" default:"5"`
	PromoUserLimit  int           `envconfig:"SMILEQUOTE_RATE_LIMIT_PROMO_USER" default:"30"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SMILEQUOTE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	MaxAgeSeconds  int      `envconfig:"SMILEQUOTE_CORS_MAX_AGE_SECONDS" default:"300"`
}

// PricingConfig holds the knobs shared by the quote pricing paths.
type PricingConfig struct {
	Currency          string        `envconfig:"SMILEQUOTE_PRICING_CURRENCY" default:"GBP"`
	TotalsTolerance   int64         `envconfig:"SMILEQUOTE_PRICING_TOTALS_TOLERANCE" default:"1"`
	PromotionCacheTTL time.Duration `envconfig:"SMILEQUOTE_PRICING_PROMOTION_CACHE_TTL" default:"5m"`
	CatalogCacheTTL   time.Duration `envconfig:"SMILEQUOTE_PRICING_CATALOG_CACHE_TTL" default:"10m"`
}

func (p PricingConfig) validate() error {
	if p.TotalsTolerance < 0 {
		return fmt.Errorf("%s must not be negative", EnvPricingTotalsTolerance)
	}
	if strings.TrimSpace(p.Currency) == "" {
		return fmt.Errorf("%s is required", EnvPricingCurrency)
	}
	return nil
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SMILEQUOTE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SMILEQUOTE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON string `envconfig:"SMILEQUOTE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	QuotesTopic        string `envconfig:"SMILEQUOTE_PUBSUB_QUOTES_TOPIC" required:"true"`
	PromotionsTopic    string `envconfig:"SMILEQUOTE_PUBSUB_PROMOTIONS_TOPIC" required:"true"`
	QuotesSubscription string `envconfig:"SMILEQUOTE_PUBSUB_QUOTES_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SMILEQUOTE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SMILEQUOTE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SMILEQUOTE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SMILEQUOTE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"SMILEQUOTE_CRON_LOCK_TTL" default:"4m"`
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
