package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	DiscountCodes DiscountCodesConfig
	Notifications NotificationsConfig
	Payouts       PayoutsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"AFFILIATEZ_APP_ENV" required:"true"`
	Port         string   `envconfig:"AFFILIATEZ_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"AFFILIATEZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"AFFILIATEZ_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"AFFILIATEZ_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"AFFILIATEZ_DB_DSN"`

	LegacyHost     string `envconfig:"AFFILIATEZ_DB_HOST"`
	LegacyPort     int    `envconfig:"AFFILIATEZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AFFILIATEZ_DB_USER"`
	LegacyPassword string `envconfig:"AFFILIATEZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"AFFILIATEZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"AFFILIATEZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AFFILIATEZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AFFILIATEZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AFFILIATEZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AFFILIATEZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AFFILIATEZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AFFILIATEZ_REDIS_ADDR"`
	Password     string        `envconfig:"AFFILIATEZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"AFFILIATEZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AFFILIATEZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AFFILIATEZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AFFILIATEZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AFFILIATEZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AFFILIATEZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AFFILIATEZ_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AFFILIATEZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AFFILIATEZ_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"AFFILIATEZ_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"AFFILIATEZ_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"AFFILIATEZ_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"AFFILIATEZ_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"AFFILIATEZ_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AFFILIATEZ_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"AFFILIATEZ_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AFFILIATEZ_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AFFILIATEZ_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AFFILIATEZ_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AffiliatesTopic          string `envconfig:"AFFILIATEZ_PUBSUB_AFFILIATES_TOPIC" default:"affiliatez-affiliate-events"`
	PayoutsTopic             string `envconfig:"AFFILIATEZ_PUBSUB_PAYOUTS_TOPIC" default:"affiliatez-payout-events"`
	NotificationSubscription string `envconfig:"AFFILIATEZ_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	PayoutsSubscription      string `envconfig:"AFFILIATEZ_PUBSUB_PAYOUTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AFFILIATEZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AFFILIATEZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AFFILIATEZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"AFFILIATEZ_OUTBOX_RETENTION_DAYS" default:"30"`
}

// DiscountCodesConfig points at the external discount code service. An empty
// base URL selects the local generator.
type DiscountCodesConfig struct {
	BaseURL     string        `envconfig:"AFFILIATEZ_DISCOUNT_CODES_BASE_URL"`
	APIKey      string        `envconfig:"AFFILIATEZ_DISCOUNT_CODES_API_KEY"`
	Timeout     time.Duration `envconfig:"AFFILIATEZ_DISCOUNT_CODES_TIMEOUT" default:"3s"`
	LocalLen    int           `envconfig:"AFFILIATEZ_DISCOUNT_CODES_LOCAL_LENGTH" default:"8"`
	LocalPrefix string        `envconfig:"AFFILIATEZ_DISCOUNT_CODES_LOCAL_PREFIX" default:"AFF"`
}

type NotificationsConfig struct {
	Timeout time.Duration `envconfig:"AFFILIATEZ_NOTIFICATIONS_TIMEOUT" default:"2s"`
}

type PayoutsConfig struct {
	SweepInterval time.Duration `envconfig:"AFFILIATEZ_PAYOUT_SWEEP_INTERVAL" default:"24h"`
	LockTTL       time.Duration `envconfig:"AFFILIATEZ_PAYOUT_LOCK_TTL" default:"5m"`
	SweepLimit    int           `envconfig:"AFFILIATEZ_PAYOUT_SWEEP_LIMIT" default:"500"`
	ResubmitAfter time.Duration `envconfig:"AFFILIATEZ_PAYOUT_RESUBMIT_AFTER" default:"24h"`
}

func (p PayoutsConfig) validate() error {
	if p.SweepInterval <= 0 {
		return fmt.Errorf("%s must be positive", EnvPayoutSweepInterval)
	}
	if p.LockTTL <= 0 {
		return fmt.Errorf("payout lock ttl must be positive")
	}
	if p.ResubmitAfter <= 0 {
		return fmt.Errorf("%s must be positive", EnvPayoutResubmitAfter)
	}
	return nil
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
