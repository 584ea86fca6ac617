package config

const EnvPrefix = "AFFILIATEZ"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "AFFILIATEZ_APP_ENV"
	EnvPort         = "AFFILIATEZ_APP_PORT"
	EnvLogLevel     = "AFFILIATEZ_LOG_LEVEL"
	EnvLogWarnStack = "AFFILIATEZ_LOG_WARN_STACK"

	EnvDBDSN      = "AFFILIATEZ_DB_DSN"
	EnvDBHost     = "AFFILIATEZ_DB_HOST"
	EnvDBPort     = "AFFILIATEZ_DB_PORT"
	EnvDBUser     = "AFFILIATEZ_DB_USER"
	EnvDBPassword = "AFFILIATEZ_DB_PASSWORD"
	EnvDBName     = "AFFILIATEZ_DB_NAME"
	EnvDBSSLMode  = "AFFILIATEZ_DB_SSLMODE"

	EnvRedisURL = "AFFILIATEZ_REDIS_URL"

	EnvJWTSecret  = "AFFILIATEZ_JWT_SECRET"
	EnvJWTIssuer  = "AFFILIATEZ_JWT_ISSUER"
	EnvJWTExpMins = "AFFILIATEZ_JWT_EXPIRATION_MINUTES"

	EnvAutoMigrate = "AFFILIATEZ_AUTO_MIGRATE"

	EnvGCPProjectID = "AFFILIATEZ_GCP_PROJECT_ID"

	EnvPubSubAffiliatesTopic = "AFFILIATEZ_PUBSUB_AFFILIATES_TOPIC"
	EnvPubSubPayoutsTopic    = "AFFILIATEZ_PUBSUB_PAYOUTS_TOPIC"
	EnvPubSubNotificationSub = "AFFILIATEZ_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubPayoutsSub      = "AFFILIATEZ_PUBSUB_PAYOUTS_SUBSCRIPTION"

	EnvDiscountCodesBaseURL = "AFFILIATEZ_DISCOUNT_CODES_BASE_URL"
	EnvDiscountCodesAPIKey  = "AFFILIATEZ_DISCOUNT_CODES_API_KEY"
	EnvDiscountCodesTimeout = "AFFILIATEZ_DISCOUNT_CODES_TIMEOUT"

	EnvOutboxRetentionDays = "AFFILIATEZ_OUTBOX_RETENTION_DAYS"
	EnvPayoutSweepInterval = "AFFILIATEZ_PAYOUT_SWEEP_INTERVAL"
	EnvPayoutResubmitAfter = "AFFILIATEZ_PAYOUT_RESUBMIT_AFTER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
