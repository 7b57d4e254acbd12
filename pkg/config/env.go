package config

// EnvPrefix is handed to envconfig; every field also declares its full
// variable name so lookups fall back to the unprefixed tag.
const EnvPrefix = "SMILEQUOTE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "SMILEQUOTE_APP_ENV"
	EnvPort   = "SMILEQUOTE_APP_PORT"

	EnvDBDSN  = "SMILEQUOTE_DB_DSN"
	EnvDBHost = "SMILEQUOTE_DB_HOST"
	EnvDBUser = "SMILEQUOTE_DB_USER"
	EnvDBName = "SMILEQUOTE_DB_NAME"

	EnvRedisURL = "SMILEQUOTE_REDIS_URL"

	EnvJWTSecret  = "SMILEQUOTE_JWT_SECRET"
	EnvJWTIssuer  = "SMILEQUOTE_JWT_ISSUER"
	EnvJWTExpMins = "SMILEQUOTE_JWT_EXPIRATION_MINUTES"

	EnvPricingCurrency        = "SMILEQUOTE_PRICING_CURRENCY"
	EnvPricingTotalsTolerance = "SMILEQUOTE_PRICING_TOTALS_TOLERANCE"

	EnvGCPProjectID = "SMILEQUOTE_GCP_PROJECT_ID"

	EnvPubSubQuotesTopic     = "SMILEQUOTE_PUBSUB_QUOTES_TOPIC"
	EnvPubSubPromotionsTopic = "SMILEQUOTE_PUBSUB_PROMOTIONS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
