package config

const (
	EnvPrefix = "PACKFINDERZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                = "PACKFINDERZ_APP_ENV"
	EnvPort                  = "PACKFINDERZ_APP_PORT"
	EnvDBDSN                 = "PACKFINDERZ_DB_DSN"
	EnvDBHost                = "PACKFINDERZ_DB_HOST"
	EnvDBUser                = "PACKFINDERZ_DB_USER"
	EnvDBName                = "PACKFINDERZ_DB_NAME"
	EnvRedisURL              = "PACKFINDERZ_REDIS_URL"
	EnvJWTSecret             = "PACKFINDERZ_JWT_SECRET"
	EnvJWTIssuer             = "PACKFINDERZ_JWT_ISSUER"
	EnvJWTExpMins            = "PACKFINDERZ_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID          = "PACKFINDERZ_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic     = "PACKFINDERZ_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub       = "PACKFINDERZ_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvOrderPendingTTL       = "PACKFINDERZ_ORDER_PENDING_TTL"
	EnvReviewPromptThreshold = "PACKFINDERZ_REVIEW_PROMPT_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
