package config

// EnvPrefix namespaces every Kasuwa environment variable.
const EnvPrefix = "kasuwa"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "KASUWA_APP_ENV"
	EnvPort     = "KASUWA_APP_PORT"
	EnvDBDSN    = "KASUWA_DB_DSN"
	EnvDBHost   = "KASUWA_DB_HOST"
	EnvDBUser   = "KASUWA_DB_USER"
	EnvDBName   = "KASUWA_DB_NAME"
	EnvRedisURL = "KASUWA_REDIS_URL"

	EnvJWTSecret  = "KASUWA_JWT_SECRET"
	EnvJWTIssuer  = "KASUWA_JWT_ISSUER"
	EnvJWTExpMins = "KASUWA_JWT_EXPIRATION_MINUTES"

	EnvPaystackSecretKey = "KASUWA_PAYSTACK_SECRET_KEY"

	EnvGCPProjectID    = "KASUWA_GCP_PROJECT_ID"
	EnvPubSubDomainSub = "KASUWA_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
