package config

const (
	EnvPrefix = "HOROLOGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "HOROLOGE_APP_ENV"
	EnvPort     = "HOROLOGE_APP_PORT"
	EnvLogLevel = "HOROLOGE_LOG_LEVEL"

	EnvDBDSN  = "HOROLOGE_DB_DSN"
	EnvDBHost = "HOROLOGE_DB_HOST"
	EnvDBUser = "HOROLOGE_DB_USER"
	EnvDBName = "HOROLOGE_DB_NAME"

	EnvRedisURL = "HOROLOGE_REDIS_URL"

	EnvRazorpayKeyID     = "HOROLOGE_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "HOROLOGE_RAZORPAY_KEY_SECRET"
	EnvRazorpaySignature = "HOROLOGE_RAZORPAY_REQUIRE_SIGNATURE"

	EnvCheckoutDefaultShipping = "HOROLOGE_CHECKOUT_DEFAULT_SHIPPING_PAISE"
	EnvCheckoutOrderServiceURL = "HOROLOGE_CHECKOUT_ORDER_SERVICE_URL"

	EnvAdminJWTSecret = "HOROLOGE_ADMIN_JWT_SECRET"

	EnvGCPProjectID      = "HOROLOGE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "HOROLOGE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
