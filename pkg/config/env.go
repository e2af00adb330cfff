package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	PaymentProviderPaystack = "paystack"
	PaymentProviderSquare   = "square"

	ShippingTierPickup = "pickup"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvAdminEmail        = "STOREFRONT_ADMIN_EMAIL"
	EnvAdminPasswordHash = "STOREFRONT_ADMIN_PASSWORD_HASH"

	EnvShippingTiers = "STOREFRONT_SHIPPING_TIERS"

	EnvDiscountEnabled    = "STOREFRONT_DISCOUNT_ENABLED"
	EnvDiscountPercentage = "STOREFRONT_DISCOUNT_PERCENTAGE"
	EnvDiscountStartsAt   = "STOREFRONT_DISCOUNT_STARTS_AT"
	EnvDiscountEndsAt     = "STOREFRONT_DISCOUNT_ENDS_AT"

	EnvPaymentProvider   = "STOREFRONT_PAYMENT_PROVIDER"
	EnvPaystackSecret    = "STOREFRONT_PAYSTACK_SECRET"
	EnvSquareAccessToken = "STOREFRONT_SQUARE_ACCESS_TOKEN"

	EnvPubSubOrdersTopic = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
