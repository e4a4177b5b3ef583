package constants

import "time"

const (
	ServiceNamespace = "pulse"
	ServiceVersion   = "1.0.0"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixViewPrefs    = "viewprefs:"
	CacheKeyPrefixConfirmation = "confirm:"
)

const (
	DefaultMailTopic = "mail"
)

const (
	PostgresMaxOpenConns    = 25
	PostgresMaxIdleConns    = 5
	PostgresConnMaxIdleTime = 5 * time.Minute
)

const (
	DefaultMongoDBName = "pulse"

	CollectionAnalytics    = "analytics"
	CollectionCustomEvents = "custom_events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultBcryptCost      = 10
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultTokenIssuer     = "pulse"
	GoogleTokenInfoURL     = "https://oauth2.googleapis.com/tokeninfo"
)

const (
	MaxEmailRequests        = 2
	GDPRExportTimeframeDays = 14
	ConfirmationCooldown    = 10 * time.Minute
	ExportDateLayout        = "2006/01/02 15:04:05"
)

const (
	DefaultPeriod     = "7d"
	DefaultTimeBucket = "day"
	CompareSuffix     = "_compare"
)

const (
	PlanNone = "none"
	PlanFree = "free"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Context keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextRoles  = "user_roles"
)
