package config

import "time"

const (
	// Database drivers
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// Completion providers
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	// Sampling defaults used when conversation settings leave them unset
	DefaultMaxTokens   = 4096
	DefaultTemperature = 1.0

	// Conversation defaults
	DefaultConversationTitle = "New Conversation"
	AutoTitleMaxRunes        = 50

	// Default user created at bootstrap
	DefaultUserEmail = "user@example.com"
	DefaultUserName  = "Default User"

	// Provider HTTP timeouts. Streams are bounded by the request context only.
	ProviderDialTimeout   = 10 * time.Second
	ProviderHeaderTimeout = 60 * time.Second

	// Model catalog cache duration
	ModelCacheDuration = 1 * time.Hour

	// HTTP server
	ReadHeaderTimeout = 10 * time.Second
	IdleTimeout       = 60 * time.Second
	ShutdownTimeout   = 10 * time.Second

	// Request body limit, matching the original JSON limit
	MaxBodyBytes = 10 << 20

	// Postgres pool sizing
	PostgresMaxConns = 20
	PostgresMinConns = 2
)
