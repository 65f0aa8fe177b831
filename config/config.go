package config

import "time"

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"harmonia-api"`
	Port                          int    `env:"PORT" env-default:"3000"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	Version                       string `env:"VERSION" env-default:"dev"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"harmonia"`
	// Database SSL Mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Auth enabled flag. When false, the X-User-ID test auth header is used.
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"true"`
	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:""`

	// Completion service base URL (OpenAI-compatible)
	CompletionBaseURL string `env:"COMPLETION_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	// Completion service API key
	CompletionAPIKey string `env:"COMPLETION_API_KEY" env-default:""`
	// Model used for mediation analyses
	CompletionModel string `env:"COMPLETION_MODEL" env-default:"google/gemini-2.5-flash"`
	// Per-run timeout for analysis generation
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" env-default:"60s"`

	// Kafka enabled flag
	KafkaEnabled bool `env:"KAFKA_ENABLED" env-default:"false"`
	// Kafka brokers (comma-separated)
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	// Kafka topic for analysis lifecycle events
	KafkaAnalysisTopic string `env:"KAFKA_ANALYSIS_TOPIC" env-default:"harmonia.analysis"`
	// Kafka producer batch size
	KafkaBatchSize int `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	// Kafka producer batch timeout
	KafkaBatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" env-default:"1s"`
	// Kafka required acks (0, 1, -1)
	KafkaRequiredAcks int `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	// Kafka compression codec
	KafkaCompression string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Object storage endpoint for avatars
	StorageEndpoint string `env:"STORAGE_ENDPOINT" env-default:"localhost:9000"`
	// Object storage region
	StorageRegion string `env:"STORAGE_REGION" env-default:"us-east-1"`
	// Object storage access key
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY" env-default:""`
	// Object storage secret key
	StorageSecretKey string `env:"STORAGE_SECRET_KEY" env-default:""`
	// Object storage bucket for avatars
	StorageBucket string `env:"STORAGE_BUCKET" env-default:"harmonia-avatars"`
	// Object storage TLS flag
	StorageUseSSL bool `env:"STORAGE_USE_SSL" env-default:"false"`
	// Public base URL avatars are served from
	StoragePublicURL string `env:"STORAGE_PUBLIC_URL" env-default:"http://localhost:9000"`

	// Tracing enabled flag
	TracingEnabled bool `env:"TRACING_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	// OTLP insecure flag (disables TLS)
	TracingOTLPInsecure bool `env:"TRACING_OTLP_INSECURE" env-default:"true"`
}
