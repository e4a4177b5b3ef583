package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pulse/internal/filters"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateKafka(cfg.Broker.Kafka); err != nil {
		errs = append(errs, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errs = append(errs, err)
	}

	if err := validateAuth(cfg.Auth); err != nil {
		errs = append(errs, err)
	}

	if err := validateManagement(cfg.Management); err != nil {
		errs = append(errs, err)
	}

	if err := validateDashboard(cfg.Dashboard); err != nil {
		errs = append(errs, err)
	}

	if err := validateMail(cfg.Mail); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.InitialInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

const minSecretLength = 32

func validateAuth(cfg AuthConfig) error {
	if len(cfg.JWT.AccessSecret) < minSecretLength {
		return &ValidationError{
			Field:   "auth.jwt.access_secret",
			Message: fmt.Sprintf("secret must be at least %d characters", minSecretLength),
		}
	}

	if len(cfg.JWT.RefreshSecret) < minSecretLength {
		return &ValidationError{
			Field:   "auth.jwt.refresh_secret",
			Message: fmt.Sprintf("secret must be at least %d characters", minSecretLength),
		}
	}

	if cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		return &ValidationError{
			Field:   "auth.jwt.refresh_secret",
			Message: "refresh secret must differ from access secret",
		}
	}

	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return &ValidationError{
			Field:   "auth.jwt",
			Message: "token lifetimes must be positive",
		}
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return &ValidationError{
			Field:   "auth.bcrypt_cost",
			Message: fmt.Sprintf("cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost),
		}
	}

	return nil
}

func validateManagement(cfg ManagementConfig) error {
	if cfg.ExportTimeframeDays < 0 {
		return &ValidationError{
			Field:   "management.export_timeframe_days",
			Message: "timeframe must be non-negative",
		}
	}

	if cfg.MaxEmailRequests < 1 {
		return &ValidationError{
			Field:   "management.max_email_requests",
			Message: "at least one confirmation request must be allowed",
		}
	}

	if cfg.ClientURL != "" && !strings.HasPrefix(cfg.ClientURL, "http://") && !strings.HasPrefix(cfg.ClientURL, "https://") {
		return &ValidationError{
			Field:   "management.client_url",
			Message: "client URL must start with http:// or https://",
		}
	}

	return nil
}

func validateDashboard(cfg DashboardConfig) error {
	if !filters.IsPeriodValid(cfg.DefaultPeriod) {
		return &ValidationError{
			Field:   "dashboard.default_period",
			Message: fmt.Sprintf("unknown period: %s", cfg.DefaultPeriod),
		}
	}

	if !filters.IsTimeBucketValid(cfg.DefaultTimeBucket) {
		return &ValidationError{
			Field:   "dashboard.default_time_bucket",
			Message: fmt.Sprintf("unknown time bucket: %s", cfg.DefaultTimeBucket),
		}
	}

	if cfg.CompareSuffix == "" {
		return &ValidationError{
			Field:   "dashboard.compare_suffix",
			Message: "comparison filters need a non-empty suffix",
		}
	}

	return nil
}

func validateMail(cfg MailConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Host == "" {
		return &ValidationError{
			Field:   "mail.host",
			Message: "SMTP host is required when mail is enabled",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "mail.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if !strings.Contains(cfg.From, "@") {
		return &ValidationError{
			Field:   "mail.from",
			Message: "sender address is required when mail is enabled",
		}
	}

	return nil
}
