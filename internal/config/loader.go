package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"pulse/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("broker.kafka.mail_topic", constants.DefaultMailTopic)
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("auth.bcrypt_cost", constants.DefaultBcryptCost)
	viper.SetDefault("auth.jwt.access_ttl", constants.DefaultAccessTokenTTL)
	viper.SetDefault("auth.jwt.refresh_ttl", constants.DefaultRefreshTokenTTL)
	viper.SetDefault("auth.jwt.issuer", constants.DefaultTokenIssuer)
	viper.SetDefault("auth.google.token_info_url", constants.GoogleTokenInfoURL)
	viper.SetDefault("auth.google.timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("management.export_timeframe_days", constants.GDPRExportTimeframeDays)
	viper.SetDefault("management.max_email_requests", constants.MaxEmailRequests)
	viper.SetDefault("management.confirmation_cooldown", constants.ConfirmationCooldown)

	viper.SetDefault("dashboard.default_period", constants.DefaultPeriod)
	viper.SetDefault("dashboard.default_time_bucket", constants.DefaultTimeBucket)
	viper.SetDefault("dashboard.compare_suffix", constants.CompareSuffix)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.mail_topic", "BROKER_KAFKA_MAIL_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("auth.jwt.access_secret", "AUTH_JWT_ACCESS_SECRET")
	viper.BindEnv("auth.jwt.refresh_secret", "AUTH_JWT_REFRESH_SECRET")
	viper.BindEnv("auth.google.client_id", "AUTH_GOOGLE_CLIENT_ID")

	viper.BindEnv("management.selfhosted", "MANAGEMENT_SELFHOSTED")
	viper.BindEnv("management.client_url", "MANAGEMENT_CLIENT_URL")

	viper.BindEnv("mail.enabled", "MAIL_ENABLED")
	viper.BindEnv("mail.from", "MAIL_FROM")
	viper.BindEnv("mail.host", "MAIL_HOST")
	viper.BindEnv("mail.port", "MAIL_PORT")
	viper.BindEnv("mail.user", "MAIL_USER")
	viper.BindEnv("mail.password", "MAIL_PASSWORD")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	viper.BindEnv("tracing.environment", "TRACING_ENVIRONMENT")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
