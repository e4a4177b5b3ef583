package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
)

// Stores are the connections behind the API: accounts and projects in
// PostgreSQL, view preferences and cooldowns in Redis, traffic in MongoDB.
type Stores struct {
	Postgres  *sql.DB
	Redis     *redis.Client
	Mongo     *mongo.Client
	Analytics *mongo.Database
}

// ConnectStores opens and pings every store. None of them is optional; when
// one fails the connections opened so far are closed again.
func ConnectStores(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*Stores, error) {
	s := &Stores{}

	db, err := connectPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	s.Postgres = db
	log.InfowCtx(ctx, "PostgreSQL connected", "host", cfg.Postgres.Host, "dbname", cfg.Postgres.DBName)

	rdb, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.Redis = rdb
	log.InfowCtx(ctx, "Redis connected", "host", cfg.Redis.Host, "db", cfg.Redis.DB)

	client, err := connectMongo(ctx, cfg.MongoDB)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.Mongo = client
	s.Analytics = client.Database(MongoDatabaseName(cfg.MongoDB))
	log.InfowCtx(ctx, "MongoDB connected", "database", s.Analytics.Name())

	return s, nil
}

func MongoDatabaseName(cfg config.MongoDBConfig) string {
	if cfg.Database == "" {
		return constants.DefaultMongoDBName
	}
	return cfg.Database
}

// PostgresDSN builds a lib/pq connection URL. Credentials are escaped.
func PostgresDSN(cfg config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

func connectPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if cfg.Host == "" {
		return nil, errors.New("database.postgres.host is required")
	}

	db, err := sql.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(constants.PostgresMaxOpenConns)
	db.SetMaxIdleConns(constants.PostgresMaxIdleConns)
	db.SetConnMaxIdleTime(constants.PostgresConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func connectMongo(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("database.mongodb.uri is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// Close releases every open connection and reports all failures.
func (s *Stores) Close(ctx context.Context) []error {
	if s == nil {
		return nil
	}

	var errs []error

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if s.Postgres != nil {
		if err := s.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if s.Mongo != nil {
		if err := s.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
