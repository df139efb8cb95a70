package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-backend/config"
	"storefront-backend/internal/model"
	"storefront-backend/internal/store"
)

// Backend identifies the storage engine behind a database URI.
type Backend string

const (
	BackendMongo    Backend = "mongo"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// BackendFor picks the backend from the URI scheme.
func BackendFor(uri string) (Backend, error) {
	switch {
	case uri == "":
		return "", fmt.Errorf("database uri is not configured")
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return BackendMongo, nil
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return BackendRedis, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"), strings.Contains(uri, "host="):
		return BackendPostgres, nil
	case strings.HasPrefix(uri, "sqlite://"), strings.HasPrefix(uri, "file:"):
		return BackendSQLite, nil
	}
	return "", fmt.Errorf("unsupported database uri scheme in %q", redact(uri))
}

// Open connects to the configured backend and prepares it for use.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (store.Store, error) {
	backend, err := BackendFor(cfg.URI)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendMongo:
		return openMongo(ctx, cfg)
	case BackendRedis:
		return openRedis(ctx, cfg)
	case BackendPostgres:
		return openGorm(ctx, postgres.Open(cfg.URI), cfg)
	default:
		return openGorm(ctx, sqlite.Open(strings.TrimPrefix(cfg.URI, "sqlite://")), cfg)
	}
}

func openMongo(ctx context.Context, cfg *config.DatabaseConfig) (store.Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := store.NewMongoStore(client, cfg.Name)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func openRedis(ctx context.Context, cfg *config.DatabaseConfig) (store.Store, error) {
	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid redis uri: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return store.NewRedisStore(rdb), nil
}

func openGorm(ctx context.Context, dialector gorm.Dialector, cfg *config.DatabaseConfig) (store.Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&model.PushSubscription{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}
	return store.NewGormStore(db), nil
}

// redact drops credentials from a URI before it is logged.
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "<redacted>"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
