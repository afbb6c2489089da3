package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/zoomiesmarket/zoomies/internal/blob/s3"
	"github.com/zoomiesmarket/zoomies/internal/cache"
	"github.com/zoomiesmarket/zoomies/internal/cache/redis"
	"github.com/zoomiesmarket/zoomies/internal/config"
	"github.com/zoomiesmarket/zoomies/internal/domain"
	"github.com/zoomiesmarket/zoomies/internal/events"
	"github.com/zoomiesmarket/zoomies/internal/notify"
	"github.com/zoomiesmarket/zoomies/internal/platform/marketapi"
	"github.com/zoomiesmarket/zoomies/internal/server/handler"
	"github.com/zoomiesmarket/zoomies/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the run modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	API *marketapi.Client
	Bus *events.Bus

	// Position shadow over the configured backend.
	Positions *cache.PositionCache

	// SignalBus is set only when events are bridged over Redis.
	SignalBus domain.SignalBus

	// Optional stores.
	AuditStore domain.AuditStore
	BlobWriter domain.BlobWriter

	Notifier *notify.Notifier

	// HealthChecks pings each connected backend for GET /api/health.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		API:          marketapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout.Duration),
		Bus:          events.NewBus(logger),
		HealthChecks: make(map[string]handler.HealthCheck),
	}
	closers = append(closers, deps.Bus.Close)

	var (
		store domain.KVStore
		locks domain.LockManager
	)

	// --- Redis (cache backend and/or event bridge) ---
	if cfg.NeedsRedis() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.HealthChecks["redis"] = redisClient.Ping

		if strings.EqualFold(cfg.Cache.Backend, config.CacheRedis) {
			store = redis.NewKVStore(redisClient, cfg.Cache.TTL.Duration)
			locks = redis.NewLockManager(redisClient)
		}
		if cfg.Redis.BridgeEvents {
			deps.SignalBus = redis.NewSignalBus(redisClient)
		}
	}

	// --- PostgreSQL (cache backend and/or admin audit trail) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.HealthChecks["postgres"] = pool.Ping
		if strings.EqualFold(cfg.Cache.Backend, config.CachePostgres) {
			store = postgres.NewKVStore(pool)
		}
		if cfg.Postgres.Audit {
			deps.AuditStore = postgres.NewAuditStore(pool)
		}
	}

	// --- Local position shadow backends ---
	if store == nil {
		switch strings.ToLower(cfg.Cache.Backend) {
		case config.CacheMemory:
			store = cache.NewMemoryStore()
		default:
			store = cache.NewFileStore(cfg.Cache.FilePath)
		}
	}
	deps.Positions = cache.NewPositionCache(store, locks, cfg.Cache.Key)

	// --- S3 history export ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	local := []notify.Sender{notify.NewLogSender(logger), notify.NewBusSender(deps.Bus)}
	var remote []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		remote = append(remote, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		remote = append(remote, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(local, remote, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("api", deps.API.BaseURL()),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Bool("redis_bridge", deps.SignalBus != nil),
		slog.Bool("audit", deps.AuditStore != nil),
		slog.Bool("history_export", deps.BlobWriter != nil),
		slog.Int("remote_notifiers", len(remote)),
	)

	return deps, cleanup, nil
}
