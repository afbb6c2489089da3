package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ZOOMIES_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ZOOMIES_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── API ──
	setStr(&cfg.API.BaseURL, "ZOOMIES_API_BASE_URL")
	setStr(&cfg.API.BaseURL, "NEXT_PUBLIC_API_URL") // compatibility alias
	setDuration(&cfg.API.Timeout, "ZOOMIES_API_TIMEOUT")

	// ── User ──
	setStr(&cfg.User.ID, "ZOOMIES_USER_ID")

	// ── Polling ──
	setDuration(&cfg.Polling.Grid, "ZOOMIES_POLLING_GRID")
	setDuration(&cfg.Polling.Detail, "ZOOMIES_POLLING_DETAIL")
	setDuration(&cfg.Polling.Admin, "ZOOMIES_POLLING_ADMIN")
	setDuration(&cfg.Polling.Heartbeat, "ZOOMIES_POLLING_HEARTBEAT")
	setInt(&cfg.Polling.TrendWindowMinutes, "ZOOMIES_POLLING_TREND_WINDOW_MINUTES")
	setStr(&cfg.Polling.StreamID, "ZOOMIES_POLLING_STREAM_ID")

	// ── Betting ──
	setFloat64(&cfg.Betting.MinBet, "ZOOMIES_BETTING_MIN_BET")
	setFloat64(&cfg.Betting.MaxBet, "ZOOMIES_BETTING_MAX_BET")

	// ── Admin ──
	setStr(&cfg.Admin.TokenHash, "ZOOMIES_ADMIN_TOKEN_HASH")
	setStringSlice(&cfg.Admin.UserIDs, "ZOOMIES_ADMIN_USER_IDS")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "ZOOMIES_CACHE_BACKEND")
	setStr(&cfg.Cache.FilePath, "ZOOMIES_CACHE_FILE_PATH")
	setStr(&cfg.Cache.Key, "ZOOMIES_CACHE_KEY")
	setDuration(&cfg.Cache.TTL, "ZOOMIES_CACHE_TTL")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "ZOOMIES_REDIS_URL")
	setStr(&cfg.Redis.Addr, "ZOOMIES_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ZOOMIES_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ZOOMIES_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ZOOMIES_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "ZOOMIES_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "ZOOMIES_REDIS_KEY_PREFIX")
	setBool(&cfg.Redis.BridgeEvents, "ZOOMIES_REDIS_BRIDGE_EVENTS")
	setStr(&cfg.Redis.EventChannel, "ZOOMIES_REDIS_EVENT_CHANNEL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ZOOMIES_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ZOOMIES_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ZOOMIES_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ZOOMIES_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ZOOMIES_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ZOOMIES_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ZOOMIES_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.MaxConns, "ZOOMIES_POSTGRES_MAX_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ZOOMIES_POSTGRES_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.Audit, "ZOOMIES_POSTGRES_AUDIT")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ZOOMIES_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ZOOMIES_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ZOOMIES_S3_REGION")
	setStr(&cfg.S3.Bucket, "ZOOMIES_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "ZOOMIES_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "ZOOMIES_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ZOOMIES_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ZOOMIES_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ZOOMIES_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "ZOOMIES_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ZOOMIES_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ZOOMIES_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ZOOMIES_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ZOOMIES_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ZOOMIES_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ZOOMIES_MODE")
	setStr(&cfg.LogLevel, "ZOOMIES_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
