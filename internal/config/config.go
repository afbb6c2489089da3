// Package config defines the top-level configuration for the zoomies client
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ZOOMIES_* environment variables.
type Config struct {
	API      APIConfig      `toml:"api"`
	User     UserConfig     `toml:"user"`
	Polling  PollingConfig  `toml:"polling"`
	Betting  BettingConfig  `toml:"betting"`
	Admin    AdminConfig    `toml:"admin"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// APIConfig points at the hamster-market backend.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

// UserConfig names the user whose positions the grid decorates. Empty means
// anonymous watching.
type UserConfig struct {
	ID string `toml:"id"`
}

// PollingConfig holds refresh cadences.
type PollingConfig struct {
	Grid               duration `toml:"grid"`
	Detail             duration `toml:"detail"`
	Admin              duration `toml:"admin"`
	Heartbeat          duration `toml:"heartbeat"`
	TrendWindowMinutes int      `toml:"trend_window_minutes"`
	// StreamID, when set, keeps the detail view focused on that stream.
	StreamID string `toml:"stream_id"`
}

// BettingConfig bounds a single wager.
type BettingConfig struct {
	MinBet float64 `toml:"min_bet"`
	MaxBet float64 `toml:"max_bet"`
}

// AdminConfig protects the local admin endpoints. TokenHash is a bcrypt hash
// of the bearer token admins present.
type AdminConfig struct {
	TokenHash string   `toml:"token_hash"`
	UserIDs   []string `toml:"user_ids"`
}

// CacheConfig selects the position shadow backend.
type CacheConfig struct {
	Backend  string   `toml:"backend"`
	FilePath string   `toml:"file_path"`
	Key      string   `toml:"key"`
	TTL      duration `toml:"ttl"`
}

// RedisConfig holds Redis connection parameters. Redis serves as a cache
// backend and, with BridgeEvents, as the cross-process event transport.
type RedisConfig struct {
	URL          string `toml:"url"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	KeyPrefix    string `toml:"key_prefix"`
	BridgeEvents bool   `toml:"bridge_events"`
	EventChannel string `toml:"event_channel"`
}

// PostgresConfig holds PostgreSQL connection parameters. Postgres serves as
// a cache backend and, with Audit, records admin actions.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	Audit         bool   `toml:"audit"`
}

// S3Config holds S3-compatible object storage parameters for history
// exports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds local HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials. Events limits which
// notice actions reach the remote channels; empty means all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheFile     = "file"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Run modes.
const (
	ModeWatch  = "watch"
	ModeServer = "server"
	ModeFull   = "full"
)

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:3001",
			Timeout: duration{30 * time.Second},
		},
		Polling: PollingConfig{
			Grid:               duration{45 * time.Second},
			Detail:             duration{30 * time.Second},
			Admin:              duration{60 * time.Second},
			Heartbeat:          duration{time.Second},
			TrendWindowMinutes: 60,
		},
		Betting: BettingConfig{
			MinBet: 1,
			MaxBet: 1000,
		},
		Cache: CacheConfig{
			Backend:  CacheFile,
			FilePath: "data/positions.json",
			Key:      "zoomies_user_positions",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			KeyPrefix:    "zoomies",
			EventChannel: "zoomies:events",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "zoomies",
			User:          "postgres",
			SSLMode:       "disable",
			MaxConns:      5,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "zoomies-exports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"resolve", "cancel", "renew"},
		},
		Mode:     ModeFull,
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	ModeWatch:  true,
	ModeServer: true,
	ModeFull:   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validCacheBackends = map[string]bool{
	CacheMemory:   true,
	CacheFile:     true,
	CacheRedis:    true,
	CachePostgres: true,
}

// NeedsRedis reports whether any component uses Redis.
func (c *Config) NeedsRedis() bool {
	return strings.EqualFold(c.Cache.Backend, CacheRedis) || c.Redis.BridgeEvents
}

// NeedsPostgres reports whether any component uses Postgres.
func (c *Config) NeedsPostgres() bool {
	return strings.EqualFold(c.Cache.Backend, CachePostgres) || c.Postgres.Audit
}

// ServesHTTP reports whether the mode runs the local API.
func (c *Config) ServesHTTP() bool {
	m := strings.ToLower(c.Mode)
	return m == ModeServer || m == ModeFull
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// API
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api: base_url must be an absolute URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be > 0")
	}

	// Polling
	if c.Polling.Grid.Duration <= 0 || c.Polling.Detail.Duration <= 0 || c.Polling.Admin.Duration <= 0 {
		errs = append(errs, "polling: grid, detail and admin intervals must be > 0")
	}
	if c.Polling.Heartbeat.Duration <= 0 {
		errs = append(errs, "polling: heartbeat must be > 0")
	}
	if c.Polling.TrendWindowMinutes < 1 {
		errs = append(errs, "polling: trend_window_minutes must be >= 1")
	}

	// Betting
	if c.Betting.MinBet <= 0 {
		errs = append(errs, "betting: min_bet must be > 0")
	}
	if c.Betting.MaxBet < c.Betting.MinBet {
		errs = append(errs, "betting: max_bet must not be below min_bet")
	}

	// Admin
	if c.Admin.TokenHash != "" && !strings.HasPrefix(c.Admin.TokenHash, "$2") {
		errs = append(errs, "admin: token_hash must be a bcrypt hash")
	}
	if len(c.Admin.UserIDs) > 0 && c.Admin.TokenHash == "" && c.ServesHTTP() {
		errs = append(errs, "admin: token_hash must be set when user_ids is set in server or full mode")
	}

	// Cache
	backend := strings.ToLower(c.Cache.Backend)
	if !validCacheBackends[backend] {
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, file, redis, postgres)", c.Cache.Backend))
	}
	if backend == CacheFile && strings.TrimSpace(c.Cache.FilePath) == "" {
		errs = append(errs, "cache: file_path must be set for the file backend")
	}
	if strings.TrimSpace(c.Cache.Key) == "" {
		errs = append(errs, "cache: key must not be empty")
	}

	// Redis
	if c.NeedsRedis() {
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			errs = append(errs, "redis: url or addr must be set")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.BridgeEvents && c.Redis.EventChannel == "" {
			errs = append(errs, "redis: event_channel must be set when bridge_events is on")
		}
	}

	// Postgres
	if c.NeedsPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.MaxConns < 1 {
			errs = append(errs, "postgres: max_conns must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.ServesHTTP() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
