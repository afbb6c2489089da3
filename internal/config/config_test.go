package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zoomies.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "watch"

[api]
base_url = "https://api.zoomies.example"
timeout = "5s"

[polling]
grid = "10s"

[cache]
backend = "memory"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeWatch || cfg.API.BaseURL != "https://api.zoomies.example" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.API.Timeout.Duration != 5*time.Second || cfg.Polling.Grid.Duration != 10*time.Second {
		t.Fatalf("durations = %v %v", cfg.API.Timeout, cfg.Polling.Grid)
	}
	// Untouched values keep their defaults.
	if cfg.Polling.Detail.Duration != 30*time.Second || cfg.Betting.MaxBet != 1000 {
		t.Fatalf("defaults lost: %+v %+v", cfg.Polling, cfg.Betting)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `log_level = "debug"`)
	t.Setenv("ZOOMIES_USER_ID", "u42")
	t.Setenv("ZOOMIES_BETTING_MAX_BET", "250")
	t.Setenv("ZOOMIES_POLLING_HEARTBEAT", "500ms")
	t.Setenv("ZOOMIES_SERVER_CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("ZOOMIES_REDIS_BRIDGE_EVENTS", "true")
	t.Setenv("ZOOMIES_SERVER_PORT", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User.ID != "u42" || cfg.Betting.MaxBet != 250 || cfg.Polling.Heartbeat.Duration != 500*time.Millisecond {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "http://a.test|http://b.test" {
		t.Fatalf("cors = %q", got)
	}
	if !cfg.Redis.BridgeEvents || !cfg.NeedsRedis() {
		t.Fatal("bridge override not applied")
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("malformed override changed port to %d", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.API.BaseURL = "localhost"
	cfg.Betting.MinBet = 5
	cfg.Betting.MaxBet = 2
	cfg.Cache.Backend = "memcached"
	cfg.Admin.TokenHash = "plaintext"
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		`unknown mode "trade"`,
		"api: base_url",
		"betting: max_bet",
		`cache: unknown backend "memcached"`,
		"admin: token_hash",
		"notify: telegram_token",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Backend = CachePostgres
	cfg.Postgres.Host = ""
	cfg.Postgres.MaxConns = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "postgres: host") || !strings.Contains(err.Error(), "postgres: max_conns") {
		t.Fatalf("err = %v", err)
	}

	cfg.Postgres.DSN = "postgres://u@db/zoomies"
	cfg.Postgres.MaxConns = 2
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dsn should satisfy postgres: %v", err)
	}

	cfg = Defaults()
	cfg.Cache.Backend = CacheFile
	cfg.Cache.FilePath = " "
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "cache: file_path") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate_AdminUserIDsNeedTokenHash(t *testing.T) {
	cfg := Defaults()
	cfg.Admin.UserIDs = []string{"boss"}
	for _, mode := range []string{ModeServer, ModeFull} {
		cfg.Mode = mode
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "admin: token_hash must be set") {
			t.Fatalf("mode %s: err = %v", mode, err)
		}
	}

	cfg.Mode = ModeWatch
	if err := cfg.Validate(); err != nil {
		t.Fatalf("watch mode serves no admin routes: %v", err)
	}

	cfg.Mode = ModeServer
	cfg.Admin.TokenHash = "$2a$10$abcdefghijklmnopqrstuu0123456789012345678901234567890"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token hash should satisfy admin: %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Admin.TokenHash = "$2a$10$abcdefghijklmnopqrstuv"
	cfg.Redis.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:p@db/zoomies"
	cfg.S3.SecretKey = "secret"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	for name, v := range map[string]string{
		"token_hash": out.Admin.TokenHash,
		"redis":      out.Redis.Password,
		"dsn":        out.Postgres.DSN,
		"s3":         out.S3.SecretKey,
		"discord":    out.Notify.DiscordWebhookURL,
	} {
		if v != redacted {
			t.Errorf("%s not redacted: %q", name, v)
		}
	}
	if out.S3.AccessKey != "" {
		t.Errorf("empty secret became %q", out.S3.AccessKey)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Fatal("original mutated")
	}

	out.Server.CORSOrigins[0] = "http://evil.test"
	if cfg.Server.CORSOrigins[0] == "http://evil.test" {
		t.Fatal("redacted copy shares slices with the original")
	}
}
