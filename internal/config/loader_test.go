package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"RESERVATIONS_HTTP_PORT",
	"RESERVATIONS_STORE",
	"RESERVATIONS_SQLITE_DSN",
	"RESERVATIONS_MONGO_URI",
	"RESERVATIONS_MONGO_DATABASE",
	"RESERVATIONS_REDIS_ADDR",
	"RESERVATIONS_TIMEZONE",
	"RESERVATIONS_REFRESH",
	"RESERVATIONS_LOG_LEVEL",
	"RESERVATIONS_FACILITIES_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreSQLite || cfg.SQLiteDSN != "data/reservations.db" {
			t.Fatalf("unexpected default store %q %q", cfg.Store, cfg.SQLiteDSN)
		}
		if cfg.Refresh != "@every 1m" || cfg.LogLevel != slog.LevelInfo || cfg.Location != time.Local {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
	})

	t.Run("errors when backend requirements are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_STORE", "mongo")

		_, err := Load()
		if err == nil || err.Error() != "required environment variables are not set: RESERVATIONS_MONGO_URI" {
			t.Fatalf("unexpected error: %v", err)
		}

		t.Setenv("RESERVATIONS_STORE", "redis")
		_, err = Load()
		if err == nil || err.Error() != "required environment variables are not set: RESERVATIONS_REDIS_ADDR" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("parses every field", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_HTTP_PORT", "9090")
		t.Setenv("RESERVATIONS_STORE", "Redis")
		t.Setenv("RESERVATIONS_REDIS_ADDR", "localhost:6379")
		t.Setenv("RESERVATIONS_TIMEZONE", "Asia/Tokyo")
		t.Setenv("RESERVATIONS_REFRESH", "*/5 * * * *")
		t.Setenv("RESERVATIONS_LOG_LEVEL", "debug")
		t.Setenv("RESERVATIONS_FACILITIES_FILE", "facilities.yaml")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.Store != StoreRedis || cfg.RedisAddr != "localhost:6379" {
			t.Fatalf("unexpected config %+v", cfg)
		}
		if cfg.Location.String() != "Asia/Tokyo" || cfg.Refresh != "*/5 * * * *" || cfg.LogLevel != slog.LevelDebug {
			t.Fatalf("unexpected config %+v", cfg)
		}
		if cfg.FacilitiesFile != "facilities.yaml" {
			t.Fatalf("unexpected facilities file %q", cfg.FacilitiesFile)
		}
	})

	t.Run("refresh can be disabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_REFRESH", "OFF")
		cfg, err := Load()
		if err != nil || cfg.Refresh != RefreshOff {
			t.Fatalf("expected refresh to be off, got %q %v", cfg.Refresh, err)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RESERVATIONS_HTTP_PORT", "abc")
		t.Setenv("RESERVATIONS_STORE", "postgres")
		t.Setenv("RESERVATIONS_TIMEZONE", "Mars/Olympus")
		t.Setenv("RESERVATIONS_REFRESH", "every minute")
		t.Setenv("RESERVATIONS_LOG_LEVEL", "loud")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"RESERVATIONS_HTTP_PORT", "RESERVATIONS_STORE", "RESERVATIONS_TIMEZONE", "RESERVATIONS_REFRESH", "RESERVATIONS_LOG_LEVEL"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in error %q", key, err.Error())
			}
		}
	})
}

func TestLoadFacilities(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		names, err := LoadFacilities("")
		if err != nil {
			t.Fatalf("LoadFacilities returned error: %v", err)
		}
		if len(names) != 8 || names[0] != "Activity Center A" || names[7] != "Conference Room 6" {
			t.Fatalf("unexpected defaults %v", names)
		}
		names[0] = "mutated"
		if DefaultFacilities[0] != "Activity Center A" {
			t.Fatalf("expected defaults to be copied")
		}
	})

	t.Run("reads the yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "facilities.yaml")
		content := "facilities:\n  - name: Library\n  - name: \"  Rooftop  \"\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		names, err := LoadFacilities(path)
		if err != nil {
			t.Fatalf("LoadFacilities returned error: %v", err)
		}
		if len(names) != 2 || names[0] != "Library" || names[1] != "Rooftop" {
			t.Fatalf("unexpected names %v", names)
		}
	})

	t.Run("rejects blank names and missing files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "facilities.yaml")
		if err := os.WriteFile(path, []byte("facilities:\n  - name: \"\"\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFacilities(path); err == nil {
			t.Fatalf("expected blank name to be rejected")
		}
		if _, err := LoadFacilities(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Fatalf("expected missing file to be rejected")
		}
	})
}
