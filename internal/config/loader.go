package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Store backends selectable through RESERVATIONS_STORE.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreRedis  = "redis"
)

// RefreshOff disables the periodic snapshot refresh.
const RefreshOff = "off"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort       int
	Store          string
	SQLiteDSN      string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	Location       *time.Location
	Refresh        string
	LogLevel       slog.Level
	FacilitiesFile string
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields while validating required values.
// Every missing or invalid variable is reported at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		Store:         StoreSQLite,
		SQLiteDSN:     "data/reservations.db",
		MongoDatabase: "reservations",
		Location:      time.Local,
		Refresh:       "@every 1m",
		LogLevel:      slog.LevelInfo,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "RESERVATIONS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if store := strings.ToLower(env("STORE")); store != "" {
		switch store {
		case StoreMemory, StoreSQLite, StoreMongo, StoreRedis:
			cfg.Store = store
		default:
			invalid = append(invalid, "RESERVATIONS_STORE")
		}
	}

	if dsn := env("SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.MongoURI = env("MONGO_URI")
	if db := env("MONGO_DATABASE"); db != "" {
		cfg.MongoDatabase = db
	}
	if cfg.Store == StoreMongo && cfg.MongoURI == "" {
		missing = append(missing, "RESERVATIONS_MONGO_URI")
	}

	cfg.RedisAddr = env("REDIS_ADDR")
	if cfg.Store == StoreRedis && cfg.RedisAddr == "" {
		missing = append(missing, "RESERVATIONS_REDIS_ADDR")
	}

	if tz := env("TIMEZONE"); tz != "" && tz != "Local" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "RESERVATIONS_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if refresh := env("REFRESH"); refresh != "" {
		if strings.EqualFold(refresh, RefreshOff) {
			cfg.Refresh = RefreshOff
		} else if _, err := cron.ParseStandard(refresh); err != nil {
			invalid = append(invalid, "RESERVATIONS_REFRESH")
		} else {
			cfg.Refresh = refresh
		}
	}

	if level := env("LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			invalid = append(invalid, "RESERVATIONS_LOG_LEVEL")
		}
	}

	cfg.FacilitiesFile = env("FACILITIES_FILE")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv("RESERVATIONS_" + name))
}
