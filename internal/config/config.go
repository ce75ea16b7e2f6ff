package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	yaml "go.yaml.in/yaml/v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverJSON     = "json"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	ServerAddress  string
	LogLevel       string
	StorageDriver  string
	DatabaseURL    string
	MigrationsPath string
	DataDir        string
	SettingsFile   string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTClientID  string

	BackupDir       string
	UseSpaces       bool
	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesPrefix    string
	SpacesAccessKey string
	SpacesSecretKey string

	Settings Settings
}

// Settings are the menu behaviour knobs read from the optional YAML file.
type Settings struct {
	Scheduling struct {
		Enabled      bool          `yaml:"enabled"`
		IdleInterval time.Duration `yaml:"idle_interval"`
	} `yaml:"scheduling"`
	Items struct {
		DefaultAvailability bool `yaml:"default_availability"`
	} `yaml:"items"`
	Validation struct {
		AllowOverlappingSchedules bool          `yaml:"allow_overlapping_schedules"`
		MinScheduleDuration       time.Duration `yaml:"min_schedule_duration"`
		MaxScheduleDuration       time.Duration `yaml:"max_schedule_duration"`
	} `yaml:"validation"`
	Backup struct {
		Interval time.Duration `yaml:"interval"`
		MaxCount int           `yaml:"max_count"`
	} `yaml:"backup"`
}

// DefaultSettings mirrors what an empty settings file produces.
func DefaultSettings() Settings {
	var s Settings
	s.Scheduling.Enabled = true
	s.Scheduling.IdleInterval = time.Second
	s.Items.DefaultAvailability = true
	s.Validation.MinScheduleDuration = time.Minute
	s.Backup.Interval = 24 * time.Hour
	s.Backup.MaxCount = 30
	return s
}

// Load reads .env (if present), then environment variables, then the
// settings file named by SETTINGS_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Environment:    getenv("APP_ENV", "production"),
		ServerAddress:  getenv("SERVER_ADDRESS", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		StorageDriver:  strings.ToLower(getenv("STORAGE_DRIVER", DriverJSON)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DataDir:        getenv("DATA_DIR", "./data"),
		SettingsFile:   os.Getenv("SETTINGS_FILE"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "platter"),

		BackupDir:       getenv("BACKUP_DIR", "./backups"),
		UseSpaces:       os.Getenv("USE_SPACES") == "true",
		SpacesEndpoint:  os.Getenv("SPACES_ENDPOINT"),
		SpacesRegion:    os.Getenv("SPACES_REGION"),
		SpacesBucket:    os.Getenv("SPACES_BUCKET"),
		SpacesPrefix:    getenv("SPACES_PREFIX", "backups"),
		SpacesAccessKey: os.Getenv("SPACES_ACCESS_KEY"),
		SpacesSecretKey: os.Getenv("SPACES_SECRET_KEY"),

		Settings: DefaultSettings(),
	}

	switch cfg.StorageDriver {
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s driver", cfg.StorageDriver)
		}
		if cfg.MigrationsPath == "" {
			cfg.MigrationsPath = "./migrations/" + cfg.StorageDriver
		}
	case DriverJSON:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.UseSpaces && (cfg.SpacesBucket == "" || cfg.SpacesEndpoint == "") {
		return nil, fmt.Errorf("SPACES_BUCKET and SPACES_ENDPOINT are required when USE_SPACES=true")
	}

	if cfg.SettingsFile != "" {
		f, err := os.Open(cfg.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("open settings: %w", err)
		}
		defer f.Close()
		if cfg.Settings, err = ParseSettings(f); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.SettingsFile, err)
		}
	}
	return cfg, nil
}

// ParseSettings decodes a YAML settings document on top of DefaultSettings.
// Unknown keys are rejected.
func ParseSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	raw, err := io.ReadAll(r)
	if err != nil {
		return s, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return s, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return s, fmt.Errorf("yaml decode: %w", err)
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	if s.Scheduling.IdleInterval <= 0 {
		return fmt.Errorf("scheduling.idle_interval must be positive")
	}
	if s.Validation.MinScheduleDuration < 0 || s.Validation.MaxScheduleDuration < 0 {
		return fmt.Errorf("validation durations must not be negative")
	}
	if s.Validation.MaxScheduleDuration > 0 && s.Validation.MaxScheduleDuration < s.Validation.MinScheduleDuration {
		return fmt.Errorf("validation.max_schedule_duration is below min_schedule_duration")
	}
	if s.Backup.MaxCount < 0 {
		return fmt.Errorf("backup.max_count must not be negative")
	}
	return nil
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(level, environment string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
