package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv          string        `mapstructure:"app_env"`
	Port            string        `mapstructure:"port"`
	DBPath          string        `mapstructure:"db_path"`
	Storage         string        `mapstructure:"storage"`
	LogLevel        string        `mapstructure:"log_level"`
	CompanyName     string        `mapstructure:"company_name"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "./orcamento.db")
	v.SetDefault("STORAGE", StorageSQLite)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("COMPANY_NAME", "KLSINFORMATICA")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
}

// Load reads ./.env (if present) and the process environment.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path. Variables already set in the
// environment win over the file.
func LoadFrom(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	))
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if cfg.Storage != StorageSQLite && cfg.Storage != StorageMemory {
		return Config{}, fmt.Errorf("STORAGE must be %q or %q, got %q", StorageSQLite, StorageMemory, cfg.Storage)
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "" || env == "dev" || env == "development"
}
