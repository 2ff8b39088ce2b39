package config

import (
	"errors"
	"fmt"
	"time"
)

// CloudConfig конфигурация облачного сервера
type CloudConfig struct {
	Listen       string            `yaml:"listen"`
	DBPath       string            `yaml:"db_path"`
	JWTSecret    string            `yaml:"jwt_secret"`
	Issuer       string            `yaml:"issuer"`
	BusinessKeys map[string]string `yaml:"business_keys"`
	Log          LogConfig         `yaml:"log"`
	AccessTTL    time.Duration     `yaml:"access_ttl"`
	RefreshTTL   time.Duration     `yaml:"refresh_ttl"`
	RateWindow   time.Duration     `yaml:"rate_window"`
	RateLimit    int               `yaml:"rate_limit"`
}

// DefaultCloud значения по умолчанию для облака
func DefaultCloud() *CloudConfig {
	return &CloudConfig{
		Listen:     ":8080",
		DBPath:     "possync-cloud.db",
		Issuer:     "possync-cloud",
		Log:        LogConfig{Level: "info"},
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		RateWindow: time.Minute,
		RateLimit:  600,
	}
}

// LoadCloud читает YAML-файл (если задан) и переменные POSSYNC_CLOUD_*
func LoadCloud(path string, lookupEnv func(string) (string, bool)) (*CloudConfig, error) {
	cfg := DefaultCloud()
	if path != "" {
		data, err := readAll(path)
		if err != nil {
			return nil, err
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, err
		}
	}

	if lookupEnv != nil {
		for name, dst := range map[string]*string{
			"CLOUD_LISTEN":     &cfg.Listen,
			"CLOUD_DB_PATH":    &cfg.DBPath,
			"CLOUD_JWT_SECRET": &cfg.JWTSecret,
			"CLOUD_LOG_LEVEL":  &cfg.Log.Level,
			"CLOUD_LOG_FILE":   &cfg.Log.File,
		} {
			if v, ok := lookupEnv(EnvPrefix + name); ok {
				*dst = v
			}
		}
		for name, dst := range map[string]*time.Duration{
			"CLOUD_ACCESS_TTL":  &cfg.AccessTTL,
			"CLOUD_REFRESH_TTL": &cfg.RefreshTTL,
		} {
			v, ok := lookupEnv(EnvPrefix + name)
			if !ok {
				continue
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет конфигурацию облака
func (c *CloudConfig) Validate() error {
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.RefreshTTL < c.AccessTTL {
		return errors.New("refresh_ttl must not be shorter than access_ttl")
	}
	if c.RateLimit <= 0 || c.RateWindow <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}
