package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/validation"
)

// Виды облачного backend
const (
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "POSSYNC_"

// Config конфигурация терминала
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Store    StoreConfig    `yaml:"store"`
	Keystore StoreConfig    `yaml:"keystore"`
	Remote   RemoteConfig   `yaml:"remote"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Sync     SyncConfig     `yaml:"sync"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

// TerminalConfig идентичность устройства
type TerminalConfig struct {
	DeviceID string            `yaml:"device_id"`
	Name     string            `yaml:"name"`
	Type     models.DeviceType `yaml:"type"`
	UserID   string            `yaml:"user_id"`
}

// StoreConfig путь к файлу БД
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig облачный backend
type RemoteConfig struct {
	Kind    string        `yaml:"kind"`   // Kind http или postgres
	URL     string        `yaml:"url"`    // URL базовый адрес облака (http)
	DSN     string        `yaml:"dsn"`    // DSN строка подключения (postgres)
	Schema  string        `yaml:"schema"` // Schema схема облачных таблиц (postgres)
	Timeout time.Duration `yaml:"timeout"`
}

// MonitorConfig connectivity monitor
type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// SyncConfig sync engine
type SyncConfig struct {
	Interval     time.Duration `yaml:"interval"`
	StartupDelay time.Duration `yaml:"startup_delay"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxRetries   int           `yaml:"max_retries"`
}

// AdminConfig административный HTTP API терминала
type AdminConfig struct {
	Listen     string        `yaml:"listen"`
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// LogConfig логирование
type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Journal bool   `yaml:"journal"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	host, _ := os.Hostname()
	if host == "" {
		host = "terminal"
	}
	return &Config{
		Terminal: TerminalConfig{
			DeviceID: "pos-1",
			Name:     host,
			Type:     models.DeviceTypeTerminal,
		},
		Store:    StoreConfig{Path: "possync.db"},
		Keystore: StoreConfig{Path: "possync-keys.db"},
		Remote: RemoteConfig{
			Kind:    RemoteHTTP,
			URL:     "http://localhost:8080",
			Schema:  "possync",
			Timeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			Interval:     30 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			Interval:     30 * time.Second,
			StartupDelay: 2 * time.Second,
			RetryDelay:   5 * time.Second,
			MaxRetries:   3,
		},
		Admin: AdminConfig{
			Listen:     "127.0.0.1:8090",
			TokenTTL:   12 * time.Hour,
			RateLimit:  120,
			RateWindow: time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Flags переопределения из командной строки
type Flags struct {
	ConfigPath string
	StorePath  string
	RemoteURL  string
	Listen     string
	DeviceID   string
	LogLevel   string
}

// Register регистрирует флаги в fs
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to YAML config file")
	fs.StringVar(&f.StorePath, "db", "", "Path to local database")
	fs.StringVar(&f.RemoteURL, "server", "", "Cloud URL")
	fs.StringVar(&f.Listen, "listen", "", "Admin API listen address")
	fs.StringVar(&f.DeviceID, "device", "", "Device ID of this terminal")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func (f Flags) apply(c *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Store.Path, f.StorePath)
	set(&c.Remote.URL, f.RemoteURL)
	set(&c.Admin.Listen, f.Listen)
	set(&c.Terminal.DeviceID, f.DeviceID)
	set(&c.Log.Level, f.LogLevel)
}

// Load собирает конфигурацию: значения по умолчанию, YAML-файл,
// переменные окружения POSSYNC_*, затем флаги
func Load(f Flags, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	path := f.ConfigPath
	if path == "" && lookupEnv != nil {
		path, _ = lookupEnv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if lookupEnv != nil {
		if err := cfg.applyEnv(lookupEnv); err != nil {
			return nil, err
		}
	}

	f.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := readAll(path)
	if err != nil {
		return err
	}
	return decodeStrict(data, c)
}

func readAll(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return data, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DEVICE_ID":        &c.Terminal.DeviceID,
		"DEVICE_NAME":      &c.Terminal.Name,
		"USER_ID":          &c.Terminal.UserID,
		"STORE_PATH":       &c.Store.Path,
		"KEYSTORE_PATH":    &c.Keystore.Path,
		"REMOTE_KIND":      &c.Remote.Kind,
		"REMOTE_URL":       &c.Remote.URL,
		"REMOTE_DSN":       &c.Remote.DSN,
		"REMOTE_SCHEMA":    &c.Remote.Schema,
		"ADMIN_LISTEN":     &c.Admin.Listen,
		"ADMIN_JWT_SECRET": &c.Admin.JWTSecret,
		"LOG_LEVEL":        &c.Log.Level,
		"LOG_FILE":         &c.Log.File,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"REMOTE_TIMEOUT":     &c.Remote.Timeout,
		"MONITOR_INTERVAL":   &c.Monitor.Interval,
		"PROBE_TIMEOUT":      &c.Monitor.ProbeTimeout,
		"SYNC_INTERVAL":      &c.Sync.Interval,
		"SYNC_STARTUP_DELAY": &c.Sync.StartupDelay,
		"SYNC_RETRY_DELAY":   &c.Sync.RetryDelay,
		"ADMIN_TOKEN_TTL":    &c.Admin.TokenTTL,
		"ADMIN_RATE_WINDOW":  &c.Admin.RateWindow,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"SYNC_MAX_RETRIES": &c.Sync.MaxRetries,
		"ADMIN_RATE_LIMIT": &c.Admin.RateLimit,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "LOG_JOURNAL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sLOG_JOURNAL: %w", EnvPrefix, err)
		}
		c.Log.Journal = b
	}

	return nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if err := validation.ValidateDeviceID(c.Terminal.DeviceID); err != nil {
		return fmt.Errorf("terminal.device_id: %w", err)
	}
	switch c.Terminal.Type {
	case models.DeviceTypeTerminal, models.DeviceTypeKitchen, models.DeviceTypeManager, models.DeviceTypeKiosk:
	default:
		return fmt.Errorf("terminal.type: unknown device type %q", c.Terminal.Type)
	}

	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if c.Keystore.Path == "" {
		return errors.New("keystore.path is required")
	}

	switch c.Remote.Kind {
	case RemoteHTTP:
		if c.Remote.URL == "" {
			return errors.New("remote.url is required for the http backend")
		}
	case RemotePostgres:
		if c.Remote.DSN == "" {
			return errors.New("remote.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("remote.kind: unknown backend %q", c.Remote.Kind)
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"remote.timeout", c.Remote.Timeout},
		{"monitor.interval", c.Monitor.Interval},
		{"monitor.probe_timeout", c.Monitor.ProbeTimeout},
		{"sync.interval", c.Sync.Interval},
		{"sync.retry_delay", c.Sync.RetryDelay},
		{"admin.token_ttl", c.Admin.TokenTTL},
		{"admin.rate_window", c.Admin.RateWindow},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	if c.Sync.StartupDelay < 0 {
		return errors.New("sync.startup_delay must not be negative")
	}
	if c.Sync.MaxRetries <= 0 {
		return errors.New("sync.max_retries must be positive")
	}
	if c.Admin.RateLimit <= 0 {
		return errors.New("admin.rate_limit must be positive")
	}

	return nil
}
