package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session storage backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
)

type Config struct {
	API struct {
		BaseURL string `yaml:"base_url" validate:"required,url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	WS struct {
		URL            string `yaml:"url" validate:"omitempty,url"`
		PingInterval   string `yaml:"ping_interval"`
		ReconnectDelay string `yaml:"reconnect_delay"`
	} `yaml:"ws"`
	Session struct {
		Store      string `yaml:"store" validate:"oneof=memory file redis"`
		Path       string `yaml:"path"`
		CookieDays int    `yaml:"cookie_days" validate:"min=0"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.API.BaseURL = "http://localhost:8000"
	cfg.API.Timeout = "30s"
	cfg.WS.PingInterval = "30s"
	cfg.WS.ReconnectDelay = "3s"
	cfg.Session.Store = SessionStoreFile
	cfg.Session.CookieDays = 7
	cfg.Redis.TTL = "10m"
	cfg.Log.Level = "info"
	cfg.Log.Format = "pretty"
	if home, err := os.UserHomeDir(); err == nil {
		cfg.Session.Path = filepath.Join(home, ".learnlab", "session.yaml")
	}
	return cfg
}

// Load reads YAML config from path on top of the defaults. A missing file is
// not an error. A .env file in the working directory is loaded first so that
// the environment overrides below can come from it.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LEARNLAB_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("LEARNLAB_WS_URL"); v != "" {
		cfg.WS.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// WebSocketURL returns the configured socket endpoint, deriving it from the
// API base URL (http→ws, https→wss, path /ws) when unset.
func (c Config) WebSocketURL() (string, error) {
	if c.WS.URL != "" {
		return c.WS.URL, nil
	}
	base, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	derived := url.URL{
		Scheme: scheme,
		Host:   base.Host,
		Path:   strings.TrimSuffix(base.Path, "/") + "/ws",
	}
	return derived.String(), nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
