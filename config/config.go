// Package config loads host and caller settings from YAML with environment
// overrides.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Codec    string         `yaml:"codec"`
	Registry RegistryConfig `yaml:"registry"`
	Limits   LimitsConfig   `yaml:"limits"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Client   ClientConfig   `yaml:"client"`
	Log      LogConfig      `yaml:"log"`
}

type ListenConfig struct {
	Network   string `yaml:"network"`
	Address   string `yaml:"address"`
	Advertise string `yaml:"advertise"`
}

type RegistryConfig struct {
	// Kind is "static" (no discovery service) or "etcd".
	Kind        string        `yaml:"kind"`
	Endpoints   []string      `yaml:"endpoints"`
	TTL         int64         `yaml:"ttl"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

type LimitsConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
	// RateLimit is calls per second; zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

type MetricsConfig struct {
	// Address serves /metrics when set, e.g. "127.0.0.1:9102".
	Address string `yaml:"address"`
}

type ClientConfig struct {
	// Hosts are used directly when the registry kind is "static".
	Hosts      []string      `yaml:"hosts"`
	Balancer   string        `yaml:"balancer"`
	PoolSize   int           `yaml:"poolSize"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retryDelay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

func Default() Config {
	return Config{
		Listen: ListenConfig{
			Network: "tcp",
			Address: "127.0.0.1:7420",
		},
		Codec: "json",
		Registry: RegistryConfig{
			Kind:        "static",
			Endpoints:   []string{"127.0.0.1:2379"},
			TTL:         10,
			DialTimeout: 5 * time.Second,
		},
		Limits: LimitsConfig{
			CallTimeout: 5 * time.Second,
			RateBurst:   1,
		},
		Client: ClientConfig{
			Hosts:      []string{"127.0.0.1:7420"},
			Balancer:   "roundrobin",
			PoolSize:   4,
			Retries:    2,
			RetryDelay: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. An empty path tries the usual locations
// and falls back to the defaults when none exists. Environment overrides are
// applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	candidates := []string{path}
	if path == "" {
		candidates = []string{"libgit2dart.yaml", "configs/libgit2dart.yaml"}
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path == "" && os.IsNotExist(err) {
				continue
			}
			return cfg, errors.Wrapf(err, "reading config %s", p)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config %s", p)
		}
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// ApplyEnvOverrides reads LIBGIT2DART_* variables. Malformed numbers are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := env("LIBGIT2DART_LISTEN"); v != "" {
		cfg.Listen.Address = v
	}
	if v := env("LIBGIT2DART_ADVERTISE"); v != "" {
		cfg.Listen.Advertise = v
	}
	if v := env("LIBGIT2DART_CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := env("LIBGIT2DART_REGISTRY"); v != "" {
		cfg.Registry.Kind = v
	}
	if v := env("LIBGIT2DART_ETCD_ENDPOINTS"); v != "" {
		cfg.Registry.Endpoints = splitList(v)
	}
	if v := env("LIBGIT2DART_HOSTS"); v != "" {
		cfg.Client.Hosts = splitList(v)
	}
	if v := env("LIBGIT2DART_METRICS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := env("LIBGIT2DART_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("LIBGIT2DART_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Limits.RateLimit = f
		}
	}
	if v := env("LIBGIT2DART_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Limits.CallTimeout = d
		}
	}
}

func (c Config) Validate() error {
	switch c.Registry.Kind {
	case "static", "etcd":
	default:
		return errors.Errorf("unknown registry kind %q", c.Registry.Kind)
	}
	if c.Registry.Kind == "etcd" && len(c.Registry.Endpoints) == 0 {
		return errors.New("etcd registry needs at least one endpoint")
	}
	if c.Registry.TTL <= 0 {
		return errors.New("registry ttl must be positive")
	}
	if c.Limits.RateLimit < 0 || (c.Limits.RateLimit > 0 && c.Limits.RateBurst <= 0) {
		return errors.New("rate limit needs a positive burst")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", c.Log.Level)
	}
	return level, nil
}

// Logger builds the process logger described by the log section.
func (c Config) Logger() *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
