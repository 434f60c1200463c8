package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Catalog CatalogConfig `yaml:"catalog"`
	Session SessionConfig `yaml:"session"`
	Loading LoadingConfig `yaml:"loading"`
	Audio   AudioConfig   `yaml:"audio"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"POKEDEX_ADDR"             env-default:":8080"`
	PublicBase      string        `yaml:"public_base"      env:"POKEDEX_PUBLIC_BASE"      env-default:"/static"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"POKEDEX_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"POKEDEX_WRITE_TIMEOUT"    env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"POKEDEX_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"POKEDEX_SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowedOrigin   string        `yaml:"allowed_origin"   env:"POKEDEX_ALLOWED_ORIGIN"   env-default:"*"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// CatalogConfig points at an alternative seed file; empty uses the embedded Kanto seed.
type CatalogConfig struct {
	SeedPath string `yaml:"seed_path" env:"POKEDEX_SEED_PATH"`
}

// SessionConfig controls in-memory viewer sessions.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"            env:"POKEDEX_SESSION_TTL"            env-default:"2h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"POKEDEX_SESSION_SWEEP_INTERVAL" env-default:"5m"`
	SecureCookie  bool          `yaml:"secure_cookie"  env:"POKEDEX_SECURE_COOKIE"          env-default:"false"`
}

// LoadingConfig bounds the simulated loading bar.
type LoadingConfig struct {
	Interval time.Duration `yaml:"interval" env:"POKEDEX_LOADING_INTERVAL" env-default:"150ms"`
	MinStep  int           `yaml:"min_step" env:"POKEDEX_LOADING_MIN_STEP" env-default:"2"`
	MaxStep  int           `yaml:"max_step" env:"POKEDEX_LOADING_MAX_STEP" env-default:"12"`
}

// AudioConfig names the background track inside the static assets.
type AudioConfig struct {
	Track string `yaml:"track" env:"POKEDEX_AUDIO_TRACK" env-default:"theme.wav"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file is CONFIG_PATH or ./config.yaml;
// a missing default file falls back to ENV + defaults.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// reservedPrefixes are routed by the web server itself.
var reservedPrefixes = []string{"/api", "/ws", "/healthz"}

func reservedPath(base string) bool {
	for _, p := range reservedPrefixes {
		if base == p || strings.HasPrefix(base, p+"/") {
			return true
		}
	}
	return false
}

// Validate checks values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if !strings.HasPrefix(c.Server.PublicBase, "/") {
		errs = append(errs, fmt.Errorf("server.public_base must start with / (got %q)", c.Server.PublicBase))
	} else if base := strings.TrimRight(c.Server.PublicBase, "/"); base == "" {
		errs = append(errs, errors.New("server.public_base must not be the site root"))
	} else if reservedPath(base) {
		errs = append(errs, fmt.Errorf("server.public_base %q collides with a server route", c.Server.PublicBase))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be > 0 (got %v)", c.Session.TTL))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.sweep_interval must be > 0 (got %v)", c.Session.SweepInterval))
	}
	if c.Loading.Interval <= 0 {
		errs = append(errs, fmt.Errorf("loading.interval must be > 0 (got %v)", c.Loading.Interval))
	}
	if c.Loading.MinStep < 1 || c.Loading.MaxStep < c.Loading.MinStep {
		errs = append(errs, fmt.Errorf("loading steps must satisfy 1 <= min_step <= max_step (got %d..%d)", c.Loading.MinStep, c.Loading.MaxStep))
	}
	if c.Loading.MaxStep > 100 {
		errs = append(errs, fmt.Errorf("loading.max_step must be <= 100 (got %d)", c.Loading.MaxStep))
	}
	return errors.Join(errs...)
}
