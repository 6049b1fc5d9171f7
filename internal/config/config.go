// Package config loads runtime startup configuration from YAML with
// environment variable fallbacks for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ordbokapi/notify/internal/pkg/mail"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort     = 3000
	defaultRedisURL = "redis://localhost:6379/0"
	defaultEnv      = "development"
)

// Env var fallbacks. YAML wins when both are set, except secrets, where the
// environment wins so deployments can keep keys out of the config file.
const (
	envRedisURL   = "NOTIFY_REDIS_URL"
	envRecordKey  = "NOTIFY_RECORD_KEY"
	envRecordIV   = "NOTIFY_RECORD_IV"
	envRecordSalt = "NOTIFY_RECORD_SALT"
	envAPIKey     = "NOTIFY_API_KEY"
	envSMTPPass   = "NOTIFY_SMTP_PASSWORD"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
// Bare numbers are taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if v, err := strconv.Atoi(raw); err == nil {
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// CipherConfig holds the fixed key material for the record cipher. Key and
// IV are hex encoded (64 and 32 characters).
type CipherConfig struct {
	KeyHex string `yaml:"key"`
	IVHex  string `yaml:"iv"`
	Salt   string `yaml:"salt"`
}

// LinksConfig overrides the base URLs embedded in outbound emails.
type LinksConfig struct {
	WebBaseURL string `yaml:"web_base_url"`
	APIBaseURL string `yaml:"api_base_url"`
}

// WorkerConfig tunes the dispatch loop. Zero values use the worker defaults.
type WorkerConfig struct {
	PollInterval       Duration `yaml:"poll_interval"`
	Concurrency        int      `yaml:"concurrency"`
	MaxErrorsPerSecond int      `yaml:"max_errors_per_second"`
	PendingTTL         Duration `yaml:"pending_ttl"`
}

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int          `yaml:"port"`
	Env            string       `yaml:"env"` // "development" | "production"
	RedisURL       string       `yaml:"redis_url"`
	AllowedOrigins []string     `yaml:"allowed_origins"`
	APIKey         string       `yaml:"api_key"`
	Cipher         CipherConfig `yaml:"cipher"`
	Mail           mail.Config  `yaml:"mail"`
	Links          LinksConfig  `yaml:"links"`
	Worker         WorkerConfig `yaml:"worker"`
}

// Load reads the YAML file at path and normalizes it. A missing file is not
// an error: everything then comes from defaults and the environment.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}

	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = defaultEnv
	}

	if v := os.Getenv(envRedisURL); v != "" {
		c.RedisURL = v
	}
	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}

	if v := os.Getenv(envRecordKey); v != "" {
		c.Cipher.KeyHex = v
	}
	if v := os.Getenv(envRecordIV); v != "" {
		c.Cipher.IVHex = v
	}
	if v := os.Getenv(envRecordSalt); v != "" {
		c.Cipher.Salt = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(envSMTPPass); v != "" {
		c.Mail.Pass = v
	}
}

func (c *AppConfig) validate() error {
	if c.Cipher.KeyHex == "" || c.Cipher.IVHex == "" {
		return errors.New("config: cipher key and iv are required")
	}
	if c.APIKey == "" {
		return errors.New("config: api key is required")
	}
	return nil
}

// IsProduction reports whether the env is "production".
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
