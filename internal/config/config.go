package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const FileName = "medicamp.yml"

// Config models medicamp.yml. Every scalar can be overridden by a MEDICAMP_* variable.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Capacity  CapacityConfig  `yaml:"capacity"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"MEDICAMP_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"MEDICAMP_DB_DSN"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr" env:"MEDICAMP_ADDR"`
	BasePath string `yaml:"base_path" env:"MEDICAMP_BASE_PATH"`
}

type AuthConfig struct {
	JWTSecret              string `yaml:"jwt_secret" env:"MEDICAMP_JWT_SECRET"`
	AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header" env:"MEDICAMP_ALLOW_LEGACY_ACTOR_HEADER"`
	// EnableDevLogin exposes POST /auth/dev/login, which mints tokens for any identity.
	EnableDevLogin bool `yaml:"enable_dev_login" env:"MEDICAMP_ENABLE_DEV_LOGIN"`
}

type GatewayConfig struct {
	Kind           string `yaml:"kind" env:"MEDICAMP_GATEWAY_KIND"`
	BaseURL        string `yaml:"base_url" env:"MEDICAMP_GATEWAY_BASE_URL"`
	SecretKey      string `yaml:"secret_key" env:"MEDICAMP_GATEWAY_SECRET_KEY"`
	SuccessURL     string `yaml:"success_url" env:"MEDICAMP_GATEWAY_SUCCESS_URL"`
	CancelURL      string `yaml:"cancel_url" env:"MEDICAMP_GATEWAY_CANCEL_URL"`
	CallbackSecret string `yaml:"callback_secret" env:"MEDICAMP_GATEWAY_CALLBACK_SECRET"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"MEDICAMP_GATEWAY_TIMEOUT_SECONDS"`
}

// Timeout returns the gateway request timeout, 10s when unset.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

const (
	CountOnPayment      = "payment"
	CountOnRegistration = "registration"
)

type CapacityConfig struct {
	CountOn         string `yaml:"count_on" env:"MEDICAMP_CAPACITY_COUNT_ON"`
	ReleaseOnCancel bool   `yaml:"release_on_cancel" env:"MEDICAMP_CAPACITY_RELEASE_ON_CANCEL"`
}

type NotifyConfig struct {
	NATSURL       string `yaml:"nats_url" env:"MEDICAMP_NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"MEDICAMP_NATS_SUBJECT_PREFIX"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"MEDICAMP_OTEL_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"MEDICAMP_OTEL_SERVICE_NAME"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"MEDICAMP_LOG_LEVEL"`
	Format string `yaml:"format" env:"MEDICAMP_LOG_FORMAT"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config.database.driver must be 'sqlite' or 'postgres'")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config.database.dsn is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Gateway.Kind {
	case "local":
	case "checkout":
		if strings.TrimSpace(c.Gateway.BaseURL) == "" {
			return fmt.Errorf("config.gateway.base_url is required for kind checkout")
		}
		if strings.TrimSpace(c.Gateway.SecretKey) == "" {
			return fmt.Errorf("config.gateway.secret_key is required for kind checkout")
		}
		if strings.TrimSpace(c.Gateway.CallbackSecret) == "" {
			return fmt.Errorf("config.gateway.callback_secret is required for kind checkout")
		}
	default:
		return fmt.Errorf("config.gateway.kind must be 'local' or 'checkout'")
	}
	switch c.Capacity.CountOn {
	case CountOnPayment, CountOnRegistration:
	default:
		return fmt.Errorf("config.capacity.count_on must be '%s' or '%s'", CountOnPayment, CountOnRegistration)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be 'text' or 'json'")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("webhook %s has empty event type", hook.URL)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the default Config for a workspace.
func Default(workspace string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(workspace))).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return fmt.Sprintf(defaultTemplate, filepath.ToSlash(filepath.Join(workspace, ".medicamp", "medicamp.db")))
}

// Load reads medicamp.yml from the workspace when present, falls back to
// defaults otherwise, then applies environment overrides and validates.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		data = []byte(GenerateDefault(workspace))
	}
	return FromYAML(data)
}

// FromYAML parses raw YAML on top of the defaults, applies environment
// overrides and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default(".")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ParseEnv overlays MEDICAMP_* environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

const defaultTemplate = `database:
  driver: sqlite
  dsn: %s

server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  jwt_secret: ""
  allow_legacy_actor_header: false
  enable_dev_login: false

gateway:
  kind: local
  timeout_seconds: 10

capacity:
  count_on: payment
  release_on_cancel: false

notify:
  subject_prefix: medicamp

telemetry:
  service_name: medicamp

log:
  level: info
  format: text
`
