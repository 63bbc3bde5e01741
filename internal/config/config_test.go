package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default("/tmp/ws")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/ws/.medicamp/medicamp.db", cfg.Database.DSN)
	assert.Equal(t, CountOnPayment, cfg.Capacity.CountOn)
	assert.False(t, cfg.Capacity.ReleaseOnCancel)
	assert.Equal(t, "local", cfg.Gateway.Kind)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, ".medicamp", "medicamp.db")), cfg.Database.DSN)
}

func TestFromFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/medicamp
capacity:
  count_on: registration
  release_on_cancel: true
webhooks:
  - url: https://hooks.example.com/medicamp
    events: [payment.succeeded]
`), 0o644))

	cfg, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, CountOnRegistration, cfg.Capacity.CountOn)
	assert.True(t, cfg.Capacity.ReleaseOnCancel)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	require.Len(t, cfg.Webhooks, 1)
	assert.Equal(t, []string{"payment.succeeded"}, cfg.Webhooks[0].Events)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEDICAMP_ADDR", "0.0.0.0:9000")
	t.Setenv("MEDICAMP_CAPACITY_COUNT_ON", "registration")
	t.Setenv("MEDICAMP_GATEWAY_TIMEOUT_SECONDS", "3")

	cfg, err := FromYAML([]byte(GenerateDefault(t.TempDir())))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, CountOnRegistration, cfg.Capacity.CountOn)
	assert.Equal(t, int64(3), int64(cfg.Gateway.Timeout().Seconds()))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":        func(c *Config) { c.Database.Driver = "mysql" },
		"dsn":           func(c *Config) { c.Database.DSN = " " },
		"base path":     func(c *Config) { c.Server.BasePath = "v1" },
		"gateway kind":  func(c *Config) { c.Gateway.Kind = "paypal" },
		"checkout key":  func(c *Config) { c.Gateway.Kind = "checkout"; c.Gateway.BaseURL = "https://pay.example.com" },
		"count on":      func(c *Config) { c.Capacity.CountOn = "confirmation" },
		"log format":    func(c *Config) { c.Log.Format = "xml" },
		"webhook url":   func(c *Config) { c.Webhooks = []WebhookConfig{{URL: ""}} },
		"webhook event": func(c *Config) { c.Webhooks = []WebhookConfig{{URL: "http://x", Events: []string{" "}}} },
		"checkout callback secret": func(c *Config) {
			c.Gateway.Kind = "checkout"
			c.Gateway.BaseURL = "https://pay.example.com"
			c.Gateway.SecretKey = "sk_test"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCheckoutGatewayAcceptedWithSecrets(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Gateway.Kind = "checkout"
	cfg.Gateway.BaseURL = "https://pay.example.com"
	cfg.Gateway.SecretKey = "sk_test"
	cfg.Gateway.CallbackSecret = "whsec"
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.Auth.EnableDevLogin)
}

func TestGatewayTimeoutDefault(t *testing.T) {
	assert.Equal(t, int64(10), int64(GatewayConfig{}.Timeout().Seconds()))
}
