package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Database: DBConfig{Driver: StoreDriverMemory},
		Jobs:     JobsConfig{MaxWorkers: 2, QueueSize: 10},
		Scorer:   ScorerConfig{QuickLatency: time.Second, AdvancedLatency: 2 * time.Second},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "Valid config", mutate: func(_ *Config) {}},
		{name: "Unknown store driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "Zero workers", mutate: func(c *Config) { c.Jobs.MaxWorkers = 0 }, wantErr: true},
		{name: "Zero queue", mutate: func(c *Config) { c.Jobs.QueueSize = 0 }, wantErr: true},
		{name: "Negative latency", mutate: func(c *Config) { c.Scorer.QuickLatency = -time.Second }, wantErr: true},
		{name: "Short JWT secret", mutate: func(c *Config) { c.Auth.JWTSecret = "short" }, wantErr: true},
		{
			name:    "Stripe key without webhook secret",
			mutate:  func(c *Config) { c.Billing.StripeSecretKey = "sk_test_123" },
			wantErr: true,
		},
		{
			name: "Stripe fully configured",
			mutate: func(c *Config) {
				c.Billing.StripeSecretKey = "sk_test_123"
				c.Billing.StripeWebhookSecret = "whsec_123"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "an-integration-test-secret")
	t.Setenv("MAX_WORKERS", "7")
	t.Setenv("SCORER_QUICK_LATENCY", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.Database.Driver)
	assert.Equal(t, 7, cfg.Jobs.MaxWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.Scorer.QuickLatency)
	assert.Equal(t, 8*time.Second, cfg.Scorer.AdvancedLatency)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.Lease)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "STORE_DRIVER=memory\nJWT_SECRET=dotenv-secret-value-123\nJOB_QUEUE_SIZE=3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Jobs.QueueSize)
	assert.Equal(t, "dotenv-secret-value-123", cfg.Auth.JWTSecret)
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")

	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5433, Username: "u", Password: "p", Database: "d"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", c.DSN())
}
