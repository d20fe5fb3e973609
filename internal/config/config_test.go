package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, AuthModeNative, cfg.AuthMode)
	assert.Equal(t, 5*time.Second, cfg.SentimentTimeout)
	assert.True(t, cfg.FeedbackRequireResolved)
	assert.False(t, cfg.AttachmentsEnabled())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "civic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\nsentiment_timeout: 2s\nlog_level: debug\n"), 0o600))

	t.Setenv("CIVIC_LOG_LEVEL", "warn")
	t.Setenv("CIVIC_FEEDBACK_REQUIRE_RESOLVED", "false")
	t.Setenv("CIVIC_BOOTSTRAP_ADMINS", "uid-1, uid-2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.SentimentTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.FeedbackRequireResolved)
	assert.Equal(t, []string{"uid-1", "uid-2"}, cfg.BootstrapAdmins)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*Config){
		"missing database":        func(c *Config) { c.DatabaseURL = "" },
		"short secret in prod":    func(c *Config) { c.Env = "production"; c.JWTSecret = "short" },
		"unknown auth mode":       func(c *Config) { c.AuthMode = "saml" },
		"firebase without creds":  func(c *Config) { c.AuthMode = AuthModeFirebase },
		"zero classifier timeout": func(c *Config) { c.SentimentTimeout = 0 },
		"minio without keys":      func(c *Config) { c.MinioEndpoint = "localhost:9000" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}
