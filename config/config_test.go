package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "identity:\n  mode: bypass\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTLH)
	assert.Equal(t, int64(12345), cfg.Identity.FallbackIdentityID)
	assert.Equal(t, "0.05", cfg.Market.Commission().String())
	assert.Equal(t, 50, cfg.Market.DefaultPageSize)
	assert.Equal(t, time.Minute, cfg.Game.PremiumSweepEvery)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("VKRPG_IDENTITY_MODE", "strict")
	t.Setenv("VKRPG_IDENTITY_APP_SECRET", "s3cret")
	t.Setenv("VKRPG_SERVER_PORT", "9001")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Identity.AppSecret)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8100
  admin_allow: ["10.0.0.0/8", "127.0.0.1"]
identity:
  mode: strict
  app_secret: abc
market:
  commission_rate: "0.1"
  lock_ttl: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Server.Port)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.AdminAllow)
	assert.Equal(t, "0.1", cfg.Market.Commission().String())
	assert.Equal(t, 3*time.Second, cfg.Market.LockTTL)
}

func TestStrictRequiresSecret(t *testing.T) {
	path := writeConfig(t, "identity:\n  mode: strict\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "app_secret")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Identity: IdentityConfig{Mode: IdentityModeBypass},
			Market:   MarketConfig{CommissionRate: "0.05", DefaultPageSize: 50, MaxPageSize: 100},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Identity.Mode = "trust-me"
	assert.Error(t, cfg.Validate())

	for _, rate := range []string{"-0.1", "1", "abc"} {
		cfg = base()
		cfg.Market.CommissionRate = rate
		assert.Error(t, cfg.Validate(), rate)
	}

	cfg = base()
	cfg.Market.MaxPageSize = 10
	assert.Error(t, cfg.Validate())
}
