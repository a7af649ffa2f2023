package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beanstore/internal/config"
)

func noFile(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	noFile(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "sql", cfg.SessionStore)
	assert.False(t, cfg.Discount.Enabled())
	assert.Empty(t, cfg.Brokers())
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	noFile(t)
	t.Setenv("PORT", "9090")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ORDER_DISCOUNT_THRESHOLD", "1000")
	t.Setenv("ORDER_DISCOUNT_AMOUNT", "100")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.True(t, cfg.Discount.Threshold.Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.Discount.Enabled())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nSMTP_HOST=smtp.example.com\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.True(t, cfg.SMTPEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	noFile(t)
	t.Setenv("DB_DRIVER", "mysql")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SESSION_STORE", "redis")
	_, err = config.Load()
	assert.Error(t, err)

	t.Setenv("SESSION_STORE", "sql")
	t.Setenv("ORDER_DISCOUNT_AMOUNT", "abc")
	_, err = config.Load()
	assert.Error(t, err)
}
