package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, "marketplace", cfg.Store.Namespace)
	assert.Equal(t, "http://127.0.0.1:5000/api/sellers/register", cfg.Backend.UpgradeURL())
	assert.Equal(t, "http://127.0.0.1:5000/api/auth/google", cfg.Provider.StartURL(cfg.Backend))
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout())
	assert.Equal(t, "/", cfg.Routes.Root)
	assert.Equal(t, "/seller/login", cfg.Routes.SellerLogin)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com/")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "5")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, "https://api.example.com/api/sellers/register", cfg.Backend.UpgradeURL())
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, "0.0.0.0:9000", cfg.App.Addr())
	assert.Equal(t, time.Duration(0), cfg.App.RequestTimeout())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"STORE_BACKEND": "sqlite"}},
		{name: "postgres without dsn", env: map[string]string{"STORE_BACKEND": "postgres"}},
		{name: "bad redis db", env: map[string]string{"REDIS_DB": "zero"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "x")
	t.Setenv("SOME_BOOL", "maybe")

	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
	assert.True(t, getEnvAsBool("SOME_BOOL", true))
}
