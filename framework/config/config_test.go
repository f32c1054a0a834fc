package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/config"
)

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_NAME", "APP_ENV", "APP_DEBUG", "LOG_LEVEL",
		"WIRING_DEFINITIONS", "WIRING_PARAMETER_PREFIX", "WIRING_PRELOAD",
		"INSPECTOR_ENABLED", "INSPECTOR_ADDR"} {
		t.Setenv(key, "")
	}
	cfg := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "wiring", cfg.App.Name)
	assert.Equal(t, "local", cfg.App.Env)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Empty(t, cfg.Container.Definitions)
	assert.Equal(t, "PARAM_", cfg.Container.ParameterPrefix)
	assert.True(t, cfg.Container.Preload)
	assert.True(t, cfg.Inspector.Enabled)
	assert.Equal(t, ":8000", cfg.Inspector.Addr)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("APP_NAME", "billing")
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("WIRING_DEFINITIONS", "config/services.yml, config/mail.yml,,")
	t.Setenv("INSPECTOR_ENABLED", "false")

	cfg := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "billing", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, slog.LevelDebug, cfg.App.Level())
	assert.Equal(t, []string{"config/services.yml", "config/mail.yml"}, cfg.Container.Definitions)
	assert.False(t, cfg.Inspector.Enabled)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WIRING_TEST_FROM_FILE=yes\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("WIRING_TEST_FROM_FILE") })

	config.Load(path)

	assert.Equal(t, "yes", config.Get("WIRING_TEST_FROM_FILE", ""))
}

// ── Parameters ───────────────────────────────────────────────────────────────

func TestParameters_FromPrefixedEnv(t *testing.T) {
	t.Setenv("PARAM_DB_HOST", "db.internal")
	t.Setenv("PARAM_MAIL_FROM_ADDRESS", "noreply@example.com")
	t.Setenv("PARAM_", "ignored")

	cfg := &config.Config{
		App:       config.AppConfig{Name: "billing", Env: "testing", Debug: true},
		Container: config.ContainerConfig{ParameterPrefix: "PARAM_"},
	}
	params := cfg.Parameters()

	assert.Equal(t, "db.internal", params["db.host"])
	assert.Equal(t, "noreply@example.com", params["mail.from.address"])
	assert.Equal(t, "billing", params["app.name"])
	assert.Equal(t, "testing", params["app.env"])
	assert.Equal(t, true, params["app.debug"])
	assert.NotContains(t, params, "")
}

func TestParameters_NoPrefix(t *testing.T) {
	t.Setenv("PARAM_DB_HOST", "db.internal")

	params := (&config.Config{}).Parameters()

	assert.Len(t, params, 3)
	assert.NotContains(t, params, "db.host")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, config.ParseLevel(in), in)
	}
}

// ── Get / GetInt / GetBool ───────────────────────────────────────────────────

func TestGet(t *testing.T) {
	t.Setenv("CUSTOM_KEY", "hello")
	assert.Equal(t, "hello", config.Get("CUSTOM_KEY", "default"))
	assert.Equal(t, "fallback", config.Get("WIRING_MISSING_KEY", "fallback"))
}

func TestGetInt(t *testing.T) {
	t.Setenv("SOME_INT", "42")
	assert.Equal(t, 42, config.GetInt("SOME_INT", 0))

	t.Setenv("SOME_INT", "notanint")
	assert.Equal(t, 99, config.GetInt("SOME_INT", 99))
}

func TestGetBool(t *testing.T) {
	for _, val := range []string{"true", "1", "True", "TRUE"} {
		t.Setenv("BOOL_KEY", val)
		assert.True(t, config.GetBool("BOOL_KEY", false), val)
	}

	t.Setenv("BOOL_KEY", "false")
	assert.False(t, config.GetBool("BOOL_KEY", true))

	t.Setenv("BOOL_KEY", "notabool")
	assert.True(t, config.GetBool("BOOL_KEY", true))
}
