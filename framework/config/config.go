package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the typed application configuration.
type Config struct {
	App       AppConfig
	Container ContainerConfig
	Inspector InspectorConfig
}

type AppConfig struct {
	Name     string
	Env      string // local | production | testing
	Debug    bool
	LogLevel string // debug | info | warn | error
}

type ContainerConfig struct {
	// Definitions lists definition files, comma separated in WIRING_DEFINITIONS.
	Definitions []string
	// ParameterPrefix selects the env vars exposed as container parameters.
	ParameterPrefix string
	Preload         bool
}

type InspectorConfig struct {
	Enabled bool
	Addr    string
}

// Load reads the given env files (.env when none) and builds a Config from
// the environment. Missing files are ignored.
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:     env("APP_NAME", "wiring"),
			Env:      env("APP_ENV", "local"),
			Debug:    envBool("APP_DEBUG", false),
			LogLevel: env("LOG_LEVEL", "info"),
		},
		Container: ContainerConfig{
			Definitions:     envList("WIRING_DEFINITIONS"),
			ParameterPrefix: env("WIRING_PARAMETER_PREFIX", "PARAM_"),
			Preload:         envBool("WIRING_PRELOAD", true),
		},
		Inspector: InspectorConfig{
			Enabled: envBool("INSPECTOR_ENABLED", true),
			Addr:    env("INSPECTOR_ADDR", ":8000"),
		},
	}
}

// Parameters returns the container parameters carried by the environment:
// app.name, app.env and app.debug, plus every variable starting with the
// parameter prefix (PARAM_DB_HOST becomes db.host).
func (c *Config) Parameters() map[string]any {
	params := map[string]any{
		"app.name":  c.App.Name,
		"app.env":   c.App.Env,
		"app.debug": c.App.Debug,
	}
	prefix := c.Container.ParameterPrefix
	if prefix == "" {
		return params
	}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		name = strings.ReplaceAll(name, "_", ".")
		params[name] = value
	}
	return params
}

// Level maps LogLevel to a slog level, defaulting to info.
func (a AppConfig) Level() slog.Level {
	return ParseLevel(a.LogLevel)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the env value of key, or defaultVal when unset.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt parses key as an int, or returns defaultVal.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool parses key as a bool, or returns defaultVal.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
