package providers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/definitions"
	"github.com/km-arc/go-wiring/framework/inspector"
	"github.com/km-arc/go-wiring/framework/providers"
	"github.com/km-arc/go-wiring/framework/routing"
)

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Name: "billing", Env: "testing"},
		Container: config.ContainerConfig{ParameterPrefix: "PARAM_"},
	}
}

func TestParametersProvider(t *testing.T) {
	t.Setenv("PARAM_MAIL_HOST", "smtp.internal")
	cfg := testConfig()

	c := container.New()
	registry := container.NewProviderRegistry(c)
	require.NoError(t, registry.Register(context.Background(), &providers.ParametersProvider{Config: cfg}))

	name, ok := c.Parameter("app.name")
	require.True(t, ok)
	assert.Equal(t, "billing", name)
	host, _ := c.Parameter("mail.host")
	assert.Equal(t, "smtp.internal", host)

	got, err := container.Resolve[*config.Config](context.Background(), c, "config")
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestDefinitionsProvider(t *testing.T) {
	file := filepath.Join(t.TempDir(), "services.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
services:
  greeting:
    module: greeting
    arguments: ["%app.name%"]
`), 0o600))

	modules := container.NewModuleRegistry()
	modules.Register("greeting", func(name string) string { return "hello " + name })

	c := container.New(container.WithModulesResolver(modules))
	registry := container.NewProviderRegistry(c)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &providers.ParametersProvider{Config: testConfig()}))
	require.NoError(t, registry.Register(ctx, &providers.DefinitionsProvider{Files: []string{file}}))
	require.NoError(t, c.Compile())
	require.NoError(t, registry.Boot(ctx))

	got, err := c.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello billing", got)

	loader, err := container.Resolve[*definitions.Loader](ctx, c, "definitions.loader")
	require.NoError(t, err)
	assert.NotNil(t, loader)
}

func TestDefinitionsProvider_InvalidFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "services.yml")
	require.NoError(t, os.WriteFile(file, []byte("services:\n  bad: {}\n"), 0o600))

	c := container.New()
	err := container.NewProviderRegistry(c).Register(context.Background(),
		&providers.DefinitionsProvider{Files: []string{file}})
	assert.ErrorContains(t, err, "services.bad")
}

func TestInspectorProvider_Deferred(t *testing.T) {
	c := container.New()
	registry := container.NewProviderRegistry(c)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &providers.InspectorProvider{}))
	require.NoError(t, c.Compile())
	require.NoError(t, registry.Boot(ctx))

	assert.ElementsMatch(t, []string{"router", "inspector"}, registry.Deferred())
	assert.Empty(t, c.Services(container.ServiceFilter{}))

	router, err := container.Resolve[*routing.Router](ctx, c, "router")
	require.NoError(t, err)
	assert.Empty(t, registry.Deferred())

	insp, err := container.Resolve[*inspector.Inspector](ctx, c, "inspector")
	require.NoError(t, err)
	assert.NotNil(t, insp)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/services/router", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
