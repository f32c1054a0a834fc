package inspector_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/inspector"
)

type dbConn struct{ host string }

func newInspector(t *testing.T) http.Handler {
	t.Helper()
	modules := container.NewModuleRegistry()
	modules.Register("db", func(host string) *dbConn { return &dbConn{host: host} })
	modules.Register("pass", func(v any) any { return v })

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	c := container.New(container.WithModulesResolver(modules), container.WithLogger(logger))
	c.SetParameter("db.host", "localhost")
	require.NoError(t, c.SetService("db", container.NewService("db").
		SetArguments(container.Param("db.host")).
		AddTag("storage", map[string]any{"priority": 1})))
	require.NoError(t, c.SetService("replica", container.NewService("db").
		SetArguments(container.Value("replica.internal")).
		AddTag("storage", map[string]any{"priority": 2})))
	require.NoError(t, c.SetService("secret", container.NewService("db").
		SetArguments(container.Value("vault")).SetPublic(false)))
	require.NoError(t, c.SetService("a", container.NewService("pass").SetArguments(container.Ref("b"))))
	require.NoError(t, c.SetService("b", container.NewService("pass").SetArguments(container.Ref("a"))))
	require.NoError(t, c.SetService("broken", container.NewService("missing/module")))
	require.NoError(t, c.Compile())

	return inspector.New(c, nil).Handler()
}

func call(t *testing.T, h http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr.Code, out
}

func ids(t *testing.T, body map[string]any) []string {
	t.Helper()
	items, ok := body["data"].([]any)
	require.True(t, ok, "data should be a list: %v", body)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.(map[string]any)["id"].(string))
	}
	return out
}

func TestInspector_Services(t *testing.T) {
	h := newInspector(t)

	status, body := call(t, h, http.MethodGet, "/services", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"db", "replica", "secret", "a", "b", "broken"}, ids(t, body))

	_, body = call(t, h, http.MethodGet, "/services?pattern=re*", "")
	assert.Equal(t, []string{"replica"}, ids(t, body))

	_, body = call(t, h, http.MethodGet, "/services?tag=storage", "")
	assert.Equal(t, []string{"db", "replica"}, ids(t, body))

	_, body = call(t, h, http.MethodGet, "/services?public", "")
	assert.NotContains(t, ids(t, body), "secret")
}

func TestInspector_ShowService(t *testing.T) {
	h := newInspector(t)

	status, body := call(t, h, http.MethodGet, "/services/db", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "module", data["source"])
	assert.Equal(t, []any{"%db.host%"}, data["arguments"])

	status, body = call(t, h, http.MethodGet, "/services/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "service not found", body["kind"])
}

func TestInspector_ParametersAndTags(t *testing.T) {
	h := newInspector(t)

	_, body := call(t, h, http.MethodGet, "/parameters", "")
	assert.Equal(t, map[string]any{"db.host": "localhost"}, body["data"])

	_, body = call(t, h, http.MethodGet, "/tags/storage", "")
	assert.Equal(t, []string{"db", "replica"}, ids(t, body))

	_, body = call(t, h, http.MethodGet, "/tags/none", "")
	assert.Equal(t, []any{}, body["data"])
}

func TestInspector_Resolve(t *testing.T) {
	h := newInspector(t)

	tests := []struct {
		target string
		status int
		kind   string
	}{
		{"/resolve/db", http.StatusOK, ""},
		{"/resolve/nope", http.StatusNotFound, "service not found"},
		{"/resolve/secret", http.StatusForbidden, "service is not public"},
		{"/resolve/a", http.StatusConflict, "cyclic resolution"},
		{"/resolve/a:b:c", http.StatusBadRequest, "invalid reference"},
		{"/resolve/broken", http.StatusInternalServerError, "construction failed"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			status, body := call(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, status)
			if tt.kind == "" {
				assert.Equal(t, "*inspector_test.dbConn", body["data"].(map[string]any)["type"])
				return
			}
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestInspector_ResolveReportsPath(t *testing.T) {
	_, body := call(t, newInspector(t), http.MethodGet, "/resolve/a", "")

	path, ok := body["path"].([]any)
	require.True(t, ok, "cyclic failures carry the debug path: %v", body)
	assert.Equal(t, "get = a", path[0])
}

func TestInspector_CheckDefinitions(t *testing.T) {
	h := newInspector(t)

	status, body := call(t, h, http.MethodPost, "/definitions/check",
		"parameters: {x: 1}\nservices:\n  mailer: {module: ./smtp}\n  store: \"@mailer\"\n")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"parameters": float64(1), "services": []any{"mailer", "store"}}, body["data"])

	status, body = call(t, h, http.MethodPost, "/definitions/check?origin=app.yml",
		"services:\n  mailer: {module: ./smtp, creationMode: magic}\n")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "app.yml: services.mailer.creationMode")

	status, _ = call(t, h, http.MethodPost, "/definitions/check", "services: [")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, h, http.MethodPost, "/definitions/check", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, inspector.Status(errors.New("plain")))
	assert.Equal(t, http.StatusNotFound, inspector.Status(&container.ResolutionError{Kind: container.ErrNotFound}))
	assert.Equal(t, http.StatusInternalServerError, inspector.Status(&container.ResolutionError{Kind: container.ErrCall}))
}
