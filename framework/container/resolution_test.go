package container

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolution_Tree(t *testing.T) {
	root := newRootResolution("app", "", "get")
	db := root.Child("arguments[0]", "db", "")
	conn := db.Child("@factory", "pool", "Open")
	cache := root.Child("arguments[1]", "cache", "")

	assert.True(t, root.IsRoot())
	assert.False(t, conn.IsRoot())
	assert.Equal(t, 2, conn.Depth())
	assert.Equal(t, "db", conn.Parent().ServiceID())
	assert.Equal(t, "app", conn.Root().ServiceID())
	assert.Nil(t, root.Parent())

	assert.True(t, conn.HasAncestor("app"))
	assert.True(t, conn.HasAncestor("db"))
	assert.False(t, conn.HasAncestor("pool"), "a node is not its own ancestor")
	assert.False(t, cache.HasAncestor("db"), "siblings are not ancestors")

	assert.Equal(t, []string{"get = app", "arguments[0] = db", "@factory = pool:Open"}, conn.Path())
}

func TestResolution_PendingPreOrder(t *testing.T) {
	root := newRootResolution("a", "", "get")
	b := root.Child("arguments[0]", "b", "")
	c := b.Child("arguments[0]", "c", "")
	d := root.Child("arguments[1]", "d", "")

	for _, r := range []*Resolution{d, c, b, root} {
		r.setInstance(r.ServiceID(), []Call{NewCall("Init")})
	}
	b.setInstance("b", nil)

	var got []string
	for _, r := range root.pending() {
		got = append(got, r.ServiceID())
	}
	assert.Equal(t, []string{"a", "c", "d"}, got)
}

func TestResolution_DetachedPath(t *testing.T) {
	root := newRootResolution("a", "", "get")
	b := root.Child("arguments[0]", "b", "")
	call := b.detach("@call b.SetA")
	child := call.Child("arguments[0]", "a", "")

	assert.False(t, child.HasAncestor("a"))
	assert.Equal(t, 1, call.tree.nesting)
	assert.Equal(t, []string{
		"get = a", "arguments[0] = b",
		"@call b.SetA = ", "arguments[0] = a",
	}, child.Path())
}

func TestResolutionError_Format(t *testing.T) {
	r := newRootResolution("a", "", "get").Child("arguments[0]", "b", "")
	cause := errors.New("boom")
	err := newError(ErrConstruction, r, "factory", cause)

	assert.Equal(t, "container: construction failed [b] (factory): boom [path: get = a -> arguments[0] = b]", err.Error())
	assert.ErrorIs(t, err, ErrConstruction)
	assert.ErrorIs(t, err, cause)

	wrapped := asResolutionError(err, ErrCall, nil, "")
	assert.Same(t, err, wrapped)
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref, id, method string
		ok              bool
	}{
		{"mailer", "mailer", "", true},
		{"mailer:send", "mailer", "send", true},
		{"a.b-c_d", "a.b-c_d", "", true},
		{"a:b:c", "", "", false},
		{"mailer:", "", "", false},
		{":send", "", "", false},
		{"has space", "", "", false},
	}
	for _, tt := range tests {
		id, method, err := parseReference(tt.ref)
		if !tt.ok {
			assert.Error(t, err, tt.ref)
			continue
		}
		require.NoError(t, err, tt.ref)
		assert.Equal(t, tt.id, id)
		assert.Equal(t, tt.method, method)
	}
}

// ── invoke ────────────────────────────────────────────────────────────────────

type greeter struct{ prefix string }

func (g *greeter) Greet(name string) string { return g.prefix + name }

func TestCallable(t *testing.T) {
	g := &greeter{prefix: "hi "}

	fn, err := callable(g, "greet")
	require.NoError(t, err)
	out, err := invoke(context.Background(), fn, []any{"bob"})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", out)

	exports := map[string]any{"double": func(n int) int { return n * 2 }}
	fn, err = callable(exports, "double")
	require.NoError(t, err)
	out, err = invoke(context.Background(), fn, []any{float64(4)})
	require.NoError(t, err)
	assert.Equal(t, 8, out)

	_, err = callable(g, "missing")
	assert.Error(t, err)
	_, err = callable(42, "")
	assert.Error(t, err)
	_, err = callable(nil, "")
	assert.Error(t, err)
}

func TestInvoke_Conversions(t *testing.T) {
	type key string
	fn := reflect.ValueOf(func(ctx context.Context, n int64, names []string, m map[string]int, k key, p *greeter) string {
		if ctx == nil || p != nil {
			return "bad"
		}
		return string(k) + names[1]
	})

	out, err := invoke(context.Background(), fn, []any{
		3, []any{"a", "b"}, map[string]any{"x": 1}, "k-", nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "k-b", out)

	_, err = invoke(context.Background(), fn, []any{1})
	assert.ErrorContains(t, err, "expects 6 arguments")

	_, err = invoke(context.Background(), fn, []any{"x", nil, nil, "", nil})
	assert.ErrorContains(t, err, "argument 1")
}

func TestInvoke_Results(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	out, err := invoke(ctx, reflect.ValueOf(func() {}), nil)
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = invoke(ctx, reflect.ValueOf(func() error { return boom }), nil)
	assert.ErrorIs(t, err, boom)

	out, err = invoke(ctx, reflect.ValueOf(func() (*greeter, error) { return nil, nil }), nil)
	assert.NoError(t, err)
	assert.Nil(t, out)

	_, err = invoke(ctx, reflect.ValueOf(func() int { panic("oops") }), nil)
	assert.ErrorContains(t, err, "panic: oops")
}

// ── modules ───────────────────────────────────────────────────────────────────

func TestModuleRegistry_Resolve(t *testing.T) {
	m := NewModuleRegistry()
	m.Register("./mail/smtp", "smtp")
	m.Register("shared/log", "log")

	got, err := m.Resolve("mail/smtp", "")
	require.NoError(t, err)
	assert.Equal(t, "smtp", got)

	got, err = m.Resolve("./smtp", "mail/services.yml")
	require.NoError(t, err)
	assert.Equal(t, "smtp", got)

	got, err = m.Resolve("../shared/log", "config/app.yml")
	require.NoError(t, err)
	assert.Equal(t, "log", got)

	got, err = m.Resolve("./shared/log", "elsewhere/app.yml")
	require.NoError(t, err, "falls back to the path as written")
	assert.Equal(t, "log", got)

	_, err = m.Resolve("nope", "")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	assert.Equal(t, []string{"mail/smtp", "shared/log"}, m.Paths())
}

func TestDetectCreationMode(t *testing.T) {
	mode, err := detectCreationMode(ClassFunc(func(context.Context, ...any) (any, error) { return nil, nil }))
	require.NoError(t, err)
	assert.Equal(t, CreationClass, mode)

	mode, err = detectCreationMode(func() {})
	require.NoError(t, err)
	assert.Equal(t, CreationFunction, mode)

	_, err = detectCreationMode("plain")
	assert.Error(t, err)
	_, err = detectCreationMode(nil)
	assert.Error(t, err)
}

// ── definitions ───────────────────────────────────────────────────────────────

func TestDefinition_ParentFallback(t *testing.T) {
	c := New()
	require.NoError(t, c.SetService("grand", NewService("g").SetPreloaded(true).AddTag("g", nil)))
	require.NoError(t, c.SetService("parent", NewChildService("grand").SetShared(false)))
	require.NoError(t, c.SetService("child", NewChildService("parent").SetOrigin("child.yml").AddTag("c", nil)))
	require.NoError(t, c.Compile())

	d, ok := c.definition("child")
	require.True(t, ok)
	assert.Equal(t, SourceModule, d.source)
	assert.Equal(t, "g", d.module)
	assert.False(t, d.shared)
	assert.True(t, d.preloaded)
	assert.True(t, d.public)
	assert.Equal(t, CreationAuto, d.mode)
	assert.Equal(t, []Tag{{Name: "c"}}, d.tags)
	assert.False(t, d.hasArguments)
	assert.Equal(t, "child.yml", d.origin)
}

func TestDefinition_ParentReadAtLookupTime(t *testing.T) {
	c := New()
	require.NoError(t, c.SetService("parent", NewService("m")))
	require.NoError(t, c.SetService("child", NewChildService("parent")))
	require.NoError(t, c.Compile())

	require.NoError(t, c.SetService("parent", NewService("m").SetPublic(false).SetExtends(true)))

	d, _ := c.definition("child")
	assert.False(t, d.public)
}
