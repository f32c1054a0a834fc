package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/providers"
	"github.com/km-arc/go-wiring/framework/routing"
)

// Version is the framework version reported by the CLI.
const Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Application wires configuration, logging, the container, its module
// registry and the service providers together. It embeds the Container so
// user code can call app.SetService, app.Get and friends directly.
type Application struct {
	*container.Container
	Config    *config.Config
	Modules   *container.ModuleRegistry
	Providers *container.ProviderRegistry

	logger   *slog.Logger
	bootOnce sync.Once
	bootErr  error
}

// Option customizes New.
type Option func(*Application)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.logger = logger }
}

// WithModules replaces the module registry, e.g. to share one built by
// generated registration code.
func WithModules(modules *container.ModuleRegistry) Option {
	return func(a *Application) { a.Modules = modules }
}

// New creates the application and registers the framework providers:
// parameters, the definition files listed in the configuration and, when
// enabled, the inspector.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(cfg.App, os.Stderr)
	}
	if a.Modules == nil {
		a.Modules = container.NewModuleRegistry()
	}

	a.Container = container.New(
		container.WithLogger(a.logger),
		container.WithModulesResolver(a.Modules),
	)
	a.Providers = container.NewProviderRegistry(a.Container)

	framework := []container.ServiceProvider{
		&providers.ParametersProvider{Config: cfg},
		&providers.DefinitionsProvider{Files: cfg.Container.Definitions},
	}
	if cfg.Inspector.Enabled {
		framework = append(framework, &providers.InspectorProvider{})
	}
	for _, p := range framework {
		if err := a.Register(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewLogger builds the application logger: JSON in production, text
// otherwise, at the configured level.
func NewLogger(cfg config.AppConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("app", cfg.Name)
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

// Register adds a service provider. Providers added after Boot are booted
// at once.
func (a *Application) Register(ctx context.Context, provider container.ServiceProvider) error {
	return a.Providers.Register(ctx, provider)
}

// Boot compiles the container, boots the providers and, when configured,
// preloads the preloaded services. Only the first call does the work.
func (a *Application) Boot(ctx context.Context) error {
	a.bootOnce.Do(func() {
		start := time.Now()
		if err := a.Compile(); err != nil {
			a.bootErr = fmt.Errorf("compile: %w", err)
			return
		}
		if err := a.Providers.Boot(ctx); err != nil {
			a.bootErr = err
			return
		}
		if a.Config.Container.Preload {
			if err := a.Preload(ctx); err != nil {
				a.bootErr = fmt.Errorf("preload: %w", err)
				return
			}
		}
		a.logger.Info("Application booted",
			"env", a.Config.App.Env,
			"providers", len(a.Providers.Providers()),
			"duration", time.Since(start))
	})
	return a.bootErr
}

// Router resolves the HTTP router from the container.
func (a *Application) Router(ctx context.Context) (*routing.Router, error) {
	return container.Resolve[*routing.Router](ctx, a.Container, "router")
}

// Run boots the application and serves the router on the inspector address
// until ctx is done or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Boot(ctx); err != nil {
		return err
	}
	router, err := a.Router(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx, &http.Server{
		Addr:              a.Config.Inspector.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	})
}

// Serve runs srv until ctx is done, then shuts it down.
func (a *Application) Serve(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Serving", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down", "addr", srv.Addr)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ── Environment ───────────────────────────────────────────────────────────────

func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config.App.Debug }
