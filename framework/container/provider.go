package container

import (
	"context"
	"fmt"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registration of related services.
//
// Register only declares definitions and parameters. Boot runs after every
// provider has been registered and the container compiled, so it may resolve
// services.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(c *container.Container) error {
//	    return c.SetService("mailer", container.NewService("mail/smtp").
//	        SetArguments(container.Param("mail.dsn")))
//	}
type ServiceProvider interface {
	Register(c *Container) error

	Boot(ctx context.Context, c *Container) error

	// Provides lists the service ids a deferred provider registers.
	Provides() []string

	// IsDeferred reports whether the provider is registered lazily, the first
	// time one of its Provides() ids is looked up.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot, Provides and
// IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(context.Context, *Container) error { return nil }
func (p *BaseProvider) Provides() []string                     { return nil }
func (p *BaseProvider) IsDeferred() bool                       { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders, including deferred
// ones.
type ProviderRegistry struct {
	mu         sync.Mutex
	app        *Container
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // service id → provider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to app and hooks deferred
// providers into its missing-service lookup.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	r := &ProviderRegistry{
		app:        app,
		deferred:   make(map[string]ServiceProvider),
		registered: make(map[ServiceProvider]bool),
	}
	app.OnMissing(r.loadDeferred)
	return r
}

// Register adds a provider. Eager providers are registered at once, and
// booted at once when the registry already booted.
func (r *ProviderRegistry) Register(ctx context.Context, provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, id := range provider.Provides() {
			r.deferred[id] = provider
		}
		r.mu.Unlock()
		return nil
	}
	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.app); err != nil {
		return fmt.Errorf("register %T: %w", provider, err)
	}
	if booted {
		if err := r.app.Compile(); err != nil {
			return err
		}
		if err := provider.Boot(ctx, r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// loadDeferred registers the deferred provider of id, recompiles the
// container and boots the provider. It reports whether id may now exist.
func (r *ProviderRegistry) loadDeferred(id string) bool {
	r.mu.Lock()
	provider, ok := r.deferred[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for _, other := range provider.Provides() {
		delete(r.deferred, other)
	}
	booted := r.booted
	r.mu.Unlock()

	logger := r.app.Logger()
	if err := provider.Register(r.app); err != nil {
		logger.Error("Deferred provider failed to register", "provider", fmt.Sprintf("%T", provider), "error", err)
		return false
	}
	if err := r.app.Compile(); err != nil {
		logger.Error("Container compile failed after deferred provider", "provider", fmt.Sprintf("%T", provider), "error", err)
		return false
	}
	if booted {
		if err := provider.Boot(context.Background(), r.app); err != nil {
			logger.Error("Deferred provider failed to boot", "provider", fmt.Sprintf("%T", provider), "error", err)
			return false
		}
	}
	logger.Debug("Deferred provider loaded", "provider", fmt.Sprintf("%T", provider), "service", id)
	return true
}

// Boot boots every eager provider in registration order.
func (r *ProviderRegistry) Boot(ctx context.Context) error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(ctx, r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns the eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}

// Deferred lists the service ids still waiting on a deferred provider.
func (r *ProviderRegistry) Deferred() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.deferred))
	for id := range r.deferred {
		out = append(out, id)
	}
	return out
}
