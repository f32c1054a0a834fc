package providers

import (
	"context"
	"net/http"

	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/definitions"
	gohttp "github.com/km-arc/go-wiring/framework/http"
	"github.com/km-arc/go-wiring/framework/inspector"
	"github.com/km-arc/go-wiring/framework/routing"
)

// ── ParametersProvider ────────────────────────────────────────────────────────

// ParametersProvider binds the configuration into the container and exposes
// the environment parameters it carries.
//
// Bound ids:
//   - "config" → *config.Config
//
// Parameters: app.name, app.env, app.debug and every PARAM_* variable.
type ParametersProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ParametersProvider) Register(c *container.Container) error {
	c.SetInstance("config", p.Config)
	c.SetParameters(p.Config.Parameters())
	return nil
}

// ── DefinitionsProvider ───────────────────────────────────────────────────────

// DefinitionsProvider loads YAML definition files into the container.
//
// Bound ids:
//   - "definitions.loader" → *definitions.Loader
type DefinitionsProvider struct {
	container.BaseProvider
	Loader *definitions.Loader
	Files  []string
}

func (p *DefinitionsProvider) Register(c *container.Container) error {
	loader := p.Loader
	if loader == nil {
		loader = definitions.NewLoader(c.Logger())
	}
	c.SetInstance("definitions.loader", loader)
	if len(p.Files) == 0 {
		return nil
	}
	return loader.LoadInto(c, p.Files...)
}

func (p *DefinitionsProvider) Boot(_ context.Context, c *container.Container) error {
	if len(p.Files) > 0 {
		c.Logger().Info("Definitions registered",
			"files", p.Files,
			"services", len(c.Services(container.ServiceFilter{})))
	}
	return nil
}

// ── InspectorProvider ─────────────────────────────────────────────────────────

// InspectorProvider registers the HTTP router serving the container
// inspector. It is deferred: nothing is defined until "router" or
// "inspector" is first looked up.
//
// Bound ids:
//   - "inspector" → *inspector.Inspector
//   - "router"    → *routing.Router (inspector routes plus GET /health)
type InspectorProvider struct {
	container.BaseProvider
}

func (p *InspectorProvider) Provides() []string { return []string{"router", "inspector"} }
func (p *InspectorProvider) IsDeferred() bool   { return true }

func (p *InspectorProvider) Register(c *container.Container) error {
	err := c.SetService("inspector", container.NewFactoryService(container.Factory{
		Function: func(c *container.Container, loader *definitions.Loader) *inspector.Inspector {
			return inspector.New(c, loader)
		},
	}).SetArguments(container.Ref("container"), container.OptionalRef("definitions.loader")))
	if err != nil {
		return err
	}

	return c.SetService("router", container.NewFactoryService(container.Factory{
		Function: func(c *container.Container, insp *inspector.Inspector) *routing.Router {
			r := routing.New(c.Logger())
			r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				gohttp.NewResponse(w).Success(gohttp.Envelope{"status": "ok"})
			})
			insp.Register(r)
			return r
		},
	}).SetArguments(container.Ref("container"), container.Ref("inspector")))
}
