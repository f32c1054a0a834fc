// Package container is a dependency injection container driven by
// declarative service definitions.
//
// # Overview
//
// A Service describes how to build one named object: from a module path
// (resolved by a ModulesResolver), from a factory service or function, or as
// an alias of another id. Its constructor Arguments are typed references
// resolved on demand: literal values, parameters, other services, or
// collections of tagged services.
//
// Instances are built lazily by Get. Shared services (the default) are
// constructed once and cached; concurrent requests for a shared service
// being constructed wait for that single construction. Cycles, including
// cycles between concurrent requests, fail with ErrCyclicResolution instead
// of hanging.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithLogger(logger))
//  2. Register: SetService, SetParameter, SetAlias, LoadDefinitions, providers
//  3. Compile: c.Compile()   expands parameter placeholders, links parents
//  4. Preload: c.Preload(ctx)
//  5. Resolve: c.Get(ctx, "mailer")
//
// # Definitions
//
//	modules := container.NewModuleRegistry()
//	modules.Register("mail/smtp", smtp.New)
//
//	c := container.New(container.WithModulesResolver(modules))
//	c.SetParameter("mail.dsn", "smtp://%mail.host%:25")
//	c.SetParameter("mail.host", "localhost")
//
//	c.SetService("mailer", container.NewService("mail/smtp").
//	    SetArguments(container.Param("mail.dsn"), container.OptionalRef("logger")).
//	    AddCall(container.NewCall("Warmup")))
//
//	c.SetService("newsletter", container.NewFactoryService(container.Factory{
//	    Service: "mailer", Method: "Newsletter",
//	}).SetShared(false))
//
//	c.SetAlias("mail", "mailer")
//
// # Resolving
//
//	mailer, err := container.Resolve[*smtp.Mailer](ctx, c, "mailer")
//	send, err := c.Get(ctx, "mailer:Send")  // bound method value
//
// # Tags
//
//	c.SetService("listener.audit", container.NewService("audit").
//	    AddTag("listener", map[string]any{"priority": 10}))
//
//	c.SetService("dispatcher", container.NewService("events").
//	    SetArguments(container.Tagged("listener")))
//
// # Service Providers
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(ctx, &MailProvider{})
//	c.Compile()
//	registry.Boot(ctx)
package container
