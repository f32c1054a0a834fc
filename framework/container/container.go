package container

import (
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var serviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ── Container ─────────────────────────────────────────────────────────────────

// Container owns the service definitions, the parameter table, manually
// registered instances, the shared-instance cache and the in-flight
// constructions. It is mutated during registration, frozen-ish by Compile,
// then used concurrently through Get.
type Container struct {
	mu sync.RWMutex

	// definitions arena: services[index[id]]; parents[i] is the index of the
	// parent definition, -1 when none (linked by Compile)
	services []*Service
	ids      []string
	index    map[string]int
	parents  []int

	// parameters as registered, and as compiled from them
	rawParameters map[string]any
	parameters    map[string]any

	// id → value registered with SetInstance
	instances map[string]any

	// id → constructed shared instance
	shared map[string]any

	// id → construction in progress, and which request tree waits on which
	flights map[string]*flight
	waiting map[*resolutionTree]*flight

	argumentResolvers map[ArgumentType]ArgumentResolverFactory

	// contextual: when[consumer][needs] = give
	contextual map[string]map[string]string

	afterResolving []func(id string, instance any)
	missing        []func(id string) bool

	modules  ModulesResolver
	autowire AutowireResolver
	logger   *slog.Logger
	compiled bool
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for resolution traces.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithModulesResolver replaces the default ModuleRegistry.
func WithModulesResolver(m ModulesResolver) Option {
	return func(c *Container) { c.modules = m }
}

// WithAutowireResolver replaces the default autowiring strategy.
func WithAutowireResolver(a AutowireResolver) Option {
	return func(c *Container) { c.autowire = a }
}

// WithParameterExtractor keeps the default autowiring strategy but reads
// parameters from extractor.
func WithParameterExtractor(extractor ParameterExtractor) Option {
	return func(c *Container) { c.autowire = NewAutowireResolver(extractor) }
}

// New creates an empty container. The container is registered as the
// instance "container".
func New(opts ...Option) *Container {
	c := &Container{
		index:             make(map[string]int),
		rawParameters:     make(map[string]any),
		parameters:        make(map[string]any),
		instances:         make(map[string]any),
		shared:            make(map[string]any),
		flights:           make(map[string]*flight),
		waiting:           make(map[*resolutionTree]*flight),
		argumentResolvers: make(map[ArgumentType]ArgumentResolverFactory),
		contextual:        make(map[string]map[string]string),
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.modules == nil {
		c.modules = NewModuleRegistry()
	}
	if c.autowire == nil {
		c.autowire = NewAutowireResolver(NewDeclaredParameters())
	}
	registerBuiltinResolvers(c)

	c.instances["container"] = c
	return c
}

// Modules returns the modules resolver.
func (c *Container) Modules() ModulesResolver { return c.modules }

// Logger returns the container logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// ── Registration ──────────────────────────────────────────────────────────────

// SetService registers s under id. When s is marked SetExtends(true) and id
// already exists, s's properties are merged into the existing definition;
// otherwise the previous definition is replaced.
//
//	c.SetService("mailer", container.NewService("mail/smtp").
//	    SetArguments(container.Param("mail.host"), container.Ref("logger")))
func (c *Container) SetService(id string, s *Service) error {
	if !serviceIDPattern.MatchString(id) {
		return &ResolutionError{Kind: ErrInvalidReference, ServiceID: id,
			Err: fmt.Errorf("service id must match %s", serviceIDPattern)}
	}
	if s == nil {
		return &ResolutionError{Kind: ErrInvalidReference, ServiceID: id, Err: fmt.Errorf("nil service")}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[id]; ok {
		if s.extends {
			c.services[i].merge(s)
		} else {
			c.services[i] = s.clone()
		}
		return nil
	}

	c.index[id] = len(c.services)
	c.services = append(c.services, s.clone())
	c.ids = append(c.ids, id)
	c.parents = append(c.parents, -1)
	return nil
}

// SetServices registers several services. A map carries no order, so they
// are registered sorted by id, which is the order Services and tag lookups
// without priorities report. Use SetServiceList to keep the caller's order.
func (c *Container) SetServices(services map[string]*Service) error {
	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := c.SetService(id, services[id]); err != nil {
			return err
		}
	}
	return nil
}

// SetServiceList registers services in the given order.
func (c *Container) SetServiceList(services ...ServiceDefinition) error {
	for _, sd := range services {
		if err := c.SetService(sd.ID, sd.Service); err != nil {
			return err
		}
	}
	return nil
}

// SetAlias registers alias as another name for target.
func (c *Container) SetAlias(alias, target string) error {
	if alias == target {
		return &ResolutionError{Kind: ErrCyclicResolution, ServiceID: alias,
			Err: fmt.Errorf("[%s] is aliased to itself", alias)}
	}
	return c.SetService(alias, NewAliasService(target))
}

// SetInstance registers a pre-built value. Instances win over definitions.
//
//	c.SetInstance("config", cfg)
func (c *Container) SetInstance(id string, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[id] = instance
}

// SetParameter stores a parameter value. Placeholders in it are expanded
// by the next Compile.
func (c *Container) SetParameter(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rawParameters[name] = value
	c.parameters[name] = value
}

// SetParameters stores several parameters.
func (c *Container) SetParameters(params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range params {
		c.rawParameters[k] = v
		c.parameters[k] = v
	}
}

// Parameter returns a parameter value.
func (c *Container) Parameter(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.parameters[name]
	return v, ok
}

// Parameters returns a copy of the parameter table.
func (c *Container) Parameters() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.parameters))
	for k, v := range c.parameters {
		out[k] = v
	}
	return out
}

// SetArgumentTypeResolver registers (or replaces) the resolver for typ.
func (c *Container) SetArgumentTypeResolver(typ ArgumentType, factory ArgumentResolverFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.argumentResolvers[typ] = factory
}

// AfterResolving registers a callback fired after every construction.
func (c *Container) AfterResolving(cb func(id string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

// OnMissing registers a hook consulted when an id has no definition. The hook
// may register it and return true to have the lookup retried.
func (c *Container) OnMissing(hook func(id string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing = append(c.missing, hook)
}

// ── Definitions ───────────────────────────────────────────────────────────────

// ServiceDefinition is one entry of a Definitions source.
type ServiceDefinition struct {
	ID      string
	Service *Service
}

// Definitions is a normalized definitions source, as produced by a loader.
type Definitions struct {
	Parameters map[string]any
	Services   []ServiceDefinition
}

// LoadDefinitions merges defs into the container tables.
func (c *Container) LoadDefinitions(defs *Definitions) error {
	if defs == nil {
		return nil
	}
	c.SetParameters(defs.Parameters)
	return c.SetServiceList(defs.Services...)
}

// ── Compile ───────────────────────────────────────────────────────────────────

// Compile resolves parameters referencing other parameters and links every
// definition to its parent. It may be called again after new registrations.
func (c *Container) Compile() error {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	params, err := compileParameters(c.rawParameters)
	if err != nil {
		return err
	}
	c.parameters = params

	for i, s := range c.services {
		c.parents[i] = -1
		if s.parent == "" {
			continue
		}
		p, ok := c.index[s.parent]
		if !ok {
			return &ResolutionError{Kind: ErrNotFound, ServiceID: c.ids[i], Step: "parent",
				Err: fmt.Errorf("parent [%s] is not defined", s.parent)}
		}
		c.parents[i] = p
	}
	for i := range c.services {
		seen := map[int]bool{i: true}
		chain := []string{c.ids[i]}
		for p := c.parents[i]; p >= 0; p = c.parents[p] {
			chain = append(chain, c.ids[p])
			if seen[p] {
				return &ResolutionError{Kind: ErrCyclicResolution, ServiceID: c.ids[i], Step: "parent", Path: chain}
			}
			seen[p] = true
		}
	}

	c.compiled = true
	c.logger.Info("Container compiled",
		"services", len(c.services),
		"parameters", len(c.parameters),
		"time_ms", time.Since(start).Milliseconds())
	return nil
}

// Compiled reports whether Compile succeeded at least once.
func (c *Container) Compiled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compiled
}

// definition materializes the effective definition of id: own properties,
// then each parent in turn, then the defaults.
func (c *Container) definition(id string) (*definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.definitionLocked(id)
}

func (c *Container) definitionLocked(id string) (*definition, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	d := defaultDefinition(id)
	var filled property
	for hops := 0; i >= 0 && hops <= len(c.services); hops++ {
		d.apply(c.services[i], &filled)
		i = c.parents[i]
	}
	return &d, true
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Has reports whether id is a registered instance or definition.
func (c *Container) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, inst := c.instances[id]
	_, def := c.index[id]
	return inst || def
}

// ServiceFilter selects definitions. Empty fields match everything.
type ServiceFilter struct {
	// Pattern is a path.Match glob on the id ("mail.*").
	Pattern string
	Tag     string
	// Public keeps only public services when set.
	Public bool
}

// Services lists the ids of the definitions matching filter, in
// registration order.
func (c *Container) Services(filter ServiceFilter) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for _, id := range c.ids {
		if filter.Pattern != "" {
			if ok, _ := path.Match(filter.Pattern, id); !ok {
				continue
			}
		}
		if filter.Tag != "" || filter.Public {
			d, _ := c.definitionLocked(id)
			if filter.Public && !d.public {
				continue
			}
			if _, ok := d.hasTag(filter.Tag); filter.Tag != "" && !ok {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// TaggedService is a service id together with one of its matching tags.
type TaggedService struct {
	ID  string `json:"id"`
	Tag Tag    `json:"tag"`
}

// ServicesTags lists the services carrying any of the tag names. Matches are
// sorted by ascending tag priority; services without a priority keep
// registration order after the prioritized ones.
func (c *Container) ServicesTags(names ...string) []TaggedService {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []TaggedService
	for _, id := range c.ids {
		d, _ := c.definitionLocked(id)
		for _, name := range names {
			if t, ok := d.hasTag(name); ok {
				out = append(out, TaggedService{ID: id, Tag: t})
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := out[i].Tag.Priority()
		pj, okj := out[j].Tag.Priority()
		switch {
		case oki && okj:
			return pi < pj
		case oki != okj:
			return oki
		}
		return false
	})
	return out
}

// ServiceInfo is the effective definition of a service, for tooling.
type ServiceInfo struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	Module       string        `json:"module,omitempty"`
	Factory      *Factory      `json:"factory,omitempty"`
	Alias        string        `json:"alias,omitempty"`
	CreationMode CreationMode  `json:"creationMode"`
	Arguments    []string      `json:"arguments,omitempty"`
	Autowired    bool          `json:"autowired"`
	Tags         []Tag         `json:"tags,omitempty"`
	Calls        []string      `json:"calls,omitempty"`
	Configurator *Configurator `json:"configurator,omitempty"`
	Shared       bool          `json:"shared"`
	Preloaded    bool          `json:"preloaded"`
	Public       bool          `json:"public"`
	Parent       string        `json:"parent,omitempty"`
	Origin       string        `json:"origin,omitempty"`
}

// Describe returns the effective definition of id.
func (c *Container) Describe(id string) (ServiceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.definitionLocked(id)
	if !ok {
		return ServiceInfo{}, &ResolutionError{Kind: ErrNotFound, ServiceID: id}
	}
	info := ServiceInfo{
		ID:           id,
		Source:       d.source.String(),
		Module:       d.module,
		Alias:        d.alias,
		CreationMode: d.mode,
		Autowired:    d.autowired,
		Tags:         d.tags,
		Configurator: d.configurator,
		Shared:       d.shared,
		Preloaded:    d.preloaded,
		Public:       d.public,
		Parent:       c.services[c.index[id]].parent,
		Origin:       d.origin,
	}
	if d.source == SourceFactory {
		f := d.factory
		info.Factory = &f
	}
	for _, a := range d.arguments {
		info.Arguments = append(info.Arguments, a.String())
	}
	for _, call := range d.calls {
		args := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = a.String()
		}
		info.Calls = append(info.Calls, fmt.Sprintf("%s(%s)", call.Method, strings.Join(args, ", ")))
	}
	return info, nil
}

// ── Contextual overrides ──────────────────────────────────────────────────────

// When starts a contextual override: while consumer is being built, its
// service arguments asking for one id get another.
//
//	c.When("photos").Needs("filesystem").Give("filesystem.s3")
func (c *Container) When(consumer string) *ContextualBuilder {
	return &ContextualBuilder{container: c, consumer: consumer}
}

func (c *Container) contextualTarget(consumer, needs string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.contextual[consumer]; ok {
		if give, ok := m[needs]; ok {
			return give
		}
	}
	return needs
}
