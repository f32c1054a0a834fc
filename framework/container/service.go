package container

// ── Construction sources ──────────────────────────────────────────────────────

// SourceKind tells how a service is built.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceModule
	SourceFactory
	SourceAlias
)

func (k SourceKind) String() string {
	switch k {
	case SourceModule:
		return "module"
	case SourceFactory:
		return "factory"
	case SourceAlias:
		return "alias"
	}
	return "none"
}

// CreationMode decides what is done with a resolved module.
type CreationMode string

const (
	// CreationAuto picks class or function from the shape of the module.
	CreationAuto CreationMode = "auto"
	// CreationModule returns the module verbatim.
	CreationModule CreationMode = "module"
	// CreationFunction calls the module with the resolved arguments.
	CreationFunction CreationMode = "function"
	// CreationClass instantiates a Class with the resolved arguments.
	CreationClass CreationMode = "class"
)

// Factory builds a service by calling another service (or an inline function).
// With Method set, the method of that name is called on the factory instance.
type Factory struct {
	Service  string `json:"service,omitempty"`
	Method   string `json:"method,omitempty"`
	Function any    `json:"-"`
}

// Call is a lifecycle method invoked on a freshly built instance once the
// whole resolution tree has been constructed. A nil Arguments slice means
// "not declared" and enables autowiring for autowired services.
//
// Calls run in declaration order and a failing call aborts the resolution.
// A call may hand back work still running, as a chan error or a func() error:
// an awaited call waits for it before the next call starts, other calls leave
// it running and only log its failure.
type Call struct {
	Method    string     `json:"method"`
	Arguments []Argument `json:"-"`
	Await     bool       `json:"await"`
}

// NewCall declares an awaited call.
func NewCall(method string, args ...Argument) Call {
	return Call{Method: method, Arguments: args, Await: true}
}

// NewAsyncCall declares a call whose returned work is not waited for.
func NewAsyncCall(method string, args ...Argument) Call {
	return Call{Method: method, Arguments: args}
}

// Configurator is a service method invoked with the new instance as its only
// argument before the instance is handed out.
type Configurator struct {
	Service string `json:"service"`
	Method  string `json:"method,omitempty"`
}

// ── Service definition ────────────────────────────────────────────────────────

type property uint16

const (
	propSource property = 1 << iota
	propMode
	propArguments
	propTags
	propCalls
	propConfigurator
	propShared
	propPreloaded
	propAutowired
	propPublic
)

// Service describes how to build one named object. Properties that were
// never set fall back to the parent definition (see SetParent) and then to
// the container defaults: shared, public, not preloaded, not autowired,
// creation mode auto.
type Service struct {
	set property

	origin  string
	parent  string
	extends bool

	source  SourceKind
	module  string
	factory Factory
	alias   string

	mode         CreationMode
	arguments    []Argument
	tags         []Tag
	calls        []Call
	configurator Configurator

	shared    bool
	preloaded bool
	autowired bool
	public    bool
}

// NewService defines a service built from a module path.
//
//	container.NewService("./mail/smtp").SetArguments(container.Param("mail.host"))
func NewService(module string) *Service {
	return (&Service{}).SetModule(module)
}

// NewFactoryService defines a service built by a factory.
//
//	container.NewFactoryService(container.Factory{Service: "connections", Method: "Open"})
func NewFactoryService(f Factory) *Service {
	return (&Service{}).SetFactory(f)
}

// NewAliasService defines id as another name for target.
func NewAliasService(target string) *Service {
	return (&Service{}).SetAlias(target)
}

// NewChildService defines a service inheriting every unset property from parent.
func NewChildService(parent string) *Service {
	return (&Service{}).SetParent(parent)
}

func (s *Service) mark(p property) *Service {
	s.set |= p
	return s
}

func (s *Service) has(p property) bool { return s.set&p != 0 }

// ── Builders ──────────────────────────────────────────────────────────────────
// Setting a construction source replaces the previous one: a service has at
// most one of module, factory or alias.

func (s *Service) SetModule(path string) *Service {
	s.source, s.module, s.factory, s.alias = SourceModule, path, Factory{}, ""
	return s.mark(propSource)
}

func (s *Service) SetFactory(f Factory) *Service {
	s.source, s.module, s.factory, s.alias = SourceFactory, "", f, ""
	return s.mark(propSource)
}

func (s *Service) SetAlias(target string) *Service {
	s.source, s.module, s.factory, s.alias = SourceAlias, "", Factory{}, target
	return s.mark(propSource)
}

func (s *Service) SetCreationMode(mode CreationMode) *Service {
	s.mode = mode
	return s.mark(propMode)
}

// SetArguments declares the constructor arguments. Declaring arguments, even
// an empty list, disables autowiring of the constructor.
func (s *Service) SetArguments(args ...Argument) *Service {
	s.arguments = append([]Argument{}, args...)
	return s.mark(propArguments)
}

func (s *Service) AddArgument(arg Argument) *Service {
	s.arguments = append(s.arguments, arg)
	return s.mark(propArguments)
}

func (s *Service) SetTags(tags ...Tag) *Service {
	s.tags = append([]Tag{}, tags...)
	return s.mark(propTags)
}

func (s *Service) AddTag(name string, data map[string]any) *Service {
	s.tags = append(s.tags, NewTag(name, data))
	return s.mark(propTags)
}

func (s *Service) SetCalls(calls ...Call) *Service {
	s.calls = append([]Call{}, calls...)
	return s.mark(propCalls)
}

func (s *Service) AddCall(call Call) *Service {
	s.calls = append(s.calls, call)
	return s.mark(propCalls)
}

func (s *Service) SetConfigurator(service, method string) *Service {
	s.configurator = Configurator{Service: service, Method: method}
	return s.mark(propConfigurator)
}

func (s *Service) SetShared(v bool) *Service {
	s.shared = v
	return s.mark(propShared)
}

func (s *Service) SetPreloaded(v bool) *Service {
	s.preloaded = v
	return s.mark(propPreloaded)
}

func (s *Service) SetAutowired(v bool) *Service {
	s.autowired = v
	return s.mark(propAutowired)
}

func (s *Service) SetPublic(v bool) *Service {
	s.public = v
	return s.mark(propPublic)
}

// SetParent names the definition unset properties are read from.
func (s *Service) SetParent(id string) *Service {
	s.parent = id
	return s
}

// SetExtends marks the definition as a partial redefinition: registering it
// under an existing id merges its properties into the existing definition.
func (s *Service) SetExtends(v bool) *Service {
	s.extends = v
	return s
}

// SetOrigin records the file the definition came from. Relative module paths
// are resolved against it.
func (s *Service) SetOrigin(path string) *Service {
	s.origin = path
	return s
}

// ── Accessors (own values, no parent fallback) ────────────────────────────────

func (s *Service) Source() SourceKind { return s.source }
func (s *Service) Module() string     { return s.module }
func (s *Service) Factory() Factory   { return s.factory }
func (s *Service) Alias() string      { return s.alias }
func (s *Service) Parent() string     { return s.parent }
func (s *Service) Extends() bool      { return s.extends }
func (s *Service) Origin() string     { return s.origin }

// merge copies every property set on other into s.
func (s *Service) merge(other *Service) {
	if other.has(propSource) {
		s.source, s.module, s.factory, s.alias = other.source, other.module, other.factory, other.alias
	}
	if other.has(propMode) {
		s.mode = other.mode
	}
	if other.has(propArguments) {
		s.arguments = append([]Argument{}, other.arguments...)
	}
	if other.has(propTags) {
		s.tags = append([]Tag{}, other.tags...)
	}
	if other.has(propCalls) {
		s.calls = append([]Call{}, other.calls...)
	}
	if other.has(propConfigurator) {
		s.configurator = other.configurator
	}
	if other.has(propShared) {
		s.shared = other.shared
	}
	if other.has(propPreloaded) {
		s.preloaded = other.preloaded
	}
	if other.has(propAutowired) {
		s.autowired = other.autowired
	}
	if other.has(propPublic) {
		s.public = other.public
	}
	if other.parent != "" {
		s.parent = other.parent
	}
	if other.origin != "" {
		s.origin = other.origin
	}
	s.set |= other.set
}

func (s *Service) clone() *Service {
	c := *s
	c.arguments = append([]Argument(nil), s.arguments...)
	c.tags = append([]Tag(nil), s.tags...)
	c.calls = append([]Call(nil), s.calls...)
	return &c
}

// ── Effective definition ──────────────────────────────────────────────────────

// definition is the read-time view of a Service after walking the parent chain.
type definition struct {
	id     string
	origin string

	source  SourceKind
	module  string
	factory Factory
	alias   string

	mode         CreationMode
	arguments    []Argument
	hasArguments bool
	tags         []Tag
	calls        []Call
	configurator *Configurator

	shared    bool
	preloaded bool
	autowired bool
	public    bool
}

func defaultDefinition(id string) definition {
	return definition{id: id, mode: CreationAuto, shared: true, public: true}
}

// apply fills every property of d still missing from s. filled tracks what
// a closer definition in the chain already provided.
func (d *definition) apply(s *Service, filled *property) {
	take := func(p property) bool {
		if s.has(p) && *filled&p == 0 {
			*filled |= p
			return true
		}
		return false
	}
	if d.origin == "" {
		d.origin = s.origin
	}
	if take(propSource) {
		d.source, d.module, d.factory, d.alias = s.source, s.module, s.factory, s.alias
		if s.origin != "" {
			d.origin = s.origin
		}
	}
	if take(propMode) {
		d.mode = s.mode
	}
	if take(propArguments) {
		d.arguments, d.hasArguments = s.arguments, true
	}
	if take(propTags) {
		d.tags = s.tags
	}
	if take(propCalls) {
		d.calls = s.calls
	}
	if take(propConfigurator) {
		cfg := s.configurator
		d.configurator = &cfg
	}
	if take(propShared) {
		d.shared = s.shared
	}
	if take(propPreloaded) {
		d.preloaded = s.preloaded
	}
	if take(propAutowired) {
		d.autowired = s.autowired
	}
	if take(propPublic) {
		d.public = s.public
	}
}

func (d *definition) hasTag(name string) (Tag, bool) {
	for _, t := range d.tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}
