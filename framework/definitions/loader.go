package definitions

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/validation"
)

// document is the top level of a definitions file.
type document struct {
	Imports    []string  `yaml:"imports"`
	Parameters yaml.Node `yaml:"parameters"`
	Services   yaml.Node `yaml:"services"`
}

// Loader reads YAML definition files into container.Definitions.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil logger means slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads files in order, each after its own imports. Later files
// override parameters of earlier ones; services are registered in order, so
// a later definition replaces (or, with extends, amends) an earlier one.
//
// Definition problems are collected over every file and returned as a
// *validation.Errors.
func (l *Loader) Load(files ...string) (*container.Definitions, error) {
	st := &state{
		defs: &container.Definitions{Parameters: make(map[string]any)},
		errs: &validation.Errors{},
		seen: make(map[string]bool),
	}
	for _, file := range files {
		if err := l.loadFile(st, file); err != nil {
			return nil, err
		}
	}
	if err := st.errs.Err(); err != nil {
		return nil, err
	}
	return st.defs, nil
}

// Parse reads one document. origin names it in errors and is the base of
// relative imports and module paths.
func (l *Loader) Parse(data []byte, origin string) (*container.Definitions, error) {
	st := &state{
		defs: &container.Definitions{Parameters: make(map[string]any)},
		errs: &validation.Errors{},
		seen: map[string]bool{absolute(origin): true},
	}
	if err := l.parse(st, data, origin); err != nil {
		return nil, err
	}
	if err := st.errs.Err(); err != nil {
		return nil, err
	}
	return st.defs, nil
}

// LoadInto loads files and merges them into c.
func (l *Loader) LoadInto(c *container.Container, files ...string) error {
	defs, err := l.Load(files...)
	if err != nil {
		return err
	}
	return c.LoadDefinitions(defs)
}

type state struct {
	defs *container.Definitions
	errs *validation.Errors
	seen map[string]bool
}

func (l *Loader) loadFile(st *state, file string) error {
	key := absolute(file)
	if st.seen[key] {
		return nil
	}
	st.seen[key] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	return l.parse(st, data, filepath.ToSlash(file))
}

func (l *Loader) parse(st *state, data []byte, origin string) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("definitions: %s: %w", origin, err)
	}

	for _, imp := range doc.Imports {
		path := imp
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(filepath.FromSlash(origin)), imp)
		}
		if err := l.loadFile(st, path); err != nil {
			return err
		}
	}

	if doc.Parameters.Kind != 0 {
		var params map[string]any
		if err := doc.Parameters.Decode(&params); err != nil {
			st.errs.Add(origin+": parameters", "The parameters must be a mapping.")
		}
		for k, v := range params {
			st.defs.Parameters[k] = v
		}
	}

	p := newParser(origin, st.errs)
	switch doc.Services.Kind {
	case 0:
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Services.Content); i += 2 {
			id := doc.Services.Content[i].Value
			st.defs.Services = append(st.defs.Services, container.ServiceDefinition{
				ID:      id,
				Service: p.service(id, doc.Services.Content[i+1]),
			})
		}
	default:
		st.errs.Add(origin+": services", "The services must be a mapping.")
	}
	p.validate()

	l.logger.Debug("Definitions loaded",
		"file", origin,
		"imports", len(doc.Imports),
		"services", len(doc.Services.Content)/2)
	return nil
}

func absolute(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}

// ── Service parsing ──────────────────────────────────────────────────────────

// parser turns service nodes into container.Service values. Scalar fields
// are collected with their rules and validated together; structural
// problems go straight to the error bag.
type parser struct {
	origin string
	errs   *validation.Errors
	data   map[string]string
	rules  validation.Rules
}

func newParser(origin string, errs *validation.Errors) *parser {
	return &parser{
		origin: origin,
		errs:   errs,
		data:   make(map[string]string),
		rules:  make(validation.Rules),
	}
}

func (p *parser) check(field, value, rules string) {
	p.data[field] = value
	p.rules[field] = rules
}

func (p *parser) fail(field, format string, args ...any) {
	p.errs.Add(p.origin+": "+field, fmt.Sprintf(format, args...))
}

func (p *parser) validate() {
	v := validation.Make(p.data, p.rules)
	if !v.Fails() {
		return
	}
	for field, msgs := range v.Errors().Bag {
		for _, msg := range msgs {
			p.errs.Add(p.origin+": "+field, msg)
		}
	}
}

func (p *parser) service(id string, n *yaml.Node) *container.Service {
	field := "services." + id
	p.check(field, id, "service_id")

	s := (&container.Service{}).SetOrigin(p.origin)
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind == yaml.ScalarNode && strings.HasPrefix(n.Value, "@") {
		target := strings.TrimPrefix(n.Value, "@")
		p.check(field+".alias", target, "required|reference")
		return s.SetAlias(target)
	}
	if n.Kind != yaml.MappingNode {
		p.fail(field, "The %s must be a mapping or an @alias.", field)
		return s
	}

	sources := 0
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		f := field + "." + key
		switch key {
		case "module":
			p.check(f, val.Value, "required")
			s.SetModule(val.Value)
			sources++
		case "factory":
			service, method := p.pair(val, f, "service", "method")
			s.SetFactory(container.Factory{Service: service, Method: method})
			sources++
		case "alias":
			target := strings.TrimPrefix(val.Value, "@")
			p.check(f, target, "required|reference")
			s.SetAlias(target)
			sources++
		case "creationMode":
			p.check(f, val.Value, "required|in:auto,module,function,class")
			s.SetCreationMode(container.CreationMode(val.Value))
		case "arguments":
			s.SetArguments(p.arguments(val, f)...)
		case "tags":
			s.SetTags(p.tags(val, f)...)
		case "calls":
			s.SetCalls(p.calls(val, f)...)
		case "configurator":
			service, method := p.pair(val, f, "service", "method")
			s.SetConfigurator(service, method)
		case "shared":
			s.SetShared(p.bool(val, f))
		case "preloaded":
			s.SetPreloaded(p.bool(val, f))
		case "autowired":
			s.SetAutowired(p.bool(val, f))
		case "public":
			s.SetPublic(p.bool(val, f))
		case "extends":
			s.SetExtends(p.bool(val, f))
		case "parent":
			p.check(f, val.Value, "required|service_id")
			s.SetParent(val.Value)
		default:
			p.fail(f, "Unknown key %q.", key)
		}
	}

	switch {
	case sources > 1:
		p.fail(field, "The %s declares more than one of module, factory and alias.", field)
	case sources == 0 && s.Parent() == "" && !s.Extends():
		p.fail(field, "The %s must declare a module, a factory, an alias or a parent.", field)
	}
	return s
}

// pair reads "service:method", [service, method] or {service: .., method: ..}.
func (p *parser) pair(n *yaml.Node, field, first, second string) (string, string) {
	var a, b string
	switch n.Kind {
	case yaml.ScalarNode:
		a, b, _ = strings.Cut(strings.TrimPrefix(n.Value, "@"), ":")
	case yaml.SequenceNode:
		if len(n.Content) == 0 || len(n.Content) > 2 {
			p.fail(field, "The %s must be [%s, %s].", field, first, second)
			return "", ""
		}
		a = strings.TrimPrefix(n.Content[0].Value, "@")
		if len(n.Content) == 2 {
			b = n.Content[1].Value
		}
	case yaml.MappingNode:
		var m map[string]string
		if err := n.Decode(&m); err != nil {
			p.fail(field, "The %s must map %s and %s to strings.", field, first, second)
			return "", ""
		}
		a, b = strings.TrimPrefix(m[first], "@"), m[second]
	default:
		p.fail(field, "The %s must be a string, a list or a mapping.", field)
		return "", ""
	}
	p.check(field+"."+first, a, "required|reference")
	p.check(field+"."+second, b, "nullable|method")
	return a, b
}

func (p *parser) bool(n *yaml.Node, field string) bool {
	var b bool
	if err := n.Decode(&b); err != nil {
		p.fail(field, "The %s field must be true or false.", field)
	}
	return b
}

func (p *parser) tags(n *yaml.Node, field string) []container.Tag {
	if n.Kind != yaml.SequenceNode {
		p.fail(field, "The %s must be a list.", field)
		return nil
	}
	tags := make([]container.Tag, 0, len(n.Content))
	for i, item := range n.Content {
		f := fmt.Sprintf("%s.%d", field, i)
		switch item.Kind {
		case yaml.ScalarNode:
			p.check(f+".name", item.Value, "required|service_id")
			tags = append(tags, container.NewTag(item.Value, nil))
		case yaml.MappingNode:
			var data map[string]any
			if err := item.Decode(&data); err != nil {
				p.fail(f, "The %s is not a valid tag.", f)
				continue
			}
			name, _ := data["name"].(string)
			delete(data, "name")
			if len(data) == 0 {
				data = nil
			}
			p.check(f+".name", name, "required|service_id")
			tags = append(tags, container.NewTag(name, data))
		default:
			p.fail(f, "The %s must be a name or a mapping.", f)
		}
	}
	return tags
}

func (p *parser) calls(n *yaml.Node, field string) []container.Call {
	if n.Kind != yaml.SequenceNode {
		p.fail(field, "The %s must be a list.", field)
		return nil
	}
	calls := make([]container.Call, 0, len(n.Content))
	for i, item := range n.Content {
		f := fmt.Sprintf("%s.%d", field, i)
		call := container.Call{Await: true}

		switch item.Kind {
		case yaml.SequenceNode:
			// [method], [method, [args]], [method, [args], await]
			if len(item.Content) == 0 || len(item.Content) > 3 {
				p.fail(f, "The %s must be [method, arguments, await].", f)
				continue
			}
			call.Method = item.Content[0].Value
			if len(item.Content) > 1 {
				call.Arguments = p.arguments(item.Content[1], f+".arguments")
			}
			if len(item.Content) > 2 {
				call.Await = p.bool(item.Content[2], f+".await")
			}
		case yaml.MappingNode:
			for j := 0; j+1 < len(item.Content); j += 2 {
				key, val := item.Content[j].Value, item.Content[j+1]
				switch key {
				case "method":
					call.Method = val.Value
				case "arguments":
					call.Arguments = p.arguments(val, f+".arguments")
				case "await":
					call.Await = p.bool(val, f+".await")
				default:
					p.fail(f+"."+key, "Unknown key %q.", key)
				}
			}
		case yaml.ScalarNode:
			call.Method = item.Value
		default:
			p.fail(f, "The %s must be a method, a list or a mapping.", f)
			continue
		}
		p.check(f+".method", call.Method, "required|method")
		calls = append(calls, call)
	}
	return calls
}

// arguments returns a non-nil slice: declaring an empty list disables
// autowiring.
func (p *parser) arguments(n *yaml.Node, field string) []container.Argument {
	if n.Kind != yaml.SequenceNode {
		p.fail(field, "The %s must be a list.", field)
		return []container.Argument{}
	}
	args := make([]container.Argument, 0, len(n.Content))
	for i, item := range n.Content {
		v := p.value(item, fmt.Sprintf("%s.%d", field, i))
		if arg, ok := v.(container.Argument); ok {
			args = append(args, arg)
			continue
		}
		args = append(args, container.Value(v))
	}
	return args
}

// ── Values ───────────────────────────────────────────────────────────────────

// value converts an argument node. Custom tags and string shorthands become
// container.Argument values; lists and mappings are converted element-wise
// and handed to the default resolver, which resolves what they nest.
func (p *parser) value(n *yaml.Node, field string) any {
	if n.Kind == yaml.AliasNode {
		return p.value(n.Alias, field)
	}

	switch n.Tag {
	case "!service":
		return p.serviceTag(n, field)
	case "!parameter":
		if n.Kind != yaml.ScalarNode || n.Value == "" {
			p.fail(field, "The %s parameter must name a parameter.", field)
			return nil
		}
		return container.Param(n.Value)
	case "!tagged":
		return p.taggedTag(n, field)
	case "!services":
		return p.servicesTag(n, field)
	}

	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for i, item := range n.Content {
			out = append(out, p.value(item, fmt.Sprintf("%s.%d", field, i)))
		}
		return out
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			out[key] = p.value(n.Content[i+1], field+"."+key)
		}
		return out
	}

	var v any
	if err := n.Decode(&v); err != nil {
		p.fail(field, "The %s value is invalid: %v.", field, err)
		return nil
	}
	if s, ok := v.(string); ok {
		return p.shorthand(s, field)
	}
	return v
}

// shorthand reads "@id", "@?id", "@@literal" and "%name%".
func (p *parser) shorthand(s, field string) any {
	switch {
	case strings.HasPrefix(s, "@@"):
		return s[1:]
	case strings.HasPrefix(s, "@?"):
		p.check(field, s[2:], "required|reference")
		return container.OptionalRef(s[2:])
	case strings.HasPrefix(s, "@"):
		p.check(field, s[1:], "required|reference")
		return container.Ref(s[1:])
	case len(s) > 2 && s[0] == '%' && s[len(s)-1] == '%' && !strings.Contains(s[1:len(s)-1], "%"):
		return container.Param(s[1 : len(s)-1])
	}
	return s
}

// serviceTag reads `!service id` or `!service {id: .., required: false}`.
func (p *parser) serviceTag(n *yaml.Node, field string) any {
	switch n.Kind {
	case yaml.ScalarNode:
		id := strings.TrimPrefix(n.Value, "@")
		p.check(field, id, "required|reference")
		return container.Ref(id)
	case yaml.MappingNode:
		var m struct {
			ID       string `yaml:"id"`
			Required *bool  `yaml:"required"`
		}
		if err := n.Decode(&m); err != nil {
			p.fail(field, "The %s service reference is invalid.", field)
			return nil
		}
		p.check(field+".id", m.ID, "required|reference")
		if m.Required != nil && !*m.Required {
			return container.OptionalRef(m.ID)
		}
		return container.Ref(m.ID)
	}
	p.fail(field, "The %s service reference must be an id or a mapping.", field)
	return nil
}

// taggedTag reads `!tagged name` or `!tagged {tag: name, indexBy: .., orderBy: ..}`.
func (p *parser) taggedTag(n *yaml.Node, field string) any {
	switch n.Kind {
	case yaml.ScalarNode:
		p.check(field, n.Value, "required|service_id")
		return container.Tagged(n.Value)
	case yaml.MappingNode:
		opts, ok := p.options(n, field)
		if !ok {
			return nil
		}
		tag, _ := opts[container.OptionTag].(string)
		p.check(field+".tag", tag, "required|service_id")
		return container.NewArgument(container.ArgumentServices, nil, opts)
	}
	p.fail(field, "The %s tagged collection must be a tag name or a mapping.", field)
	return nil
}

// servicesTag reads `!services [a, b]` or a mapping of collection options
// (tag, pattern, ids, indexBy, orderBy).
func (p *parser) servicesTag(n *yaml.Node, field string) any {
	switch n.Kind {
	case yaml.SequenceNode:
		return container.NewArgument(container.ArgumentServices, p.ids(n, field), nil)
	case yaml.MappingNode:
		opts, ok := p.options(n, field)
		if !ok {
			return nil
		}
		var ids []any
		if raw, found := opts["ids"]; found {
			delete(opts, "ids")
			list, isList := raw.([]any)
			if !isList {
				p.fail(field+".ids", "The %s.ids must be a list.", field)
				return nil
			}
			for i, id := range list {
				s, _ := id.(string)
				s = strings.TrimPrefix(s, "@")
				p.check(fmt.Sprintf("%s.ids.%d", field, i), s, "required|reference")
				ids = append(ids, s)
			}
		}
		_, hasTag := opts[container.OptionTag]
		_, hasPattern := opts[container.OptionPattern]
		if ids == nil && !hasTag && !hasPattern {
			p.fail(field, "The %s collection needs a tag, a pattern or ids.", field)
			return nil
		}
		if ids == nil {
			return container.NewArgument(container.ArgumentServices, nil, opts)
		}
		return container.NewArgument(container.ArgumentServices, ids, opts)
	}
	p.fail(field, "The %s collection must be a list or a mapping.", field)
	return nil
}

func (p *parser) ids(n *yaml.Node, field string) []any {
	ids := make([]any, 0, len(n.Content))
	for i, item := range n.Content {
		id := strings.TrimPrefix(item.Value, "@")
		p.check(fmt.Sprintf("%s.%d", field, i), id, "required|reference")
		ids = append(ids, id)
	}
	return ids
}

func (p *parser) options(n *yaml.Node, field string) (map[string]any, bool) {
	var opts map[string]any
	if err := n.Decode(&opts); err != nil {
		p.fail(field, "The %s options must be a mapping.", field)
		return nil, false
	}
	return opts, true
}
