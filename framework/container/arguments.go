package container

import (
	"context"
	"fmt"
	"sort"
)

// ArgumentResolver resolves the value of one Argument.
type ArgumentResolver func(ctx context.Context, value any, options map[string]any) (any, error)

// ArgumentResolverFactory binds an ArgumentResolver to the container and to
// the resolution needing the argument. label names the argument in debug paths.
//
//	c.SetArgumentTypeResolver("env", func(c *container.Container, r *container.Resolution, label string) container.ArgumentResolver {
//	    return func(ctx context.Context, value any, _ map[string]any) (any, error) {
//	        return os.Getenv(value.(string)), nil
//	    }
//	})
type ArgumentResolverFactory func(c *Container, r *Resolution, label string) ArgumentResolver

func registerBuiltinResolvers(c *Container) {
	c.argumentResolvers[ArgumentDefault] = defaultResolver
	c.argumentResolvers[ArgumentParameter] = parameterResolver
	c.argumentResolvers[ArgumentService] = serviceResolver
	c.argumentResolvers[ArgumentServices] = servicesResolver
}

// ResolveArgument resolves arg on behalf of r through the resolver registered
// for its type.
func (c *Container) ResolveArgument(ctx context.Context, r *Resolution, arg Argument, label string) (any, error) {
	c.mu.RLock()
	factory, ok := c.argumentResolvers[arg.typ]
	c.mu.RUnlock()
	if !ok {
		return nil, newErrorf(ErrArgumentResolver, r, label, "unknown argument resolver type %q", arg.typ)
	}

	v, err := factory(c, r, label)(ctx, arg.value, arg.options)
	if err != nil {
		return nil, asResolutionError(err, ErrArgumentResolver, r, label)
	}
	return v, nil
}

// resolveArguments resolves args in order, each one fully before the next.
func (c *Container) resolveArguments(ctx context.Context, r *Resolution, args []Argument, label string) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		v, err := c.ResolveArgument(ctx, r, a, fmt.Sprintf("%s[%d]", label, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ── default ───────────────────────────────────────────────────────────────────

func defaultResolver(c *Container, r *Resolution, label string) ArgumentResolver {
	return func(ctx context.Context, value any, _ map[string]any) (any, error) {
		return c.walk(ctx, r, value, label)
	}
}

// walk resolves every Argument nested in slices and string-keyed maps and
// passes other leaves through.
func (c *Container) walk(ctx context.Context, r *Resolution, value any, label string) (any, error) {
	switch v := value.(type) {
	case Argument:
		return c.ResolveArgument(ctx, r, v, label)
	case *Argument:
		if v == nil {
			return nil, nil
		}
		return c.ResolveArgument(ctx, r, *v, label)
	case []Argument:
		return c.resolveArguments(ctx, r, v, label)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := c.walk(ctx, r, item, fmt.Sprintf("%s[%d]", label, i))
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(v))
		for _, k := range keys {
			resolved, err := c.walk(ctx, r, v[k], label+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	}
	return value, nil
}

// ── parameter ─────────────────────────────────────────────────────────────────

func parameterResolver(c *Container, r *Resolution, label string) ArgumentResolver {
	return func(_ context.Context, value any, _ map[string]any) (any, error) {
		name, ok := value.(string)
		if !ok {
			return nil, newErrorf(ErrArgumentResolver, r, label, "parameter name must be a string, got %T", value)
		}
		v, ok := c.Parameter(name)
		if !ok {
			return nil, newErrorf(ErrArgumentResolver, r, label, "parameter %q is not defined", name)
		}
		return v, nil
	}
}

// ── service ───────────────────────────────────────────────────────────────────

func serviceResolver(c *Container, r *Resolution, label string) ArgumentResolver {
	return func(ctx context.Context, value any, options map[string]any) (any, error) {
		ref, err := c.referenceOf(ctx, r, value, label)
		if err != nil {
			return nil, err
		}
		id, method, err := parseReference(ref)
		if err != nil {
			return nil, newError(ErrInvalidReference, r, label, err)
		}
		id = c.contextualTarget(r.ServiceID(), id)

		if !c.exists(id) {
			if !optionBool(options, OptionRequired, true) {
				return nil, nil
			}
			return nil, newError(ErrArgumentResolver, r, label,
				&ResolutionError{Kind: ErrNotFound, ServiceID: id, Path: r.Path()})
		}
		return c.resolve(ctx, r.Child(label, id, method), false)
	}
}

// referenceOf turns the value of a service argument into a reference string.
// The value may itself be an Argument, typically a parameter naming the service.
func (c *Container) referenceOf(ctx context.Context, r *Resolution, value any, label string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case Argument, *Argument:
		resolved, err := c.walk(ctx, r, v, label)
		if err != nil {
			return "", err
		}
		if s, ok := resolved.(string); ok {
			return s, nil
		}
		return "", newErrorf(ErrInvalidReference, r, label, "service reference resolved to %T, want a string", resolved)
	}
	return "", newErrorf(ErrInvalidReference, r, label, "service reference must be a string, got %T", value)
}

// ── services ──────────────────────────────────────────────────────────────────

type collected struct {
	id    string
	tag   Tag
	value any
}

// servicesResolver resolves a collection: every service carrying
// options.tag (by ascending priority), the ids listed in value, or the ids
// matching options.pattern. indexBy turns the result into a map keyed by
// "id" or a tag data key; orderBy sorts it by the same kind of key.
func servicesResolver(c *Container, r *Resolution, label string) ArgumentResolver {
	return func(ctx context.Context, value any, options map[string]any) (any, error) {
		var items []collected
		switch tag := optionString(options, OptionTag); {
		case tag != "":
			for _, ts := range c.ServicesTags(tag) {
				items = append(items, collected{id: ts.ID, tag: ts.Tag})
			}
		case value != nil:
			ids, err := referenceList(value)
			if err != nil {
				return nil, newError(ErrInvalidReference, r, label, err)
			}
			for _, id := range ids {
				items = append(items, collected{id: id})
			}
		default:
			for _, id := range c.Services(ServiceFilter{Pattern: optionString(options, OptionPattern)}) {
				items = append(items, collected{id: id})
			}
		}

		for i := range items {
			v, err := c.ResolveService(ctx, r, fmt.Sprintf("%s[%d]", label, i), items[i].id)
			if err != nil {
				return nil, err
			}
			items[i].value = v
		}

		if key := optionString(options, OptionOrderBy); key != "" {
			sort.SliceStable(items, func(i, j int) bool {
				return lessValue(items[i].key(key), items[j].key(key))
			})
		}

		if key := optionString(options, OptionIndexBy); key != "" {
			out := make(map[string]any, len(items))
			for _, it := range items {
				k := it.key(key)
				if k == nil {
					return nil, newErrorf(ErrArgumentResolver, r, label, "service [%s] has no %q to index by", it.id, key)
				}
				out[fmt.Sprint(k)] = it.value
			}
			return out, nil
		}

		out := make([]any, len(items))
		for i, it := range items {
			out[i] = it.value
		}
		return out, nil
	}
}

func (it collected) key(name string) any {
	if name == "id" {
		return it.id
	}
	v, _ := it.tag.Get(name)
	return v
}

// referenceList accepts the id lists a definition can carry.
func referenceList(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("services[%d] must be a string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("services must be a list of ids, got %T", value)
}

// lessValue orders numbers numerically, everything else by its string form.
// Missing values sort last.
func lessValue(a, b any) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	if oka && okb {
		return fa < fb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
