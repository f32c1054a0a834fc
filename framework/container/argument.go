package container

import (
	"fmt"
	"sort"
	"strings"
)

// ── Argument types ────────────────────────────────────────────────────────────

// ArgumentType selects the resolver used for an Argument.
type ArgumentType string

const (
	// ArgumentDefault wraps a literal value. Slices and maps are walked and
	// any nested Argument is resolved in place.
	ArgumentDefault ArgumentType = "default"
	// ArgumentParameter references a container parameter by name.
	ArgumentParameter ArgumentType = "parameter"
	// ArgumentService references another service by id ("id" or "id:method").
	ArgumentService ArgumentType = "service"
	// ArgumentServices selects a collection of services (by tag, pattern or id list).
	ArgumentServices ArgumentType = "services"
)

// Option keys understood by the built-in resolvers.
const (
	OptionRequired = "required"
	OptionTag      = "tag"
	OptionPattern  = "pattern"
	OptionIndexBy  = "indexBy"
	OptionOrderBy  = "orderBy"
)

// ── Argument ──────────────────────────────────────────────────────────────────

// Argument is a typed reference to a value that must be resolved before it is
// handed to a constructor, factory or call. Arguments are immutable.
type Argument struct {
	typ     ArgumentType
	value   any
	options map[string]any
}

// NewArgument builds an Argument of any registered type. The options map is copied.
func NewArgument(typ ArgumentType, value any, options map[string]any) Argument {
	var opts map[string]any
	if len(options) > 0 {
		opts = make(map[string]any, len(options))
		for k, v := range options {
			opts[k] = v
		}
	}
	return Argument{typ: typ, value: value, options: opts}
}

// Value wraps a literal (possibly composite) value.
//
//	container.Value(map[string]any{"db": container.Ref("db"), "retries": 3})
func Value(v any) Argument {
	return NewArgument(ArgumentDefault, v, nil)
}

// Param references the parameter called name.
//
//	container.Param("timeout")
func Param(name string) Argument {
	return NewArgument(ArgumentParameter, name, nil)
}

// Ref references the service id. A missing service is an error.
//
//	container.Ref("mailer")
//	container.Ref("mailer:Send")  // bound method value
func Ref(id string) Argument {
	return NewArgument(ArgumentService, id, nil)
}

// OptionalRef references id but resolves to nil when no such service exists.
func OptionalRef(id string) Argument {
	return NewArgument(ArgumentService, id, map[string]any{OptionRequired: false})
}

// Tagged selects every service carrying tag, ordered by tag priority.
// Extra options (indexBy, orderBy) may be given as key/value pairs.
//
//	container.Tagged("listener")
//	container.Tagged("handler", container.OptionIndexBy, "event")
func Tagged(tag string, kv ...string) Argument {
	opts := map[string]any{OptionTag: tag}
	for i := 0; i+1 < len(kv); i += 2 {
		opts[kv[i]] = kv[i+1]
	}
	return NewArgument(ArgumentServices, nil, opts)
}

// Type returns the argument type.
func (a Argument) Type() ArgumentType { return a.typ }

// Value returns the raw (unresolved) value.
func (a Argument) Value() any { return a.value }

// Options returns a copy of the argument options.
func (a Argument) Options() map[string]any {
	out := make(map[string]any, len(a.options))
	for k, v := range a.options {
		out[k] = v
	}
	return out
}

// Option returns a single option.
func (a Argument) Option(key string) (any, bool) {
	v, ok := a.options[key]
	return v, ok
}

// IsZero reports whether a is the zero Argument.
func (a Argument) IsZero() bool { return a.typ == "" }

// String renders the argument in definition-file notation.
func (a Argument) String() string {
	switch a.typ {
	case ArgumentParameter:
		return fmt.Sprintf("%%%v%%", a.value)
	case ArgumentService:
		if required, ok := a.options[OptionRequired].(bool); ok && !required {
			return fmt.Sprintf("@?%v", a.value)
		}
		return fmt.Sprintf("@%v", a.value)
	case ArgumentServices:
		if tag, ok := a.options[OptionTag]; ok {
			return fmt.Sprintf("!tagged %v", tag)
		}
		return fmt.Sprintf("!services %v", a.value)
	case ArgumentDefault:
		return fmt.Sprintf("%v", a.value)
	}
	keys := make([]string, 0, len(a.options))
	for k := range a.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("!%s %v {%s}", a.typ, a.value, strings.Join(keys, ","))
}

// ── Option helpers ────────────────────────────────────────────────────────────

func optionString(options map[string]any, key string) string {
	if v, ok := options[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

func optionBool(options map[string]any, key string, fallback bool) bool {
	v, ok := options[key]
	if !ok || v == nil {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(b) {
		case "false", "0", "no":
			return false
		case "true", "1", "yes":
			return true
		}
	}
	return fallback
}
