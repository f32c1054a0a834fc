package container

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ── Extracted parameters ──────────────────────────────────────────────────────

// ParameterKind distinguishes plain parameters from composite ones.
type ParameterKind int

const (
	ParameterSimple ParameterKind = iota
	// ParameterArray is a positional composite: each element becomes one
	// entry of a []any argument.
	ParameterArray
	// ParameterObject is a named composite: each element becomes one entry
	// of a map[string]any argument, keyed by the element name.
	ParameterObject
	// ParameterRest collects remaining values and is never autowired.
	ParameterRest
)

// Parameter describes one constructor or method parameter for autowiring.
// Hint, when not blank, names the service to inject instead of Name.
type Parameter struct {
	Name       string
	Kind       ParameterKind
	HasDefault bool
	Hint       string
	Elements   []Parameter
}

// P declares a simple parameter wired to the service of the same name.
func P(name string) Parameter { return Parameter{Name: name} }

// ParameterExtractor lists the parameters of a target (or of one of its
// methods when method is not empty).
type ParameterExtractor interface {
	ExtractParameters(target any, method string) ([]Parameter, error)
}

// ParameterDeclarer is implemented by targets describing their own parameters.
type ParameterDeclarer interface {
	Parameters(method string) []Parameter
}

// ── DeclaredParameters ────────────────────────────────────────────────────────

type declarationKey struct {
	fn     uintptr
	typ    reflect.Type
	method string
}

// DeclaredParameters is the default ParameterExtractor. Go keeps no parameter
// names at runtime, so parameters are declared explicitly: by the target
// itself (ParameterDeclarer) or through Declare.
//
//	params := container.NewDeclaredParameters()
//	params.Declare(mail.NewMailer, "", container.P("transport"), container.P("logger"))
type DeclaredParameters struct {
	mu           sync.RWMutex
	declarations map[declarationKey][]Parameter
}

func NewDeclaredParameters() *DeclaredParameters {
	return &DeclaredParameters{declarations: make(map[declarationKey][]Parameter)}
}

// Declare records the parameters of target (a function, or any value whose
// dynamic type owns method). Closures sharing code share declarations.
func (d *DeclaredParameters) Declare(target any, method string, params ...Parameter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.declarations[keyOf(target, method)] = append([]Parameter{}, params...)
}

func (d *DeclaredParameters) ExtractParameters(target any, method string) ([]Parameter, error) {
	if decl, ok := target.(ParameterDeclarer); ok {
		return decl.Parameters(method), nil
	}

	d.mu.RLock()
	params, ok := d.declarations[keyOf(target, method)]
	d.mu.RUnlock()
	if ok {
		return params, nil
	}

	// Functions without injectable parameters need no declaration.
	fn, err := callable(target, method)
	if err == nil && injectableParams(fn.Type()) == 0 {
		return nil, nil
	}
	if method != "" {
		return nil, fmt.Errorf("no parameters declared for %T.%s", target, method)
	}
	return nil, fmt.Errorf("no parameters declared for %T", target)
}

func keyOf(target any, method string) declarationKey {
	v := reflect.ValueOf(target)
	if v.Kind() == reflect.Func && method == "" {
		return declarationKey{fn: v.Pointer()}
	}
	return declarationKey{typ: reflect.TypeOf(target), method: method}
}

func injectableParams(t reflect.Type) int {
	n := t.NumIn()
	if n > 0 && t.In(0) == contextType {
		n--
	}
	if t.IsVariadic() {
		n--
	}
	return n
}

// ── AutowireResolver ──────────────────────────────────────────────────────────

// AutowireResolver derives the arguments of a target from its parameters.
type AutowireResolver interface {
	Resolve(target any, method string) ([]Argument, error)
}

type autowireResolver struct {
	extractor ParameterExtractor
}

// NewAutowireResolver maps each extracted parameter to a service reference
// named by its hint, or by its own name when there is no hint. Parameters
// with a default become optional references. Composite parameters are walked
// one level deep; rest parameters are skipped.
func NewAutowireResolver(extractor ParameterExtractor) AutowireResolver {
	return &autowireResolver{extractor: extractor}
}

func (a *autowireResolver) Resolve(target any, method string) ([]Argument, error) {
	params, err := a.extractor.ExtractParameters(target, method)
	if err != nil {
		return nil, err
	}

	args := make([]Argument, 0, len(params))
	for _, p := range params {
		switch p.Kind {
		case ParameterRest:
			continue
		case ParameterArray:
			items := make([]any, 0, len(p.Elements))
			for _, e := range p.Elements {
				if e.Kind == ParameterSimple {
					items = append(items, autowireRef(e))
				}
			}
			args = append(args, Value(items))
		case ParameterObject:
			fields := make(map[string]any, len(p.Elements))
			for _, e := range p.Elements {
				if e.Kind == ParameterSimple {
					fields[e.Name] = autowireRef(e)
				}
			}
			args = append(args, Value(fields))
		default:
			args = append(args, autowireRef(p))
		}
	}
	return args, nil
}

func autowireRef(p Parameter) Argument {
	id := strings.TrimSpace(p.Hint)
	if id == "" {
		id = p.Name
	}
	if p.HasDefault {
		return OptionalRef(id)
	}
	return Ref(id)
}
