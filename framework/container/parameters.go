package container

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`^%([A-Za-z0-9._-]+)%$`)

// compileParameters returns params with every placeholder expanded. A string
// that is exactly "%name%" takes the referenced value as is; placeholders
// inside longer strings are interpolated; "%%" is a literal percent sign.
func compileParameters(params map[string]any) (map[string]any, error) {
	p := &parameterCompiler{raw: params, done: make(map[string]any, len(params))}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := p.lookup(name); err != nil {
			return nil, err
		}
	}
	return p.done, nil
}

type parameterCompiler struct {
	raw   map[string]any
	done  map[string]any
	stack []string
}

func (p *parameterCompiler) lookup(name string) (any, error) {
	if v, ok := p.done[name]; ok {
		return v, nil
	}
	for _, s := range p.stack {
		if s == name {
			return nil, &ResolutionError{Kind: ErrCyclicResolution, ServiceID: name, Step: "parameters",
				Path: p.path(name)}
		}
	}
	raw, ok := p.raw[name]
	if !ok {
		return nil, &ResolutionError{Kind: ErrInvalidReference, ServiceID: name, Step: "parameters",
			Err: fmt.Errorf("parameter %q is not defined", name), Path: p.path(name)}
	}

	p.stack = append(p.stack, name)
	v, err := p.expand(raw)
	p.stack = p.stack[:len(p.stack)-1]
	if err != nil {
		return nil, err
	}
	p.done[name] = v
	return v, nil
}

func (p *parameterCompiler) path(name string) []string {
	out := make([]string, 0, len(p.stack)+1)
	for _, s := range p.stack {
		out = append(out, "%"+s+"%")
	}
	return append(out, "%"+name+"%")
}

func (p *parameterCompiler) expand(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return p.interpolate(x)
	case Argument:
		if x.typ != ArgumentParameter {
			return x, nil
		}
		name, ok := x.value.(string)
		if !ok {
			return nil, &ResolutionError{Kind: ErrInvalidReference, Step: "parameters",
				Err: fmt.Errorf("parameter name must be a string, got %T", x.value)}
		}
		return p.lookup(name)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			e, err := p.expand(item)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			e, err := p.expand(item)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	}
	return v, nil
}

func (p *parameterCompiler) interpolate(s string) (any, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	if m := placeholderPattern.FindStringSubmatch(s); m != nil {
		return p.lookup(m[1])
	}

	var b strings.Builder
	for {
		i := strings.IndexByte(s, '%')
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		s = s[i+1:]

		if strings.HasPrefix(s, "%") {
			b.WriteByte('%')
			s = s[1:]
			continue
		}
		j := strings.IndexByte(s, '%')
		if j < 0 || !serviceIDPattern.MatchString(s[:j]) {
			b.WriteByte('%')
			continue
		}
		v, err := p.lookup(s[:j])
		if err != nil {
			return nil, err
		}
		fmt.Fprint(&b, v)
		s = s[j+1:]
	}
	return b.String(), nil
}
