package container

import (
	"context"
	"errors"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ErrModuleNotFound is returned by ModuleRegistry for unknown paths.
var ErrModuleNotFound = errors.New("module not found")

// ModulesResolver turns a module path into a construction target: a Class,
// a function, or any plain value.
type ModulesResolver interface {
	Resolve(modulePath, parentPath string) (any, error)
}

// Class is a construction target instantiated with creation mode "class".
type Class interface {
	New(ctx context.Context, args ...any) (any, error)
}

// ClassFunc adapts a function to Class.
type ClassFunc func(ctx context.Context, args ...any) (any, error)

func (f ClassFunc) New(ctx context.Context, args ...any) (any, error) { return f(ctx, args...) }

// ── ModuleRegistry ────────────────────────────────────────────────────────────

// ModuleRegistry is the default ModulesResolver: an in-memory table of
// module paths. Go cannot load code by path at runtime, so modules are
// registered up front, typically from an init or a provider.
//
//	modules := container.NewModuleRegistry()
//	modules.Register("mail/smtp", smtp.New)
//	modules.Register("mail/templates", templates)   // plain value
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]any
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]any)}
}

// Register stores target under modulePath.
func (m *ModuleRegistry) Register(modulePath string, target any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[cleanModulePath(modulePath)] = target
}

// Resolve looks modulePath up. Paths starting with "./" or "../" are joined
// to the directory of parentPath first.
func (m *ModuleRegistry) Resolve(modulePath, parentPath string) (any, error) {
	key := joinModulePath(modulePath, parentPath)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if target, ok := m.modules[key]; ok {
		return target, nil
	}
	if key != cleanModulePath(modulePath) {
		if target, ok := m.modules[cleanModulePath(modulePath)]; ok {
			return target, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, key)
}

// Paths lists registered module paths, sorted.
func (m *ModuleRegistry) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.modules))
	for p := range m.modules {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func joinModulePath(modulePath, parentPath string) string {
	relative := strings.HasPrefix(modulePath, "./") || strings.HasPrefix(modulePath, "../")
	if relative && parentPath != "" {
		return cleanModulePath(path.Join(path.Dir(parentPath), modulePath))
	}
	return cleanModulePath(modulePath)
}

func cleanModulePath(p string) string {
	return strings.TrimPrefix(path.Clean(p), "./")
}

// detectCreationMode picks class or function from the shape of target.
func detectCreationMode(target any) (CreationMode, error) {
	if _, ok := target.(Class); ok {
		return CreationClass, nil
	}
	if target != nil && reflect.TypeOf(target).Kind() == reflect.Func {
		return CreationFunction, nil
	}
	return "", fmt.Errorf("cannot detect creation mode of %T: neither a Class nor a function", target)
}
