package container

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxCallNesting bounds how many times lifecycle calls may trigger
// constructions whose own calls trigger further constructions.
const maxCallNesting = 32

// flight is a shared construction in progress. Joiners wait on done.
type flight struct {
	done  chan struct{}
	owner *resolutionTree
	value any
	err   error

	// settled and abandoned are guarded by Container.mu. A flight is
	// abandoned when its owner stopped waiting before it settled.
	settled   bool
	abandoned bool
}

// ── Public API ────────────────────────────────────────────────────────────────

// Get resolves a public service. id is "service" or "service:method"; the
// latter yields the bound method value of the instance.
//
//	mailer, err := c.Get(ctx, "mailer")
//	send, err := c.Get(ctx, "mailer:Send")
func (c *Container) Get(ctx context.Context, id string) (any, error) {
	serviceID, method, err := parseReference(id)
	if err != nil {
		return nil, &ResolutionError{Kind: ErrInvalidReference, ServiceID: id, Err: err}
	}
	return c.resolveRoot(ctx, newRootResolution(serviceID, method, "get"), true)
}

// GetMany resolves several public services concurrently. The first failure
// cancels the context handed to the others.
func (c *Container) GetMany(ctx context.Context, ids ...string) ([]any, error) {
	out := make([]any, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			v, err := c.Get(gctx, id)
			out[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve fetches id and asserts its type.
//
//	mailer, err := container.Resolve[*mail.Mailer](ctx, c, "mailer")
func Resolve[T any](ctx context.Context, c *Container, id string) (T, error) {
	var zero T
	v, err := c.Get(ctx, id)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &ResolutionError{Kind: ErrInvalidReference, ServiceID: id, Step: "type",
			Err: fmt.Errorf("resolved %T, want %s", v, reflect.TypeFor[T]())}
	}
	return t, nil
}

// MustResolve is like Resolve but panics on error. Meant for boot code.
func MustResolve[T any](ctx context.Context, c *Container, id string) T {
	v, err := Resolve[T](ctx, c, id)
	if err != nil {
		panic(err)
	}
	return v
}

// Preload constructs every shared service flagged preloaded, one at a time,
// in registration order.
func (c *Container) Preload(ctx context.Context) error {
	start := time.Now()
	c.mu.RLock()
	var ids []string
	for _, id := range c.ids {
		if d, _ := c.definitionLocked(id); d.preloaded && d.shared {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()

	for _, id := range ids {
		if _, err := c.resolveRoot(ctx, newRootResolution(id, "", "preload"), false); err != nil {
			return err
		}
	}
	c.logger.Info("Services preloaded", "count", len(ids), "time_ms", time.Since(start).Milliseconds())
	return nil
}

// ResolveService resolves ref ("id" or "id:method") as a dependency of r.
// Custom argument resolvers use it to reach other services.
func (c *Container) ResolveService(ctx context.Context, r *Resolution, label, ref string) (any, error) {
	id, method, err := parseReference(ref)
	if err != nil {
		return nil, newError(ErrInvalidReference, r, label, err)
	}
	return c.resolve(ctx, r.Child(label, id, method), false)
}

func parseReference(ref string) (id, method string, err error) {
	parts := strings.Split(ref, ":")
	if len(parts) > 2 {
		return "", "", fmt.Errorf("reference %q has more than one ':'", ref)
	}
	if !serviceIDPattern.MatchString(parts[0]) {
		return "", "", fmt.Errorf("reference %q: service id must match %s", ref, serviceIDPattern)
	}
	if len(parts) == 2 {
		if parts[1] == "" {
			return "", "", fmt.Errorf("reference %q has an empty method", ref)
		}
		method = parts[1]
	}
	return parts[0], method, nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

func (c *Container) resolveRoot(ctx context.Context, r *Resolution, public bool) (any, error) {
	v, err := c.resolve(ctx, r, public)
	if err != nil {
		return nil, err
	}
	if err := c.runCalls(ctx, r); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Container) resolve(ctx context.Context, r *Resolution, public bool) (any, error) {
	instance, err := c.instantiate(ctx, r, public)
	if err != nil {
		return nil, err
	}
	method := r.Method()
	if method == "" {
		return instance, nil
	}
	fn, err := bindMethod(instance, method)
	if err != nil {
		return nil, newError(ErrConstruction, r, "method", err)
	}
	return fn, nil
}

func (c *Container) instantiate(ctx context.Context, r *Resolution, public bool) (any, error) {
	id := r.ServiceID()

	c.mu.RLock()
	instance, ok := c.instances[id]
	c.mu.RUnlock()
	if ok {
		return instance, nil
	}

	if r.HasAncestor(id) {
		return nil, newErrorf(ErrCyclicResolution, r, "", "[%s] is already being resolved", id)
	}

	def, ok := c.lookup(id)
	if !ok {
		return nil, newError(ErrNotFound, r, "", nil)
	}
	if public && !def.public {
		return nil, newError(ErrAccessViolation, r, "", nil)
	}
	r.bind(def)

	if def.source == SourceAlias {
		target, method, err := parseReference(def.alias)
		if err != nil {
			return nil, newError(ErrInvalidReference, r, "@alias", err)
		}
		return c.resolve(ctx, r.Child("@alias", target, method), false)
	}

	if def.shared {
		c.mu.RLock()
		instance, ok := c.shared[id]
		c.mu.RUnlock()
		if ok {
			return instance, nil
		}
	}
	return c.load(ctx, r, def)
}

// lookup returns the effective definition of id, giving the missing-service
// hooks one chance to register it.
func (c *Container) lookup(id string) (*definition, bool) {
	if def, ok := c.definition(id); ok {
		return def, true
	}
	c.mu.RLock()
	hooks := slices.Clone(c.missing)
	c.mu.RUnlock()
	for _, hook := range hooks {
		if hook(id) {
			if def, ok := c.definition(id); ok {
				return def, true
			}
		}
	}
	return nil, false
}

// exists is Has plus the missing-service hooks.
func (c *Container) exists(id string) bool {
	if c.Has(id) {
		return true
	}
	_, ok := c.lookup(id)
	return ok
}

// load constructs def, joining the construction already in flight for a
// shared service instead of starting a second one.
func (c *Container) load(ctx context.Context, r *Resolution, def *definition) (any, error) {
	if !def.shared {
		return c.loadService(ctx, r, def)
	}

	id := def.id
	c.mu.Lock()
	if instance, ok := c.shared[id]; ok {
		c.mu.Unlock()
		return instance, nil
	}
	if f, ok := c.flights[id]; ok {
		if c.waitsOnLocked(r.tree, f) {
			c.mu.Unlock()
			return nil, newErrorf(ErrCyclicResolution, r, "",
				"[%s] is being constructed by a request that waits on this one", id)
		}
		c.waiting[r.tree] = f
		c.mu.Unlock()
		return c.join(ctx, r, f)
	}
	f := &flight{done: make(chan struct{}), owner: r.tree}
	c.flights[id] = f
	c.mu.Unlock()

	go c.fly(context.WithoutCancel(ctx), r, def, f)

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		c.mu.Lock()
		settled := f.settled
		if !settled {
			f.abandoned = true
		}
		c.mu.Unlock()
		if settled {
			<-f.done
			return f.value, f.err
		}
		return nil, newError(ErrConstruction, r, "wait", ctx.Err())
	}
}

// fly runs the construction of a shared service under a context the owner
// cannot cancel. If the owner stopped waiting, the lifecycle calls recorded
// below r run here instead of in the owner's root.
func (c *Container) fly(ctx context.Context, r *Resolution, def *definition, f *flight) {
	value, err := c.loadService(ctx, r, def)

	c.mu.Lock()
	f.settled = true
	abandoned := f.abandoned
	c.mu.Unlock()

	if abandoned && err == nil {
		if err = c.runCalls(ctx, r); err != nil {
			value = nil
			c.logger.Error("Lifecycle calls failed after the requester left",
				"service", def.id,
				"error", err)
		}
	}

	c.mu.Lock()
	f.value, f.err = value, err
	delete(c.flights, def.id)
	c.mu.Unlock()
	close(f.done)
}

func (c *Container) join(ctx context.Context, r *Resolution, f *flight) (any, error) {
	defer func() {
		c.mu.Lock()
		delete(c.waiting, r.tree)
		c.mu.Unlock()
	}()
	c.logger.Debug("Joining in-flight construction", "service", r.ServiceID())

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, newError(ErrConstruction, r, "wait", ctx.Err())
	}
}

// waitsOnLocked follows the wait-for graph from the owner of f: if it leads
// back to tree, joining f would never return.
func (c *Container) waitsOnLocked(tree *resolutionTree, f *flight) bool {
	seen := make(map[*resolutionTree]bool)
	for owner := f.owner; owner != nil && !seen[owner]; {
		if owner == tree {
			return true
		}
		seen[owner] = true
		next, ok := c.waiting[owner]
		if !ok {
			return false
		}
		owner = next.owner
	}
	return false
}

// ── Construction ──────────────────────────────────────────────────────────────

func (c *Container) loadService(ctx context.Context, r *Resolution, def *definition) (any, error) {
	start := time.Now()

	var (
		instance any
		err      error
	)
	switch def.source {
	case SourceFactory:
		instance, err = c.loadFactory(ctx, r, def)
	case SourceModule:
		instance, err = c.loadModule(ctx, r, def)
	default:
		err = newErrorf(ErrConstruction, r, "source", "no module, factory or alias is defined")
	}
	if err != nil {
		return nil, err
	}

	if def.configurator != nil {
		if err := c.configure(ctx, r, def, instance); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	if def.shared {
		c.shared[def.id] = instance
	}
	callbacks := slices.Clone(c.afterResolving)
	c.mu.Unlock()

	r.setInstance(instance, def.calls)
	for _, cb := range callbacks {
		cb(def.id, instance)
	}

	c.logger.Debug("Service constructed",
		"service", def.id,
		"depth", r.Depth(),
		"duration", time.Since(start))
	return instance, nil
}

func (c *Container) loadFactory(ctx context.Context, r *Resolution, def *definition) (any, error) {
	f := def.factory

	var target any
	switch {
	case f.Service != "":
		v, err := c.ResolveService(ctx, r, "@factory", f.Service)
		if err != nil {
			return nil, err
		}
		target = v
	case f.Function != nil:
		target = f.Function
	default:
		return nil, newErrorf(ErrConstruction, r, "factory", "factory declares neither a service nor a function")
	}

	args, err := c.constructorArguments(ctx, r, def, target, f.Method)
	if err != nil {
		return nil, err
	}
	fn, err := callable(target, f.Method)
	if err != nil {
		return nil, newError(ErrConstruction, r, "factory", err)
	}
	instance, err := invoke(ctx, fn, args)
	if err != nil {
		return nil, asResolutionError(err, ErrConstruction, r, "factory")
	}
	return instance, nil
}

func (c *Container) loadModule(ctx context.Context, r *Resolution, def *definition) (any, error) {
	target, err := c.modules.Resolve(def.module, def.origin)
	if err != nil {
		return nil, newError(ErrConstruction, r, "module", err)
	}

	mode := def.mode
	if mode == CreationModule {
		return target, nil
	}
	if mode == CreationAuto || mode == "" {
		if mode, err = detectCreationMode(target); err != nil {
			return nil, newError(ErrConstruction, r, "creationMode", err)
		}
	}

	args, err := c.constructorArguments(ctx, r, def, target, "")
	if err != nil {
		return nil, err
	}

	var fn reflect.Value
	switch mode {
	case CreationClass:
		class, ok := target.(Class)
		if !ok {
			return nil, newErrorf(ErrConstruction, r, "class", "%T does not implement Class", target)
		}
		fn = reflect.ValueOf(class.New)
	case CreationFunction:
		if fn, err = callable(target, ""); err != nil {
			return nil, newError(ErrConstruction, r, "function", err)
		}
	default:
		return nil, newErrorf(ErrConstruction, r, "creationMode", "unknown creation mode %q", mode)
	}

	instance, err := invoke(ctx, fn, args)
	if err != nil {
		return nil, asResolutionError(err, ErrConstruction, r, string(mode))
	}
	return instance, nil
}

// constructorArguments resolves the declared arguments, or the autowired
// ones when the service is autowired and declares none.
func (c *Container) constructorArguments(ctx context.Context, r *Resolution, def *definition, target any, method string) ([]any, error) {
	args := def.arguments
	if !def.hasArguments && def.autowired {
		var err error
		if args, err = c.autowire.Resolve(target, method); err != nil {
			return nil, newError(ErrConstruction, r, "autowire", err)
		}
	}
	return c.resolveArguments(ctx, r, args, "arguments")
}

func (c *Container) configure(ctx context.Context, r *Resolution, def *definition, instance any) error {
	cfg := def.configurator
	configurator, err := c.ResolveService(ctx, r, "@configurator", cfg.Service)
	if err != nil {
		return err
	}
	fn, err := callable(configurator, cfg.Method)
	if err != nil {
		return newError(ErrConstruction, r, "configurator", err)
	}
	if _, err := invoke(ctx, fn, []any{instance}); err != nil {
		return asResolutionError(err, ErrConstruction, r, "configurator")
	}
	return nil
}

// ── Lifecycle calls ───────────────────────────────────────────────────────────

// runCalls executes the calls recorded below r in pre-order, each node's
// calls in declaration order.
func (c *Container) runCalls(ctx context.Context, r *Resolution) error {
	for _, n := range r.pending() {
		node := n.node()
		for i, call := range node.calls {
			if err := c.runCall(ctx, n, node, i, call); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Container) runCall(ctx context.Context, n *Resolution, node resolutionNode, i int, call Call) error {
	step := fmt.Sprintf("calls[%d] %s", i, call.Method)

	fn, err := callable(node.instance, call.Method)
	if err != nil {
		return newError(ErrCall, n, step, err)
	}
	if n.tree.nesting >= maxCallNesting {
		return newErrorf(ErrCyclicResolution, n, step, "lifecycle calls nested more than %d times", maxCallNesting)
	}

	args := call.Arguments
	if args == nil && node.def != nil && node.def.autowired {
		if args, err = c.autowire.Resolve(node.instance, call.Method); err != nil {
			return newError(ErrCall, n, step, err)
		}
	}
	root := n.detach(fmt.Sprintf("@call %s.%s", node.serviceID, call.Method))
	values, err := c.resolveArguments(ctx, root, args, "arguments")
	if err != nil {
		return newError(ErrCall, n, step, err)
	}
	if err := c.runCalls(ctx, root); err != nil {
		return newError(ErrCall, n, step, err)
	}

	result, err := invoke(ctx, fn, values)
	if err != nil {
		return newError(ErrCall, n, step, err)
	}

	if !call.Await {
		if pendingResult(result) {
			go func() {
				if err := settle(context.WithoutCancel(ctx), result); err != nil {
					c.logger.Error("Lifecycle call failed",
						"service", node.serviceID,
						"method", call.Method,
						"error", err)
				}
			}()
		}
		return nil
	}
	if err := settle(ctx, result); err != nil {
		return newError(ErrCall, n, step, err)
	}
	c.logger.Debug("Lifecycle call executed", "service", node.serviceID, "method", call.Method)
	return nil
}

// pendingResult reports whether a call returned work still running: an
// error channel or a func() error.
func pendingResult(result any) bool {
	switch result.(type) {
	case <-chan error, chan error, func() error:
		return true
	}
	return false
}

// settle waits for the work a call returned, if any.
func settle(ctx context.Context, result any) error {
	var ch <-chan error
	switch v := result.(type) {
	case func() error:
		return v()
	case <-chan error:
		ch = v
	case chan error:
		ch = v
	default:
		return nil
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
