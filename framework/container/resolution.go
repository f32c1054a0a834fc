package container

import (
	"sync"
	"time"
)

// resolutionTree is the arena holding every node spawned by one root request.
// Nodes refer to each other by index.
type resolutionTree struct {
	mu    sync.Mutex
	nodes []resolutionNode

	// origin is the node whose lifecycle calls spawned this tree, nil for
	// trees started by Get or Preload. nesting counts such hops.
	origin  *Resolution
	nesting int
}

type resolutionNode struct {
	serviceID string
	method    string
	label     string
	parent    int
	children  []int
	depth     int
	startedAt time.Time

	def      *definition
	instance any
	calls    []Call
}

// Resolution is a handle on one in-progress "give me service X" request.
// Resolutions form a tree rooted at the outermost Get; the parent chain is
// what cycle detection walks. A Resolution is only meaningful until its
// root request returns.
type Resolution struct {
	tree  *resolutionTree
	index int
}

func newRootResolution(serviceID, method, label string) *Resolution {
	t := &resolutionTree{}
	t.nodes = append(t.nodes, resolutionNode{
		serviceID: serviceID,
		method:    method,
		label:     label,
		parent:    -1,
		startedAt: time.Now(),
	})
	return &Resolution{tree: t, index: 0}
}

// Child spawns a resolution for serviceID below r.
func (r *Resolution) Child(label, serviceID, method string) *Resolution {
	t := r.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := len(t.nodes)
	t.nodes = append(t.nodes, resolutionNode{
		serviceID: serviceID,
		method:    method,
		label:     label,
		parent:    r.index,
		depth:     t.nodes[r.index].depth + 1,
		startedAt: time.Now(),
	})
	t.nodes[r.index].children = append(t.nodes[r.index].children, idx)
	return &Resolution{tree: t, index: idx}
}

func (r *Resolution) node() resolutionNode {
	r.tree.mu.Lock()
	defer r.tree.mu.Unlock()
	return r.tree.nodes[r.index]
}

func (r *Resolution) ServiceID() string    { return r.node().serviceID }
func (r *Resolution) Method() string       { return r.node().method }
func (r *Resolution) Label() string        { return r.node().label }
func (r *Resolution) Depth() int           { return r.node().depth }
func (r *Resolution) StartedAt() time.Time { return r.node().startedAt }
func (r *Resolution) IsRoot() bool         { return r.node().parent < 0 }

// Parent returns the requesting resolution, nil for the root.
func (r *Resolution) Parent() *Resolution {
	p := r.node().parent
	if p < 0 {
		return nil
	}
	return &Resolution{tree: r.tree, index: p}
}

// Root returns the outermost resolution of the tree.
func (r *Resolution) Root() *Resolution {
	return &Resolution{tree: r.tree, index: 0}
}

// HasAncestor reports whether a strict ancestor of r resolves serviceID.
func (r *Resolution) HasAncestor(serviceID string) bool {
	t := r.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := t.nodes[r.index].parent; i >= 0; i = t.nodes[i].parent {
		if t.nodes[i].serviceID == serviceID {
			return true
		}
	}
	return false
}

// Path returns the debug path from the root down to r, one
// "label = serviceId" entry per level. Trees spawned by lifecycle calls are
// prefixed with the path of the node that declared the call.
func (r *Resolution) Path() []string {
	var prefix []string
	if o := r.tree.origin; o != nil {
		prefix = o.Path()
	}

	t := r.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	var rev []string
	for i := r.index; i >= 0; i = t.nodes[i].parent {
		n := t.nodes[i]
		id := n.serviceID
		if n.method != "" {
			id += ":" + n.method
		}
		rev = append(rev, n.label+" = "+id)
	}
	path := make([]string, len(rev))
	for i, p := range rev {
		path[len(rev)-1-i] = p
	}
	return append(prefix, path...)
}

// detach starts a new tree for work triggered by r that must not see r's
// ancestors, such as the arguments of a lifecycle call.
func (r *Resolution) detach(label string) *Resolution {
	root := newRootResolution("", "", label)
	root.tree.origin = r
	root.tree.nesting = r.tree.nesting + 1
	return root
}

func (r *Resolution) bind(def *definition) {
	r.tree.mu.Lock()
	r.tree.nodes[r.index].def = def
	r.tree.mu.Unlock()
}

func (r *Resolution) setInstance(instance any, calls []Call) {
	r.tree.mu.Lock()
	n := &r.tree.nodes[r.index]
	n.instance = instance
	n.calls = calls
	r.tree.mu.Unlock()
}

// pending lists, in pre-order below r, every node that recorded lifecycle calls.
func (r *Resolution) pending() []*Resolution {
	t := r.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*Resolution
	var walk func(i int)
	walk = func(i int) {
		if len(t.nodes[i].calls) > 0 {
			out = append(out, &Resolution{tree: t, index: i})
		}
		for _, c := range t.nodes[i].children {
			walk(c)
		}
	}
	walk(r.index)
	return out
}
