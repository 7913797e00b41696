package resolver

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"deprecheck/internal/graph"
	"deprecheck/internal/ir"
)

// DefaultMemoSize bounds the number of memoized ancestor chains.
const DefaultMemoSize = 4096

// Ancestor is one step of an ancestor chain. Unresolved ancestors are named
// by a declaration but absent from every source root; they end their branch.
type Ancestor struct {
	Name     string
	Kind     ir.TypeKind
	Resolved bool
}

// ResolveStats reports resolver activity.
type ResolveStats struct {
	Lookups  int64
	MemoHits int64
	Gaps     int
}

// Options configures a Resolver.
type Options struct {
	MemoSize int
	Logger   *slog.Logger
}

// Resolver answers ancestor queries over a read-only type graph. Results are
// memoized in a bounded LRU; it is safe for concurrent use.
type Resolver struct {
	graph  *graph.Graph
	memo   *lru.Cache[string, []Ancestor]
	logger *slog.Logger

	lookups  atomic.Int64
	memoHits atomic.Int64

	mu   sync.Mutex
	gaps map[string]struct{}
}

// New creates a resolver over g.
func New(g *graph.Graph, opts Options) (*Resolver, error) {
	if g == nil {
		g = graph.NewGraph()
	}
	size := opts.MemoSize
	if size <= 0 {
		size = DefaultMemoSize
	}
	memo, err := lru.New[string, []Ancestor](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ancestor memo: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		graph:  g,
		memo:   memo,
		logger: logger,
		gaps:   make(map[string]struct{}),
	}, nil
}

// Lookup returns the declaration of a type.
func (r *Resolver) Lookup(name string) (*graph.TypeNode, bool) {
	return r.graph.Lookup(name)
}

// Declares reports whether the type itself declares the method.
func (r *Resolver) Declares(name, method string) bool {
	n, ok := r.graph.Lookup(name)
	return ok && n.Declares(method)
}

// Ancestors returns the ancestor chain of a type: parent classes closest
// first, each class followed by the traits it uses, then interfaces. Each interface is followed depth-first by the
// interfaces it extends; duplicates are dropped. An unknown type has no
// ancestors. The returned slice is shared and must not be modified.
func (r *Resolver) Ancestors(name string) []Ancestor {
	r.lookups.Add(1)
	key := ir.Canonical(name)
	if chain, ok := r.memo.Get(key); ok {
		r.memoHits.Add(1)
		return chain
	}
	chain := r.compute(key)
	r.memo.Add(key, chain)
	return chain
}

// Chain returns the type itself followed by its ancestors.
func (r *Resolver) Chain(name string) []Ancestor {
	self := Ancestor{Name: name}
	if n, ok := r.graph.Lookup(name); ok {
		self = Ancestor{Name: n.Name, Kind: n.Kind, Resolved: true}
	}
	ancestors := r.Ancestors(name)
	out := make([]Ancestor, 0, len(ancestors)+1)
	out = append(out, self)
	return append(out, ancestors...)
}

// MethodOrigin returns the closest type in the chain of name, the type
// itself included, that declares the method.
func (r *Resolver) MethodOrigin(name, method string) (Ancestor, bool) {
	for _, step := range r.Chain(name) {
		if step.Resolved && r.Declares(step.Name, method) {
			return step, true
		}
	}
	return Ancestor{}, false
}

// Gaps returns the number of distinct ancestor names that could not be
// resolved in any root.
func (r *Resolver) Gaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gaps)
}

// Stats returns resolver counters.
func (r *Resolver) Stats() ResolveStats {
	return ResolveStats{
		Lookups:  r.lookups.Load(),
		MemoHits: r.memoHits.Load(),
		Gaps:     r.Gaps(),
	}
}

func (r *Resolver) compute(key string) []Ancestor {
	root, ok := r.graph.Lookup(key)
	if !ok {
		return nil
	}

	var chain []Ancestor
	visited := map[string]bool{key: true}

	// Traits used by a class, and the traits they use, come right after
	// that class: its own methods win over them and they win over the
	// parent's.
	var visitTrait func(name string)
	visitTrait = func(name string) {
		tkey := ir.Canonical(name)
		if visited[tkey] {
			return
		}
		visited[tkey] = true
		trait, ok := r.graph.Lookup(tkey)
		if !ok {
			chain = append(chain, Ancestor{Name: name, Kind: ir.KindTrait})
			r.recordGap(tkey)
			return
		}
		chain = append(chain, Ancestor{Name: trait.Name, Kind: trait.Kind, Resolved: true})
		for _, used := range trait.Traits {
			visitTrait(used)
		}
	}
	useTraits := func(n *graph.TypeNode) {
		for _, name := range n.Traits {
			visitTrait(name)
		}
	}

	// Parent classes, closest first.
	classes := []*graph.TypeNode{root}
	useTraits(root)
	for cur := root; cur.Parent != ""; {
		pkey := ir.Canonical(cur.Parent)
		if visited[pkey] {
			r.logger.Debug("inheritance cycle", "type", root.Name, "at", cur.Parent)
			break
		}
		visited[pkey] = true
		parent, ok := r.graph.Lookup(pkey)
		if !ok {
			chain = append(chain, Ancestor{Name: cur.Parent, Kind: ir.KindClass})
			r.recordGap(pkey)
			break
		}
		chain = append(chain, Ancestor{Name: parent.Name, Kind: parent.Kind, Resolved: true})
		useTraits(parent)
		classes = append(classes, parent)
		cur = parent
	}

	var visitInterface func(name string)
	visitInterface = func(name string) {
		ikey := ir.Canonical(name)
		if visited[ikey] {
			return
		}
		visited[ikey] = true
		iface, ok := r.graph.Lookup(ikey)
		if !ok {
			chain = append(chain, Ancestor{Name: name, Kind: ir.KindInterface})
			r.recordGap(ikey)
			return
		}
		chain = append(chain, Ancestor{Name: iface.Name, Kind: iface.Kind, Resolved: true})
		for _, ext := range iface.Interfaces {
			visitInterface(ext)
		}
	}
	for _, cls := range classes {
		for _, name := range cls.Interfaces {
			visitInterface(name)
		}
	}
	return chain
}

func (r *Resolver) recordGap(key string) {
	r.mu.Lock()
	r.gaps[key] = struct{}{}
	r.mu.Unlock()
}
