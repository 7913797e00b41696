package graph

import (
	"sort"

	"deprecheck/internal/ir"
)

// Graph indexes type declarations by canonical name. It is built once and
// read-only afterwards, so concurrent lookups need no locking.
type Graph struct {
	nodes    map[string]*TypeNode
	shadowed []Shadowed
}

// Shadowed records a declaration that lost to an earlier root.
type Shadowed struct {
	Name   string
	Root   int
	File   string
	Winner string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*TypeNode)}
}

// AddType adds a declaration found in the given root. The first declaration
// of a canonical name wins; later ones are recorded as shadowed and false is
// returned.
func (g *Graph) AddType(decl ir.TypeDecl, root int) bool {
	if decl.Name == "" {
		return false
	}
	key := ir.Canonical(decl.Name)
	if existing, ok := g.nodes[key]; ok {
		g.shadowed = append(g.shadowed, Shadowed{
			Name:   decl.Name,
			Root:   root,
			File:   decl.Position.Filepath,
			Winner: existing.File,
		})
		return false
	}
	g.nodes[key] = FromTypeDecl(decl, root)
	return true
}

// AddFile adds every declaration of a parsed file.
func (g *Graph) AddFile(file *ir.File, root int) {
	if file == nil {
		return
	}
	for _, decl := range file.Types {
		g.AddType(decl, root)
	}
}

// Lookup finds a type by name, case-insensitively.
func (g *Graph) Lookup(name string) (*TypeNode, bool) {
	n, ok := g.nodes[ir.Canonical(name)]
	return n, ok
}

// Len returns the number of indexed types.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Names returns the declared names of all types, sorted.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Name)
	}
	sort.Strings(out)
	return out
}

// ShadowedTypes returns the declarations that lost to an earlier root.
func (g *Graph) ShadowedTypes() []Shadowed {
	return append([]Shadowed(nil), g.shadowed...)
}
