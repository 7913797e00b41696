package graph

import (
	"deprecheck/internal/ir"
)

// TypeNode is the graph-domain view of a class, interface or trait
// declaration. It is decoupled from the parser output so the syntax tree
// and the rest of the file can be released after indexing.
type TypeNode struct {
	Name       string      `json:"name"`
	Kind       ir.TypeKind `json:"kind"`
	Parent     string      `json:"parent,omitempty"`
	Interfaces []string    `json:"interfaces,omitempty"`
	Traits     []string    `json:"traits,omitempty"`
	Root       int         `json:"root"`
	File       string      `json:"file"`
	Line       int         `json:"line"`

	// canonical method name -> declared name
	methods map[string]string
}

// Declares reports whether the type itself declares the method.
func (n *TypeNode) Declares(method string) bool {
	if n == nil {
		return false
	}
	_, ok := n.methods[ir.Canonical(method)]
	return ok
}

// Methods returns the declared method names in declaration casing.
func (n *TypeNode) Methods() []string {
	out := make([]string, 0, len(n.methods))
	for _, name := range n.methods {
		out = append(out, name)
	}
	return out
}
