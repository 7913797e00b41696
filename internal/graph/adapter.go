package graph

import "deprecheck/internal/ir"

// FromTypeDecl converts extractor output into a graph-domain TypeNode.
func FromTypeDecl(decl ir.TypeDecl, root int) *TypeNode {
	n := &TypeNode{
		Name:    decl.Name,
		Kind:    decl.Kind,
		Parent:  decl.Parent,
		Root:    root,
		File:    decl.Position.Filepath,
		Line:    decl.Position.Line,
		methods: make(map[string]string, len(decl.Methods)),
	}
	if len(decl.Interfaces) > 0 {
		n.Interfaces = append([]string(nil), decl.Interfaces...)
	}
	if len(decl.Traits) > 0 {
		n.Traits = append([]string(nil), decl.Traits...)
	}
	for _, m := range decl.Methods {
		key := ir.Canonical(m.Name)
		if _, dup := n.methods[key]; !dup {
			n.methods[key] = m.Name
		}
	}
	return n
}
