package graph

import "deprecheck/internal/ir"

// Stats summarizes the graph contents.
type Stats struct {
	Types    int
	ByKind   map[ir.TypeKind]int
	ByRoot   map[int]int
	Shadowed int
}

func (g *Graph) Stats() Stats {
	s := Stats{
		ByKind: make(map[ir.TypeKind]int),
		ByRoot: make(map[int]int),
	}
	if g == nil {
		return s
	}
	s.Types = len(g.nodes)
	s.Shadowed = len(g.shadowed)
	for _, n := range g.nodes {
		s.ByKind[n.Kind]++
		s.ByRoot[n.Root]++
	}
	return s
}
