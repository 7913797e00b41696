package resolver

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deprecheck/internal/graph"
	"deprecheck/internal/ir"
)

type typeSpec struct {
	name       string
	kind       ir.TypeKind
	parent     string
	interfaces []string
	traits     []string
	methods    []string
	root       int
}

func buildGraph(specs ...typeSpec) *graph.Graph {
	g := graph.NewGraph()
	for _, s := range specs {
		kind := s.kind
		if kind == "" {
			kind = ir.KindClass
		}
		d := ir.TypeDecl{Name: s.name, Kind: kind, Parent: s.parent, Interfaces: s.interfaces, Traits: s.traits}
		for _, m := range s.methods {
			d.Methods = append(d.Methods, ir.MethodDecl{Name: m, Owner: s.name})
		}
		g.AddType(d, s.root)
	}
	return g
}

func newResolver(t *testing.T, g *graph.Graph) *Resolver {
	t.Helper()
	r, err := New(g, Options{MemoSize: 8})
	require.NoError(t, err)
	return r
}

func names(chain []Ancestor) []string {
	out := make([]string, 0, len(chain))
	for _, a := range chain {
		out = append(out, a.Name)
	}
	return out
}

func TestResolver_AncestorOrder(t *testing.T) {
	g := buildGraph(
		typeSpec{name: "C", parent: "B", interfaces: []string{"I1"}},
		typeSpec{name: "B", parent: "A", interfaces: []string{"I2"}},
		typeSpec{name: "A", interfaces: []string{"I1"}},
		typeSpec{name: "I1", kind: ir.KindInterface, interfaces: []string{"I3"}},
		typeSpec{name: "I2", kind: ir.KindInterface},
		typeSpec{name: "I3", kind: ir.KindInterface},
	)
	r := newResolver(t, g)

	assert.Equal(t, []string{"B", "A", "I1", "I3", "I2"}, names(r.Ancestors("C")))
	assert.Equal(t, []string{"I3"}, names(r.Ancestors("i1")))
	assert.Empty(t, r.Ancestors("I3"))
	assert.Empty(t, r.Ancestors("Unknown"))
}

func TestResolver_CrossRoot(t *testing.T) {
	g := buildGraph(
		typeSpec{name: `App\Foo`, parent: `Lib\Bar`, root: 0},
		typeSpec{name: `Lib\Bar`, methods: []string{"m"}, root: 1},
	)
	r := newResolver(t, g)

	chain := r.Ancestors(`App\Foo`)
	require.Len(t, chain, 1)
	assert.Equal(t, Ancestor{Name: `Lib\Bar`, Kind: ir.KindClass, Resolved: true}, chain[0])

	origin, ok := r.MethodOrigin(`app\foo`, "M")
	require.True(t, ok)
	assert.Equal(t, `Lib\Bar`, origin.Name)

	_, ok = r.MethodOrigin(`App\Foo`, "other")
	assert.False(t, ok)
}

func TestResolver_UnresolvedAncestors(t *testing.T) {
	g := buildGraph(
		typeSpec{name: "Foo", parent: "Missing", interfaces: []string{"Gone", "Known"}},
		typeSpec{name: "Known", kind: ir.KindInterface},
	)
	r := newResolver(t, g)

	chain := r.Ancestors("Foo")
	assert.Equal(t, []Ancestor{
		{Name: "Missing", Kind: ir.KindClass},
		{Name: "Gone", Kind: ir.KindInterface},
		{Name: "Known", Kind: ir.KindInterface, Resolved: true},
	}, chain)
	assert.Equal(t, 2, r.Gaps())
}

func TestResolver_Cycles(t *testing.T) {
	g := buildGraph(
		typeSpec{name: "A", parent: "B"},
		typeSpec{name: "B", parent: "A", interfaces: []string{"I"}},
		typeSpec{name: "I", kind: ir.KindInterface, interfaces: []string{"J"}},
		typeSpec{name: "J", kind: ir.KindInterface, interfaces: []string{"I"}},
		typeSpec{name: "Self", parent: "Self"},
	)
	r := newResolver(t, g)

	assert.Equal(t, []string{"B", "I", "J"}, names(r.Ancestors("A")))
	assert.Equal(t, []string{"A", "I", "J"}, names(r.Ancestors("B")))
	assert.Equal(t, []string{"J"}, names(r.Ancestors("I")))
	assert.Empty(t, r.Ancestors("Self"))
}

func TestResolver_MemoAndConcurrency(t *testing.T) {
	g := buildGraph(
		typeSpec{name: "Child", parent: "Base"},
		typeSpec{name: "Base", methods: []string{"run"}},
	)
	r := newResolver(t, g)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"Base"}, names(r.Ancestors("Child")))
		}()
	}
	wg.Wait()
	r.Ancestors("CHILD")

	stats := r.Stats()
	assert.Equal(t, int64(17), stats.Lookups)
	assert.GreaterOrEqual(t, stats.MemoHits, int64(1))
	assert.True(t, r.Declares("base", "RUN"))
	assert.False(t, r.Declares("Child", "run"))
}

func TestResolver_Chain(t *testing.T) {
	r := newResolver(t, buildGraph(typeSpec{name: "Child", parent: "Base"}))

	assert.Equal(t, []Ancestor{
		{Name: "Child", Kind: ir.KindClass, Resolved: true},
		{Name: "Base", Kind: ir.KindClass},
	}, r.Chain("child"))
	assert.Equal(t, []Ancestor{{Name: "Nope"}}, r.Chain("Nope"))
}

func TestResolver_TraitsFollowTheirClass(t *testing.T) {
	g := buildGraph(
		typeSpec{name: "C", parent: "B", interfaces: []string{"I1"}, traits: []string{"T1", "Missing"}},
		typeSpec{name: "B", traits: []string{"T3", "T2"}},
		typeSpec{name: "T1", kind: ir.KindTrait, traits: []string{"T2"}, methods: []string{"legacy"}},
		typeSpec{name: "T2", kind: ir.KindTrait},
		typeSpec{name: "T3", kind: ir.KindTrait},
		typeSpec{name: "I1", kind: ir.KindInterface},
	)
	r := newResolver(t, g)

	assert.Equal(t, []string{"C", "T1", "T2", "Missing", "B", "T3", "I1"}, names(r.Chain("C")))
	assert.Equal(t, 1, r.Gaps())

	origin, ok := r.MethodOrigin("c", "LEGACY")
	require.True(t, ok)
	assert.Equal(t, Ancestor{Name: "T1", Kind: ir.KindTrait, Resolved: true}, origin)

	chain := r.Chain("C")
	assert.Equal(t, Ancestor{Name: "Missing", Kind: ir.KindTrait}, chain[3])
}
