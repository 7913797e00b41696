package violation

import (
	"fmt"
	"sort"
	"strings"

	"deprecheck/internal/ir"
)

// Kind classifies what kind of deprecated symbol was used.
type Kind string

const (
	KindClass            Kind = "class"
	KindInterface        Kind = "interface"
	KindMethod           Kind = "method"
	KindSuperType        Kind = "supertype"
	KindTypeHint         Kind = "type_hint"
	KindMethodDefinition Kind = "method_definition"
)

// Violation is one use of a deprecated symbol.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Symbol  string `json:"symbol"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
	Checker string `json:"checker"`
}

// At builds a violation located at pos.
func At(kind Kind, symbol, message, checker string, pos ir.Position) Violation {
	return Violation{
		Kind:    kind,
		Symbol:  symbol,
		File:    pos.Filepath,
		Line:    pos.Line,
		Column:  pos.Column,
		Message: message,
		Checker: checker,
	}
}

func (v Violation) String() string {
	return fmt.Sprintf("%s:%d:%d: %s %s is deprecated: %s", v.File, v.Line, v.Column, v.Kind, v.Symbol, v.Message)
}

type dedupKey struct {
	kind   Kind
	symbol string
	file   string
	line   int
	column int
}

// Dedup drops exact repeats of (kind, symbol, location), keeping the first
// occurrence and the original order.
func Dedup(vs []Violation) []Violation {
	seen := make(map[dedupKey]bool, len(vs))
	out := vs[:0:0]
	for _, v := range vs {
		k := dedupKey{v.Kind, ir.Canonical(v.Symbol), v.File, v.Line, v.Column}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// SortByLocation orders violations by file, line and column. The sort is
// stable so checker order is kept for identical locations.
func SortByLocation(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Filter suppresses violations for listed symbols.
type Filter struct {
	methods map[string]bool
	symbols map[string]bool
}

// ParseFilter reads a comma separated list such as `Foo\Bar::baz,Foo\Qux`.
// Entries with `::` suppress method violations for that method; other
// entries suppress any violation whose symbol is that name.
func ParseFilter(list string) *Filter {
	f := &Filter{methods: make(map[string]bool), symbols: make(map[string]bool)}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if owner, method, ok := strings.Cut(entry, "::"); ok {
			f.methods[ir.MethodKey(owner, method)] = true
			continue
		}
		f.symbols[ir.Canonical(entry)] = true
	}
	return f
}

// Empty reports whether the filter suppresses nothing.
func (f *Filter) Empty() bool {
	return f == nil || len(f.methods)+len(f.symbols) == 0
}

// Allows reports whether v survives the filter.
func (f *Filter) Allows(v Violation) bool {
	if f.Empty() {
		return true
	}
	switch v.Kind {
	case KindMethod, KindMethodDefinition:
		if owner, method, ok := strings.Cut(v.Symbol, "::"); ok && f.methods[ir.MethodKey(owner, method)] {
			return false
		}
	}
	return !f.symbols[ir.Canonical(v.Symbol)]
}

// Apply returns the violations that survive the filter.
func (f *Filter) Apply(vs []Violation) []Violation {
	if f.Empty() {
		return vs
	}
	out := make([]Violation, 0, len(vs))
	for _, v := range vs {
		if f.Allows(v) {
			out = append(out, v)
		}
	}
	return out
}
