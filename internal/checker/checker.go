// Package checker finds uses of deprecated symbols in parsed files.
package checker

import (
	"strings"

	"deprecheck/internal/graph"
	"deprecheck/internal/ir"
	"deprecheck/internal/resolver"
	"deprecheck/internal/rules"
	"deprecheck/internal/violation"
)

// Checker inspects one parsed file. Implementations keep no state between
// files and are safe for concurrent use.
type Checker interface {
	Name() string
	Check(file *ir.File) []violation.Violation
}

// Ancestry is the resolver surface the method checkers need.
type Ancestry interface {
	Lookup(name string) (*graph.TypeNode, bool)
	Ancestors(name string) []resolver.Ancestor
	Chain(name string) []resolver.Ancestor
	Declares(name, method string) bool
}

// ClassChecker reports references to deprecated classes.
type ClassChecker struct {
	rules *rules.RuleSet
}

func NewClassChecker(rs *rules.RuleSet) *ClassChecker {
	return &ClassChecker{rules: rs}
}

func (c *ClassChecker) Name() string { return "class" }

func (c *ClassChecker) Check(file *ir.File) []violation.Violation {
	var out []violation.Violation
	for _, ref := range file.ClassRefs {
		if e, ok := c.rules.Class(ref.Name); ok {
			out = append(out, violation.At(violation.KindClass, e.Name, e.Message, c.Name(), ref.Position))
		}
	}
	return out
}

// InterfaceChecker reports references to deprecated interfaces outside of
// extends and implements clauses, which SuperTypeChecker covers.
type InterfaceChecker struct {
	rules *rules.RuleSet
}

func NewInterfaceChecker(rs *rules.RuleSet) *InterfaceChecker {
	return &InterfaceChecker{rules: rs}
}

func (c *InterfaceChecker) Name() string { return "interface" }

func (c *InterfaceChecker) Check(file *ir.File) []violation.Violation {
	var out []violation.Violation
	for _, ref := range file.ClassRefs {
		if e, ok := c.rules.Interface(ref.Name); ok {
			out = append(out, violation.At(violation.KindInterface, e.Name, e.Message, c.Name(), ref.Position))
		}
	}
	return out
}

// SuperTypeChecker reports deprecated classes, interfaces or traits named
// in extends and implements clauses or pulled in with a trait `use`.
type SuperTypeChecker struct {
	rules *rules.RuleSet
}

func NewSuperTypeChecker(rs *rules.RuleSet) *SuperTypeChecker {
	return &SuperTypeChecker{rules: rs}
}

func (c *SuperTypeChecker) Name() string { return "supertype" }

func (c *SuperTypeChecker) Check(file *ir.File) []violation.Violation {
	var out []violation.Violation
	for _, st := range file.SuperTypes {
		if e, ok := c.rules.SuperType(st.Name); ok {
			out = append(out, violation.At(violation.KindSuperType, e.Name, e.Message, c.Name(), st.Position))
		}
	}
	return out
}

// TypeHintChecker reports deprecated classes or interfaces used in
// parameter, return and property types.
type TypeHintChecker struct {
	rules *rules.RuleSet
}

func NewTypeHintChecker(rs *rules.RuleSet) *TypeHintChecker {
	return &TypeHintChecker{rules: rs}
}

func (c *TypeHintChecker) Name() string { return "type_hint" }

func (c *TypeHintChecker) Check(file *ir.File) []violation.Violation {
	var out []violation.Violation
	for _, h := range file.TypeHints {
		if e, ok := c.rules.TypeHint(h.Name); ok {
			out = append(out, violation.At(violation.KindTypeHint, e.Name, e.Message, c.Name(), h.Position))
		}
	}
	return out
}

// MethodChecker reports calls that bind to a deprecated method. The call
// is matched against the receiver type and then its ancestors, closest
// first; the search ends at the first type that declares the method.
type MethodChecker struct {
	rules    *rules.RuleSet
	ancestry Ancestry
}

func NewMethodChecker(rs *rules.RuleSet, a Ancestry) *MethodChecker {
	return &MethodChecker{rules: rs, ancestry: a}
}

func (c *MethodChecker) Name() string { return "method" }

func (c *MethodChecker) Check(file *ir.File) []violation.Violation {
	var out []violation.Violation
	for _, call := range file.Calls {
		if call.Receiver == "" || call.Method == "" {
			continue
		}
		if e, ok := findMethodRule(c.rules, c.ancestry, c.ancestry.Chain(call.Receiver), call.Method); ok {
			out = append(out, violation.At(violation.KindMethod, e.Symbol(), e.Message, c.Name(), call.Position))
		}
	}
	return out
}

// MethodDefinitionChecker reports methods that override or implement a
// deprecated ancestor method.
type MethodDefinitionChecker struct {
	rules    *rules.RuleSet
	ancestry Ancestry
}

func NewMethodDefinitionChecker(rs *rules.RuleSet, a Ancestry) *MethodDefinitionChecker {
	return &MethodDefinitionChecker{rules: rs, ancestry: a}
}

func (c *MethodDefinitionChecker) Name() string { return "method_definition" }

func (c *MethodDefinitionChecker) Check(file *ir.File) []violation.Violation {
	var out []violation.Violation
	for _, decl := range file.Types {
		if decl.Kind == ir.KindTrait || len(decl.Methods) == 0 {
			continue
		}
		ancestors := c.ancestorsOf(decl)
		if len(ancestors) == 0 {
			continue
		}
		for _, m := range decl.Methods {
			if strings.EqualFold(m.Name, "__construct") {
				continue
			}
			if e, ok := findMethodRule(c.rules, c.ancestry, ancestors, m.Name); ok {
				out = append(out, violation.At(violation.KindMethodDefinition, e.Symbol(), e.Message, c.Name(), m.Position))
			}
		}
	}
	return out
}

// ancestorsOf prefers the indexed chain. A declaration that is missing from
// the index, or lost to an earlier root, is expanded from its own clauses.
func (c *MethodDefinitionChecker) ancestorsOf(decl ir.TypeDecl) []resolver.Ancestor {
	if n, ok := c.ancestry.Lookup(decl.Name); ok && n.File == decl.Position.Filepath {
		return c.ancestry.Ancestors(decl.Name)
	}
	var out []resolver.Ancestor
	seen := map[string]bool{ir.Canonical(decl.Name): true}
	direct := append([]string(nil), decl.Traits...)
	if decl.Parent != "" {
		direct = append(direct, decl.Parent)
	}
	direct = append(direct, decl.Interfaces...)
	for _, name := range direct {
		for _, step := range c.ancestry.Chain(name) {
			key := ir.Canonical(step.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, step)
		}
	}
	return out
}

// findMethodRule walks steps in order and returns the first deprecated
// (step, method) rule. The walk stops at the first resolved step that
// declares the method without a rule, because the method binds there.
func findMethodRule(rs *rules.RuleSet, a Ancestry, steps []resolver.Ancestor, method string) (rules.MethodEntry, bool) {
	for _, step := range steps {
		if e, ok := rs.Method(step.Name, method); ok {
			return e, true
		}
		if step.Resolved && a.Declares(step.Name, method) {
			return rules.MethodEntry{}, false
		}
	}
	return rules.MethodEntry{}, false
}
