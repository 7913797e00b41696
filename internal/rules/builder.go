package rules

import (
	"strings"

	"deprecheck/internal/ir"
)

// Builder accumulates entries for a RuleSet. A later add for the same
// (kind, name) replaces the earlier one.
type Builder struct {
	classes    map[string]Entry
	interfaces map[string]Entry
	methods    map[string]MethodEntry
}

func NewBuilder() *Builder {
	return &Builder{
		classes:    make(map[string]Entry),
		interfaces: make(map[string]Entry),
		methods:    make(map[string]MethodEntry),
	}
}

func (b *Builder) AddClass(name, message string) *Builder {
	name = cleanName(name)
	if name != "" {
		b.classes[ir.Canonical(name)] = Entry{Name: name, Message: message}
	}
	return b
}

func (b *Builder) AddInterface(name, message string) *Builder {
	name = cleanName(name)
	if name != "" {
		b.interfaces[ir.Canonical(name)] = Entry{Name: name, Message: message}
	}
	return b
}

func (b *Builder) AddMethod(owner, method, message string) *Builder {
	owner = cleanName(owner)
	method = strings.TrimSpace(method)
	if owner != "" && method != "" {
		b.methods[ir.MethodKey(owner, method)] = MethodEntry{Owner: owner, Method: method, Message: message}
	}
	return b
}

// Merge copies every entry of rs into the builder, overwriting on conflict.
func (b *Builder) Merge(rs *RuleSet) *Builder {
	if rs == nil {
		return b
	}
	for k, e := range rs.classes {
		b.classes[k] = e
	}
	for k, e := range rs.interfaces {
		b.interfaces[k] = e
	}
	for k, e := range rs.methods {
		b.methods[k] = e
	}
	return b
}

// Build returns an immutable snapshot. The builder stays usable and later
// adds do not affect sets already built.
func (b *Builder) Build() *RuleSet {
	rs := &RuleSet{
		classes:    make(map[string]Entry, len(b.classes)),
		interfaces: make(map[string]Entry, len(b.interfaces)),
		methods:    make(map[string]MethodEntry, len(b.methods)),
	}
	for k, e := range b.classes {
		rs.classes[k] = e
	}
	for k, e := range b.interfaces {
		rs.interfaces[k] = e
	}
	for k, e := range b.methods {
		rs.methods[k] = e
	}
	return rs
}

func cleanName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), `\`)
}
