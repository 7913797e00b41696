// Package rules holds the immutable model of what is deprecated.
package rules

import (
	"sort"

	"deprecheck/internal/ir"
)

// Entry is a deprecated class or interface.
type Entry struct {
	Name    string
	Message string
}

// MethodEntry is a deprecated method on an owning type.
type MethodEntry struct {
	Owner   string
	Method  string
	Message string
}

// Symbol renders the method as Owner::method.
func (m MethodEntry) Symbol() string {
	return m.Owner + "::" + m.Method
}

// RuleSet is an immutable collection of deprecated symbols. Lookups follow
// PHP name resolution (case-insensitive, leading backslash ignored).
// A RuleSet is built with a Builder and only read afterwards.
type RuleSet struct {
	classes    map[string]Entry
	interfaces map[string]Entry
	methods    map[string]MethodEntry
}

// Empty returns a RuleSet with no entries.
func Empty() *RuleSet {
	return NewBuilder().Build()
}

func (r *RuleSet) Class(name string) (Entry, bool) {
	e, ok := r.classes[ir.Canonical(name)]
	return e, ok
}

func (r *RuleSet) Interface(name string) (Entry, bool) {
	e, ok := r.interfaces[ir.Canonical(name)]
	return e, ok
}

func (r *RuleSet) Method(owner, method string) (MethodEntry, bool) {
	e, ok := r.methods[ir.MethodKey(owner, method)]
	return e, ok
}

// SuperType reports whether a declared parent, implemented interface or
// used trait is deprecated. Any deprecated class or interface qualifies;
// traits are recorded as classes.
func (r *RuleSet) SuperType(name string) (Entry, bool) {
	return r.classOrInterface(name)
}

// TypeHint reports whether a parameter, return or property type is
// deprecated. Any deprecated class or interface qualifies.
func (r *RuleSet) TypeHint(name string) (Entry, bool) {
	return r.classOrInterface(name)
}

func (r *RuleSet) classOrInterface(name string) (Entry, bool) {
	if e, ok := r.Class(name); ok {
		return e, true
	}
	return r.Interface(name)
}

// Classes returns the deprecated classes sorted by name.
func (r *RuleSet) Classes() []Entry {
	return sortedEntries(r.classes)
}

// Interfaces returns the deprecated interfaces sorted by name.
func (r *RuleSet) Interfaces() []Entry {
	return sortedEntries(r.interfaces)
}

// Methods returns the deprecated methods sorted by owner, then method.
func (r *RuleSet) Methods() []MethodEntry {
	keys := make([]string, 0, len(r.methods))
	for k := range r.methods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]MethodEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.methods[k])
	}
	return out
}

func (r *RuleSet) Len() int {
	return len(r.classes) + len(r.interfaces) + len(r.methods)
}

func (r *RuleSet) IsEmpty() bool {
	return r.Len() == 0
}

// Equal reports whether both sets hold the same kind/name/message entries.
func (r *RuleSet) Equal(other *RuleSet) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.classes) != len(other.classes) || len(r.interfaces) != len(other.interfaces) || len(r.methods) != len(other.methods) {
		return false
	}
	for k, e := range r.classes {
		if o, ok := other.classes[k]; !ok || o != e {
			return false
		}
	}
	for k, e := range r.interfaces {
		if o, ok := other.interfaces[k]; !ok || o != e {
			return false
		}
	}
	for k, e := range r.methods {
		if o, ok := other.methods[k]; !ok || o != e {
			return false
		}
	}
	return true
}

func sortedEntries(m map[string]Entry) []Entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
