package ir

import "fmt"

// Position describes where a declaration or usage occurs in source code.
// Line and Column are 1-based.
type Position struct {
	Filepath string `json:"filepath"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filepath, p.Line, p.Column)
}

// TypeKind distinguishes the declaration forms that take part in inheritance.
type TypeKind string

const (
	KindClass     TypeKind = "class"
	KindInterface TypeKind = "interface"
	KindTrait     TypeKind = "trait"
)

// Deprecation is the payload of a @deprecated docblock tag.
type Deprecation struct {
	Message string `json:"message"`
}

// TypeDecl is a class, interface or trait declaration with its header data.
// Names are fully-qualified without a leading backslash.
type TypeDecl struct {
	Name       string       `json:"name"`
	Kind       TypeKind     `json:"kind"`
	Parent     string       `json:"parent,omitempty"`
	Interfaces []string     `json:"interfaces,omitempty"` // implemented by a class, extended by an interface
	Traits     []string     `json:"traits,omitempty"`     // pulled in with `use` inside the body
	Methods    []MethodDecl `json:"methods,omitempty"`
	Deprecated *Deprecation `json:"deprecated,omitempty"`
	Position   Position     `json:"position"`
}

// MethodDecl is a method declared directly inside a type body.
type MethodDecl struct {
	Name       string       `json:"name"`
	Owner      string       `json:"owner"`
	Static     bool         `json:"static,omitempty"`
	Deprecated *Deprecation `json:"deprecated,omitempty"`
	Position   Position     `json:"position"`
}

type ReferenceKind string

const (
	RefNew            ReferenceKind = "new"
	RefStaticCall     ReferenceKind = "static_call"
	RefConstant       ReferenceKind = "constant"
	RefStaticProperty ReferenceKind = "static_property"
	RefInstanceof     ReferenceKind = "instanceof"
	RefCatch          ReferenceKind = "catch"
)

// ClassReference is an expression that names a class-like symbol.
type ClassReference struct {
	Name     string        `json:"name"`
	Kind     ReferenceKind `json:"kind"`
	Position Position      `json:"position"`
}

type SuperTypeRelation string

const (
	RelExtends    SuperTypeRelation = "extends"
	RelImplements SuperTypeRelation = "implements"
	RelUses       SuperTypeRelation = "uses"
)

// SuperTypeUsage is one name in an extends or implements clause.
type SuperTypeUsage struct {
	Name     string            `json:"name"`
	Owner    string            `json:"owner"`
	Relation SuperTypeRelation `json:"relation"`
	Position Position          `json:"position"`
}

type HintSite string

const (
	HintParameter HintSite = "parameter"
	HintReturn    HintSite = "return"
	HintProperty  HintSite = "property"
)

// TypeHint is a named (non-scalar) type in a declaration.
type TypeHint struct {
	Name     string   `json:"name"`
	Site     HintSite `json:"site"`
	Context  string   `json:"context,omitempty"` // e.g. Owner::method or Owner::$prop
	Position Position `json:"position"`
}

// MethodCall is an instance or static method call. Receiver is the
// statically known receiver type, empty when it could not be determined.
type MethodCall struct {
	Receiver string   `json:"receiver,omitempty"`
	Method   string   `json:"method"`
	Static   bool     `json:"static,omitempty"`
	Position Position `json:"position"`
}

// File is the parser-level view of one source file consumed by the checkers.
type File struct {
	Path       string           `json:"path"`
	Types      []TypeDecl       `json:"types,omitempty"`
	ClassRefs  []ClassReference `json:"class_refs,omitempty"`
	SuperTypes []SuperTypeUsage `json:"super_types,omitempty"`
	TypeHints  []TypeHint       `json:"type_hints,omitempty"`
	Calls      []MethodCall     `json:"calls,omitempty"`

	// ParseError is set when the file could not be parsed; such a file
	// contributes nothing to checks.
	ParseError error `json:"-"`
}

// ParseWarning records a file that was skipped because it could not be
// read or parsed.
type ParseWarning struct {
	Filepath string
	Err      error
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s: %v", w.Filepath, w.Err)
}
