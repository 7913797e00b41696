package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"

	"deprecheck/internal/ir"
)

// PHPExtractor implements LanguageExtractor for PHP.
type PHPExtractor struct{}

func (p *PHPExtractor) GetLanguage() *sitter.Language {
	return php.GetLanguage()
}

func (p *PHPExtractor) Extensions() []string {
	return []string{".php"}
}

func (p *PHPExtractor) Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.File {
	w := &phpWalker{
		src:   sourceCode,
		file:  &ir.File{Path: filepath},
		scope: newNameScope(""),
		vars:  make(map[string]string),
	}
	w.walk(root)
	return w.file
}

// classContext is the type whose body is being walked.
type classContext struct {
	name   string
	parent string
	decl   int               // index into file.Types, -1 for anonymous classes
	props  map[string]string // property name -> declared type
}

type phpWalker struct {
	src   []byte
	file  *ir.File
	scope *nameScope
	class *classContext
	vars  map[string]string // variable name without `$` -> known type
}

func (w *phpWalker) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "namespace_definition":
		w.visitNamespace(n)
		return
	case "namespace_use_declaration":
		w.visitUse(n)
		return
	case "use_declaration":
		if w.class != nil {
			w.visitTraitUse(n)
		}
		return
	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		w.visitType(n)
		return
	case "method_declaration":
		w.visitMethod(n)
		return
	case "function_definition":
		w.visitCallable(n, w.content(n.ChildByFieldName("name")), false)
		return
	case "anonymous_function", "anonymous_function_creation_expression":
		w.visitCallable(n, "{closure}", false)
		return
	case "arrow_function":
		w.visitCallable(n, "{closure}", true)
		return
	case "property_declaration":
		w.visitProperty(n)
		return
	case "object_creation_expression":
		w.visitNew(n)
		if args := firstChildOfType(n, "arguments"); args != nil {
			w.walk(args)
		}
		return
	case "member_call_expression", "nullsafe_member_call_expression":
		w.visitMemberCall(n)
	case "scoped_call_expression":
		w.visitScopedCall(n)
	case "class_constant_access_expression":
		w.visitConstantAccess(n)
	case "scoped_property_access_expression":
		w.visitStaticProperty(n)
	case "binary_expression":
		w.visitInstanceof(n)
	case "catch_clause":
		w.visitCatch(n)
	case "assignment_expression":
		w.visitAssignment(n)
		return
	}
	w.walkChildren(n)
}

func (w *phpWalker) walkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i))
	}
}

// Namespaces and imports

func (w *phpWalker) visitNamespace(n *sitter.Node) {
	name := strings.Trim(w.content(n.ChildByFieldName("name")), `\`)
	body := n.ChildByFieldName("body")
	if body == nil {
		// `namespace Foo;` applies to the rest of the file.
		w.scope = newNameScope(name)
		return
	}
	outer := w.scope
	w.scope = newNameScope(name)
	w.walk(body)
	w.scope = outer
}

func (w *phpWalker) visitUse(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "function", "const":
			return
		}
	}

	prefix := ""
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "namespace_name", "qualified_name", "name":
			prefix = strings.Trim(w.content(child), `\`)
		case "namespace_use_clause":
			w.addUseClause(child, "")
		case "namespace_use_group":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				w.addUseClause(child.NamedChild(j), prefix)
			}
		}
	}
}

func (w *phpWalker) addUseClause(clause *sitter.Node, prefix string) {
	var target, alias string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "name", "qualified_name", "namespace_name":
			if target == "" {
				target = w.content(child)
			} else {
				alias = w.content(child)
			}
		case "namespace_aliasing_clause":
			alias = w.firstNamedContent(child, "name")
		}
	}
	if a := clause.ChildByFieldName("alias"); a != nil {
		alias = w.content(a)
	}
	if target == "" {
		return
	}
	if prefix != "" {
		target = prefix + `\` + strings.TrimPrefix(target, `\`)
	}
	w.scope.addUse(target, alias)
}

// Declarations

func (w *phpWalker) visitType(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	decl := ir.TypeDecl{
		Name:       w.scope.qualify(w.content(nameNode)),
		Kind:       ir.KindClass,
		Deprecated: parseDeprecated(docComment(n, w.src)),
		Position:   w.position(nameNode),
	}
	switch n.Type() {
	case "interface_declaration":
		decl.Kind = ir.KindInterface
	case "trait_declaration":
		decl.Kind = ir.KindTrait
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "base_clause":
			for _, ref := range w.classNames(child) {
				name := w.scope.qualify(w.content(ref))
				if decl.Kind == ir.KindInterface {
					decl.Interfaces = append(decl.Interfaces, name)
				} else if decl.Parent == "" {
					decl.Parent = name
				}
				w.file.SuperTypes = append(w.file.SuperTypes, ir.SuperTypeUsage{
					Name: name, Owner: decl.Name, Relation: ir.RelExtends, Position: w.position(ref),
				})
			}
		case "class_interface_clause":
			for _, ref := range w.classNames(child) {
				name := w.scope.qualify(w.content(ref))
				decl.Interfaces = append(decl.Interfaces, name)
				w.file.SuperTypes = append(w.file.SuperTypes, ir.SuperTypeUsage{
					Name: name, Owner: decl.Name, Relation: ir.RelImplements, Position: w.position(ref),
				})
			}
		}
	}

	idx := len(w.file.Types)
	w.file.Types = append(w.file.Types, decl)
	w.walkClassBody(n.ChildByFieldName("body"), &classContext{
		name:   decl.Name,
		parent: decl.Parent,
		decl:   idx,
		props:  make(map[string]string),
	})
}

// visitTraitUse records `use A, B { ... }` inside a class body. The
// adaptation block only renames or excludes methods and is not read.
func (w *phpWalker) visitTraitUse(n *sitter.Node) {
	owner := "class@anonymous"
	if w.class.decl >= 0 {
		owner = w.file.Types[w.class.decl].Name
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ref := n.NamedChild(i)
		if ref.Type() != "name" && ref.Type() != "qualified_name" {
			continue
		}
		name := w.scope.qualify(w.content(ref))
		if w.class.decl >= 0 {
			decl := &w.file.Types[w.class.decl]
			decl.Traits = append(decl.Traits, name)
		}
		w.file.SuperTypes = append(w.file.SuperTypes, ir.SuperTypeUsage{
			Name: name, Owner: owner, Relation: ir.RelUses, Position: w.position(ref),
		})
	}
}

func (w *phpWalker) walkClassBody(body *sitter.Node, ctx *classContext) {
	if body == nil {
		return
	}
	outerClass, outerVars := w.class, w.vars
	w.class, w.vars = ctx, nil
	w.collectPropertyTypes(body)
	w.walk(body)
	w.class, w.vars = outerClass, outerVars
}

// collectPropertyTypes records typed properties (including promoted
// constructor parameters) before the body is walked, so that calls through
// `$this->prop` can be typed regardless of declaration order.
func (w *phpWalker) collectPropertyTypes(body *sitter.Node) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "property_declaration":
			typ := w.singleType(member.ChildByFieldName("type"))
			if typ == "" {
				continue
			}
			for _, v := range descendants(member, "variable_name") {
				w.class.props[varName(w.content(v))] = typ
			}
		case "method_declaration":
			if !strings.EqualFold(w.content(member.ChildByFieldName("name")), "__construct") {
				continue
			}
			params := member.ChildByFieldName("parameters")
			if params == nil {
				continue
			}
			for j := 0; j < int(params.NamedChildCount()); j++ {
				p := params.NamedChild(j)
				if p.Type() != "property_promotion_parameter" {
					continue
				}
				if typ := w.singleType(p.ChildByFieldName("type")); typ != "" {
					w.class.props[varName(w.content(p.ChildByFieldName("name")))] = typ
				}
			}
		}
	}
}

func (w *phpWalker) visitMethod(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if w.class == nil || nameNode == nil {
		w.visitCallable(n, w.content(nameNode), false)
		return
	}
	name := w.content(nameNode)
	if w.class.decl >= 0 {
		decl := &w.file.Types[w.class.decl]
		decl.Methods = append(decl.Methods, ir.MethodDecl{
			Name:       name,
			Owner:      w.class.name,
			Static:     hasChildOfType(n, "static_modifier"),
			Deprecated: parseDeprecated(docComment(n, w.src)),
			Position:   w.position(nameNode),
		})
	}
	w.visitCallable(n, w.class.name+"::"+name, false)
}

// visitCallable walks a function-like node in a fresh variable scope.
// Arrow functions capture the enclosing scope by value.
func (w *phpWalker) visitCallable(n *sitter.Node, context string, inherit bool) {
	outer := w.vars
	w.vars = make(map[string]string)
	if inherit {
		for k, v := range outer {
			w.vars[k] = v
		}
	}
	if w.class != nil {
		w.vars["this"] = w.class.name
	}

	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			switch p.Type() {
			case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
			default:
				continue
			}
			typeNode := p.ChildByFieldName("type")
			w.emitHints(typeNode, ir.HintParameter, context)
			if typ := w.singleType(typeNode); typ != "" && p.Type() != "variadic_parameter" {
				w.vars[varName(w.content(p.ChildByFieldName("name")))] = typ
			}
			if def := p.ChildByFieldName("default_value"); def != nil {
				w.walk(def)
			}
		}
	}
	w.emitHints(n.ChildByFieldName("return_type"), ir.HintReturn, context)
	w.walk(n.ChildByFieldName("body"))

	w.vars = outer
}

func (w *phpWalker) visitProperty(n *sitter.Node) {
	owner := ""
	if w.class != nil {
		owner = w.class.name
	}
	var props []string
	for _, v := range descendants(n, "variable_name") {
		props = append(props, w.content(v))
	}
	w.emitHints(n.ChildByFieldName("type"), ir.HintProperty, owner+"::"+strings.Join(props, ","))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "property_element" {
			w.walkChildren(child)
		}
	}
}

func (w *phpWalker) emitHints(typeNode *sitter.Node, site ir.HintSite, context string) {
	if typeNode == nil {
		return
	}
	for _, ref := range w.classNames(typeNode) {
		raw := w.content(ref)
		if isBuiltinType(raw) {
			continue
		}
		w.file.TypeHints = append(w.file.TypeHints, ir.TypeHint{
			Name:     w.scope.qualify(raw),
			Site:     site,
			Context:  context,
			Position: w.position(ref),
		})
	}
}

// singleType returns the declared class of a non-union type, or "" when the
// type is scalar, a union, or absent.
func (w *phpWalker) singleType(typeNode *sitter.Node) string {
	if typeNode == nil {
		return ""
	}
	refs := w.classNames(typeNode)
	if len(refs) != 1 {
		return ""
	}
	name, _ := w.resolveClass(w.content(refs[0]))
	return name
}

// Usages

func (w *phpWalker) visitNew(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "name", "qualified_name":
			w.addClassRef(child, ir.RefNew)
			return
		case "anonymous_class":
			w.visitAnonymousClass(child)
			return
		case "declaration_list":
			// Older grammars inline the anonymous class into the creation expression.
			w.visitAnonymousClass(n)
			return
		}
	}
}

func (w *phpWalker) visitAnonymousClass(n *sitter.Node) {
	const owner = "class@anonymous"
	parent := ""
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		rel := ir.RelImplements
		switch child.Type() {
		case "base_clause":
			rel = ir.RelExtends
		case "class_interface_clause":
		default:
			continue
		}
		for _, ref := range w.classNames(child) {
			name := w.scope.qualify(w.content(ref))
			if rel == ir.RelExtends && parent == "" {
				parent = name
			}
			w.file.SuperTypes = append(w.file.SuperTypes, ir.SuperTypeUsage{
				Name: name, Owner: owner, Relation: rel, Position: w.position(ref),
			})
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		body = firstChildOfType(n, "declaration_list")
	}
	w.walkClassBody(body, &classContext{name: parent, parent: parent, decl: -1, props: make(map[string]string)})
}

func (w *phpWalker) visitMemberCall(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() != "name" {
		return
	}
	w.file.Calls = append(w.file.Calls, ir.MethodCall{
		Receiver: w.exprType(n.ChildByFieldName("object")),
		Method:   w.content(nameNode),
		Position: w.position(nameNode),
	})
}

func (w *phpWalker) visitScopedCall(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	scope := n.ChildByFieldName("scope")
	if nameNode == nil || nameNode.Type() != "name" || scope == nil {
		return
	}
	receiver := w.scopeType(scope, ir.RefStaticCall)
	w.file.Calls = append(w.file.Calls, ir.MethodCall{
		Receiver: receiver,
		Method:   w.content(nameNode),
		Static:   true,
		Position: w.position(nameNode),
	})
}

func (w *phpWalker) visitConstantAccess(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		return
	}
	w.scopeType(n.NamedChild(0), ir.RefConstant)
}

func (w *phpWalker) visitStaticProperty(n *sitter.Node) {
	scope := n.ChildByFieldName("scope")
	if scope == nil && n.NamedChildCount() > 0 {
		scope = n.NamedChild(0)
	}
	if scope != nil {
		w.scopeType(scope, ir.RefStaticProperty)
	}
}

func (w *phpWalker) visitInstanceof(n *sitter.Node) {
	op := n.ChildByFieldName("operator")
	if op == nil || !strings.EqualFold(w.content(op), "instanceof") {
		return
	}
	right := n.ChildByFieldName("right")
	if right == nil {
		return
	}
	switch right.Type() {
	case "name", "qualified_name":
		w.addClassRef(right, ir.RefInstanceof)
	}
}

func (w *phpWalker) visitCatch(n *sitter.Node) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	for _, ref := range w.classNames(typeNode) {
		w.addClassRef(ref, ir.RefCatch)
	}
}

func (w *phpWalker) visitAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	w.walk(right)
	w.walk(left)
	if left == nil || left.Type() != "variable_name" || w.vars == nil {
		return
	}
	name := varName(w.content(left))
	if typ := w.exprType(right); typ != "" {
		w.vars[name] = typ
	} else {
		delete(w.vars, name)
	}
}

// scopeType resolves the left side of `::`. Named classes are recorded as
// class references of the given kind; relative scopes and expressions are not.
func (w *phpWalker) scopeType(scope *sitter.Node, kind ir.ReferenceKind) string {
	switch scope.Type() {
	case "name", "qualified_name":
		name, special := w.resolveClass(w.content(scope))
		if !special {
			w.addClassRef(scope, kind)
		}
		return name
	case "relative_scope":
		name, _ := w.resolveClass(w.content(scope))
		return name
	default:
		return w.exprType(scope)
	}
}

// exprType returns the statically known class of an expression, or "".
func (w *phpWalker) exprType(expr *sitter.Node) string {
	if expr == nil {
		return ""
	}
	switch expr.Type() {
	case "variable_name":
		if w.vars == nil {
			return ""
		}
		return w.vars[varName(w.content(expr))]
	case "parenthesized_expression":
		if expr.NamedChildCount() == 0 {
			return ""
		}
		return w.exprType(expr.NamedChild(0))
	case "object_creation_expression":
		for i := 0; i < int(expr.NamedChildCount()); i++ {
			child := expr.NamedChild(i)
			if child.Type() == "name" || child.Type() == "qualified_name" {
				name, _ := w.resolveClass(w.content(child))
				return name
			}
		}
	case "member_access_expression", "nullsafe_member_access_expression":
		obj := expr.ChildByFieldName("object")
		name := expr.ChildByFieldName("name")
		if w.class == nil || obj == nil || name == nil || obj.Type() != "variable_name" {
			return ""
		}
		if varName(w.content(obj)) == "this" {
			return w.class.props[w.content(name)]
		}
	}
	return ""
}

// resolveClass qualifies a class name; self, static and parent resolve
// against the enclosing class and are reported as special.
func (w *phpWalker) resolveClass(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "self", "static":
		if w.class == nil {
			return "", true
		}
		return w.class.name, true
	case "parent":
		if w.class == nil {
			return "", true
		}
		return w.class.parent, true
	}
	return w.scope.qualify(raw), false
}

func (w *phpWalker) addClassRef(ref *sitter.Node, kind ir.ReferenceKind) {
	name, special := w.resolveClass(w.content(ref))
	if special || name == "" {
		return
	}
	w.file.ClassRefs = append(w.file.ClassRefs, ir.ClassReference{
		Name:     name,
		Kind:     kind,
		Position: w.position(ref),
	})
}

// classNames collects the class name nodes of a clause or type node.
func (w *phpWalker) classNames(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	var visit func(*sitter.Node)
	visit = func(c *sitter.Node) {
		switch c.Type() {
		case "name", "qualified_name":
			out = append(out, c)
			return
		case "named_type", "type_name":
			if c.NamedChildCount() == 0 {
				out = append(out, c)
				return
			}
		case "primitive_type", "bottom_type", "variable_name":
			return
		}
		for i := 0; i < int(c.NamedChildCount()); i++ {
			visit(c.NamedChild(i))
		}
	}
	visit(n)
	return out
}

// Helpers

func (w *phpWalker) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content(w.src))
}

func (w *phpWalker) firstNamedContent(n *sitter.Node, typ string) string {
	if c := firstChildOfType(n, typ); c != nil {
		return w.content(c)
	}
	return ""
}

func (w *phpWalker) position(n *sitter.Node) ir.Position {
	p := n.StartPoint()
	return ir.Position{
		Filepath: w.file.Path,
		Line:     int(p.Row) + 1,
		Column:   int(p.Column) + 1,
	}
}

func varName(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "$")
}

func hasChildOfType(n *sitter.Node, typ string) bool {
	return firstChildOfType(n, typ) != nil
}

func firstChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func descendants(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	var visit func(*sitter.Node)
	visit = func(c *sitter.Node) {
		if c.Type() == typ {
			out = append(out, c)
			return
		}
		for i := 0; i < int(c.NamedChildCount()); i++ {
			visit(c.NamedChild(i))
		}
	}
	visit(n)
	return out
}
