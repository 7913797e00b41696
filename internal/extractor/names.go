package extractor

import "strings"

// nameScope resolves class-like names against the current namespace and
// its `use` imports.
type nameScope struct {
	namespace string
	uses      map[string]string // lower-cased alias -> fully-qualified name
}

func newNameScope(namespace string) *nameScope {
	return &nameScope{namespace: namespace, uses: make(map[string]string)}
}

func (s *nameScope) addUse(target, alias string) {
	target = strings.TrimPrefix(strings.TrimSpace(target), `\`)
	if target == "" {
		return
	}
	if alias == "" {
		alias = lastSegment(target)
	}
	s.uses[strings.ToLower(alias)] = target
}

// qualify returns the fully-qualified form of a class name as written.
func (s *nameScope) qualify(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, `\`) {
		return name[1:]
	}
	if rest, ok := cutPrefixFold(name, `namespace\`); ok {
		return s.join(rest)
	}

	first, rest, qualified := strings.Cut(name, `\`)
	if target, ok := s.uses[strings.ToLower(first)]; ok {
		if qualified {
			return target + `\` + rest
		}
		return target
	}
	return s.join(name)
}

func (s *nameScope) join(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + `\` + name
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

var builtinTypes = map[string]bool{
	"array": true, "bool": true, "boolean": true, "callable": true, "false": true,
	"float": true, "double": true, "int": true, "integer": true, "iterable": true,
	"mixed": true, "never": true, "null": true, "object": true, "string": true,
	"true": true, "void": true, "self": true, "static": true, "parent": true,
}

func isBuiltinType(name string) bool {
	return builtinTypes[strings.ToLower(name)]
}
