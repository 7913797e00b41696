package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"deprecheck/internal/ir"
)

// docComment returns the docblock directly preceding a declaration, if any.
func docComment(node *sitter.Node, sourceCode []byte) string {
	prev := node.PrevSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	if node.StartPoint().Row-prev.EndPoint().Row > 1 {
		return ""
	}
	text := prev.Content(sourceCode)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return text
}

// parseDeprecated extracts the @deprecated tag of a docblock. The message is
// the tag text, continued over following lines until the next tag.
func parseDeprecated(rawComment string) *ir.Deprecation {
	if rawComment == "" {
		return nil
	}
	lines := cleanDocComment(rawComment)

	for i, l := range lines {
		rest, ok := cutTag(l, "@deprecated")
		if !ok {
			continue
		}
		parts := []string{}
		if rest != "" {
			parts = append(parts, rest)
		}
		for _, next := range lines[i+1:] {
			if next == "" || strings.HasPrefix(next, "@") {
				break
			}
			parts = append(parts, next)
		}
		return &ir.Deprecation{Message: strings.Join(parts, " ")}
	}
	return nil
}

func cutTag(line, tag string) (string, bool) {
	if !strings.HasPrefix(line, tag) {
		return "", false
	}
	rest := line[len(tag):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func cleanDocComment(rawComment string) []string {
	lines := strings.Split(rawComment, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "/**")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(strings.TrimSpace(l), "*")
		cleaned = append(cleaned, strings.TrimSpace(l))
	}
	return cleaned
}
