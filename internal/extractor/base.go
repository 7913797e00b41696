package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"deprecheck/internal/ir"
)

// LanguageExtractor defines the interface that each language adapter must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	Extensions() []string
	Extract(root *sitter.Node, sourceCode []byte, filepath string) *ir.File
}
