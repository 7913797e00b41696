package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"deprecheck/internal/ir"
)

// ErrSyntax marks a file whose syntax tree contains errors.
var ErrSyntax = errors.New("syntax error")

// Extractor orchestrates parsing using a language-specific extractor.
// It is safe for concurrent use: every call gets its own parser.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "php":
		langExt = &PHPExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// Language returns the configured language name.
func (e *Extractor) Language() string {
	return e.langName
}

// Accepts reports whether the file extension belongs to the language.
func (e *Extractor) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range e.langExtractor.Extensions() {
		if ext == want {
			return true
		}
	}
	return false
}

// ExtractFromFile reads and parses a single source file.
func (e *Extractor) ExtractFromFile(ctx context.Context, path string) (*ir.File, error) {
	sourceCode, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ExtractSource(ctx, path, sourceCode)
}

// ExtractSource parses source bytes. The syntax tree is released before
// returning; only the extracted declarations and usages are kept.
func (e *Extractor) ExtractSource(ctx context.Context, path string, sourceCode []byte) (*ir.File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%s: %w", path, describeError(root))
	}

	return e.langExtractor.Extract(root, sourceCode, path), nil
}

// describeError locates the first error or missing node for the message.
func describeError(root *sitter.Node) error {
	var found *sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil || n == nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	if found == nil {
		return ErrSyntax
	}
	p := found.StartPoint()
	return fmt.Errorf("%w at line %d, column %d", ErrSyntax, p.Row+1, p.Column+1)
}
