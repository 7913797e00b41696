package loader

import (
	"context"
	"fmt"
	"os"

	"deprecheck/internal/crawler"
	"deprecheck/internal/extractor"
	"deprecheck/internal/ir"
	"deprecheck/internal/rules"
)

// DirectoryLoader derives rules from @deprecated docblock annotations on
// the classes, interfaces and methods of a source tree.
type DirectoryLoader struct {
	opts Options
}

func NewDirectoryLoader(opts Options) *DirectoryLoader {
	return &DirectoryLoader{opts: opts}
}

func (l *DirectoryLoader) Name() string {
	return "directory"
}

func (l *DirectoryLoader) Load(ctx context.Context, src Source) (*rules.RuleSet, error) {
	if src.Kind != KindDirectory {
		return nil, &LoadError{Source: src, Op: "load", Err: fmt.Errorf("unexpected source kind %q", src.Kind)}
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, &LoadError{Source: src, Op: "stat", Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Source: src, Op: "stat", Err: fmt.Errorf("%s is not a directory", src.Path)}
	}

	b, err := l.scan(ctx, src.Path)
	if err != nil {
		return nil, &LoadError{Source: src, Op: "scan", Err: err}
	}
	return b.Build(), nil
}

func (l *DirectoryLoader) scan(ctx context.Context, root string) (*rules.Builder, error) {
	ext, err := extractor.NewExtractor("php")
	if err != nil {
		return nil, err
	}
	c := crawler.NewCrawler(ext, l.opts.Ignored...).WithLogger(l.opts.logger())

	b := rules.NewBuilder()
	err = c.ScanProject(ctx, root, func(file *ir.File) {
		for _, decl := range file.Types {
			addDeclaration(b, decl)
		}
	}, func(w ir.ParseWarning) { l.opts.warn(ctx, w) })
	return b, err
}

func addDeclaration(b *rules.Builder, decl ir.TypeDecl) {
	if decl.Deprecated != nil {
		msg := deprecationMessage(decl.Deprecated, decl.Name)
		if decl.Kind == ir.KindInterface {
			b.AddInterface(decl.Name, msg)
		} else {
			b.AddClass(decl.Name, msg)
		}
	}
	for _, m := range decl.Methods {
		if m.Deprecated == nil {
			continue
		}
		b.AddMethod(decl.Name, m.Name, deprecationMessage(m.Deprecated, decl.Name+"::"+m.Name))
	}
}

func deprecationMessage(d *ir.Deprecation, symbol string) string {
	if d.Message != "" {
		return d.Message
	}
	return symbol + " is deprecated"
}
