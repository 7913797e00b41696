package index

import (
	"context"
	"fmt"
	"log/slog"

	"deprecheck/internal/crawler"
	"deprecheck/internal/extractor"
	"deprecheck/internal/graph"
	"deprecheck/internal/ir"
)

// Stats reports what was indexed.
type Stats struct {
	Files    int
	Types    int
	Shadowed int
	Skipped  []ir.ParseWarning
}

// Options configures Build.
type Options struct {
	Ignored []string
	Logger  *slog.Logger
}

// Indexer orchestrates codebase indexing and graph management.
type Indexer struct {
	crawler *crawler.Crawler
	logger  *slog.Logger
}

// NewIndexer creates a new indexer.
func NewIndexer(c *crawler.Crawler, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		crawler: c,
		logger:  logger,
	}
}

// BuildGraph scans the roots in order and constructs the type graph. A type
// declared in more than one root keeps the declaration of the earliest root.
// Only declarations are retained; each file's syntax tree is released as
// soon as it has been extracted.
func (i *Indexer) BuildGraph(ctx context.Context, roots []string) (*graph.Graph, Stats, error) {
	g := graph.NewGraph()
	var stats Stats

	for idx, root := range roots {
		err := i.crawler.ScanProject(ctx, root,
			func(file *ir.File) {
				stats.Files++
				g.AddFile(file, idx)
			},
			func(w ir.ParseWarning) {
				stats.Skipped = append(stats.Skipped, w)
			},
		)
		if err != nil {
			return nil, stats, fmt.Errorf("scan of root %s failed: %w", root, err)
		}
	}

	gs := g.Stats()
	stats.Types = gs.Types
	stats.Shadowed = gs.Shadowed
	i.logger.Debug("type graph built",
		"roots", len(roots),
		"files", stats.Files,
		"types", stats.Types,
		"shadowed", stats.Shadowed,
		"skipped", len(stats.Skipped),
	)
	return g, stats, nil
}

// Build is a convenience wrapper that indexes PHP roots with a fresh
// extractor and crawler.
func Build(ctx context.Context, roots []string, opts Options) (*graph.Graph, Stats, error) {
	ext, err := extractor.NewExtractor("php")
	if err != nil {
		return nil, Stats{}, err
	}
	c := crawler.NewCrawler(ext, opts.Ignored...).WithLogger(opts.Logger)
	return NewIndexer(c, opts.Logger).BuildGraph(ctx, roots)
}
