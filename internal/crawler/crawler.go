package crawler

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"deprecheck/internal/extractor"
	"deprecheck/internal/ir"
)

// DefaultIgnored lists directory names that are never descended into.
var DefaultIgnored = []string{".git", ".svn", ".hg", "node_modules"}

// Crawler scans a directory for source files.
type Crawler struct {
	extractor *extractor.Extractor
	ignored   map[string]bool
	logger    *slog.Logger
}

// NewCrawler creates a new crawler instance. Extra directory names to skip
// are added to DefaultIgnored.
func NewCrawler(ext *extractor.Extractor, ignored ...string) *Crawler {
	c := &Crawler{
		extractor: ext,
		ignored:   make(map[string]bool),
		logger:    slog.Default(),
	}
	for _, name := range DefaultIgnored {
		c.ignored[name] = true
	}
	for _, name := range ignored {
		if name != "" {
			c.ignored[name] = true
		}
	}
	return c
}

// WithLogger sets the logger used for skipped files.
func (c *Crawler) WithLogger(logger *slog.Logger) *Crawler {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Files returns the source files under root in lexical order. A root that
// is itself a file is returned as-is.
func (c *Crawler) Files(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && c.ignored[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if c.extractor.Accepts(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ScanProject walks the root directory and extracts every source file.
// Results are streamed through onFile to avoid holding every file in memory.
// Files that cannot be read or parsed are reported through onWarn and skipped.
func (c *Crawler) ScanProject(ctx context.Context, root string, onFile func(*ir.File), onWarn func(ir.ParseWarning)) error {
	files, err := c.Files(root)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		file, err := c.extractor.ExtractFromFile(ctx, path)
		if err != nil {
			// Log and continue instead of failing the whole scan
			c.logger.Warn("skipping unparseable file", "path", path, "error", err)
			if onWarn != nil {
				onWarn(ir.ParseWarning{Filepath: path, Err: err})
			}
			continue
		}
		onFile(file)
	}
	return nil
}
