package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"deprecheck/internal/ir"
	"deprecheck/internal/loader"
	"deprecheck/internal/rules"
	"deprecheck/internal/storage"
)

// Options configures the rule set cache.
type Options struct {
	// Dir overrides the cache location. Empty means DefaultDir.
	Dir      string
	Disabled bool
	// Scope is folded into every key so loads with different loader
	// settings never share an entry.
	Scope  Scope
	Logger *slog.Logger
}

// Stats counts cache outcomes.
type Stats struct {
	Hits        int64
	Misses      int64
	Corrupt     int64
	WriteErrors int64
}

// Cache stores loaded rule sets keyed by source fingerprint. Loads for one
// key are serialized so concurrent callers share a single computation.
type Cache struct {
	store    storage.Store
	disabled bool
	scope    Scope
	logger   *slog.Logger
	group    singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	corrupt     atomic.Int64
	writeErrors atomic.Int64
}

// DefaultDir returns the per-user cache location.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "deprecheck")
}

// New opens a cache backed by a FileStore.
func New(opts Options) (*Cache, error) {
	if opts.Disabled {
		return NewWithStore(nil, opts), nil
	}
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return NewWithStore(store, opts), nil
}

// NewWithStore creates a cache over an arbitrary store. A nil store
// disables caching.
func NewWithStore(store storage.Store, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:    store,
		disabled: opts.Disabled || store == nil,
		scope:    opts.Scope,
		logger:   logger,
	}
}

// Enabled reports whether lookups reach the store.
func (c *Cache) Enabled() bool {
	return !c.disabled
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Corrupt:     c.corrupt.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
}

// Wrap returns a loader that consults the cache before inner.
func (c *Cache) Wrap(inner loader.Loader) *Loader {
	return &Loader{cache: c, inner: inner}
}

// LoadPackage caches one lockfile package by name, version and install
// path. Development versions move without a version change, so their
// install directory is fingerprinted as well.
func (c *Cache) LoadPackage(ctx context.Context, pkg loader.Package, load func(context.Context) (*rules.RuleSet, error)) (*rules.RuleSet, error) {
	if c.disabled {
		return load(ctx)
	}
	fp := ""
	if isDevVersion(pkg.Version) {
		var err error
		if fp, err = dirFingerprint(pkg.InstallPath); err != nil {
			c.logger.Warn("cannot fingerprint package, bypassing cache", "package", pkg.Name, "error", err)
			return load(ctx)
		}
	}
	return c.load(ctx, PackageKey(pkg, fp, c.scope), load)
}

// entry is a cached rule set with the warnings its load produced.
type entry struct {
	rules    *rules.RuleSet
	warnings []ir.ParseWarning
}

type entryDocument struct {
	Rules    string         `yaml:"rules"`
	Warnings []entryWarning `yaml:"warnings,omitempty"`
}

type entryWarning struct {
	File  string `yaml:"file"`
	Error string `yaml:"error"`
}

// load returns the entry under key, computing it with load on a miss.
// Warnings of a computed load reach ctx as they happen; warnings of a
// stored entry are replayed to ctx.
func (c *Cache) load(ctx context.Context, key string, load func(context.Context) (*rules.RuleSet, error)) (*rules.RuleSet, error) {
	computed := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.read(ctx, key); ok {
			c.hits.Add(1)
			return e, nil
		}
		c.misses.Add(1)
		computed = true

		var mu sync.Mutex
		e := &entry{}
		rs, err := load(loader.WithWarnings(ctx, func(w ir.ParseWarning) {
			mu.Lock()
			e.warnings = append(e.warnings, w)
			mu.Unlock()
		}))
		if err != nil {
			return nil, err
		}
		e.rules = rs
		if err := c.write(ctx, key, e); err != nil {
			c.writeErrors.Add(1)
			c.logger.Warn("failed to persist rule set", "error", err)
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	e := v.(*entry)
	if !computed {
		for _, w := range e.warnings {
			loader.ReportWarning(ctx, w)
		}
	}
	return e.rules, nil
}

func (c *Cache) read(ctx context.Context, key string) (*entry, bool) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false
	}
	if err == nil {
		var e *entry
		if e, err = decodeEntry(data); err == nil {
			return e, true
		}
		err = fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}
	if errors.Is(err, storage.ErrCorrupt) {
		c.corrupt.Add(1)
	}
	c.logger.Warn("ignoring unusable cache entry", "error", &ReadError{Key: key, Err: err})
	return nil, false
}

func (c *Cache) write(ctx context.Context, key string, e *entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

func encodeEntry(e *entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := rules.Encode(&buf, e.rules); err != nil {
		return nil, err
	}
	doc := entryDocument{Rules: buf.String()}
	for _, w := range e.warnings {
		msg := ""
		if w.Err != nil {
			msg = w.Err.Error()
		}
		doc.Warnings = append(doc.Warnings, entryWarning{File: w.Filepath, Error: msg})
	}
	return yaml.Marshal(&doc)
}

func decodeEntry(data []byte) (*entry, error) {
	var doc entryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	rs, err := rules.Decode(strings.NewReader(doc.Rules))
	if err != nil {
		return nil, err
	}
	e := &entry{rules: rs}
	for _, w := range doc.Warnings {
		e.warnings = append(e.warnings, ir.ParseWarning{Filepath: w.File, Err: errors.New(w.Error)})
	}
	return e, nil
}

func isDevVersion(v string) bool {
	return v == "" || strings.HasPrefix(v, "dev-") || strings.HasSuffix(v, "-dev")
}

// Loader is a loader.Loader that memoizes another loader through a Cache.
type Loader struct {
	cache *Cache
	inner loader.Loader
}

func (l *Loader) Name() string {
	return l.inner.Name()
}

// Load serves directory and rule file sources from the cache. A lockfile
// names packages whose install directories change independently of it, so
// lockfile sources always reach the wrapped loader, which caches each
// package through LoadPackage.
func (l *Loader) Load(ctx context.Context, src loader.Source) (*rules.RuleSet, error) {
	if l.cache.disabled || src.Kind == loader.KindLockfile {
		return l.inner.Load(ctx, src)
	}
	fp, err := Fingerprint(src)
	if err != nil {
		// Unreadable sources are reported by the wrapped loader.
		return l.inner.Load(ctx, src)
	}
	key := Key(l.inner.Name(), src, fp, l.cache.scope)
	l.cache.logger.Debug("rule set cache lookup", "source", src.String(), "key", key)
	return l.cache.load(ctx, key, func(ctx context.Context) (*rules.RuleSet, error) {
		return l.inner.Load(ctx, src)
	})
}
