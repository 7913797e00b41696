package loader

import (
	"context"
	"fmt"

	"deprecheck/internal/rules"
)

// Loader produces a rule set from a source.
type Loader interface {
	// Name identifies the strategy; it is part of cache keys.
	Name() string
	Load(ctx context.Context, src Source) (*rules.RuleSet, error)
}

// Package is one dependency entry of a lockfile.
type Package struct {
	Name        string
	Version     string
	InstallPath string
}

// PackageCache memoizes per-package rule sets across runs.
type PackageCache interface {
	LoadPackage(ctx context.Context, pkg Package, load func(context.Context) (*rules.RuleSet, error)) (*rules.RuleSet, error)
}

// Dispatcher routes a source to the loader registered for its kind.
type Dispatcher struct {
	loaders map[Kind]Loader
}

// NewDispatcher creates a dispatcher from explicit registrations.
func NewDispatcher(loaders map[Kind]Loader) *Dispatcher {
	d := &Dispatcher{loaders: make(map[Kind]Loader, len(loaders))}
	for k, l := range loaders {
		d.loaders[k] = l
	}
	return d
}

// NewDefault wires the three built-in strategies.
func NewDefault(opts Options) *Dispatcher {
	dir := NewDirectoryLoader(opts)
	return NewDispatcher(map[Kind]Loader{
		KindDirectory: dir,
		KindLockfile:  NewLockfileLoader(dir, opts),
		KindRuleFile:  NewRuleFileLoader(),
	})
}

func (d *Dispatcher) Name() string {
	return "dispatch"
}

// For returns the loader registered for a kind.
func (d *Dispatcher) For(kind Kind) (Loader, bool) {
	l, ok := d.loaders[kind]
	return l, ok
}

func (d *Dispatcher) Load(ctx context.Context, src Source) (*rules.RuleSet, error) {
	l, ok := d.loaders[src.Kind]
	if !ok {
		return nil, &LoadError{Source: src, Op: "dispatch", Err: fmt.Errorf("no loader for kind %q", src.Kind)}
	}
	return l.Load(ctx, src)
}

// LoadPath selects the source kind of path and loads it.
func LoadPath(ctx context.Context, l Loader, path string) (*rules.RuleSet, Source, error) {
	src, err := Select(path)
	if err != nil {
		return nil, src, err
	}
	rs, err := l.Load(ctx, src)
	return rs, src, err
}
