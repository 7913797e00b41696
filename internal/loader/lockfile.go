package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"deprecheck/internal/ir"
	"deprecheck/internal/rules"
)

var (
	errMissingName       = errors.New("package entry has no name")
	errMissingInstallDir = errors.New("install directory not found")
)

type lockDocument struct {
	Packages    []json.RawMessage `json:"packages"`
	PackagesDev []json.RawMessage `json:"packages-dev"`
}

type lockPackage struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	InstallPath string `json:"install-path"`
}

// LockfileLoader reads a composer.lock and scans each installed package for
// annotations. Packages are merged in manifest order; a later package
// overrides an earlier one on conflict.
type LockfileLoader struct {
	dir  *DirectoryLoader
	opts Options
}

func NewLockfileLoader(dir *DirectoryLoader, opts Options) *LockfileLoader {
	if dir == nil {
		dir = NewDirectoryLoader(opts)
	}
	return &LockfileLoader{dir: dir, opts: opts}
}

func (l *LockfileLoader) Name() string {
	return "lockfile"
}

func (l *LockfileLoader) Load(ctx context.Context, src Source) (*rules.RuleSet, error) {
	if src.Kind != KindLockfile {
		return nil, &LoadError{Source: src, Op: "load", Err: fmt.Errorf("unexpected source kind %q", src.Kind)}
	}
	pkgs, err := l.Packages(ctx, src.Path)
	if err != nil {
		return nil, &LoadError{Source: src, Op: "parse", Err: err}
	}

	b := rules.NewBuilder()
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, &LoadError{Source: src, Op: "load", Err: err}
		}
		rs, err := l.loadPackage(ctx, pkg)
		if err != nil {
			return nil, &LoadError{Source: src, Op: "load package " + pkg.Name, Err: err}
		}
		b.Merge(rs)
	}
	return b.Build(), nil
}

// Packages lists the installable packages of a lockfile. Entries without a
// name or without an install directory are reported and skipped.
func (l *LockfileLoader) Packages(ctx context.Context, lockPath string) ([]Package, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var doc lockDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid lockfile: %w", err)
	}

	baseDir := filepath.Dir(lockPath)
	vendorDir := l.opts.VendorDir
	if vendorDir == "" {
		vendorDir = DefaultVendorDir
	}

	entries := append(append([]json.RawMessage(nil), doc.Packages...), doc.PackagesDev...)
	pkgs := make([]Package, 0, len(entries))
	for i, raw := range entries {
		var entry lockPackage
		if err := json.Unmarshal(raw, &entry); err != nil {
			l.skip(ctx, lockPath, fmt.Sprintf("#%d", i), err)
			continue
		}
		if entry.Name == "" {
			l.skip(ctx, lockPath, fmt.Sprintf("#%d", i), errMissingName)
			continue
		}

		dir := filepath.Join(baseDir, vendorDir, filepath.FromSlash(entry.Name))
		if entry.InstallPath != "" {
			dir = filepath.Join(baseDir, filepath.FromSlash(entry.InstallPath))
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			l.skip(ctx, lockPath, entry.Name, fmt.Errorf("%w: %s", errMissingInstallDir, dir))
			continue
		}
		pkgs = append(pkgs, Package{Name: entry.Name, Version: entry.Version, InstallPath: dir})
	}
	return pkgs, nil
}

func (l *LockfileLoader) loadPackage(ctx context.Context, pkg Package) (*rules.RuleSet, error) {
	load := func(ctx context.Context) (*rules.RuleSet, error) {
		return l.dir.Load(ctx, Source{Kind: KindDirectory, Path: pkg.InstallPath})
	}
	if l.opts.Packages != nil {
		return l.opts.Packages.LoadPackage(ctx, pkg, load)
	}
	return load(ctx)
}

func (l *LockfileLoader) skip(ctx context.Context, lockPath, entry string, err error) {
	l.opts.logger().Warn("skipping lockfile package", "lockfile", lockPath, "package", entry, "error", err)
	l.opts.warn(ctx, ir.ParseWarning{Filepath: lockPath + ":" + entry, Err: err})
}
