package loader

import (
	"context"
	"log/slog"

	"deprecheck/internal/ir"
)

// DefaultVendorDir is where composer installs packages.
const DefaultVendorDir = "vendor"

// Options configures the built-in loaders.
type Options struct {
	// VendorDir is relative to the lockfile directory.
	VendorDir string
	// Ignored lists extra directory names skipped when scanning.
	Ignored []string
	// Packages caches per-package rule sets for the lockfile loader.
	Packages PackageCache
	Logger   *slog.Logger
	// OnWarning receives files and packages that were skipped. Sinks
	// installed with WithWarnings receive them too.
	OnWarning func(ir.ParseWarning)
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) warn(ctx context.Context, w ir.ParseWarning) {
	if o.OnWarning != nil {
		o.OnWarning(w)
	}
	ReportWarning(ctx, w)
}
