package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"deprecheck/internal/analysis"
	"deprecheck/internal/cache"
	"deprecheck/internal/checker"
	"deprecheck/internal/crawler"
	"deprecheck/internal/extractor"
	"deprecheck/internal/git"
	"deprecheck/internal/index"
	"deprecheck/internal/ir"
	"deprecheck/internal/loader"
	"deprecheck/internal/resolver"
	"deprecheck/internal/rules"
	"deprecheck/internal/violation"
)

// RulesOptions configures rule loading.
type RulesOptions struct {
	// Source is a directory, a composer.lock or a rule file.
	Source    string
	VendorDir string
	Ignored   []string
	Cache     cache.Options
	Logger    *slog.Logger
}

// RuleLoad is a loaded rule set with what happened while loading it.
type RuleLoad struct {
	RuleSet  *rules.RuleSet
	Source   loader.Source
	Cache    cache.Stats
	Warnings []ir.ParseWarning
}

// LoadRules selects the strategy for opts.Source and loads it through the
// rule set cache.
func LoadRules(ctx context.Context, opts RulesOptions) (*RuleLoad, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	vendorDir := opts.VendorDir
	if vendorDir == "" {
		vendorDir = loader.DefaultVendorDir
	}
	copts := opts.Cache
	copts.Logger = logger
	copts.Scope = cache.Scope{VendorDir: vendorDir, Ignored: opts.Ignored}
	c, err := cache.New(copts)
	if err != nil {
		return nil, err
	}

	out := &RuleLoad{}
	lopts := loader.Options{
		VendorDir: vendorDir,
		Ignored:   opts.Ignored,
		Packages:  c,
		Logger:    logger,
	}
	// Warnings replayed from cached entries arrive through the context too.
	ctx = loader.WithWarnings(ctx, func(w ir.ParseWarning) { out.Warnings = append(out.Warnings, w) })
	rs, src, err := loader.LoadPath(ctx, c.Wrap(loader.NewDefault(lopts)), opts.Source)
	if err != nil {
		return nil, err
	}
	out.RuleSet, out.Source, out.Cache = rs, src, c.Stats()
	logger.Debug("rules loaded",
		"source", src.String(),
		"entries", rs.Len(),
		"cache_hits", out.Cache.Hits,
		"cache_misses", out.Cache.Misses,
	)
	return out, nil
}

// CheckOptions configures a full check run.
type CheckOptions struct {
	// Path is the tree (or single file) to check.
	Path string
	// Rules is the rule source. Empty means Path/composer.lock when present,
	// otherwise Path itself.
	Rules string
	// Roots are extra dependency roots, searched after Path and the vendor
	// directory.
	Roots      []string
	Ignored    []string
	VendorDir  string
	Cache      cache.Options
	Workers    int
	Dedup      bool
	Filter     string
	Since      string
	OnProgress ProgressFunc
	Logger     *slog.Logger
	// RunID tags the run's timeline.
	RunID string
}

// Report is everything a check run produced.
type Report struct {
	Rules    *RuleLoad
	Roots    []string
	Index    index.Stats
	Resolver resolver.ResolveStats
	Result   *Result
	Summary  analysis.Summary
	// Impact is set when only changed lines are reported.
	Impact   *analysis.ImpactReport
	Timeline *Timeline
	Duration time.Duration
}

// Check runs the stages of a deprecation check.
type Check struct {
	opts   CheckOptions
	logger *slog.Logger
}

func NewCheck(opts CheckOptions) *Check {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.VendorDir == "" {
		opts.VendorDir = loader.DefaultVendorDir
	}
	return &Check{opts: opts, logger: logger}
}

func (c *Check) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	if _, err := os.Stat(c.opts.Path); err != nil {
		return nil, fmt.Errorf("cannot check %s: %w", c.opts.Path, err)
	}
	tl := NewTimeline(c.opts.RunID)

	h := tl.begin("load_rules")
	load, err := c.loadRulesStage(ctx)
	if err != nil {
		tl.end(h, nil, err)
		return nil, err
	}
	tl.end(h, map[string]float64{
		"entries":      float64(load.RuleSet.Len()),
		"cache_hits":   float64(load.Cache.Hits),
		"cache_misses": float64(load.Cache.Misses),
		"warnings":     float64(len(load.Warnings)),
	}, nil)
	if load.RuleSet.IsEmpty() {
		tl.signal("empty_rule_set", "load_rules", "warning", "No deprecated symbols were found in the rule source.", 0)
	}

	report := &Report{Rules: load, Roots: c.rootsStage(load.Source), Timeline: tl}
	h = tl.begin("index")
	g, stats, err := index.Build(ctx, report.Roots, index.Options{Ignored: c.ignored(), Logger: c.logger})
	if err != nil {
		err = fmt.Errorf("failed to index source roots: %w", err)
		tl.end(h, nil, err)
		return nil, err
	}
	report.Index = stats
	tl.end(h, map[string]float64{
		"roots":    float64(len(report.Roots)),
		"files":    float64(stats.Files),
		"types":    float64(stats.Types),
		"shadowed": float64(stats.Shadowed),
		"skipped":  float64(len(stats.Skipped)),
	}, nil)
	if stats.Shadowed > 0 {
		tl.signal("shadowed_types", "index", "info", "Some types are declared in more than one root; the first root wins.", float64(stats.Shadowed))
	}

	r, err := resolver.New(g, resolver.Options{Logger: c.logger})
	if err != nil {
		return nil, err
	}

	h = tl.begin("check")
	result, err := c.checkStage(ctx, load.RuleSet, r)
	if err != nil {
		tl.end(h, nil, err)
		return nil, err
	}
	report.Result = result
	report.Resolver = r.Stats()
	tl.end(h, map[string]float64{
		"files":          float64(result.Files),
		"violations":     float64(len(result.Violations)),
		"skipped":        float64(len(result.Skipped)),
		"ancestor_gaps":  float64(report.Resolver.Gaps),
		"memo_hits":      float64(report.Resolver.MemoHits),
		"ancestor_calls": float64(report.Resolver.Lookups),
	}, nil)
	if len(result.Skipped) > 0 {
		tl.signal("skipped_files", "check", "warning", "Some files could not be parsed and were not checked.", float64(len(result.Skipped)))
	}
	if report.Resolver.Gaps > 0 {
		tl.signal("ancestor_gaps", "check", "warning", "Some ancestors could not be resolved; inherited deprecations may be missed.", float64(report.Resolver.Gaps))
	}

	if c.opts.Since != "" {
		h = tl.begin("impact")
		impact, err := c.impactStage(ctx, result.Violations)
		if err != nil {
			tl.end(h, nil, err)
			return nil, err
		}
		tl.end(h, map[string]float64{
			"introduced": float64(len(impact.Introduced)),
			"existing":   float64(len(impact.Existing)),
		}, nil)
		report.Impact = impact
		result.Violations = impact.Introduced
	}

	report.Summary = analysis.Summarize(result.Violations, result.Files, result.Skipped)
	report.Duration = time.Since(start)
	tl.Finalize()
	c.logger.Info("check finished",
		"files", result.Files,
		"violations", report.Summary.Total,
		"skipped", report.Summary.Skipped,
		"types", report.Index.Types,
		"ancestor_gaps", report.Resolver.Gaps,
		"duration", report.Duration,
	)
	return report, nil
}

func (c *Check) loadRulesStage(ctx context.Context) (*RuleLoad, error) {
	source := c.opts.Rules
	if source == "" {
		source = c.opts.Path
		lock := filepath.Join(c.opts.Path, loader.LockfileName)
		if _, err := os.Stat(lock); err == nil {
			source = lock
		}
	}
	return LoadRules(ctx, RulesOptions{
		Source:    source,
		VendorDir: c.opts.VendorDir,
		Ignored:   c.opts.Ignored,
		Cache:     c.opts.Cache,
		Logger:    c.logger,
	})
}

// rootsStage orders the source roots: the checked tree first, then the
// dependency tree the rules came from, then extra roots.
func (c *Check) rootsStage(src loader.Source) []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			return
		}
		if info, err := os.Stat(p); err != nil || (!info.IsDir() && len(roots) > 0) {
			return
		}
		seen[abs] = true
		roots = append(roots, p)
	}

	add(c.opts.Path)
	switch src.Kind {
	case loader.KindLockfile:
		add(filepath.Join(filepath.Dir(src.Path), c.opts.VendorDir))
	case loader.KindDirectory:
		add(src.Path)
	}
	for _, r := range c.opts.Roots {
		add(r)
	}
	return roots
}

// ignored lists directory names skipped in the checked tree. Installed
// dependencies are indexed as their own root instead.
func (c *Check) ignored() []string {
	return append([]string{filepath.Base(c.opts.VendorDir)}, c.opts.Ignored...)
}

func (c *Check) checkStage(ctx context.Context, rs *rules.RuleSet, r *resolver.Resolver) (*Result, error) {
	ext, err := extractor.NewExtractor("php")
	if err != nil {
		return nil, err
	}
	files, err := crawler.NewCrawler(ext, c.ignored()...).Files(c.opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	runner := &Runner{
		Checker: checker.New(rs, r,
			checker.WithDedup(c.opts.Dedup),
			checker.WithFilter(violation.ParseFilter(c.opts.Filter)),
		),
		Extractor:  ext,
		Workers:    c.opts.Workers,
		OnProgress: c.opts.OnProgress,
		Logger:     c.logger,
	}
	return runner.Run(ctx, files)
}

func (c *Check) impactStage(ctx context.Context, vs []violation.Violation) (*analysis.ImpactReport, error) {
	dir := c.opts.Path
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	changes, err := git.GetChangedFiles(ctx, dir, c.opts.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to get git changes: %w", err)
	}
	report := analysis.NewAnalyzer(changes).AnalyzeImpact(vs)
	c.logger.Debug("restricted to changed lines",
		"since", c.opts.Since,
		"changed_files", len(changes),
		"introduced", len(report.Introduced),
		"existing", len(report.Existing),
	)
	return report, nil
}
