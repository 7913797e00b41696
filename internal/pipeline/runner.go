package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"deprecheck/internal/checker"
	"deprecheck/internal/extractor"
	"deprecheck/internal/ir"
	"deprecheck/internal/violation"
)

// ProgressFunc is called after each file with the number of files done.
type ProgressFunc func(done, total int, path string)

// Result is the outcome of checking a set of files.
type Result struct {
	Violations []violation.Violation
	Skipped    []ir.ParseWarning
	Files      int
}

// Runner parses and checks files in parallel.
type Runner struct {
	Checker    checker.Checker
	Extractor  *extractor.Extractor
	Workers    int
	OnProgress ProgressFunc
	Logger     *slog.Logger
}

type fileOutcome struct {
	violations []violation.Violation
	warning    *ir.ParseWarning
}

// Run checks files with at most Workers concurrent parses. Violations are
// concatenated in input file order regardless of completion order. Files
// that cannot be parsed are skipped and reported in Result.Skipped.
func (r *Runner) Run(ctx context.Context, files []string) (*Result, error) {
	ext := r.Extractor
	if ext == nil {
		var err error
		if ext, err = extractor.NewExtractor("php"); err != nil {
			return nil, err
		}
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]fileOutcome, len(files))
	var (
		mu   sync.Mutex
		done int
	)
	progress := func(path string) {
		if r.OnProgress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		r.OnProgress(done, len(files), path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := ext.ExtractFromFile(gctx, path)
			if err != nil {
				logger.Warn("skipping unparseable file", "path", path, "error", err)
				outcomes[i].warning = &ir.ParseWarning{Filepath: path, Err: err}
			} else {
				outcomes[i].violations = r.Checker.Check(file)
			}
			progress(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Files: len(files)}
	for _, o := range outcomes {
		res.Violations = append(res.Violations, o.violations...)
		if o.warning != nil {
			res.Skipped = append(res.Skipped, *o.warning)
		}
	}
	return res, nil
}
