package analysis

import (
	"path/filepath"

	"deprecheck/internal/git"
	"deprecheck/internal/violation"
)

// ImpactReport splits violations by whether a change introduced them.
type ImpactReport struct {
	Introduced []violation.Violation
	Existing   []violation.Violation
}

// Analyzer relates violations to a set of changed lines.
type Analyzer struct {
	changes map[string]git.ChangedFile
}

// NewAnalyzer creates a new analyzer. Paths are compared in absolute form.
func NewAnalyzer(changes []git.ChangedFile) *Analyzer {
	a := &Analyzer{changes: make(map[string]git.ChangedFile, len(changes))}
	for _, c := range changes {
		a.changes[absPath(c.Path)] = c
	}
	return a
}

// AnalyzeImpact keeps input order within each group.
func (a *Analyzer) AnalyzeImpact(vs []violation.Violation) *ImpactReport {
	report := &ImpactReport{
		Introduced: []violation.Violation{},
		Existing:   []violation.Violation{},
	}
	for _, v := range vs {
		if a.isAffected(v) {
			report.Introduced = append(report.Introduced, v)
		} else {
			report.Existing = append(report.Existing, v)
		}
	}
	return report
}

func (a *Analyzer) isAffected(v violation.Violation) bool {
	change, ok := a.changes[absPath(v.File)]
	return ok && change.Contains(v.Line)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(p)
}
