package analysis

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"deprecheck/internal/git"
	"deprecheck/internal/ir"
	"deprecheck/internal/violation"
)

func at(kind violation.Kind, file string, line int) violation.Violation {
	return violation.At(kind, `Acme\Old`, "gone", "test", ir.Position{Filepath: file, Line: line, Column: 1})
}

func TestSummarize(t *testing.T) {
	vs := []violation.Violation{
		at(violation.KindClass, "b.php", 1),
		at(violation.KindClass, "a.php", 2),
		at(violation.KindTypeHint, "b.php", 3),
		at(violation.KindMethod, "c.php", 4),
	}
	skipped := []ir.ParseWarning{{Filepath: "bad.php", Err: errors.New("syntax error")}}

	s := Summarize(vs, 5, skipped)
	assert.False(t, s.OK())
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 5, s.Files)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, map[violation.Kind]int{
		violation.KindClass:    2,
		violation.KindTypeHint: 1,
		violation.KindMethod:   1,
	}, s.ByKind)
	assert.Equal(t, []FileCount{{"b.php", 2}, {"a.php", 1}, {"c.php", 1}}, s.ByFile)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 3, nil)
	assert.True(t, s.OK())
	assert.Empty(t, s.ByFile)
	assert.Equal(t, 3, s.Files)
}

func TestAnalyzer_AnalyzeImpact(t *testing.T) {
	abs, err := filepath.Abs(filepath.Join("src", "Foo.php"))
	assert.NoError(t, err)

	a := NewAnalyzer([]git.ChangedFile{{Path: abs, ChangedLines: []int{4, 5}}})
	vs := []violation.Violation{
		at(violation.KindClass, filepath.Join("src", "Foo.php"), 4),
		at(violation.KindClass, filepath.Join("src", "Foo.php"), 9),
		at(violation.KindClass, filepath.Join("src", "Bar.php"), 4),
		at(violation.KindTypeHint, abs, 5),
	}

	report := a.AnalyzeImpact(vs)
	assert.Equal(t, []violation.Violation{vs[0], vs[3]}, report.Introduced)
	assert.Equal(t, []violation.Violation{vs[1], vs[2]}, report.Existing)
}
