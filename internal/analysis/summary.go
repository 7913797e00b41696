package analysis

import (
	"sort"

	"deprecheck/internal/ir"
	"deprecheck/internal/violation"
)

// FileCount is the number of violations in one file.
type FileCount struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

// Summary aggregates a run.
type Summary struct {
	Total   int                    `json:"total"`
	ByKind  map[violation.Kind]int `json:"by_kind"`
	ByFile  []FileCount            `json:"by_file"`
	Files   int                    `json:"files"`
	Skipped int                    `json:"skipped"`
}

// OK reports whether the run found nothing.
func (s Summary) OK() bool {
	return s.Total == 0
}

// Summarize counts violations per kind and per file. Files are sorted by
// descending count, then by name.
func Summarize(vs []violation.Violation, files int, skipped []ir.ParseWarning) Summary {
	s := Summary{
		Total:   len(vs),
		ByKind:  make(map[violation.Kind]int),
		Files:   files,
		Skipped: len(skipped),
	}
	perFile := make(map[string]int)
	for _, v := range vs {
		s.ByKind[v.Kind]++
		perFile[v.File]++
	}
	s.ByFile = make([]FileCount, 0, len(perFile))
	for f, n := range perFile {
		s.ByFile = append(s.ByFile, FileCount{File: f, Count: n})
	}
	sort.Slice(s.ByFile, func(i, j int) bool {
		if s.ByFile[i].Count != s.ByFile[j].Count {
			return s.ByFile[i].Count > s.ByFile[j].Count
		}
		return s.ByFile[i].File < s.ByFile[j].File
	})
	return s
}
