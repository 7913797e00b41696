package main

import (
	"encoding/json"
	"fmt"
	"io"

	"deprecheck/internal/analysis"
	"deprecheck/internal/pipeline"
	"deprecheck/internal/violation"
)

func renderText(w io.Writer, report *pipeline.Report) error {
	res := report.Result
	for _, v := range res.Violations {
		if _, err := fmt.Fprintf(w, "%s:%d:%d: [%s] %s: %s\n", v.File, v.Line, v.Column, v.Kind, v.Symbol, v.Message); err != nil {
			return err
		}
	}
	for _, s := range res.Skipped {
		if _, err := fmt.Fprintf(w, "skipped %s\n", s); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d violation(s) in %d file(s), %d file(s) skipped\n",
		report.Summary.Total, res.Files, report.Summary.Skipped)
	return err
}

type jsonSkipped struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type jsonReport struct {
	RunID      string                `json:"run_id"`
	Source     string                `json:"source"`
	Roots      []string              `json:"roots"`
	Violations []violation.Violation `json:"violations"`
	Skipped    []jsonSkipped         `json:"skipped"`
	Summary    analysis.Summary      `json:"summary"`
	Since      *jsonImpact           `json:"since,omitempty"`
}

type jsonImpact struct {
	Existing int `json:"existing"`
}

func renderJSON(w io.Writer, runID string, report *pipeline.Report) error {
	out := jsonReport{
		RunID:      runID,
		Source:     report.Rules.Source.String(),
		Roots:      report.Roots,
		Violations: report.Result.Violations,
		Skipped:    []jsonSkipped{},
		Summary:    report.Summary,
	}
	if out.Violations == nil {
		out.Violations = []violation.Violation{}
	}
	for _, s := range report.Result.Skipped {
		out.Skipped = append(out.Skipped, jsonSkipped{File: s.Filepath, Error: s.Err.Error()})
	}
	if report.Impact != nil {
		out.Since = &jsonImpact{Existing: len(report.Impact.Existing)}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderRules(w io.Writer, loaded *pipeline.RuleLoad) error {
	rs := loaded.RuleSet
	if _, err := fmt.Fprintf(w, "source: %s\n", loaded.Source); err != nil {
		return err
	}
	sections := []struct {
		title string
		lines []string
	}{
		{"classes", nil},
		{"interfaces", nil},
		{"methods", nil},
	}
	for _, e := range rs.Classes() {
		sections[0].lines = append(sections[0].lines, fmt.Sprintf("%s: %s", e.Name, e.Message))
	}
	for _, e := range rs.Interfaces() {
		sections[1].lines = append(sections[1].lines, fmt.Sprintf("%s: %s", e.Name, e.Message))
	}
	for _, e := range rs.Methods() {
		sections[2].lines = append(sections[2].lines, fmt.Sprintf("%s: %s", e.Symbol(), e.Message))
	}
	for _, s := range sections {
		if _, err := fmt.Fprintf(w, "%s (%d):\n", s.title, len(s.lines)); err != nil {
			return err
		}
		for _, l := range s.lines {
			if _, err := fmt.Fprintf(w, "  %s\n", l); err != nil {
				return err
			}
		}
	}
	for _, warn := range loaded.Warnings {
		if _, err := fmt.Fprintf(w, "skipped %s\n", warn); err != nil {
			return err
		}
	}
	return nil
}
