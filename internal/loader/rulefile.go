package loader

import (
	"context"
	"fmt"
	"os"

	"deprecheck/internal/rules"
)

// RuleFileLoader reads a serialized rule set.
type RuleFileLoader struct{}

func NewRuleFileLoader() *RuleFileLoader {
	return &RuleFileLoader{}
}

func (l *RuleFileLoader) Name() string {
	return "rulefile"
}

func (l *RuleFileLoader) Load(ctx context.Context, src Source) (*rules.RuleSet, error) {
	if src.Kind != KindRuleFile {
		return nil, &LoadError{Source: src, Op: "load", Err: fmt.Errorf("unexpected source kind %q", src.Kind)}
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, &LoadError{Source: src, Op: "open", Err: err}
	}
	defer f.Close()

	rs, err := rules.Decode(f)
	if err != nil {
		return nil, &LoadError{Source: src, Op: "decode", Err: err}
	}
	return rs, nil
}
