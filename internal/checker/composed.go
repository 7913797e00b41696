package checker

import (
	"deprecheck/internal/ir"
	"deprecheck/internal/rules"
	"deprecheck/internal/violation"
)

// Composed runs a fixed sequence of checkers and concatenates their
// results in checker order.
type Composed struct {
	checkers []Checker
	dedup    bool
	filter   *violation.Filter
}

// Option configures a Composed checker.
type Option func(*Composed)

// WithDedup drops exact repeats of (kind, symbol, location).
func WithDedup(enabled bool) Option {
	return func(c *Composed) { c.dedup = enabled }
}

// WithFilter suppresses violations matched by f.
func WithFilter(f *violation.Filter) Option {
	return func(c *Composed) { c.filter = f }
}

// New composes the six standard checkers.
func New(rs *rules.RuleSet, a Ancestry, opts ...Option) *Composed {
	if rs == nil {
		rs = rules.Empty()
	}
	return Compose([]Checker{
		NewClassChecker(rs),
		NewInterfaceChecker(rs),
		NewMethodChecker(rs, a),
		NewSuperTypeChecker(rs),
		NewTypeHintChecker(rs),
		NewMethodDefinitionChecker(rs, a),
	}, opts...)
}

// Compose builds a Composed checker from explicit checkers.
func Compose(checkers []Checker, opts ...Option) *Composed {
	c := &Composed{checkers: checkers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composed) Name() string { return "composed" }

// Checkers returns the composed checkers in run order.
func (c *Composed) Checkers() []Checker {
	return append([]Checker(nil), c.checkers...)
}

// Check runs every checker over the file. Files that failed to parse
// yield nothing.
func (c *Composed) Check(file *ir.File) []violation.Violation {
	if file == nil || file.ParseError != nil {
		return nil
	}
	var out []violation.Violation
	for _, ch := range c.checkers {
		out = append(out, ch.Check(file)...)
	}
	if c.dedup {
		out = violation.Dedup(out)
	}
	return c.filter.Apply(out)
}
