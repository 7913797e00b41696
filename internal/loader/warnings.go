package loader

import (
	"context"

	"deprecheck/internal/ir"
)

type warningSinkKey struct{}

// WithWarnings returns a context whose loads also report skipped files and
// packages to fn. Sinks nest: a warning reaches every sink on the context,
// innermost first.
func WithWarnings(ctx context.Context, fn func(ir.ParseWarning)) context.Context {
	parent, _ := ctx.Value(warningSinkKey{}).(func(ir.ParseWarning))
	sink := fn
	if parent != nil {
		sink = func(w ir.ParseWarning) {
			fn(w)
			parent(w)
		}
	}
	return context.WithValue(ctx, warningSinkKey{}, sink)
}

// ReportWarning delivers w to the sinks installed on ctx.
func ReportWarning(ctx context.Context, w ir.ParseWarning) {
	if sink, ok := ctx.Value(warningSinkKey{}).(func(ir.ParseWarning)); ok {
		sink(w)
	}
}
