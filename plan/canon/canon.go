// Package canon runs the whole canonicalization of one plan document: parse
// in the configured dialect, convert to the canonical tree, partition into
// pipelines with the dialect's stage policy, and attach observed timing.
package canon

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/convert"
	"github.com/wbrown/plancanon/plan/pipeline"
	"github.com/wbrown/plancanon/plan/source"
	"github.com/wbrown/plancanon/plan/stage"
	"github.com/wbrown/plancanon/plan/timing"
)

// Canonicalize parses data in opts.Dialect and canonicalizes it.
func Canonicalize(data []byte, opts Options, collector *annotations.Collector) (*plan.Plan, error) {
	dialect, err := source.Lookup(opts.Dialect)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	src, err := dialect.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s plan: %w", dialect.Name(), err)
	}
	collector.AddTiming(annotations.PlanParsed, start, map[string]interface{}{
		"dialect": src.Dialect,
		"plan":    humanize.Bytes(uint64(len(data))),
	})

	return FromSource(src, opts, collector)
}

// FromSource canonicalizes an already parsed plan.
func FromSource(src *source.Plan, opts Options, collector *annotations.Collector) (*plan.Plan, error) {
	useActual := opts.UseActualCardinality
	if src.ActualCardinality != nil {
		useActual = *src.ActualCardinality
	}

	root, err := convert.Convert(src.Root, convert.Options{
		UseActualCardinality: useActual,
		Collector:            collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert plan: %w", err)
	}

	res := pipeline.Assign(root, stage.ForDialect(src.Dialect), collector)
	timing.Annotate(src.Root, root, res.Pipelines, collector)

	p := plan.New(root, res.Pipelines, src.Dialect)
	p.ActualCardinality = useActual
	if src.HasExecution {
		p.ExecutionTime = src.ExecutionTime
	}
	return p, nil
}
