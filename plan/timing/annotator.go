// Package timing attaches observed execution times from a source plan to the
// canonical tree and aggregates them per pipeline.
package timing

import (
	"time"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/convert"
	"github.com/wbrown/plancanon/plan/source"
)

// Span is the observed execution window of one operator
type Span struct {
	Start float64
	Stop  float64
}

// Annotate walks src and the canonical tree converted from it in lock-step,
// records the timing of every source node that has statistics on the
// matching canonical node, and sets the span of each pipeline from its timed
// members. Pipelines without timed members are left untimed.
func Annotate(src *source.Node, root *plan.Node, pipelines []plan.Pipeline, collector *annotations.Collector) map[int]Span {
	start := time.Now()
	spans := make(map[int]Span)
	match(src, root, spans)

	for i := range pipelines {
		p := &pipelines[i]
		first := true
		var lo, hi float64
		for _, id := range p.Operators {
			s, ok := spans[id]
			if !ok {
				continue
			}
			if first || s.Start < lo {
				lo = s.Start
			}
			if first || s.Stop > hi {
				hi = s.Stop
			}
			first = false
		}
		if !first {
			p.SetSpan(lo, hi)
		}
	}

	collector.AddTiming(annotations.TimingAnnotated, start, map[string]interface{}{
		"timed.count":    len(spans),
		"operator.count": countNodes(root),
	})
	return spans
}

// match follows the converter's child traversal, so a hash join's build side
// is matched through its hash wrapper.
func match(src *source.Node, n *plan.Node, spans map[int]Span) {
	if src == nil || n == nil || n.Synthetic || src.Placeholder {
		return
	}
	if src.Timing != nil {
		s := Span{Start: src.Timing.Start, Stop: src.Timing.Stop}
		n.Start, n.Stop, n.Timed = s.Start, s.Stop, true
		spans[n.ID] = s
	}

	inputs := convert.Inputs(src)
	switch {
	case n.Kind.Leaf():
	case n.Kind.Binary():
		match(inputs[0], n.Left, spans)
		match(inputs[1], n.Right, spans)
	default:
		match(inputs[0], n.Input, spans)
	}
}

func countNodes(root *plan.Node) int {
	count := 0
	root.Walk(func(*plan.Node) bool {
		count++
		return true
	})
	return count
}
