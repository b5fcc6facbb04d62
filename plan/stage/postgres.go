package stage

import "github.com/wbrown/plancanon/plan"

// Postgres returns the classifier for PostgreSQL plans. PostgreSQL places
// sorts and aggregations inside pipelines and nests joins in shapes the
// default rule does not expect, so most operator types get a relaxed
// handler.
func Postgres() *Classifier {
	return New("postgres", DefaultRule, plan.PassThrough).
		With(Fixed(plan.Scan), plan.OpTableScan, plan.OpInlineTable).
		With(Fixed(plan.PassThrough), plan.OpSelect, plan.OpMap).
		With(Fixed(plan.Build), plan.OpTemp, plan.OpOutput).
		With(relaxedBreaker, plan.OpGroupBy, plan.OpSort, plan.OpWindow, plan.OpSetOperation).
		With(OrElse(plan.Probe), plan.OpHashJoin, plan.OpGroupJoin).
		With(OrElse(plan.Build), plan.OpMultiWayJoin).
		With(indexNLJoin, plan.OpIndexNLJoin)
}

func relaxedBreaker(in Input, _ Rule) Decision {
	switch {
	case in.First():
		return Decision{Stage: plan.Scan}
	case in.Last():
		return Decision{Stage: plan.Build}
	}
	// Interior of a pipeline
	return Decision{Stage: plan.PassThrough}
}

// indexNLJoin resolves ambiguous nested loop joins to Probe. Downstream
// features exist only for the probe side of this operator.
func indexNLJoin(in Input, base Rule) Decision {
	orProbe := OrElse(plan.Probe)
	if in.First() {
		return orProbe(in, base)
	}

	n, pred := in.Node, in.Predecessor()
	if pred != n.Left && pred != n.Right {
		return orProbe(in, base)
	}
	if !in.Last() {
		return Decision{Stage: plan.Probe}
	}
	if !in.HasParent() {
		return Decision{Stage: plan.Probe}
	}
	return orProbe(in, base)
}
