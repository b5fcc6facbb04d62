package stage

import "github.com/wbrown/plancanon/plan"

// DefaultRule is the strict base policy. It only answers when the pipeline
// has the shape the operator normally produces:
//
//   - scans and inline tables are Scan
//   - selections and maps are PassThrough
//   - temporaries and output sinks are Build
//   - sorts, aggregations, windows and set operations are Scan when they
//     start a pipeline and Build when they end one
//   - a join is Probe when its predecessor is its left child and Build when
//     it is its right child
func DefaultRule(in Input) Result {
	n := in.Node
	switch n.Op() {
	case plan.OpTableScan, plan.OpInlineTable:
		return Classified(plan.Scan)

	case plan.OpSelect, plan.OpMap:
		return Classified(plan.PassThrough)

	case plan.OpTemp, plan.OpOutput:
		return Classified(plan.Build)

	case plan.OpGroupBy, plan.OpSort, plan.OpWindow, plan.OpSetOperation:
		switch {
		case in.First():
			return Classified(plan.Scan)
		case in.Last():
			return Classified(plan.Build)
		}
		return PreconditionFailed

	case plan.OpHashJoin, plan.OpIndexNLJoin, plan.OpMergeJoin, plan.OpJoin,
		plan.OpGroupJoin, plan.OpMultiWayJoin:
		pred := in.Predecessor()
		switch {
		case pred == nil:
			return PreconditionFailed
		case pred == n.Left:
			return Classified(plan.Probe)
		case pred == n.Right:
			return Classified(plan.Build)
		}
		return PreconditionFailed
	}
	return PreconditionFailed
}

// Default returns the classifier for dialects that need no special policy.
func Default() *Classifier {
	return New("canonical", DefaultRule, plan.PassThrough)
}
