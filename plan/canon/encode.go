package canon

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/source"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document returns the wire form of p.
func Document(p *plan.Plan) *source.Document {
	actual := p.ActualCardinality
	doc := &source.Document{
		Dialect:           p.Dialect,
		ActualCardinality: &actual,
		Plan:              wireNode(p.Root),
		Pipelines:         make([]source.WirePipeline, 0, len(p.Pipelines)),
	}
	if p.ExecutionTime != 0 {
		execution := p.ExecutionTime
		doc.ExecutionTime = &execution
	}
	for _, pl := range p.Pipelines {
		doc.Pipelines = append(doc.Pipelines, source.WirePipeline{
			ID:        pl.ID,
			Operators: append([]int(nil), pl.Operators...),
			Start:     pl.Start,
			Stop:      pl.Stop,
			Duration:  pl.Duration,
			Timed:     pl.Timed,
		})
	}
	return doc
}

// Encode writes p as indented canonical JSON. Equal plans encode to equal
// bytes.
func Encode(p *plan.Plan) ([]byte, error) {
	data, err := json.MarshalIndent(Document(p), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return data, nil
}

// Decode reads canonical JSON produced by Encode back into a plan.
func Decode(data []byte) (*plan.Plan, error) {
	opts := DefaultOptions()
	opts.Dialect = source.Canonical{}.Name()
	return Canonicalize(data, opts, nil)
}

func wireNode(n *plan.Node) *source.WireNode {
	if n == nil {
		return nil
	}
	estimated := n.EstimatedCardinality
	w := &source.WireNode{
		Operator:             n.Kind.String(),
		OperatorID:           n.ID,
		AnalyzePlanID:        n.ID,
		Cardinality:          n.Cardinality,
		EstimatedCardinality: &estimated,
		AnalyzeCardinality:   n.ObservedCardinality,
		ProducedIUs:          []source.WireIU{{EstimatedSize: n.Width}},
		TableName:            n.Relation,
		Materialize:          n.Materialize,
		Synthetic:            n.Synthetic,
		Pipeline:             n.Pipeline,
		Stage:                n.Stage.String(),
		Left:                 wireNode(n.Left),
		Right:                wireNode(n.Right),
		Input:                wireNode(n.Input),
	}
	if n.Kind == plan.Join {
		w.PhysicalOperator = n.Join.String()
	}
	if n.Timed {
		start, stop := n.Start, n.Stop
		w.Start, w.Stop = &start, &stop
	}
	return w
}
