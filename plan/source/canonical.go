package source

import (
	"bytes"
	"fmt"
)

// Document is the canonical JSON document written by canon.Encode.
type Document struct {
	Dialect           string         `json:"dialect,omitempty"`
	ExecutionTime     *float64       `json:"executionTime,omitempty"`
	ActualCardinality *bool          `json:"actualCardinality,omitempty"`
	Plan              *WireNode      `json:"plan"`
	Pipelines         []WirePipeline `json:"analyzePlanPipelines"`
}

// WireNode is one operator of a canonical document.
type WireNode struct {
	Operator             string    `json:"operator"`
	PhysicalOperator     string    `json:"physicalOperator,omitempty"`
	OperatorID           int       `json:"operatorId"`
	AnalyzePlanID        int       `json:"analyzePlanId"`
	Cardinality          float64   `json:"cardinality"`
	EstimatedCardinality *float64  `json:"estimatedCardinality,omitempty"`
	AnalyzeCardinality   float64   `json:"analyzePlanCardinality"`
	ProducedIUs          []WireIU  `json:"producedIUs"`
	TableName            string    `json:"tablename,omitempty"`
	Materialize          bool      `json:"materialize,omitempty"`
	Synthetic            bool      `json:"synthetic,omitempty"`
	Pipeline             int       `json:"pipeline"`
	Stage                string    `json:"stage,omitempty"`
	Start                *float64  `json:"start,omitempty"`
	Stop                 *float64  `json:"stop,omitempty"`
	Left                 *WireNode `json:"left,omitempty"`
	Right                *WireNode `json:"right,omitempty"`
	Input                *WireNode `json:"input,omitempty"`
}

// WireIU describes a produced column; only its size is modeled.
type WireIU struct {
	EstimatedSize float64 `json:"estimatedSize"`
}

// WirePipeline is one pipeline of a canonical document.
type WirePipeline struct {
	ID        int     `json:"id"`
	Operators []int   `json:"operators"`
	Start     float64 `json:"start"`
	Stop      float64 `json:"stop"`
	Duration  float64 `json:"duration"`
	Timed     bool    `json:"timed,omitempty"`
}

// Canonical reads documents in the canonical encoding, so a converted plan
// can be fed back in. Build sides are already unwrapped in this form. The
// parsed plan keeps the dialect the document was converted from, so the
// same stage policy applies again.
type Canonical struct{}

// Name implements Dialect
func (Canonical) Name() string { return "canonical" }

// Parse implements Dialect
func (Canonical) Parse(data []byte) (*Plan, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedPlan)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if doc.Plan == nil || doc.Plan.Operator == "" {
		return nil, fmt.Errorf("%w: document has no plan root", ErrMalformedPlan)
	}

	p := &Plan{
		Dialect:           "canonical",
		Root:              fromWire(doc.Plan),
		ActualCardinality: doc.ActualCardinality,
	}
	if doc.Dialect != "" {
		p.Dialect = doc.Dialect
	}
	if doc.ExecutionTime != nil {
		p.ExecutionTime = *doc.ExecutionTime
		p.HasExecution = true
	}
	return p, nil
}

func wireKind(w *WireNode) Kind {
	switch w.Operator {
	case "tablescan":
		return KindScan
	case "inlinetable":
		return KindInlineTable
	case "join":
		switch w.PhysicalOperator {
		case "hashjoin":
			return KindHashJoin
		case "indexnljoin":
			return KindNestedLoopJoin
		case "mergejoin":
			return KindMergeJoin
		}
		return KindJoin
	case "groupjoin":
		return KindGroupJoin
	case "multiwayjoin":
		return KindMultiWayJoin
	case "groupby":
		return KindAggregate
	case "sort":
		return KindSort
	case "window":
		return KindWindow
	case "setoperation":
		return KindSetOperation
	case "temp":
		if w.Materialize {
			return KindMaterialize
		}
		return KindTemp
	case "select":
		return KindPassThrough
	case "map":
		return KindMap
	case "output":
		return KindOutput
	}
	return KindUnknown
}

func fromWire(w *WireNode) *Node {
	if w == nil || w.Operator == "" {
		return nil
	}

	n := &Node{
		Kind:          wireKind(w),
		Type:          w.Operator,
		EstimatedRows: w.Cardinality,
		ActualRows:    w.AnalyzeCardinality,
		Loops:         1,
		Width:         pgDefaultWidth,
		Relation:      w.TableName,
		Placeholder:   w.Synthetic,
	}
	if w.EstimatedCardinality != nil {
		n.EstimatedRows = *w.EstimatedCardinality
	}
	if len(w.ProducedIUs) > 0 {
		n.Width = max(1, w.ProducedIUs[0].EstimatedSize)
	}
	if w.Start != nil && w.Stop != nil {
		n.Timing = &Timing{Start: *w.Start, Stop: *w.Stop}
	}

	switch n.Kind {
	case KindScan, KindInlineTable:
	case KindHashJoin, KindNestedLoopJoin, KindMergeJoin, KindJoin,
		KindGroupJoin, KindMultiWayJoin, KindSetOperation:
		n.Children = []*Node{fromWire(w.Left), fromWire(w.Right)}
	case KindUnknown:
		for _, c := range []*WireNode{w.Input, w.Left, w.Right} {
			if c != nil {
				n.Children = append(n.Children, fromWire(c))
			}
		}
	default:
		n.Children = []*Node{fromWire(w.Input)}
	}
	return n
}
