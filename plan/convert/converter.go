// Package convert maps source plan nodes onto the canonical operator tree.
//
// Conversion is total for any finite tree: missing children become synthetic
// scan placeholders and unrecognized operators become pass-through selects.
// Only a cyclic source structure is rejected.
package convert

import (
	"errors"
	"fmt"
	"time"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/source"
)

// ErrCyclicPlan is returned when a source node is reachable from itself.
var ErrCyclicPlan = errors.New("plan is not a tree")

// Placeholder attributes
const (
	placeholderWidth = 8
)

// Options control conversion
type Options struct {
	// UseActualCardinality selects observed rows × loops as Node.Cardinality
	// instead of the planner estimate.
	UseActualCardinality bool

	// Collector receives warnings and timing; may be nil.
	Collector *annotations.Collector
}

// DefaultOptions returns options that use observed cardinalities.
func DefaultOptions() Options {
	return Options{UseActualCardinality: true}
}

// converter holds the state of one Convert call
type converter struct {
	opts   Options
	nextID int
	onPath map[*source.Node]bool
}

// Convert builds the canonical tree for root. Ids are assigned in pre-order
// starting at 1.
func Convert(root *source.Node, opts Options) (*plan.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root", source.ErrMalformedPlan)
	}

	start := time.Now()
	c := &converter{opts: opts, onPath: make(map[*source.Node]bool)}
	n, err := c.convert(root, 0)
	if err != nil {
		return nil, err
	}

	opts.Collector.AddTiming(annotations.PlanConverted, start, map[string]interface{}{
		"operator.count": c.nextID,
	})
	return n, nil
}

// Inputs returns the source children that the converter treats as the
// canonical node's children, in slot order: left and right for binary kinds,
// the single input for unary kinds, none for leaves. A nil entry marks a
// missing child. A hash join's build side is unwrapped from its hash-build
// wrapper.
func Inputs(src *source.Node) []*source.Node {
	switch src.Kind {
	case source.KindScan, source.KindInlineTable:
		return nil
	case source.KindHashJoin:
		right := src.Child(1)
		if right != nil && right.Kind == source.KindHashBuild {
			right = right.Child(0)
		}
		return []*source.Node{src.Child(0), right}
	case source.KindNestedLoopJoin, source.KindMergeJoin, source.KindJoin,
		source.KindGroupJoin, source.KindMultiWayJoin, source.KindSetOperation:
		return []*source.Node{src.Child(0), src.Child(1)}
	default:
		return []*source.Node{src.Child(0)}
	}
}

func (c *converter) convert(src *source.Node, parent int) (*plan.Node, error) {
	if src == nil || src.Placeholder {
		return c.placeholder(parent), nil
	}
	if c.onPath[src] {
		return nil, fmt.Errorf("%w: %s node reached twice", ErrCyclicPlan, src.Type)
	}
	c.onPath[src] = true
	defer delete(c.onPath, src)

	c.nextID++
	n := &plan.Node{
		ID:                   c.nextID,
		Relation:             src.Relation,
		EstimatedCardinality: max(0, src.EstimatedRows),
		ObservedCardinality:  max(0, src.ObservedRows()),
		Width:                max(1, src.Width),
	}
	n.Cardinality = n.EstimatedCardinality
	if c.opts.UseActualCardinality {
		n.Cardinality = n.ObservedCardinality
	}

	switch src.Kind {
	case source.KindScan:
		n.Kind = plan.TableScan
	case source.KindInlineTable:
		n.Kind = plan.InlineTable
	case source.KindHashJoin:
		n.Kind, n.Join = plan.Join, plan.HashJoin
	case source.KindNestedLoopJoin:
		n.Kind, n.Join = plan.Join, plan.IndexNLJoin
	case source.KindMergeJoin:
		n.Kind, n.Join = plan.Join, plan.MergeJoin
	case source.KindJoin:
		n.Kind = plan.Join
	case source.KindGroupJoin:
		n.Kind = plan.GroupJoin
	case source.KindMultiWayJoin:
		n.Kind = plan.MultiWayJoin
	case source.KindSetOperation:
		n.Kind = plan.SetOperation
	case source.KindAggregate:
		n.Kind = plan.GroupBy
	case source.KindSort:
		n.Kind = plan.Sort
	case source.KindWindow:
		n.Kind = plan.Window
	case source.KindHashBuild, source.KindTemp:
		n.Kind = plan.Temp
	case source.KindMaterialize:
		n.Kind, n.Materialize = plan.Temp, true
	case source.KindPassThrough:
		n.Kind = plan.Select
	case source.KindMap:
		n.Kind = plan.Map
	case source.KindOutput:
		n.Kind = plan.Output
	default:
		n.Kind = plan.Select
		c.opts.Collector.AddPoint(annotations.OperatorUnrecognized, map[string]interface{}{
			"node.type":   src.Type,
			"operator.id": n.ID,
		})
	}

	inputs := Inputs(src)
	var err error
	switch {
	case n.Kind.Leaf():
	case n.Kind.Binary():
		if n.Left, err = c.convert(inputs[0], n.ID); err != nil {
			return nil, err
		}
		if n.Right, err = c.convert(inputs[1], n.ID); err != nil {
			return nil, err
		}
	default:
		if n.Input, err = c.convert(inputs[0], n.ID); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// placeholder returns a synthetic empty scan standing in for a missing child.
func (c *converter) placeholder(parent int) *plan.Node {
	c.nextID++
	c.opts.Collector.AddPoint(annotations.OperatorPlaceholder, map[string]interface{}{
		"parent.id":   parent,
		"operator.id": c.nextID,
	})
	return &plan.Node{
		ID:        c.nextID,
		Kind:      plan.TableScan,
		Synthetic: true,
		Width:     placeholderWidth,
	}
}
