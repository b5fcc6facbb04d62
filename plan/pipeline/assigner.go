// Package pipeline partitions a canonical plan into pipelines and classifies
// the stage of every operator inside them.
//
// Rules, applied while walking down from the root:
//
//   - A hash or index nested loop join stays with its probe (left) subtree;
//     its build (right) subtree starts a fresh pipeline.
//   - A breaker (sort, group by, materializing temp) leaves its input in the
//     incoming pipeline and opens a new one for itself.
//   - Other unary operators share their input's pipeline.
//   - Leaves and other multi-child operators take the incoming pipeline, and
//     their children are still visited.
//
// The root pipeline is 0 and new pipelines are numbered in discovery order,
// so ids are contiguous. Members are listed in execution order: a post-order
// walk puts every producer before its consumer.
package pipeline

import (
	"time"

	"github.com/tidwall/btree"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/stage"
)

// Result is the partition of one plan
type Result struct {
	ByNode    map[int]int     // Node id → pipeline id
	Pipelines []plan.Pipeline // Ordered by id
}

type group struct {
	pipeline plan.Pipeline
	ops      []*plan.Node
}

type assigner struct {
	counter int
	byNode  map[int]int
	groups  btree.Map[int, *group]
	parents map[int]*plan.Node
}

// Assign partitions the tree rooted at root, classifies every pipeline with
// c, and records Pipeline and Stage on each node.
func Assign(root *plan.Node, c *stage.Classifier, collector *annotations.Collector) Result {
	if root == nil {
		return Result{ByNode: map[int]int{}}
	}
	if c == nil {
		c = stage.Default()
	}

	start := time.Now()
	a := &assigner{
		byNode:  make(map[int]int),
		parents: make(map[int]*plan.Node),
	}
	a.assign(root, 0)

	parent := func(id int) (*plan.Node, bool) {
		p, ok := a.parents[id]
		return p, ok
	}

	result := Result{
		ByNode:    a.byNode,
		Pipelines: make([]plan.Pipeline, 0, a.groups.Len()),
	}
	a.groups.Scan(func(_ int, g *group) bool {
		for i, d := range c.Pipeline(g.ops, parent) {
			n := g.ops[i]
			n.Stage = d.Stage
			if d.Fallback {
				collector.AddPoint(annotations.StageFallback, map[string]interface{}{
					"operator.id": n.ID,
					"operator":    n.Label(),
					"stage":       d.Stage.String(),
					"pipeline.id": g.pipeline.ID,
				})
			}
		}
		result.Pipelines = append(result.Pipelines, g.pipeline)
		return true
	})

	collector.AddTiming(annotations.PipelinesAssigned, start, map[string]interface{}{
		"pipeline.count": len(result.Pipelines),
		"classifier":     c.Name(),
	})
	return result
}

// assign places the subtree rooted at n, starting in pipeline pid, and
// returns the pipeline n itself ended up in.
func (a *assigner) assign(n *plan.Node, pid int) int {
	for _, c := range n.Children() {
		a.parents[c.ID] = n
	}

	switch {
	case n.SplitsPipeline():
		own := pid
		if n.Left != nil {
			own = a.assign(n.Left, pid)
		}
		if n.Right != nil {
			a.counter++
			a.assign(n.Right, a.counter)
		}
		if n.Input != nil {
			a.assign(n.Input, own)
		}
		a.add(n, own)
		return own

	case n.IsBreaker():
		for _, c := range n.Children() {
			a.assign(c, pid)
		}
		a.counter++
		a.add(n, a.counter)
		return a.counter

	case n.Input != nil && n.Left == nil && n.Right == nil:
		own := a.assign(n.Input, pid)
		a.add(n, own)
		return own

	default:
		for _, c := range n.Children() {
			a.assign(c, pid)
		}
		a.add(n, pid)
		return pid
	}
}

func (a *assigner) add(n *plan.Node, pid int) {
	n.Pipeline = pid
	a.byNode[n.ID] = pid

	g, ok := a.groups.Get(pid)
	if !ok {
		g = &group{pipeline: plan.Pipeline{ID: pid}}
		a.groups.Set(pid, g)
	}
	g.pipeline.Operators = append(g.pipeline.Operators, n.ID)
	g.ops = append(g.ops, n)
}
