package plan

import (
	"fmt"
	"strings"
)

// Pipeline is a set of operators that execute as one streaming unit between
// materialization points.
type Pipeline struct {
	ID        int     // Unique, in discovery order
	Operators []int   // Member node ids, scan end first
	Start     float64 // Earliest observed start of any timed member
	Stop      float64 // Latest observed stop of any timed member
	Duration  float64 // max(0, Stop - Start)
	Timed     bool    // At least one member carried timing information
}

// SetSpan records aggregated timing and derives the duration.
func (p *Pipeline) SetSpan(start, stop float64) {
	p.Start = start
	p.Stop = stop
	p.Duration = max(0, stop-start)
	p.Timed = true
}

// Plan is the result of canonicalizing one source plan. It is not modified
// after construction.
type Plan struct {
	Root          *Node
	Pipelines     []Pipeline
	Dialect       string  // Source dialect the plan was converted from
	ExecutionTime float64 // Total execution time reported by the source, 0 if unknown

	// ActualCardinality records whether Node.Cardinality holds observed
	// rather than estimated row counts.
	ActualCardinality bool

	nodes   map[int]*Node
	parents map[int]int
}

// New indexes the tree rooted at root.
func New(root *Node, pipelines []Pipeline, dialect string) *Plan {
	p := &Plan{
		Root:      root,
		Pipelines: pipelines,
		Dialect:   dialect,
		nodes:     make(map[int]*Node),
		parents:   make(map[int]int),
	}
	root.Walk(func(n *Node) bool {
		p.nodes[n.ID] = n
		for _, c := range n.Children() {
			p.parents[c.ID] = n.ID
		}
		return true
	})
	return p
}

// Node returns the node with the given id
func (p *Plan) Node(id int) (*Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Parent returns the parent of the node with the given id; the root has none.
func (p *Plan) Parent(id int) (*Node, bool) {
	pid, ok := p.parents[id]
	if !ok {
		return nil, false
	}
	return p.nodes[pid], true
}

// Len returns the number of nodes in the plan
func (p *Plan) Len() int {
	return len(p.nodes)
}

// Stages returns the id → stage map
func (p *Plan) Stages() map[int]Stage {
	stages := make(map[int]Stage, len(p.nodes))
	for id, n := range p.nodes {
		stages[id] = n.Stage
	}
	return stages
}

// Pipeline returns the pipeline with the given id
func (p *Plan) Pipeline(id int) (*Pipeline, bool) {
	for i := range p.Pipelines {
		if p.Pipelines[i].ID == id {
			return &p.Pipelines[i], true
		}
	}
	return nil, false
}

// String renders the tree with one operator per line.
func (p *Plan) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Plan (%s): %d operators, %d pipelines\n", p.Dialect, len(p.nodes), len(p.Pipelines)))
	writeNode(&sb, p.Root, "", "")
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, slot, indent string) {
	if n == nil {
		return
	}
	sb.WriteString(indent)
	if slot != "" {
		sb.WriteString(slot + ": ")
	}
	sb.WriteString(fmt.Sprintf("%s [pipeline %d, %s] card=%g width=%g", n.Label(), n.Pipeline, n.Stage, n.Cardinality, n.Width))
	if n.Relation != "" {
		sb.WriteString(" rel=" + n.Relation)
	}
	if n.Synthetic {
		sb.WriteString(" (placeholder)")
	}
	sb.WriteString("\n")

	indent += "  "
	writeNode(sb, n.Left, "left", indent)
	writeNode(sb, n.Right, "right", indent)
	writeNode(sb, n.Input, "", indent)
}
