// Package plan defines the canonical physical plan representation shared by
// every dialect: operator nodes, the pipelines they are partitioned into, and
// the execution stage each operator plays inside its pipeline.
package plan

import "fmt"

// Kind is the canonical operator kind of a node
type Kind uint8

const (
	TableScan Kind = iota
	InlineTable
	Join
	GroupJoin
	MultiWayJoin
	GroupBy
	Sort
	Window
	SetOperation
	Temp
	Select
	Map
	Output
)

var kindNames = [...]string{
	TableScan:    "tablescan",
	InlineTable:  "inlinetable",
	Join:         "join",
	GroupJoin:    "groupjoin",
	MultiWayJoin: "multiwayjoin",
	GroupBy:      "groupby",
	Sort:         "sort",
	Window:       "window",
	SetOperation: "setoperation",
	Temp:         "temp",
	Select:       "select",
	Map:          "map",
	Output:       "output",
}

// String returns the operator name used in the canonical JSON encoding
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// Binary reports whether nodes of this kind use the Left/Right slots.
func (k Kind) Binary() bool {
	switch k {
	case Join, GroupJoin, MultiWayJoin, SetOperation:
		return true
	}
	return false
}

// Leaf reports whether nodes of this kind have no children.
func (k Kind) Leaf() bool {
	return k == TableScan || k == InlineTable
}

// JoinVariant refines Kind Join with its physical algorithm
type JoinVariant uint8

const (
	GenericJoin JoinVariant = iota
	HashJoin
	IndexNLJoin
	MergeJoin
)

// String returns the physicalOperator name, empty for a generic join
func (v JoinVariant) String() string {
	switch v {
	case HashJoin:
		return "hashjoin"
	case IndexNLJoin:
		return "indexnljoin"
	case MergeJoin:
		return "mergejoin"
	default:
		return ""
	}
}

// ParseJoinVariant maps a physicalOperator name back to its variant.
// Unknown names are generic joins.
func ParseJoinVariant(s string) JoinVariant {
	switch s {
	case "hashjoin":
		return HashJoin
	case "indexnljoin":
		return IndexNLJoin
	case "mergejoin":
		return MergeJoin
	default:
		return GenericJoin
	}
}

// Stage is the structural role of an operator inside its pipeline
type Stage uint8

const (
	Scan Stage = iota
	Build
	Probe
	PassThrough
)

// String returns the lower-case stage name
func (s Stage) String() string {
	switch s {
	case Scan:
		return "scan"
	case Build:
		return "build"
	case Probe:
		return "probe"
	case PassThrough:
		return "passthrough"
	default:
		return fmt.Sprintf("stage(%d)", s)
	}
}

// ParseStage is the inverse of Stage.String
func ParseStage(s string) (Stage, bool) {
	switch s {
	case "scan":
		return Scan, true
	case "build":
		return Build, true
	case "probe":
		return Probe, true
	case "passthrough":
		return PassThrough, true
	}
	return 0, false
}

// Node is one canonical operator. Children are owned by exactly one parent.
type Node struct {
	ID          int         // Pre-order id starting at 1, also the observed id
	Kind        Kind        // Canonical operator kind
	Join        JoinVariant // Physical algorithm, only meaningful for Kind Join
	Materialize bool        // Temp that is an explicit materialization point
	Synthetic   bool        // Placeholder leaf substituted for a missing child
	Relation    string      // Scanned relation, if any

	EstimatedCardinality float64 // Planner row estimate
	ObservedCardinality  float64 // rows × loops, 0 without execution statistics
	Cardinality          float64 // Estimated or observed, as selected at conversion
	Width                float64 // Estimated tuple width in bytes, at least 1

	Left  *Node // Probe side of a join (binary operators)
	Right *Node // Build side of a join (binary operators)
	Input *Node // Single input of unary operators

	Pipeline int   // Pipeline the node was assigned to
	Stage    Stage // Stage within that pipeline

	Start float64 // Observed start, valid when Timed
	Stop  float64 // Observed stop, valid when Timed
	Timed bool
}

// Op is the operator type the stage classifier dispatches on. It refines
// Kind Join by its variant.
type Op uint8

const (
	OpTableScan Op = iota
	OpInlineTable
	OpHashJoin
	OpIndexNLJoin
	OpMergeJoin
	OpJoin
	OpGroupJoin
	OpMultiWayJoin
	OpGroupBy
	OpSort
	OpWindow
	OpSetOperation
	OpTemp
	OpSelect
	OpMap
	OpOutput
)

// Op returns the classifier operator type of the node
func (n *Node) Op() Op {
	switch n.Kind {
	case TableScan:
		return OpTableScan
	case InlineTable:
		return OpInlineTable
	case Join:
		switch n.Join {
		case HashJoin:
			return OpHashJoin
		case IndexNLJoin:
			return OpIndexNLJoin
		case MergeJoin:
			return OpMergeJoin
		}
		return OpJoin
	case GroupJoin:
		return OpGroupJoin
	case MultiWayJoin:
		return OpMultiWayJoin
	case GroupBy:
		return OpGroupBy
	case Sort:
		return OpSort
	case Window:
		return OpWindow
	case SetOperation:
		return OpSetOperation
	case Temp:
		return OpTemp
	case Map:
		return OpMap
	case Output:
		return OpOutput
	}
	return OpSelect
}

// SplitsPipeline reports whether the node is a join whose build side
// materializes into a pipeline of its own.
func (n *Node) SplitsPipeline() bool {
	return n.Kind == Join && (n.Join == HashJoin || n.Join == IndexNLJoin)
}

// IsBreaker reports whether the node fully materializes its input before
// producing output.
func (n *Node) IsBreaker() bool {
	switch n.Kind {
	case Sort, GroupBy:
		return true
	case Temp:
		return n.Materialize
	}
	return false
}

// Children returns the non-nil children in traversal order: left, right, input.
func (n *Node) Children() []*Node {
	children := make([]*Node, 0, 2)
	for _, c := range [...]*Node{n.Left, n.Right, n.Input} {
		if c != nil {
			children = append(children, c)
		}
	}
	return children
}

// Walk visits the subtree rooted at n in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Label returns a short description such as "join(hashjoin)#3".
func (n *Node) Label() string {
	name := n.Kind.String()
	switch {
	case n.Kind == Join && n.Join != GenericJoin:
		name += "(" + n.Join.String() + ")"
	case n.Kind == Temp && n.Materialize:
		name += "(materialize)"
	}
	return fmt.Sprintf("%s#%d", name, n.ID)
}
