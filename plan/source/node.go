// Package source parses dialect-specific plan documents into a closed set of
// tagged source nodes. Everything downstream pattern-matches on Kind instead
// of probing for optional keys.
package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrMalformedPlan is returned when a document cannot be read as a plan
	// tree at all.
	ErrMalformedPlan = errors.New("malformed plan")

	// ErrUnknownDialect is returned by Lookup for unregistered names.
	ErrUnknownDialect = errors.New("unknown plan dialect")
)

// Kind is the source concept a node represents, independent of dialect naming
type Kind uint8

const (
	KindUnknown Kind = iota
	KindScan
	KindInlineTable
	KindHashJoin
	KindNestedLoopJoin
	KindMergeJoin
	KindJoin
	KindGroupJoin
	KindMultiWayJoin
	KindAggregate
	KindSort
	KindWindow
	KindSetOperation
	KindHashBuild
	KindTemp
	KindMaterialize
	KindPassThrough
	KindMap
	KindOutput
)

// String returns the Kind name
func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindInlineTable:
		return "inline-table"
	case KindHashJoin:
		return "hash-join"
	case KindNestedLoopJoin:
		return "nested-loop-join"
	case KindMergeJoin:
		return "merge-join"
	case KindJoin:
		return "join"
	case KindGroupJoin:
		return "group-join"
	case KindMultiWayJoin:
		return "multi-way-join"
	case KindAggregate:
		return "aggregate"
	case KindSort:
		return "sort"
	case KindWindow:
		return "window"
	case KindSetOperation:
		return "set-operation"
	case KindHashBuild:
		return "hash-build"
	case KindTemp:
		return "temp"
	case KindMaterialize:
		return "materialize"
	case KindPassThrough:
		return "pass-through"
	case KindMap:
		return "map"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Timing is the observed execution window of a node, in the source's unit
type Timing struct {
	Start float64
	Stop  float64
}

// Node is one source operator.
type Node struct {
	Kind     Kind
	Type     string  // Raw discriminant as written by the source
	Children []*Node // In source order

	EstimatedRows float64
	ActualRows    float64 // Per loop
	Loops         float64
	Width         float64
	Relation      string
	Timing        *Timing // Nil when the source carries no execution statistics
	Placeholder   bool    // Stand-in leaf recorded by an earlier conversion
}

// ObservedRows returns rows × loops.
func (n *Node) ObservedRows() float64 {
	return n.ActualRows * n.Loops
}

// Child returns the i-th child, or nil if there is none.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Plan is a parsed source document
type Plan struct {
	Dialect       string
	Root          *Node
	ExecutionTime float64 // Total execution time if reported, 0 otherwise
	HasExecution  bool

	// ActualCardinality is set when the document itself records which row
	// counts were selected as cardinality, overriding the caller's choice.
	ActualCardinality *bool
}

// Dialect parses raw plan documents of one engine.
type Dialect interface {
	Name() string
	Parse(data []byte) (*Plan, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Dialect{}
)

// Register makes a dialect available to Lookup. Registering a name twice
// replaces the earlier dialect.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Name()] = d
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDialect, name, strings.Join(namesLocked(), ", "))
	}
	return d, nil
}

// Names lists the registered dialects in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Postgres{})
	Register(Canonical{})
}
