package source

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Defaults PostgreSQL omits or that must be clamped
const (
	pgDefaultPlanRows = 1
	pgDefaultLoops    = 1
	pgDefaultWidth    = 8
)

// pgNode mirrors the fields of EXPLAIN (ANALYZE, FORMAT JSON) that matter here.
type pgNode struct {
	NodeType          string    `json:"Node Type"`
	RelationName      string    `json:"Relation Name"`
	PlanRows          *float64  `json:"Plan Rows"`
	PlanWidth         *float64  `json:"Plan Width"`
	ActualRows        *float64  `json:"Actual Rows"`
	ActualLoops       *float64  `json:"Actual Loops"`
	ActualStartupTime *float64  `json:"Actual Startup Time"`
	ActualTotalTime   *float64  `json:"Actual Total Time"`
	Plans             []*pgNode `json:"Plans"`
}

type pgDocument struct {
	Plan          *pgNode  `json:"Plan"`
	ExecutionTime *float64 `json:"Execution Time"`
}

var pgKinds = map[string]Kind{
	"Seq Scan":         KindScan,
	"Index Scan":       KindScan,
	"Index Only Scan":  KindScan,
	"Bitmap Heap Scan": KindScan,
	"Tid Scan":         KindScan,
	"Function Scan":    KindScan,
	"CTE Scan":         KindScan,
	"WorkTable Scan":   KindScan,
	"Values Scan":      KindInlineTable,
	"Hash Join":        KindHashJoin,
	"Nested Loop":      KindNestedLoopJoin,
	"Merge Join":       KindMergeJoin,
	"Aggregate":        KindAggregate,
	"Group":            KindAggregate,
	"WindowAgg":        KindWindow,
	"Sort":             KindSort,
	"Incremental Sort": KindSort,
	"Hash":             KindHashBuild,
	"Materialize":      KindMaterialize,
	"Gather":           KindPassThrough,
	"Gather Merge":     KindPassThrough,
	"Memoize":          KindPassThrough,
	"Result Cache":     KindPassThrough,
	"Limit":            KindPassThrough,
	"Unique":           KindPassThrough,
}

// Postgres reads PostgreSQL EXPLAIN (ANALYZE, FORMAT JSON) output. The
// document may be the list EXPLAIN prints, a single object with a "Plan"
// key, or a bare plan node.
type Postgres struct{}

// Name implements Dialect
func (Postgres) Name() string { return "postgres" }

// Parse implements Dialect
func (Postgres) Parse(data []byte) (*Plan, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedPlan)
	}

	if data[0] == '[' {
		var list []jsoniter.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: empty EXPLAIN list", ErrMalformedPlan)
		}
		data = list[0]
	}

	var doc pgDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	if doc.Plan == nil {
		// Bare plan node
		var root pgNode
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
		}
		doc.Plan = &root
	}
	if doc.Plan.NodeType == "" {
		return nil, fmt.Errorf("%w: root has no \"Node Type\"", ErrMalformedPlan)
	}

	p := &Plan{Dialect: "postgres", Root: fromPostgres(doc.Plan)}
	if doc.ExecutionTime != nil {
		p.ExecutionTime = *doc.ExecutionTime
		p.HasExecution = true
	}
	return p, nil
}

// fromPostgres converts a raw node. Nodes without a type become nil so the
// converter substitutes a placeholder for them.
func fromPostgres(pg *pgNode) *Node {
	if pg == nil || pg.NodeType == "" {
		return nil
	}

	n := &Node{
		Kind:          pgKinds[pg.NodeType],
		Type:          pg.NodeType,
		EstimatedRows: floatOr(pg.PlanRows, pgDefaultPlanRows),
		ActualRows:    floatOr(pg.ActualRows, 0),
		Loops:         floatOr(pg.ActualLoops, pgDefaultLoops),
		Width:         max(1, floatOr(pg.PlanWidth, pgDefaultWidth)),
		Relation:      pg.RelationName,
	}
	if pg.ActualStartupTime != nil {
		n.Timing = &Timing{
			Start: *pg.ActualStartupTime,
			Stop:  floatOr(pg.ActualTotalTime, 0),
		}
	}
	for _, child := range pg.Plans {
		n.Children = append(n.Children, fromPostgres(child))
	}
	return n
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
