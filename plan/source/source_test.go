package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hashJoinExplain = `[
  {
    "Plan": {
      "Node Type": "Hash Join",
      "Plan Rows": 120,
      "Plan Width": 16,
      "Actual Startup Time": 0.5,
      "Actual Total Time": 9.25,
      "Actual Rows": 40,
      "Actual Loops": 2,
      "Plans": [
        {"Node Type": "Seq Scan", "Relation Name": "orders", "Plan Rows": 1000, "Plan Width": 12,
         "Actual Startup Time": 0.01, "Actual Total Time": 4.0, "Actual Rows": 1000, "Actual Loops": 1},
        {"Node Type": "Hash", "Plan Rows": 10, "Plan Width": 4,
         "Actual Startup Time": 1.0, "Actual Total Time": 1.1, "Actual Rows": 10, "Actual Loops": 1,
         "Plans": [
           {"Node Type": "Index Scan", "Relation Name": "customer", "Plan Rows": 10, "Plan Width": 4,
            "Actual Startup Time": 0.2, "Actual Total Time": 0.9, "Actual Rows": 10, "Actual Loops": 1}
         ]}
      ]
    },
    "Planning Time": 0.3,
    "Execution Time": 10.5
  }
]`

func TestPostgresParseList(t *testing.T) {
	p, err := Postgres{}.Parse([]byte(hashJoinExplain))
	require.NoError(t, err)

	assert.Equal(t, "postgres", p.Dialect)
	assert.True(t, p.HasExecution)
	assert.Equal(t, 10.5, p.ExecutionTime)

	root := p.Root
	require.NotNil(t, root)
	assert.Equal(t, KindHashJoin, root.Kind)
	assert.Equal(t, "Hash Join", root.Type)
	assert.Equal(t, 120.0, root.EstimatedRows)
	assert.Equal(t, 80.0, root.ObservedRows())
	assert.Equal(t, 16.0, root.Width)
	require.NotNil(t, root.Timing)
	assert.Equal(t, Timing{Start: 0.5, Stop: 9.25}, *root.Timing)

	require.Len(t, root.Children, 2)
	assert.Equal(t, KindScan, root.Child(0).Kind)
	assert.Equal(t, "orders", root.Child(0).Relation)
	assert.Equal(t, KindHashBuild, root.Child(1).Kind)
	assert.Equal(t, KindScan, root.Child(1).Child(0).Kind)
	assert.Nil(t, root.Child(2))
}

func TestPostgresParseForms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind Kind
	}{
		{"object with plan", `{"Plan": {"Node Type": "Sort", "Plans": [{"Node Type": "Seq Scan"}]}}`, KindSort},
		{"bare node", `{"Node Type": "Aggregate", "Plans": [{"Node Type": "Seq Scan"}]}`, KindAggregate},
		{"unrecognized", `{"Node Type": "Append"}`, KindUnknown},
		{"materialize", `{"Node Type": "Materialize"}`, KindMaterialize},
		{"gather", `{"Node Type": "Gather"}`, KindPassThrough},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Postgres{}.Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Root.Kind)
			assert.False(t, p.HasExecution)
		})
	}
}

func TestPostgresDefaults(t *testing.T) {
	p, err := Postgres{}.Parse([]byte(`{"Node Type": "Seq Scan", "Plan Width": 0}`))
	require.NoError(t, err)

	n := p.Root
	assert.Equal(t, 1.0, n.EstimatedRows)
	assert.Equal(t, 0.0, n.ActualRows)
	assert.Equal(t, 1.0, n.Loops)
	assert.Equal(t, 1.0, n.Width, "width is clamped to at least one byte")
	assert.Nil(t, n.Timing)

	p, err = Postgres{}.Parse([]byte(`{"Node Type": "Seq Scan"}`))
	require.NoError(t, err)
	assert.Equal(t, 8.0, p.Root.Width)
}

func TestPostgresTypelessChildIsNil(t *testing.T) {
	p, err := Postgres{}.Parse([]byte(`{"Node Type": "Hash Join", "Plans": [{"Node Type": "Seq Scan"}, {}]}`))
	require.NoError(t, err)
	require.Len(t, p.Root.Children, 2)
	assert.NotNil(t, p.Root.Child(0))
	assert.Nil(t, p.Root.Child(1))
}

func TestPostgresMalformed(t *testing.T) {
	for _, doc := range []string{
		``,
		`   `,
		`[]`,
		`{"Plan": {"Plan Rows": 4}}`,
		`{"Plans": []}`,
		`not json`,
		`[{"Plan": `,
	} {
		_, err := Postgres{}.Parse([]byte(doc))
		assert.True(t, errors.Is(err, ErrMalformedPlan), "document %q: %v", doc, err)
	}
}

func TestCanonicalParse(t *testing.T) {
	doc := `{
  "dialect": "postgres",
  "executionTime": 3.5,
  "plan": {
    "operator": "join", "physicalOperator": "hashjoin", "operatorId": 1, "analyzePlanId": 1,
    "cardinality": 40, "estimatedCardinality": 120, "analyzePlanCardinality": 40,
    "producedIUs": [{"estimatedSize": 16}], "pipeline": 0, "stage": "probe",
    "start": 0.5, "stop": 9.25,
    "left": {"operator": "tablescan", "operatorId": 2, "analyzePlanId": 2, "cardinality": 1000,
             "analyzePlanCardinality": 1000, "producedIUs": [], "tablename": "orders", "pipeline": 0},
    "right": {"operator": "tablescan", "operatorId": 3, "analyzePlanId": 3, "cardinality": 0,
              "analyzePlanCardinality": 0, "producedIUs": [{"estimatedSize": 8}], "synthetic": true, "pipeline": 1}
  },
  "analyzePlanPipelines": []
}`
	p, err := Canonical{}.Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "postgres", p.Dialect, "the originating dialect is kept")
	assert.Nil(t, p.ActualCardinality)
	assert.True(t, p.HasExecution)
	assert.Equal(t, 3.5, p.ExecutionTime)

	root := p.Root
	assert.Equal(t, KindHashJoin, root.Kind)
	assert.Equal(t, 120.0, root.EstimatedRows)
	assert.Equal(t, 40.0, root.ObservedRows())
	assert.Equal(t, 16.0, root.Width)
	assert.Equal(t, &Timing{Start: 0.5, Stop: 9.25}, root.Timing)

	require.Len(t, root.Children, 2)
	left, right := root.Child(0), root.Child(1)
	assert.Equal(t, KindScan, left.Kind)
	assert.Equal(t, "orders", left.Relation)
	assert.Equal(t, 1000.0, left.EstimatedRows)
	assert.Equal(t, 8.0, left.Width)
	assert.Nil(t, left.Timing)
	assert.True(t, right.Placeholder)
}

func TestCanonicalChildSlots(t *testing.T) {
	p, err := Canonical{}.Parse([]byte(`{"plan": {"operator": "temp", "materialize": true,
		"input": {"operator": "groupby", "input": {"operator": "inlinetable"}}}}`))
	require.NoError(t, err)

	assert.Equal(t, "canonical", p.Dialect)
	assert.Equal(t, KindMaterialize, p.Root.Kind)
	require.Len(t, p.Root.Children, 1)
	assert.Equal(t, KindAggregate, p.Root.Child(0).Kind)
	assert.Equal(t, KindInlineTable, p.Root.Child(0).Child(0).Kind)
	assert.Empty(t, p.Root.Child(0).Child(0).Children)
}

func TestCanonicalMalformed(t *testing.T) {
	for _, doc := range []string{``, `{}`, `{"plan": {}}`, `[1, 2]`} {
		_, err := Canonical{}.Parse([]byte(doc))
		assert.True(t, errors.Is(err, ErrMalformedPlan), "document %q: %v", doc, err)
	}
}

func TestLookup(t *testing.T) {
	d, err := Lookup("Postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Lookup("oracle")
	assert.True(t, errors.Is(err, ErrUnknownDialect))
	assert.Contains(t, err.Error(), "canonical, postgres")

	assert.Equal(t, []string{"canonical", "postgres"}, Names())
}
