package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/batch"
	"github.com/wbrown/plancanon/plan/canon"
)

const hashJoin = `{"Plan": {"Node Type": "Hash Join", "Actual Startup Time": 1, "Actual Total Time": 4.5,
  "Actual Rows": 1200, "Actual Loops": 1,
  "Plans": [
    {"Node Type": "Seq Scan", "Relation Name": "orders", "Actual Startup Time": 0.25, "Actual Total Time": 3,
     "Actual Rows": 1200, "Actual Loops": 1},
    {"Node Type": "Hash", "Plans": [{"Node Type": "Seq Scan", "Relation Name": "nation"}]}
  ]}}`

func canonical(t *testing.T) *plan.Plan {
	t.Helper()
	p, err := canon.Canonicalize([]byte(hashJoin), canon.DefaultOptions(), nil)
	require.NoError(t, err)
	return p
}

func TestPipelines(t *testing.T) {
	out := Pipelines(canonical(t))

	assert.Contains(t, out, "pipeline")
	assert.Contains(t, out, "duration")
	assert.Contains(t, out, "tablescan#2:scan")
	assert.Contains(t, out, "join(hashjoin)#1:probe")
	assert.Contains(t, out, "tablescan#3:scan")
	assert.Contains(t, out, "4.25")
	assert.Contains(t, out, "_2 pipelines, 3 operators_")

	assert.Equal(t, "_No pipelines_", Pipelines(nil))
}

func TestOperators(t *testing.T) {
	out := Operators(canonical(t))

	assert.Contains(t, out, "cardinality")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "nation")
	assert.Contains(t, out, "probe")

	assert.Equal(t, "_Empty plan_", Operators(nil))
}

func TestSummary(t *testing.T) {
	results := []batch.Result{
		{Name: "1a.json", Plan: canonical(t), Cached: true, Elapsed: 1500 * time.Microsecond},
		{Name: "1b.json", Err: errors.New("boom")},
	}
	out := Summary(results)

	assert.Contains(t, out, "1a.json")
	assert.Contains(t, out, "1.5ms")
	assert.Contains(t, out, "yes")
	assert.Contains(t, out, "failed: boom")
	assert.Contains(t, out, "_2 plans, 1 failed_")

	assert.Equal(t, "_No plans_", Summary(nil))
	assert.Contains(t, Summary(results[:1]), "_1 plan, 0 failed_")
}
