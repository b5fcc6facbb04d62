package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/canon"
	"github.com/wbrown/plancanon/plan/source"
	"github.com/wbrown/plancanon/plan/store"
)

const sortPlan = `[{"Plan": {"Node Type": "Sort", "Plan Rows": 10,
  "Actual Startup Time": 1.0, "Actual Total Time": 2.0, "Actual Rows": 10, "Actual Loops": 1,
  "Plans": [{"Node Type": "Seq Scan", "Relation Name": "part", "Plan Rows": 10,
    "Actual Startup Time": 0.1, "Actual Total Time": 0.9, "Actual Rows": 10, "Actual Loops": 1}]},
  "Execution Time": 2.5}]`

func writePlans(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestRunKeepsGoingPastFailures(t *testing.T) {
	dir := writePlans(t, map[string]string{
		"1a.json": sortPlan,
		"1b.json": `{"Plan": {"Plan Rows": 3}}`,
		"1c.json": sortPlan,
	})
	paths := []string{
		filepath.Join(dir, "1a.json"),
		filepath.Join(dir, "1b.json"),
		filepath.Join(dir, "missing.json"),
		filepath.Join(dir, "1c.json"),
	}

	collector := annotations.NewCollector(nil)
	runner := NewRunner(canon.DefaultOptions(), nil, collector)
	results := runner.Run(context.Background(), paths)

	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, paths[i], res.Name)
	}

	assert.True(t, results[0].OK())
	assert.Len(t, results[0].Plan.Pipelines, 2)
	assert.NotEmpty(t, results[0].Output)
	assert.False(t, results[0].Cached)

	assert.True(t, errors.Is(results[1].Err, source.ErrMalformedPlan))
	assert.Nil(t, results[1].Plan)
	assert.Contains(t, results[1].Err.Error(), "1b.json")

	assert.True(t, errors.Is(results[2].Err, os.ErrNotExist))

	assert.True(t, results[3].OK())
	assert.Same(t, results[0].Plan, results[3].Plan, "identical documents are canonicalized once")

	assert.Len(t, collector.Named(annotations.BatchPlanCompleted), 4)
	summary := collector.Named(annotations.BatchCompleted)
	require.Len(t, summary, 1)
	assert.Equal(t, 4, summary[0].Data["plan.count"])
	assert.Equal(t, 2, summary[0].Data["failure.count"])
}

func TestRunUsesPersistentCache(t *testing.T) {
	dir := writePlans(t, map[string]string{"q.json": sortPlan})
	paths := []string{filepath.Join(dir, "q.json")}

	cache, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	first := NewRunner(canon.DefaultOptions(), cache, nil).Run(context.Background(), paths)
	require.True(t, first[0].OK())
	assert.False(t, first[0].Cached)

	collector := annotations.NewCollector(nil)
	second := NewRunner(canon.DefaultOptions(), cache, collector).Run(context.Background(), paths)
	require.True(t, second[0].OK())
	assert.True(t, second[0].Cached)
	assert.Equal(t, string(first[0].Output), string(second[0].Output))
	assert.Equal(t, first[0].Plan.Stages(), second[0].Plan.Stages())
	assert.Len(t, collector.Named(annotations.CacheHit), 1)

	// A different cardinality selection is a different entry.
	opts := canon.DefaultOptions()
	opts.UseActualCardinality = false
	third := NewRunner(opts, cache, nil).Run(context.Background(), paths)
	assert.False(t, third[0].Cached)

	count, err := cache.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunRecomputesUnreadableCacheEntry(t *testing.T) {
	cache, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	opts := canon.DefaultOptions()
	require.NoError(t, cache.Put(store.Key(opts.Dialect, opts.UseActualCardinality, []byte(sortPlan)), []byte("garbage")))

	res := NewRunner(opts, cache, nil).Process(context.Background(), "q", []byte(sortPlan))
	require.True(t, res.OK())
	assert.False(t, res.Cached)

	stored, err := cache.Get(store.Key(opts.Dialect, opts.UseActualCardinality, []byte(sortPlan)))
	require.NoError(t, err)
	assert.Equal(t, string(res.Output), string(stored))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewRunner(canon.DefaultOptions(), nil, nil).Run(ctx, []string{"a.json", "b.json"})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, errors.Is(res.Err, context.Canceled))
	}
}

func TestProcessUnknownDialect(t *testing.T) {
	opts := canon.DefaultOptions()
	opts.Dialect = "oracle"
	res := NewRunner(opts, nil, nil).Process(context.Background(), "q", []byte(sortPlan))
	assert.True(t, errors.Is(res.Err, source.ErrUnknownDialect))
}

func TestCollect(t *testing.T) {
	dir := writePlans(t, map[string]string{
		"b.json":    "{}",
		"a.json":    "{}",
		"notes.txt": "",
	})
	single := filepath.Join(dir, "notes.txt")

	files, err := Collect([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json"), single}, files)

	_, err = Collect([]string{filepath.Join(dir, "nope")})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
