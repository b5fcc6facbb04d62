// Package batch canonicalizes many plan documents in parallel. Each document
// succeeds or fails on its own; one malformed plan never aborts the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/wbrown/plancanon/plan"
	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/canon"
	"github.com/wbrown/plancanon/plan/store"
)

// Result is the outcome for one plan document
type Result struct {
	Name    string        // Path or caller-supplied name
	Plan    *plan.Plan    // Nil on failure
	Output  []byte        // Canonical JSON, nil on failure
	Cached  bool          // Served from the persistent cache
	Err     error         // Why the plan failed
	Elapsed time.Duration // Time spent on this plan
}

// OK reports whether the plan was canonicalized
func (r Result) OK() bool { return r.Err == nil }

// memoEntry holds the canonical form of one distinct input within a run.
type memoEntry struct {
	once   sync.Once
	plan   *plan.Plan
	output []byte
	cached bool
	err    error
}

// Runner canonicalizes documents with fixed options. Identical documents
// within a run are canonicalized once. A Runner is safe for concurrent use.
type Runner struct {
	opts      canon.Options
	cache     *store.Store // Optional
	collector *annotations.Collector
	pool      *WorkerPool
	memo      *xsync.MapOf[string, *memoEntry]
}

// NewRunner creates a runner. cache and collector may be nil.
func NewRunner(opts canon.Options, cache *store.Store, collector *annotations.Collector) *Runner {
	return &Runner{
		opts:      opts,
		cache:     cache,
		collector: collector,
		pool:      NewWorkerPool(opts.Workers),
		memo:      xsync.NewMapOf[string, *memoEntry](),
	}
}

// Run canonicalizes the files at paths. Results are in input order.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	start := time.Now()
	results := make([]Result, len(paths))

	r.pool.Execute(ctx, len(paths),
		func(ctx context.Context, i int) {
			results[i] = r.processFile(ctx, paths[i])
		},
		func(i int, err error) {
			results[i] = Result{Name: paths[i], Err: err}
		})

	failures := 0
	for _, res := range results {
		if !res.OK() {
			failures++
		}
	}
	r.collector.AddTiming(annotations.BatchCompleted, start, map[string]interface{}{
		"plan.count":    len(results),
		"failure.count": failures,
	})
	return results
}

func (r *Runner) processFile(ctx context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		res := Result{Name: path, Err: fmt.Errorf("failed to read plan: %w", err)}
		r.report(res)
		return res
	}
	return r.Process(ctx, path, data)
}

// Process canonicalizes one document already in memory.
func (r *Runner) Process(ctx context.Context, name string, data []byte) Result {
	start := time.Now()
	res := Result{Name: name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		r.report(res)
		return res
	}

	key := store.Key(r.opts.Dialect, r.opts.UseActualCardinality, data)
	entry, _ := r.memo.LoadOrCompute(string(key), func() *memoEntry {
		return &memoEntry{}
	})
	entry.once.Do(func() {
		entry.plan, entry.output, entry.cached, entry.err = r.canonicalize(key, name, data)
	})

	res.Plan, res.Output, res.Cached, res.Err = entry.plan, entry.output, entry.cached, entry.err
	if res.Err != nil {
		res.Plan, res.Output = nil, nil
		res.Err = fmt.Errorf("%s: %w", name, res.Err)
	}
	res.Elapsed = time.Since(start)
	r.report(res)
	return res
}

// canonicalize consults the persistent cache before doing the work, and
// fills it afterwards.
func (r *Runner) canonicalize(key []byte, name string, data []byte) (*plan.Plan, []byte, bool, error) {
	if r.cache != nil {
		output, err := r.cache.Get(key)
		switch {
		case err == nil:
			p, err := canon.Decode(output)
			if err == nil {
				r.collector.AddPoint(annotations.CacheHit, map[string]interface{}{"plan": name})
				return p, output, true, nil
			}
			// Unreadable entry, recompute and overwrite it
		case !errors.Is(err, store.ErrNotFound):
			return nil, nil, false, err
		}
	}

	p, err := canon.Canonicalize(data, r.opts, r.collector)
	if err != nil {
		return nil, nil, false, err
	}
	output, err := canon.Encode(p)
	if err != nil {
		return nil, nil, false, err
	}
	if r.cache != nil {
		if err := r.cache.Put(key, output); err != nil {
			return nil, nil, false, err
		}
	}
	return p, output, false, nil
}

func (r *Runner) report(res Result) {
	data := map[string]interface{}{
		"plan":    res.Name,
		"success": res.OK(),
	}
	if res.OK() {
		data["pipeline.count"] = len(res.Plan.Pipelines)
		data["cached"] = res.Cached
	} else {
		data["error"] = res.Err
	}
	r.collector.Add(annotations.Event{
		Name:    annotations.BatchPlanCompleted,
		Start:   time.Now().Add(-res.Elapsed),
		End:     time.Now(),
		Latency: res.Elapsed,
		Data:    data,
	})
}

// Collect expands paths into plan files: directories contribute their *.json
// files in name order, files are taken as given.
func Collect(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		matches, err := filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", path, err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
