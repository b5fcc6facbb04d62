package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/wbrown/plancanon/plan/annotations"
	"github.com/wbrown/plancanon/plan/batch"
	"github.com/wbrown/plancanon/plan/canon"
	"github.com/wbrown/plancanon/plan/report"
	"github.com/wbrown/plancanon/plan/source"
	"github.com/wbrown/plancanon/plan/store"
)

func main() {
	var configPath string
	var dialect string
	var planRows bool
	var workers int
	var dbPath string
	var outDir string
	var asJSON bool
	var operators bool
	var verbose bool
	var quiet bool
	var help bool

	flag.StringVar(&configPath, "config", "", "YAML options file")
	flag.StringVar(&dialect, "dialect", "postgres", "source plan dialect ("+strings.Join(source.Names(), ", ")+")")
	flag.BoolVar(&planRows, "plan-rows", false, "use planner estimates instead of observed rows as cardinality")
	flag.IntVar(&workers, "workers", 0, "plans canonicalized in parallel (0 = number of CPUs)")
	flag.StringVar(&dbPath, "db", "", "badger cache directory (empty = no cache)")
	flag.StringVar(&outDir, "out", "", "write each canonical plan to this directory")
	flag.BoolVar(&asJSON, "json", false, "print canonical JSON instead of tables")
	flag.BoolVar(&operators, "operators", false, "also print the operator table of each plan")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show annotations)")
	flag.BoolVar(&quiet, "quiet", false, "print only the batch summary")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] plan.json|folder ...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Canonicalizes physical query plans into pipelines and operator stages.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s q1.json                   # Pipelines of one EXPLAIN ANALYZE plan\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -json q1.json             # Canonical JSON document\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -quiet plans/             # Summary over every *.json in a folder\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db cache -out out plans/ # Cache results and write them to out/\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -dialect canonical out/   # Re-ingest canonical documents\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Options file first, explicit flags win
	opts := canon.DefaultOptions()
	if configPath != "" {
		var err error
		if opts, err = canon.LoadOptions(configPath); err != nil {
			log.Fatalf("Failed to load options: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dialect":
			opts.Dialect = dialect
		case "plan-rows":
			opts.UseActualCardinality = !planRows
		case "workers":
			opts.Workers = workers
		case "db":
			opts.CacheDir = dbPath
		case "verbose":
			opts.Verbose = verbose
		}
	})
	if _, err := source.Lookup(opts.Dialect); err != nil {
		log.Fatal(err)
	}

	paths, err := batch.Collect(flag.Args())
	if err != nil {
		log.Fatal(err)
	}
	if len(paths) == 0 {
		log.Fatalf("No plan files found in %s", strings.Join(flag.Args(), " "))
	}

	var cache *store.Store
	if opts.CacheDir != "" {
		if cache, err = store.Open(opts.CacheDir); err != nil {
			log.Fatalf("Failed to open cache: %v", err)
		}
		defer cache.Close()
	}

	// Create annotation handler if verbose mode
	var collector *annotations.Collector
	if opts.Verbose {
		collector = annotations.NewCollector(annotations.StderrHandler())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := batch.NewRunner(opts, cache, collector)
	results := runner.Run(ctx, paths)

	if outDir != "" {
		if err := writeOutputs(outDir, results); err != nil {
			log.Printf("Failed to write outputs: %v", err)
		}
	}

	failures := 0
	for _, res := range results {
		if !res.OK() {
			failures++
		}
		if quiet {
			continue
		}
		printResult(res, asJSON, operators)
	}

	if quiet || len(results) > 1 {
		fmt.Println(report.Summary(results))
	}

	if failures > 0 {
		// Deferred cleanup does not run through os.Exit
		stop()
		if cache != nil {
			cache.Close()
		}
		os.Exit(1)
	}
}

func printResult(res batch.Result, asJSON, operators bool) {
	if !res.OK() {
		fmt.Fprintf(os.Stderr, "✗ %v\n", res.Err)
		return
	}
	if asJSON {
		fmt.Println(string(res.Output))
		return
	}

	fmt.Printf("## %s\n\n", res.Name)
	if res.Plan.ExecutionTime > 0 {
		fmt.Printf("Execution time: %g\n\n", res.Plan.ExecutionTime)
	}
	fmt.Println(report.Pipelines(res.Plan))
	if operators {
		fmt.Println(report.Operators(res.Plan))
	}
}

// writeOutputs stores each canonical document as <name>.canonical.json
func writeOutputs(dir string, results []batch.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, res := range results {
		if !res.OK() {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(res.Name), filepath.Ext(res.Name)) + ".canonical.json"
		if err := os.WriteFile(filepath.Join(dir, name), res.Output, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
