package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cropopt/internal/catalog"
	"cropopt/internal/model"
	"cropopt/internal/server"
	"cropopt/internal/stats"
	"cropopt/pkg/cropopt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "generate":
		return runGenerate(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "compat":
		return runCompat(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "merge":
		return runMerge(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cropoptctl <generate|evaluate|validate|compat|run|runs|export|merge|serve> [flags]", msg)
}

func runGenerate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	common := registerCommon(fs)
	seed := fs.Int64("seed", 0, "random seed (default from config)")
	count := fs.Int("count", 1, "number of plans")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return errors.New("count must be > 0")
	}
	client, _, _, err := common.client()
	if err != nil {
		return err
	}
	defer client.Close()

	plans, err := client.Generate(cropopt.GenerateRequest{Seed: flagSeed(fs, *seed), Count: *count})
	if err != nil {
		return err
	}
	return printJSON(plans)
}

func runEvaluate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	common := registerCommon(fs)
	planPath := fs.String("plan", "", "plan json file, - for stdin")
	jsonOut := fs.Bool("json", false, "emit evaluation as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	plan, err := readPlan(*planPath)
	if err != nil {
		return err
	}
	client, _, _, err := common.client()
	if err != nil {
		return err
	}
	defer client.Close()

	evaluation, err := client.Evaluate(plan)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(evaluation)
	}
	summary, err := client.Summarize(plan)
	if err != nil {
		return err
	}
	if err := stats.WritePlanSummary(os.Stdout, summary); err != nil {
		return err
	}
	fmt.Printf("mode=%s valid=%t violations=%d\n", evaluation.Mode, evaluation.Valid, len(evaluation.Violations))
	return nil
}

func runValidate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	common := registerCommon(fs)
	planPath := fs.String("plan", "", "plan json file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	plan, err := readPlan(*planPath)
	if err != nil {
		return err
	}
	client, _, _, err := common.client()
	if err != nil {
		return err
	}
	defer client.Close()

	valid, violations := client.Validate(plan)
	fmt.Printf("valid=%t\n", valid)
	for _, v := range violations {
		fmt.Printf("- %s\n", v)
	}
	return nil
}

func runCompat(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("compat", flag.ContinueOnError)
	common := registerCommon(fs)
	a := fs.String("a", "", "crop whose rules are evaluated")
	b := fs.String("b", "", "neighbouring crop")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *a == "" || *b == "" {
		return errors.New("compat requires --a and --b")
	}
	client, _, _, err := common.client()
	if err != nil {
		return err
	}
	defer client.Close()

	score, err := client.Compatibility(*a, *b)
	if err != nil {
		return err
	}
	fmt.Printf("policy=%s a=%s b=%s score=%g\n", client.PolicyName(), *a, *b, score)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := registerCommon(fs)
	runID := fs.String("run-id", "", "run id (default random uuid)")
	pop := fs.Int("pop", 0, "population size (default from config)")
	gens := fs.Int("gens", 0, "generations (default from config)")
	seed := fs.Int64("seed", 0, "random seed (default from config)")
	workers := fs.Int("workers", 0, "parallel evaluation workers (default from config)")
	continueFrom := fs.String("continue-population-id", "", "resume from a stored population")
	top := fs.Int("top", 0, "top plans to keep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pop < 0 || *gens < 0 || *workers < 0 {
		return errors.New("pop, gens and workers must be >= 0")
	}
	client, _, _, err := common.client()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Run(ctx, cropopt.RunRequest{
		RunID:                *runID,
		Population:           *pop,
		Generations:          *gens,
		Seed:                 flagSeed(fs, *seed),
		Workers:              *workers,
		ContinuePopulationID: *continueFrom,
		TopPlans:             *top,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run_id=%s generations=%d final_best=%.4f stopped_early=%t population_id=%s artifacts=%s\n",
		summary.RunID, len(summary.BestByGeneration), summary.FinalBestFitness, summary.StoppedEarly,
		summary.PopulationID, summary.ArtifactsDir)
	return stats.WritePlanSummary(os.Stdout, summary.Summary)
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := registerCommon(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}

	entries, err := stats.ListRunIndex(cfg.Storage.BenchmarksDir)
	if err != nil {
		return err
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s mode=%s compat=%s seed=%d pop=%d gens=%d final_best=%.4f\n",
			e.RunID, e.CreatedAtUTC, e.Mode, e.Compatibility, e.Seed, e.PopulationSize, e.Generations, e.FinalBestFitness)
	}
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := registerCommon(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", "", "export output directory (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}
	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *outDir == "" {
		*outDir = cfg.Storage.ExportsDir
	}
	if *latest {
		entries, err := stats.ListRunIndex(cfg.Storage.BenchmarksDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available to export")
		}
		*runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(cfg.Storage.BenchmarksDir, *runID, *outDir)
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", *runID, filepath.Clean(exportedDir))
	return nil
}

func runMerge(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	basePath := fs.String("base", "", "tabular catalog csv to extend")
	detailedPath := fs.String("detailed", "", "detailed catalog (.csv or .xlsx)")
	sheet := fs.String("sheet", "", "xlsx sheet name")
	outPath := fs.String("out", "", "merged tabular csv output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *detailedPath == "" || *outPath == "" {
		return errors.New("merge requires --base, --detailed and --out")
	}

	base, err := catalog.LoadTableFile(*basePath)
	if err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	detailed, err := catalog.LoadFile(*detailedPath, *sheet)
	if err != nil {
		return fmt.Errorf("load detailed: %w", err)
	}
	merged, err := catalog.Merge(base, detailed)
	if err != nil {
		return err
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := catalog.WriteTableCSV(out, merged); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("merged base=%d detailed=%d total=%d out=%s\n", base.Len(), detailed.Len(), merged.Len(), filepath.Clean(*outPath))
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := registerCommon(fs)
	addr := fs.String("addr", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, cfg, logger, err := common.client()
	if err != nil {
		return err
	}
	defer client.Close()

	listen := cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}
	return server.New(client, logger).Run(ctx, listen)
}

func readPlan(path string) (model.Plan, error) {
	if path == "" {
		return model.Plan{}, errors.New("--plan is required")
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.Plan{}, err
	}
	var plan model.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return model.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	return plan, nil
}

// flagSeed returns nil unless --seed was given, leaving the configured seed
// in effect.
func flagSeed(fs *flag.FlagSet, seed int64) *int64 {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &seed
}

func printJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
