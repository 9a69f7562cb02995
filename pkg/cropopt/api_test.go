package cropopt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"cropopt/internal/catalog"
	"cropopt/internal/config"
	"cropopt/internal/evo"
	"cropopt/internal/metrics"
	"cropopt/internal/model"
)

func seed(v int64) *int64 { return &v }

func evaluationCount(t *testing.T, mode string) float64 {
	t.Helper()
	families, err := metrics.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "cropopt_evaluations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "mode" && label.GetValue() == mode {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Catalog.Path = filepath.Join("..", "..", "testdata", "catalog", "crops.csv")
	cfg.Catalog.TabularPath = filepath.Join("..", "..", "testdata", "catalog", "table.csv")
	cfg.Run.Population = 8
	cfg.Run.Generations = 4
	cfg.Run.Workers = 2
	cfg.Storage.BenchmarksDir = filepath.Join(t.TempDir(), "benchmarks")
	cfg.Storage.ExportsDir = filepath.Join(t.TempDir(), "exports")
	return cfg
}

func newClient(t *testing.T, cfg *config.AppConfig) *Client {
	t.Helper()
	client, err := New(Options{Config: cfg})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewRequiresCatalogPath(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Fatal("expected missing catalog path error")
	}
	cfg.Run.Mode = evo.ModeTabular
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Fatal("expected missing tabular path error")
	}
}

func TestNewWithInjectedCatalog(t *testing.T) {
	c := catalog.MustNew([]model.CropRecord{{Name: "Milho", CycleMaxDays: 120}})
	client, err := New(Options{Catalog: c})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Mode() != evo.ModeDetailed || client.PolicyName() != "rule" {
		t.Fatalf("unexpected defaults: mode=%s policy=%s", client.Mode(), client.PolicyName())
	}
	if len(client.Crops()) != 1 {
		t.Fatalf("expected injected catalog, got %d crops", len(client.Crops()))
	}
}

func TestCompatibility(t *testing.T) {
	client := newClient(t, testConfig(t))

	score, err := client.Compatibility("Milho", "Soja")
	if err != nil {
		t.Fatalf("compatibility: %v", err)
	}
	if score != 0.5 {
		t.Fatalf("expected 0.5, got %f", score)
	}
	if _, err := client.Compatibility("Milho", "Fantasma"); !errors.Is(err, catalog.ErrCropNotFound) {
		t.Fatalf("expected ErrCropNotFound, got %v", err)
	}
}

func TestGenerateIsDeterministicAndBalanced(t *testing.T) {
	client := newClient(t, testConfig(t))

	a, err := client.Generate(GenerateRequest{Seed: seed(7), Count: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := client.Generate(GenerateRequest{Seed: seed(7), Count: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(a))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("plan %d differs between equal seeds", i)
		}
		if total := a[i].TotalArea(); total < 1.99 || total > 2.01 {
			t.Fatalf("plan %d total area %f, expected 2", i, total)
		}
	}
}

func TestEvaluateDetailedReturnsBreakdown(t *testing.T) {
	client := newClient(t, testConfig(t))
	plan := model.Plan{Allocations: []model.Allocation{
		{Crop: "Milho", AreaHa: 1},
		{Crop: "Soja", AreaHa: 1},
	}}

	evaluation, err := client.Evaluate(plan)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if evaluation.Mode != evo.ModeDetailed || evaluation.Detailed == nil || evaluation.Tabular != nil {
		t.Fatalf("unexpected evaluation shape: %+v", evaluation)
	}
	if evaluation.Fitness != evaluation.Detailed.Fitness() {
		t.Fatalf("fitness %f does not match breakdown %f", evaluation.Fitness, evaluation.Detailed.Fitness())
	}
	if evaluation.Detailed.Profit != 9000 {
		t.Fatalf("expected profit 9000, got %f", evaluation.Detailed.Profit)
	}
	if evaluation.Violations == nil {
		t.Fatal("expected non-nil violations")
	}
}

func TestEvaluateCountsEvaluations(t *testing.T) {
	client := newClient(t, testConfig(t))
	plan := model.Plan{Allocations: []model.Allocation{{Crop: "Milho", AreaHa: 2}}}

	before := evaluationCount(t, evo.ModeDetailed)
	if _, err := client.Evaluate(plan); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if after := evaluationCount(t, evo.ModeDetailed); after != before+1 {
		t.Fatalf("expected evaluation counter %f, got %f", before+1, after)
	}
}

func TestGenerateDefaultsSeedFromConfig(t *testing.T) {
	cfgA := testConfig(t)
	cfgA.Run.Seed = 7
	cfgB := testConfig(t)
	cfgB.Run.Seed = 42
	clientA := newClient(t, cfgA)
	clientB := newClient(t, cfgB)

	configured, err := clientA.Generate(GenerateRequest{Count: 4})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	explicit, err := clientA.Generate(GenerateRequest{Seed: seed(7), Count: 4})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	other, err := clientB.Generate(GenerateRequest{Count: 4})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	differs := false
	for i := range configured {
		if !configured[i].Equal(explicit[i]) {
			t.Fatalf("plan %d: configured seed and explicit seed 7 disagree", i)
		}
		if !configured[i].Equal(other[i]) {
			differs = true
		}
	}
	if !differs {
		t.Fatal("expected seeds 7 and 42 to generate different plans")
	}

	zero, err := clientB.Generate(GenerateRequest{Seed: seed(0), Count: 4})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	cfgZero := testConfig(t)
	cfgZero.Run.Seed = 0
	fromConfig, err := newClient(t, cfgZero).Generate(GenerateRequest{Count: 4})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i := range zero {
		if !zero[i].Equal(fromConfig[i]) {
			t.Fatalf("plan %d: explicit seed 0 was not honoured", i)
		}
	}
}

func TestGenerateTotalAreaOnlyShapesGeneration(t *testing.T) {
	client := newClient(t, testConfig(t))
	plans, err := client.Generate(GenerateRequest{Seed: seed(3), Count: 2, TotalAreaHa: 3})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i, plan := range plans {
		if total := plan.TotalArea(); total < 2.99 || total > 3.01 {
			t.Fatalf("plan %d total area %f, expected 3", i, total)
		}
		if ok, violations := client.Validate(plan); ok {
			t.Fatalf("plan %d: expected area violation against the configured 2 ha, got %v", i, violations)
		}
	}
	if _, err := client.Generate(GenerateRequest{TotalAreaHa: -1}); err == nil {
		t.Fatal("expected negative area error")
	}
}

func TestEvaluateTabular(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.Mode = evo.ModeTabular
	client := newClient(t, cfg)
	if client.PolicyName() != "bucket" {
		t.Fatalf("expected bucket policy, got %s", client.PolicyName())
	}

	evaluation, err := client.Evaluate(model.Plan{Allocations: []model.Allocation{
		{Crop: "alface", AreaHa: 1},
		{Crop: "cenoura", AreaHa: 1},
	}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if evaluation.Tabular == nil || evaluation.Detailed != nil {
		t.Fatalf("expected tabular breakdown, got %+v", evaluation)
	}

	_, err = client.Evaluate(model.Plan{Allocations: []model.Allocation{{Crop: "fantasma", AreaHa: 1}}})
	if !errors.Is(err, catalog.ErrCropNotFound) {
		t.Fatalf("expected ErrCropNotFound, got %v", err)
	}
}

func TestValidateUsesConfiguredSite(t *testing.T) {
	client := newClient(t, testConfig(t))
	plan := model.Plan{Allocations: []model.Allocation{{Crop: "Cafe", AreaHa: 2}}}
	if ok, violations := client.Validate(plan); !ok {
		t.Fatalf("expected Cafe valid at the configured site, got %v", violations)
	}
	plan.Site = model.Site{Region: "Sul", SoilPH: 6, Temperature: 20}
	if ok, _ := client.Validate(plan); ok {
		t.Fatal("expected Cafe to be maladapted in Sul")
	}
}

func TestRunPersistsAndExports(t *testing.T) {
	cfg := testConfig(t)
	client := newClient(t, cfg)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{RunID: "run-a", Seed: seed(3)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID != "run-a" || len(summary.BestByGeneration) == 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.FinalBestFitness != summary.Best.Fitness || summary.Summary.Fitness != summary.Best.Fitness {
		t.Fatalf("inconsistent best fitness: %+v", summary)
	}
	for _, file := range []string{"config.json", "fitness_history.json", "top_plans.json", "summary.txt", "fitness.png"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	history, err := client.FitnessHistory(ctx, RunLookup{RunID: "run-a"})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != len(summary.BestByGeneration) {
		t.Fatalf("expected %d history entries, got %d", len(summary.BestByGeneration), len(history))
	}
	diagnostics, err := client.Diagnostics(ctx, RunLookup{Latest: true, Limit: 1})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 1 || diagnostics[0].Generation != 1 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}
	top, err := client.TopPlans(ctx, RunLookup{RunID: "run-a"})
	if err != nil {
		t.Fatalf("top plans: %v", err)
	}
	if len(top) == 0 || top[0].Rank != 1 {
		t.Fatalf("unexpected top plans: %+v", top)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-a" || runs[0].Mode != evo.ModeDetailed {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != "run-a" {
		t.Fatalf("expected run-a exported, got %s", exported.RunID)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "top_plans.json")); err != nil {
		t.Fatalf("expected exported top plans: %v", err)
	}
}

func TestRunContinuesFromStoredPopulation(t *testing.T) {
	client := newClient(t, testConfig(t))
	ctx := context.Background()

	first, err := client.Run(ctx, RunRequest{RunID: "first", Seed: seed(5)})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(ctx, RunRequest{RunID: "second", ContinuePopulationID: first.PopulationID, Generations: 2})
	if err != nil {
		t.Fatalf("continued run: %v", err)
	}
	if second.RunID != "second" || len(second.BestByGeneration) == 0 {
		t.Fatalf("unexpected continued run: %+v", second)
	}

	if _, err := client.Run(ctx, RunRequest{ContinuePopulationID: "missing"}); err == nil {
		t.Fatal("expected missing population error")
	}
}

func TestRunDefaultsSeedFromConfig(t *testing.T) {
	ctx := context.Background()
	cfgA := testConfig(t)
	cfgA.Run.Seed = 7
	cfgB := testConfig(t)
	cfgB.Run.Seed = 42

	configured, err := newClient(t, cfgA).Run(ctx, RunRequest{RunID: "configured"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	explicit, err := newClient(t, testConfig(t)).Run(ctx, RunRequest{RunID: "explicit", Seed: seed(7)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !slices.Equal(configured.BestByGeneration, explicit.BestByGeneration) {
		t.Fatalf("configured seed 7 %v differs from explicit seed 7 %v", configured.BestByGeneration, explicit.BestByGeneration)
	}

	clientB := newClient(t, cfgB)
	other, err := clientB.Run(ctx, RunRequest{RunID: "other"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if configured.Best.Plan.Equal(other.Best.Plan) && slices.Equal(configured.BestByGeneration, other.BestByGeneration) {
		t.Fatalf("expected seeds 7 and 42 to produce different runs, both gave %v", other.BestByGeneration)
	}

	runs, err := clientB.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Seed != 42 {
		t.Fatalf("expected run index to record seed 42, got %+v", runs)
	}
}

func TestRunGeneratesRunID(t *testing.T) {
	client := newClient(t, testConfig(t))
	summary, err := client.Run(context.Background(), RunRequest{Generations: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.RunID) != 36 {
		t.Fatalf("expected uuid run id, got %q", summary.RunID)
	}
}

func TestRunLookupValidation(t *testing.T) {
	client := newClient(t, testConfig(t))
	ctx := context.Background()

	if _, err := client.FitnessHistory(ctx, RunLookup{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected run id/latest conflict")
	}
	if _, err := client.TopPlans(ctx, RunLookup{}); err == nil {
		t.Fatal("expected missing run id error")
	}
	if _, err := client.Diagnostics(ctx, RunLookup{RunID: "x", Limit: -1}); err == nil {
		t.Fatal("expected negative limit error")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.FitnessHistory(ctx, RunLookup{RunID: "unknown"}); err == nil {
		t.Fatal("expected unknown run error")
	}
}
