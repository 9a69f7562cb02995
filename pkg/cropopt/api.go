package cropopt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"cropopt/internal/catalog"
	"cropopt/internal/compat"
	"cropopt/internal/config"
	"cropopt/internal/evo"
	"cropopt/internal/metrics"
	"cropopt/internal/model"
	"cropopt/internal/stats"
	"cropopt/internal/storage"
)

const defaultTopPlans = 5

type Options struct {
	// Config defaults to config.DefaultConfig().
	Config *config.AppConfig
	// Catalog overrides the catalog files named in Config.
	Catalog *catalog.Catalog
	Logger  *slog.Logger
}

// Client wires a catalog, a compatibility policy, an evaluator and a store
// into one optimization facade. It is safe for concurrent use.
type Client struct {
	cfg        *config.AppConfig
	catalog    *catalog.Catalog
	categories *catalog.Categories
	policy     compat.Policy
	evaluator  evo.Evaluator
	validator  evo.Validator
	generator  *evo.Generator
	store      storage.Store
	logger     *slog.Logger

	initOnce sync.Once
	initErr  error
}

type RunRequest struct {
	RunID       string
	Population  int
	Generations int
	// Seed defaults to the configured run seed when nil.
	Seed    *int64
	Workers int
	// ContinuePopulationID resumes from a stored population instead of
	// generating a fresh one.
	ContinuePopulationID string
	TopPlans             int
}

type RunSummary struct {
	RunID            string            `json:"run_id"`
	ArtifactsDir     string            `json:"artifacts_dir"`
	PopulationID     string            `json:"population_id"`
	BestByGeneration []float64         `json:"best_by_generation"`
	FinalBestFitness float64           `json:"final_best_fitness"`
	Best             evo.ScoredPlan    `json:"best"`
	StoppedEarly     bool              `json:"stopped_early"`
	StopReason       string            `json:"stop_reason,omitempty"`
	Summary          stats.PlanSummary `json:"summary"`
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string  `json:"run_id"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Mode             string  `json:"mode"`
	Compatibility    string  `json:"compatibility"`
	Seed             int64   `json:"seed"`
	Population       int     `json:"population"`
	Generations      int     `json:"generations"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	StoppedEarly     bool    `json:"stopped_early,omitempty"`
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// RunLookup names a stored run either by id or as the most recent one.
type RunLookup struct {
	RunID  string
	Latest bool
	Limit  int
}

type GenerateRequest struct {
	// Seed defaults to the configured run seed when nil.
	Seed  *int64
	Count int
	// Site and TotalAreaHa default to the configured values. TotalAreaHa
	// only shapes generation: Evaluate and Validate always measure plans
	// against the configured area.
	Site        *model.Site
	TotalAreaHa float64
}

// Evaluation is a scored and validated plan. Exactly one breakdown is set,
// matching Mode.
type Evaluation struct {
	Mode       string                 `json:"mode"`
	Fitness    float64                `json:"fitness"`
	Valid      bool                   `json:"valid"`
	Violations []string               `json:"violations"`
	Detailed   *evo.DetailedBreakdown `json:"detailed,omitempty"`
	Tabular    *evo.TabularBreakdown  `json:"tabular,omitempty"`
}

func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := opts.Catalog
	if c == nil {
		var err error
		c, err = loadCatalog(cfg)
		if err != nil {
			return nil, err
		}
	}
	categories := catalog.NewCategories(c, cfg.Categories)

	policy, err := compat.New(cfg.CompatibilityPolicy(), categories)
	if err != nil {
		return nil, err
	}
	evaluator, err := evo.NewEvaluator(cfg.Run.Mode, evo.EvaluatorConfig{
		Catalog:     c,
		Policy:      policy,
		TotalAreaHa: cfg.Area.TotalHa,
		Limits:      cfg.Limits,
	})
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		catalog:    c,
		categories: categories,
		policy:     policy,
		evaluator:  evaluator,
		validator:  evo.Validator{Catalog: c, Categories: categories, TotalAreaHa: cfg.Area.TotalHa},
		generator:  evo.NewGenerator(c, logger),
		store:      store,
		logger:     logger,
	}, nil
}

func loadCatalog(cfg *config.AppConfig) (*catalog.Catalog, error) {
	if cfg.Run.Mode == evo.ModeTabular {
		if cfg.Catalog.TabularPath == "" {
			return nil, errors.New("catalog.tabular_path is required in tabular mode")
		}
		return catalog.LoadTableFile(cfg.Catalog.TabularPath)
	}
	if cfg.Catalog.Path == "" {
		return nil, errors.New("catalog.path is required in detailed mode")
	}
	return catalog.LoadFile(cfg.Catalog.Path, cfg.Catalog.Sheet)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the store. It runs once; later calls return the first result.
func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

func (c *Client) Config() config.AppConfig {
	return *c.cfg
}

func (c *Client) Mode() string {
	return c.evaluator.Name()
}

func (c *Client) PolicyName() string {
	return c.policy.Name()
}

func (c *Client) Crops() []model.CropRecord {
	return c.catalog.All()
}

// Compatibility scores how crop b affects crop a under the active policy.
func (c *Client) Compatibility(a, b string) (float64, error) {
	recordA, err := c.catalog.Lookup(a)
	if err != nil {
		return 0, err
	}
	recordB, err := c.catalog.Lookup(b)
	if err != nil {
		return 0, err
	}
	return c.policy.Score(recordA, recordB), nil
}

func (c *Client) Generate(req GenerateRequest) ([]model.Plan, error) {
	if req.Count <= 0 {
		req.Count = 1
	}
	site := c.cfg.Site
	if req.Site != nil {
		site = *req.Site
	}
	total := req.TotalAreaHa
	if total == 0 {
		total = c.cfg.Area.TotalHa
	}
	if total < 0 {
		return nil, fmt.Errorf("total area must be > 0, got %g", total)
	}
	rng := rand.New(rand.NewSource(c.seed(req.Seed)))
	plans := make([]model.Plan, req.Count)
	for i := range plans {
		plans[i] = c.generator.Generate(rng, site, total)
	}
	return plans, nil
}

func (c *Client) Validate(plan model.Plan) (bool, []string) {
	return c.validator.Validate(c.withDefaultSite(plan))
}

func (c *Client) Evaluate(plan model.Plan) (Evaluation, error) {
	plan = c.withDefaultSite(plan)
	out := Evaluation{Mode: c.evaluator.Name()}
	switch e := c.evaluator.(type) {
	case evo.DetailedEvaluator:
		metrics.ObserveEvaluation(e.Name())
		breakdown := e.Breakdown(plan)
		out.Fitness = breakdown.Fitness()
		out.Detailed = &breakdown
	case evo.TabularEvaluator:
		metrics.ObserveEvaluation(e.Name())
		breakdown, err := e.Breakdown(plan)
		if err != nil {
			return Evaluation{}, err
		}
		out.Fitness = breakdown.Fitness()
		out.Tabular = &breakdown
	default:
		fitness, err := c.evaluator.Evaluate(plan)
		if err != nil {
			return Evaluation{}, err
		}
		out.Fitness = fitness
	}
	out.Valid, out.Violations = c.validator.Validate(plan)
	return out, nil
}

func (c *Client) Summarize(plan model.Plan) (stats.PlanSummary, error) {
	fitness, err := c.evaluator.Evaluate(c.withDefaultSite(plan))
	if err != nil {
		return stats.PlanSummary{}, err
	}
	return stats.Summarize(plan, c.catalog, fitness, c.cfg.Area.TotalHa), nil
}

func (c *Client) seed(s *int64) int64 {
	if s == nil {
		return c.cfg.Run.Seed
	}
	return *s
}

// withDefaultSite fills an unset plan site from the configuration.
func (c *Client) withDefaultSite(plan model.Plan) model.Plan {
	if plan.Site == (model.Site{}) {
		plan = plan.Clone()
		plan.Site = c.cfg.Site
	}
	return plan
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.Population <= 0 {
		req.Population = c.cfg.Run.Population
	}
	if req.Generations <= 0 {
		req.Generations = c.cfg.Run.Generations
	}
	if req.Workers <= 0 {
		req.Workers = c.cfg.Run.Workers
	}
	if req.TopPlans <= 0 {
		req.TopPlans = defaultTopPlans
	}
	seed := c.seed(req.Seed)
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Catalog:        c.catalog,
		Categories:     c.categories,
		Evaluator:      c.evaluator,
		Site:           c.cfg.Site,
		TotalAreaHa:    c.cfg.Area.TotalHa,
		PopulationSize: req.Population,
		Generations:    req.Generations,
		Workers:        req.Workers,
		Seed:           seed,
		RunID:          runID,
		Logger:         c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	var result evo.RunResult
	if req.ContinuePopulationID != "" {
		stored, ok, err := c.store.GetPopulation(ctx, req.ContinuePopulationID)
		if err != nil {
			return RunSummary{}, err
		}
		if !ok {
			return RunSummary{}, fmt.Errorf("population not found: %s", req.ContinuePopulationID)
		}
		result, err = monitor.RunFrom(ctx, stored.Plans)
		if err != nil {
			return RunSummary{}, err
		}
	} else {
		result, err = monitor.Run(ctx)
		if err != nil {
			return RunSummary{}, err
		}
	}

	now := time.Now().UTC()
	populationID := fmt.Sprintf("%s-gen-%d", runID, len(result.BestByGeneration))
	if err := c.persistRun(ctx, runID, populationID, result, req.TopPlans); err != nil {
		return RunSummary{}, err
	}

	summary := stats.Summarize(result.Best.Plan, c.catalog, result.Best.Fitness, c.cfg.Area.TotalHa)
	runDir, err := stats.WriteRunArtifacts(c.cfg.Storage.BenchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:           runID,
			Mode:            c.evaluator.Name(),
			Compatibility:   c.policy.Name(),
			PopulationSize:  req.Population,
			Generations:     req.Generations,
			Seed:            seed,
			Workers:         req.Workers,
			Site:            c.cfg.Site,
			TotalAreaHa:     c.cfg.Area.TotalHa,
			Budget:          c.cfg.Limits.Budget,
			Water:           c.cfg.Limits.Water,
			AvailableAreaM2: c.cfg.Limits.AvailableAreaM2,
			WindowDays:      c.cfg.Limits.WindowDays,
			CatalogPath:     c.cfg.Catalog.Path,
			TabularPath:     c.cfg.Catalog.TabularPath,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.Best.Fitness,
		StoppedEarly:          result.StoppedEarly,
		StopReason:            result.StopReason,
		TopPlans:              topPlans(result.FinalPopulation, req.TopPlans),
		Summary:               &summary,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.cfg.Storage.BenchmarksDir, stats.RunIndexEntry{
		RunID:            runID,
		Mode:             c.evaluator.Name(),
		Compatibility:    c.policy.Name(),
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		Seed:             seed,
		Workers:          req.Workers,
		FinalBestFitness: result.Best.Fitness,
		StoppedEarly:     result.StoppedEarly,
		CreatedAtUTC:     now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}

	c.logger.Info("run completed",
		"run_id", runID,
		"final_best", result.Best.Fitness,
		"generations", len(result.BestByGeneration),
		"artifacts_dir", runDir,
	)

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		PopulationID:     populationID,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: result.Best.Fitness,
		Best:             result.Best,
		StoppedEarly:     result.StoppedEarly,
		StopReason:       result.StopReason,
		Summary:          summary,
	}, nil
}

func (c *Client) persistRun(ctx context.Context, runID, populationID string, result evo.RunResult, top int) error {
	plans := make([]model.Plan, len(result.FinalPopulation))
	for i, scored := range result.FinalPopulation {
		plans[i] = scored.Plan
	}
	if err := c.store.SavePopulation(ctx, model.PopulationRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              populationID,
		RunID:           runID,
		Generation:      len(result.BestByGeneration),
		Plans:           plans,
	}); err != nil {
		return err
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return err
	}
	return c.store.SaveTopPlans(ctx, runID, topPlans(result.FinalPopulation, top))
}

// topPlans ranks the first n scored plans, which arrive sorted by fitness.
func topPlans(scored []evo.ScoredPlan, n int) []model.TopPlanRecord {
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]model.TopPlanRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.TopPlanRecord{
			VersionedRecord: storage.CurrentVersion(),
			Rank:            i + 1,
			Fitness:         scored[i].Fitness,
			Valid:           scored[i].Valid,
			Violations:      scored[i].Violations,
			Plan:            scored[i].Plan,
		})
	}
	return out
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.cfg.Storage.BenchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Mode:             e.Mode,
			Compatibility:    e.Compatibility,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
			StoppedEarly:     e.StoppedEarly,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.cfg.Storage.ExportsDir
	}
	runID, err := c.resolveRunID(RunLookup{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.cfg.Storage.BenchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req RunLookup) ([]float64, error) {
	runID, err := c.lookupStored(ctx, req)
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunLookup) ([]model.GenerationDiagnostics, error) {
	runID, err := c.lookupStored(ctx, req)
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopPlans(ctx context.Context, req RunLookup) ([]model.TopPlanRecord, error) {
	runID, err := c.lookupStored(ctx, req)
	if err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopPlans(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top plans not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	return top, nil
}

func (c *Client) lookupStored(ctx context.Context, req RunLookup) (string, error) {
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req)
	if err != nil {
		return "", err
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	return runID, nil
}

func (c *Client) resolveRunID(req RunLookup) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if !req.Latest {
		if req.RunID == "" {
			return "", errors.New("run id or latest is required")
		}
		return req.RunID, nil
	}
	entries, err := stats.ListRunIndex(c.cfg.Storage.BenchmarksDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
