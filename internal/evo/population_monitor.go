package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"cropopt/internal/catalog"
	"cropopt/internal/metrics"
	"cropopt/internal/model"
	"cropopt/internal/stats"
)

type ScoredPlan struct {
	Plan       model.Plan `json:"plan"`
	Fitness    float64    `json:"fitness"`
	Valid      bool       `json:"valid"`
	Violations []string   `json:"violations,omitempty"`
}

type RunResult struct {
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       []ScoredPlan
	Best                  ScoredPlan
	StoppedEarly          bool
	StopReason            string
}

type MonitorConfig struct {
	Catalog        *catalog.Catalog
	Categories     *catalog.Categories
	Evaluator      Evaluator
	Site           model.Site
	TotalAreaHa    float64
	PopulationSize int
	Generations    int
	Workers        int
	Seed           int64
	RunID          string
	Logger         *slog.Logger
}

// PopulationMonitor drives generate -> evaluate -> crossover cycles. All
// random draws happen on the monitor goroutine; evaluation fans out.
type PopulationMonitor struct {
	cfg       MonitorConfig
	rng       *rand.Rand
	generator *Generator
	validator Validator
	logger    *slog.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.TotalAreaHa <= 0 {
		return nil, fmt.Errorf("total area must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger
	}

	return &PopulationMonitor{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		generator: NewGenerator(cfg.Catalog, logger),
		validator: Validator{Catalog: cfg.Catalog, Categories: cfg.Categories, TotalAreaHa: cfg.TotalAreaHa},
		logger:    logger,
	}, nil
}

// InitialPopulation generates PopulationSize plans from the monitor's
// random source.
func (m *PopulationMonitor) InitialPopulation() []model.Plan {
	population := make([]model.Plan, m.cfg.PopulationSize)
	for i := range population {
		population[i] = m.generator.Generate(m.rng, m.cfg.Site, m.cfg.TotalAreaHa)
	}
	return population
}

// Run evolves a freshly generated population.
func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	return m.RunFrom(ctx, m.InitialPopulation())
}

// RunFrom evolves the given population. Crossover precondition failures end
// the run early with the generations completed so far.
func (m *PopulationMonitor) RunFrom(ctx context.Context, initial []model.Plan) (RunResult, error) {
	if len(initial) == 0 {
		return RunResult{}, fmt.Errorf("initial population is empty")
	}
	population := make([]model.Plan, len(initial))
	for i, plan := range initial {
		population[i] = plan.Clone()
	}

	result := RunResult{
		BestByGeneration:      make([]float64, 0, m.cfg.Generations),
		GenerationDiagnostics: make([]model.GenerationDiagnostics, 0, m.cfg.Generations),
	}
	haveBest := false

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		scored, err := m.evaluatePopulation(ctx, population)
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Fitness > scored[j].Fitness
		})
		result.FinalPopulation = scored
		result.BestByGeneration = append(result.BestByGeneration, scored[0].Fitness)
		result.GenerationDiagnostics = append(result.GenerationDiagnostics, summarizeGeneration(scored, gen+1))

		if !haveBest || scored[0].Fitness > result.Best.Fitness {
			haveBest = true
			result.Best = scored[0]
			m.logger.Info("generation improved",
				"run_id", m.cfg.RunID,
				"generation", gen+1,
				"best", scored[0].Fitness,
				"mean", result.GenerationDiagnostics[gen].MeanFitness,
			)
		}
		metrics.ObserveGeneration()
		metrics.SetBestFitness(m.cfg.RunID, result.Best.Fitness)

		if gen == m.cfg.Generations-1 {
			break
		}
		next, err := Crossover(m.rng, population, m.cfg.Catalog)
		if err != nil {
			if errors.Is(err, ErrInsufficientPopulation) || errors.Is(err, ErrDegeneratePopulation) {
				m.logger.Warn("crossover skipped", "run_id", m.cfg.RunID, "generation", gen+1, "error", err)
				metrics.ObserveCrossoverFailure()
				result.StoppedEarly = true
				result.StopReason = err.Error()
				break
			}
			return RunResult{}, err
		}
		population = next
	}
	return result, nil
}

// evaluatePopulation scores plans concurrently. Results are written by
// index so ordering never depends on scheduling.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []model.Plan) ([]ScoredPlan, error) {
	scored := make([]ScoredPlan, len(population))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(m.cfg.Workers)
	for i, plan := range population {
		i, plan := i, plan // per-iteration copies (go directive predates go1.22 loop semantics)
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fitness, err := m.cfg.Evaluator.Evaluate(plan)
			if err != nil {
				return fmt.Errorf("evaluate plan %d: %w", i, err)
			}
			valid, violations := m.validator.Validate(plan)
			scored[i] = ScoredPlan{Plan: plan, Fitness: fitness, Valid: valid, Violations: violations}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

func summarizeGeneration(scored []ScoredPlan, generation int) model.GenerationDiagnostics {
	fitness := make([]float64, len(scored))
	valid := 0
	for i, item := range scored {
		fitness[i] = item.Fitness
		if item.Valid {
			valid++
		}
	}
	return stats.Diagnose(generation, fitness, valid, countDistinct(scored))
}

func countDistinct(scored []ScoredPlan) int {
	distinct := make([]model.Plan, 0, len(scored))
	for _, item := range scored {
		seen := false
		for _, plan := range distinct {
			if plan.Equal(item.Plan) {
				seen = true
				break
			}
		}
		if !seen {
			distinct = append(distinct, item.Plan)
		}
	}
	return len(distinct)
}
