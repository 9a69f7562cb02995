package storage

import (
	"context"

	"cropopt/internal/model"
)

// Store persists the records an optimization run produces.
type Store interface {
	Init(ctx context.Context) error
	SavePopulation(ctx context.Context, population model.PopulationRecord) error
	GetPopulation(ctx context.Context, id string) (model.PopulationRecord, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopPlans(ctx context.Context, runID string, top []model.TopPlanRecord) error
	GetTopPlans(ctx context.Context, runID string) ([]model.TopPlanRecord, bool, error)
}
