package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cropopt/internal/model"
)

// Diagnose summarizes one generation's fitness distribution.
func Diagnose(generation int, fitness []float64, validPlans, distinctPlans int) model.GenerationDiagnostics {
	out := model.GenerationDiagnostics{
		Generation:    generation,
		PopulationLen: len(fitness),
		ValidPlans:    validPlans,
		DistinctPlans: distinctPlans,
	}
	if len(fitness) == 0 {
		return out
	}
	out.BestFitness = floats.Max(fitness)
	out.MinFitness = floats.Min(fitness)
	out.MeanFitness, out.StdDevFitness = stat.PopMeanStdDev(fitness, nil)
	return out
}
