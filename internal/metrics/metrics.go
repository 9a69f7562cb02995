package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cropopt_evaluations_total",
		Help: "Plans scored, by evaluation mode.",
	}, []string{"mode"})
	generationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cropopt_generation_fallbacks_total",
		Help: "Plan generations that fell back to the full catalog.",
	})
	generations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cropopt_generations_total",
		Help: "Evolutionary generations completed.",
	})
	crossoverFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cropopt_crossover_failures_total",
		Help: "Crossover calls rejected by an operator precondition.",
	})
	bestFitness = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cropopt_best_fitness",
		Help: "Best fitness observed so far per run.",
	}, []string{"run_id"})
)

func init() {
	prometheus.MustRegister(evaluations, generationFallbacks, generations, crossoverFailures, bestFitness)
}

func ObserveEvaluation(mode string) {
	evaluations.WithLabelValues(mode).Inc()
}

func ObserveGenerationFallback() {
	generationFallbacks.Inc()
}

func ObserveGeneration() {
	generations.Inc()
}

func ObserveCrossoverFailure() {
	crossoverFailures.Inc()
}

func SetBestFitness(runID string, fitness float64) {
	bestFitness.WithLabelValues(runID).Set(fitness)
}

// Gatherer exposes the registry the collectors are registered on.
func Gatherer() prometheus.Gatherer {
	return prometheus.DefaultGatherer
}
