package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(generationFallbacks)
	ObserveGenerationFallback()
	if got := testutil.ToFloat64(generationFallbacks); got != before+1 {
		t.Fatalf("expected fallback counter %f, got %f", before+1, got)
	}

	ObserveEvaluation("detailed")
	if got := testutil.ToFloat64(evaluations.WithLabelValues("detailed")); got < 1 {
		t.Fatalf("expected detailed evaluations to be counted, got %f", got)
	}
}

func TestBestFitnessGaugePerRun(t *testing.T) {
	SetBestFitness("run-a", 12.5)
	SetBestFitness("run-b", -3)
	if got := testutil.ToFloat64(bestFitness.WithLabelValues("run-a")); got != 12.5 {
		t.Fatalf("expected 12.5, got %f", got)
	}
	if got := testutil.ToFloat64(bestFitness.WithLabelValues("run-b")); got != -3 {
		t.Fatalf("expected -3, got %f", got)
	}
}

func TestGathererIncludesCollectors(t *testing.T) {
	ObserveGeneration()
	families, err := Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "cropopt_generations_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected cropopt_generations_total in gathered families")
	}
}
