package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cropopt/internal/model"
)

func TestDecodePopulationFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("minimal_population_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	population, err := DecodePopulation(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if population.ID != "population-minimal-1" || population.RunID != "run-minimal-1" || population.Generation != 3 {
		t.Fatalf("unexpected population: %+v", population)
	}
	if len(population.Plans) != 1 || len(population.Plans[0].Allocations) != 2 {
		t.Fatalf("unexpected plans: %+v", population.Plans)
	}
	if population.Plans[0].Allocations[0].Crop != "Milho" || population.Plans[0].Site.SoilPH != 6.5 {
		t.Fatalf("unexpected first plan: %+v", population.Plans[0])
	}
}

func TestDecodeTopPlansFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("minimal_top_plans_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	top, err := DecodeTopPlans(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if len(top) != 1 || top[0].Fitness != 10005.5 || !top[0].Valid {
		t.Fatalf("unexpected top plans: %+v", top)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	population := model.PopulationRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "p-future",
	}
	data, err := EncodePopulation(population)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodePopulation(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	top := []model.TopPlanRecord{{Rank: 1}}
	data, err = EncodeTopPlans(top)
	if err != nil {
		t.Fatalf("encode top plans: %v", err)
	}
	if _, err := DecodeTopPlans(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch for unversioned top plan, got %v", err)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeFitnessHistory([]byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodeGenerationDiagnostics([]byte("[1,")); err == nil {
		t.Fatal("expected decode error")
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
