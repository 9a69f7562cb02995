package catalog

import (
	"testing"

	"cropopt/internal/model"
)

func TestNormalizeScale(t *testing.T) {
	if got := NormalizeScale(5, 0, 10, false); got != 2 {
		t.Fatalf("expected midpoint 2, got %f", got)
	}
	if got := NormalizeScale(10, 0, 10, true); got != 1 {
		t.Fatalf("expected inverse max to map to 1, got %f", got)
	}
	if got := NormalizeScale(3, 3, 3, false); got != 1.5 {
		t.Fatalf("expected degenerate range to map to 1.5, got %f", got)
	}
}

func TestMergeAppendsOnlyNewCropsOnTabularScale(t *testing.T) {
	base := MustNew([]model.CropRecord{{Name: "milho", YieldPerHa: 3, CycleMinDays: 90, CycleMaxDays: 120, MinFootprintM2: 0.5}})
	detailed := MustNew([]model.CropRecord{
		{Name: "Milho", CostPerHa: 3000, YieldPerHa: 8, WaterMM: 600, CycleMinDays: 120, CycleMaxDays: 120},
		{
			Name: "Feijao_Carioca", CostPerHa: 1000, YieldPerHa: 2, WaterMM: 300, ReturnPerHa: 10,
			CycleMinDays: 100, CycleMaxDays: 100, MinFootprintM2: 0.25,
			Positive: []string{"Milho"}, Negative: []string{"Alho"},
		},
	})

	merged, err := Merge(base, detailed)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Len() != 2 {
		t.Fatalf("expected existing crop to be skipped, got %v", merged.Names())
	}
	feijao, ok := merged.FindByName("feijao carioca")
	if !ok {
		t.Fatalf("expected normalized name, got %v", merged.Names())
	}
	if feijao.CostPerHa != 3 || feijao.WaterMM != 3 || feijao.YieldPerHa != 1 {
		t.Fatalf("unexpected scores: %+v", feijao)
	}
	if feijao.CycleMinDays != 75 || feijao.CycleMaxDays != 100 {
		t.Fatalf("unexpected cycle: %+v", feijao)
	}
	if len(feijao.Companion) != 1 || feijao.Companion[0] != "milho" || feijao.Antagonistic[0] != "alho" {
		t.Fatalf("unexpected buckets: %+v", feijao)
	}
}
