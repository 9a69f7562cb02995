package stats

import (
	"bytes"
	"strings"
	"testing"

	"cropopt/internal/catalog"
	"cropopt/internal/model"
)

func TestSummarizeTotalsAndMissingCrops(t *testing.T) {
	c := catalog.MustNew([]model.CropRecord{
		{Name: "Milho", ProfitPerHa: 5000, YieldPerHa: 8},
		{Name: "Soja", ProfitPerHa: 4000, YieldPerHa: 3},
	})
	plan := model.Plan{Allocations: []model.Allocation{
		{Crop: "Milho", AreaHa: 1},
		{Crop: "Soja", AreaHa: 0.5},
		{Crop: "Fantasma", AreaHa: 0.25},
	}}

	summary := Summarize(plan, c, 1234.5, 2)

	if len(summary.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(summary.Rows))
	}
	if summary.Rows[0].Profit != 5000 || summary.Rows[1].Yield != 1.5 {
		t.Fatalf("unexpected rows: %+v", summary.Rows)
	}
	if !summary.Rows[2].Missing || summary.Rows[2].Profit != 0 {
		t.Fatalf("expected missing crop row, got %+v", summary.Rows[2])
	}
	if summary.AreaUsedHa != 1.75 || summary.AreaRemainingHa != 0.25 {
		t.Fatalf("unexpected area totals: %+v", summary)
	}
	if summary.TotalProfit != 7000 || summary.TotalYield != 9.5 {
		t.Fatalf("unexpected totals: profit=%f yield=%f", summary.TotalProfit, summary.TotalYield)
	}
	if summary.Fitness != 1234.5 {
		t.Fatalf("unexpected fitness %f", summary.Fitness)
	}
}

func TestWritePlanSummaryHumanizesNumbers(t *testing.T) {
	summary := PlanSummary{
		Rows:        []SummaryRow{{Crop: "Milho", AreaHa: 2, Profit: 10000}, {Crop: "Fantasma", Missing: true}},
		TotalAreaHa: 2,
		AreaUsedHa:  2,
		TotalProfit: 10000,
		Fitness:     10005.5,
	}
	var out bytes.Buffer
	if err := WritePlanSummary(&out, summary); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Milho", "10,000.00", "fitness: 10,005.50", "not in catalog"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in summary:\n%s", want, text)
		}
	}
}
