package evo

import (
	"cropopt/internal/catalog"
	"cropopt/internal/compat"
	"cropopt/internal/model"
)

var testSite = model.Site{Region: "Sudeste", SoilPH: 6.5, Temperature: 25}

func anywhere(r model.CropRecord) model.CropRecord {
	r.Regions = []string{model.AllRegions}
	r.PHMin, r.PHMax = 0, 14
	r.TempMin, r.TempMax = -50, 60
	return r
}

func detailedCatalog() *catalog.Catalog {
	return catalog.MustNew([]model.CropRecord{
		anywhere(model.CropRecord{Name: "Milho", ProfitPerHa: 5000, YieldPerHa: 8, CycleMaxDays: 150, MinFootprintM2: 0.3, PlantingSeason: "Out-Dez", Positive: []string{"Soja"}}),
		anywhere(model.CropRecord{Name: "Soja", ProfitPerHa: 4000, YieldPerHa: 3, CycleMaxDays: 120, MinFootprintM2: 0.2, PlantingSeason: "Out-Dez"}),
		anywhere(model.CropRecord{Name: "Feijao", ProfitPerHa: 3000, YieldPerHa: 2, CycleMaxDays: 90, MinFootprintM2: 0.25, Negative: []string{"Milho"}}),
		anywhere(model.CropRecord{Name: "Mandioca", ProfitPerHa: 2500, YieldPerHa: 20, CycleMaxDays: 360, MinFootprintM2: 1}),
		anywhere(model.CropRecord{Name: "Abobora", ProfitPerHa: 3500, YieldPerHa: 15, CycleMaxDays: 100, MinFootprintM2: 4}),
		anywhere(model.CropRecord{Name: "Cafe", ProfitPerHa: 9000, YieldPerHa: 2, CycleMaxDays: 1800, MinFootprintM2: 6,
			Negative: []string{catalog.TokenShadeIntolerant, catalog.TokenConflictsAnnuals, catalog.TokenConflictsCompetitive}}),
		anywhere(model.CropRecord{Name: "Eucalipto", ProfitPerHa: 3000, YieldPerHa: 25, CycleMaxDays: 2555, MinFootprintM2: 9}),
	})
}

func detailedCategories(c *catalog.Catalog) *catalog.Categories {
	return catalog.NewCategories(c, catalog.CategorySets{
		ShadeProducing:    []string{"Eucalipto"},
		CompetitiveExotic: []string{"Eucalipto"},
	})
}

func detailedEvaluator(totalAreaHa float64) DetailedEvaluator {
	c := detailedCatalog()
	return DetailedEvaluator{
		Catalog:     c,
		Policy:      compat.RuleScorer{Categories: detailedCategories(c)},
		TotalAreaHa: totalAreaHa,
	}
}

func plan(allocations ...model.Allocation) model.Plan {
	return model.Plan{Site: testSite, Allocations: allocations}
}

func alloc(crop string, areaHa float64) model.Allocation {
	return model.Allocation{Crop: crop, AreaHa: areaHa}
}
