package evo

import (
	"fmt"
	"math"

	"cropopt/internal/catalog"
	"cropopt/internal/model"
)

const (
	areaTolerance         = 0.01
	footprintCheckFloorM2 = 1.0
)

// Validator reports structural violations of a plan. It never fails: every
// check runs and each failure is appended as a message.
type Validator struct {
	Catalog     *catalog.Catalog
	Categories  *catalog.Categories
	TotalAreaHa float64
}

func (v Validator) Validate(plan model.Plan) (bool, []string) {
	if len(plan.Allocations) == 0 {
		return false, []string{"plan has no allocations"}
	}
	violations := make([]string, 0)

	if used := plan.TotalArea(); math.Abs(used-v.TotalAreaHa) > areaTolerance {
		violations = append(violations, fmt.Sprintf("allocated area %.2f ha differs from total area %.2f ha", used, v.TotalAreaHa))
	}

	records := make([]model.CropRecord, len(plan.Allocations))
	found := make([]bool, len(plan.Allocations))
	for i, a := range plan.Allocations {
		record, ok := v.Catalog.FindByName(a.Crop)
		if !ok {
			violations = append(violations, fmt.Sprintf("crop %q not found in catalog", a.Crop))
			continue
		}
		records[i], found[i] = record, true

		if !catalog.Admissible(record, plan.SiteFor(i)) {
			site := plan.SiteFor(i)
			violations = append(violations, fmt.Sprintf("crop %q is not adapted to region %s (pH %.1f, %.1f°C)",
				a.Crop, site.Region, site.SoilPH, site.Temperature))
		}
		areaM2 := a.AreaHa * model.SquareMetersPerHectare
		if record.MinFootprintM2 > footprintCheckFloorM2 && areaM2 < record.MinFootprintM2 {
			violations = append(violations, fmt.Sprintf("crop %q requires at least %.2f m² but has %.2f m²",
				a.Crop, record.MinFootprintM2, areaM2))
		}
	}

	for i := range plan.Allocations {
		if !found[i] {
			continue
		}
		a := records[i]
		for j := range plan.Allocations {
			if i == j || !found[j] {
				continue
			}
			b := records[j]
			if catalog.Contains(a.Negative, b.Name) {
				violations = append(violations, fmt.Sprintf("direct incompatibility: %q and %q", a.Name, b.Name))
			}
			if catalog.Contains(a.Negative, catalog.TokenShadeIntolerant) && v.Categories.IsShadeProducing(b.Name) {
				violations = append(violations, fmt.Sprintf("shade conflict: %q does not tolerate shade from %q", a.Name, b.Name))
			}
			if a.Perennial() && catalog.Contains(a.Negative, catalog.TokenConflictsAnnuals) && v.Categories.IsAnnual(b.Name) {
				violations = append(violations, fmt.Sprintf("cycle conflict: perennial %q with annual %q", a.Name, b.Name))
			}
			if catalog.Contains(a.Negative, catalog.TokenConflictsCompetitive) && v.Categories.IsCompetitiveExotic(b.Name) {
				violations = append(violations, fmt.Sprintf("competition conflict: %q with competitive exotic %q", a.Name, b.Name))
			}
		}
	}
	return len(violations) == 0, violations
}
