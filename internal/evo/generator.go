package evo

import (
	"io"
	"log/slog"
	"math"
	"math/rand"

	"cropopt/internal/catalog"
	"cropopt/internal/metrics"
	"cropopt/internal/model"
)

const (
	maxGenerationAttempts = 50
	maxAllocations        = 10
	maxShareOfTotal       = 0.5
	areaGranularityM2     = 100.0
	defaultFootprintM2    = 1.0
)

// Generator builds random plans from the crops admissible at a site.
type Generator struct {
	Catalog *catalog.Catalog
	Logger  *slog.Logger
}

func NewGenerator(c *catalog.Catalog, logger *slog.Logger) *Generator {
	return &Generator{Catalog: c, Logger: logger}
}

// Generate draws allocations in square meters and returns them in hectares.
// Each attempt draws a crop index and, only when the crop fits under the
// ceiling, an area. The loop is bounded by maxGenerationAttempts.
func (g *Generator) Generate(rng *rand.Rand, site model.Site, totalAreaHa float64) model.Plan {
	plan := model.Plan{Site: site}
	candidates := g.Catalog.Filter(site)
	if len(candidates) == 0 {
		g.logger().Warn("no admissible crop for site; falling back to full catalog",
			"region", site.Region,
			"ph", site.SoilPH,
			"temperature", site.Temperature,
		)
		metrics.ObserveGenerationFallback()
		candidates = g.Catalog.All()
	}
	if len(candidates) == 0 {
		return plan
	}

	totalM2 := totalAreaHa * model.SquareMetersPerHectare
	remaining := totalM2
	areas := make([]float64, 0, maxAllocations)

	for attempts := maxGenerationAttempts; remaining > areaGranularityM2 && attempts > 0; attempts-- {
		record := candidates[rng.Intn(len(candidates))]
		footprint := record.MinFootprintM2
		if footprint <= 0 {
			footprint = defaultFootprintM2
		}
		ceiling := math.Min(remaining, maxShareOfTotal*totalM2)
		if footprint > ceiling {
			continue
		}

		area := footprint + rng.Float64()*(ceiling-footprint)
		area = math.Round(area/areaGranularityM2) * areaGranularityM2
		if area > 0 {
			plan.Allocations = append(plan.Allocations, model.Allocation{
				Crop:           record.Name,
				PlantingSeason: record.PlantingSeason,
			})
			areas = append(areas, area)
			remaining -= area
		}
		if len(plan.Allocations) >= maxAllocations {
			break
		}
	}

	// Rounding can overshoot the remainder by under half a granule, so the
	// correction is signed.
	if n := len(areas); n > 0 && remaining != 0 {
		areas[n-1] += remaining
	}
	for i := range plan.Allocations {
		plan.Allocations[i].AreaHa = areas[i] / model.SquareMetersPerHectare
	}
	return plan
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return discardLogger
	}
	return g.Logger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
