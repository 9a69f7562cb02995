package catalog

import (
	"math"
	"strings"

	"cropopt/internal/model"
)

// NormalizeScale maps v from [min,max] onto [1,3]. A degenerate range maps
// to 1.5.
func NormalizeScale(v, min, max float64, inverse bool) float64 {
	if max == min {
		return 1.5
	}
	normalized := (v - min) / (max - min)
	if inverse {
		normalized = 1 - normalized
	}
	return 1 + normalized*2
}

// Merge appends to base every detailed crop it does not already hold,
// converted to the tabular scale. Cost and water are inverse-scaled so that
// cheaper and drier crops score higher.
func Merge(base, detailed *Catalog) (*Catalog, error) {
	records := base.All()
	existing := make(map[string]struct{}, len(records))
	for _, record := range records {
		existing[tabularKey(record.Name)] = struct{}{}
	}

	source := detailed.records
	if len(source) == 0 {
		return New(records)
	}
	cost := bounds(source, func(r model.CropRecord) float64 { return r.CostPerHa })
	yield := bounds(source, func(r model.CropRecord) float64 { return r.YieldPerHa })
	water := bounds(source, func(r model.CropRecord) float64 { return r.WaterMM })
	ret := bounds(source, func(r model.CropRecord) float64 { return r.ReturnPerHa })

	for _, record := range source {
		name := tabularKey(record.Name)
		if _, ok := existing[name]; ok {
			continue
		}
		existing[name] = struct{}{}
		records = append(records, model.CropRecord{
			Name:           name,
			CostPerHa:      round2(NormalizeScale(record.CostPerHa, cost[0], cost[1], true)),
			YieldPerHa:     round2(NormalizeScale(record.YieldPerHa, yield[0], yield[1], false)),
			WaterMM:        round2(NormalizeScale(record.WaterMM, water[0], water[1], true)),
			ReturnPerHa:    round2(NormalizeScale(record.ReturnPerHa, ret[0], ret[1], false)),
			CycleMinDays:   int(float64(record.CycleMaxDays) * 0.75),
			CycleMaxDays:   record.CycleMaxDays,
			Companion:      lowerAll(record.Positive),
			Antagonistic:   lowerAll(record.Negative),
			MinFootprintM2: record.MinFootprintM2,
		})
	}
	return New(records)
}

func tabularKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}

func lowerAll(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.ToLower(item)
	}
	return out
}

func bounds(records []model.CropRecord, field func(model.CropRecord) float64) [2]float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, record := range records {
		v := field(record)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return [2]float64{lo, hi}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
