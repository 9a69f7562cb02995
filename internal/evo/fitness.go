package evo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"cropopt/internal/catalog"
	"cropopt/internal/compat"
	"cropopt/internal/metrics"
	"cropopt/internal/model"
)

const (
	ModeDetailed = "detailed"
	ModeTabular  = "tabular"
)

const (
	missingCropPenalty    = 100000.0
	inadmissiblePenaltyHa = 5000.0
	shortfallPenaltyHa    = 5000.0
	shortfallTolerance    = 0.001
	incompatiblePenaltyHa = 2000.0
	compatibleBonusHa     = 1000.0
	profitWeight          = 1.0
	yieldWeight           = 0.5
	productionWeight      = 0.6
	compatibilityWeight   = 0.4
	exceededLimitFactor   = 0.01
	withinLimitFactor     = 1.0
)

var (
	ErrZeroFootprint     = errors.New("crop has zero minimum footprint")
	ErrEvaluatorNotFound = errors.New("evaluator not found")
)

// Evaluator scores a plan; higher is better and the scale is unbounded.
type Evaluator interface {
	Name() string
	Evaluate(plan model.Plan) (float64, error)
}

// DetailedBreakdown itemizes the additive terms of a detailed evaluation.
type DetailedBreakdown struct {
	Profit   float64  `json:"profit"`
	Yield    float64  `json:"yield"`
	Penalty  float64  `json:"penalty"`
	Bonus    float64  `json:"bonus"`
	UsedArea float64  `json:"used_area_ha"`
	Missing  []string `json:"missing,omitempty"`
}

func (b DetailedBreakdown) Fitness() float64 {
	return profitWeight*b.Profit + yieldWeight*b.Yield - b.Penalty + b.Bonus
}

// DetailedEvaluator scores plans against agronomic catalog values with
// additive penalties and bonuses. Unknown crops are penalized, not reported.
type DetailedEvaluator struct {
	Catalog     *catalog.Catalog
	Policy      compat.Policy
	TotalAreaHa float64
}

func (DetailedEvaluator) Name() string {
	return ModeDetailed
}

func (e DetailedEvaluator) Evaluate(plan model.Plan) (float64, error) {
	metrics.ObserveEvaluation(ModeDetailed)
	return e.Breakdown(plan).Fitness(), nil
}

func (e DetailedEvaluator) Breakdown(plan model.Plan) DetailedBreakdown {
	var out DetailedBreakdown
	records := make([]model.CropRecord, len(plan.Allocations))
	found := make([]bool, len(plan.Allocations))
	for i, a := range plan.Allocations {
		records[i], found[i] = e.Catalog.FindByName(a.Crop)
	}

	for i, a := range plan.Allocations {
		out.UsedArea += a.AreaHa
		if !found[i] {
			out.Penalty += missingCropPenalty
			out.Missing = append(out.Missing, a.Crop)
			continue
		}
		record := records[i]
		out.Profit += record.ProfitPerHa * a.AreaHa
		out.Yield += record.YieldPerHa * a.AreaHa

		if !catalog.Admissible(record, plan.SiteFor(i)) {
			out.Penalty += inadmissiblePenaltyHa * a.AreaHa
		}

		// Ordered pairs: each unordered pair is scored from both sides.
		for j, b := range plan.Allocations {
			if i == j || !found[j] {
				continue
			}
			score := e.Policy.Score(record, records[j])
			switch {
			case score < 0:
				out.Penalty += -score * incompatiblePenaltyHa * (a.AreaHa + b.AreaHa)
			case score > 0:
				out.Bonus += score * compatibleBonusHa * (a.AreaHa + b.AreaHa)
			}
		}
	}

	if shortfall := e.TotalAreaHa - out.UsedArea; shortfall > shortfallTolerance {
		out.Penalty += shortfallPenaltyHa * shortfall
	}
	return out
}

// Limits are the resource bounds of a tabular evaluation.
type Limits struct {
	Budget          float64 `json:"budget" yaml:"budget" toml:"budget"`
	Water           float64 `json:"water" yaml:"water" toml:"water"`
	AvailableAreaM2 float64 `json:"available_area_m2" yaml:"available_area_m2" toml:"available_area_m2"`
	WindowDays      int     `json:"window_days" yaml:"window_days" toml:"window_days"`
}

// TabularBreakdown itemizes a tabular evaluation.
type TabularBreakdown struct {
	Production       float64 `json:"production"`
	RawCompatibility float64 `json:"raw_compatibility"`
	Compatibility    float64 `json:"compatibility"`
	Weighted         float64 `json:"weighted"`
	TotalCost        float64 `json:"total_cost"`
	TotalWater       float64 `json:"total_water"`
	TotalFootprintM2 float64 `json:"total_footprint_m2"`
	LongestCycleDays int     `json:"longest_cycle_days"`
	Economic         float64 `json:"economic_factor"`
	Ecological       float64 `json:"ecological_factor"`
}

func (b TabularBreakdown) Fitness() float64 {
	return Compose(b.Weighted, b.Economic, b.Ecological)
}

// TabularEvaluator scores plans against a normalized (1-3 scale) catalog
// with multiplicative penalty factors. Unknown crops and zero footprints are
// data errors.
type TabularEvaluator struct {
	Catalog *catalog.Catalog
	Policy  compat.Policy
	Limits  Limits
}

func (TabularEvaluator) Name() string {
	return ModeTabular
}

func (e TabularEvaluator) Evaluate(plan model.Plan) (float64, error) {
	metrics.ObserveEvaluation(ModeTabular)
	breakdown, err := e.Breakdown(plan)
	if err != nil {
		return 0, err
	}
	return breakdown.Fitness(), nil
}

func (e TabularEvaluator) Breakdown(plan model.Plan) (TabularBreakdown, error) {
	var out TabularBreakdown
	records := make([]model.CropRecord, len(plan.Allocations))
	distinct := make(map[string]model.CropRecord, len(plan.Allocations))
	for i, a := range plan.Allocations {
		record, err := e.Catalog.Lookup(a.Crop)
		if err != nil {
			return TabularBreakdown{}, fmt.Errorf("tabular evaluation: %w", err)
		}
		if record.MinFootprintM2 == 0 {
			return TabularBreakdown{}, fmt.Errorf("%w: %s", ErrZeroFootprint, record.Name)
		}
		records[i] = record
		distinct[record.Name] = record
	}
	names := make([]string, 0, len(distinct))
	for name := range distinct {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, record := range records {
		out.Production += record.YieldPerHa / record.MinFootprintM2
		out.TotalCost += record.CostPerHa
		out.TotalWater += record.WaterMM
		out.TotalFootprintM2 += record.MinFootprintM2
		if record.CycleMaxDays > out.LongestCycleDays {
			out.LongestCycleDays = record.CycleMaxDays
		}
		// Relations are read from the other crop's lists.
		for _, name := range names {
			if name == record.Name {
				continue
			}
			out.RawCompatibility += e.Policy.Score(distinct[name], record)
		}
	}

	out.Compatibility = ClampUnit(out.RawCompatibility)
	out.Weighted = productionWeight*out.Production + compatibilityWeight*out.Compatibility

	out.Economic = withinLimitFactor
	if out.TotalCost >= e.Limits.Budget {
		out.Economic = exceededLimitFactor
	}
	out.Economic += 1 - out.TotalFootprintM2/e.Limits.AvailableAreaM2

	out.Ecological = withinLimitFactor
	if out.TotalWater >= e.Limits.Water {
		out.Ecological = exceededLimitFactor
	}
	if out.LongestCycleDays > e.Limits.WindowDays {
		out.Ecological += 1 - float64(e.Limits.WindowDays)/float64(out.LongestCycleDays)
	}
	return out, nil
}

// Compose multiplies the weighted score by both penalty factors.
func Compose(weighted, economic, ecological float64) float64 {
	return weighted * economic * ecological
}

// ClampUnit maps x <= 0 to 0 and x >= 1 to 1.
func ClampUnit(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}

// EvaluatorConfig carries everything either evaluator may need.
type EvaluatorConfig struct {
	Catalog     *catalog.Catalog
	Policy      compat.Policy
	TotalAreaHa float64
	Limits      Limits
}

func NewEvaluator(mode string, cfg EvaluatorConfig) (Evaluator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Policy == nil {
		return nil, fmt.Errorf("compatibility policy is required")
	}
	switch mode {
	case ModeDetailed:
		return DetailedEvaluator{Catalog: cfg.Catalog, Policy: cfg.Policy, TotalAreaHa: cfg.TotalAreaHa}, nil
	case ModeTabular:
		if cfg.Limits.AvailableAreaM2 <= 0 {
			return nil, fmt.Errorf("available area must be > 0")
		}
		return TabularEvaluator{Catalog: cfg.Catalog, Policy: cfg.Policy, Limits: cfg.Limits}, nil
	default:
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrEvaluatorNotFound, mode, EvaluatorNames())
	}
}

func EvaluatorNames() []string {
	return []string{ModeDetailed, ModeTabular}
}
