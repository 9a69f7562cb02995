package model

import "fmt"

// SquareMetersPerHectare converts plan areas (hectares) to footprint units (m²).
const SquareMetersPerHectare = 10000.0

// AllRegions is the adapted-region sentinel admitting every planting region.
const AllRegions = "all-regions"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// CropRecord is one catalog row. Detailed catalogs carry agronomic units
// (currency/ha, t/ha, mm); tabular catalogs carry 1-3 normalized scores in the
// same fields plus the four compatibility buckets.
type CropRecord struct {
	Name           string   `json:"name"`
	ProfitPerHa    float64  `json:"profit_per_ha"`
	YieldPerHa     float64  `json:"yield_per_ha"`
	CostPerHa      float64  `json:"cost_per_ha"`
	WaterMM        float64  `json:"water_mm"`
	ReturnPerHa    float64  `json:"return_per_ha,omitempty"`
	CycleMinDays   int      `json:"cycle_min_days"`
	CycleMaxDays   int      `json:"cycle_max_days"`
	MinFootprintM2 float64  `json:"min_footprint_m2"`
	PlantingSeason string   `json:"planting_season,omitempty"`
	Regions        []string `json:"regions,omitempty"`
	PHMin          float64  `json:"ph_min"`
	PHMax          float64  `json:"ph_max"`
	TempMin        float64  `json:"temp_min"`
	TempMax        float64  `json:"temp_max"`
	Positive       []string `json:"positive,omitempty"`
	Negative       []string `json:"negative,omitempty"`
	CropType       string   `json:"crop_type,omitempty"`

	Synergy      []string `json:"synergy,omitempty"`
	Companion    []string `json:"companion,omitempty"`
	Neutral      []string `json:"neutral,omitempty"`
	Antagonistic []string `json:"antagonistic,omitempty"`
}

// Perennial reports whether the crop's longest life cycle exceeds one year.
func (c CropRecord) Perennial() bool {
	return c.CycleMaxDays > 365
}

// Validate checks the declared ranges.
func (c CropRecord) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("crop name is required")
	}
	if c.CycleMinDays > c.CycleMaxDays {
		return fmt.Errorf("crop %s: cycle min %d > max %d", c.Name, c.CycleMinDays, c.CycleMaxDays)
	}
	if c.PHMin > c.PHMax {
		return fmt.Errorf("crop %s: ph min %.2f > max %.2f", c.Name, c.PHMin, c.PHMax)
	}
	if c.TempMin > c.TempMax {
		return fmt.Errorf("crop %s: temperature min %.2f > max %.2f", c.Name, c.TempMin, c.TempMax)
	}
	return nil
}

// Site is the environmental context a crop is evaluated under.
type Site struct {
	Region      string  `json:"region" yaml:"region" toml:"region"`
	SoilPH      float64 `json:"soil_ph" yaml:"soil_ph" toml:"soil_ph"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
}

type PopulationRecord struct {
	VersionedRecord
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	Generation int    `json:"generation"`
	Plans      []Plan `json:"plans"`
}

type GenerationDiagnostics struct {
	Generation    int     `json:"generation"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	PopulationLen int     `json:"population_len"`
	ValidPlans    int     `json:"valid_plans"`
	DistinctPlans int     `json:"distinct_plans"`
}

type TopPlanRecord struct {
	VersionedRecord
	Rank       int      `json:"rank"`
	Fitness    float64  `json:"fitness"`
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
	Plan       Plan     `json:"plan"`
}
