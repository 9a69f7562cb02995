package catalog

import "strings"

// CategorySets lists the externally supplied categorical memberships.
// Annual and cover-crop membership are derived from the catalog itself.
type CategorySets struct {
	ShadeProducing    []string `json:"shade_producing" yaml:"shade_producing" toml:"shade_producing"`
	Native            []string `json:"native" yaml:"native" toml:"native"`
	CompetitiveExotic []string `json:"competitive_exotic" yaml:"competitive_exotic" toml:"competitive_exotic"`
	InvasiveExotic    []string `json:"invasive_exotic" yaml:"invasive_exotic" toml:"invasive_exotic"`
}

func DefaultCategorySets() CategorySets {
	return CategorySets{
		ShadeProducing: []string{
			"Eucalipto", "Seringueira", "Jatobá", "Pinus", "Acácia", "Coco", "Dendê", "Pecan",
			"Cacau", "Banana", "Manga", "Abacate", "Caju", "Graviola", "Pupunha", "Guaraná",
			"Araticum", "Laranja", "Limão", "Uva", "Maçã", "Pêssego",
		},
		Native:            []string{"Araticum", "Guaraná", "Jatobá", "Pinhão", "Erva_Mate"},
		CompetitiveExotic: []string{"Eucalipto", "Pinus", "Acácia"},
	}
}

var coverCropTypes = map[string]struct{}{
	"green-manure":   {},
	"cover-crop":     {},
	"adubacao_verde": {},
}

// Categories answers the membership predicates used by the rule scorer and
// the validator. Sets are precomputed once.
type Categories struct {
	shade       map[string]struct{}
	annual      map[string]struct{}
	cover       map[string]struct{}
	native      map[string]struct{}
	competitive map[string]struct{}
	invasive    map[string]struct{}
}

func NewCategories(c *Catalog, sets CategorySets) *Categories {
	cats := &Categories{
		shade:       toSet(sets.ShadeProducing),
		annual:      make(map[string]struct{}),
		cover:       make(map[string]struct{}),
		native:      toSet(sets.Native),
		competitive: toSet(sets.CompetitiveExotic),
		invasive:    toSet(sets.InvasiveExotic),
	}
	if c == nil {
		return cats
	}
	for _, record := range c.records {
		if record.CycleMaxDays <= 365 {
			cats.annual[record.Name] = struct{}{}
		}
		if _, ok := coverCropTypes[strings.ToLower(strings.TrimSpace(record.CropType))]; ok {
			cats.cover[record.Name] = struct{}{}
		}
	}
	return cats
}

// A nil *Categories answers false for every predicate.
func (c *Categories) IsShadeProducing(name string) bool { return c != nil && has(c.shade, name) }
func (c *Categories) IsAnnual(name string) bool         { return c != nil && has(c.annual, name) }
func (c *Categories) IsCoverCrop(name string) bool      { return c != nil && has(c.cover, name) }
func (c *Categories) IsNative(name string) bool         { return c != nil && has(c.native, name) }

func (c *Categories) IsCompetitiveExotic(name string) bool {
	return c != nil && has(c.competitive, name)
}

func (c *Categories) IsInvasiveExotic(name string) bool {
	return c != nil && has(c.invasive, name)
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}

func has(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}
