package catalog

import (
	"errors"
	"fmt"
	"strings"

	"cropopt/internal/model"
)

var (
	ErrCropNotFound  = errors.New("crop not found in catalog")
	ErrDuplicateCrop = errors.New("duplicate crop name")
)

// Catalog is an immutable, name-indexed table of crop records.
type Catalog struct {
	records []model.CropRecord
	index   map[string]int
}

func New(records []model.CropRecord) (*Catalog, error) {
	c := &Catalog{
		records: make([]model.CropRecord, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.index[record.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCrop, record.Name)
		}
		c.index[record.Name] = len(c.records)
		c.records = append(c.records, record)
	}
	return c, nil
}

// MustNew is New for fixtures and tests.
func MustNew(records []model.CropRecord) *Catalog {
	c, err := New(records)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) FindByName(name string) (model.CropRecord, bool) {
	idx, ok := c.index[name]
	if !ok {
		return model.CropRecord{}, false
	}
	return c.records[idx], true
}

// Lookup is FindByName with an ErrCropNotFound error for missing names.
func (c *Catalog) Lookup(name string) (model.CropRecord, error) {
	record, ok := c.FindByName(name)
	if !ok {
		return model.CropRecord{}, fmt.Errorf("%w: %s", ErrCropNotFound, name)
	}
	return record, nil
}

// All returns the records in load order.
func (c *Catalog) All() []model.CropRecord {
	out := make([]model.CropRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.records))
	for _, record := range c.records {
		names = append(names, record.Name)
	}
	return names
}

func (c *Catalog) Len() int {
	return len(c.records)
}

// Admissible reports whether the crop tolerates the site's region, soil pH
// and ambient temperature. Bounds are inclusive.
func Admissible(record model.CropRecord, site model.Site) bool {
	regionOK := false
	for _, region := range record.Regions {
		if region == model.AllRegions || region == site.Region {
			regionOK = true
			break
		}
	}
	if !regionOK {
		return false
	}
	if site.SoilPH < record.PHMin || site.SoilPH > record.PHMax {
		return false
	}
	if site.Temperature < record.TempMin || site.Temperature > record.TempMax {
		return false
	}
	return true
}

// Filter returns the records admissible at site, in load order.
func (c *Catalog) Filter(site model.Site) []model.CropRecord {
	out := make([]model.CropRecord, 0, len(c.records))
	for _, record := range c.records {
		if Admissible(record, site) {
			out = append(out, record)
		}
	}
	return out
}

// ParseList splits a compatibility or region cell into trimmed tokens.
// Placeholder tokens for "no entries" are dropped.
func ParseList(raw string, separators string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.TrimSpace(field)
		switch strings.ToLower(token) {
		case "", "nan", "none", "nenhuma":
			continue
		}
		out = append(out, token)
	}
	return out
}

// Contains reports exact token membership.
func Contains(list []string, token string) bool {
	for _, item := range list {
		if item == token {
			return true
		}
	}
	return false
}
