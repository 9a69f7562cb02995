package model

// Allocation is one gene of a plan: a crop planted on an area in hectares.
// Site overrides the plan-global site when set.
type Allocation struct {
	Crop           string  `json:"crop"`
	AreaHa         float64 `json:"area_ha"`
	PlantingSeason string  `json:"planting_season,omitempty"`
	Site           *Site   `json:"site,omitempty"`
}

// Plan is one candidate land-use layout (an individual).
type Plan struct {
	Site        Site         `json:"site"`
	Allocations []Allocation `json:"allocations"`
}

// SiteFor returns the context allocation i is evaluated under.
func (p Plan) SiteFor(i int) Site {
	if site := p.Allocations[i].Site; site != nil {
		return *site
	}
	return p.Site
}

func (p Plan) TotalArea() float64 {
	total := 0.0
	for _, a := range p.Allocations {
		total += a.AreaHa
	}
	return total
}

func (p Plan) Names() []string {
	names := make([]string, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		names = append(names, a.Crop)
	}
	return names
}

func (p Plan) Contains(crop string) bool {
	for _, a := range p.Allocations {
		if a.Crop == crop {
			return true
		}
	}
	return false
}

// Clone deep-copies the plan so offspring never alias a parent's slices.
func (p Plan) Clone() Plan {
	out := Plan{Site: p.Site, Allocations: make([]Allocation, len(p.Allocations))}
	for i, a := range p.Allocations {
		out.Allocations[i] = a.clone()
	}
	return out
}

// WithAllocation returns a copy of the plan with allocation i replaced.
func (p Plan) WithAllocation(i int, a Allocation) Plan {
	out := p.Clone()
	out.Allocations[i] = a.clone()
	return out
}

// Equal reports full content equality.
func (p Plan) Equal(other Plan) bool {
	if p.Site != other.Site || len(p.Allocations) != len(other.Allocations) {
		return false
	}
	for i := range p.Allocations {
		if !p.Allocations[i].Equal(other.Allocations[i]) {
			return false
		}
	}
	return true
}

func (a Allocation) Equal(other Allocation) bool {
	if a.Crop != other.Crop || a.AreaHa != other.AreaHa || a.PlantingSeason != other.PlantingSeason {
		return false
	}
	switch {
	case a.Site == nil && other.Site == nil:
		return true
	case a.Site == nil || other.Site == nil:
		return false
	default:
		return *a.Site == *other.Site
	}
}

func (a Allocation) clone() Allocation {
	if a.Site != nil {
		site := *a.Site
		a.Site = &site
	}
	return a
}
