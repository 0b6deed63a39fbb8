package models

import "strings"

// BasicFilter narrows the catalog by pricing model.
type BasicFilter string

const (
	BasicAll  BasicFilter = "all"
	BasicFree BasicFilter = "free"
	BasicPaid BasicFilter = "paid"
)

// PriceRange narrows the catalog by effective price bucket.
type PriceRange string

const (
	PriceAll       PriceRange = "all"
	PriceUnder500  PriceRange = "under500"
	Price500To1000 PriceRange = "500to1000"
	PriceOver1000  PriceRange = "over1000"
)

const (
	priceLowerBound = 500
	priceUpperBound = 1000
)

// ParseBasicFilter falls back to BasicAll for unknown input.
func ParseBasicFilter(raw string) BasicFilter {
	switch BasicFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case BasicFree:
		return BasicFree
	case BasicPaid:
		return BasicPaid
	default:
		return BasicAll
	}
}

// ParsePriceRange falls back to PriceAll for unknown input.
func ParsePriceRange(raw string) PriceRange {
	switch PriceRange(strings.ToLower(strings.TrimSpace(raw))) {
	case PriceUnder500:
		return PriceUnder500
	case Price500To1000:
		return Price500To1000
	case PriceOver1000:
		return PriceOver1000
	default:
		return PriceAll
	}
}

// Contains reports whether price falls inside the bucket. The 500to1000 and over1000
// buckets both include 1000.
func (r PriceRange) Contains(price float64) bool {
	switch r {
	case PriceUnder500:
		return price < priceLowerBound
	case Price500To1000:
		return price >= priceLowerBound && price <= priceUpperBound
	case PriceOver1000:
		return price >= priceUpperBound
	default:
		return true
	}
}

// FilterState is the complete set of search and filter parameters for one catalog view.
type FilterState struct {
	SearchTerm   string      `json:"search_term"`
	BasicFilter  BasicFilter `json:"basic_filter"`
	Creator      string      `json:"creator,omitempty"`
	HasVideo     bool        `json:"has_video"`
	HasMaterials bool        `json:"has_materials"`
	PriceRange   PriceRange  `json:"price_range"`
}

// DefaultFilterState returns the state of a freshly opened catalog.
func DefaultFilterState() FilterState {
	return FilterState{BasicFilter: BasicAll, PriceRange: PriceAll}
}

// FilterPatch carries partial FilterState changes. Nil fields are left untouched.
type FilterPatch struct {
	SearchTerm   *string `json:"search_term"`
	BasicFilter  *string `json:"basic_filter"`
	Creator      *string `json:"creator"`
	HasVideo     *bool   `json:"has_video"`
	HasMaterials *bool   `json:"has_materials"`
	PriceRange   *string `json:"price_range"`
}

// Apply returns a copy of state with the patch applied.
func (p FilterPatch) Apply(state FilterState) FilterState {
	if p.SearchTerm != nil {
		state.SearchTerm = *p.SearchTerm
	}
	if p.BasicFilter != nil {
		state.BasicFilter = ParseBasicFilter(*p.BasicFilter)
	}
	if p.Creator != nil {
		state.Creator = *p.Creator
	}
	if p.HasVideo != nil {
		state.HasVideo = *p.HasVideo
	}
	if p.HasMaterials != nil {
		state.HasMaterials = *p.HasMaterials
	}
	if p.PriceRange != nil {
		state.PriceRange = ParsePriceRange(*p.PriceRange)
	}
	return state
}

// CatalogQuery holds the predicates pushed down to the course repository.
type CatalogQuery struct {
	Basic      BasicFilter `json:"basic"`
	PriceRange PriceRange  `json:"price_range"`
	Search     string      `json:"search"`
}
