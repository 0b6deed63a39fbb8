package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceRangeContains(t *testing.T) {
	cases := []struct {
		rng   PriceRange
		price float64
		want  bool
	}{
		{PriceUnder500, 0, true},
		{PriceUnder500, 499.99, true},
		{PriceUnder500, 500, false},
		{Price500To1000, 500, true},
		{Price500To1000, 1000, true},
		{Price500To1000, 1000.01, false},
		{PriceOver1000, 1000, true},
		{PriceOver1000, 999, false},
		{PriceAll, 123456, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.rng.Contains(tc.price), "%s %.2f", tc.rng, tc.price)
	}
}

func TestEffectivePriceIgnoresStoredPriceForFreeCourses(t *testing.T) {
	course := Course{IsFree: true, Price: 499}
	assert.Equal(t, 0.0, course.EffectivePrice())

	course.IsFree = false
	assert.Equal(t, 499.0, course.EffectivePrice())
}

func TestFilterPatchApply(t *testing.T) {
	term := "cs"
	basic := "PAID"
	video := true
	price := "bogus"

	state := FilterPatch{SearchTerm: &term, BasicFilter: &basic, HasVideo: &video, PriceRange: &price}.Apply(DefaultFilterState())

	assert.Equal(t, "cs", state.SearchTerm)
	assert.Equal(t, BasicPaid, state.BasicFilter)
	assert.True(t, state.HasVideo)
	assert.False(t, state.HasMaterials)
	assert.Equal(t, PriceAll, state.PriceRange)
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("teacher")
	assert.False(t, ok)
}
