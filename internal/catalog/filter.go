// Package catalog evaluates the course catalog pipeline for a FilterState.
//
// Evaluation runs in four stages: the repository predicates (pricing model,
// price bucket, search text), the content-type filter, the creator filter and
// newest-first ordering. The creator list offered to the user is derived from
// the first stage only.
package catalog

import (
	"sort"
	"strings"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

// Stage1Query extracts the predicates pushed down to the course repository.
func Stage1Query(state models.FilterState) models.CatalogQuery {
	basic := state.BasicFilter
	if basic == "" {
		basic = models.BasicAll
	}
	price := state.PriceRange
	if price == "" {
		price = models.PriceAll
	}
	return models.CatalogQuery{
		Basic:      basic,
		PriceRange: price,
		Search:     strings.TrimSpace(state.SearchTerm),
	}
}

// MatchesQuery applies the stage-1 predicates in memory. Prices are compared on the
// effective price, so a free course only ever falls into the under500 bucket.
func MatchesQuery(course models.Course, query models.CatalogQuery) bool {
	switch query.Basic {
	case models.BasicFree:
		if !course.IsFree {
			return false
		}
	case models.BasicPaid:
		if course.IsFree {
			return false
		}
	}
	if !query.PriceRange.Contains(course.EffectivePrice()) {
		return false
	}
	if query.Search != "" {
		needle := strings.ToLower(query.Search)
		if !strings.Contains(strings.ToLower(course.Name), needle) &&
			!strings.Contains(strings.ToLower(course.Code), needle) {
			return false
		}
	}
	return true
}

// FilterQuery returns the courses matching the stage-1 predicates.
func FilterQuery(courses []models.CatalogCourse, query models.CatalogQuery) []models.CatalogCourse {
	out := make([]models.CatalogCourse, 0, len(courses))
	for _, course := range courses {
		if MatchesQuery(course.Course, query) {
			out = append(out, course)
		}
	}
	return out
}

// FilterContent keeps courses by attached content. With both flags set any content
// qualifies; with neither the input is returned unchanged.
func FilterContent(courses []models.CatalogCourse, hasVideo, hasMaterials bool) []models.CatalogCourse {
	var keep func(models.Course) bool
	switch {
	case hasVideo && hasMaterials:
		keep = func(c models.Course) bool { return c.HasVideo() || c.HasMaterials() }
	case hasVideo:
		keep = models.Course.HasVideo
	case hasMaterials:
		keep = models.Course.HasMaterials
	default:
		return courses
	}

	out := make([]models.CatalogCourse, 0, len(courses))
	for _, course := range courses {
		if keep(course.Course) {
			out = append(out, course)
		}
	}
	return out
}

// FilterCreator keeps courses whose creator name equals creator exactly.
// An empty creator disables the filter.
func FilterCreator(courses []models.CatalogCourse, creator string) []models.CatalogCourse {
	if creator == "" {
		return courses
	}
	out := make([]models.CatalogCourse, 0, len(courses))
	for _, course := range courses {
		if course.CreatorName == creator {
			out = append(out, course)
		}
	}
	return out
}

// SortNewestFirst orders courses by creation time, most recent first. Ties keep
// their input order. The input slice is not modified.
func SortNewestFirst(courses []models.CatalogCourse) []models.CatalogCourse {
	out := make([]models.CatalogCourse, len(courses))
	copy(out, courses)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// DistinctCreators returns the sorted set of non-empty creator names.
func DistinctCreators(courses []models.CatalogCourse) []string {
	seen := make(map[string]struct{}, len(courses))
	creators := make([]string, 0, len(courses))
	for _, course := range courses {
		name := course.CreatorName
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		creators = append(creators, name)
	}
	sort.Strings(creators)
	return creators
}

// Apply runs stages 2 to 4 over the stage-1 output.
func Apply(stage1 []models.CatalogCourse, state models.FilterState) []models.CatalogCourse {
	courses := FilterContent(stage1, state.HasVideo, state.HasMaterials)
	courses = FilterCreator(courses, state.Creator)
	return SortNewestFirst(courses)
}
