package dto

import (
	"time"

	"github.com/noah-isme/learning-portal-api/internal/catalog"
	"github.com/noah-isme/learning-portal-api/internal/models"
)

// CourseCard is a catalog entry as shown to students.
type CourseCard struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	IsFree         bool      `json:"is_free"`
	Price          float64   `json:"price"`
	EffectivePrice float64   `json:"effective_price"`
	CreatorName    string    `json:"creator_name"`
	ThumbnailURL   *string   `json:"thumbnail_url,omitempty"`
	HasVideo       bool      `json:"has_video"`
	HasMaterials   bool      `json:"has_materials"`
	Enrolled       bool      `json:"enrolled"`
	CreatedAt      time.Time `json:"created_at"`
}

// CatalogResponse is one evaluated catalog page.
type CatalogResponse struct {
	ViewID      string             `json:"view_id,omitempty"`
	State       models.FilterState `json:"state"`
	Status      catalog.Status     `json:"status"`
	Error       string             `json:"error,omitempty"`
	Courses     []CourseCard       `json:"courses"`
	Creators    []string           `json:"creators"`
	Generation  uint64             `json:"generation"`
	EvaluatedAt *time.Time         `json:"evaluated_at,omitempty"`
}

// CourseMaterials are the gated links of a course.
type CourseMaterials struct {
	NotesURL *string `json:"notes_url,omitempty"`
	PYQURL   *string `json:"pyq_url,omitempty"`
	VideoURL *string `json:"video_url,omitempty"`
}

// CourseDetail is the course page. Materials is nil while Locked.
type CourseDetail struct {
	CourseCard
	Locked    bool             `json:"locked"`
	Materials *CourseMaterials `json:"materials,omitempty"`
}

// NewCourseCard builds a card from a catalog course. Free courses always show a price of 0.
func NewCourseCard(c models.CatalogCourse, enrolled bool) CourseCard {
	return CourseCard{
		ID:             c.ID,
		Code:           c.Code,
		Name:           c.Name,
		Description:    c.Description,
		IsFree:         c.IsFree,
		Price:          c.EffectivePrice(),
		EffectivePrice: c.EffectivePrice(),
		CreatorName:    c.CreatorName,
		ThumbnailURL:   c.ThumbnailURL,
		HasVideo:       c.HasVideo(),
		HasMaterials:   c.HasMaterials(),
		Enrolled:       enrolled,
		CreatedAt:      c.CreatedAt,
	}
}

// NewCourseCards maps courses to cards. enrolled may be nil.
func NewCourseCards(courses []models.CatalogCourse, enrolled func(courseID string) bool) []CourseCard {
	cards := make([]CourseCard, 0, len(courses))
	for _, c := range courses {
		cards = append(cards, NewCourseCard(c, enrolled != nil && enrolled(c.ID)))
	}
	return cards
}

// NewCatalogResponse maps an engine result.
func NewCatalogResponse(viewID string, result catalog.Result, enrolled func(courseID string) bool) CatalogResponse {
	resp := CatalogResponse{
		ViewID:     viewID,
		State:      result.State,
		Status:     result.Status,
		Error:      result.Error,
		Courses:    NewCourseCards(result.Courses, enrolled),
		Creators:   result.Creators,
		Generation: result.Generation,
	}
	if resp.Creators == nil {
		resp.Creators = []string{}
	}
	if !result.EvaluatedAt.IsZero() {
		at := result.EvaluatedAt
		resp.EvaluatedAt = &at
	}
	return resp
}

// NewCourseDetail builds the course page. Material links are only exposed when unlocked.
func NewCourseDetail(c models.CatalogCourse, enrolled, unlocked bool) CourseDetail {
	detail := CourseDetail{CourseCard: NewCourseCard(c, enrolled), Locked: !unlocked}
	if unlocked {
		detail.Materials = &CourseMaterials{NotesURL: c.NotesURL, PYQURL: c.PYQURL, VideoURL: c.VideoURL}
	}
	return detail
}
