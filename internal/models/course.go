package models

import "time"

// Course is a catalog item.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	IsFree       bool      `db:"is_free" json:"is_free"`
	Price        float64   `db:"price" json:"price"`
	NotesURL     *string   `db:"notes_url" json:"notes_url,omitempty"`
	PYQURL       *string   `db:"pyq_url" json:"pyq_url,omitempty"`
	VideoURL     *string   `db:"video_url" json:"video_url,omitempty"`
	ThumbnailURL *string   `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	CreatorID    string    `db:"creator_id" json:"creator_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// EffectivePrice is the price a student pays. Free courses always cost 0.
func (c Course) EffectivePrice() float64 {
	if c.IsFree {
		return 0
	}
	return c.Price
}

// HasVideo reports whether a video link is present.
func (c Course) HasVideo() bool { return present(c.VideoURL) }

// HasNotes reports whether a notes link is present.
func (c Course) HasNotes() bool { return present(c.NotesURL) }

// HasPYQ reports whether a previous-year-questions link is present.
func (c Course) HasPYQ() bool { return present(c.PYQURL) }

// HasMaterials reports whether notes or previous-year questions are present.
func (c Course) HasMaterials() bool { return c.HasNotes() || c.HasPYQ() }

func present(s *string) bool {
	return s != nil && *s != ""
}

// CatalogCourse is a course annotated with its creator display name.
type CatalogCourse struct {
	Course
	CreatorName string `db:"creator_name" json:"creator_name"`
}

// AssetKind enumerates uploadable course assets.
type AssetKind string

const (
	AssetThumbnail AssetKind = "thumbnail"
	AssetNotes     AssetKind = "notes"
	AssetPYQ       AssetKind = "pyq"
	AssetVideo     AssetKind = "video"
)

// Valid reports whether the asset kind is known.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetThumbnail, AssetNotes, AssetPYQ, AssetVideo:
		return true
	}
	return false
}

// CourseStats aggregates catalog totals for the admin dashboard.
type CourseStats struct {
	Total int `db:"total" json:"total"`
	Free  int `db:"free" json:"free"`
	Paid  int `db:"paid" json:"paid"`
}
