package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

// ErrCourseCodeTaken is returned when a course code is already used.
var ErrCourseCodeTaken = errors.New("course code already exists")

const (
	courseColumns = `c.id, c.code, c.name, c.description, c.is_free, c.price, c.notes_url, c.pyq_url, c.video_url, c.thumbnail_url, c.creator_id, c.created_at, c.updated_at, COALESCE(p.name, '') AS creator_name`
	courseFrom    = `FROM courses c LEFT JOIN profiles p ON p.id = c.creator_id`

	effectivePrice = `(CASE WHEN c.is_free THEN 0 ELSE c.price END)`
)

var assetColumns = map[models.AssetKind]string{
	models.AssetThumbnail: "thumbnail_url",
	models.AssetNotes:     "notes_url",
	models.AssetPYQ:       "pyq_url",
	models.AssetVideo:     "video_url",
}

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// QueryCatalog returns courses matching the pricing model, price bucket and search text,
// newest first. Price buckets compare the effective price.
func (r *CourseRepository) QueryCatalog(ctx context.Context, q models.CatalogQuery) ([]models.CatalogCourse, error) {
	var conditions []string
	var args []interface{}

	switch q.Basic {
	case models.BasicFree:
		conditions = append(conditions, "c.is_free = TRUE")
	case models.BasicPaid:
		conditions = append(conditions, "c.is_free = FALSE")
	}

	switch q.PriceRange {
	case models.PriceUnder500:
		conditions = append(conditions, effectivePrice+" < 500")
	case models.Price500To1000:
		conditions = append(conditions, effectivePrice+" BETWEEN 500 AND 1000")
	case models.PriceOver1000:
		conditions = append(conditions, effectivePrice+" >= 1000")
	}

	if search := strings.TrimSpace(q.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR c.code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, containsPattern(search))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY c.created_at DESC", courseColumns, courseFrom, clause)
	courses := []models.CatalogCourse{}
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	return courses, nil
}

// FindByID returns a course with its creator name.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CatalogCourse, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE c.id = $1 LIMIT 1", courseColumns, courseFrom)
	var course models.CatalogCourse
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListByIDs returns the courses with the given identifiers, newest first.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.CatalogCourse, error) {
	courses := []models.CatalogCourse{}
	if len(ids) == 0 {
		return courses, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s %s WHERE c.id IN (?) ORDER BY c.created_at DESC", courseColumns, courseFrom), ids)
	if err != nil {
		return nil, fmt.Errorf("build course list query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &courses, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list courses by ids: %w", err)
	}
	return courses, nil
}

// ListByCreator returns the courses created by creatorID, newest first.
func (r *CourseRepository) ListByCreator(ctx context.Context, creatorID string) ([]models.CatalogCourse, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE c.creator_id = $1 ORDER BY c.created_at DESC", courseColumns, courseFrom)
	courses := []models.CatalogCourse{}
	if err := r.db.SelectContext(ctx, &courses, query, creatorID); err != nil {
		return nil, fmt.Errorf("list courses by creator: %w", err)
	}
	return courses, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, name, description, is_free, price, notes_url, pyq_url, video_url, thumbnail_url, creator_id, created_at, updated_at)
VALUES (:id, :code, :name, :description, :is_free, :price, :notes_url, :pyq_url, :video_url, :thumbnail_url, :creator_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrCourseCodeTaken
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update stores the mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, name = :name, description = :description, is_free = :is_free, price = :price,
notes_url = :notes_url, pyq_url = :pyq_url, video_url = :video_url, thumbnail_url = :thumbnail_url, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCourseCodeTaken
		}
		return fmt.Errorf("update course: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetAsset stores the URL of one asset kind.
func (r *CourseRepository) SetAsset(ctx context.Context, id string, kind models.AssetKind, url *string) error {
	column, ok := assetColumns[kind]
	if !ok {
		return fmt.Errorf("unknown asset kind %q", kind)
	}
	query := fmt.Sprintf("UPDATE courses SET %s = $2, updated_at = $3 WHERE id = $1", column)
	res, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set course asset: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course. Enrollments cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats returns course totals. An empty creatorID counts every course.
func (r *CourseRepository) Stats(ctx context.Context, creatorID string) (models.CourseStats, error) {
	query := `SELECT COUNT(*) AS total,
COUNT(*) FILTER (WHERE is_free) AS free,
COUNT(*) FILTER (WHERE NOT is_free) AS paid
FROM courses`
	var args []interface{}
	if creatorID != "" {
		query += " WHERE creator_id = $1"
		args = append(args, creatorID)
	}
	var stats models.CourseStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return models.CourseStats{}, fmt.Errorf("course stats: %w", err)
	}
	return stats, nil
}
