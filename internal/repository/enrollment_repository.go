package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learning-portal-api/internal/enrollment"
	"github.com/noah-isme/learning-portal-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListCourseIDsByUser returns every course id the user is enrolled in.
func (r *EnrollmentRepository) ListCourseIDsByUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT course_id FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return ids, nil
}

// Create inserts an enrollment. The unique (user_id, course_id) constraint surfaces
// as enrollment.ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, user_id, course_id, created_at) VALUES (:id, :user_id, :course_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", enrollment.ErrDuplicate)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Count returns the number of enrollments. An empty creatorID counts every course.
func (r *EnrollmentRepository) Count(ctx context.Context, creatorID string) (int, error) {
	query := `SELECT COUNT(*) FROM enrollments e`
	var args []interface{}
	if creatorID != "" {
		query += ` JOIN courses c ON c.id = e.course_id WHERE c.creator_id = $1`
		args = append(args, creatorID)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// CountByCourse returns enrollment totals keyed by course id for the given courses.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT course_id, COUNT(*) AS total FROM enrollments WHERE course_id IN (?) GROUP BY course_id`, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("build enrollment count query: %w", err)
	}
	var rows []struct {
		CourseID string `db:"course_id"`
		Total    int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("count enrollments by course: %w", err)
	}
	for _, row := range rows {
		out[row.CourseID] = row.Total
	}
	return out, nil
}
