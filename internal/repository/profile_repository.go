package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

// ProfileRepository stores role profiles keyed by user id.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindProfile returns the profile for id, or nil when none exists.
func (r *ProfileRepository) FindProfile(ctx context.Context, id string) (*models.Profile, error) {
	const query = `SELECT id, name, role, created_at, updated_at FROM profiles WHERE id = $1 LIMIT 1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &profile, nil
}

// UpsertProfile inserts the profile or updates name and role of an existing one.
func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	const query = `INSERT INTO profiles (id, name, role, created_at, updated_at)
VALUES (:id, :name, :role, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CountByRole returns the number of profiles per role.
func (r *ProfileRepository) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	const query = `SELECT role, COUNT(*) AS total FROM profiles GROUP BY role`
	var rows []struct {
		Role  models.Role `db:"role"`
		Total int         `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count profiles by role: %w", err)
	}
	out := make(map[models.Role]int, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Total
	}
	return out, nil
}
