package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

func TestFindProfileMissingReturnsNil(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, role, created_at, updated_at FROM profiles WHERE id = $1")).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	profile, err := repo.FindProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, profile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "role", "created_at", "updated_at"}).
		AddRow("u1", "Ana", "student", now, now)
	mock.ExpectQuery("FROM profiles").WithArgs("u1").WillReturnRows(rows)

	profile, err := repo.FindProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, models.RoleStudent, profile.Role)
	assert.Equal(t, "Ana", profile.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("u1", "Boss", "admin", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	profile := &models.Profile{ID: "u1", Name: "Boss", Role: models.RoleAdmin}
	require.NoError(t, repo.UpsertProfile(context.Background(), profile))
	assert.False(t, profile.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	rows := sqlmock.NewRows([]string{"role", "total"}).AddRow("student", 7).AddRow("admin", 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role, COUNT(*) AS total FROM profiles GROUP BY role")).WillReturnRows(rows)

	counts, err := repo.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.Role]int{models.RoleStudent: 7, models.RoleAdmin: 2}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
