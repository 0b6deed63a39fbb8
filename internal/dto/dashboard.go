package dto

import (
	"time"

	"github.com/noah-isme/learning-portal-api/internal/models"
)

// StudentDashboardResponse lists the courses a student is enrolled in.
type StudentDashboardResponse struct {
	Identity      *models.Identity `json:"identity"`
	EnrolledCount int              `json:"enrolled_count"`
	Courses       []CourseCard     `json:"courses"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// AdminDashboardResponse aggregates totals for the courses an admin created.
type AdminDashboardResponse struct {
	Courses     models.CourseStats    `json:"courses"`
	Enrollments int                   `json:"enrollments"`
	Users       map[models.Role]int   `json:"users"`
	TopCourses  []CourseEnrollment    `json:"top_courses"`
	System      *models.SystemMetrics `json:"system,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// CourseEnrollment ranks a course by enrollment count.
type CourseEnrollment struct {
	CourseID    string `json:"course_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Enrollments int    `json:"enrollments"`
}
