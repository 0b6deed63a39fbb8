package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/guard"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth        *AuthHandler
	Catalog     *CatalogHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Dashboard   *DashboardHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API on group. The session middleware must already
// be installed on group.
func RegisterRoutes(group *gin.RouterGroup, h Handlers) {
	student := middleware.Guard(guard.RoleStudent)
	admin := middleware.Guard(guard.RoleAdmin)
	signedIn := middleware.Guard(guard.RoleNone)

	auth := group.Group("/auth")
	auth.POST("/signup", h.Auth.SignUp)
	auth.POST("/signin", h.Auth.SignIn)
	auth.POST("/signout", h.Auth.SignOut)
	auth.GET("/me", signedIn, h.Auth.Me)
	auth.GET("/guard", h.Auth.Guard)

	catalog := group.Group("/catalog")
	catalog.GET("", h.Catalog.List)
	catalog.POST("/views", h.Catalog.OpenView)
	catalog.GET("/views/:id", h.Catalog.GetView)
	catalog.PATCH("/views/:id", h.Catalog.UpdateView)
	catalog.DELETE("/views/:id", h.Catalog.CloseView)
	catalog.GET("/views/:id/events", h.Catalog.Events)

	group.GET("/courses/:id", h.Courses.Detail)

	group.POST("/enrollments", student, h.Enrollments.Enroll)
	group.GET("/enrollments", student, h.Enrollments.List)
	group.GET("/dashboard", student, h.Dashboard.Student)

	adminGroup := group.Group("/admin", admin)
	adminGroup.GET("/dashboard", h.Dashboard.Admin)
	adminGroup.GET("/metrics", h.Metrics.System)
	adminGroup.GET("/courses", h.Courses.ListOwned)
	adminGroup.POST("/courses", h.Courses.Create)
	adminGroup.GET("/courses/export", h.Courses.Export)
	adminGroup.PUT("/courses/:id", h.Courses.Update)
	adminGroup.DELETE("/courses/:id", h.Courses.Delete)
	adminGroup.POST("/courses/:id/assets/:kind", h.Courses.UploadAsset)
}
