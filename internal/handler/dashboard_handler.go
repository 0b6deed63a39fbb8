package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/dto"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
	"github.com/noah-isme/learning-portal-api/internal/models"
)

type dashboardService interface {
	Student(ctx context.Context, identity *models.Identity) (*dto.StudentDashboardResponse, error)
	Admin(ctx context.Context, identity *models.Identity) (*dto.AdminDashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.Student(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}

// Admin godoc
// @Summary Admin dashboard summary
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.service.Admin(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	respond(c, http.StatusOK, summary)
}
