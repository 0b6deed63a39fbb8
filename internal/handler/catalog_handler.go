package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/catalog"
	"github.com/noah-isme/learning-portal-api/internal/dto"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/service"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type catalogService interface {
	Evaluate(ctx context.Context, state models.FilterState) catalog.Result
	Open(initial *models.FilterState) service.LiveView
	Update(id string, patch models.FilterPatch) (service.LiveView, error)
	Get(id string) (service.LiveView, error)
	Subscribe(id string) (<-chan catalog.Result, func(), error)
	Close(id string) error
}

// CatalogHandler serves the course catalog, both one-shot and as live views.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// List godoc
// @Summary Search and filter the catalog
// @Tags Catalog
// @Produce json
// @Param search query string false "Matches name or code"
// @Param basic query string false "all, free or paid"
// @Param price_range query string false "all, under500, 500to1000 or over1000"
// @Param creator query string false "Creator display name"
// @Param has_video query bool false "Only courses with a video"
// @Param has_materials query bool false "Only courses with notes or previous-year questions"
// @Success 200 {object} response.Envelope
// @Router /catalog [get]
func (h *CatalogHandler) List(c *gin.Context) {
	patch, err := filterPatchFromQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	state := patch.Apply(models.DefaultFilterState())
	result := h.service.Evaluate(c.Request.Context(), state)
	respond(c, http.StatusOK, dto.NewCatalogResponse("", result, enrolledLookup(c)))
}

// OpenView godoc
// @Summary Open a live catalog view
// @Description Evaluations are debounced; results are delivered on the events stream.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body models.FilterPatch false "Initial filters"
// @Success 201 {object} response.Envelope
// @Router /catalog/views [post]
func (h *CatalogHandler) OpenView(c *gin.Context) {
	var patch models.FilterPatch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	state := patch.Apply(models.DefaultFilterState())
	view := h.service.Open(&state)
	respond(c, http.StatusCreated, dto.NewCatalogResponse(view.ID, view.Result, enrolledLookup(c)))
}

// UpdateView godoc
// @Summary Change the filters of a live view
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param payload body models.FilterPatch true "Changed filters"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /catalog/views/{id} [patch]
func (h *CatalogHandler) UpdateView(c *gin.Context) {
	var patch models.FilterPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	view, err := h.service.Update(c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, dto.NewCatalogResponse(view.ID, view.Result, enrolledLookup(c)))
}

// GetView godoc
// @Summary Last result of a live view
// @Tags Catalog
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /catalog/views/{id} [get]
func (h *CatalogHandler) GetView(c *gin.Context) {
	view, err := h.service.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, dto.NewCatalogResponse(view.ID, view.Result, enrolledLookup(c)))
}

// Events godoc
// @Summary Stream live view results
// @Description Server-sent events named "result", one per applied evaluation.
// @Tags Catalog
// @Produce text/event-stream
// @Param id path string true "View ID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} response.Envelope
// @Router /catalog/views/{id}/events [get]
func (h *CatalogHandler) Events(c *gin.Context) {
	id := c.Param("id")
	results, cancel, err := h.service.Subscribe(id)
	if err != nil {
		fail(c, err)
		return
	}
	defer cancel()

	enrolled := enrolledLookup(c)
	c.Header("Cache-Control", "no-store")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case result, open := <-results:
			if !open {
				c.SSEvent("closed", gin.H{"view_id": id})
				return false
			}
			c.SSEvent("result", dto.NewCatalogResponse(id, result, enrolled))
			return true
		}
	})
}

// CloseView godoc
// @Summary Close a live view
// @Tags Catalog
// @Param id path string true "View ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /catalog/views/{id} [delete]
func (h *CatalogHandler) CloseView(c *gin.Context) {
	if err := h.service.Close(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
