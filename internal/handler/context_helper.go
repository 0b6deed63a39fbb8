package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/enrollment"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/session"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
	"github.com/noah-isme/learning-portal-api/pkg/response"
)

// respond writes data with the request metadata and collected toasts.
func respond(c *gin.Context, status int, data interface{}) {
	response.JSON(c, status, data, nil, middleware.CollectMeta(c))
}

// fail writes err with the request metadata and collected toasts.
func fail(c *gin.Context, err error) {
	response.Error(c, err, middleware.CollectMeta(c))
}

func storeFromContext(c *gin.Context) (*session.Store, bool) {
	store := middleware.StoreFrom(c)
	if store == nil {
		c.Header("Retry-After", "1")
		fail(c, appErrors.Clone(appErrors.ErrUnavailable, "session is still loading"))
		return nil, false
	}
	return store, true
}

func identityFromContext(c *gin.Context) (*models.Identity, bool) {
	identity := middleware.IdentityFrom(c)
	if identity == nil {
		fail(c, appErrors.Clone(appErrors.ErrUnauthenticated, ""))
		return nil, false
	}
	return identity, true
}

// enrolledLookup refreshes the tracker for the current identity. Anonymous
// requests and refresh failures yield a nil lookup.
func enrolledLookup(c *gin.Context) func(courseID string) bool {
	tracker := middleware.TrackerFrom(c)
	if tracker == nil || middleware.IdentityFrom(c) == nil {
		return nil
	}
	if err := tracker.Refresh(c.Request.Context()); err != nil {
		return nil
	}
	return tracker.IsEnrolled
}

func trackerFromContext(c *gin.Context) (*enrollment.Tracker, bool) {
	tracker := middleware.TrackerFrom(c)
	if tracker == nil {
		fail(c, appErrors.Clone(appErrors.ErrUnavailable, "session is still loading"))
		return nil, false
	}
	return tracker, true
}

// filterPatchFromQuery reads FilterState fields from query parameters. Absent
// parameters leave the field untouched.
func filterPatchFromQuery(c *gin.Context) (models.FilterPatch, error) {
	var patch models.FilterPatch
	if v, exists := c.GetQuery("search"); exists {
		patch.SearchTerm = &v
	}
	if v, exists := c.GetQuery("basic"); exists {
		patch.BasicFilter = &v
	}
	if v, exists := c.GetQuery("creator"); exists {
		patch.Creator = &v
	}
	if v, exists := c.GetQuery("price_range"); exists {
		patch.PriceRange = &v
	}
	for name, target := range map[string]**bool{"has_video": &patch.HasVideo, "has_materials": &patch.HasMaterials} {
		raw, exists := c.GetQuery(name)
		if !exists {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return patch, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, name+" must be a boolean")
		}
		*target = &parsed
	}
	return patch, nil
}
