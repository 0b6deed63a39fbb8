package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/enrollment"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/session"
)

// Context keys for request-scoped session objects.
const (
	ContextStoreKey    = "sessionStore"
	ContextTrackerKey  = "enrollmentTracker"
	ContextNotifierKey = "sessionNotifier"
)

// SessionDeps groups the collaborators of the per-request session.
type SessionDeps struct {
	Backend           session.Backend
	Profiles          session.ProfileStore
	Enrollments       enrollment.Repository
	Validator         *validator.Validate
	AdminCode         string
	MinPasswordLength int
	EnrollmentMetrics enrollment.Observer
	Logger            *zap.Logger
}

// Session builds a session store and enrollment tracker for every request,
// resolving the bearer token when one is sent. Toasts raised while handling the
// request are collected for the response metadata.
func Session(deps SessionDeps) gin.HandlerFunc {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = session.NewValidator()
	}
	return func(c *gin.Context) {
		recorder := &session.RecordingNotifier{}
		notifier := session.MultiNotifier{recorder, session.LogNotifier{Logger: deps.Logger}}

		store := session.NewStore(session.Params{
			Backend:           deps.Backend,
			Profiles:          deps.Profiles,
			Notifier:          notifier,
			Logger:            deps.Logger,
			Validator:         deps.Validator,
			AdminCode:         deps.AdminCode,
			MinPasswordLength: deps.MinPasswordLength,
		})
		store.Init(c.Request.Context(), BearerToken(c))

		tracker := enrollment.NewTracker(enrollment.Params{
			Repository: deps.Enrollments,
			Identity:   store,
			Notifier:   notifier,
			Logger:     deps.Logger,
			Observer:   deps.EnrollmentMetrics,
		})
		defer tracker.Close()

		c.Set(ContextStoreKey, store)
		c.Set(ContextTrackerKey, tracker)
		c.Set(ContextNotifierKey, recorder)
		if identity := store.Current(); identity != nil {
			c.Set("user_id", identity.ID)
		}
		c.Next()
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// StoreFrom returns the request session store or nil.
func StoreFrom(c *gin.Context) *session.Store {
	value, exists := c.Get(ContextStoreKey)
	if !exists {
		return nil
	}
	store, _ := value.(*session.Store)
	return store
}

// TrackerFrom returns the request enrollment tracker or nil.
func TrackerFrom(c *gin.Context) *enrollment.Tracker {
	value, exists := c.Get(ContextTrackerKey)
	if !exists {
		return nil
	}
	tracker, _ := value.(*enrollment.Tracker)
	return tracker
}

// IdentityFrom returns the current identity or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	if store := StoreFrom(c); store != nil {
		return store.Current()
	}
	return nil
}

// Notifications drains the toasts raised during the request.
func Notifications(c *gin.Context) []session.Notification {
	value, exists := c.Get(ContextNotifierKey)
	if !exists {
		return nil
	}
	recorder, ok := value.(*session.RecordingNotifier)
	if !ok {
		return nil
	}
	return recorder.Drain()
}
