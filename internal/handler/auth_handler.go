package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/guard"
	"github.com/noah-isme/learning-portal-api/internal/middleware"
	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/session"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

// AuthHandler exposes the session store over HTTP.
type AuthHandler struct{}

// NewAuthHandler creates a new handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// SignUp godoc
// @Summary Create an account
// @Description Creates credentials and a role profile. The admin role requires the admin code.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignUpRequest true "Sign-up payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		return
	}
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sign up payload"))
		return
	}

	identity, err := store.SignUp(c.Request.Context(), session.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        models.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		AdminCode:   req.AdminCode,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respondAuth(c, http.StatusCreated, store, identity)
}

// SignIn godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.SignInRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		return
	}
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sign in payload"))
		return
	}

	identity, err := store.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrProfileMissing) {
			middleware.SetMeta(c, "redirect", guard.LoginPath)
		}
		fail(c, err)
		return
	}
	respondAuth(c, http.StatusOK, store, identity)
}

// SignOut godoc
// @Summary Sign out
// @Description Revokes the bearer token when present. Signing out twice is a no-op.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(c *gin.Context) {
	store, ok := storeFromContext(c)
	if !ok {
		return
	}
	store.SignOut(c.Request.Context())
	respond(c, http.StatusOK, gin.H{"signed_out": true})
}

// Me godoc
// @Summary Current identity
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, identity)
}

// Guard godoc
// @Summary Route guard decision
// @Description Evaluates the guard for the current session and requiredRole (none, student or admin).
// @Tags Authentication
// @Produce json
// @Param requiredRole query string false "Required role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/guard [get]
func (h *AuthHandler) Guard(c *gin.Context) {
	required, valid := guard.ParseRequiredRole(c.Query("requiredRole"))
	if !valid {
		fail(c, appErrors.Clone(appErrors.ErrValidation, "requiredRole must be none, student or admin"))
		return
	}
	state := middleware.GuardState(c)
	decision := guard.Evaluate(state, required)
	respond(c, http.StatusOK, gin.H{
		"state":    state.Kind.String(),
		"required": required.String(),
		"decision": decision,
	})
}

func respondAuth(c *gin.Context, status int, store *session.Store, identity *models.Identity) {
	res := models.AuthResponse{AccessToken: store.Token(), Identity: identity}
	if sess := store.Session(); sess != nil {
		res.ExpiresAt = sess.ExpiresAt
	}
	respond(c, status, res)
}
