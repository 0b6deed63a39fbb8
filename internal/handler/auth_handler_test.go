package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-portal-api/internal/guard"
	"github.com/noah-isme/learning-portal-api/internal/models"
)

func TestAuthSignInReturnsTokenAndToast(t *testing.T) {
	p := newTestPortal(t)

	rec, env := p.do(t, http.MethodPost, "/api/v1/auth/signin", "", models.SignInRequest{Email: "ana@example.com", Password: "secret1"})

	require.Equal(t, http.StatusOK, rec.Code)
	var res models.AuthResponse
	decodeData(t, env, &res)
	assert.Equal(t, studentToken, res.AccessToken)
	require.NotNil(t, res.Identity)
	assert.Equal(t, models.RoleStudent, res.Identity.Role)
	assert.Equal(t, []string{"Signed in successfully"}, notificationMessages(env))
}

func TestAuthSignInBadCredentials(t *testing.T) {
	p := newTestPortal(t)

	rec, env := p.do(t, http.MethodPost, "/api/v1/auth/signin", "", models.SignInRequest{Email: "ana@example.com", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Invalid login credentials", env.Error.Message)
	assert.Equal(t, []string{"Invalid login credentials"}, notificationMessages(env))
}

func TestAuthSignInWithoutProfileRedirectsToLogin(t *testing.T) {
	p := newTestPortal(t)
	p.backend.accounts["ghost@example.com"] = "secret1"

	rec, env := p.do(t, http.MethodPost, "/api/v1/auth/signin", "", models.SignInRequest{Email: "ghost@example.com", Password: "secret1"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, guard.LoginPath, env.Meta["redirect"])
}

func TestAuthSignUpAdminNeedsCode(t *testing.T) {
	p := newTestPortal(t)

	rec, env := p.do(t, http.MethodPost, "/api/v1/auth/signup", "", models.SignUpRequest{
		Email: "new@example.com", Password: "secret1", DisplayName: "New", Role: "admin", AdminCode: "guess",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_ADMIN_CODE", env.Error.Code)
	assert.NotContains(t, p.backend.accounts, "new@example.com")
}

func TestAuthSignUpCreatesProfile(t *testing.T) {
	p := newTestPortal(t)

	rec, env := p.do(t, http.MethodPost, "/api/v1/auth/signup", "", models.SignUpRequest{
		Email: "new@example.com", Password: "secret1", DisplayName: "New", Role: "Student",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var res models.AuthResponse
	decodeData(t, env, &res)
	assert.Equal(t, "tok-new@example.com", res.AccessToken)
	require.Contains(t, p.profiles.profiles, "user-new@example.com")
	assert.Equal(t, models.RoleStudent, p.profiles.profiles["user-new@example.com"].Role)
}

func TestAuthSignOutRevokesToken(t *testing.T) {
	p := newTestPortal(t)

	rec, _ := p.do(t, http.MethodPost, "/api/v1/auth/signout", studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{studentToken}, p.backend.signOuts)

	rec, _ = p.do(t, http.MethodGet, "/api/v1/auth/me", studentToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMe(t *testing.T) {
	p := newTestPortal(t)

	rec, env := p.do(t, http.MethodGet, "/api/v1/auth/me", adminToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var identity models.Identity
	decodeData(t, env, &identity)
	assert.Equal(t, "Boss", identity.DisplayName)
	assert.Equal(t, models.RoleAdmin, identity.Role)
}

func TestAuthGuardDecisions(t *testing.T) {
	p := newTestPortal(t)

	cases := []struct {
		name     string
		token    string
		required string
		state    string
		action   string
		target   string
	}{
		{name: "anonymous on student page", required: "student", state: "anonymous", action: "redirect", target: guard.LoginPath},
		{name: "student on admin page", token: studentToken, required: "admin", state: "authenticated", action: "redirect", target: guard.StudentHomePath},
		{name: "admin on student page", token: adminToken, required: "student", state: "authenticated", action: "redirect", target: guard.AdminHomePath},
		{name: "admin on admin page", token: adminToken, required: "admin", state: "authenticated", action: "render"},
		{name: "student on public page", token: studentToken, required: "none", state: "authenticated", action: "render"},
		{name: "profile missing", token: orphanToken, required: "none", state: "authenticated_no_profile", action: "redirect", target: guard.LoginPath},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := p.do(t, http.MethodGet, "/api/v1/auth/guard?requiredRole="+tc.required, tc.token, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var body struct {
				State    string         `json:"state"`
				Decision guard.Decision `json:"decision"`
			}
			decodeData(t, env, &body)
			assert.Equal(t, tc.state, body.State)
			assert.Equal(t, tc.action, string(body.Decision.Action))
			assert.Equal(t, tc.target, body.Decision.Target)
		})
	}
}

func TestAuthGuardRejectsUnknownRole(t *testing.T) {
	p := newTestPortal(t)

	rec, _ := p.do(t, http.MethodGet, "/api/v1/auth/guard?requiredRole=teacher", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
