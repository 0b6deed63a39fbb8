// Package guard decides whether a protected view may render for the current session.
package guard

import (
	"strings"

	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/session"
)

// Paths the guard redirects to.
const (
	LoginPath       = "/login"
	AdminHomePath   = "/admin"
	StudentHomePath = "/dashboard"
)

// StateKind enumerates the authentication states a guard can observe.
type StateKind int

const (
	StateLoading StateKind = iota
	StateAnonymous
	StateAuthenticatedNoProfile
	StateAuthenticated
)

// String implements fmt.Stringer.
func (k StateKind) String() string {
	switch k {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticatedNoProfile:
		return "authenticated_no_profile"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the authentication state. Role is set only for StateAuthenticated.
type State struct {
	Kind StateKind
	Role models.Role
}

// Loading returns the loading state.
func Loading() State { return State{Kind: StateLoading} }

// Anonymous returns the signed-out state.
func Anonymous() State { return State{Kind: StateAnonymous} }

// AuthenticatedNoProfile returns the state for a session without a role profile.
func AuthenticatedNoProfile() State { return State{Kind: StateAuthenticatedNoProfile} }

// Authenticated returns the state for a session with the given role.
func Authenticated(role models.Role) State {
	return State{Kind: StateAuthenticated, Role: role}
}

// StateFrom derives the guard state from a session snapshot.
func StateFrom(snap session.Snapshot) State {
	switch {
	case snap.Loading:
		return Loading()
	case !snap.Authenticated:
		return Anonymous()
	case snap.Identity == nil || !snap.Identity.Role.Valid():
		return AuthenticatedNoProfile()
	default:
		return Authenticated(snap.Identity.Role)
	}
}

// RequiredRole is the role a view demands.
type RequiredRole int

const (
	RoleNone RequiredRole = iota
	RoleStudent
	RoleAdmin
)

// ParseRequiredRole maps query input onto RequiredRole. Empty input and "none" mean any role.
func ParseRequiredRole(raw string) (RequiredRole, bool) {
	if raw == "" || strings.EqualFold(strings.TrimSpace(raw), "none") {
		return RoleNone, true
	}
	role, ok := models.ParseRole(raw)
	if !ok {
		return RoleNone, false
	}
	if role == models.RoleAdmin {
		return RoleAdmin, true
	}
	return RoleStudent, true
}

// String implements fmt.Stringer.
func (r RequiredRole) String() string {
	switch r {
	case RoleStudent:
		return string(models.RoleStudent)
	case RoleAdmin:
		return string(models.RoleAdmin)
	default:
		return "none"
	}
}

func (r RequiredRole) satisfiedBy(role models.Role) bool {
	switch r {
	case RoleNone:
		return true
	case RoleStudent:
		return role == models.RoleStudent
	case RoleAdmin:
		return role == models.RoleAdmin
	default:
		return false
	}
}

// Action is what the caller should do with the protected view.
type Action string

const (
	ActionRender   Action = "render"
	ActionLoading  Action = "loading"
	ActionRedirect Action = "redirect"
)

// Decision is the outcome of Evaluate. Target is set for redirects.
type Decision struct {
	Action Action `json:"action"`
	Target string `json:"target,omitempty"`
}

// HomeFor returns the landing page for a role.
func HomeFor(role models.Role) string {
	if role == models.RoleAdmin {
		return AdminHomePath
	}
	return StudentHomePath
}

// Evaluate applies the guard rules in order. It has no side effects.
func Evaluate(state State, required RequiredRole) Decision {
	switch state.Kind {
	case StateLoading:
		return Decision{Action: ActionLoading}
	case StateAnonymous, StateAuthenticatedNoProfile:
		return Decision{Action: ActionRedirect, Target: LoginPath}
	case StateAuthenticated:
		if !required.satisfiedBy(state.Role) {
			return Decision{Action: ActionRedirect, Target: HomeFor(state.Role)}
		}
		return Decision{Action: ActionRender}
	default:
		return Decision{Action: ActionRedirect, Target: LoginPath}
	}
}
