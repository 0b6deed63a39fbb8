package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-portal-api/internal/guard"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
	"github.com/noah-isme/learning-portal-api/pkg/response"
)

// GuardState derives the guard state of the request. Without a session store
// the request is still loading.
func GuardState(c *gin.Context) guard.State {
	store := StoreFrom(c)
	if store == nil {
		return guard.Loading()
	}
	return guard.StateFrom(store.Snapshot())
}

// Guard admits the request only when the guard decides to render for required.
func Guard(required guard.RequiredRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := guard.Evaluate(GuardState(c), required)
		switch decision.Action {
		case guard.ActionRender:
			c.Next()
		case guard.ActionLoading:
			c.Header("Retry-After", "1")
			response.Abort(c, appErrors.Clone(appErrors.ErrUnavailable, "session is still loading"))
		default:
			meta := map[string]interface{}{"redirect": decision.Target}
			if decision.Target == guard.LoginPath {
				response.Abort(c, appErrors.Clone(appErrors.ErrUnauthenticated, ""), meta)
				return
			}
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this page"), meta)
		}
	}
}
