// internal/app/features/dispatchadmin/routes.go
package dispatchadmin

import (
	"github.com/dalemusser/whosthat/internal/app/system/auth"
	"github.com/dalemusser/whosthat/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin subrouter, mounted under /admin/dispatch.
// Rate limiting runs before token checks so bad tokens are throttled too.
func Routes(h *Handler, v *auth.Verifier, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Use(limiter.Middleware)
	r.Use(v.RequireRole(auth.RoleAdmin, auth.RoleDispatcher))

	r.Post("/run", h.RunAll)
	r.Post("/workspaces/{workspaceID}/run", h.RunWorkspace)
	r.Get("/games/{gameID}/sessions", h.GameSessions)
	r.Get("/sessions/{sessionID}/messages", h.SessionMessages)
	return r
}
