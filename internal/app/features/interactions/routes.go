// internal/app/features/interactions/routes.go
package interactions

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted under /slack.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/interactions", h.Serve)
	return r
}
