// internal/app/features/dispatchadmin/history.go
package dispatchadmin

import (
	"context"
	"net/http"
	"strconv"

	errorsfeature "github.com/dalemusser/whosthat/internal/app/features/errors"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultSessionLimit = 30
	maxSessionLimit     = 200
)

type sessionsResponse struct {
	GameID   string               `json:"game_id"`
	Sessions []models.GameSession `json:"sessions"`
}

type messagesResponse struct {
	SessionID string               `json:"session_id"`
	Sent      int                  `json:"sent"`
	Responded int                  `json:"responded"`
	Messages  []models.GameMessage `json:"messages"`
}

// GameSessions handles GET /admin/dispatch/games/{gameID}/sessions?limit=N.
// Sessions come newest date first.
func (h *Handler) GameSessions(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "gameID"))
	if err != nil {
		errorsfeature.BadRequest(w, "game id must be a 24-character hex object id")
		return
	}
	limit := int64(defaultSessionLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > maxSessionLimit {
			errorsfeature.BadRequest(w, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.DB())
	defer cancel()
	sessions, err := h.Sessions.ListByGame(ctx, id, limit)
	if err != nil {
		h.ErrLog.Internal(w, r, "list sessions failed", err)
		return
	}
	if sessions == nil {
		sessions = []models.GameSession{}
	}
	writeJSON(w, sessionsResponse{GameID: id.Hex(), Sessions: sessions})
}

// SessionMessages handles GET /admin/dispatch/sessions/{sessionID}/messages.
func (h *Handler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "sessionID"))
	if err != nil {
		errorsfeature.BadRequest(w, "session id must be a 24-character hex object id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.DB())
	defer cancel()
	msgs, err := h.Messages.ListBySession(ctx, id)
	if err != nil {
		h.ErrLog.Internal(w, r, "list messages failed", err)
		return
	}

	resp := messagesResponse{SessionID: id.Hex(), Messages: msgs}
	if resp.Messages == nil {
		resp.Messages = []models.GameMessage{}
	}
	for _, m := range msgs {
		if m.Delivered() {
			resp.Sent++
		}
		if m.Responded {
			resp.Responded++
		}
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
