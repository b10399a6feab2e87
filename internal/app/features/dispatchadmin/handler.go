// internal/app/features/dispatchadmin/handler.go

// Package dispatchadmin lets an operator run the dispatch tick on demand.
package dispatchadmin

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/whosthat/internal/app/engine/dispatch"
	errorsfeature "github.com/dalemusser/whosthat/internal/app/features/errors"
	workspacestore "github.com/dalemusser/whosthat/internal/app/store/workspaces"
	"github.com/dalemusser/whosthat/internal/app/system/auth"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Runner is the dispatch orchestrator.
type Runner interface {
	RunTick(ctx context.Context) dispatch.Report
	RunWorkspace(ctx context.Context, workspaceID primitive.ObjectID) dispatch.Report
}

type WorkspaceSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error)
}

// SessionHistory lists a game's recent sessions.
type SessionHistory interface {
	ListByGame(ctx context.Context, gameID primitive.ObjectID, limit int64) ([]models.GameSession, error)
}

// MessageHistory lists the messages sent in one session.
type MessageHistory interface {
	ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]models.GameMessage, error)
}

// Auditor records manual runs. *auditlog.Logger satisfies it.
type Auditor interface {
	ManualDispatch(ctx context.Context, r *http.Request, actor string, workspaceID *primitive.ObjectID, tickID string, sent int)
}

type Handler struct {
	Runner     Runner
	Workspaces WorkspaceSource
	Sessions   SessionHistory
	Messages   MessageHistory
	Audit      Auditor
	ErrLog     *errorsfeature.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(runner Runner, workspaces WorkspaceSource, sessions SessionHistory, messages MessageHistory, audit Auditor, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Runner:     runner,
		Workspaces: workspaces,
		Sessions:   sessions,
		Messages:   messages,
		Audit:      audit,
		ErrLog:     errLog,
		Log:        logger,
	}
}

// RunAll handles POST /admin/dispatch/run.
func (h *Handler) RunAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Tick())
	defer cancel()

	rep := h.Runner.RunTick(ctx)
	h.finish(w, r, nil, rep)
}

// RunWorkspace handles POST /admin/dispatch/workspaces/{workspaceID}/run.
func (h *Handler) RunWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "workspaceID"))
	if err != nil {
		errorsfeature.BadRequest(w, "workspace id must be a 24-character hex object id")
		return
	}

	lookupCtx, cancelLookup := context.WithTimeout(r.Context(), timeouts.DB())
	_, err = h.Workspaces.GetByID(lookupCtx, id)
	cancelLookup()
	if err != nil {
		if errors.Is(err, workspacestore.ErrNotFound) {
			errorsfeature.NotFound(w, "workspace not found")
			return
		}
		h.ErrLog.Internal(w, r, "workspace lookup failed", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Tick())
	defer cancel()

	rep := h.Runner.RunWorkspace(ctx, id)
	h.finish(w, r, &id, rep)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request, wsID *primitive.ObjectID, rep dispatch.Report) {
	actor := ""
	if a, ok := auth.CurrentAdmin(r); ok {
		actor = a.Subject
	}
	if h.Audit != nil {
		h.Audit.ManualDispatch(r.Context(), r, actor, wsID, rep.TickID, rep.MessagesSent)
	}
	h.Log.Info("manual dispatch",
		zap.String("actor", actor),
		zap.String("tick_id", rep.TickID),
		zap.Int("rounds", rep.Rounds),
		zap.Int("sent", rep.MessagesSent))

	status := http.StatusOK
	if rep.Error != "" {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rep)
}
