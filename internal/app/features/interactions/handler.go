// internal/app/features/interactions/handler.go

// Package interactions receives Slack interaction callbacks. The request is
// acknowledged before the response is persisted; Slack retries anything
// slower than three seconds.
package interactions

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/whosthat/internal/app/engine/ingest"
	errorsfeature "github.com/dalemusser/whosthat/internal/app/features/errors"
	"github.com/dalemusser/whosthat/internal/app/system/slackapi"
	"github.com/dalemusser/whosthat/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Responder scores a callback. *ingest.Ingestor satisfies it.
type Responder interface {
	Handle(ctx context.Context, cb ingest.Callback) (ingest.Outcome, error)
}

type Handler struct {
	SigningSecret string
	Responder     Responder
	Queue         ingest.Queue
	Log           *zap.Logger
}

// NewHandler builds the interactions handler. An empty signing secret turns
// verification off, which ValidateConfig only permits in dev.
func NewHandler(signingSecret string, responder Responder, queue ingest.Queue, logger *zap.Logger) *Handler {
	if signingSecret == "" {
		logger.Warn("slack signature verification disabled")
	}
	return &Handler{
		SigningSecret: signingSecret,
		Responder:     responder,
		Queue:         queue,
		Log:           logger,
	}
}

// Serve handles POST /slack/interactions.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(r)
	if err != nil {
		if errors.Is(err, slackapi.ErrBadSignature) {
			h.Log.Warn("slack interaction rejected", zap.Error(err))
			errorsfeature.Unauthorized(w, "invalid signature")
			return
		}
		errorsfeature.BadRequest(w, "unreadable body")
		return
	}

	in, ok, err := slackapi.ParseInteraction(body)
	if err != nil {
		h.Log.Warn("slack interaction malformed", zap.Error(err))
		errorsfeature.BadRequest(w, "malformed payload")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	cb := in.Callback
	log := h.Log.With(
		zap.String("team_id", in.TeamID),
		zap.String("responder_id", cb.ResponderID),
		zap.String("action_id", cb.ActionID))

	handle := func(ctx context.Context) error {
		out, err := h.Responder.Handle(ctx, cb)
		if err != nil {
			return err
		}
		log.Debug("interaction handled", zap.String("outcome", string(out)))
		return nil
	}

	if !h.Queue.Enqueue("ingest_response", handle) {
		// Queue saturated: do it inline, bounded by the ack budget.
		log.Warn("deferred queue full, handling interaction inline")
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ack())
		defer cancel()
		if err := handle(ctx); err != nil {
			log.Error("inline interaction failed", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	if h.SigningSecret == "" {
		return io.ReadAll(io.LimitReader(r.Body, slackapi.MaxInteractionBody))
	}
	return slackapi.VerifyRequest(r, h.SigningSecret)
}
