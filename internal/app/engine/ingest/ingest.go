// internal/app/engine/ingest/ingest.go

// Package ingest scores button clicks on game messages.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/whosthat/internal/app/engine/payload"
	gamemessagestore "github.com/dalemusser/whosthat/internal/app/store/gamemessages"
	gameresponsestore "github.com/dalemusser/whosthat/internal/app/store/gameresponses"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Outcome is the result of handling one callback.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"   // not a game message
	OutcomeRecorded  Outcome = "recorded"  // response stored and scored
	OutcomeDuplicate Outcome = "duplicate" // responder already answered
)

const (
	AlreadyAnsweredText = "You've already answered this one."
)

// Callback is the part of an inbound interaction the engine needs.
type Callback struct {
	ResponderID   string
	ActionID      string
	Value         string
	CorrelationID string
	ResponseURL   string
}

type MessageStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.GameMessage, error)
	MarkResponded(ctx context.Context, id primitive.ObjectID) error
}

type ResponseStore interface {
	Create(ctx context.Context, r models.GameResponse) (models.GameResponse, error)
	GetByMessageResponder(ctx context.Context, messageID primitive.ObjectID, responderID string) (models.GameResponse, error)
}

// Queue runs side effects after the callback has been acknowledged.
type Queue interface {
	Enqueue(name string, fn func(ctx context.Context) error) bool
}

// FollowUpPoster posts a short text back through the callback's response URL.
type FollowUpPoster interface {
	PostFollowUp(ctx context.Context, responseURL, text string) error
}

// Auditor receives response audit events. *auditlog.Logger satisfies it.
type Auditor interface {
	GameResponseRecorded(ctx context.Context, resp models.GameResponse)
	GameResponseDuplicate(ctx context.Context, msg models.GameMessage, responderID string)
}

type Ingestor struct {
	messages  MessageStore
	responses ResponseStore
	queue     Queue
	followUp  FollowUpPoster
	audit     Auditor
	now       func() time.Time
	log       *zap.Logger
}

// New builds an Ingestor. audit may be nil.
func New(messages MessageStore, responses ResponseStore, queue Queue, followUp FollowUpPoster, audit Auditor, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{
		messages:  messages,
		responses: responses,
		queue:     queue,
		followUp:  followUp,
		audit:     audit,
		now:       time.Now,
		log:       log,
	}
}

// WithClock overrides the clock. Used by tests.
func (i *Ingestor) WithClock(now func() time.Time) *Ingestor {
	i.now = now
	return i
}

// Handle records at most one response per (message, responder). Follow-up
// texts are queued, never awaited, and their failures never reach the
// caller.
func (i *Ingestor) Handle(ctx context.Context, cb Callback) (Outcome, error) {
	msgID, ok := payload.DecodeCorrelation(cb.CorrelationID)
	if !ok {
		return OutcomeIgnored, nil
	}
	log := i.log.With(zap.String("message_id", msgID.Hex()), zap.String("responder_id", cb.ResponderID))

	msg, err := i.messages.GetByID(ctx, msgID)
	if err != nil {
		if errors.Is(err, gamemessagestore.ErrNotFound) {
			log.Warn("callback references unknown game message")
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, fmt.Errorf("load game message: %w", err)
	}

	_, err = i.responses.GetByMessageResponder(ctx, msgID, cb.ResponderID)
	switch {
	case err == nil:
		return i.duplicate(ctx, msg, cb, log), nil
	case !errors.Is(err, gameresponsestore.ErrNotFound):
		return OutcomeIgnored, fmt.Errorf("lookup response: %w", err)
	}

	kind := payload.ActionKind(cb.ActionID)
	resp, err := i.responses.Create(ctx, models.GameResponse{
		GameMessageID: msgID,
		WorkspaceID:   msg.WorkspaceID,
		ResponderID:   cb.ResponderID,
		ActionKind:    kind,
		ChosenOption:  cb.Value,
		Points:        payload.Points(kind),
		CreatedAt:     i.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, gameresponsestore.ErrDuplicateResponse) {
			// Lost a race with a concurrent delivery of the same click.
			return i.duplicate(ctx, msg, cb, log), nil
		}
		return OutcomeIgnored, fmt.Errorf("create response: %w", err)
	}

	if err := i.messages.MarkResponded(ctx, msgID); err != nil {
		log.Error("mark message responded failed", zap.Error(err))
	}
	if i.audit != nil {
		i.audit.GameResponseRecorded(ctx, resp)
	}
	log.Info("game response recorded", zap.String("action_kind", kind), zap.Int("points", resp.Points))

	i.enqueueFollowUp("game_feedback", cb.ResponseURL, FeedbackText(kind, msg.SubjectID), log)
	return OutcomeRecorded, nil
}

func (i *Ingestor) duplicate(ctx context.Context, msg models.GameMessage, cb Callback, log *zap.Logger) Outcome {
	log.Info("duplicate game response ignored")
	if i.audit != nil {
		i.audit.GameResponseDuplicate(ctx, msg, cb.ResponderID)
	}
	i.enqueueFollowUp("already_answered", cb.ResponseURL, AlreadyAnsweredText, log)
	return OutcomeDuplicate
}

func (i *Ingestor) enqueueFollowUp(name, responseURL, text string, log *zap.Logger) {
	if responseURL == "" {
		return
	}
	ok := i.queue.Enqueue(name, func(ctx context.Context) error {
		return i.followUp.PostFollowUp(ctx, responseURL, text)
	})
	if !ok {
		log.Warn("follow-up dropped, queue full or closed", zap.String("task", name))
	}
}

// FeedbackText is the message shown to a responder after scoring.
func FeedbackText(kind, subjectID string) string {
	if kind == models.ActionCorrect {
		return fmt.Sprintf(":tada: Correct! That was <@%s>. +%d points.", subjectID, models.PointsCorrect)
	}
	return fmt.Sprintf("Not quite. That was <@%s>.", subjectID)
}
