// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/whosthat/internal/app/store/audit"
	"github.com/dalemusser/whosthat/internal/app/system/ratelimit"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"  // MongoDB only
	DestLog = "log" // zap only
	DestOff = "off"
)

// Config holds audit logging configuration, one destination per category.
type Config struct {
	Dispatch string
	Response string
	Admin    string
}

// Store is where persisted audit events go.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to MongoDB (via Store) and structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	return ratelimit.ClientIP(r)
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	for name, id := range map[string]*primitive.ObjectID{
		"workspace_id": event.WorkspaceID,
		"game_id":      event.GameID,
		"session_id":   event.SessionID,
		"message_id":   event.MessageID,
	} {
		if id != nil {
			fields = append(fields, zap.String(name, id.Hex()))
		}
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so tests and optional wiring can pass nil.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryDispatch:
		setting = l.config.Dispatch
	case audit.CategoryResponse:
		setting = l.config.Response
	case audit.CategoryAdmin:
		setting = l.config.Admin
	}
	if setting == "" {
		setting = DestAll
	}
	if setting == DestOff {
		return
	}

	if setting == DestAll || setting == DestLog {
		l.logToZap(event)
	}
	if (setting == DestAll || setting == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Dispatch Events ---

// DispatchRoundCompleted logs the end of one round for a game.
func (l *Logger) DispatchRoundCompleted(ctx context.Context, game models.Game, sess models.GameSession, tickID string, sent, failed int) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryDispatch,
		EventType:   audit.EventDispatchRoundCompleted,
		WorkspaceID: &game.WorkspaceID,
		GameID:      &game.ID,
		SessionID:   &sess.ID,
		Success:     true,
		Details: map[string]string{
			"tick_id": tickID,
			"date":    sess.Date,
			"sent":    strconv.Itoa(sent),
			"failed":  strconv.Itoa(failed),
		},
	})
}

// GameMessageSent logs a delivered game message.
func (l *Logger) GameMessageSent(ctx context.Context, gameID primitive.ObjectID, msg models.GameMessage) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryDispatch,
		EventType:   audit.EventGameMessageSent,
		WorkspaceID: &msg.WorkspaceID,
		GameID:      &gameID,
		SessionID:   &msg.GameSessionID,
		MessageID:   &msg.ID,
		Success:     true,
		Details: map[string]string{
			"recipient_id": msg.RecipientID,
			"subject_id":   msg.SubjectID,
		},
	})
}

// GameMessageFailed logs a pair that could not be delivered.
func (l *Logger) GameMessageFailed(ctx context.Context, game models.Game, sessionID primitive.ObjectID, recipientID, subjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryDispatch,
		EventType:     audit.EventGameMessageFailed,
		WorkspaceID:   &game.WorkspaceID,
		GameID:        &game.ID,
		SessionID:     &sessionID,
		Success:       false,
		FailureReason: reason,
		Details: map[string]string{
			"recipient_id": recipientID,
			"subject_id":   subjectID,
		},
	})
}

// --- Response Events ---

// GameResponseRecorded logs a scored response.
func (l *Logger) GameResponseRecorded(ctx context.Context, resp models.GameResponse) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryResponse,
		EventType:   audit.EventGameResponseRecorded,
		WorkspaceID: &resp.WorkspaceID,
		MessageID:   &resp.GameMessageID,
		ActorID:     resp.ResponderID,
		Success:     true,
		Details: map[string]string{
			"action_kind": resp.ActionKind,
			"points":      strconv.Itoa(resp.Points),
		},
	})
}

// GameResponseDuplicate logs a repeated click that was not scored.
func (l *Logger) GameResponseDuplicate(ctx context.Context, msg models.GameMessage, responderID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryResponse,
		EventType:     audit.EventGameResponseDuplicate,
		WorkspaceID:   &msg.WorkspaceID,
		MessageID:     &msg.ID,
		ActorID:       responderID,
		Success:       false,
		FailureReason: "already answered",
	})
}

// --- Admin Events ---

// ManualDispatch logs an admin-triggered run. workspaceID is nil for a
// full tick.
func (l *Logger) ManualDispatch(ctx context.Context, r *http.Request, actor string, workspaceID *primitive.ObjectID, tickID string, sent int) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryAdmin,
		EventType:   audit.EventManualDispatch,
		WorkspaceID: workspaceID,
		ActorID:     actor,
		IP:          ClientIP(r),
		Success:     true,
		Details: map[string]string{
			"tick_id": tickID,
			"sent":    strconv.Itoa(sent),
		},
	})
}
