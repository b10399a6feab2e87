// internal/app/engine/ledger/ledger.go

// Package ledger records sessions and messages for dispatch rounds. The
// unique indexes behind its stores are what keep overlapping ticks safe;
// there is no application-level locking.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	gamemessagestore "github.com/dalemusser/whosthat/internal/app/store/gamemessages"
	gamesessionstore "github.com/dalemusser/whosthat/internal/app/store/gamesessions"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Re-exported so callers classify ledger errors without importing stores.
var (
	ErrDuplicateSession = gamesessionstore.ErrDuplicateSession
	ErrDuplicateMessage = gamemessagestore.ErrDuplicateMessage
)

type SessionStore interface {
	Insert(ctx context.Context, gameID, workspaceID primitive.ObjectID, date string, now time.Time) (models.GameSession, error)
	GetByGameDate(ctx context.Context, gameID primitive.ObjectID, date string) (models.GameSession, error)
	MarkDispatched(ctx context.Context, id primitive.ObjectID, markSent bool, at time.Time) error
}

type MessageStore interface {
	Create(ctx context.Context, m models.GameMessage) (models.GameMessage, error)
	AttachProviderMessage(ctx context.Context, id primitive.ObjectID, providerMessageID string, sentAt time.Time) error
	SubjectsShown(ctx context.Context, sessionID primitive.ObjectID, recipientID string) ([]string, error)
}

type Ledger struct {
	sessions SessionStore
	messages MessageStore
}

func New(sessions SessionStore, messages MessageStore) *Ledger {
	return &Ledger{sessions: sessions, messages: messages}
}

// EnsureSession returns the session for (gameID, dateKey), creating it when
// absent. created is true only for the caller whose insert won.
func (l *Ledger) EnsureSession(ctx context.Context, gameID, workspaceID primitive.ObjectID, dateKey string, now time.Time) (models.GameSession, bool, error) {
	sess, err := l.sessions.Insert(ctx, gameID, workspaceID, dateKey, now)
	if err == nil {
		return sess, true, nil
	}
	if !errors.Is(err, ErrDuplicateSession) {
		return models.GameSession{}, false, fmt.Errorf("insert session: %w", err)
	}
	sess, err = l.sessions.GetByGameDate(ctx, gameID, dateKey)
	if err != nil {
		return models.GameSession{}, false, fmt.Errorf("load session: %w", err)
	}
	return sess, false, nil
}

// AllowDispatch gates a round on an existing session. A session created by
// this tick always passes. Without a frequency an existing session means the
// day is done; with one, the last round (or creation) must be at least
// frequencyMinutes old.
func AllowDispatch(sess models.GameSession, created bool, frequencyMinutes *int, now time.Time) bool {
	if created {
		return true
	}
	if frequencyMinutes == nil || *frequencyMinutes <= 0 {
		return false
	}
	return now.Sub(sess.LastActivity()) >= time.Duration(*frequencyMinutes)*time.Minute
}

// MessageRecord is what the ledger needs to know before a send.
type MessageRecord struct {
	SessionID   primitive.ObjectID
	WorkspaceID primitive.ObjectID
	RecipientID string
	SubjectID   string
	ChannelID   string
}

// RecordMessage inserts the message row ahead of the send so its id can be
// embedded in the payload. A repeat of (session, recipient, subject)
// returns ErrDuplicateMessage.
func (l *Ledger) RecordMessage(ctx context.Context, rec MessageRecord, now time.Time) (models.GameMessage, error) {
	m, err := l.messages.Create(ctx, models.GameMessage{
		GameSessionID: rec.SessionID,
		WorkspaceID:   rec.WorkspaceID,
		RecipientID:   rec.RecipientID,
		SubjectID:     rec.SubjectID,
		ChannelID:     rec.ChannelID,
		CreatedAt:     now.UTC(),
	})
	if err != nil {
		return models.GameMessage{}, err
	}
	return m, nil
}

// AttachProviderMessage stores the provider's message handle after a send.
func (l *Ledger) AttachProviderMessage(ctx context.Context, messageID primitive.ObjectID, providerMessageID string, sentAt time.Time) error {
	return l.messages.AttachProviderMessage(ctx, messageID, providerMessageID, sentAt)
}

// SeenSubjects satisfies pairing.SeenLookup.
func (l *Ledger) SeenSubjects(ctx context.Context, sessionID primitive.ObjectID, recipientID string) ([]string, error) {
	return l.messages.SubjectsShown(ctx, sessionID, recipientID)
}

// MarkSessionDispatched finalizes a round. Status moves to sent only when
// something was sent, but last_sent_at is refreshed regardless, so a game
// that ran out of fresh pairs still waits a full frequency interval.
func (l *Ledger) MarkSessionDispatched(ctx context.Context, sessionID primitive.ObjectID, sentCount int, now time.Time) error {
	return l.sessions.MarkDispatched(ctx, sessionID, sentCount > 0, now)
}
