// internal/app/engine/ledger/ledgertest/ledgertest.go

// Package ledgertest provides in-memory session and message stores with the
// same uniqueness rules as the Mongo indexes.
package ledgertest

import (
	"context"
	"sync"
	"time"

	gamemessagestore "github.com/dalemusser/whosthat/internal/app/store/gamemessages"
	gamesessionstore "github.com/dalemusser/whosthat/internal/app/store/gamesessions"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sessionKey struct {
	game primitive.ObjectID
	date string
}

type Sessions struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.GameSession
	keys map[sessionKey]primitive.ObjectID

	Inserts int // successful inserts
}

func NewSessions() *Sessions {
	return &Sessions{
		byID: map[primitive.ObjectID]*models.GameSession{},
		keys: map[sessionKey]primitive.ObjectID{},
	}
}

func (s *Sessions) Insert(_ context.Context, gameID, workspaceID primitive.ObjectID, date string, now time.Time) (models.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := sessionKey{gameID, date}
	if _, ok := s.keys[k]; ok {
		return models.GameSession{}, gamesessionstore.ErrDuplicateSession
	}
	sess := &models.GameSession{
		ID:          primitive.NewObjectID(),
		GameID:      gameID,
		WorkspaceID: workspaceID,
		Date:        date,
		Status:      models.SessionStatusScheduled,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	s.byID[sess.ID] = sess
	s.keys[k] = sess.ID
	s.Inserts++
	return *sess, nil
}

func (s *Sessions) GetByGameDate(_ context.Context, gameID primitive.ObjectID, date string) (models.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[sessionKey{gameID, date}]
	if !ok {
		return models.GameSession{}, gamesessionstore.ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *Sessions) MarkDispatched(_ context.Context, id primitive.ObjectID, markSent bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return gamesessionstore.ErrNotFound
	}
	at = at.UTC()
	sess.LastSentAt = &at
	sess.UpdatedAt = at
	sess.Rounds++
	if markSent {
		sess.Status = models.SessionStatusSent
	}
	return nil
}

// All returns a snapshot of every session.
func (s *Sessions) All() []models.GameSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GameSession, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, *sess)
	}
	return out
}

type messageKey struct {
	session   primitive.ObjectID
	recipient string
	subject   string
}

type Messages struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]*models.GameMessage
	keys  map[messageKey]primitive.ObjectID
	order []primitive.ObjectID
}

func NewMessages() *Messages {
	return &Messages{
		byID: map[primitive.ObjectID]*models.GameMessage{},
		keys: map[messageKey]primitive.ObjectID{},
	}
}

func (m *Messages) Create(_ context.Context, msg models.GameMessage) (models.GameMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := messageKey{msg.GameSessionID, msg.RecipientID, msg.SubjectID}
	if _, ok := m.keys[k]; ok {
		return models.GameMessage{}, gamemessagestore.ErrDuplicateMessage
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	cp := msg
	m.byID[msg.ID] = &cp
	m.keys[k] = msg.ID
	m.order = append(m.order, msg.ID)
	return msg, nil
}

func (m *Messages) GetByID(_ context.Context, id primitive.ObjectID) (models.GameMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return models.GameMessage{}, gamemessagestore.ErrNotFound
	}
	return *msg, nil
}

func (m *Messages) AttachProviderMessage(_ context.Context, id primitive.ObjectID, providerMessageID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return gamemessagestore.ErrNotFound
	}
	sentAt = sentAt.UTC()
	msg.ProviderMessageID = providerMessageID
	msg.SentAt = &sentAt
	return nil
}

func (m *Messages) SubjectsShown(_ context.Context, sessionID primitive.ObjectID, recipientID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.order {
		msg := m.byID[id]
		if msg.GameSessionID == sessionID && msg.RecipientID == recipientID {
			out = append(out, msg.SubjectID)
		}
	}
	return out, nil
}

func (m *Messages) MarkResponded(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return gamemessagestore.ErrNotFound
	}
	msg.Responded = true
	return nil
}

// All returns every message in insertion order.
func (m *Messages) All() []models.GameMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GameMessage, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.byID[id])
	}
	return out
}
