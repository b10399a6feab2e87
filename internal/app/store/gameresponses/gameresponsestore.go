// internal/app/store/gameresponses/gameresponsestore.go
package gameresponsestore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrDuplicateResponse = errors.New("responder already answered this message")
	ErrNotFound          = errors.New("game response not found")
)

// Store manages game_responses. Rows are immutable once written.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("game_responses")}
}

// Create inserts a response. A second response from the same responder to
// the same message returns ErrDuplicateResponse.
func (s *Store) Create(ctx context.Context, r models.GameResponse) (models.GameResponse, error) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GameResponse{}, ErrDuplicateResponse
		}
		return models.GameResponse{}, err
	}
	return r, nil
}

// GetByMessageResponder looks up the response for (messageID, responderID).
func (s *Store) GetByMessageResponder(ctx context.Context, messageID primitive.ObjectID, responderID string) (models.GameResponse, error) {
	var r models.GameResponse
	err := s.c.FindOne(ctx, bson.M{
		"game_message_id": messageID,
		"responder_id":    responderID,
	}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GameResponse{}, ErrNotFound
		}
		return models.GameResponse{}, err
	}
	return r, nil
}

// CountByMessage returns how many responses a message has.
func (s *Store) CountByMessage(ctx context.Context, messageID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"game_message_id": messageID})
}
