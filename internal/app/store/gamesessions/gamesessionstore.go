// internal/app/store/gamesessions/gamesessionstore.go
package gamesessionstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateSession = errors.New("a session for this game and date already exists")
	ErrNotFound         = errors.New("game session not found")
)

// Store manages game_sessions. One document per (game_id, date), enforced
// by the uniq_game_sessions_game_date index.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("game_sessions")}
}

// Insert creates the session for (gameID, date). It returns
// ErrDuplicateSession when another caller created it first.
func (s *Store) Insert(ctx context.Context, gameID, workspaceID primitive.ObjectID, date string, now time.Time) (models.GameSession, error) {
	sess := models.GameSession{
		ID:          primitive.NewObjectID(),
		GameID:      gameID,
		WorkspaceID: workspaceID,
		Date:        date,
		Status:      models.SessionStatusScheduled,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GameSession{}, ErrDuplicateSession
		}
		return models.GameSession{}, err
	}
	return sess, nil
}

// GetByGameDate loads the session for (gameID, date).
func (s *Store) GetByGameDate(ctx context.Context, gameID primitive.ObjectID, date string) (models.GameSession, error) {
	var sess models.GameSession
	err := s.c.FindOne(ctx, bson.M{"game_id": gameID, "date": date}).Decode(&sess)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GameSession{}, ErrNotFound
		}
		return models.GameSession{}, err
	}
	return sess, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.GameSession, error) {
	var sess models.GameSession
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sess); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GameSession{}, ErrNotFound
		}
		return models.GameSession{}, err
	}
	return sess, nil
}

// MarkDispatched finalizes a round. last_sent_at is always refreshed and
// the round counter bumped; status becomes sent only when markSent is true.
func (s *Store) MarkDispatched(ctx context.Context, id primitive.ObjectID, markSent bool, at time.Time) error {
	at = at.UTC()
	set := bson.M{
		"last_sent_at": at,
		"updated_at":   at,
	}
	if markSent {
		set["status"] = models.SessionStatusSent
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": set,
		"$inc": bson.M{"rounds": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByGame returns a game's sessions, newest date first.
func (s *Store) ListByGame(ctx context.Context, gameID primitive.ObjectID, limit int64) ([]models.GameSession, error) {
	if limit <= 0 {
		limit = 30
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{"game_id": gameID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GameSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
