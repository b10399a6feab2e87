// internal/app/store/games/gamestore.go
package gamestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("game not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("games")}
}

// Create inserts a game. Status defaults to scheduled and IsActive to true
// when the caller leaves them unset.
func (s *Store) Create(ctx context.Context, g models.Game) (models.Game, error) {
	now := time.Now().UTC()
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	if g.Status == "" {
		g.Status = models.GameStatusScheduled
		g.IsActive = true
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Game{}, err
	}
	return g, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Game, error) {
	var g models.Game
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Game{}, ErrNotFound
		}
		return models.Game{}, err
	}
	return g, nil
}

// ListDispatchable returns active games in the scheduled state. When
// workspaceID is non-nil the result is limited to that workspace.
func (s *Store) ListDispatchable(ctx context.Context, workspaceID *primitive.ObjectID) ([]models.Game, error) {
	filter := bson.M{
		"is_active": true,
		"status":    models.GameStatusScheduled,
	}
	if workspaceID != nil {
		filter["workspace_id"] = *workspaceID
	}
	opts := options.Find().SetSort(bson.D{{Key: "workspace_id", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Game
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetActive flips the soft-delete flag.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
