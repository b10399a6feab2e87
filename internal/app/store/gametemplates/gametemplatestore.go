// internal/app/store/gametemplates/gametemplatestore.go

package gametemplatestore

import (
	"context"
	"errors"

	"github.com/dalemusser/whosthat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("game template not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("game_templates")}
}

func (s *Store) Create(ctx context.Context, t models.GameTemplate) (models.GameTemplate, error) {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.GameTemplate{}, err
	}
	return t, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.GameTemplate, error) {
	var t models.GameTemplate
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.GameTemplate{}, ErrNotFound
		}
		return models.GameTemplate{}, err
	}
	return t, nil
}
